package ledger_http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go.uber.org/zap"

	"ledger/internal/app/accounts"
	"ledger/internal/app/ledger"
)

func RegisterRoutes(r chi.Router, a accounts.AccountService, l ledger.LedgerService, logger *zap.Logger) {
	handler := NewLedgerHandler(a, l, logger.With(zap.String("component", "LedgerHTTPHandler")))

	r.Route("/health", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("Ledger service is healthy!"))
		})
	})

	r.Route("/owners", func(r chi.Router) {
		r.Post("/", handler.CreateOwnerHandler)
	})

	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", handler.RegisterAccountHandler)
		r.Delete("/", handler.CloseAccountHandler)
		r.Get("/", handler.ListAccountsHandler)
	})

	r.Route("/transactions", func(r chi.Router) {
		r.Post("/use", handler.UseBalanceHandler)
		r.Post("/cancel", handler.CancelBalanceHandler)
		r.Get("/{transactionID}", handler.GetTransactionHandler)
	})
}
