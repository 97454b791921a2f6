package ledger_http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"ledger/internal/app/accounts"
	"ledger/internal/app/ledger"
	"ledger/internal/domain"
)

type LedgerHandler struct {
	accountService accounts.AccountService
	ledgerService  ledger.LedgerService
	logger         *zap.Logger
}

func NewLedgerHandler(a accounts.AccountService, l ledger.LedgerService, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{accountService: a, ledgerService: l, logger: logger}
}

type CreateOwnerRequest struct {
	Name string `json:"name"`
}

type OwnerResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type RegisterAccountRequest struct {
	OwnerID        int64 `json:"owner_id"`
	InitialBalance int64 `json:"initial_balance"`
}

type RegisterAccountResponse struct {
	OwnerID       int64  `json:"owner_id"`
	AccountNumber string `json:"account_number"`
	RegisteredAt  string `json:"registered_at"`
}

type CloseAccountRequest struct {
	OwnerID       int64  `json:"owner_id"`
	AccountNumber string `json:"account_number"`
}

type CloseAccountResponse struct {
	OwnerID        int64  `json:"owner_id"`
	AccountNumber  string `json:"account_number"`
	UnregisteredAt string `json:"unregistered_at"`
}

type AccountInfoResponse struct {
	AccountNumber string `json:"account_number"`
	Balance       int64  `json:"balance"`
}

type UseBalanceRequest struct {
	OwnerID       int64  `json:"owner_id"`
	AccountNumber string `json:"account_number"`
	Amount        int64  `json:"amount"`
}

type CancelBalanceRequest struct {
	TransactionID string `json:"transaction_id"`
	AccountNumber string `json:"account_number"`
	Amount        int64  `json:"amount"`
}

type TransactionResponse struct {
	AccountID         string `json:"account_id"`
	TransactionType   string `json:"transaction_type,omitempty"`
	TransactionResult string `json:"transaction_result"`
	TransactionID     string `json:"transaction_id"`
	Amount            int64  `json:"amount"`
	BalanceSnapshot   int64  `json:"balance_snapshot"`
	TransactedAt      string `json:"transacted_at"`
}

func transactionResponse(txn *domain.Transaction, withType bool) TransactionResponse {
	resp := TransactionResponse{
		AccountID:         txn.AccountID,
		TransactionResult: string(txn.Result),
		TransactionID:     txn.TransactionID,
		Amount:            txn.Amount,
		BalanceSnapshot:   txn.BalanceSnapshot,
		TransactedAt:      txn.TransactedAt.Format(time.RFC3339),
	}
	if withType {
		resp.TransactionType = string(txn.Type)
	}
	return resp
}

func (h *LedgerHandler) CreateOwnerHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateOwnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "Name is required", http.StatusBadRequest)
		return
	}

	owner, err := h.accountService.CreateOwner(r.Context(), req.Name)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, OwnerResponse{ID: owner.ID, Name: owner.Name})
}

func (h *LedgerHandler) RegisterAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.OwnerID == 0 {
		http.Error(w, "Owner ID is required", http.StatusBadRequest)
		return
	}
	if req.InitialBalance < 0 {
		http.Error(w, "Initial balance cannot be negative", http.StatusBadRequest)
		return
	}

	account, err := h.accountService.RegisterAccount(r.Context(), req.OwnerID, req.InitialBalance)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, RegisterAccountResponse{
		OwnerID:       account.OwnerID,
		AccountNumber: account.Number,
		RegisteredAt:  account.RegisteredAt.Format(time.RFC3339),
	})
}

func (h *LedgerHandler) CloseAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req CloseAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.OwnerID == 0 || req.AccountNumber == "" {
		http.Error(w, "Owner ID and account number are required", http.StatusBadRequest)
		return
	}

	account, err := h.accountService.CloseAccount(r.Context(), req.OwnerID, req.AccountNumber)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, CloseAccountResponse{
		OwnerID:        account.OwnerID,
		AccountNumber:  account.Number,
		UnregisteredAt: account.UnregisteredAt.Format(time.RFC3339),
	})
}

func (h *LedgerHandler) ListAccountsHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, err := parseInt64(r.URL.Query().Get("owner_id"))
	if err != nil {
		http.Error(w, "Invalid owner_id", http.StatusBadRequest)
		return
	}

	accountList, err := h.accountService.ListAccounts(r.Context(), ownerID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := make([]AccountInfoResponse, 0, len(accountList))
	for _, account := range accountList {
		resp = append(resp, AccountInfoResponse{
			AccountNumber: account.Number,
			Balance:       account.Balance,
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *LedgerHandler) UseBalanceHandler(w http.ResponseWriter, r *http.Request) {
	var req UseBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.OwnerID == 0 || req.AccountNumber == "" {
		http.Error(w, "Owner ID and account number are required", http.StatusBadRequest)
		return
	}

	txn, err := h.ledgerService.UseBalance(r.Context(), req.OwnerID, req.AccountNumber, req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, transactionResponse(txn, false))
}

func (h *LedgerHandler) CancelBalanceHandler(w http.ResponseWriter, r *http.Request) {
	var req CancelBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.TransactionID == "" || req.AccountNumber == "" {
		http.Error(w, "Transaction ID and account number are required", http.StatusBadRequest)
		return
	}

	txn, err := h.ledgerService.CancelBalance(r.Context(), req.TransactionID, req.AccountNumber, req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, transactionResponse(txn, false))
}

func (h *LedgerHandler) GetTransactionHandler(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionID")
	if transactionID == "" {
		http.Error(w, "Transaction ID is required", http.StatusBadRequest)
		return
	}

	txn, err := h.ledgerService.GetTransaction(r.Context(), transactionID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, transactionResponse(txn, true))
}

func (h *LedgerHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to write JSON response", zap.Error(err))
	}
}

// writeError maps domain errors to HTTP statuses: unknown references are 404,
// state conflicts 409 (including busy, which the caller may retry), business
// rule violations 400, everything else 500.
func (h *LedgerHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrOwnerNotFound),
		errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrTransactionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrOwnershipMismatch),
		errors.Is(err, domain.ErrMaxAccountsPerOwner),
		errors.Is(err, domain.ErrDuplicateAccountNumber),
		errors.Is(err, domain.ErrAccountAlreadyClosed),
		errors.Is(err, domain.ErrTransactionAccountMismatch),
		errors.Is(err, domain.ErrAccountBusy):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrAccountNotInUse),
		errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrCancelMustBeFull),
		errors.Is(err, domain.ErrTransactionNotCancellable),
		errors.Is(err, domain.ErrCancelTooOld),
		errors.Is(err, domain.ErrBalanceNotEmpty):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("Internal error", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func parseInt64(s string) (int64, error) {
	if s == "" {
		return 0, errors.New("empty value")
	}
	return strconv.ParseInt(s, 10, 64)
}
