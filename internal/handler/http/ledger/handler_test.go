package ledger_http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ledger/internal/app/accounts"
	"ledger/internal/app/ledger"
	"ledger/internal/locker"
	"ledger/internal/repository/memory"
)

func newTestServer(t *testing.T) (*memory.Store, *httptest.Server) {
	t.Helper()

	store := memory.NewStore()
	logger := zap.NewNop()
	accountService := accounts.NewAccountService(store, store, store, store, "ledger_transaction_events", logger)
	ledgerService := ledger.NewLedgerService(
		store, store, store, store, store,
		locker.NewMemoryLocker(locker.DefaultOptions()), 10*time.Second, "ledger_transaction_events",
		logger,
	)

	r := chi.NewRouter()
	RegisterRoutes(r, accountService, ledgerService, logger)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return store, srv
}

func doJSON(t *testing.T, srv *httptest.Server, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func TestOwnerAndAccountEndpoints(t *testing.T) {
	_, srv := newTestServer(t)

	resp, body := doJSON(t, srv, http.MethodPost, "/owners", CreateOwnerRequest{Name: "alice"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var owner OwnerResponse
	require.NoError(t, json.Unmarshal(body, &owner))
	assert.Equal(t, int64(1), owner.ID)
	assert.Equal(t, "alice", owner.Name)

	resp, body = doJSON(t, srv, http.MethodPost, "/accounts", RegisterAccountRequest{OwnerID: owner.ID, InitialBalance: 10000})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var account RegisterAccountResponse
	require.NoError(t, json.Unmarshal(body, &account))
	assert.Equal(t, "1000000000", account.AccountNumber)
	assert.NotEmpty(t, account.RegisteredAt)

	resp, body = doJSON(t, srv, http.MethodGet, "/accounts?owner_id=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []AccountInfoResponse
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)
	assert.Equal(t, int64(10000), list[0].Balance)

	resp, _ = doJSON(t, srv, http.MethodPost, "/accounts", RegisterAccountRequest{OwnerID: 42})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, srv, http.MethodPost, "/owners", CreateOwnerRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCloseAccountEndpoint(t *testing.T) {
	_, srv := newTestServer(t)

	resp, _ := doJSON(t, srv, http.MethodPost, "/owners", CreateOwnerRequest{Name: "alice"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = doJSON(t, srv, http.MethodPost, "/accounts", RegisterAccountRequest{OwnerID: 1, InitialBalance: 500})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = doJSON(t, srv, http.MethodDelete, "/accounts", CloseAccountRequest{OwnerID: 1, AccountNumber: "1000000000"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// drain the balance, then close
	resp, _ = doJSON(t, srv, http.MethodPost, "/transactions/use", UseBalanceRequest{OwnerID: 1, AccountNumber: "1000000000", Amount: 500})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, srv, http.MethodDelete, "/accounts", CloseAccountRequest{OwnerID: 1, AccountNumber: "1000000000"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var closed CloseAccountResponse
	require.NoError(t, json.Unmarshal(body, &closed))
	assert.Equal(t, "1000000000", closed.AccountNumber)
	assert.NotEmpty(t, closed.UnregisteredAt)

	resp, _ = doJSON(t, srv, http.MethodDelete, "/accounts", CloseAccountRequest{OwnerID: 1, AccountNumber: "1000000000"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestTransactionEndpoints(t *testing.T) {
	store, srv := newTestServer(t)

	resp, _ := doJSON(t, srv, http.MethodPost, "/owners", CreateOwnerRequest{Name: "alice"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = doJSON(t, srv, http.MethodPost, "/accounts", RegisterAccountRequest{OwnerID: 1, InitialBalance: 10000})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, srv, http.MethodPost, "/transactions/use", UseBalanceRequest{OwnerID: 1, AccountNumber: "1000000000", Amount: 1000})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var used TransactionResponse
	require.NoError(t, json.Unmarshal(body, &used))
	assert.Equal(t, "SUCCESS", used.TransactionResult)
	assert.Equal(t, int64(9000), used.BalanceSnapshot)
	assert.Empty(t, used.TransactionType)
	assert.Len(t, used.TransactionID, 32)

	resp, body = doJSON(t, srv, http.MethodGet, "/transactions/"+used.TransactionID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var fetched TransactionResponse
	require.NoError(t, json.Unmarshal(body, &fetched))
	assert.Equal(t, "USE", fetched.TransactionType)
	assert.Equal(t, used.TransactionID, fetched.TransactionID)

	resp, body = doJSON(t, srv, http.MethodPost, "/transactions/cancel", CancelBalanceRequest{TransactionID: used.TransactionID, AccountNumber: "1000000000", Amount: 1000})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cancelled TransactionResponse
	require.NoError(t, json.Unmarshal(body, &cancelled))
	assert.Equal(t, int64(10000), cancelled.BalanceSnapshot)
	assert.NotEqual(t, used.TransactionID, cancelled.TransactionID)

	account, err := store.GetAccountByNumberTx(context.Background(), nil, "1000000000")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), account.Balance)
}

func TestTransactionEndpointErrors(t *testing.T) {
	_, srv := newTestServer(t)

	resp, _ := doJSON(t, srv, http.MethodPost, "/owners", CreateOwnerRequest{Name: "alice"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = doJSON(t, srv, http.MethodPost, "/accounts", RegisterAccountRequest{OwnerID: 1, InitialBalance: 100})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = doJSON(t, srv, http.MethodPost, "/transactions/use", UseBalanceRequest{OwnerID: 1, AccountNumber: "1000000000", Amount: 1000})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, srv, http.MethodPost, "/transactions/use", UseBalanceRequest{OwnerID: 1, AccountNumber: "9999999999", Amount: 10})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, srv, http.MethodPost, "/transactions/cancel", CancelBalanceRequest{TransactionID: "missing", AccountNumber: "1000000000", Amount: 10})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, srv, http.MethodGet, "/transactions/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
