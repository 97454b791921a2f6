package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"ledger/internal/domain"
	"ledger/internal/locker"
	"ledger/internal/repository/memory"
	"ledger/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T, opts locker.Options) (*memory.Store, locker.Locker, LedgerService) {
	t.Helper()

	store := memory.NewStore()
	locks := locker.NewMemoryLocker(opts)
	svc := NewLedgerService(
		store, store, store, store, store,
		locks, 10*time.Second, "ledger_transaction_events",
		zap.NewNop(),
	)
	return store, locks, svc
}

func seedOwner(t *testing.T, store *memory.Store, name string) int64 {
	t.Helper()

	owner, err := store.CreateOwnerTx(context.Background(), nil, &domain.Owner{
		Name:      name,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	return owner.ID
}

func seedAccount(t *testing.T, store *memory.Store, ownerID int64, number string, balance int64) *domain.Account {
	t.Helper()

	now := time.Now()
	account := &domain.Account{
		ID:           util.GenerateUUID(),
		OwnerID:      ownerID,
		Number:       number,
		Status:       domain.AccountStatusInUse,
		Balance:      balance,
		RegisteredAt: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, store.CreateAccountTx(context.Background(), nil, account))
	return account
}

func TestUseBalance(t *testing.T) {
	ctx := context.Background()

	t.Run("debits the account and journals a success entry", func(t *testing.T) {
		store, _, svc := newTestService(t, locker.DefaultOptions())
		ownerID := seedOwner(t, store, "alice")
		account := seedAccount(t, store, ownerID, "1000000000", 10000)

		entry, err := svc.UseBalance(ctx, ownerID, "1000000000", 1000)
		require.NoError(t, err)

		assert.Equal(t, domain.TransactionTypeUse, entry.Type)
		assert.Equal(t, domain.TransactionResultSuccess, entry.Result)
		assert.Equal(t, account.ID, entry.AccountID)
		assert.Equal(t, int64(1000), entry.Amount)
		assert.Equal(t, int64(9000), entry.BalanceSnapshot)
		assert.Len(t, entry.TransactionID, 32)
		assert.NotContains(t, entry.TransactionID, "-")

		updated, err := store.GetAccountByNumberTx(ctx, nil, "1000000000")
		require.NoError(t, err)
		assert.Equal(t, int64(9000), updated.Balance)

		entries := store.TransactionsForAccount(account.ID)
		require.Len(t, entries, 1)
		assert.Equal(t, entry.TransactionID, entries[0].TransactionID)
	})

	t.Run("rejects non-positive amounts without journaling", func(t *testing.T) {
		store, _, svc := newTestService(t, locker.DefaultOptions())
		ownerID := seedOwner(t, store, "alice")
		account := seedAccount(t, store, ownerID, "1000000000", 10000)

		_, err := svc.UseBalance(ctx, ownerID, "1000000000", 0)
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)

		_, err = svc.UseBalance(ctx, ownerID, "1000000000", -5)
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)

		assert.Empty(t, store.TransactionsForAccount(account.ID))
	})

	t.Run("unknown owner leaves no journal entry", func(t *testing.T) {
		store, _, svc := newTestService(t, locker.DefaultOptions())
		ownerID := seedOwner(t, store, "alice")
		account := seedAccount(t, store, ownerID, "1000000000", 10000)

		_, err := svc.UseBalance(ctx, ownerID+99, "1000000000", 100)
		assert.ErrorIs(t, err, domain.ErrOwnerNotFound)
		assert.Empty(t, store.TransactionsForAccount(account.ID))
	})

	t.Run("unknown account leaves no journal entry", func(t *testing.T) {
		store, _, svc := newTestService(t, locker.DefaultOptions())
		ownerID := seedOwner(t, store, "alice")

		_, err := svc.UseBalance(ctx, ownerID, "9999999999", 100)
		assert.ErrorIs(t, err, domain.ErrAccountNotFound)
		assert.Empty(t, store.OutboxMessages())
	})

	t.Run("insufficient balance journals a fail entry with the unchanged balance", func(t *testing.T) {
		store, _, svc := newTestService(t, locker.DefaultOptions())
		ownerID := seedOwner(t, store, "alice")
		account := seedAccount(t, store, ownerID, "1000000000", 100)

		_, err := svc.UseBalance(ctx, ownerID, "1000000000", 1000)
		assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

		unchanged, err := store.GetAccountByNumberTx(ctx, nil, "1000000000")
		require.NoError(t, err)
		assert.Equal(t, int64(100), unchanged.Balance)

		entries := store.TransactionsForAccount(account.ID)
		require.Len(t, entries, 1)
		assert.Equal(t, domain.TransactionTypeUse, entries[0].Type)
		assert.Equal(t, domain.TransactionResultFail, entries[0].Result)
		assert.Equal(t, int64(1000), entries[0].Amount)
		assert.Equal(t, int64(100), entries[0].BalanceSnapshot)
	})

	t.Run("ownership mismatch journals a fail entry", func(t *testing.T) {
		store, _, svc := newTestService(t, locker.DefaultOptions())
		aliceID := seedOwner(t, store, "alice")
		bobID := seedOwner(t, store, "bob")
		account := seedAccount(t, store, aliceID, "1000000000", 10000)

		_, err := svc.UseBalance(ctx, bobID, "1000000000", 100)
		assert.ErrorIs(t, err, domain.ErrOwnershipMismatch)

		entries := store.TransactionsForAccount(account.ID)
		require.Len(t, entries, 1)
		assert.Equal(t, domain.TransactionResultFail, entries[0].Result)
		assert.Equal(t, int64(10000), entries[0].BalanceSnapshot)
	})

	t.Run("closed account journals a fail entry", func(t *testing.T) {
		store, _, svc := newTestService(t, locker.DefaultOptions())
		ownerID := seedOwner(t, store, "alice")
		account := seedAccount(t, store, ownerID, "1000000000", 0)

		now := time.Now()
		account.Status = domain.AccountStatusUnregistered
		account.UnregisteredAt = &now
		require.NoError(t, store.CloseAccountTx(ctx, nil, account))

		_, err := svc.UseBalance(ctx, ownerID, "1000000000", 100)
		assert.ErrorIs(t, err, domain.ErrAccountNotInUse)

		entries := store.TransactionsForAccount(account.ID)
		require.Len(t, entries, 1)
		assert.Equal(t, domain.TransactionResultFail, entries[0].Result)
	})

	t.Run("writes a transaction event to the outbox", func(t *testing.T) {
		store, _, svc := newTestService(t, locker.DefaultOptions())
		ownerID := seedOwner(t, store, "alice")
		seedAccount(t, store, ownerID, "1000000000", 10000)

		_, err := svc.UseBalance(ctx, ownerID, "1000000000", 1000)
		require.NoError(t, err)

		messages := store.OutboxMessages()
		require.Len(t, messages, 1)
		assert.Equal(t, "TransactionRecorded", messages[0].MessageType)
		assert.Equal(t, "ledger_transaction_events", messages[0].Topic)
		assert.Equal(t, domain.OutboxStatusPending, messages[0].Status)
	})
}

func TestCancelBalance(t *testing.T) {
	ctx := context.Background()

	t.Run("restores the balance and journals a cancel entry with its own id", func(t *testing.T) {
		store, _, svc := newTestService(t, locker.DefaultOptions())
		ownerID := seedOwner(t, store, "alice")
		seedAccount(t, store, ownerID, "1000000000", 10000)

		used, err := svc.UseBalance(ctx, ownerID, "1000000000", 1000)
		require.NoError(t, err)

		cancelled, err := svc.CancelBalance(ctx, used.TransactionID, "1000000000", 1000)
		require.NoError(t, err)

		assert.Equal(t, domain.TransactionTypeCancel, cancelled.Type)
		assert.Equal(t, domain.TransactionResultSuccess, cancelled.Result)
		assert.Equal(t, int64(10000), cancelled.BalanceSnapshot)
		assert.NotEqual(t, used.TransactionID, cancelled.TransactionID)

		account, err := store.GetAccountByNumberTx(ctx, nil, "1000000000")
		require.NoError(t, err)
		assert.Equal(t, int64(10000), account.Balance)

		// the original entry is untouched
		original, err := svc.GetTransaction(ctx, used.TransactionID)
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionTypeUse, original.Type)
	})

	t.Run("rejects partial cancels in both directions", func(t *testing.T) {
		store, _, svc := newTestService(t, locker.DefaultOptions())
		ownerID := seedOwner(t, store, "alice")
		account := seedAccount(t, store, ownerID, "1000000000", 10000)

		used, err := svc.UseBalance(ctx, ownerID, "1000000000", 1000)
		require.NoError(t, err)

		_, err = svc.CancelBalance(ctx, used.TransactionID, "1000000000", 500)
		assert.ErrorIs(t, err, domain.ErrCancelMustBeFull)

		_, err = svc.CancelBalance(ctx, used.TransactionID, "1000000000", 2000)
		assert.ErrorIs(t, err, domain.ErrCancelMustBeFull)

		balance, err := store.GetAccountByNumberTx(ctx, nil, "1000000000")
		require.NoError(t, err)
		assert.Equal(t, int64(9000), balance.Balance)

		// one success entry plus two journaled rejections
		entries := store.TransactionsForAccount(account.ID)
		require.Len(t, entries, 3)
		assert.Equal(t, domain.TransactionResultFail, entries[1].Result)
		assert.Equal(t, domain.TransactionTypeCancel, entries[1].Type)
		assert.Equal(t, int64(9000), entries[1].BalanceSnapshot)
		assert.Equal(t, domain.TransactionResultFail, entries[2].Result)
	})

	t.Run("rejects cancels for another account's transaction", func(t *testing.T) {
		store, _, svc := newTestService(t, locker.DefaultOptions())
		ownerID := seedOwner(t, store, "alice")
		seedAccount(t, store, ownerID, "1000000000", 10000)
		other := seedAccount(t, store, ownerID, "1000000001", 5000)

		used, err := svc.UseBalance(ctx, ownerID, "1000000000", 1000)
		require.NoError(t, err)

		_, err = svc.CancelBalance(ctx, used.TransactionID, "1000000001", 1000)
		assert.ErrorIs(t, err, domain.ErrTransactionAccountMismatch)

		entries := store.TransactionsForAccount(other.ID)
		require.Len(t, entries, 1)
		assert.Equal(t, domain.TransactionResultFail, entries[0].Result)
	})

	t.Run("only successful use entries can be cancelled", func(t *testing.T) {
		store, _, svc := newTestService(t, locker.DefaultOptions())
		ownerID := seedOwner(t, store, "alice")
		seedAccount(t, store, ownerID, "1000000000", 10000)

		used, err := svc.UseBalance(ctx, ownerID, "1000000000", 1000)
		require.NoError(t, err)
		cancelled, err := svc.CancelBalance(ctx, used.TransactionID, "1000000000", 1000)
		require.NoError(t, err)

		// cancelling a cancel entry must not credit the account again
		_, err = svc.CancelBalance(ctx, cancelled.TransactionID, "1000000000", 1000)
		assert.ErrorIs(t, err, domain.ErrTransactionNotCancellable)

		account, err := store.GetAccountByNumberTx(ctx, nil, "1000000000")
		require.NoError(t, err)
		assert.Equal(t, int64(10000), account.Balance)
	})

	t.Run("enforces the one year window", func(t *testing.T) {
		store, _, svc := newTestService(t, locker.DefaultOptions())
		ownerID := seedOwner(t, store, "alice")
		account := seedAccount(t, store, ownerID, "1000000000", 9000)

		stale := &domain.Transaction{
			ID:              util.GenerateUUID(),
			TransactionID:   util.GenerateTransactionID(),
			Type:            domain.TransactionTypeUse,
			Result:          domain.TransactionResultSuccess,
			AccountID:       account.ID,
			Amount:          1000,
			BalanceSnapshot: 9000,
			TransactedAt:    time.Now().Add(-366 * 24 * time.Hour),
		}
		require.NoError(t, store.CreateTransactionTx(ctx, nil, stale))

		_, err := svc.CancelBalance(ctx, stale.TransactionID, "1000000000", 1000)
		assert.ErrorIs(t, err, domain.ErrCancelTooOld)

		recent := &domain.Transaction{
			ID:              util.GenerateUUID(),
			TransactionID:   util.GenerateTransactionID(),
			Type:            domain.TransactionTypeUse,
			Result:          domain.TransactionResultSuccess,
			AccountID:       account.ID,
			Amount:          1000,
			BalanceSnapshot: 9000,
			TransactedAt:    time.Now().Add(-364 * 24 * time.Hour),
		}
		require.NoError(t, store.CreateTransactionTx(ctx, nil, recent))

		_, err = svc.CancelBalance(ctx, recent.TransactionID, "1000000000", 1000)
		assert.NoError(t, err)
	})

	t.Run("unknown transaction leaves no journal entry", func(t *testing.T) {
		store, _, svc := newTestService(t, locker.DefaultOptions())
		ownerID := seedOwner(t, store, "alice")
		account := seedAccount(t, store, ownerID, "1000000000", 10000)

		_, err := svc.CancelBalance(ctx, util.GenerateTransactionID(), "1000000000", 1000)
		assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
		assert.Empty(t, store.TransactionsForAccount(account.ID))
	})
}

func TestUseBalanceConcurrent(t *testing.T) {
	ctx := context.Background()
	store, _, svc := newTestService(t, locker.Options{Tries: 100, RetryDelay: 2 * time.Millisecond})
	ownerID := seedOwner(t, store, "alice")
	account := seedAccount(t, store, ownerID, "1000000000", 100)

	const workers = 10
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.UseBalance(ctx, ownerID, "1000000000", 30)
		}(i)
	}
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	}

	// 100 only covers three debits of 30
	assert.Equal(t, 3, succeeded)

	final, err := store.GetAccountByNumberTx(ctx, nil, "1000000000")
	require.NoError(t, err)
	assert.Equal(t, int64(10), final.Balance)
	assert.GreaterOrEqual(t, final.Balance, int64(0))

	var successes int
	for _, entry := range store.TransactionsForAccount(account.ID) {
		if entry.Result == domain.TransactionResultSuccess {
			successes++
		}
	}
	assert.Equal(t, 3, successes)
}

func TestUseBalanceLocking(t *testing.T) {
	ctx := context.Background()
	store, locks, svc := newTestService(t, locker.Options{Tries: 1, RetryDelay: time.Millisecond})
	ownerID := seedOwner(t, store, "alice")
	seedAccount(t, store, ownerID, "1000000000", 10000)
	seedAccount(t, store, ownerID, "1000000001", 10000)

	token, err := locks.Acquire(ctx, accountLockKey("1000000000"), time.Minute)
	require.NoError(t, err)
	defer locks.Release(ctx, accountLockKey("1000000000"), token)

	// a lock on one account never blocks another
	_, err = svc.UseBalance(ctx, ownerID, "1000000001", 100)
	assert.NoError(t, err)

	_, err = svc.UseBalance(ctx, ownerID, "1000000000", 100)
	assert.ErrorIs(t, err, domain.ErrAccountBusy)

	locked, err := store.GetAccountByNumberTx(ctx, nil, "1000000000")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), locked.Balance)
}
