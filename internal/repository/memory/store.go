package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"ledger/internal/domain"
)

// accountNumberSeed is the first number handed out by the allocator when the
// store is empty.
const accountNumberSeed = 1000000000

// Store keeps owners, accounts, the transaction journal and the outbox in
// process memory. It implements every repository interface plus
// domain.TxManager, ignoring the Querier argument. Transactions are simulated
// with a snapshot taken on begin and restored on error; they serialize on a
// store-wide mutex, which is fine for tests and single-process deployments.
type Store struct {
	txMu sync.Mutex

	mu           sync.RWMutex
	owners       map[int64]domain.Owner
	nextOwnerID  int64
	accounts     map[string]domain.Account
	numberIndex  map[string]string
	transactions []domain.Transaction
	txnIndex     map[string]int
	outbox       []domain.OutboxMessage
	nextNumber   int64
}

func NewStore() *Store {
	return &Store{
		owners:      make(map[int64]domain.Owner),
		accounts:    make(map[string]domain.Account),
		numberIndex: make(map[string]string),
		txnIndex:    make(map[string]int),
		nextNumber:  accountNumberSeed,
	}
}

type snapshot struct {
	owners       map[int64]domain.Owner
	nextOwnerID  int64
	accounts     map[string]domain.Account
	numberIndex  map[string]string
	transactions []domain.Transaction
	txnIndex     map[string]int
	outbox       []domain.OutboxMessage
}

func (s *Store) takeSnapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := snapshot{
		owners:       make(map[int64]domain.Owner, len(s.owners)),
		nextOwnerID:  s.nextOwnerID,
		accounts:     make(map[string]domain.Account, len(s.accounts)),
		numberIndex:  make(map[string]string, len(s.numberIndex)),
		transactions: make([]domain.Transaction, len(s.transactions)),
		txnIndex:     make(map[string]int, len(s.txnIndex)),
		outbox:       make([]domain.OutboxMessage, len(s.outbox)),
	}
	for id, o := range s.owners {
		snap.owners[id] = o
	}
	for id, a := range s.accounts {
		snap.accounts[id] = a
	}
	for n, id := range s.numberIndex {
		snap.numberIndex[n] = id
	}
	copy(snap.transactions, s.transactions)
	for id, i := range s.txnIndex {
		snap.txnIndex[id] = i
	}
	copy(snap.outbox, s.outbox)
	return snap
}

func (s *Store) restoreSnapshot(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.owners = snap.owners
	s.nextOwnerID = snap.nextOwnerID
	s.accounts = snap.accounts
	s.numberIndex = snap.numberIndex
	s.transactions = snap.transactions
	s.txnIndex = snap.txnIndex
	s.outbox = snap.outbox
	// nextNumber survives rollback on purpose: sequences do not roll back.
}

// WithinTx runs fn as a commit unit. On error every mutation fn made is
// discarded, mirroring a database rollback.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, q domain.Querier) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.takeSnapshot()
	if err := fn(ctx, nil); err != nil {
		s.restoreSnapshot(snap)
		return err
	}
	return nil
}

func (s *Store) Querier() domain.Querier {
	return nil
}

func (s *Store) CreateOwnerTx(ctx context.Context, _ domain.Querier, owner *domain.Owner) (*domain.Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextOwnerID++
	owner.ID = s.nextOwnerID
	s.owners[owner.ID] = *owner
	created := *owner
	return &created, nil
}

func (s *Store) GetOwnerTx(ctx context.Context, _ domain.Querier, ownerID int64) (*domain.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owner, ok := s.owners[ownerID]
	if !ok {
		return nil, domain.ErrOwnerNotFound
	}
	return &owner, nil
}

func (s *Store) CreateAccountTx(ctx context.Context, _ domain.Querier, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.numberIndex[account.Number]; taken {
		return domain.ErrDuplicateAccountNumber
	}
	s.accounts[account.ID] = *account
	s.numberIndex[account.Number] = account.ID
	return nil
}

func (s *Store) GetAccountByNumberTx(ctx context.Context, _ domain.Querier, number string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.numberIndex[number]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	account := s.accounts[id]
	return &account, nil
}

func (s *Store) ListAccountsByOwnerTx(ctx context.Context, _ domain.Querier, ownerID int64) ([]*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var accounts []*domain.Account
	for _, a := range s.accounts {
		if a.OwnerID == ownerID {
			account := a
			accounts = append(accounts, &account)
		}
	}
	return accounts, nil
}

func (s *Store) CountAccountsByOwnerTx(ctx context.Context, _ domain.Querier, ownerID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, a := range s.accounts {
		if a.OwnerID == ownerID {
			count++
		}
	}
	return count, nil
}

func (s *Store) UpdateBalanceTx(ctx context.Context, _ domain.Querier, accountID string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	if account.Balance+delta < 0 {
		return domain.ErrInsufficientBalance
	}
	account.Balance += delta
	s.accounts[accountID] = account
	return nil
}

func (s *Store) CloseAccountTx(ctx context.Context, _ domain.Querier, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.accounts[account.ID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	stored.Status = account.Status
	stored.UnregisteredAt = account.UnregisteredAt
	s.accounts[account.ID] = stored
	return nil
}

func (s *Store) NextAccountNumberTx(ctx context.Context, _ domain.Querier) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	number := strconv.FormatInt(s.nextNumber, 10)
	s.nextNumber++
	return number, nil
}

func (s *Store) CreateTransactionTx(ctx context.Context, _ domain.Querier, txn *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.txnIndex[txn.TransactionID]; exists {
		return fmt.Errorf("transaction id collision for %s", txn.TransactionID)
	}
	s.transactions = append(s.transactions, *txn)
	s.txnIndex[txn.TransactionID] = len(s.transactions) - 1
	return nil
}

func (s *Store) GetByTransactionIDTx(ctx context.Context, _ domain.Querier, transactionID string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.txnIndex[transactionID]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	txn := s.transactions[i]
	return &txn, nil
}

// TransactionsForAccount returns the journal entries for one account in append
// order. Test helper; the service itself only reads by transaction id.
func (s *Store) TransactionsForAccount(accountID string) []domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []domain.Transaction
	for _, t := range s.transactions {
		if t.AccountID == accountID {
			entries = append(entries, t)
		}
	}
	return entries
}

func (s *Store) CreateMessageTx(ctx context.Context, _ domain.Querier, msg *domain.OutboxMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.outbox = append(s.outbox, *msg)
	return nil
}

func (s *Store) GetPendingMessagesTx(ctx context.Context, _ domain.Querier, limit int) ([]domain.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []domain.OutboxMessage
	for _, m := range s.outbox {
		if m.Status == domain.OutboxStatusPending {
			pending = append(pending, m)
			if len(pending) == limit {
				break
			}
		}
	}
	return pending, nil
}

func (s *Store) MarkMessagesAsSentTx(ctx context.Context, _ domain.Querier, ids []string) error {
	return s.markMessages(ids, domain.OutboxStatusSent)
}

func (s *Store) MarkMessagesAsFailedTx(ctx context.Context, _ domain.Querier, ids []string) error {
	return s.markMessages(ids, domain.OutboxStatusFailed)
}

func (s *Store) markMessages(ids []string, status domain.OutboxMessageStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	marked := make(map[string]bool, len(ids))
	for _, id := range ids {
		marked[id] = true
	}
	for i := range s.outbox {
		if marked[s.outbox[i].ID] {
			s.outbox[i].Status = status
		}
	}
	return nil
}

// OutboxMessages returns a copy of every outbox message. Test helper.
func (s *Store) OutboxMessages() []domain.OutboxMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := make([]domain.OutboxMessage, len(s.outbox))
	copy(messages, s.outbox)
	return messages
}
