package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"ledger/internal/domain"

	"github.com/lib/pq"
)

type AccountRepository struct{}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{}
}

func (r *AccountRepository) CreateAccountTx(ctx context.Context, querier domain.Querier, account *domain.Account) error {
	query := `
		INSERT INTO accounts (id, owner_id, account_number, status, balance, registered_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := querier.ExecContext(ctx, query,
		account.ID, account.OwnerID, account.Number, account.Status,
		account.Balance, account.RegisteredAt, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			return domain.ErrDuplicateAccountNumber
		}
		return fmt.Errorf("failed to create account %s: %w", account.Number, err)
	}
	return nil
}

func (r *AccountRepository) GetAccountByNumberTx(ctx context.Context, querier domain.Querier, number string) (*domain.Account, error) {
	query := `
		SELECT id, owner_id, account_number, status, balance, registered_at, unregistered_at, created_at, updated_at
		FROM accounts
		WHERE account_number = $1
		FOR UPDATE
	`
	account := &domain.Account{}
	var unregisteredAt sql.NullTime
	err := querier.QueryRowContext(ctx, query, number).Scan(
		&account.ID,
		&account.OwnerID,
		&account.Number,
		&account.Status,
		&account.Balance,
		&account.RegisteredAt,
		&unregisteredAt,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account %s: %w", number, err)
	}
	if unregisteredAt.Valid {
		account.UnregisteredAt = &unregisteredAt.Time
	}
	return account, nil
}

func (r *AccountRepository) ListAccountsByOwnerTx(ctx context.Context, querier domain.Querier, ownerID int64) ([]*domain.Account, error) {
	query := `
		SELECT id, owner_id, account_number, status, balance, registered_at, unregistered_at, created_at, updated_at
		FROM accounts
		WHERE owner_id = $1
		ORDER BY registered_at
	`
	rows, err := querier.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts for owner %d: %w", ownerID, err)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		account := &domain.Account{}
		var unregisteredAt sql.NullTime
		err := rows.Scan(
			&account.ID,
			&account.OwnerID,
			&account.Number,
			&account.Status,
			&account.Balance,
			&account.RegisteredAt,
			&unregisteredAt,
			&account.CreatedAt,
			&account.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		if unregisteredAt.Valid {
			account.UnregisteredAt = &unregisteredAt.Time
		}
		accounts = append(accounts, account)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return accounts, nil
}

func (r *AccountRepository) CountAccountsByOwnerTx(ctx context.Context, querier domain.Querier, ownerID int64) (int, error) {
	query := `SELECT COUNT(*) FROM accounts WHERE owner_id = $1`
	var count int
	if err := querier.QueryRowContext(ctx, query, ownerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count accounts for owner %d: %w", ownerID, err)
	}
	return count, nil
}

func (r *AccountRepository) UpdateBalanceTx(ctx context.Context, querier domain.Querier, accountID string, delta int64) error {
	query := `
		UPDATE accounts
		SET balance = balance + $1, updated_at = $2
		WHERE id = $3
	`
	res, err := querier.ExecContext(ctx, query, delta, time.Now(), accountID)
	if err != nil {
		// the balance_non_negative CHECK backstops the engine's own validation
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23514" {
			return domain.ErrInsufficientBalance
		}
		return fmt.Errorf("failed to update balance for account %s: %w", accountID, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) CloseAccountTx(ctx context.Context, querier domain.Querier, account *domain.Account) error {
	query := `
		UPDATE accounts
		SET status = $1, unregistered_at = $2, updated_at = $3
		WHERE id = $4
	`
	res, err := querier.ExecContext(ctx, query, account.Status, account.UnregisteredAt, time.Now(), account.ID)
	if err != nil {
		return fmt.Errorf("failed to close account %s: %w", account.ID, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) NextAccountNumberTx(ctx context.Context, querier domain.Querier) (string, error) {
	var next int64
	if err := querier.QueryRowContext(ctx, `SELECT nextval('account_numbers')`).Scan(&next); err != nil {
		return "", fmt.Errorf("failed to allocate account number: %w", err)
	}
	return strconv.FormatInt(next, 10), nil
}
