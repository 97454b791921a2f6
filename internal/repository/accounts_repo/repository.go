package accounts_repo

import (
	"context"

	"ledger/internal/domain"
)

type AccountRepository interface {
	CreateAccountTx(ctx context.Context, querier domain.Querier, account *domain.Account) error
	GetAccountByNumberTx(ctx context.Context, querier domain.Querier, number string) (*domain.Account, error)
	ListAccountsByOwnerTx(ctx context.Context, querier domain.Querier, ownerID int64) ([]*domain.Account, error)
	CountAccountsByOwnerTx(ctx context.Context, querier domain.Querier, ownerID int64) (int, error)
	// UpdateBalanceTx applies a signed delta to the account balance.
	UpdateBalanceTx(ctx context.Context, querier domain.Querier, accountID string, delta int64) error
	CloseAccountTx(ctx context.Context, querier domain.Querier, account *domain.Account) error
	// NextAccountNumberTx allocates a fresh account number from an atomic,
	// monotonic sequence. Two concurrent registrations never see the same value.
	NextAccountNumberTx(ctx context.Context, querier domain.Querier) (string, error)
}
