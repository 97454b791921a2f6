package owners_repo

import (
	"context"

	"ledger/internal/domain"
)

type OwnerRepository interface {
	CreateOwnerTx(ctx context.Context, querier domain.Querier, owner *domain.Owner) (*domain.Owner, error)
	GetOwnerTx(ctx context.Context, querier domain.Querier, ownerID int64) (*domain.Owner, error)
}
