package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"ledger/internal/domain"
)

type OwnerRepository struct{}

func NewOwnerRepository() *OwnerRepository {
	return &OwnerRepository{}
}

func (r *OwnerRepository) CreateOwnerTx(ctx context.Context, querier domain.Querier, owner *domain.Owner) (*domain.Owner, error) {
	query := `
		INSERT INTO owners (name, created_at)
		VALUES ($1, $2)
		RETURNING id
	`
	err := querier.QueryRowContext(ctx, query, owner.Name, owner.CreatedAt).Scan(&owner.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create owner: %w", err)
	}
	return owner, nil
}

func (r *OwnerRepository) GetOwnerTx(ctx context.Context, querier domain.Querier, ownerID int64) (*domain.Owner, error) {
	query := `
		SELECT id, name, created_at
		FROM owners
		WHERE id = $1
	`
	owner := &domain.Owner{}
	err := querier.QueryRowContext(ctx, query, ownerID).Scan(&owner.ID, &owner.Name, &owner.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrOwnerNotFound
		}
		return nil, fmt.Errorf("failed to get owner %d: %w", ownerID, err)
	}
	return owner, nil
}
