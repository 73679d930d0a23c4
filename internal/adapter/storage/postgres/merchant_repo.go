package postgres

import (
	"context"
	"errors"
	"fmt"

	"payment-orchestrator/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MerchantRepo implements ports.MerchantRepository.
type MerchantRepo struct {
	pool Pool
}

// NewMerchantRepo creates a new MerchantRepo.
func NewMerchantRepo(pool Pool) *MerchantRepo {
	return &MerchantRepo{pool: pool}
}

// GetByID fetches a merchant by UUID. Returns nil, nil when absent.
func (r *MerchantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Merchant, error) {
	query := `SELECT id, name, country, status, created_at, updated_at
		FROM merchants WHERE id = $1`

	m := &domain.Merchant{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&m.ID, &m.Name, &m.Country, &m.Status, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan merchant: %w", err)
	}
	return m, nil
}

// ListIntegrations returns all provider integrations for a merchant,
// earliest-connected first.
func (r *MerchantRepo) ListIntegrations(ctx context.Context, merchantID uuid.UUID) ([]domain.MerchantIntegration, error) {
	query := `SELECT id, merchant_id, provider, account_id, active, connected_at
		FROM merchant_integrations WHERE merchant_id = $1 ORDER BY connected_at ASC`

	rows, err := r.pool.Query(ctx, query, merchantID)
	if err != nil {
		return nil, fmt.Errorf("list integrations: %w", err)
	}
	defer rows.Close()

	var out []domain.MerchantIntegration
	for rows.Next() {
		var it domain.MerchantIntegration
		if err := rows.Scan(&it.ID, &it.MerchantID, &it.Provider, &it.AccountID, &it.Active, &it.ConnectedAt); err != nil {
			return nil, fmt.Errorf("scan integration row: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate integration rows: %w", err)
	}
	return out, nil
}
