package postgres

import (
	"context"
	"errors"
	"fmt"

	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// RoutingRepo implements ports.RoutingRepository.
type RoutingRepo struct {
	pool Pool
}

// NewRoutingRepo creates a new RoutingRepo.
func NewRoutingRepo(pool Pool) *RoutingRepo {
	return &RoutingRepo{pool: pool}
}

// Snapshot loads every input of one provider-selection call inside a
// single database transaction, so the resolution never observes a
// half-applied rule change.
func (r *RoutingRepo) Snapshot(ctx context.Context, q ports.RouteQuery) (*domain.RoutingSnapshot, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin routing snapshot: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	snap := &domain.RoutingSnapshot{}

	if q.OfferID != nil {
		offer, prices, err := r.loadOffer(ctx, tx, q)
		if err != nil {
			return nil, err
		}
		snap.Offer = offer
		snap.Prices = prices
	}

	if snap.Rules, err = r.loadRules(ctx, tx, q); err != nil {
		return nil, err
	}
	if snap.Integrations, err = r.loadIntegrations(ctx, tx, q); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit routing snapshot: %w", err)
	}
	return snap, nil
}

func (r *RoutingRepo) loadOffer(ctx context.Context, tx pgx.Tx, q ports.RouteQuery) (*domain.Offer, []domain.OfferPrice, error) {
	offer := &domain.Offer{}
	err := tx.QueryRow(ctx,
		`SELECT id, merchant_id, product_id, preferred_provider FROM offers WHERE id = $1`,
		*q.OfferID,
	).Scan(&offer.ID, &offer.MerchantID, &offer.ProductID, &offer.PreferredProvider)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("scan offer: %w", err)
	}

	if q.Country == nil {
		return offer, nil, nil
	}

	rows, err := tx.Query(ctx,
		`SELECT id, offer_id, country, currency, price_cents, provider, position
		 FROM offer_prices WHERE offer_id = $1 AND country = $2 ORDER BY position ASC`,
		*q.OfferID, *q.Country)
	if err != nil {
		return nil, nil, fmt.Errorf("load offer prices: %w", err)
	}
	defer rows.Close()

	var prices []domain.OfferPrice
	for rows.Next() {
		var p domain.OfferPrice
		if err := rows.Scan(&p.ID, &p.OfferID, &p.Country, &p.Currency, &p.PriceCents, &p.Provider, &p.Position); err != nil {
			return nil, nil, fmt.Errorf("scan offer price row: %w", err)
		}
		prices = append(prices, p)
	}
	return offer, prices, rows.Err()
}

func (r *RoutingRepo) loadRules(ctx context.Context, tx pgx.Tx, q ports.RouteQuery) ([]domain.PaymentRoutingRule, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, merchant_id, offer_id, product_id, country, method, provider, priority, is_active
		 FROM payment_routing_rules
		 WHERE merchant_id = $1 AND is_active = true
		 ORDER BY priority ASC, id ASC`,
		q.MerchantID)
	if err != nil {
		return nil, fmt.Errorf("load routing rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.PaymentRoutingRule
	for rows.Next() {
		var rule domain.PaymentRoutingRule
		if err := rows.Scan(&rule.ID, &rule.MerchantID, &rule.OfferID, &rule.ProductID,
			&rule.Country, &rule.Method, &rule.Provider, &rule.Priority, &rule.IsActive); err != nil {
			return nil, fmt.Errorf("scan routing rule row: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *RoutingRepo) loadIntegrations(ctx context.Context, tx pgx.Tx, q ports.RouteQuery) ([]domain.MerchantIntegration, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, merchant_id, provider, account_id, active, connected_at
		 FROM merchant_integrations WHERE merchant_id = $1 ORDER BY connected_at ASC`,
		q.MerchantID)
	if err != nil {
		return nil, fmt.Errorf("load merchant integrations: %w", err)
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
	return out, rows.Err()
}
