package service

import (
	"context"
	"fmt"

	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/internal/core/ports"
	"payment-orchestrator/pkg/apperror"

	"github.com/rs/zerolog"
)

// RoutingServiceImpl implements ports.RoutingService as a priority
// cascade over a consistent snapshot of the merchant's routing
// configuration. Resolution is pure: same snapshot and query, same
// decision.
type RoutingServiceImpl struct {
	routingRepo     ports.RoutingRepository
	defaultProvider domain.Provider
	log             zerolog.Logger
}

// NewRoutingService creates a new RoutingServiceImpl.
func NewRoutingService(routingRepo ports.RoutingRepository, defaultProvider domain.Provider, log zerolog.Logger) *RoutingServiceImpl {
	return &RoutingServiceImpl{
		routingRepo:     routingRepo,
		defaultProvider: defaultProvider,
		log:             log,
	}
}

// SelectProvider resolves exactly one provider for the query.
func (s *RoutingServiceImpl) SelectProvider(ctx context.Context, q ports.RouteQuery) (*ports.RouteDecision, error) {
	snap, err := s.routingRepo.Snapshot(ctx, q)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load routing snapshot: %w", err))
	}

	decision := resolve(snap, q, s.defaultProvider)
	if decision.ConfigError {
		s.log.Warn().
			Str("merchant_id", q.MerchantID.String()).
			Str("provider", string(decision.Provider)).
			Msg("No active provider integration, falling back to platform default")
	}
	return decision, nil
}

// resolve walks the cascade: offer preference, country price records,
// routing rules (offer, product, global scope), then fallbacks.
func resolve(snap *domain.RoutingSnapshot, q ports.RouteQuery, platformDefault domain.Provider) *ports.RouteDecision {
	active := make(map[domain.Provider]domain.MerchantIntegration)
	for _, it := range snap.Integrations {
		if it.Active {
			if _, seen := active[it.Provider]; !seen {
				active[it.Provider] = it
			}
		}
	}

	pick := func(p domain.Provider) (*ports.RouteDecision, bool) {
		it, ok := active[p]
		if !ok {
			return nil, false
		}
		return &ports.RouteDecision{Provider: p, AccountID: it.AccountID}, true
	}

	// 1. Offer-level preferred provider.
	if snap.Offer != nil && snap.Offer.PreferredProvider != nil {
		if d, ok := pick(*snap.Offer.PreferredProvider); ok {
			return d
		}
	}

	// 2. Country price records. The platform default wins when it is listed
	// for the country; otherwise the first listed provider with an active
	// integration does.
	if len(snap.Prices) > 0 {
		for _, price := range snap.Prices {
			if price.Provider == platformDefault {
				if d, ok := pick(platformDefault); ok {
					return d
				}
			}
		}
		for _, price := range snap.Prices {
			if d, ok := pick(price.Provider); ok {
				return d
			}
		}
	}

	// 3. Routing rules, narrowest scope first. Rules arrive ordered by
	// priority; the first matching rule decides. A matched rule whose
	// provider has no active integration does not yield to lower-priority
	// rules: resolution drops straight to the fallback chain.
	ruleLoop := true
	for _, scope := range []func(*domain.PaymentRoutingRule) bool{
		func(r *domain.PaymentRoutingRule) bool { return r.OfferID != nil && q.OfferID != nil && *r.OfferID == *q.OfferID },
		func(r *domain.PaymentRoutingRule) bool {
			return r.OfferID == nil && r.ProductID != nil && q.ProductID != nil && *r.ProductID == *q.ProductID
		},
		func(r *domain.PaymentRoutingRule) bool { return r.OfferID == nil && r.ProductID == nil },
	} {
		if !ruleLoop {
			break
		}
		for i := range snap.Rules {
			rule := &snap.Rules[i]
			if !scope(rule) || !rule.Matches(q.Country, q.Method) {
				continue
			}
			if d, ok := pick(rule.Provider); ok {
				id := rule.ID
				d.RuleID = &id
				return d
			}
			ruleLoop = false
			break
		}
	}

	// 4. Platform default, then the merchant's earliest connected
	// integration.
	if d, ok := pick(platformDefault); ok {
		return d
	}
	for _, it := range snap.Integrations {
		if it.Active {
			return &ports.RouteDecision{Provider: it.Provider, AccountID: it.AccountID}
		}
	}

	// Nothing usable: return the platform default flagged as a
	// configuration error so money-moving paths refuse it.
	return &ports.RouteDecision{Provider: platformDefault, ConfigError: true}
}
