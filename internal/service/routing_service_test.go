package service

import (
	"context"
	"errors"
	"testing"

	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/internal/core/ports"
	"payment-orchestrator/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type routingTestDeps struct {
	svc         *RoutingServiceImpl
	routingRepo *mocks.MockRoutingRepository
	ctrl        *gomock.Controller
}

func setupRoutingService(t *testing.T) *routingTestDeps {
	ctrl := gomock.NewController(t)
	d := &routingTestDeps{
		routingRepo: mocks.NewMockRoutingRepository(ctrl),
		ctrl:        ctrl,
	}
	d.svc = NewRoutingService(d.routingRepo, domain.ProviderKRXPay, zerolog.Nop())
	return d
}

func integration(p domain.Provider, accountID string, active bool) domain.MerchantIntegration {
	return domain.MerchantIntegration{
		ID:        uuid.New(),
		Provider:  p,
		AccountID: accountID,
		Active:    active,
	}
}

func providerPtr(p domain.Provider) *domain.Provider { return &p }

func strPtr(s string) *string { return &s }

// ==================== SelectProvider Tests ====================

func TestRoutingService_SelectProvider_OfferPreferenceWins(t *testing.T) {
	d := setupRoutingService(t)
	defer d.ctrl.Finish()

	offerID := uuid.New()
	q := ports.RouteQuery{MerchantID: uuid.New(), OfferID: &offerID}
	snap := &domain.RoutingSnapshot{
		Offer: &domain.Offer{ID: offerID, PreferredProvider: providerPtr(domain.ProviderStripe)},
		Prices: []domain.OfferPrice{
			{OfferID: offerID, Country: "BR", Provider: domain.ProviderKRXPay, Position: 0},
		},
		Integrations: []domain.MerchantIntegration{
			integration(domain.ProviderKRXPay, "acct_krx", true),
			integration(domain.ProviderStripe, "acct_str", true),
		},
	}
	d.routingRepo.EXPECT().Snapshot(gomock.Any(), q).Return(snap, nil)

	decision, err := d.svc.SelectProvider(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderStripe, decision.Provider)
	assert.Equal(t, "acct_str", decision.AccountID)
	assert.False(t, decision.ConfigError)
}

func TestRoutingService_SelectProvider_PreferenceWithoutIntegrationFallsThrough(t *testing.T) {
	d := setupRoutingService(t)
	defer d.ctrl.Finish()

	offerID := uuid.New()
	q := ports.RouteQuery{MerchantID: uuid.New(), OfferID: &offerID}
	snap := &domain.RoutingSnapshot{
		Offer: &domain.Offer{ID: offerID, PreferredProvider: providerPtr(domain.ProviderAppmax)},
		Prices: []domain.OfferPrice{
			{OfferID: offerID, Country: "BR", Provider: domain.ProviderStripe, Position: 0},
		},
		Integrations: []domain.MerchantIntegration{
			integration(domain.ProviderStripe, "acct_str", true),
		},
	}
	d.routingRepo.EXPECT().Snapshot(gomock.Any(), q).Return(snap, nil)

	decision, err := d.svc.SelectProvider(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderStripe, decision.Provider)
}

func TestRoutingService_SelectProvider_PlatformDefaultWinsAmongPrices(t *testing.T) {
	d := setupRoutingService(t)
	defer d.ctrl.Finish()

	offerID := uuid.New()
	q := ports.RouteQuery{MerchantID: uuid.New(), OfferID: &offerID}
	// Stripe is listed first, but KRXPAY is also priced for the country and
	// KRXPAY is the platform default.
	snap := &domain.RoutingSnapshot{
		Prices: []domain.OfferPrice{
			{OfferID: offerID, Country: "BR", Provider: domain.ProviderStripe, Position: 0},
			{OfferID: offerID, Country: "BR", Provider: domain.ProviderKRXPay, Position: 1},
		},
		Integrations: []domain.MerchantIntegration{
			integration(domain.ProviderStripe, "acct_str", true),
			integration(domain.ProviderKRXPay, "acct_krx", true),
		},
	}
	d.routingRepo.EXPECT().Snapshot(gomock.Any(), q).Return(snap, nil)

	decision, err := d.svc.SelectProvider(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderKRXPay, decision.Provider)
	assert.Equal(t, "acct_krx", decision.AccountID)
}

func TestRoutingService_SelectProvider_FirstPricedWithIntegration(t *testing.T) {
	d := setupRoutingService(t)
	defer d.ctrl.Finish()

	offerID := uuid.New()
	q := ports.RouteQuery{MerchantID: uuid.New(), OfferID: &offerID}
	snap := &domain.RoutingSnapshot{
		Prices: []domain.OfferPrice{
			{OfferID: offerID, Country: "US", Provider: domain.ProviderAppmax, Position: 0},
			{OfferID: offerID, Country: "US", Provider: domain.ProviderStripe, Position: 1},
		},
		Integrations: []domain.MerchantIntegration{
			// Appmax is listed first but disconnected.
			integration(domain.ProviderAppmax, "acct_apx", false),
			integration(domain.ProviderStripe, "acct_str", true),
		},
	}
	d.routingRepo.EXPECT().Snapshot(gomock.Any(), q).Return(snap, nil)

	decision, err := d.svc.SelectProvider(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderStripe, decision.Provider)
}

func TestRoutingService_SelectProvider_OfferRuleBeatsGlobalRule(t *testing.T) {
	d := setupRoutingService(t)
	defer d.ctrl.Finish()

	offerID := uuid.New()
	offerRuleID := uuid.New()
	q := ports.RouteQuery{MerchantID: uuid.New(), OfferID: &offerID, Country: strPtr("BR")}
	snap := &domain.RoutingSnapshot{
		Rules: []domain.PaymentRoutingRule{
			// Global rule first in priority order, but the offer-scoped rule
			// wins on scope.
			{ID: uuid.New(), Provider: domain.ProviderKRXPay, Priority: 0, IsActive: true},
			{ID: offerRuleID, OfferID: &offerID, Provider: domain.ProviderStripe, Priority: 10, IsActive: true},
		},
		Integrations: []domain.MerchantIntegration{
			integration(domain.ProviderKRXPay, "acct_krx", true),
			integration(domain.ProviderStripe, "acct_str", true),
		},
	}
	d.routingRepo.EXPECT().Snapshot(gomock.Any(), q).Return(snap, nil)

	decision, err := d.svc.SelectProvider(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderStripe, decision.Provider)
	require.NotNil(t, decision.RuleID)
	assert.Equal(t, offerRuleID, *decision.RuleID)
}

func TestRoutingService_SelectProvider_RuleConstraintsFilter(t *testing.T) {
	d := setupRoutingService(t)
	defer d.ctrl.Finish()

	pix := domain.MethodPix
	q := ports.RouteQuery{MerchantID: uuid.New(), Country: strPtr("BR"), Method: &pix}
	cardOnly := domain.MethodCard
	snap := &domain.RoutingSnapshot{
		Rules: []domain.PaymentRoutingRule{
			{ID: uuid.New(), Country: strPtr("BR"), Method: &cardOnly, Provider: domain.ProviderStripe, Priority: 0, IsActive: true},
			{ID: uuid.New(), Country: strPtr("BR"), Provider: domain.ProviderAppmax, Priority: 1, IsActive: true},
		},
		Integrations: []domain.MerchantIntegration{
			integration(domain.ProviderStripe, "acct_str", true),
			integration(domain.ProviderAppmax, "acct_apx", true),
		},
	}
	d.routingRepo.EXPECT().Snapshot(gomock.Any(), q).Return(snap, nil)

	decision, err := d.svc.SelectProvider(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderAppmax, decision.Provider)
}

func TestRoutingService_SelectProvider_InactiveRuleProviderFallsToDefault(t *testing.T) {
	d := setupRoutingService(t)
	defer d.ctrl.Finish()

	offerID := uuid.New()
	q := ports.RouteQuery{MerchantID: uuid.New(), OfferID: &offerID, Country: strPtr("BR")}
	snap := &domain.RoutingSnapshot{
		Rules: []domain.PaymentRoutingRule{
			// The offer rule matches first but Stripe is disconnected. The
			// global Appmax rule must NOT take over: resolution goes to the
			// platform default instead.
			{ID: uuid.New(), OfferID: &offerID, Provider: domain.ProviderStripe, Priority: 0, IsActive: true},
			{ID: uuid.New(), Provider: domain.ProviderAppmax, Priority: 1, IsActive: true},
		},
		Integrations: []domain.MerchantIntegration{
			integration(domain.ProviderStripe, "acct_str", false),
			integration(domain.ProviderAppmax, "acct_apx", true),
			integration(domain.ProviderKRXPay, "acct_krx", true),
		},
	}
	d.routingRepo.EXPECT().Snapshot(gomock.Any(), q).Return(snap, nil)

	decision, err := d.svc.SelectProvider(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderKRXPay, decision.Provider)
	assert.Equal(t, "acct_krx", decision.AccountID)
	assert.Nil(t, decision.RuleID)
}

func TestRoutingService_SelectProvider_PlatformDefaultFallback(t *testing.T) {
	d := setupRoutingService(t)
	defer d.ctrl.Finish()

	q := ports.RouteQuery{MerchantID: uuid.New()}
	snap := &domain.RoutingSnapshot{
		Integrations: []domain.MerchantIntegration{
			integration(domain.ProviderStripe, "acct_str", true),
			integration(domain.ProviderKRXPay, "acct_krx", true),
		},
	}
	d.routingRepo.EXPECT().Snapshot(gomock.Any(), q).Return(snap, nil)

	decision, err := d.svc.SelectProvider(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderKRXPay, decision.Provider)
	assert.Nil(t, decision.RuleID)
}

func TestRoutingService_SelectProvider_EarliestIntegrationFallback(t *testing.T) {
	d := setupRoutingService(t)
	defer d.ctrl.Finish()

	q := ports.RouteQuery{MerchantID: uuid.New()}
	snap := &domain.RoutingSnapshot{
		Integrations: []domain.MerchantIntegration{
			integration(domain.ProviderAppmax, "acct_apx", false),
			integration(domain.ProviderStripe, "acct_str", true),
		},
	}
	d.routingRepo.EXPECT().Snapshot(gomock.Any(), q).Return(snap, nil)

	decision, err := d.svc.SelectProvider(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderStripe, decision.Provider)
	assert.Equal(t, "acct_str", decision.AccountID)
	assert.False(t, decision.ConfigError)
}

func TestRoutingService_SelectProvider_NoIntegrationsFlagsConfigError(t *testing.T) {
	d := setupRoutingService(t)
	defer d.ctrl.Finish()

	q := ports.RouteQuery{MerchantID: uuid.New()}
	d.routingRepo.EXPECT().Snapshot(gomock.Any(), q).Return(&domain.RoutingSnapshot{}, nil)

	decision, err := d.svc.SelectProvider(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderKRXPay, decision.Provider)
	assert.True(t, decision.ConfigError)
	assert.Empty(t, decision.AccountID)
}

func TestRoutingService_SelectProvider_SnapshotError(t *testing.T) {
	d := setupRoutingService(t)
	defer d.ctrl.Finish()

	q := ports.RouteQuery{MerchantID: uuid.New()}
	d.routingRepo.EXPECT().Snapshot(gomock.Any(), q).Return(nil, errors.New("db down"))

	decision, err := d.svc.SelectProvider(context.Background(), q)
	assert.Nil(t, decision)
	assertAppError(t, err, "SYS_001")
}
