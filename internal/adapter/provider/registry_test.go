package provider

import (
	"testing"
	"time"

	"payment-orchestrator/config"
	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_BuildsConfiguredAdapters(t *testing.T) {
	cfg := &config.Config{
		Providers: map[string]config.ProviderConfig{
			"krxpay": {BaseURL: "https://api.krxpay.test", APIKey: "sk", WebhookSecret: "wh", Timeout: 5 * time.Second, Active: true},
			"stripe": {BaseURL: "https://api.stripe.test", APIKey: "sk", WebhookSecret: "wh", Timeout: 5 * time.Second, Active: true},
			// Present but deactivated: no adapter.
			"appmax": {BaseURL: "https://api.appmax.test", APIKey: "sk", Active: false},
		},
	}

	r := NewRegistry(cfg, &fakeHTTPClient{}, zerolog.Nop())

	krx, err := r.Adapter(domain.ProviderKRXPay)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderKRXPay, krx.Name())

	stripe, err := r.Adapter(domain.ProviderStripe)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderStripe, stripe.Name())

	assert.True(t, r.Configured(domain.ProviderKRXPay))
	assert.False(t, r.Configured(domain.ProviderAppmax))
	assert.False(t, r.Configured(domain.ProviderOpenFinance))
}

func TestRegistry_Adapter_NotConfigured(t *testing.T) {
	r := NewRegistry(&config.Config{}, &fakeHTTPClient{}, zerolog.Nop())

	adapter, err := r.Adapter(domain.ProviderKRXPay)
	assert.Nil(t, adapter)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "CFG_002", appErr.Code)
}
