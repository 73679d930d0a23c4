package provider

import (
	"payment-orchestrator/config"
	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/internal/core/ports"
	"payment-orchestrator/pkg/apperror"

	"github.com/rs/zerolog"
)

// Registry holds the configured provider adapters.
type Registry struct {
	adapters map[domain.Provider]ports.ProviderAdapter
}

// NewRegistry builds adapters for every provider with configuration
// present and active. Providers without credentials are simply absent;
// routing toward them surfaces a configuration error at charge time.
func NewRegistry(cfg *config.Config, httpClient HTTPClient, log zerolog.Logger) *Registry {
	r := &Registry{adapters: make(map[domain.Provider]ports.ProviderAdapter)}

	for _, p := range domain.AllProviders {
		pc, ok := cfg.Provider(string(p))
		if !ok || !pc.Active {
			continue
		}
		switch p {
		case domain.ProviderStripe:
			r.adapters[p] = NewStripe(httpClient, pc.BaseURL, pc.APIKey, pc.WebhookSecret, pc.Timeout, log)
		case domain.ProviderKRXPay:
			r.adapters[p] = NewKRXPay(httpClient, pc.BaseURL, pc.APIKey, pc.WebhookSecret, pc.Timeout, log)
		case domain.ProviderAppmax:
			r.adapters[p] = NewAppmax(httpClient, pc.BaseURL, pc.APIKey, pc.Timeout, log)
		case domain.ProviderOpenFinance:
			r.adapters[p] = NewOpenFinance(httpClient, pc.BaseURL, pc.APIKey, pc.WebhookSecret, pc.Timeout, log)
		}
	}

	log.Info().Int("adapters", len(r.adapters)).Msg("Provider registry initialized")
	return r
}

// Adapter resolves the adapter for a provider code.
func (r *Registry) Adapter(p domain.Provider) (ports.ProviderAdapter, error) {
	adapter, ok := r.adapters[p]
	if !ok {
		return nil, apperror.ErrProviderNotConfigured(string(p))
	}
	return adapter, nil
}

// Configured reports whether an adapter exists for the provider.
func (r *Registry) Configured(p domain.Provider) bool {
	_, ok := r.adapters[p]
	return ok
}
