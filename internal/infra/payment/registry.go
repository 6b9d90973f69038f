package payment

import (
	"context"

	"telegram-vpn-billing/internal/domain"
	"telegram-vpn-billing/internal/domain/model"
	"telegram-vpn-billing/internal/domain/ports/adapter"
	"telegram-vpn-billing/internal/domain/ports/repository"
	"telegram-vpn-billing/internal/usecase"
)

var _ usecase.ProviderRegistry = (*Registry)(nil)

// Registry maps provider ids to their adapters. Built once at startup;
// read-only afterwards, so no locking.
type Registry struct {
	providers map[string]adapter.PaymentProvider
}

func NewRegistry(providers ...adapter.PaymentProvider) *Registry {
	m := make(map[string]adapter.PaymentProvider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	return &Registry{providers: m}
}

func (r *Registry) Get(name string) (adapter.PaymentProvider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Names lists registered provider ids, for the storefront's method picker.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.providers))
	for name := range r.providers {
		out = append(out, name)
	}
	return out
}

var _ CredentialSource = (*settingsCredentialSource)(nil)

// settingsCredentialSource reads per-tenant provider credentials from the
// tenant settings store (usually the redis-cached wrapper).
type settingsCredentialSource struct {
	settings repository.TenantSettingsRepository
}

func NewSettingsCredentialSource(settings repository.TenantSettingsRepository) *settingsCredentialSource {
	return &settingsCredentialSource{settings: settings}
}

func (s *settingsCredentialSource) Credentials(ctx context.Context, tenantID, provider string) (model.ProviderCredentials, error) {
	cfg, err := s.settings.Get(ctx, tenantID)
	if err != nil {
		return model.ProviderCredentials{}, err
	}
	creds, ok := cfg.ProviderCredentials[provider]
	if !ok {
		return model.ProviderCredentials{}, domain.ErrNotFound
	}
	return creds, nil
}
