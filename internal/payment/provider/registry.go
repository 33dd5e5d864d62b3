package provider

import (
	"log/slog"

	"github.com/dukkan/commerce-core/internal/payment/domain"
)

// Registry maps provider identifiers to adapter instances. It is built once
// at startup from the adapters enabled by configuration and is read-only
// afterwards.
type Registry struct {
	providers map[domain.Provider]Provider
}

func NewRegistry(log *slog.Logger, providers ...Provider) *Registry {
	m := make(map[domain.Provider]Provider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
		log.Info("payment provider registered", "provider", p.Name())
	}
	return &Registry{providers: m}
}

func (r *Registry) Get(name domain.Provider) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

func (r *Registry) Names() []domain.Provider {
	names := make([]domain.Provider, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
