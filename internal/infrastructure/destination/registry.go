package destination

import (
	"github.com/pulsecdp/backend/internal/domain/shared"
	"github.com/pulsecdp/backend/internal/domain/syncjob"
)

// AdapterRegistry maps destination types to their adapters
type AdapterRegistry struct {
	adapters map[syncjob.DestinationType]syncjob.Adapter
}

// NewRegistry builds a registry from the given adapters
func NewRegistry(adapters ...syncjob.Adapter) *AdapterRegistry {
	byType := make(map[syncjob.DestinationType]syncjob.Adapter, len(adapters))
	for _, adapter := range adapters {
		byType[adapter.Type()] = adapter
	}
	return &AdapterRegistry{adapters: byType}
}

// NewDefaultRegistry builds a registry with every supported platform
func NewDefaultRegistry() *AdapterRegistry {
	return NewRegistry(
		NewKlaviyoAdapter(),
		NewWebhookAdapter(),
		NewGA4Adapter(),
		NewMetaAdapter(),
	)
}

// Adapter resolves the adapter for a destination type
func (r *AdapterRegistry) Adapter(typ syncjob.DestinationType) (syncjob.Adapter, error) {
	adapter, ok := r.adapters[typ]
	if !ok {
		return nil, shared.NewDomainError("UNSUPPORTED_DESTINATION", "no adapter for destination type: "+string(typ))
	}
	return adapter, nil
}
