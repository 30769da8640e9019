package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/snackhouse/api/internal/platform/firestore"
	"github.com/snackhouse/api/internal/repositories"
)

// Registry bundles the Firestore-backed repositories behind the generic
// repositories.Registry contract used by dependency injection.
type Registry struct {
	provider *pfirestore.Provider

	orders   *OrderRepository
	statuses *OrderStatusRepository
	counters *CounterRepository
	health   repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// RegistryOption customises registry construction.
type RegistryOption func(*Registry)

// WithHealthRepository sets the health repository exposed by the registry.
func WithHealthRepository(health repositories.HealthRepository) RegistryOption {
	return func(r *Registry) {
		r.health = health
	}
}

// NewRegistry wires the Firestore repositories against a shared provider.
func NewRegistry(provider *pfirestore.Provider, opts ...RegistryOption) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	statuses, err := NewOrderStatusRepository(provider)
	if err != nil {
		return nil, err
	}
	counters, err := NewCounterRepository(provider)
	if err != nil {
		return nil, err
	}

	registry := &Registry{
		provider: provider,
		orders:   orders,
		statuses: statuses,
		counters: counters,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(registry)
		}
	}
	return registry, nil
}

// Orders returns the order repository.
func (r *Registry) Orders() repositories.OrderRepository {
	if r == nil {
		return nil
	}
	return r.orders
}

// OrderStatuses returns the status catalog repository.
func (r *Registry) OrderStatuses() repositories.OrderStatusRepository {
	if r == nil {
		return nil
	}
	return r.statuses
}

// Counters returns the sequence counter repository.
func (r *Registry) Counters() repositories.CounterRepository {
	if r == nil {
		return nil
	}
	return r.counters
}

// Health returns the dependency health repository when configured.
func (r *Registry) Health() repositories.HealthRepository {
	if r == nil {
		return nil
	}
	return r.health
}

// RunInTx executes fn as a single unit. Order aggregates embed their items and
// movement history in one document, so each repository write is already atomic
// and fn runs against the plain context.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return errors.New("registry: transaction function is required")
	}
	return fn(ctx)
}

// Close releases the shared Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}
