package repositories

import (
	"context"
	"errors"
	"time"

	domain "github.com/snackhouse/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	OrderStatuses() OrderStatusRepository
	Counters() CounterRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists order aggregates together with their item lists and
// status movement history. Reads exclude soft-deleted orders unless stated otherwise.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID int64) (domain.Order, error)
	FindByPaymentID(ctx context.Context, paymentID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) ([]domain.Order, error)
}

// OrderStatusRepository stores the status reference catalog.
type OrderStatusRepository interface {
	Insert(ctx context.Context, status domain.OrderStatus) error
	Update(ctx context.Context, status domain.OrderStatus) error
	Delete(ctx context.Context, statusID int64) error
	FindByID(ctx context.Context, statusID int64) (domain.OrderStatus, error)
	FindByStatus(ctx context.Context, code domain.StatusCode) (domain.OrderStatus, error)
	ListAll(ctx context.Context) ([]domain.OrderStatus, error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// Filter DTOs shared across repositories ------------------------------------

// OrderListFilter narrows order list queries.
type OrderListFilter struct {
	CustomerID      string
	Status          []domain.StatusCode
	CreatedAfter    *time.Time
	CreatedBefore   *time.Time
	IncludeInactive bool
}

// CounterConfig adjusts counter behaviour such as increments and bounds.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}

// IsRepositoryNotFound reports whether err carries repository not-found semantics.
func IsRepositoryNotFound(err error) bool {
	var repoErr RepositoryError
	if !errors.As(err, &repoErr) {
		return false
	}
	return repoErr.IsNotFound()
}

// IsRepositoryConflict reports whether err carries repository conflict semantics.
func IsRepositoryConflict(err error) bool {
	var repoErr RepositoryError
	if !errors.As(err, &repoErr) {
		return false
	}
	return repoErr.IsConflict()
}
