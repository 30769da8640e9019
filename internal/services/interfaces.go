package services

import (
	"context"
	"time"

	domain "github.com/snackhouse/api/internal/domain"
)

// Actor identifies who is driving an order operation. Anonymous callers have
// an empty ID; System is reserved for machine-initiated transitions such as
// payment confirmations.
type Actor struct {
	ID       string
	Name     string
	Employee bool
	System   bool
}

// SystemActor is the machine actor used by webhooks and background flows.
var SystemActor = Actor{ID: domain.ActorSystem, System: true}

// CreateOrderCommand starts a new order for a customer.
type CreateOrderCommand struct {
	Actor Actor
}

// AddItemCommand appends a product to an order in a collecting stage.
type AddItemCommand struct {
	OrderID     int64
	ProductID   int64
	Quantity    int
	Observation string
	Actor       Actor
}

// ChangeItemQuantityCommand replaces the quantity of an existing line item.
type ChangeItemQuantityCommand struct {
	OrderID  int64
	ItemID   int64
	Quantity int
	Actor    Actor
}

// ChangeItemObservationCommand replaces the free-text note on a line item.
type ChangeItemObservationCommand struct {
	OrderID     int64
	ItemID      int64
	Observation string
	Actor       Actor
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	CustomerID    string
	Status        []domain.StatusCode
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// OrderService orchestrates the order lifecycle on top of the domain aggregate.
type OrderService interface {
	Create(ctx context.Context, cmd CreateOrderCommand) (domain.Order, error)
	Get(ctx context.Context, orderID int64) (domain.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]domain.Order, error)
	ListItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error)
	ListMovements(ctx context.Context, orderID int64) ([]domain.StatusMovement, error)
	ListStageProducts(ctx context.Context, orderID int64) ([]StageProduct, error)

	AddItem(ctx context.Context, cmd AddItemCommand) (domain.Order, error)
	RemoveItem(ctx context.Context, orderID, itemID int64, actor Actor) (domain.Order, error)
	ChangeItemQuantity(ctx context.Context, cmd ChangeItemQuantityCommand) (domain.Order, error)
	ChangeItemObservation(ctx context.Context, cmd ChangeItemObservationCommand) (domain.Order, error)
	ClearItems(ctx context.Context, orderID int64, actor Actor) (domain.Order, error)

	Advance(ctx context.Context, orderID int64, actor Actor) (domain.Order, error)
	Revert(ctx context.Context, orderID int64, actor Actor) (domain.Order, error)
	Cancel(ctx context.Context, orderID int64, actor Actor) (domain.Order, error)
}

// StageProduct is a catalog product offered for the order's current stage.
type StageProduct struct {
	ID       int64
	Name     string
	SKU      string
	Price    int64
	Category domain.ProductCategory
}

// UpsertStatusCommand carries catalog administration input.
type UpsertStatusCommand struct {
	ID          int64
	Code        domain.StatusCode
	Description string
}

// StatusService administers the status reference catalog and resolves codes
// for the domain layer.
type StatusService interface {
	domain.StatusLookup

	List(ctx context.Context) ([]domain.OrderStatus, error)
	GetByID(ctx context.Context, statusID int64) (domain.OrderStatus, error)
	GetByCode(ctx context.Context, code domain.StatusCode) (domain.OrderStatus, error)
	Create(ctx context.Context, cmd UpsertStatusCommand) (domain.OrderStatus, error)
	Update(ctx context.Context, cmd UpsertStatusCommand) (domain.OrderStatus, error)
	Delete(ctx context.Context, statusID int64) error
	Seed(ctx context.Context) error
}

// PaymentNotification is the webhook payload announcing a payment state change.
type PaymentNotification struct {
	PaymentID string
	Status    string
}

// WebhookService consumes payment provider notifications.
type WebhookService interface {
	HandlePaymentNotification(ctx context.Context, notification PaymentNotification) (domain.Order, error)
}

// SystemHealthReport is the service-level readiness report.
type SystemHealthReport struct {
	Status      string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
	Checks      map[string]domain.SystemHealthCheck
}

// SystemService aggregates utility endpoints (health checks).
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// OrderEvent captures metadata for emitted order lifecycle events.
type OrderEvent struct {
	Type           string    `json:"type"`
	OrderID        int64     `json:"order_id"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	CurrentStatus  string    `json:"current_status"`
	ChangedBy      string    `json:"changed_by"`
	Total          int64     `json:"total"`
	PaymentID      string    `json:"payment_id,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// OrderEventPublisher publishes order lifecycle events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}
