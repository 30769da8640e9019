package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	"github.com/snackhouse/api/internal/catalog"
	domain "github.com/snackhouse/api/internal/domain"
	"github.com/snackhouse/api/internal/payments"
	"github.com/snackhouse/api/internal/repositories"
)

const (
	orderEventCreated       = "order.created"
	orderEventStatusChanged = "order.status.changed"

	orderCounterID     = "orders"
	orderItemCounterID = "orderItems"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderForbidden indicates the actor lacks the role the transition requires.
	ErrOrderForbidden = errors.New("order: forbidden")
	// ErrOrderConflict indicates duplicate writes or concurrent modification.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderPaymentFailed indicates the payment provider rejected the charge request.
	ErrOrderPaymentFailed = errors.New("order: payment request failed")
	// ErrOrderProductNotFound indicates the catalog has no such product.
	ErrOrderProductNotFound = errors.New("order: product not found")
)

// PaymentSettings carries the static parameters applied to every charge request.
type PaymentSettings struct {
	Currency        string
	NotificationURL string
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Counters    repositories.CounterRepository
	Statuses    domain.StatusLookup
	Catalog     catalog.Gateway
	Payments    payments.Provider
	Settings    PaymentSettings
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	Events      OrderEventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders     repositories.OrderRepository
	counters   repositories.CounterRepository
	statuses   domain.StatusLookup
	catalog    catalog.Gateway
	payments   payments.Provider
	settings   PaymentSettings
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	newID      func() string
	events     OrderEventPublisher
	logger     func(context.Context, string, map[string]any)
	sanitizer  *bluemonday.Policy
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}
	if deps.Statuses == nil {
		return nil, errors.New("order service: status lookup is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:     deps.Orders,
		counters:   deps.Counters,
		statuses:   deps.Statuses,
		catalog:    deps.Catalog,
		payments:   deps.Payments,
		settings:   deps.Settings,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:     idGen,
		events:    deps.Events,
		logger:    logger,
		sanitizer: bluemonday.StrictPolicy(),
	}, nil
}

func (s *orderService) Create(ctx context.Context, cmd CreateOrderCommand) (domain.Order, error) {
	if cmd.Actor.Employee && !cmd.Actor.System {
		return domain.Order{}, fmt.Errorf("%w: orders are opened by customers", ErrOrderForbidden)
	}

	now := s.now()
	order, err := domain.NewOrder(s.statuses, cmd.Actor.ID, now)
	if err != nil {
		return domain.Order{}, err
	}

	id, err := s.counters.Next(ctx, orderCounterID, 1)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}
	order.ID = id
	s.assignMovementIDs(order)

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.orders.Insert(txCtx, *order); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventCreated,
		OrderID:       order.ID,
		CurrentStatus: string(order.Status.Code),
		ChangedBy:     domain.ActorSystem,
		OccurredAt:    now,
	})

	s.logger(ctx, "order.created", map[string]any{
		"order":    order.ID,
		"customer": order.CustomerID,
	})
	return *order, nil
}

func (s *orderService) Get(ctx context.Context, orderID int64) (domain.Order, error) {
	return s.load(ctx, orderID)
}

func (s *orderService) List(ctx context.Context, filter OrderFilter) ([]domain.Order, error) {
	orders, err := s.orders.List(ctx, repositories.OrderListFilter{
		CustomerID:    strings.TrimSpace(filter.CustomerID),
		Status:        filter.Status,
		CreatedAfter:  filter.CreatedAfter,
		CreatedBefore: filter.CreatedBefore,
	})
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return orders, nil
}

func (s *orderService) ListItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return slices.Clone(order.Items), nil
}

func (s *orderService) ListMovements(ctx context.Context, orderID int64) ([]domain.StatusMovement, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return slices.Clone(order.History), nil
}

func (s *orderService) ListStageProducts(ctx context.Context, orderID int64) ([]StageProduct, error) {
	if s.catalog == nil {
		return nil, errors.New("order service: catalog gateway not configured")
	}

	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}

	category, ok := domain.CategoryForStage(order.Status.Code)
	if !ok {
		return nil, fmt.Errorf("%w: status %q does not offer products", domain.ErrInvalidTransition, order.Status.Code)
	}

	products, err := s.catalog.ListByCategory(ctx, string(category))
	if err != nil {
		return nil, fmt.Errorf("order: catalog lookup failed: %w", err)
	}

	offered := make([]StageProduct, 0, len(products))
	for _, product := range products {
		offered = append(offered, StageProduct{
			ID:       product.ID,
			Name:     product.Name,
			SKU:      product.SKU,
			Price:    product.Price,
			Category: category,
		})
	}
	return offered, nil
}

func (s *orderService) AddItem(ctx context.Context, cmd AddItemCommand) (domain.Order, error) {
	if s.catalog == nil {
		return domain.Order{}, errors.New("order service: catalog gateway not configured")
	}
	if cmd.ProductID <= 0 {
		return domain.Order{}, fmt.Errorf("%w: product id is required", ErrOrderInvalidInput)
	}
	if cmd.Quantity < 1 {
		return domain.Order{}, fmt.Errorf("%w: item quantity must be at least 1", ErrOrderInvalidInput)
	}

	order, err := s.loadForActor(ctx, cmd.OrderID, cmd.Actor)
	if err != nil {
		return domain.Order{}, err
	}

	product, err := s.catalog.GetProduct(ctx, cmd.ProductID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return domain.Order{}, fmt.Errorf("%w: product %d", ErrOrderProductNotFound, cmd.ProductID)
		}
		return domain.Order{}, fmt.Errorf("order: catalog lookup failed: %w", err)
	}

	itemID, err := s.counters.Next(ctx, orderItemCounterID, 1)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	item := domain.OrderItem{
		ID:              itemID,
		ProductID:       product.ID,
		ProductName:     product.Name,
		ProductSKU:      product.SKU,
		ProductPrice:    product.Price,
		ProductCategory: domain.ProductCategory(product.Category),
		Quantity:        cmd.Quantity,
		Observation:     s.sanitizeObservation(cmd.Observation),
	}
	if err := order.AddItem(item); err != nil {
		return domain.Order{}, err
	}
	order.UpdatedAt = s.now()

	if err := s.persist(ctx, order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (s *orderService) RemoveItem(ctx context.Context, orderID, itemID int64, actor Actor) (domain.Order, error) {
	order, err := s.loadForActor(ctx, orderID, actor)
	if err != nil {
		return domain.Order{}, err
	}

	if err := order.RemoveItem(itemID); err != nil {
		return domain.Order{}, err
	}
	order.UpdatedAt = s.now()

	if err := s.persist(ctx, order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (s *orderService) ChangeItemQuantity(ctx context.Context, cmd ChangeItemQuantityCommand) (domain.Order, error) {
	order, err := s.loadForActor(ctx, cmd.OrderID, cmd.Actor)
	if err != nil {
		return domain.Order{}, err
	}

	if err := order.ChangeItemQuantity(cmd.ItemID, cmd.Quantity); err != nil {
		return domain.Order{}, err
	}
	order.UpdatedAt = s.now()

	if err := s.persist(ctx, order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (s *orderService) ChangeItemObservation(ctx context.Context, cmd ChangeItemObservationCommand) (domain.Order, error) {
	order, err := s.loadForActor(ctx, cmd.OrderID, cmd.Actor)
	if err != nil {
		return domain.Order{}, err
	}

	if err := order.ChangeItemObservation(cmd.ItemID, s.sanitizeObservation(cmd.Observation)); err != nil {
		return domain.Order{}, err
	}
	order.UpdatedAt = s.now()

	if err := s.persist(ctx, order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (s *orderService) ClearItems(ctx context.Context, orderID int64, actor Actor) (domain.Order, error) {
	order, err := s.loadForActor(ctx, orderID, actor)
	if err != nil {
		return domain.Order{}, err
	}

	if err := order.Clear(s.statuses, s.now()); err != nil {
		return domain.Order{}, err
	}

	if err := s.persist(ctx, order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (s *orderService) Advance(ctx context.Context, orderID int64, actor Actor) (domain.Order, error) {
	order, err := s.loadForActor(ctx, orderID, actor)
	if err != nil {
		return domain.Order{}, err
	}

	target, ok := domain.NextStatus(order.Status.Code)
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: status %q does not permit transitions",
			domain.ErrInvalidTransition, order.Status.Code)
	}
	if err := s.authorizeTransition(target, actor); err != nil {
		return domain.Order{}, err
	}

	now := s.now()
	previous := order.Status.Code

	// Movement attribution is left to the aggregate: the customer id for
	// placed, System for paid and the employee id onwards.
	cmd := domain.AdvanceCommand{Now: now}
	if target == domain.StatusPreparing {
		cmd.Employee = actor.ID
	}
	if err := order.Advance(s.statuses, cmd); err != nil {
		return domain.Order{}, err
	}
	s.assignMovementIDs(&order)

	if target == domain.StatusPlaced {
		if err := s.requestPayment(ctx, &order); err != nil {
			return domain.Order{}, err
		}
	}

	if err := s.persist(ctx, order); err != nil {
		return domain.Order{}, err
	}

	if domain.RecordsMovement(target) {
		s.publishEvent(ctx, OrderEvent{
			Type:           orderEventStatusChanged,
			OrderID:        order.ID,
			PreviousStatus: string(previous),
			CurrentStatus:  string(order.Status.Code),
			ChangedBy:      lastChangedBy(order),
			Total:          order.Total(),
			PaymentID:      order.PaymentID,
			OccurredAt:     now,
		})
	}

	s.logger(ctx, "order.status.advanced", map[string]any{
		"order": order.ID,
		"from":  string(previous),
		"to":    string(order.Status.Code),
	})
	return order, nil
}

func (s *orderService) Revert(ctx context.Context, orderID int64, actor Actor) (domain.Order, error) {
	order, err := s.loadForActor(ctx, orderID, actor)
	if err != nil {
		return domain.Order{}, err
	}

	if err := order.Revert(s.statuses, actorLabel(actor), s.now()); err != nil {
		return domain.Order{}, err
	}

	if err := s.persist(ctx, order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (s *orderService) Cancel(ctx context.Context, orderID int64, actor Actor) (domain.Order, error) {
	order, err := s.loadForActor(ctx, orderID, actor)
	if err != nil {
		return domain.Order{}, err
	}

	now := s.now()
	previous := order.Status.Code

	if err := order.Cancel(s.statuses, actorLabel(actor), now); err != nil {
		return domain.Order{}, err
	}
	s.assignMovementIDs(&order)
	order.InactivatedAt = &now

	if err := s.persist(ctx, order); err != nil {
		return domain.Order{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        order.ID,
		PreviousStatus: string(previous),
		CurrentStatus:  string(order.Status.Code),
		ChangedBy:      lastChangedBy(order),
		Total:          order.Total(),
		OccurredAt:     now,
	})

	s.logger(ctx, "order.cancelled", map[string]any{
		"order": order.ID,
		"from":  string(previous),
	})
	return order, nil
}

// requestPayment asks the provider for a charge covering the full order and
// stores the returned payment id on the aggregate before it is persisted. A
// provider failure aborts the transition.
func (s *orderService) requestPayment(ctx context.Context, order *domain.Order) error {
	if s.payments == nil {
		return errors.New("order service: payment provider not configured")
	}

	items := make([]payments.LineItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, payments.LineItem{
			Title:     item.ProductName,
			Quantity:  item.Quantity,
			UnitPrice: item.ProductPrice,
			Total:     item.Total(),
		})
	}

	customer := order.CustomerID
	if customer == "" {
		customer = domain.AnonymousCustomer
	}

	payment, err := s.payments.CreatePayment(ctx, payments.Request{
		Title:             fmt.Sprintf("Pedido %d", order.ID),
		Description:       fmt.Sprintf("Pagamento do pedido %d", order.ID),
		Amount:            order.Total(),
		Currency:          s.settings.Currency,
		Items:             items,
		Customer:          payments.Customer{ID: order.CustomerID, Name: customer},
		ExternalReference: strconv.FormatInt(order.ID, 10),
		NotificationURL:   s.settings.NotificationURL,
	})
	if err != nil {
		s.logger(ctx, "order.payment.request.failed", map[string]any{
			"order": order.ID,
			"error": err.Error(),
		})
		return fmt.Errorf("%w: %w", ErrOrderPaymentFailed, err)
	}

	order.PaymentID = payment.PaymentID
	return nil
}

// authorizeTransition enforces which roles may drive the order onto the target
// stage. System bypasses the gate entirely.
func (s *orderService) authorizeTransition(target domain.StatusCode, actor Actor) error {
	if actor.System {
		return nil
	}
	if slices.Contains(domain.EmployeeOnlyStatuses, target) && !actor.Employee {
		return fmt.Errorf("%w: status %q requires an employee", ErrOrderForbidden, target)
	}
	if slices.Contains(domain.CustomerOnlyStatuses, target) && actor.Employee {
		return fmt.Errorf("%w: status %q is driven by the customer", ErrOrderForbidden, target)
	}
	return nil
}

func (s *orderService) load(ctx context.Context, orderID int64) (domain.Order, error) {
	if orderID <= 0 {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

// loadForActor loads the order and rejects customers touching someone else's
// order. Employees and System operate on any order.
func (s *orderService) loadForActor(ctx context.Context, orderID int64, actor Actor) (domain.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if actor.System || actor.Employee {
		return order, nil
	}
	if order.CustomerID != "" && order.CustomerID != actor.ID {
		return domain.Order{}, fmt.Errorf("%w: order %d belongs to another customer", ErrOrderForbidden, orderID)
	}
	return order, nil
}

func (s *orderService) persist(ctx context.Context, order domain.Order) error {
	return s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
}

func (s *orderService) assignMovementIDs(order *domain.Order) {
	for i := range order.History {
		if order.History[i].ID == "" {
			order.History[i].ID = s.newID()
		}
		if order.History[i].OrderID == 0 {
			order.History[i].OrderID = order.ID
		}
	}
}

func (s *orderService) sanitizeObservation(observation string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(observation))
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}
	return err
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"error":  err.Error(),
			"status": event.CurrentStatus,
		})
	}
}

func actorLabel(actor Actor) string {
	if actor.System {
		return domain.ActorSystem
	}
	if name := strings.TrimSpace(actor.Name); name != "" {
		return name
	}
	return strings.TrimSpace(actor.ID)
}

func lastChangedBy(order domain.Order) string {
	if len(order.History) == 0 {
		return ""
	}
	return order.History[len(order.History)-1].ChangedBy
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}
