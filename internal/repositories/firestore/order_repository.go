package firestore

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/snackhouse/api/internal/domain"
	pfirestore "github.com/snackhouse/api/internal/platform/firestore"
	"github.com/snackhouse/api/internal/repositories"
)

const ordersCollection = "orders"

type orderDocument struct {
	CustomerID        string                  `firestore:"customerId,omitempty"`
	EmployeeID        string                  `firestore:"employeeId,omitempty"`
	PaymentID         string                  `firestore:"paymentId,omitempty"`
	StatusID          int64                   `firestore:"statusId"`
	Status            string                  `firestore:"status"`
	StatusDescription string                  `firestore:"statusDescription,omitempty"`
	Items             []orderItemDocument     `firestore:"items"`
	History           []orderMovementDocument `firestore:"history"`
	Total             int64                   `firestore:"total"`
	CreatedAt         time.Time               `firestore:"createdAt"`
	UpdatedAt         time.Time               `firestore:"updatedAt"`
	InactivatedAt     *time.Time              `firestore:"inactivatedAt,omitempty"`
}

type orderItemDocument struct {
	ID              int64  `firestore:"id"`
	ProductID       int64  `firestore:"productId"`
	ProductName     string `firestore:"productName"`
	ProductSKU      string `firestore:"productSku,omitempty"`
	ProductPrice    int64  `firestore:"productPrice"`
	ProductCategory string `firestore:"productCategory"`
	Quantity        int    `firestore:"quantity"`
	Observation     string `firestore:"observation,omitempty"`
}

type orderMovementDocument struct {
	ID        string                 `firestore:"id"`
	OldStatus *string                `firestore:"oldStatus,omitempty"`
	NewStatus string                 `firestore:"newStatus"`
	ChangedBy string                 `firestore:"changedBy"`
	ChangedAt time.Time              `firestore:"changedAt"`
	Snapshot  *orderSnapshotDocument `firestore:"snapshot,omitempty"`
}

type orderSnapshotDocument struct {
	CustomerID    string                 `firestore:"customerId,omitempty"`
	EmployeeID    string                 `firestore:"employeeId,omitempty"`
	CurrentStatus string                 `firestore:"currentStatus"`
	Total         int64                  `firestore:"total"`
	Items         []snapshotItemDocument `firestore:"items,omitempty"`
}

type snapshotItemDocument struct {
	ID          int64  `firestore:"id"`
	ProductID   int64  `firestore:"productId"`
	ProductName string `firestore:"productName"`
	Quantity    int    `firestore:"quantity"`
	UnitPrice   int64  `firestore:"unitPrice"`
	Total       int64  `firestore:"total"`
	Observation string `firestore:"observation,omitempty"`
}

// OrderRepository persists order aggregates within Firestore. Items and the
// movement history are embedded in the order document so every mutation of the
// aggregate lands atomically.
type OrderRepository struct {
	base     *pfirestore.BaseRepository[orderDocument]
	provider *pfirestore.Provider
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil)
	return &OrderRepository{
		base:     base,
		provider: provider,
	}, nil
}

// Insert creates the order document, failing when the ID is already taken.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	if order.ID <= 0 {
		return errors.New("order repository: order id is required")
	}

	ref, err := r.base.DocumentRef(ctx, orderDocID(order.ID))
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, encodeOrder(order)); err != nil {
		return pfirestore.WrapError("orders.insert", err)
	}
	return nil
}

// Update overwrites the persisted aggregate with the given state.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	if order.ID <= 0 {
		return errors.New("order repository: order id is required")
	}

	_, err := r.base.Set(ctx, orderDocID(order.ID), encodeOrder(order))
	return err
}

// FindByID loads the order aggregate. Soft-deleted orders surface a not-found error.
func (r *OrderRepository) FindByID(ctx context.Context, orderID int64) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	if orderID <= 0 {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	doc, err := r.base.Get(ctx, orderDocID(orderID))
	if err != nil {
		return domain.Order{}, err
	}
	if doc.Data.InactivatedAt != nil {
		return domain.Order{}, pfirestore.WrapError("orders.get", notFoundError(orderDocID(orderID)))
	}
	return decodeOrder(orderID, doc.Data), nil
}

// FindByPaymentID locates the active order carrying the given payment reference.
func (r *OrderRepository) FindByPaymentID(ctx context.Context, paymentID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return domain.Order{}, errors.New("order repository: payment id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("paymentId", "==", paymentID).Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	for _, doc := range docs {
		if doc.Data.InactivatedAt != nil {
			continue
		}
		id, err := strconv.ParseInt(doc.ID, 10, 64)
		if err != nil {
			continue
		}
		return decodeOrder(id, doc.Data), nil
	}
	return domain.Order{}, pfirestore.WrapError("orders.query", notFoundError(paymentID))
}

// List returns orders matching the filter, newest first. Soft-deleted orders
// are excluded unless the filter opts in.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if customerID := strings.TrimSpace(filter.CustomerID); customerID != "" {
			q = q.Where("customerId", "==", customerID)
		}
		if len(filter.Status) == 1 {
			q = q.Where("status", "==", string(filter.Status[0]))
		}
		if filter.CreatedAfter != nil {
			q = q.Where("createdAt", ">=", filter.CreatedAfter.UTC())
		}
		if filter.CreatedBefore != nil {
			q = q.Where("createdAt", "<", filter.CreatedBefore.UTC())
		}
		return q.OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	statusSet := make(map[domain.StatusCode]struct{}, len(filter.Status))
	for _, code := range filter.Status {
		statusSet[code] = struct{}{}
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		if doc.Data.InactivatedAt != nil && !filter.IncludeInactive {
			continue
		}
		if len(statusSet) > 1 {
			if _, ok := statusSet[domain.StatusCode(doc.Data.Status)]; !ok {
				continue
			}
		}
		id, err := strconv.ParseInt(doc.ID, 10, 64)
		if err != nil {
			continue
		}
		orders = append(orders, decodeOrder(id, doc.Data))
	}
	return orders, nil
}

func orderDocID(orderID int64) string {
	return strconv.FormatInt(orderID, 10)
}

func notFoundError(id string) error {
	return status.Errorf(codes.NotFound, "document %s not found", id)
}

func encodeOrder(order domain.Order) orderDocument {
	doc := orderDocument{
		CustomerID:        strings.TrimSpace(order.CustomerID),
		EmployeeID:        strings.TrimSpace(order.EmployeeID),
		PaymentID:         strings.TrimSpace(order.PaymentID),
		StatusID:          order.Status.ID,
		Status:            string(order.Status.Code),
		StatusDescription: order.Status.Description,
		Items:             make([]orderItemDocument, 0, len(order.Items)),
		History:           make([]orderMovementDocument, 0, len(order.History)),
		Total:             order.Total(),
		CreatedAt:         order.CreatedAt.UTC(),
		UpdatedAt:         order.UpdatedAt.UTC(),
	}
	if order.InactivatedAt != nil {
		inactivated := order.InactivatedAt.UTC()
		doc.InactivatedAt = &inactivated
	}

	for _, item := range order.Items {
		doc.Items = append(doc.Items, orderItemDocument{
			ID:              item.ID,
			ProductID:       item.ProductID,
			ProductName:     item.ProductName,
			ProductSKU:      item.ProductSKU,
			ProductPrice:    item.ProductPrice,
			ProductCategory: string(item.ProductCategory),
			Quantity:        item.Quantity,
			Observation:     item.Observation,
		})
	}

	for _, movement := range order.History {
		encoded := orderMovementDocument{
			ID:        movement.ID,
			NewStatus: string(movement.NewStatus),
			ChangedBy: movement.ChangedBy,
			ChangedAt: movement.ChangedAt.UTC(),
		}
		if movement.OldStatus != nil {
			old := string(*movement.OldStatus)
			encoded.OldStatus = &old
		}
		if movement.Snapshot != nil {
			encoded.Snapshot = encodeSnapshot(*movement.Snapshot)
		}
		doc.History = append(doc.History, encoded)
	}

	return doc
}

func encodeSnapshot(snapshot domain.OrderSnapshot) *orderSnapshotDocument {
	doc := &orderSnapshotDocument{
		CustomerID:    snapshot.CustomerID,
		EmployeeID:    snapshot.EmployeeID,
		CurrentStatus: string(snapshot.CurrentStatus),
		Total:         snapshot.Total,
	}
	for _, item := range snapshot.Items {
		doc.Items = append(doc.Items, snapshotItemDocument{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Total:       item.Total,
			Observation: item.Observation,
		})
	}
	return doc
}

func decodeOrder(orderID int64, doc orderDocument) domain.Order {
	order := domain.Order{
		ID:         orderID,
		CustomerID: doc.CustomerID,
		EmployeeID: doc.EmployeeID,
		PaymentID:  doc.PaymentID,
		Status: domain.OrderStatus{
			ID:          doc.StatusID,
			Code:        domain.StatusCode(doc.Status),
			Description: doc.StatusDescription,
		},
		Items:     make([]domain.OrderItem, 0, len(doc.Items)),
		History:   make([]domain.StatusMovement, 0, len(doc.History)),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	if doc.InactivatedAt != nil {
		inactivated := *doc.InactivatedAt
		order.InactivatedAt = &inactivated
	}

	for _, item := range doc.Items {
		order.Items = append(order.Items, domain.OrderItem{
			ID:              item.ID,
			ProductID:       item.ProductID,
			ProductName:     item.ProductName,
			ProductSKU:      item.ProductSKU,
			ProductPrice:    item.ProductPrice,
			ProductCategory: domain.ProductCategory(item.ProductCategory),
			Quantity:        item.Quantity,
			Observation:     item.Observation,
		})
	}

	for _, movement := range doc.History {
		decoded := domain.StatusMovement{
			ID:        movement.ID,
			OrderID:   orderID,
			NewStatus: domain.StatusCode(movement.NewStatus),
			ChangedBy: movement.ChangedBy,
			ChangedAt: movement.ChangedAt,
		}
		if movement.OldStatus != nil {
			old := domain.StatusCode(*movement.OldStatus)
			decoded.OldStatus = &old
		}
		if movement.Snapshot != nil {
			decoded.Snapshot = &domain.OrderSnapshot{
				OrderID:       orderID,
				CustomerID:    movement.Snapshot.CustomerID,
				EmployeeID:    movement.Snapshot.EmployeeID,
				CurrentStatus: domain.StatusCode(movement.Snapshot.CurrentStatus),
				Total:         movement.Snapshot.Total,
			}
			for _, item := range movement.Snapshot.Items {
				decoded.Snapshot.Items = append(decoded.Snapshot.Items, domain.SnapshotItem{
					ID:          item.ID,
					ProductID:   item.ProductID,
					ProductName: item.ProductName,
					Quantity:    item.Quantity,
					UnitPrice:   item.UnitPrice,
					Total:       item.Total,
					Observation: item.Observation,
				})
			}
		}
		order.History = append(order.History, decoded)
	}

	return order
}
