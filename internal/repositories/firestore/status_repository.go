package firestore

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/snackhouse/api/internal/domain"
	pfirestore "github.com/snackhouse/api/internal/platform/firestore"
	"github.com/snackhouse/api/internal/repositories"
)

const orderStatusesCollection = "orderStatuses"

type orderStatusDocument struct {
	Status      string    `firestore:"status"`
	Description string    `firestore:"description,omitempty"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

// OrderStatusRepository stores the status reference catalog in Firestore.
type OrderStatusRepository struct {
	base     *pfirestore.BaseRepository[orderStatusDocument]
	provider *pfirestore.Provider
}

var _ repositories.OrderStatusRepository = (*OrderStatusRepository)(nil)

// NewOrderStatusRepository constructs a Firestore-backed status catalog repository.
func NewOrderStatusRepository(provider *pfirestore.Provider) (*OrderStatusRepository, error) {
	if provider == nil {
		return nil, errors.New("order status repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[orderStatusDocument](provider, orderStatusesCollection, nil, nil)
	return &OrderStatusRepository{
		base:     base,
		provider: provider,
	}, nil
}

// Insert creates a catalog row, failing when the ID already exists.
func (r *OrderStatusRepository) Insert(ctx context.Context, orderStatus domain.OrderStatus) error {
	if r == nil || r.base == nil {
		return errors.New("order status repository not initialised")
	}
	if orderStatus.ID <= 0 {
		return errors.New("order status repository: status id is required")
	}
	if strings.TrimSpace(string(orderStatus.Code)) == "" {
		return errors.New("order status repository: status code is required")
	}

	ref, err := r.base.DocumentRef(ctx, statusDocID(orderStatus.ID))
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, encodeStatus(orderStatus)); err != nil {
		return pfirestore.WrapError("orderStatuses.insert", err)
	}
	return nil
}

// Update overwrites the catalog row.
func (r *OrderStatusRepository) Update(ctx context.Context, orderStatus domain.OrderStatus) error {
	if r == nil || r.base == nil {
		return errors.New("order status repository not initialised")
	}
	if orderStatus.ID <= 0 {
		return errors.New("order status repository: status id is required")
	}

	ref, err := r.base.DocumentRef(ctx, statusDocID(orderStatus.ID))
	if err != nil {
		return err
	}
	if _, err := ref.Get(ctx); err != nil {
		return pfirestore.WrapError("orderStatuses.update", err)
	}
	_, err = r.base.Set(ctx, statusDocID(orderStatus.ID), encodeStatus(orderStatus))
	return err
}

// Delete removes the catalog row.
func (r *OrderStatusRepository) Delete(ctx context.Context, statusID int64) error {
	if r == nil || r.base == nil {
		return errors.New("order status repository not initialised")
	}
	if statusID <= 0 {
		return errors.New("order status repository: status id is required")
	}

	ref, err := r.base.DocumentRef(ctx, statusDocID(statusID))
	if err != nil {
		return err
	}
	if _, err := ref.Get(ctx); err != nil {
		return pfirestore.WrapError("orderStatuses.delete", err)
	}
	if _, err := ref.Delete(ctx); err != nil {
		return pfirestore.WrapError("orderStatuses.delete", err)
	}
	return nil
}

// FindByID loads a single catalog row.
func (r *OrderStatusRepository) FindByID(ctx context.Context, statusID int64) (domain.OrderStatus, error) {
	if r == nil || r.base == nil {
		return domain.OrderStatus{}, errors.New("order status repository not initialised")
	}
	if statusID <= 0 {
		return domain.OrderStatus{}, errors.New("order status repository: status id is required")
	}

	doc, err := r.base.Get(ctx, statusDocID(statusID))
	if err != nil {
		return domain.OrderStatus{}, err
	}
	return decodeStatus(statusID, doc.Data), nil
}

// FindByStatus resolves a catalog row by its status code.
func (r *OrderStatusRepository) FindByStatus(ctx context.Context, code domain.StatusCode) (domain.OrderStatus, error) {
	if r == nil || r.base == nil {
		return domain.OrderStatus{}, errors.New("order status repository not initialised")
	}
	trimmed := strings.TrimSpace(string(code))
	if trimmed == "" {
		return domain.OrderStatus{}, errors.New("order status repository: status code is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("status", "==", trimmed).Limit(1)
	})
	if err != nil {
		return domain.OrderStatus{}, err
	}
	if len(docs) == 0 {
		return domain.OrderStatus{}, pfirestore.WrapError("orderStatuses.query", notFoundError(trimmed))
	}

	id, err := strconv.ParseInt(docs[0].ID, 10, 64)
	if err != nil {
		return domain.OrderStatus{}, pfirestore.WrapError("orderStatuses.query", err)
	}
	return decodeStatus(id, docs[0].Data), nil
}

// ListAll returns every catalog row ordered by ID.
func (r *OrderStatusRepository) ListAll(ctx context.Context) ([]domain.OrderStatus, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order status repository not initialised")
	}

	docs, err := r.base.Query(ctx, nil)
	if err != nil {
		return nil, err
	}

	statuses := make([]domain.OrderStatus, 0, len(docs))
	for _, doc := range docs {
		id, err := strconv.ParseInt(doc.ID, 10, 64)
		if err != nil {
			continue
		}
		statuses = append(statuses, decodeStatus(id, doc.Data))
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].ID < statuses[j].ID })
	return statuses, nil
}

func statusDocID(statusID int64) string {
	return strconv.FormatInt(statusID, 10)
}

func encodeStatus(orderStatus domain.OrderStatus) orderStatusDocument {
	return orderStatusDocument{
		Status:      strings.TrimSpace(string(orderStatus.Code)),
		Description: strings.TrimSpace(orderStatus.Description),
		UpdatedAt:   time.Now().UTC(),
	}
}

func decodeStatus(statusID int64, doc orderStatusDocument) domain.OrderStatus {
	return domain.OrderStatus{
		ID:          statusID,
		Code:        domain.StatusCode(doc.Status),
		Description: doc.Description,
	}
}
