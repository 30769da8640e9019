package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/snackhouse/api/internal/domain"
	"github.com/snackhouse/api/internal/platform/auth"
	"github.com/snackhouse/api/internal/platform/httpx"
	"github.com/snackhouse/api/internal/services"
)

const maxOrderBodySize = 16 * 1024

type addItemRequest struct {
	ProductID   int64  `json:"product_id"`
	Quantity    int    `json:"quantity"`
	Observation string `json:"observation"`
}

type updateItemRequest struct {
	Quantity    *int    `json:"quantity"`
	Observation *string `json:"observation"`
}

// OrderHandlers exposes the order lifecycle endpoints.
type OrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{
		authn:  authn,
		orders: orders,
	}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.Middleware())
	}

	r.Post("/", h.createOrder)
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Get("/{orderID}/items", h.listItems)
	r.Get("/{orderID}/movements", h.listMovements)
	r.Get("/{orderID}/products", h.listStageProducts)

	r.Post("/{orderID}/items", h.addItem)
	r.Patch("/{orderID}/items/{itemID}", h.updateItem)
	r.Delete("/{orderID}/items/{itemID}", h.removeItem)
	r.Delete("/{orderID}/items", h.clearItems)

	r.Post("/{orderID}/advance", h.advanceOrder)
	r.Post("/{orderID}/revert", h.revertOrder)
	r.Post("/{orderID}/cancel", h.cancelOrder)
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	order, err := h.orders.Create(ctx, services.CreateOrderCommand{Actor: actorFromRequest(r)})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	statusFilters, err := parseStatusFilters(query["status"])
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	filter := services.OrderFilter{Status: statusFilters}
	if raw := strings.TrimSpace(query.Get("created_after")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_after must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		filter.CreatedAfter = &ts
	}
	if raw := strings.TrimSpace(query.Get("created_before")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_before must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		filter.CreatedBefore = &ts
	}

	// Customers only ever see their own orders; staff may filter freely.
	actor := actorFromRequest(r)
	if actor.Employee {
		filter.CustomerID = strings.TrimSpace(query.Get("customer_id"))
	} else {
		if actor.ID == "" {
			httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required to list orders", http.StatusUnauthorized))
			return
		}
		filter.CustomerID = actor.ID
	}

	orders, err := h.orders.List(ctx, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	items := make([]orderSummaryPayload, 0, len(orders))
	for _, order := range orders {
		items = append(items, buildOrderSummary(order))
	}
	writeJSONResponse(w, http.StatusOK, orderListResponse{Items: items})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, err := parseOrderIDParam(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	order, err := h.orders.Get(ctx, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, err := parseOrderIDParam(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	items, err := h.orders.ListItems(ctx, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	payloads := make([]orderItemPayload, 0, len(items))
	for _, item := range items {
		payloads = append(payloads, buildItemPayload(item))
	}
	writeJSONResponse(w, http.StatusOK, itemListResponse{Items: payloads})
}

func (h *OrderHandlers) listMovements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, err := parseOrderIDParam(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	movements, err := h.orders.ListMovements(ctx, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	payloads := make([]movementPayload, 0, len(movements))
	for _, movement := range movements {
		payloads = append(payloads, buildMovementPayload(movement))
	}
	writeJSONResponse(w, http.StatusOK, movementListResponse{Movements: payloads})
}

func (h *OrderHandlers) listStageProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, err := parseOrderIDParam(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	products, err := h.orders.ListStageProducts(ctx, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	payloads := make([]stageProductPayload, 0, len(products))
	for _, product := range products {
		payloads = append(payloads, stageProductPayload{
			ID:       product.ID,
			Name:     product.Name,
			SKU:      product.SKU,
			Price:    product.Price,
			Category: string(product.Category),
		})
	}
	writeJSONResponse(w, http.StatusOK, stageProductListResponse{Products: payloads})
}

func (h *OrderHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, err := parseOrderIDParam(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	var req addItemRequest
	if !decodeBody(ctx, w, r, maxOrderBodySize, &req) {
		return
	}

	order, err := h.orders.AddItem(ctx, services.AddItemCommand{
		OrderID:     orderID,
		ProductID:   req.ProductID,
		Quantity:    req.Quantity,
		Observation: req.Observation,
		Actor:       actorFromRequest(r),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, err := parseOrderIDParam(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	itemID, err := parseItemIDParam(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	var req updateItemRequest
	if !decodeBody(ctx, w, r, maxOrderBodySize, &req) {
		return
	}
	if req.Quantity == nil && req.Observation == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "quantity or observation is required", http.StatusBadRequest))
		return
	}

	actor := actorFromRequest(r)
	var order domain.Order
	if req.Quantity != nil {
		order, err = h.orders.ChangeItemQuantity(ctx, services.ChangeItemQuantityCommand{
			OrderID:  orderID,
			ItemID:   itemID,
			Quantity: *req.Quantity,
			Actor:    actor,
		})
		if err != nil {
			writeOrderError(ctx, w, err)
			return
		}
	}
	if req.Observation != nil {
		order, err = h.orders.ChangeItemObservation(ctx, services.ChangeItemObservationCommand{
			OrderID:     orderID,
			ItemID:      itemID,
			Observation: *req.Observation,
			Actor:       actor,
		})
		if err != nil {
			writeOrderError(ctx, w, err)
			return
		}
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, err := parseOrderIDParam(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	itemID, err := parseItemIDParam(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	order, err := h.orders.RemoveItem(ctx, orderID, itemID, actorFromRequest(r))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) clearItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, err := parseOrderIDParam(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	order, err := h.orders.ClearItems(ctx, orderID, actorFromRequest(r))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) advanceOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.orders.Advance)
}

func (h *OrderHandlers) revertOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.orders.Revert)
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.orders.Cancel)
}

func (h *OrderHandlers) transition(w http.ResponseWriter, r *http.Request, apply func(context.Context, int64, services.Actor) (domain.Order, error)) {
	ctx := r.Context()

	orderID, err := parseOrderIDParam(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	order, err := apply(ctx, orderID, actorFromRequest(r))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

// decodeBody reads and unmarshals the request body, writing the error response
// itself on failure.
func decodeBody(ctx context.Context, w http.ResponseWriter, r *http.Request, limit int64, out any) bool {
	body, err := readLimitedBody(r, limit)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		case errors.Is(err, errEmptyBody):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return false
	}
	if err := json.Unmarshal(body, out); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return false
	}
	return true
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOrderNotFound), errors.Is(err, domain.ErrItemNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrOrderForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("order_forbidden", err.Error(), http.StatusForbidden))
	case errors.Is(err, services.ErrOrderInvalidInput), errors.Is(err, domain.ErrInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, domain.ErrInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderPaymentFailed):
		httpx.WriteError(ctx, w, httpx.NewError("payment_unavailable", err.Error(), http.StatusBadGateway))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected error", http.StatusInternalServerError))
	}
}

type orderListResponse struct {
	Items []orderSummaryPayload `json:"items"`
}

type orderSummaryPayload struct {
	ID        int64  `json:"id"`
	Status    string `json:"status"`
	Total     int64  `json:"total"`
	ItemCount int    `json:"item_count"`
	CreatedAt string `json:"created_at"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderPayload struct {
	ID                int64              `json:"id"`
	CustomerID        string             `json:"customer_id,omitempty"`
	EmployeeID        string             `json:"employee_id,omitempty"`
	PaymentID         string             `json:"payment_id,omitempty"`
	Status            string             `json:"status"`
	StatusDescription string             `json:"status_description"`
	Total             int64              `json:"total"`
	Items             []orderItemPayload `json:"items"`
	CreatedAt         string             `json:"created_at"`
	UpdatedAt         string             `json:"updated_at"`
}

type itemListResponse struct {
	Items []orderItemPayload `json:"items"`
}

type orderItemPayload struct {
	ID          int64  `json:"id"`
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	ProductSKU  string `json:"product_sku,omitempty"`
	Category    string `json:"category"`
	UnitPrice   int64  `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	Total       int64  `json:"total"`
	Observation string `json:"observation,omitempty"`
}

type movementListResponse struct {
	Movements []movementPayload `json:"movements"`
}

type movementPayload struct {
	ID        string           `json:"id,omitempty"`
	OldStatus string           `json:"old_status,omitempty"`
	NewStatus string           `json:"new_status"`
	ChangedBy string           `json:"changed_by"`
	ChangedAt string           `json:"changed_at"`
	Snapshot  *snapshotPayload `json:"snapshot,omitempty"`
}

type snapshotPayload struct {
	OrderID    int64                 `json:"order_id"`
	CustomerID string                `json:"customer_id,omitempty"`
	EmployeeID string                `json:"employee_id,omitempty"`
	Status     string                `json:"status"`
	Total      int64                 `json:"total"`
	Items      []snapshotItemPayload `json:"items,omitempty"`
}

type snapshotItemPayload struct {
	ID          int64  `json:"id"`
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	Total       int64  `json:"total"`
	Observation string `json:"observation,omitempty"`
}

type stageProductListResponse struct {
	Products []stageProductPayload `json:"products"`
}

type stageProductPayload struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	SKU      string `json:"sku,omitempty"`
	Price    int64  `json:"price"`
	Category string `json:"category"`
}

func buildOrderSummary(order domain.Order) orderSummaryPayload {
	return orderSummaryPayload{
		ID:        order.ID,
		Status:    string(order.Status.Code),
		Total:     order.Total(),
		ItemCount: len(order.Items),
		CreatedAt: formatTimestamp(order.CreatedAt),
	}
}

func buildOrderPayload(order domain.Order) orderPayload {
	items := make([]orderItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, buildItemPayload(item))
	}
	return orderPayload{
		ID:                order.ID,
		CustomerID:        order.CustomerID,
		EmployeeID:        order.EmployeeID,
		PaymentID:         order.PaymentID,
		Status:            string(order.Status.Code),
		StatusDescription: order.Status.Description,
		Total:             order.Total(),
		Items:             items,
		CreatedAt:         formatTimestamp(order.CreatedAt),
		UpdatedAt:         formatTimestamp(order.UpdatedAt),
	}
}

func buildItemPayload(item domain.OrderItem) orderItemPayload {
	return orderItemPayload{
		ID:          item.ID,
		ProductID:   item.ProductID,
		ProductName: item.ProductName,
		ProductSKU:  item.ProductSKU,
		Category:    string(item.ProductCategory),
		UnitPrice:   item.ProductPrice,
		Quantity:    item.Quantity,
		Total:       item.Total(),
		Observation: item.Observation,
	}
}

func buildMovementPayload(movement domain.StatusMovement) movementPayload {
	payload := movementPayload{
		ID:        movement.ID,
		NewStatus: string(movement.NewStatus),
		ChangedBy: movement.ChangedBy,
		ChangedAt: formatTimestamp(movement.ChangedAt),
	}
	if movement.OldStatus != nil {
		payload.OldStatus = string(*movement.OldStatus)
	}
	if movement.Snapshot != nil {
		snapshot := &snapshotPayload{
			OrderID:    movement.Snapshot.OrderID,
			CustomerID: movement.Snapshot.CustomerID,
			EmployeeID: movement.Snapshot.EmployeeID,
			Status:     string(movement.Snapshot.CurrentStatus),
			Total:      movement.Snapshot.Total,
		}
		for _, item := range movement.Snapshot.Items {
			snapshot.Items = append(snapshot.Items, snapshotItemPayload{
				ID:          item.ID,
				ProductID:   item.ProductID,
				ProductName: item.ProductName,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
				Total:       item.Total,
				Observation: item.Observation,
			})
		}
		payload.Snapshot = snapshot
	}
	return payload
}
