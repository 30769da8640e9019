package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/snackhouse/api/internal/domain"
	"github.com/snackhouse/api/internal/platform/auth"
	"github.com/snackhouse/api/internal/services"
)

var handlerClock = time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)

type stubOrderService struct {
	createFn     func(context.Context, services.CreateOrderCommand) (domain.Order, error)
	getFn        func(context.Context, int64) (domain.Order, error)
	listFn       func(context.Context, services.OrderFilter) ([]domain.Order, error)
	listItemsFn  func(context.Context, int64) ([]domain.OrderItem, error)
	listMovesFn  func(context.Context, int64) ([]domain.StatusMovement, error)
	listStageFn  func(context.Context, int64) ([]services.StageProduct, error)
	addItemFn    func(context.Context, services.AddItemCommand) (domain.Order, error)
	removeItemFn func(context.Context, int64, int64, services.Actor) (domain.Order, error)
	changeQtyFn  func(context.Context, services.ChangeItemQuantityCommand) (domain.Order, error)
	changeObsFn  func(context.Context, services.ChangeItemObservationCommand) (domain.Order, error)
	clearFn      func(context.Context, int64, services.Actor) (domain.Order, error)
	advanceFn    func(context.Context, int64, services.Actor) (domain.Order, error)
	revertFn     func(context.Context, int64, services.Actor) (domain.Order, error)
	cancelFn     func(context.Context, int64, services.Actor) (domain.Order, error)
}

func (s *stubOrderService) Create(ctx context.Context, cmd services.CreateOrderCommand) (domain.Order, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) Get(ctx context.Context, orderID int64) (domain.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, orderID)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) List(ctx context.Context, filter services.OrderFilter) ([]domain.Order, error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return nil, nil
}

func (s *stubOrderService) ListItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	if s.listItemsFn != nil {
		return s.listItemsFn(ctx, orderID)
	}
	return nil, nil
}

func (s *stubOrderService) ListMovements(ctx context.Context, orderID int64) ([]domain.StatusMovement, error) {
	if s.listMovesFn != nil {
		return s.listMovesFn(ctx, orderID)
	}
	return nil, nil
}

func (s *stubOrderService) ListStageProducts(ctx context.Context, orderID int64) ([]services.StageProduct, error) {
	if s.listStageFn != nil {
		return s.listStageFn(ctx, orderID)
	}
	return nil, nil
}

func (s *stubOrderService) AddItem(ctx context.Context, cmd services.AddItemCommand) (domain.Order, error) {
	if s.addItemFn != nil {
		return s.addItemFn(ctx, cmd)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) RemoveItem(ctx context.Context, orderID, itemID int64, actor services.Actor) (domain.Order, error) {
	if s.removeItemFn != nil {
		return s.removeItemFn(ctx, orderID, itemID, actor)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) ChangeItemQuantity(ctx context.Context, cmd services.ChangeItemQuantityCommand) (domain.Order, error) {
	if s.changeQtyFn != nil {
		return s.changeQtyFn(ctx, cmd)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) ChangeItemObservation(ctx context.Context, cmd services.ChangeItemObservationCommand) (domain.Order, error) {
	if s.changeObsFn != nil {
		return s.changeObsFn(ctx, cmd)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) ClearItems(ctx context.Context, orderID int64, actor services.Actor) (domain.Order, error) {
	if s.clearFn != nil {
		return s.clearFn(ctx, orderID, actor)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) Advance(ctx context.Context, orderID int64, actor services.Actor) (domain.Order, error) {
	if s.advanceFn != nil {
		return s.advanceFn(ctx, orderID, actor)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) Revert(ctx context.Context, orderID int64, actor services.Actor) (domain.Order, error) {
	if s.revertFn != nil {
		return s.revertFn(ctx, orderID, actor)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) Cancel(ctx context.Context, orderID int64, actor services.Actor) (domain.Order, error) {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, orderID, actor)
	}
	return domain.Order{}, errors.New("not implemented")
}

func testOrder(id int64, code domain.StatusCode) domain.Order {
	return domain.Order{
		ID:         id,
		CustomerID: "customer-1",
		Status: domain.OrderStatus{
			ID:          1,
			Code:        code,
			Description: domain.StatusDescriptions[code],
		},
		CreatedAt: handlerClock,
		UpdatedAt: handlerClock,
	}
}

func newOrderRouter(service services.OrderService) chi.Router {
	handler := NewOrderHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/orders", handler.Routes)
	return router
}

func withCustomer(req *http.Request, subject string) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{
		Subject: subject,
		Roles:   []string{auth.RoleCustomer},
	}))
}

func withEmployee(req *http.Request, subject string) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{
		Subject: subject,
		Roles:   []string{auth.RoleEmployee},
	}))
}

func TestOrderHandlersCreateOrder(t *testing.T) {
	var captured services.CreateOrderCommand
	service := &stubOrderService{
		createFn: func(_ context.Context, cmd services.CreateOrderCommand) (domain.Order, error) {
			captured = cmd
			return testOrder(7, domain.StatusPending), nil
		},
	}

	router := newOrderRouter(service)
	req := withCustomer(httptest.NewRequest(http.MethodPost, "/orders", nil), "customer-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Actor.ID != "customer-1" || captured.Actor.Employee {
		t.Fatalf("unexpected actor: %+v", captured.Actor)
	}

	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Order.ID != 7 || resp.Order.Status != string(domain.StatusPending) {
		t.Fatalf("unexpected order payload: %+v", resp.Order)
	}
}

func TestOrderHandlersListOrdersScopesCustomer(t *testing.T) {
	var captured services.OrderFilter
	service := &stubOrderService{
		listFn: func(_ context.Context, filter services.OrderFilter) ([]domain.Order, error) {
			captured = filter
			return []domain.Order{testOrder(1, domain.StatusPlaced)}, nil
		},
	}

	router := newOrderRouter(service)
	req := withCustomer(httptest.NewRequest(http.MethodGet, "/orders?status=order_placed&customer_id=other", nil), "customer-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.CustomerID != "customer-1" {
		t.Fatalf("expected customer scope customer-1, got %q", captured.CustomerID)
	}
	if len(captured.Status) != 1 || captured.Status[0] != domain.StatusPlaced {
		t.Fatalf("unexpected status filter: %+v", captured.Status)
	}
}

func TestOrderHandlersListOrdersEmployeeFilter(t *testing.T) {
	var captured services.OrderFilter
	service := &stubOrderService{
		listFn: func(_ context.Context, filter services.OrderFilter) ([]domain.Order, error) {
			captured = filter
			return nil, nil
		},
	}

	router := newOrderRouter(service)
	req := withEmployee(httptest.NewRequest(http.MethodGet, "/orders?customer_id=customer-9", nil), "staff-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.CustomerID != "customer-9" {
		t.Fatalf("expected employee filter to pass through, got %q", captured.CustomerID)
	}
}

func TestOrderHandlersListOrdersAnonymous(t *testing.T) {
	router := newOrderRouter(&stubOrderService{})
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestOrderHandlersListOrdersUnknownStatus(t *testing.T) {
	router := newOrderRouter(&stubOrderService{})
	req := withCustomer(httptest.NewRequest(http.MethodGet, "/orders?status=bogus", nil), "customer-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersGetOrder(t *testing.T) {
	service := &stubOrderService{
		getFn: func(_ context.Context, orderID int64) (domain.Order, error) {
			return testOrder(orderID, domain.StatusWaitingBurgers), nil
		},
	}

	router := newOrderRouter(service)
	req := httptest.NewRequest(http.MethodGet, "/orders/5", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Order.ID != 5 || resp.Order.Status != string(domain.StatusWaitingBurgers) {
		t.Fatalf("unexpected order payload: %+v", resp.Order)
	}
}

func TestOrderHandlersGetOrderNotFound(t *testing.T) {
	service := &stubOrderService{
		getFn: func(context.Context, int64) (domain.Order, error) {
			return domain.Order{}, fmt.Errorf("%w: order 99", services.ErrOrderNotFound)
		},
	}

	router := newOrderRouter(service)
	req := httptest.NewRequest(http.MethodGet, "/orders/99", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestOrderHandlersGetOrderInvalidID(t *testing.T) {
	router := newOrderRouter(&stubOrderService{})
	req := httptest.NewRequest(http.MethodGet, "/orders/abc", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersAddItem(t *testing.T) {
	var captured services.AddItemCommand
	service := &stubOrderService{
		addItemFn: func(_ context.Context, cmd services.AddItemCommand) (domain.Order, error) {
			captured = cmd
			order := testOrder(cmd.OrderID, domain.StatusWaitingBurgers)
			order.Items = []domain.OrderItem{{
				ID: 31, ProductID: cmd.ProductID, ProductName: "X-Bacon",
				ProductPrice: 2590, ProductCategory: domain.CategoryBurgers,
				Quantity: cmd.Quantity, Observation: cmd.Observation,
			}}
			return order, nil
		},
	}

	body := bytes.NewBufferString(`{"product_id": 2, "quantity": 2, "observation": "sem cebola"}`)
	router := newOrderRouter(service)
	req := withCustomer(httptest.NewRequest(http.MethodPost, "/orders/5/items", body), "customer-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.OrderID != 5 || captured.ProductID != 2 || captured.Quantity != 2 {
		t.Fatalf("unexpected command: %+v", captured)
	}
	if captured.Observation != "sem cebola" {
		t.Fatalf("unexpected observation %q", captured.Observation)
	}

	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Order.Items) != 1 || resp.Order.Items[0].Total != 5180 {
		t.Fatalf("unexpected items payload: %+v", resp.Order.Items)
	}
}

func TestOrderHandlersAddItemInvalidBody(t *testing.T) {
	router := newOrderRouter(&stubOrderService{})
	req := httptest.NewRequest(http.MethodPost, "/orders/5/items", bytes.NewBufferString("{"))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersUpdateItemQuantity(t *testing.T) {
	var captured services.ChangeItemQuantityCommand
	service := &stubOrderService{
		changeQtyFn: func(_ context.Context, cmd services.ChangeItemQuantityCommand) (domain.Order, error) {
			captured = cmd
			return testOrder(cmd.OrderID, domain.StatusWaitingBurgers), nil
		},
	}

	body := bytes.NewBufferString(`{"quantity": 3}`)
	router := newOrderRouter(service)
	req := withCustomer(httptest.NewRequest(http.MethodPatch, "/orders/5/items/31", body), "customer-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.OrderID != 5 || captured.ItemID != 31 || captured.Quantity != 3 {
		t.Fatalf("unexpected command: %+v", captured)
	}
}

func TestOrderHandlersUpdateItemRequiresField(t *testing.T) {
	router := newOrderRouter(&stubOrderService{})
	req := httptest.NewRequest(http.MethodPatch, "/orders/5/items/31", bytes.NewBufferString(`{}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersRemoveItem(t *testing.T) {
	var capturedOrder, capturedItem int64
	service := &stubOrderService{
		removeItemFn: func(_ context.Context, orderID, itemID int64, _ services.Actor) (domain.Order, error) {
			capturedOrder, capturedItem = orderID, itemID
			return testOrder(orderID, domain.StatusWaitingBurgers), nil
		},
	}

	router := newOrderRouter(service)
	req := withCustomer(httptest.NewRequest(http.MethodDelete, "/orders/5/items/31", nil), "customer-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if capturedOrder != 5 || capturedItem != 31 {
		t.Fatalf("unexpected ids: order %d item %d", capturedOrder, capturedItem)
	}
}

func TestOrderHandlersAdvance(t *testing.T) {
	service := &stubOrderService{
		advanceFn: func(_ context.Context, orderID int64, actor services.Actor) (domain.Order, error) {
			if !actor.Employee {
				t.Fatalf("expected employee actor, got %+v", actor)
			}
			return testOrder(orderID, domain.StatusPreparing), nil
		},
	}

	router := newOrderRouter(service)
	req := withEmployee(httptest.NewRequest(http.MethodPost, "/orders/5/advance", nil), "staff-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Order.Status != string(domain.StatusPreparing) {
		t.Fatalf("unexpected status %q", resp.Order.Status)
	}
}

func TestOrderHandlersAdvanceForbidden(t *testing.T) {
	service := &stubOrderService{
		advanceFn: func(context.Context, int64, services.Actor) (domain.Order, error) {
			return domain.Order{}, fmt.Errorf("%w: status requires an employee", services.ErrOrderForbidden)
		},
	}

	router := newOrderRouter(service)
	req := withCustomer(httptest.NewRequest(http.MethodPost, "/orders/5/advance", nil), "customer-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rr.Code)
	}
}

func TestOrderHandlersAdvanceInvalidTransition(t *testing.T) {
	service := &stubOrderService{
		advanceFn: func(context.Context, int64, services.Actor) (domain.Order, error) {
			return domain.Order{}, fmt.Errorf("%w: terminal status", domain.ErrInvalidTransition)
		},
	}

	router := newOrderRouter(service)
	req := withCustomer(httptest.NewRequest(http.MethodPost, "/orders/5/advance", nil), "customer-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}

func TestOrderHandlersAdvancePaymentFailure(t *testing.T) {
	service := &stubOrderService{
		advanceFn: func(context.Context, int64, services.Actor) (domain.Order, error) {
			return domain.Order{}, fmt.Errorf("%w: provider timeout", services.ErrOrderPaymentFailed)
		},
	}

	router := newOrderRouter(service)
	req := withCustomer(httptest.NewRequest(http.MethodPost, "/orders/5/advance", nil), "customer-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", rr.Code)
	}
}

func TestOrderHandlersListMovements(t *testing.T) {
	old := domain.StatusReadyToPlace
	service := &stubOrderService{
		listMovesFn: func(_ context.Context, orderID int64) ([]domain.StatusMovement, error) {
			return []domain.StatusMovement{{
				ID:        "01HZXF5N8B",
				OrderID:   orderID,
				OldStatus: &old,
				NewStatus: domain.StatusPlaced,
				ChangedBy: "customer-1",
				ChangedAt: handlerClock,
				Snapshot: &domain.OrderSnapshot{
					OrderID:       orderID,
					CustomerID:    "customer-1",
					CurrentStatus: old,
					Total:         5180,
					Items: []domain.SnapshotItem{{
						ID: 31, ProductID: 2, ProductName: "X-Bacon",
						Quantity: 2, UnitPrice: 2590, Total: 5180,
					}},
				},
			}}, nil
		},
	}

	router := newOrderRouter(service)
	req := httptest.NewRequest(http.MethodGet, "/orders/5/movements", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp movementListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Movements) != 1 {
		t.Fatalf("expected one movement, got %d", len(resp.Movements))
	}
	movement := resp.Movements[0]
	if movement.OldStatus != string(domain.StatusReadyToPlace) || movement.NewStatus != string(domain.StatusPlaced) {
		t.Fatalf("unexpected movement: %+v", movement)
	}
	if movement.Snapshot == nil || len(movement.Snapshot.Items) != 1 {
		t.Fatalf("expected snapshot items, got %+v", movement.Snapshot)
	}
}

func TestOrderHandlersListStageProducts(t *testing.T) {
	service := &stubOrderService{
		listStageFn: func(_ context.Context, orderID int64) ([]services.StageProduct, error) {
			return []services.StageProduct{
				{ID: 11, Name: "Guaraná", SKU: "DRNK-001", Price: 790, Category: domain.CategoryDrinks},
			}, nil
		},
	}

	router := newOrderRouter(service)
	req := httptest.NewRequest(http.MethodGet, "/orders/5/products", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp stageProductListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Products) != 1 || resp.Products[0].Category != string(domain.CategoryDrinks) {
		t.Fatalf("unexpected products: %+v", resp.Products)
	}
}
