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
	"github.com/snackhouse/api/internal/services"
)

type stubWebhookService struct {
	handleFn func(context.Context, services.PaymentNotification) (domain.Order, error)
}

func (s *stubWebhookService) HandlePaymentNotification(ctx context.Context, notification services.PaymentNotification) (domain.Order, error) {
	if s.handleFn != nil {
		return s.handleFn(ctx, notification)
	}
	return domain.Order{}, errors.New("not implemented")
}

func newWebhookRouter(service services.WebhookService, limiter RateLimiter) chi.Router {
	handler := NewWebhookHandlers(service, limiter)
	router := chi.NewRouter()
	router.Route("/webhooks", handler.Routes)
	return router
}

func TestWebhookHandlersPaymentConfirmed(t *testing.T) {
	var captured services.PaymentNotification
	service := &stubWebhookService{
		handleFn: func(_ context.Context, notification services.PaymentNotification) (domain.Order, error) {
			captured = notification
			return testOrder(5, domain.StatusPaid), nil
		},
	}

	body := bytes.NewBufferString(`{"payment_id": "pay_123", "status": "approved"}`)
	router := newWebhookRouter(service, nil)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", body)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.PaymentID != "pay_123" || captured.Status != "approved" {
		t.Fatalf("unexpected notification: %+v", captured)
	}

	var resp paymentNotificationResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Result != "confirmed" || resp.Order.Status != string(domain.StatusPaid) {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestWebhookHandlersIgnoredNotification(t *testing.T) {
	service := &stubWebhookService{
		handleFn: func(context.Context, services.PaymentNotification) (domain.Order, error) {
			return domain.Order{}, fmt.Errorf("%w: payment status \"rejected\"", services.ErrWebhookIgnored)
		},
	}

	body := bytes.NewBufferString(`{"payment_id": "pay_123", "status": "rejected"}`)
	router := newWebhookRouter(service, nil)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", body)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 for ignored notification, got %d", rr.Code)
	}

	var resp paymentNotificationAck
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Result != "ignored" {
		t.Fatalf("expected ignored ack, got %+v", resp)
	}
}

func TestWebhookHandlersUnknownPayment(t *testing.T) {
	service := &stubWebhookService{
		handleFn: func(context.Context, services.PaymentNotification) (domain.Order, error) {
			return domain.Order{}, fmt.Errorf("%w: payment %q", services.ErrWebhookOrderNotFound, "pay_missing")
		},
	}

	body := bytes.NewBufferString(`{"payment_id": "pay_missing", "status": "approved"}`)
	router := newWebhookRouter(service, nil)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", body)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestWebhookHandlersWrongState(t *testing.T) {
	service := &stubWebhookService{
		handleFn: func(context.Context, services.PaymentNotification) (domain.Order, error) {
			return domain.Order{}, fmt.Errorf("%w: order 5 is %q", services.ErrWebhookInvalidState, domain.StatusPaid)
		},
	}

	body := bytes.NewBufferString(`{"payment_id": "pay_123", "status": "approved"}`)
	router := newWebhookRouter(service, nil)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", body)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}

func TestWebhookHandlersInvalidBody(t *testing.T) {
	router := newWebhookRouter(&stubWebhookService{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", bytes.NewBufferString("not-json"))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestWebhookHandlersRateLimited(t *testing.T) {
	service := &stubWebhookService{
		handleFn: func(context.Context, services.PaymentNotification) (domain.Order, error) {
			return testOrder(5, domain.StatusPaid), nil
		},
	}
	limiter := NewRateLimiter(1, time.Minute, func() time.Time { return handlerClock })
	router := newWebhookRouter(service, limiter)

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		body := bytes.NewBufferString(`{"payment_id": "pay_123", "status": "approved"}`)
		req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", body)
		req.RemoteAddr = "203.0.113.10:4567"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != want {
			t.Fatalf("request %d: expected status %d, got %d", i, want, rr.Code)
		}
	}
}
