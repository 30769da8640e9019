package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/snackhouse/api/internal/platform/httpx"
	"github.com/snackhouse/api/internal/services"
)

const maxWebhookBodySize = 8 * 1024

type paymentNotificationRequest struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}

// WebhookHandlers receives callbacks from the payment provider. Authentication
// is handled by the group middleware (API key plus rate limit).
type WebhookHandlers struct {
	webhooks services.WebhookService
	limiter  RateLimiter
}

// NewWebhookHandlers constructs a new WebhookHandlers instance.
func NewWebhookHandlers(webhooks services.WebhookService, limiter RateLimiter) *WebhookHandlers {
	return &WebhookHandlers{
		webhooks: webhooks,
		limiter:  limiter,
	}
}

// Routes registers the /webhooks endpoints.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/payments", h.paymentNotification)
}

func (h *WebhookHandlers) paymentNotification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.limiter != nil && !h.limiter.Allow(r.RemoteAddr) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many webhook deliveries", http.StatusTooManyRequests))
		return
	}

	var req paymentNotificationRequest
	if !decodeBody(ctx, w, r, maxWebhookBodySize, &req) {
		return
	}

	order, err := h.webhooks.HandlePaymentNotification(ctx, services.PaymentNotification{
		PaymentID: strings.TrimSpace(req.PaymentID),
		Status:    req.Status,
	})
	if err != nil {
		writeWebhookError(w, r, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, paymentNotificationResponse{
		Result: "confirmed",
		Order:  buildOrderSummary(order),
	})
}

// writeWebhookError maps webhook failures onto provider-friendly responses.
// Non-approval notifications are acknowledged with 200 so the provider stops
// retrying them.
func writeWebhookError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, services.ErrWebhookIgnored):
		writeJSONResponse(w, http.StatusOK, paymentNotificationAck{Result: "ignored"})
	case errors.Is(err, services.ErrWebhookInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrWebhookOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrWebhookInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_state", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected error", http.StatusInternalServerError))
	}
}

type paymentNotificationResponse struct {
	Result string              `json:"result"`
	Order  orderSummaryPayload `json:"order"`
}

type paymentNotificationAck struct {
	Result string `json:"result"`
}
