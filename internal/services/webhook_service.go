package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/snackhouse/api/internal/domain"
	"github.com/snackhouse/api/internal/payments"
	"github.com/snackhouse/api/internal/repositories"
)

var (
	// ErrWebhookInvalidInput signals the notification payload is malformed.
	ErrWebhookInvalidInput = errors.New("webhook: invalid input")
	// ErrWebhookIgnored indicates the notification carries a non-approval status.
	ErrWebhookIgnored = errors.New("webhook: notification ignored")
	// ErrWebhookOrderNotFound indicates no order references the payment id.
	ErrWebhookOrderNotFound = errors.New("webhook: order not found")
	// ErrWebhookInvalidState indicates the order is not awaiting payment.
	ErrWebhookInvalidState = errors.New("webhook: order is not awaiting payment")
)

// WebhookServiceDeps bundles collaborators required to construct the webhook service.
type WebhookServiceDeps struct {
	Orders       repositories.OrderRepository
	OrderService OrderService
	Logger       func(ctx context.Context, event string, fields map[string]any)
}

type webhookService struct {
	orders       repositories.OrderRepository
	orderService OrderService
	logger       func(context.Context, string, map[string]any)
}

// NewWebhookService wires dependencies into a concrete WebhookService implementation.
func NewWebhookService(deps WebhookServiceDeps) (WebhookService, error) {
	if deps.Orders == nil {
		return nil, errors.New("webhook service: order repository is required")
	}
	if deps.OrderService == nil {
		return nil, errors.New("webhook service: order service is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &webhookService{
		orders:       deps.Orders,
		orderService: deps.OrderService,
		logger:       logger,
	}, nil
}

// HandlePaymentNotification confirms an approved payment by advancing the
// matching order from placed to paid on behalf of System. Non-approval
// notifications are acknowledged but not applied.
func (s *webhookService) HandlePaymentNotification(ctx context.Context, notification PaymentNotification) (domain.Order, error) {
	paymentID := strings.TrimSpace(notification.PaymentID)
	if paymentID == "" {
		return domain.Order{}, fmt.Errorf("%w: payment id is required", ErrWebhookInvalidInput)
	}

	status := payments.Status(strings.ToLower(strings.TrimSpace(notification.Status)))
	if status == "" {
		return domain.Order{}, fmt.Errorf("%w: payment status is required", ErrWebhookInvalidInput)
	}
	if status != payments.StatusApproved {
		s.logger(ctx, "webhook.payment.ignored", map[string]any{
			"payment": paymentID,
			"status":  string(status),
		})
		return domain.Order{}, fmt.Errorf("%w: payment status %q", ErrWebhookIgnored, status)
	}

	order, err := s.orders.FindByPaymentID(ctx, paymentID)
	if err != nil {
		if repositories.IsRepositoryNotFound(err) {
			return domain.Order{}, fmt.Errorf("%w: payment %q", ErrWebhookOrderNotFound, paymentID)
		}
		return domain.Order{}, err
	}

	if order.Status.Code != domain.StatusPlaced {
		return domain.Order{}, fmt.Errorf("%w: order %d is %q", ErrWebhookInvalidState, order.ID, order.Status.Code)
	}

	confirmed, err := s.orderService.Advance(ctx, order.ID, SystemActor)
	if err != nil {
		return domain.Order{}, err
	}

	s.logger(ctx, "webhook.payment.confirmed", map[string]any{
		"payment": paymentID,
		"order":   confirmed.ID,
		"status":  string(confirmed.Status.Code),
	})
	return confirmed, nil
}
