package payments

import (
	"context"
	"errors"
)

// Status enumerates the normalised payment states reported by the provider.
type Status string

const (
	// StatusPending indicates the payment is awaiting customer action.
	StatusPending Status = "pending"
	// StatusApproved indicates the provider confirmed the payment.
	StatusApproved Status = "approved"
	// StatusRejected indicates the provider declined the payment.
	StatusRejected Status = "rejected"
	// StatusCancelled indicates the payment was cancelled before completion.
	StatusCancelled Status = "cancelled"
)

var (
	// ErrProviderUnavailable is returned when the provider cannot be reached.
	ErrProviderUnavailable = errors.New("payments: provider unavailable")
	// ErrInvalidResponse is returned when the provider response lacks required fields.
	ErrInvalidResponse = errors.New("payments: invalid provider response")
)

// LineItem describes a single order line included in the payment request.
type LineItem struct {
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Total     int64  `json:"total"`
}

// Customer identifies the paying customer, when known.
type Customer struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// Request captures the payload submitted when a placed order needs a payment.
type Request struct {
	Title             string     `json:"title"`
	Description       string     `json:"description,omitempty"`
	Amount            int64      `json:"amount"`
	Currency          string     `json:"currency"`
	Items             []LineItem `json:"items"`
	Customer          Customer   `json:"customer"`
	ExternalReference string     `json:"external_reference"`
	NotificationURL   string     `json:"notification_url,omitempty"`
}

// Payment is the provider's handle for a created payment.
type Payment struct {
	PaymentID     string `json:"payment_id"`
	QRCode        string `json:"qr_code,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
}

// Provider creates payments against the external payment service.
type Provider interface {
	CreatePayment(ctx context.Context, req Request) (Payment, error)
}
