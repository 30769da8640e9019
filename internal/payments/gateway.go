package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	paymentPath         = "/payment"
	apiKeyHeader        = "x-api-key"
	defaultHTTPTimeout  = 10 * time.Second
	maxResponseBodySize = 1 << 20
)

// HTTPProvider submits payment requests to the payment microservice over HTTP.
type HTTPProvider struct {
	baseURL *url.URL
	apiKey  string
	client  *http.Client
}

var _ Provider = (*HTTPProvider)(nil)

// HTTPProviderOption customises the HTTP provider.
type HTTPProviderOption func(*HTTPProvider)

// WithHTTPClient overrides the HTTP client used for provider calls.
func WithHTTPClient(client *http.Client) HTTPProviderOption {
	return func(p *HTTPProvider) {
		if client != nil {
			p.client = client
		}
	}
}

// NewHTTPProvider constructs a provider targeting the given base URL.
func NewHTTPProvider(baseURL, apiKey string, opts ...HTTPProviderOption) (*HTTPProvider, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, errors.New("payments: base url is required")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("payments: invalid base url %q", baseURL)
	}

	provider := &HTTPProvider{
		baseURL: parsed,
		apiKey:  strings.TrimSpace(apiKey),
		client:  &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(provider)
		}
	}
	return provider, nil
}

// CreatePayment posts the payment request and returns the provider's payment handle.
func (p *HTTPProvider) CreatePayment(ctx context.Context, req Request) (Payment, error) {
	if p == nil || p.client == nil {
		return Payment{}, errors.New("payments: provider not initialised")
	}
	if req.Amount <= 0 {
		return Payment{}, errors.New("payments: amount must be positive")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return Payment{}, fmt.Errorf("payments: marshal request: %w", err)
	}

	endpoint := p.baseURL.JoinPath(paymentPath)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return Payment{}, fmt.Errorf("payments: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set(apiKeyHeader, p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return Payment{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return Payment{}, fmt.Errorf("%w: read body: %v", ErrProviderUnavailable, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return Payment{}, fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var payment Payment
	if err := json.Unmarshal(body, &payment); err != nil {
		return Payment{}, fmt.Errorf("%w: decode: %v", ErrInvalidResponse, err)
	}
	if strings.TrimSpace(payment.PaymentID) == "" {
		return Payment{}, fmt.Errorf("%w: payment_id missing", ErrInvalidResponse)
	}
	return payment, nil
}
