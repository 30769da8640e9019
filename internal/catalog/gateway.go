package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	productsPath        = "/products"
	apiKeyHeader        = "x-api-key"
	defaultHTTPTimeout  = 10 * time.Second
	maxResponseBodySize = 1 << 20
)

var (
	// ErrProductNotFound is returned when the catalog has no product with the given id.
	ErrProductNotFound = errors.New("catalog: product not found")
	// ErrGatewayUnavailable is returned when the catalog service cannot be reached.
	ErrGatewayUnavailable = errors.New("catalog: gateway unavailable")
)

// Product is the denormalised view of a catalog product used when adding order items.
type Product struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	SKU      string `json:"sku"`
	Price    int64  `json:"price"`
	Category string `json:"category"`
}

// Gateway resolves products from the catalog microservice.
type Gateway interface {
	GetProduct(ctx context.Context, productID int64) (Product, error)
	ListByCategory(ctx context.Context, category string) ([]Product, error)
}

// HTTPGateway talks to the catalog microservice over HTTP with API-key auth.
type HTTPGateway struct {
	baseURL *url.URL
	apiKey  string
	client  *http.Client
}

var _ Gateway = (*HTTPGateway)(nil)

// HTTPGatewayOption customises the HTTP gateway.
type HTTPGatewayOption func(*HTTPGateway)

// WithHTTPClient overrides the HTTP client used for catalog calls.
func WithHTTPClient(client *http.Client) HTTPGatewayOption {
	return func(g *HTTPGateway) {
		if client != nil {
			g.client = client
		}
	}
}

// NewHTTPGateway constructs a gateway targeting the given base URL.
func NewHTTPGateway(baseURL, apiKey string, opts ...HTTPGatewayOption) (*HTTPGateway, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, errors.New("catalog: base url is required")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("catalog: invalid base url %q", baseURL)
	}

	gateway := &HTTPGateway{
		baseURL: parsed,
		apiKey:  strings.TrimSpace(apiKey),
		client:  &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(gateway)
		}
	}
	return gateway, nil
}

// GetProduct fetches a single product by id.
func (g *HTTPGateway) GetProduct(ctx context.Context, productID int64) (Product, error) {
	if productID <= 0 {
		return Product{}, fmt.Errorf("%w: id %d", ErrProductNotFound, productID)
	}

	var product Product
	path := productsPath + "/" + strconv.FormatInt(productID, 10)
	if err := g.getJSON(ctx, path, nil, &product); err != nil {
		return Product{}, err
	}
	return product, nil
}

// ListByCategory fetches every product within a category.
func (g *HTTPGateway) ListByCategory(ctx context.Context, category string) ([]Product, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, errors.New("catalog: category is required")
	}

	var products []Product
	query := url.Values{"category": []string{category}}
	if err := g.getJSON(ctx, productsPath, query, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (g *HTTPGateway) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	if g == nil || g.client == nil {
		return errors.New("catalog: gateway not initialised")
	}

	endpoint := g.baseURL.JoinPath(path)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("catalog: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if g.apiKey != "" {
		req.Header.Set(apiKeyHeader, g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrProductNotFound
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		return fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrGatewayUnavailable, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("catalog: decode response: %w", err)
	}
	return nil
}
