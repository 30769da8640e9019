package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPGatewayGetProduct(t *testing.T) {
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products/7" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		gotKey = r.Header.Get("x-api-key")
		_ = json.NewEncoder(w).Encode(Product{
			ID:       7,
			Name:     "Classic Burger",
			SKU:      "BRG-001",
			Price:    500,
			Category: "burgers",
		})
	}))
	defer server.Close()

	gateway, err := NewHTTPGateway(server.URL, "catalog-key")
	if err != nil {
		t.Fatalf("NewHTTPGateway: %v", err)
	}

	product, err := gateway.GetProduct(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if product.Name != "Classic Burger" || product.Price != 500 || product.Category != "burgers" {
		t.Errorf("unexpected product: %+v", product)
	}
	if gotKey != "catalog-key" {
		t.Errorf("api key header not sent, got %q", gotKey)
	}
}

func TestHTTPGatewayGetProductNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	gateway, err := NewHTTPGateway(server.URL, "")
	if err != nil {
		t.Fatalf("NewHTTPGateway: %v", err)
	}

	if _, err := gateway.GetProduct(context.Background(), 99); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestHTTPGatewayListByCategory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("category"); got != "sides" {
			t.Errorf("unexpected category query: %q", got)
		}
		_ = json.NewEncoder(w).Encode([]Product{
			{ID: 10, Name: "Fries", Price: 250, Category: "sides"},
			{ID: 11, Name: "Onion Rings", Price: 300, Category: "sides"},
		})
	}))
	defer server.Close()

	gateway, err := NewHTTPGateway(server.URL, "")
	if err != nil {
		t.Fatalf("NewHTTPGateway: %v", err)
	}

	products, err := gateway.ListByCategory(context.Background(), "sides")
	if err != nil {
		t.Fatalf("ListByCategory: %v", err)
	}
	if len(products) != 2 || products[0].Name != "Fries" {
		t.Errorf("unexpected products: %+v", products)
	}
}

func TestHTTPGatewayServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	gateway, err := NewHTTPGateway(server.URL, "")
	if err != nil {
		t.Fatalf("NewHTTPGateway: %v", err)
	}

	if _, err := gateway.ListByCategory(context.Background(), "drinks"); !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
}
