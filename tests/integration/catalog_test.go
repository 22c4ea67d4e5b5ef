//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestListProducts(t *testing.T) {
	resp := doGet(t, "/api/products")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	products := decodeJSON[[]productResponse](t, resp)
	if len(products) < 3 {
		t.Fatalf("expected 3+ products, got %d", len(products))
	}
}

func TestListProducts_Fields(t *testing.T) {
	resp := doGet(t, "/api/products")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	products := decodeJSON[[]productResponse](t, resp)

	var dosa *productResponse
	for i := range products {
		if products[i].ID == "dosa-masala" {
			dosa = &products[i]
			break
		}
	}

	if dosa == nil {
		t.Fatal("product 'dosa-masala' not found")
	}
	if dosa.Name != "Masala Dosa" {
		t.Errorf("name: got %q, want %q", dosa.Name, "Masala Dosa")
	}
	if dosa.Price != 80 {
		t.Errorf("price: got %v, want 80", dosa.Price)
	}
	if dosa.CategoryID != "south-indian" {
		t.Errorf("category_id: got %q, want %q", dosa.CategoryID, "south-indian")
	}
}

func TestListCurrencies(t *testing.T) {
	resp := doGet(t, "/api/currencies")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	currencies := decodeJSON[[]map[string]any](t, resp)
	if len(currencies) < 3 {
		t.Fatalf("expected 3+ seeded currencies, got %d", len(currencies))
	}
}

func TestListOffers(t *testing.T) {
	resp := doGet(t, "/api/offers")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	offers := decodeJSON[[]map[string]any](t, resp)
	if len(offers) == 0 {
		t.Fatal("expected seeded offers")
	}
}
