package commerce

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/varalakshmimaha/Mahafashion-sub000/internal/domain/cart"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewClientWithHTTP(server.URL+"/api/", server.Client(), logger)
}

func TestClient_FetchFiltersRows(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/cart-items" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`[
			{"id": 1, "product": {"id": 7, "name": "Saree", "stock_quantity": "4"}, "quantity": 2, "price": "1000.00", "selected_color": "Red"},
			{"id": 2, "product_id": 8, "quantity": "3"},
			{"id": 3, "quantity": 1},
			{"id": 4, "product": null, "quantity": 1}
		]`))
	})

	items, err := client.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 rows after filtering, got %d", len(items))
	}

	first := items[0]
	if first.ID != "1" || first.Product.ID != "7" || first.Quantity != 2 || first.SelectedColor != "Red" {
		t.Errorf("unexpected first item %+v", first)
	}
	if !first.Price.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("expected price 1000, got %s", first.Price)
	}
	if first.Product.StockQuantity != 4 {
		t.Errorf("expected stock 4, got %d", first.Product.StockQuantity)
	}

	second := items[1]
	if second.Product.ID != "8" || second.Quantity != 3 {
		t.Errorf("expected product_id row to be kept, got %+v", second)
	}
}

func TestClient_FetchEnvelopes(t *testing.T) {
	bodies := map[string]string{
		"data array":  `{"data": [{"id": 1, "product_id": 7, "quantity": 1}]}`,
		"nested data": `{"data": {"items": [{"id": 1, "product_id": 7, "quantity": 1}]}}`,
		"items array": `{"items": [{"id": 1, "product_id": 7, "quantity": 1}]}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			})

			items, err := client.Fetch(context.Background())
			if err != nil {
				t.Fatalf("fetch failed: %v", err)
			}
			if len(items) != 1 || items[0].Product.ID != "7" {
				t.Errorf("unexpected items %+v", items)
			}
		})
	}
}

func TestClient_FetchErrorStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Unauthenticated."}`))
	})

	_, err := client.Fetch(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", apiErr.StatusCode)
	}
}

func TestClient_ForwardsBearerToken(t *testing.T) {
	var got string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	})

	ctx := ContextWithToken(context.Background(), "tok-123")
	if _, err := client.Fetch(ctx); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if got != "Bearer tok-123" {
		t.Errorf("expected bearer header, got %q", got)
	}
}

func TestClient_AddSendsPayload(t *testing.T) {
	var payload map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected json content type, got %q", ct)
		}
		json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"message":"ok","is_update":false}`))
	})

	resp, err := client.Add(context.Background(), cart.AddRequest{
		ProductID:     "7",
		Quantity:      2,
		SelectedColor: "Red",
		SelectedSize:  "M",
		BlouseOption:  "stitched",
		Price:         decimal.NewFromInt(1000),
	})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if resp.IsUpdate || resp.Rejection != "" {
		t.Errorf("unexpected response %+v", resp)
	}

	for _, key := range []string{"product_id", "quantity", "selected_color", "selected_size", "blouse_option", "price"} {
		if _, ok := payload[key]; !ok {
			t.Errorf("payload missing %q: %v", key, payload)
		}
	}
	if payload["product_id"] != "7" {
		t.Errorf("unexpected product_id %v", payload["product_id"])
	}
}

func TestClient_AddIsUpdate(t *testing.T) {
	bodies := map[string]string{
		"top level": `{"is_update": true}`,
		"in data":   `{"data": {"id": 3, "is_update": true}}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			})

			resp, err := client.Add(context.Background(), cart.AddRequest{ProductID: "7", Quantity: 1})
			if err != nil {
				t.Fatalf("add failed: %v", err)
			}
			if !resp.IsUpdate {
				t.Error("expected is_update to be reported")
			}
		})
	}
}

func TestClient_AddRejection(t *testing.T) {
	statuses := []int{http.StatusOK, http.StatusUnprocessableEntity, http.StatusBadRequest}

	for _, status := range statuses {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			w.Write([]byte(`{"error":"Only 5 items available in stock"}`))
		})

		resp, err := client.Add(context.Background(), cart.AddRequest{ProductID: "7", Quantity: 9})
		if err != nil {
			t.Fatalf("status %d: expected rejection, got error %v", status, err)
		}
		if resp.Rejection != "Only 5 items available in stock" {
			t.Errorf("status %d: unexpected rejection %q", status, resp.Rejection)
		}
	}
}

func TestClient_AddServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`<html>oops</html>`))
	})

	_, err := client.Add(context.Background(), cart.AddRequest{ProductID: "7", Quantity: 1})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected 500 APIError, got %v", err)
	}
}

func TestClient_MutationsUseItemPaths(t *testing.T) {
	type call struct {
		method string
		path   string
		body   string
	}
	var calls []call
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		calls = append(calls, call{r.Method, r.URL.EscapedPath(), string(body)})
		w.WriteHeader(http.StatusNoContent)
	})
	ctx := context.Background()

	if err := client.UpdateQuantity(ctx, "12", 4); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if err := client.Remove(ctx, "a/b"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if err := client.Clear(ctx); err != nil {
		t.Fatalf("clear failed: %v", err)
	}

	want := []call{
		{http.MethodPut, "/api/cart-items/12", `{"quantity":4}`},
		{http.MethodDelete, "/api/cart-items/a%2Fb", ""},
		{http.MethodDelete, "/api/cart-items", ""},
	}
	if len(calls) != len(want) {
		t.Fatalf("expected %d calls, got %d", len(want), len(calls))
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d: expected %+v, got %+v", i, want[i], calls[i])
		}
	}
}

func TestClient_MutationErrorStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	err := client.Remove(context.Background(), "12")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 APIError, got %v", err)
	}
}

func TestClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClientWithHTTP(url, http.DefaultClient, nil)
	if _, err := client.Fetch(context.Background()); err == nil {
		t.Error("expected an error for an unreachable API")
	}
}
