package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mealkart/cartsync-backend/internal/cartsync"
	"github.com/mealkart/cartsync-backend/internal/catalog"
	"github.com/mealkart/cartsync-backend/internal/engine"
	"github.com/mealkart/cartsync-backend/internal/gueststore"
	"github.com/mealkart/cartsync-backend/internal/mutation"
	"github.com/mealkart/cartsync-backend/internal/remotecart"
	"github.com/mealkart/cartsync-backend/pkg/auth"
	"github.com/mealkart/cartsync-backend/pkg/config"
	"github.com/shopspring/decimal"
)

var testJWT = config.JWTConfig{Secret: "test-secret", Issuer: "mealkart-auth"}

type testEnv struct {
	api        *httptest.Server
	store      gueststore.Store
	remoteAdds *atomic.Int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	catalogSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/dish/7" {
			w.Write([]byte(`{
				"id": 7,
				"name": "Pad Thai",
				"price": "12.50",
				"image": "/img/7.jpg",
				"merchantId": 4,
				"merchantName": "Thai Garden"
			}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(catalogSrv.Close)

	var remoteAdds atomic.Int64
	remoteSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/cart/add" {
			remoteAdds.Add(1)
		}
	}))
	t.Cleanup(remoteSrv.Close)

	dishes, err := catalog.NewClient(catalogSrv.URL, "https://cdn.mealkart.app", nil)
	if err != nil {
		t.Fatalf("catalog client: %v", err)
	}
	remote, err := remotecart.NewClient(remoteSrv.URL)
	if err != nil {
		t.Fatalf("remote client: %v", err)
	}

	kv, err := gueststore.NewFileKV(t.TempDir())
	if err != nil {
		t.Fatalf("file kv: %v", err)
	}
	store, err := gueststore.NewJSONStore(kv, nil, gueststore.DefaultCacheTTL)
	if err != nil {
		t.Fatalf("json store: %v", err)
	}

	registry, err := engine.NewRegistry(context.Background(), store, dishes, remote, nil, nil, mutation.Options{
		DebounceWindow: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	syncer, err := cartsync.NewSyncer(remote, nil, nil, 4)
	if err != nil {
		t.Fatalf("syncer: %v", err)
	}

	handler := New(Deps{
		Config:   &config.Config{JWT: testJWT},
		Registry: registry,
		Syncer:   syncer,
		Remote:   remote,
	})
	api := httptest.NewServer(handler)
	t.Cleanup(api.Close)

	return &testEnv{api: api, store: store, remoteAdds: &remoteAdds}
}

func (e *testEnv) do(t *testing.T, method, path, guestID, token string, body any) (*http.Response, map[string]json.RawMessage) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.api.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if guestID != "" {
		req.Header.Set("X-Guest-Session", guestID)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var envelope map[string]json.RawMessage
	json.NewDecoder(resp.Body).Decode(&envelope)
	return resp, envelope
}

func TestGuestCartFlow(t *testing.T) {
	env := newTestEnv(t)

	// Add a dish.
	resp, _ := env.do(t, http.MethodPost, "/api/cart/items", "g1", "", map[string]any{
		"dishId": 7, "quantity": 2,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add: expected 201 got %d", resp.StatusCode)
	}

	// Read the grouped view.
	resp, envelope := env.do(t, http.MethodGet, "/api/cart", "g1", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("view: expected 200 got %d", resp.StatusCode)
	}
	var view struct {
		Groups []struct {
			RestaurantName string `json:"restaurantName"`
			Items          []struct {
				DishID   int64  `json:"dishId"`
				Quantity int    `json:"quantity"`
				State    string `json:"state"`
			} `json:"items"`
		} `json:"groups"`
		TotalItems int             `json:"totalItems"`
		TotalPrice decimal.Decimal `json:"totalPrice"`
	}
	if err := json.Unmarshal(envelope["data"], &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if len(view.Groups) != 1 || view.Groups[0].RestaurantName != "Thai Garden" {
		t.Fatalf("unexpected groups %+v", view.Groups)
	}
	if view.TotalItems != 2 || !view.TotalPrice.Equal(decimal.RequireFromString("25.00")) {
		t.Fatalf("unexpected totals %d %s", view.TotalItems, view.TotalPrice)
	}

	// Increment is optimistic and debounced.
	resp, envelope = env.do(t, http.MethodPost, "/api/cart/items/7/increment", "g1", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("increment: expected 200 got %d", resp.StatusCode)
	}
	var line struct {
		Quantity int    `json:"quantity"`
		State    string `json:"state"`
	}
	if err := json.Unmarshal(envelope["data"], &line); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if line.Quantity != 3 || line.State != "pending_debounce" {
		t.Fatalf("unexpected line %+v", line)
	}

	// Select the row, then guest checkout is refused.
	resp, _ = env.do(t, http.MethodPost, "/api/cart/selection/items/7", "g1", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("toggle: expected 200 got %d", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodPost, "/api/cart/checkout", "g1", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("guest checkout must demand login, got %d", resp.StatusCode)
	}
}

func TestRemovalFlowOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodPost, "/api/cart/items", "g2", "", map[string]any{"dishId": 7, "quantity": 1})
	env.do(t, http.MethodGet, "/api/cart", "g2", "", nil)

	resp, envelope := env.do(t, http.MethodPost, "/api/cart/items/7/remove", "g2", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("request removal: expected 200 got %d", resp.StatusCode)
	}
	var line struct {
		ConfirmOpen bool `json:"confirmOpen"`
	}
	json.Unmarshal(envelope["data"], &line)
	if !line.ConfirmOpen {
		t.Fatalf("expected open confirmation")
	}

	resp, _ = env.do(t, http.MethodDelete, "/api/cart/items/7", "g2", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("confirm removal: expected 200 got %d", resp.StatusCode)
	}

	lines, _ := env.store.GetCart(context.Background(), "g2")
	if len(lines) != 0 {
		t.Fatalf("expected empty guest cart after removal, got %+v", lines)
	}
}

func TestSyncEndpoint(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodPost, "/api/cart/items", "g3", "", map[string]any{"dishId": 7, "quantity": 2})

	// Sync requires authentication.
	resp, _ := env.do(t, http.MethodPost, "/api/cart/sync", "g3", "", map[string]any{"guestSessionId": "g3"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("guest sync must be refused, got %d", resp.StatusCode)
	}

	token, err := auth.MintAccessToken(testJWT, time.Now(), "user-42", time.Hour)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	resp, envelope := env.do(t, http.MethodPost, "/api/cart/sync", "g3", token, map[string]any{"guestSessionId": "g3"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sync: expected 200 got %d", resp.StatusCode)
	}
	var report struct {
		Attempted int `json:"attempted"`
		Failed    int `json:"failed"`
	}
	json.Unmarshal(envelope["data"], &report)
	if report.Attempted != 1 || report.Failed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if env.remoteAdds.Load() != 1 {
		t.Fatalf("expected 1 server add, got %d", env.remoteAdds.Load())
	}

	lines, _ := env.store.GetCart(context.Background(), "g3")
	if len(lines) != 0 {
		t.Fatalf("guest cart must be cleared after sync, got %+v", lines)
	}
}

func TestValidationErrors(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodPost, "/api/cart/items", "g4", "", map[string]any{
		"dishId": 7, "quantity": 0,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("zero quantity must be rejected, got %d", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodPost, "/api/cart/items", "g4", "", map[string]any{
		"dishId": 7, "quantity": 2, "unknown": true,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown fields must be rejected, got %d", resp.StatusCode)
	}
}

func TestSetQuantityClampsZero(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodPost, "/api/cart/items", "g6", "", map[string]any{"dishId": 7, "quantity": 2})
	env.do(t, http.MethodGet, "/api/cart", "g6", "", nil)

	resp, envelope := env.do(t, http.MethodPut, "/api/cart/items/7", "g6", "", map[string]any{"quantity": 0})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("zero quantity must be clamped, not rejected, got %d", resp.StatusCode)
	}
	var line struct {
		Quantity int `json:"quantity"`
	}
	json.Unmarshal(envelope["data"], &line)
	if line.Quantity != 1 {
		t.Fatalf("expected clamp to the floor, got %d", line.Quantity)
	}

	// A body without the field is still malformed.
	resp, _ = env.do(t, http.MethodPut, "/api/cart/items/7", "g6", "", map[string]any{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing quantity must be rejected, got %d", resp.StatusCode)
	}
}

func TestAddVanishedDishOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodPost, "/api/cart/items", "g5", "", map[string]any{
		"dishId": 404, "quantity": 1,
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("vanished dish must 404, got %d", resp.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/healthz", "", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.StatusCode)
	}
}
