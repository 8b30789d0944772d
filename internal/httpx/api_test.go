package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-agro-market/internal/accounts"
	"github.com/ariefcatur/go-agro-market/internal/apperr"
	"github.com/ariefcatur/go-agro-market/internal/app"
	"github.com/ariefcatur/go-agro-market/internal/cart"
	"github.com/ariefcatur/go-agro-market/internal/catalog"
	"github.com/ariefcatur/go-agro-market/internal/memstore"
	"github.com/ariefcatur/go-agro-market/internal/orders"
	"github.com/ariefcatur/go-agro-market/internal/payment"
	"github.com/ariefcatur/go-agro-market/internal/redisx"
)

type mapCache struct {
	mu sync.Mutex
	m  map[string]string
}

func newMapCache() *mapCache { return &mapCache{m: map[string]string{}} }

func (c *mapCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
	return nil
}

func (c *mapCache) SetNX(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.m[key]; ok {
		return false, nil
	}
	c.m[key] = value
	return true, nil
}

func (c *mapCache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
	return nil
}

type testServer struct {
	srv   *httptest.Server
	gw    *payment.Simulated
	cache *mapCache
	store *memstore.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memstore.New()
	gw := &payment.Simulated{Outcome: payment.Authorized}
	svcs := app.New(app.Deps{
		Store:    store,
		Payments: gw,
		Merchant: payment.Merchant{ID: "merchant.test", Currency: "USD", CountryCode: "US"},
		Producer: "test",
	})
	cache := newMapCache()
	r := NewRouter(nil)
	(&API{
		Accounts:      svcs.Accounts,
		Subscriptions: svcs.Subscriptions,
		Catalog:       svcs.Catalog,
		Cart:          svcs.Cart,
		Orders:        svcs.Orders,
		Demands:       svcs.Demands,
		Cache:         cache,
	}).Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, gw: gw, cache: cache, store: store}
}

func (ts *testServer) do(t *testing.T, method, path, userID string, body any, headers ...string) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(HeaderUserID, userID)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Body.Close() })
	return res
}

func readJSON[T any](t *testing.T, res *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(res.Body).Decode(&v))
	return v
}

func (ts *testServer) register(t *testing.T, email string, role accounts.Role) string {
	t.Helper()
	in := map[string]any{"name": email, "email": email, "phone": "+373", "role": role, "location": "Orhei"}
	if role == accounts.RoleFarmer {
		in["farm_name"] = "Farm " + email
	}
	res := ts.do(t, http.MethodPost, "/users", "", in)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	return readJSON[registerResp](t, res).User.ID
}

func (ts *testServer) listing(t *testing.T, farmerID, name string, price int) catalog.Product {
	t.Helper()
	res := ts.do(t, http.MethodPost, "/products", farmerID, map[string]any{
		"name": name, "description": name, "category": "vegetables", "price": price,
		"unit": "kg", "available_quantity": 50, "delivery_options": []string{"pickup", "delivery"},
	})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	return readJSON[catalog.Product](t, res)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusOf(apperr.Invalidf("bad")))
	assert.Equal(t, http.StatusNotFound, statusOf(fmt.Errorf("order: %w", apperr.ErrNotFound)))
	assert.Equal(t, http.StatusForbidden, statusOf(catalog.ErrListingLimit))
	assert.Equal(t, http.StatusConflict, statusOf(orders.ErrInvalidTransition))
	assert.Equal(t, http.StatusPaymentRequired, statusOf(payment.ErrDeclined))
	assert.Equal(t, http.StatusInternalServerError, statusOf(errors.New("boom")))
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	res := ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestRegister(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "maria@greenfarm.md", accounts.RoleFarmer)

	dup := ts.do(t, http.MethodPost, "/users", "", map[string]any{
		"name": "Maria", "email": "maria@greenfarm.md", "phone": "+373", "role": "consumer", "location": "Orhei",
	})
	assert.Equal(t, http.StatusConflict, dup.StatusCode)

	unknown := ts.do(t, http.MethodPost, "/users", "", `{"name":"x","nickname":"y"}`)
	assert.Equal(t, http.StatusBadRequest, unknown.StatusCode)

	empty := ts.do(t, http.MethodPost, "/users", "", nil)
	assert.Equal(t, http.StatusBadRequest, empty.StatusCode)
}

func TestActorRequired(t *testing.T) {
	ts := newTestServer(t)
	res := ts.do(t, http.MethodGet, "/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestSelfOnly(t *testing.T) {
	ts := newTestServer(t)
	a := ts.register(t, "a@example.md", accounts.RoleConsumer)
	b := ts.register(t, "b@example.md", accounts.RoleConsumer)

	res := ts.do(t, http.MethodPatch, "/users/"+a, b, map[string]any{"location": "Balti"})
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	res = ts.do(t, http.MethodPatch, "/users/"+a, a, map[string]any{"location": "Balti"})
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "Balti", readJSON[accounts.User](t, res).Location)
}

func TestProducts(t *testing.T) {
	ts := newTestServer(t)
	farmer := ts.register(t, "maria@greenfarm.md", accounts.RoleFarmer)
	buyer := ts.register(t, "ana@example.md", accounts.RoleConsumer)
	ts.listing(t, farmer, "Organic Tomatoes", 25)
	ts.listing(t, farmer, "Fresh Cucumbers", 18)

	res := ts.do(t, http.MethodPost, "/products", buyer, map[string]any{
		"name": "x", "description": "x", "category": "vegetables", "price": 1, "unit": "kg",
	})
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res = ts.do(t, http.MethodGet, "/products?q=tomato", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	found := readJSON[[]catalog.Product](t, res)
	require.Len(t, found, 1)
	assert.Equal(t, "Organic Tomatoes", found[0].Name)

	res = ts.do(t, http.MethodGet, "/products?sort=priceLow", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	sorted := readJSON[[]catalog.Product](t, res)
	require.Len(t, sorted, 2)
	assert.Equal(t, "Fresh Cucumbers", sorted[0].Name)

	res = ts.do(t, http.MethodGet, "/products?sort=cheapest", "", nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	res = ts.do(t, http.MethodGet, "/products?lat=47", "", nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = ts.do(t, http.MethodGet, "/users/"+farmer+"/products", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Len(t, readJSON[[]catalog.Product](t, res), 2)
}

func (ts *testServer) fillCart(t *testing.T, buyer, productID string) {
	t.Helper()
	res := ts.do(t, http.MethodPost, "/cart/items", buyer, map[string]any{
		"product_id": productID, "quantity": 2, "delivery_option": "pickup",
	})
	require.Equal(t, http.StatusCreated, res.StatusCode)
}

func TestCheckout_IdempotentReplay(t *testing.T) {
	ts := newTestServer(t)
	farmer := ts.register(t, "maria@greenfarm.md", accounts.RoleFarmer)
	buyer := ts.register(t, "chef@villamia.md", accounts.RoleRestaurant)
	p := ts.listing(t, farmer, "Organic Tomatoes", 25)
	ts.fillCart(t, buyer, p.ID)

	body := map[string]any{"delivery_option": "pickup"}
	first := ts.do(t, http.MethodPost, "/checkout", buyer, body, HeaderIdempotencyKey, "k-1")
	require.Equal(t, http.StatusCreated, first.StatusCode)
	placed := readJSON[[]orders.Order](t, first)
	require.Len(t, placed, 1)
	assert.Empty(t, first.Header.Get("Idempotent-Replayed"))

	second := ts.do(t, http.MethodPost, "/checkout", buyer, body, HeaderIdempotencyKey, "k-1")
	require.Equal(t, http.StatusCreated, second.StatusCode)
	assert.Equal(t, "true", second.Header.Get("Idempotent-Replayed"))
	replayed := readJSON[[]orders.Order](t, second)
	require.Len(t, replayed, 1)
	assert.Equal(t, placed[0].ID, replayed[0].ID)
	assert.Len(t, ts.gw.Requests(), 1, "payment authorized once")

	// a new key runs the flow again; the cart is empty now
	third := ts.do(t, http.MethodPost, "/checkout", buyer, body, HeaderIdempotencyKey, "k-2")
	assert.Equal(t, http.StatusBadRequest, third.StatusCode)
}

func TestCheckout_InFlightKeyConflicts(t *testing.T) {
	ts := newTestServer(t)
	buyer := ts.register(t, "chef@villamia.md", accounts.RoleRestaurant)
	lock := redisx.IdempotencyKey("checkout", buyer, "k-1") + ":lock"
	require.NoError(t, ts.cache.Set(context.Background(), lock, "1", time.Minute))

	res := ts.do(t, http.MethodPost, "/checkout", buyer, map[string]any{"delivery_option": "pickup"}, HeaderIdempotencyKey, "k-1")
	assert.Equal(t, http.StatusConflict, res.StatusCode)
}

func TestCheckout_Declined(t *testing.T) {
	ts := newTestServer(t)
	farmer := ts.register(t, "maria@greenfarm.md", accounts.RoleFarmer)
	buyer := ts.register(t, "chef@villamia.md", accounts.RoleRestaurant)
	p := ts.listing(t, farmer, "Organic Tomatoes", 25)
	ts.fillCart(t, buyer, p.ID)
	ts.gw.Outcome = payment.Declined

	res := ts.do(t, http.MethodPost, "/checkout", buyer, map[string]any{"delivery_option": "pickup"})
	assert.Equal(t, http.StatusPaymentRequired, res.StatusCode)

	res = ts.do(t, http.MethodGet, "/cart", buyer, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Len(t, readJSON[cart.Summary](t, res).Items, 1)
}

func TestOrderStatus(t *testing.T) {
	ts := newTestServer(t)
	farmer := ts.register(t, "maria@greenfarm.md", accounts.RoleFarmer)
	buyer := ts.register(t, "chef@villamia.md", accounts.RoleRestaurant)
	outsider := ts.register(t, "ana@example.md", accounts.RoleConsumer)
	p := ts.listing(t, farmer, "Organic Tomatoes", 25)

	res := ts.do(t, http.MethodPost, "/orders/buy-now", buyer, map[string]any{
		"product_id": p.ID, "quantity": 3, "delivery_option": "pickup",
	})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	o := readJSON[orders.Order](t, res)
	_, cached, err := ts.cache.Get(context.Background(), redisx.OrderStatusKey(o.ID))
	require.NoError(t, err)
	assert.True(t, cached, "status cached on create")

	res = ts.do(t, http.MethodPost, "/orders/"+o.ID+"/status", farmer, map[string]any{"status": "confirmed"})
	require.Equal(t, http.StatusOK, res.StatusCode)

	res = ts.do(t, http.MethodGet, "/orders/"+o.ID+"/status", buyer, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	view := readJSON[statusView](t, res)
	assert.Equal(t, orders.StatusConfirmed, view.Status)

	res = ts.do(t, http.MethodGet, "/orders/"+o.ID+"/status", outsider, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	res = ts.do(t, http.MethodGet, "/orders/"+o.ID, outsider, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res = ts.do(t, http.MethodPost, "/orders/"+o.ID+"/status", farmer, map[string]any{"status": "delivered"})
	assert.Equal(t, http.StatusConflict, res.StatusCode)
	res = ts.do(t, http.MethodPost, "/orders/"+o.ID+"/status", buyer, map[string]any{"status": "cancelled"})
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res = ts.do(t, http.MethodGet, "/orders?tab=active", buyer, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Len(t, readJSON[[]orders.Order](t, res), 1)
	res = ts.do(t, http.MethodGet, "/orders?tab=archived", buyer, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestDemands(t *testing.T) {
	ts := newTestServer(t)
	farmer := ts.register(t, "maria@greenfarm.md", accounts.RoleFarmer)
	chef := ts.register(t, "chef@villamia.md", accounts.RoleRestaurant)

	post := map[string]any{
		"title": "Fresh Organic Tomatoes Needed", "description": "Weekly supply", "category": "vegetables",
		"quantity": 20, "unit": "kg", "max_price": 25, "location": "Chisinau",
		"required_by": time.Now().UTC().Add(7 * 24 * time.Hour).Format(time.RFC3339),
	}
	res := ts.do(t, http.MethodPost, "/demands", farmer, post)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res = ts.do(t, http.MethodPost, "/demands", chef, post)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	d := readJSON[map[string]any](t, res)
	id, _ := d["id"].(string)
	require.NotEmpty(t, id)

	res = ts.do(t, http.MethodPost, "/demands/"+id+"/responses", farmer, map[string]any{
		"offered_price": 22, "available_quantity": 20, "message": "Harvested daily",
	})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	resp := readJSON[map[string]any](t, res)
	rid, _ := resp["id"].(string)

	res = ts.do(t, http.MethodPost, "/demands/"+id+"/responses", farmer, map[string]any{
		"offered_price": 21, "available_quantity": 20,
	})
	assert.Equal(t, http.StatusConflict, res.StatusCode)

	res = ts.do(t, http.MethodPost, "/demands/"+id+"/responses/"+rid+"/accept", chef, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	res = ts.do(t, http.MethodGet, "/demands?filter=canFulfill", farmer, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Empty(t, readJSON[[]map[string]any](t, res), "accepted demand is no longer open")
}
