package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-agro-market/internal/apperr"
	"github.com/ariefcatur/go-agro-market/internal/orders"
	"github.com/ariefcatur/go-agro-market/internal/redisx"
)

// HeaderIdempotencyKey lets clients retry a payment call safely.
const HeaderIdempotencyKey = "Idempotency-Key"

type storedResponse struct {
	Code int             `json:"code"`
	Body json.RawMessage `json:"body"`
}

// idempotent runs fn once per (flow, user, Idempotency-Key). A repeat with the
// same key replays the stored response; a repeat while the first call is
// still running gets 409.
func (a *API) idempotent(w http.ResponseWriter, r *http.Request, flow, userID string, code int, fn func(ctx context.Context) (any, error)) {
	ctx := r.Context()
	key := r.Header.Get(HeaderIdempotencyKey)
	if key == "" || a.Cache == nil {
		out, err := fn(ctx)
		if err != nil {
			writeError(w, a.log(), err)
			return
		}
		writeJSON(w, code, out)
		return
	}

	ck := redisx.IdempotencyKey(flow, userID, key)
	if raw, ok, err := a.Cache.Get(ctx, ck); err != nil {
		a.log().Warn("idempotency lookup", "key", ck, "err", err)
	} else if ok {
		var prev storedResponse
		if err := json.Unmarshal([]byte(raw), &prev); err == nil {
			w.Header().Set("Idempotent-Replayed", "true")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(prev.Code)
			_, _ = w.Write(prev.Body)
			return
		}
	}

	lock := ck + ":lock"
	locked, err := a.Cache.SetNX(ctx, lock, "1", redisx.TTLIdemLock)
	if err != nil {
		a.log().Warn("idempotency lock", "key", ck, "err", err)
	} else if !locked {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "request with this idempotency key is in progress"})
		return
	}
	defer func() {
		if locked {
			_ = a.Cache.Del(context.WithoutCancel(ctx), lock)
		}
	}()

	out, err := fn(ctx)
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	body, err := json.Marshal(out)
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	stored, _ := json.Marshal(storedResponse{Code: code, Body: body})
	if err := a.Cache.Set(context.WithoutCancel(ctx), ck, string(stored), redisx.TTLIdempotency); err != nil {
		a.log().Warn("idempotency store", "key", ck, "err", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

func (a *API) checkout(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	var in orders.CheckoutInput
	if err := decode(r, &in); err != nil {
		writeError(w, a.log(), err)
		return
	}
	a.idempotent(w, r, "checkout", uid, http.StatusCreated, func(ctx context.Context) (any, error) {
		placed, err := a.Orders.Checkout(ctx, uid, in)
		if err != nil {
			return nil, err
		}
		for _, o := range placed {
			a.cacheStatus(ctx, o)
		}
		return placed, nil
	})
}

func (a *API) buyNow(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	var in orders.BuyNowInput
	if err := decode(r, &in); err != nil {
		writeError(w, a.log(), err)
		return
	}
	a.idempotent(w, r, "buy_now", uid, http.StatusCreated, func(ctx context.Context) (any, error) {
		o, err := a.Orders.BuyNow(ctx, uid, in)
		if err != nil {
			return nil, err
		}
		a.cacheStatus(ctx, o)
		return o, nil
	})
}

func (a *API) listOrders(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	tab := orders.Tab(r.URL.Query().Get("tab"))
	switch tab {
	case "":
		tab = orders.TabAll
	case orders.TabActive, orders.TabCompleted, orders.TabCancelled, orders.TabAll:
	default:
		writeError(w, a.log(), apperr.Invalidf("invalid input: unknown tab %q", tab))
		return
	}
	out, err := a.Orders.List(r.Context(), uid, tab)
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) getOrder(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	o, err := a.Orders.Get(r.Context(), chi.URLParam(r, "id"), uid)
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	a.cacheStatus(r.Context(), o)
	writeJSON(w, http.StatusOK, o)
}

type statusView struct {
	OrderID    string        `json:"order_id"`
	CustomerID string        `json:"customer_id"`
	FarmerID   string        `json:"farmer_id"`
	Status     orders.Status `json:"status"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

func (a *API) cacheStatus(ctx context.Context, o orders.Order) {
	if a.Cache == nil {
		return
	}
	b, _ := json.Marshal(statusView{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		FarmerID:   o.FarmerID,
		Status:     o.Status,
		UpdatedAt:  o.UpdatedAt,
	})
	if err := a.Cache.Set(ctx, redisx.OrderStatusKey(o.ID), string(b), redisx.TTLStatusCache); err != nil {
		a.log().Warn("cache order status", "order_id", o.ID, "err", err)
	}
}

// getOrderStatus answers from the status cache and falls back to the store.
func (a *API) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if a.Cache != nil {
		if raw, hit, err := a.Cache.Get(r.Context(), redisx.OrderStatusKey(id)); err == nil && hit {
			var v statusView
			if json.Unmarshal([]byte(raw), &v) == nil {
				if uid != v.CustomerID && uid != v.FarmerID {
					writeError(w, a.log(), orders.ErrNotParticipant)
					return
				}
				writeJSON(w, http.StatusOK, v)
				return
			}
		}
	}
	o, err := a.Orders.Get(r.Context(), id, uid)
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	a.cacheStatus(r.Context(), o)
	writeJSON(w, http.StatusOK, statusView{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		FarmerID:   o.FarmerID,
		Status:     o.Status,
		UpdatedAt:  o.UpdatedAt,
	})
}

type statusReq struct {
	Status orders.Status `json:"status"`
}

func (a *API) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	var req statusReq
	if err := decode(r, &req); err != nil {
		writeError(w, a.log(), err)
		return
	}
	o, err := a.Orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), uid, req.Status)
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	a.cacheStatus(r.Context(), o)
	writeJSON(w, http.StatusOK, o)
}

func (a *API) rateOrder(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	var in orders.RateInput
	if err := decode(r, &in); err != nil {
		writeError(w, a.log(), err)
		return
	}
	o, err := a.Orders.Rate(r.Context(), chi.URLParam(r, "id"), uid, in)
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
