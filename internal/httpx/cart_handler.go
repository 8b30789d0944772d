package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-agro-market/internal/cart"
)

func (a *API) getCart(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	sum, err := a.Cart.Summary(r.Context(), uid)
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (a *API) addCartItem(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	var in cart.AddInput
	if err := decode(r, &in); err != nil {
		writeError(w, a.log(), err)
		return
	}
	it, err := a.Cart.Add(r.Context(), uid, in)
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusCreated, it)
}

type quantityReq struct {
	Quantity decimal.Decimal `json:"quantity"`
}

func (a *API) updateCartItem(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	var req quantityReq
	if err := decode(r, &req); err != nil {
		writeError(w, a.log(), err)
		return
	}
	it, err := a.Cart.UpdateQuantity(r.Context(), uid, chi.URLParam(r, "id"), req.Quantity)
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (a *API) removeCartItem(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	if err := a.Cart.Remove(r.Context(), uid, chi.URLParam(r, "id")); err != nil {
		writeError(w, a.log(), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) clearCart(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	if err := a.Cart.Clear(r.Context(), uid); err != nil {
		writeError(w, a.log(), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
