package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-agro-market/internal/accounts"
	"github.com/ariefcatur/go-agro-market/internal/subscriptions"
)

type registerResp struct {
	User         accounts.User              `json:"user"`
	Subscription subscriptions.Subscription `json:"subscription"`
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var in accounts.RegisterInput
	if err := decode(r, &in); err != nil {
		writeError(w, a.log(), err)
		return
	}
	u, sub, err := a.Accounts.Register(r.Context(), in)
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusCreated, registerResp{User: u, Subscription: sub})
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := a.Accounts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// self reports whether the caller acts on their own account.
func self(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid, ok := actor(w, r)
	if !ok {
		return "", false
	}
	if uid != chi.URLParam(r, "id") {
		forbidden(w)
		return "", false
	}
	return uid, true
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request) {
	uid, ok := self(w, r)
	if !ok {
		return
	}
	var in accounts.ProfileUpdate
	if err := decode(r, &in); err != nil {
		writeError(w, a.log(), err)
		return
	}
	u, err := a.Accounts.UpdateProfile(r.Context(), uid, in)
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (a *API) farmers(w http.ResponseWriter, r *http.Request) {
	fs, err := a.Accounts.Farmers(r.Context())
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, fs)
}

func (a *API) plans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Subscriptions.Plans())
}

func (a *API) activeSubscription(w http.ResponseWriter, r *http.Request) {
	uid, ok := self(w, r)
	if !ok {
		return
	}
	sub, err := a.Subscriptions.Active(r.Context(), uid)
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (a *API) subscriptionHistory(w http.ResponseWriter, r *http.Request) {
	uid, ok := self(w, r)
	if !ok {
		return
	}
	subs, err := a.Subscriptions.History(r.Context(), uid)
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

func (a *API) changeSubscription(w http.ResponseWriter, r *http.Request) {
	uid, ok := self(w, r)
	if !ok {
		return
	}
	var in subscriptions.ChangeInput
	if err := decode(r, &in); err != nil {
		writeError(w, a.log(), err)
		return
	}
	sub, err := a.Subscriptions.Change(r.Context(), uid, in)
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}
