package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-agro-market/internal/demands"
)

func (a *API) listDemands(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := a.Demands.List(r.Context(), r.Header.Get(HeaderUserID), q.Get("q"), demands.FilterKind(q.Get("filter")))
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) postDemand(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	var in demands.PostInput
	if err := decode(r, &in); err != nil {
		writeError(w, a.log(), err)
		return
	}
	d, err := a.Demands.Post(r.Context(), uid, in)
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (a *API) getDemand(w http.ResponseWriter, r *http.Request) {
	d, err := a.Demands.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *API) respondDemand(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	var in demands.RespondInput
	if err := decode(r, &in); err != nil {
		writeError(w, a.log(), err)
		return
	}
	res, err := a.Demands.Respond(r.Context(), chi.URLParam(r, "id"), uid, in)
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (a *API) acceptResponse(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	d, err := a.Demands.Accept(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "rid"), uid)
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type demandStatusReq struct {
	Status demands.Status `json:"status"`
}

func (a *API) setDemandStatus(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	var req demandStatusReq
	if err := decode(r, &req); err != nil {
		writeError(w, a.log(), err)
		return
	}
	d, err := a.Demands.SetStatus(r.Context(), chi.URLParam(r, "id"), uid, req.Status)
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
