package httpx

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-agro-market/internal/apperr"
	"github.com/ariefcatur/go-agro-market/internal/catalog"
)

// parseQuery reads the marketplace filter parameters.
func parseQuery(v url.Values) (catalog.Query, error) {
	q := catalog.Query{
		Text:     v.Get("q"),
		Category: catalog.Category(v.Get("category")),
		Sort:     catalog.SortOption(v.Get("sort")),
	}
	if q.Category != "" && !q.Category.Valid() {
		return q, apperr.Invalidf("invalid input: unknown category %q", q.Category)
	}
	if q.Sort == "" {
		q.Sort = catalog.SortNewest
	}
	if !q.Sort.Valid() {
		return q, apperr.Invalidf("invalid input: unknown sort %q", q.Sort)
	}
	if s := v.Get("organic"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return q, apperr.Invalidf("invalid input: organic must be a boolean")
		}
		q.OrganicOnly = b
	}
	for _, p := range []struct {
		name string
		dst  **decimal.Decimal
	}{{"min_price", &q.MinPrice}, {"max_price", &q.MaxPrice}} {
		s := v.Get(p.name)
		if s == "" {
			continue
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return q, apperr.Invalidf("invalid input: %s must be a number", p.name)
		}
		*p.dst = &d
	}
	if v.Get("lat") != "" || v.Get("lng") != "" || v.Get("radius_km") != "" {
		lat, err1 := strconv.ParseFloat(v.Get("lat"), 64)
		lng, err2 := strconv.ParseFloat(v.Get("lng"), 64)
		radius, err3 := strconv.ParseFloat(v.Get("radius_km"), 64)
		if err1 != nil || err2 != nil || err3 != nil || radius <= 0 {
			return q, apperr.Invalidf("invalid input: lat, lng and a positive radius_km are required together")
		}
		q.Near = &catalog.GeoPoint{Lat: lat, Lng: lng}
		q.RadiusKm = radius
	}
	return q, nil
}

func (a *API) searchProducts(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	ps, err := a.Catalog.Search(r.Context(), q)
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (a *API) farmerProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := a.Catalog.ByFarmer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (a *API) createProduct(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	var in catalog.ListingInput
	if err := decode(r, &in); err != nil {
		writeError(w, a.log(), err)
		return
	}
	p, err := a.Catalog.CreateListing(r.Context(), uid, in)
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := a.Catalog.View(r.Context(), chi.URLParam(r, "id"), r.Header.Get(HeaderUserID))
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) likeProduct(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	p, err := a.Catalog.Like(r.Context(), chi.URLParam(r, "id"), uid)
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type availabilityReq struct {
	IsAvailable *bool `json:"is_available"`
}

func (a *API) setAvailability(w http.ResponseWriter, r *http.Request) {
	uid, ok := actor(w, r)
	if !ok {
		return
	}
	var req availabilityReq
	if err := decode(r, &req); err != nil {
		writeError(w, a.log(), err)
		return
	}
	if req.IsAvailable == nil {
		writeError(w, a.log(), apperr.Invalidf("invalid input: is_available is required"))
		return
	}
	p, err := a.Catalog.SetAvailability(r.Context(), chi.URLParam(r, "id"), uid, *req.IsAvailable)
	if err != nil {
		writeError(w, a.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
