package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/ariefcatur/go-agro-market/internal/apperr"
)

// HeaderUserID names the acting user. Authentication happens upstream.
const HeaderUserID = "X-User-Id"

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func statusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindInvalid:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindPayment:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	code := statusOf(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		log.Error("request failed", "err", err)
		msg = "internal error"
	}
	writeJSON(w, code, map[string]string{"error": msg})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Invalidf("invalid input: empty body")
		}
		return apperr.Invalidf("invalid json: %v", err)
	}
	return nil
}

// actor returns the caller id, answering 401 when it is missing.
func actor(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get(HeaderUserID)
	if id == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing " + HeaderUserID})
		return "", false
	}
	return id, true
}

func forbidden(w http.ResponseWriter) {
	writeJSON(w, http.StatusForbidden, map[string]string{"error": "not allowed"})
}
