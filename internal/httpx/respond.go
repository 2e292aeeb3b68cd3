package httpx

import (
	"encoding/json"
	"errors"
	"github.com/ariefcatur/shop-fulfillment/internal/orders"
	"github.com/go-chi/chi/v5"
	"net/http"
	"strconv"
)

// response is the body of every reply. Data carries the payload on success.
type response struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func ok(w http.ResponseWriter, code int, data any) {
	writeJSON(w, code, response{Success: true, Data: data})
}

func statusFor(err error) int {
	switch orders.Classify(err) {
	case orders.KindValidation:
		switch {
		case errors.Is(err, orders.ErrNotFound):
			return http.StatusNotFound
		case errors.Is(err, orders.ErrAlreadyExists):
			return http.StatusConflict
		}
		return http.StatusBadRequest
	case orders.KindBusiness:
		if errors.Is(err, orders.ErrCodeNotFound) {
			return http.StatusNotFound
		}
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		a.logFailure(r, err)
	}
	_, reason := orders.Outcome(err)
	writeJSON(w, code, response{Reason: reason})
}

func badRequest(w http.ResponseWriter, reason string) {
	writeJSON(w, http.StatusBadRequest, response{Reason: reason})
}

func forbidden(w http.ResponseWriter) {
	writeJSON(w, http.StatusForbidden, response{Reason: "forbidden"})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}
