package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"bakehouse/internal/cart"
	"bakehouse/internal/checkout"
	"bakehouse/internal/model"
	"bakehouse/internal/orders"
	"github.com/rs/zerolog/hlog"
)

type errorBody struct {
	Error  string            `json:"error"`
	Code   string            `json:"code,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Code: "bad_request"})
}

// conflicts are business rule rejections the client can act on.
var conflicts = []struct {
	err  error
	code string
}{
	{model.ErrSlugTaken, "slug_taken"},
	{model.ErrAlreadyProcessed, "already_processed"},
	{model.ErrStatusConflict, "status_conflict"},
	{orders.ErrInvalidTransition, "invalid_transition"},
	{checkout.ErrNoPickupDate, "no_pickup_date"},
	{checkout.ErrDateUnavailable, "date_unavailable"},
	{checkout.ErrTimeUnavailable, "time_unavailable"},
	{checkout.ErrStoreUnavailable, "store_unavailable"},
	{checkout.ErrDuplicateSubmit, "duplicate_submit"},
	{cart.ErrProductUnavailable, "product_unavailable"},
	{cart.ErrStoreUnavailable, "store_unavailable"},
	{cart.ErrConcurrentUpdate, "cart_busy"},
}

// writeError maps service errors to status codes. Anything unrecognised is
// logged and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "validation failed", Code: "validation", Fields: verr.Fields})
		return
	}
	if errors.Is(err, cart.ErrInvalidAction) || errors.Is(err, orders.ErrUnknownStatus) {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Code: "validation"})
		return
	}
	if errors.Is(err, model.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found", Code: "not_found"})
		return
	}
	for _, c := range conflicts {
		if errors.Is(err, c.err) {
			writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: c.code})
			return
		}
	}
	hlog.FromRequest(r).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := jsonDecoder(r).Decode(v); err != nil {
		badRequest(w, "invalid json: "+err.Error())
		return false
	}
	return true
}

func jsonDecoder(r *http.Request) *json.Decoder {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec
}
