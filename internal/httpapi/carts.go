package httpapi

import (
	"errors"
	"io"
	"net/http"

	"bakehouse/internal/cart"
	"bakehouse/internal/model"
	"github.com/go-chi/chi/v5"
)

func (s *Server) createCart(w http.ResponseWriter, r *http.Request) {
	var prefs model.Preferences
	if r.ContentLength != 0 {
		if err := decodeOptional(r, &prefs); err != nil {
			badRequest(w, "invalid json: "+err.Error())
			return
		}
	}
	c, err := s.Carts.Create(r.Context(), prefs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	c, err := s.Carts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type cartActionResponse struct {
	Cart  model.Cart `json:"cart"`
	Error string     `json:"error,omitempty"`
	Code  string     `json:"code,omitempty"`
}

// cartAction applies one mutation. A mutation the catalog rejects is rolled
// back; the response then carries the restored cart with status 409.
func (s *Server) cartAction(w http.ResponseWriter, r *http.Request) {
	var a cart.Action
	if !decodeJSON(w, r, &a) {
		return
	}
	c, err := s.Carts.Mutate(r.Context(), chi.URLParam(r, "id"), a)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, cartActionResponse{Cart: c})
	case errors.Is(err, cart.ErrProductUnavailable):
		writeJSON(w, http.StatusConflict, cartActionResponse{Cart: c, Error: err.Error(), Code: "product_unavailable"})
	case errors.Is(err, cart.ErrStoreUnavailable):
		writeJSON(w, http.StatusConflict, cartActionResponse{Cart: c, Error: err.Error(), Code: "store_unavailable"})
	default:
		writeError(w, r, err)
	}
}

// decodeOptional accepts an empty body.
func decodeOptional(r *http.Request, v any) error {
	err := jsonDecoder(r).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
