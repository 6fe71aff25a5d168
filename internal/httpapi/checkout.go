package httpapi

import (
	"net/http"
	"strings"

	"bakehouse/internal/checkout"
)

func (s *Server) checkoutParams(w http.ResponseWriter, r *http.Request) (storeID int64, cartID string, ok bool) {
	storeID, ok = queryID(w, r, "store_id", true)
	if !ok {
		return 0, "", false
	}
	cartID = strings.TrimSpace(r.URL.Query().Get("cart_id"))
	if cartID == "" {
		badRequest(w, "cart_id is required")
		return 0, "", false
	}
	return storeID, cartID, true
}

func (s *Server) checkoutOptions(w http.ResponseWriter, r *http.Request) {
	storeID, cartID, ok := s.checkoutParams(w, r)
	if !ok {
		return
	}
	opts, err := s.Checkout.Options(r.Context(), storeID, cartID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (s *Server) checkoutDateOptions(w http.ResponseWriter, r *http.Request) {
	storeID, cartID, ok := s.checkoutParams(w, r)
	if !ok {
		return
	}
	opts, err := s.Checkout.DateOptions(r.Context(), storeID, cartID, r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (s *Server) checkoutCalendar(w http.ResponseWriter, r *http.Request) {
	storeID, cartID, ok := s.checkoutParams(w, r)
	if !ok {
		return
	}
	cal, err := s.Checkout.Calendar(r.Context(), storeID, cartID, r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cal)
}

func (s *Server) submitCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkout.SubmitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.IdempotencyKey = strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	req.OrganizationID = organizationID(r)

	res, err := s.Checkout.Submit(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	code := http.StatusCreated
	if res.Replayed {
		code = http.StatusOK
	}
	writeJSON(w, code, res)
}
