package httpapi

import (
	"net/http"

	"bakehouse/internal/model"
	"bakehouse/internal/pickup"
)

type storeDetail struct {
	model.Store
	Hours      []model.StoreHours     `json:"hours"`
	Exceptions []model.StoreException `json:"exceptions"`
}

func (s *Server) listStores(w http.ResponseWriter, r *http.Request) {
	stores, err := s.DB.ListStores(r.Context(), true)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stores)
}

// getStore returns the store with its weekly hours and upcoming exceptions.
func (s *Server) getStore(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()
	store, err := s.DB.GetStore(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	hours, err := s.DB.ListStoreHours(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	exceptions, err := s.DB.ListStoreExceptions(ctx, id, pickup.DateKey(s.now()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, storeDetail{Store: *store, Hours: hours, Exceptions: exceptions})
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.DB.ListCategories(r.Context(), true)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := queryID(w, r, "category_id", false)
	if !ok {
		return
	}
	products, err := s.DB.ListProducts(r.Context(), categoryID, true)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}
