package httpapi

import (
	"net/http"

	"bakehouse/internal/model"
	"github.com/rs/zerolog/hlog"
)

type applicationRequest struct {
	CompanyName string `json:"company_name"`
	TaxID       string `json:"tax_id"`
	ContactName string `json:"contact_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Message     string `json:"message"`
}

func (s *Server) submitApplication(w http.ResponseWriter, r *http.Request) {
	var req applicationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	a := &model.Application{
		CompanyName: req.CompanyName,
		TaxID:       req.TaxID,
		ContactName: req.ContactName,
		Email:       req.Email,
		Phone:       req.Phone,
		Message:     req.Message,
	}
	if err := s.B2B.Submit(r.Context(), a); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": a.ID, "status": a.Status})
}

func (s *Server) adminListApplications(w http.ResponseWriter, r *http.Request) {
	list, err := s.B2B.List(r.Context(), model.ApplicationStatus(r.URL.Query().Get("status")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type approveRequest struct {
	PriceTierID *int64 `json:"price_tier_id"`
}

func (s *Server) adminApprove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req approveRequest
	if err := decodeOptional(r, &req); err != nil {
		badRequest(w, "invalid json: "+err.Error())
		return
	}
	org, err := s.B2B.Approve(r.Context(), id, adminActor(r), req.PriceTierID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) adminReject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req rejectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.B2B.Reject(r.Context(), id, adminActor(r), req.Reason); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(model.ApplicationRejected)})
}

func (s *Server) adminRotateOrgToken(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	org, err := s.B2B.RotateToken(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	hlog.FromRequest(r).Info().Str("actor", adminActor(r)).Int64("organization_id", id).Msg("Organization token rotated")
	writeJSON(w, http.StatusOK, org)
}
