package api

import (
	"net/http"
	"time"

	"github.com/agendly/agendly/pkg/companies"
	"github.com/agendly/agendly/pkg/httputil"
)

// createCompanyRequest is the body for company provisioning
type createCompanyRequest struct {
	Name      string `json:"name"`
	PlanID    string `json:"planId,omitempty"`
	TrialDays int    `json:"trialDays,omitempty"`
}

// createCompany handles POST /api/companies
func (s *Server) createCompany(w http.ResponseWriter, r *http.Request) {
	var req createCompanyRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "name is required")
		return
	}

	company := &companies.Company{
		Name:       req.Name,
		IsActive:   true,
		PlanStatus: companies.PlanStatusActive,
		PlanID:     req.PlanID,
	}
	if req.TrialDays > 0 {
		trialEnd := time.Now().AddDate(0, 0, req.TrialDays)
		company.TrialEndsAt = &trialEnd
	}

	if err := s.companies.CreateCompany(r.Context(), company); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteCreated(w, company)
}

// getCompany handles GET /api/companies/{id}
func (s *Server) getCompany(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	company, err := s.companies.GetCompany(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, company)
}
