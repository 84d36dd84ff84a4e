package api

import (
	"net/http"

	"github.com/agendly/agendly/pkg/httputil"
)

// listPlans handles GET /api/plans
func (s *Server) listPlans(w http.ResponseWriter, r *http.Request) {
	result, err := s.plans.ListPlans(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// getPlan handles GET /api/plans/{id}
func (s *Server) getPlan(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParsePathString(r, "id")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	plan, err := s.plans.GetPlan(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, plan)
}

// planInstallments handles GET /api/plans/{id}/installments, returning the
// presentation-ready installment options for the plan's annual price
func (s *Server) planInstallments(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParsePathString(r, "id")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	options, err := s.orchestrator.EstimateInstallments(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, options)
}
