package api

import (
	"net/http"

	"github.com/agendly/agendly/pkg/httputil"
	"github.com/agendly/agendly/pkg/observability"
)

// harnessRequest is the body for the admin test harness endpoints
type harnessRequest struct {
	CompanyID int64 `json:"companyId"`
}

// simulatePaymentFailure handles POST /api/test/simulate-payment-failure.
// It forces the company into the suspended state a failed-payment webhook
// would produce, without any processor involvement.
func (s *Server) simulatePaymentFailure(w http.ResponseWriter, r *http.Request) {
	var req harnessRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	companyID := companyIDFrom(r, req.CompanyID)
	if companyID == 0 {
		httputil.WriteBadRequest(w, "companyId is required")
		return
	}

	if err := s.harness.SimulatePaymentFailure(r.Context(), companyID); err != nil {
		writeServiceError(w, err)
		return
	}

	resolution, err := s.gate.Status(r.Context(), companyID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, resolution)
}

// simulatePaymentSuccess handles POST /api/test/simulate-payment-success
func (s *Server) simulatePaymentSuccess(w http.ResponseWriter, r *http.Request) {
	var req harnessRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	companyID := companyIDFrom(r, req.CompanyID)
	if companyID == 0 {
		httputil.WriteBadRequest(w, "companyId is required")
		return
	}

	if err := s.harness.SimulatePaymentSuccess(r.Context(), companyID); err != nil {
		writeServiceError(w, err)
		return
	}

	resolution, err := s.gate.Status(r.Context(), companyID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, resolution)
}

// adminListPlans handles GET /api/admin/plans
func (s *Server) adminListPlans(w http.ResponseWriter, r *http.Request) {
	result, err := s.plans.ListPlans(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// updatePlanStripeRequest is the body for price reference updates
type updatePlanStripeRequest struct {
	StripePriceID string `json:"stripePriceId"`
	Annual        bool   `json:"annual,omitempty"`
}

// updatePlanStripePrice handles PUT /api/admin/plans/{id}/stripe
func (s *Server) updatePlanStripePrice(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParsePathString(r, "id")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	var req updatePlanStripeRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := s.plans.UpdateStripePriceID(r.Context(), id, req.StripePriceID, req.Annual); err != nil {
		writeServiceError(w, err)
		return
	}

	observability.FromContext(r.Context()).WithFields(map[string]interface{}{
		"plan_id":  id,
		"price_id": req.StripePriceID,
		"annual":   req.Annual,
	}).Info("plan price reference updated")
	httputil.WriteSuccess(w, map[string]string{"status": "updated"})
}

// adminListSubscriptions handles GET /api/admin/stripe/subscriptions,
// returning the merged local and processor view. Polled by the admin UI,
// so processor reads behind it are cached.
func (s *Server) adminListSubscriptions(w http.ResponseWriter, r *http.Request) {
	view, err := s.syncer.MergedView(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, view)
}

// adminCancelSubscription handles POST /api/admin/stripe/subscriptions/{subscriptionId}/cancel.
// Schedules cancellation at period end; local state changes only when the
// resulting webhook arrives.
func (s *Server) adminCancelSubscription(w http.ResponseWriter, r *http.Request) {
	s.setCancelAtPeriodEnd(w, r, true)
}

// adminReactivateSubscription handles POST /api/admin/stripe/subscriptions/{subscriptionId}/reactivate
func (s *Server) adminReactivateSubscription(w http.ResponseWriter, r *http.Request) {
	s.setCancelAtPeriodEnd(w, r, false)
}

func (s *Server) setCancelAtPeriodEnd(w http.ResponseWriter, r *http.Request, cancel bool) {
	subscriptionID, err := httputil.ParsePathString(r, "subscriptionId")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	sub, err := s.orchestrator.CancelAtPeriodEnd(r.Context(), subscriptionID, cancel)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, sub)
}
