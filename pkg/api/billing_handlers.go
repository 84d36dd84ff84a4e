package api

import (
	"io"
	"net/http"

	"github.com/agendly/agendly/pkg/billing"
	"github.com/agendly/agendly/pkg/httputil"
	"github.com/agendly/agendly/pkg/observability"
)

// maxWebhookBody bounds webhook payload reads
const maxWebhookBody = 1 << 20

// upgradeRequest is the body for subscription creation and upgrades
type upgradeRequest struct {
	CompanyID     int64  `json:"companyId,omitempty"`
	PlanID        string `json:"planId"`
	BillingPeriod string `json:"billingPeriod"`
	Installments  int    `json:"installments,omitempty"`
}

// companyIDFrom resolves the acting company: the request body wins, then
// the authenticated header
func companyIDFrom(r *http.Request, bodyID int64) int64 {
	if bodyID != 0 {
		return bodyID
	}
	return observability.GetCompanyID(r.Context())
}

// upgradeSubscription handles POST /api/subscription/upgrade
func (s *Server) upgradeSubscription(w http.ResponseWriter, r *http.Request) {
	var req upgradeRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	companyID := companyIDFrom(r, req.CompanyID)
	if companyID == 0 {
		httputil.WriteBadRequest(w, "companyId is required")
		return
	}
	if req.PlanID == "" {
		httputil.WriteBadRequest(w, "planId is required")
		return
	}

	period := billing.BillingPeriod(req.BillingPeriod)
	if req.BillingPeriod == "" {
		period = billing.PeriodMonthly
	}

	result, err := s.orchestrator.CreateOrUpgradeSubscription(r.Context(), companyID, req.PlanID, period, req.Installments)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// createSubscription handles POST /api/create-subscription, the original
// first-subscription endpoint. Same semantics as an upgrade.
func (s *Server) createSubscription(w http.ResponseWriter, r *http.Request) {
	s.upgradeSubscription(w, r)
}

// subscriptionStatus handles GET /api/subscription/status. Reachable by
// suspended companies: it is how a blocked client learns why.
func (s *Server) subscriptionStatus(w http.ResponseWriter, r *http.Request) {
	companyID := observability.GetCompanyID(r.Context())
	if companyID == 0 {
		httputil.WriteErrorMessage(w, http.StatusUnauthorized, "company identification required")
		return
	}

	resolution, err := s.gate.Status(r.Context(), companyID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, resolution)
}

// handleWebhook handles POST /api/billing/webhook
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		httputil.WriteBadRequest(w, "failed to read webhook payload")
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if err := s.webhooks.HandleEvent(r.Context(), payload, signature); err != nil {
		if billing.IsValidationError(err) {
			httputil.WriteError(w, http.StatusBadRequest, err)
			return
		}
		// Processing failed on our side; ask the processor to redeliver.
		observability.FromContext(r.Context()).WithError(err).Error("webhook processing failed")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]bool{"received": true})
}

// accessProbe handles GET /api/app/access. Reaching it at all means the
// gate let the request through.
func (s *Server) accessProbe(w http.ResponseWriter, r *http.Request) {
	companyID := observability.GetCompanyID(r.Context())
	resolution, err := s.gate.Status(r.Context(), companyID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, resolution)
}
