package billing

import (
	"context"
	"fmt"

	"github.com/agendly/agendly/pkg/companies"
	"github.com/agendly/agendly/pkg/observability"
)

// Harness provides privileged operations that force a company's status to
// simulate processor callbacks, for environments without live webhook
// delivery. It requires no payment processor configuration and writes
// through the same atomic update as the webhook path, so the access gate
// cannot distinguish a simulated outcome from a genuine one.
type Harness struct {
	companies companies.Service
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// NewHarness creates a new admin test harness
func NewHarness(companyService companies.Service, logger *observability.Logger, metrics *observability.Metrics) *Harness {
	return &Harness{
		companies: companyService,
		logger:    logger,
		metrics:   metrics,
	}
}

// SimulatePaymentFailure suspends the company as a failed-payment webhook
// would. Single atomic update; a storage error is fatal to the request.
func (h *Harness) SimulatePaymentFailure(ctx context.Context, companyID int64) error {
	if err := h.companies.SetPlanStatus(ctx, companyID, false, companies.PlanStatusSuspended); err != nil {
		return fmt.Errorf("failed to simulate payment failure: %w", err)
	}
	h.metrics.HarnessOperationsTotal.WithLabelValues("simulate_failure").Inc()
	h.logger.WithField("company_id", companyID).Info("simulated payment failure, company suspended")
	return nil
}

// SimulatePaymentSuccess reactivates the company as a paid-invoice webhook
// would.
func (h *Harness) SimulatePaymentSuccess(ctx context.Context, companyID int64) error {
	if err := h.companies.SetPlanStatus(ctx, companyID, true, companies.PlanStatusActive); err != nil {
		return fmt.Errorf("failed to simulate payment success: %w", err)
	}
	h.metrics.HarnessOperationsTotal.WithLabelValues("simulate_success").Inc()
	h.logger.WithField("company_id", companyID).Info("simulated payment success, company active")
	return nil
}
