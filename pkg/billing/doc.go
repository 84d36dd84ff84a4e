// Package billing implements the subscription lifecycle and billing engine:
// the status state machine, the installment calculator, plan-upgrade
// orchestration, and the access-gating decision.
//
// # Overview
//
// Two sources of truth are reconciled: locally persisted company state and
// the payment processor's subscription/invoice state. Local state is
// authoritative for hard access denial; processor state is informational
// and synced asynchronously.
//
// # Two-phase upgrades
//
// Upgrades are an explicit two-phase protocol. The Orchestrator creates a
// payment intent synchronously and never mutates Company state. The
// WebhookProcessor (or the admin Harness, standing in for it) confirms the
// outcome asynchronously and is the only path that writes the gating
// fields. The phases are connected by an intent correlation id.
//
// # Installments
//
// Annual plans may be paid in 1-6 or 12 installments. Up to 3 installments
// split the price exactly; longer schedules compound 2.5% monthly
// interest. Arithmetic uses shopspring/decimal at full precision and is
// rounded only at the presentation boundary.
//
// # Demo mode
//
// With no processor configured the Orchestrator returns a demo-mode
// result: the success path is simulated without external calls, and the
// fallback is logged distinctly from genuine failures.
//
// # Usage Example
//
// Create an upgrade intent:
//
//	result, err := orchestrator.CreateOrUpgradeSubscription(ctx, companyID, "team", billing.PeriodAnnual, 6)
//	switch result.Kind {
//	case billing.KindClientSecret:
//		// hand result.ClientSecret to the payment form
//	case billing.KindDemoMode:
//		// no processor configured, show result.Message
//	case billing.KindRedirect:
//		// send the caller to result.RedirectURL
//	}
//
// Gate a request:
//
//	ok, err := gate.CanAccess(ctx, companyID)
//
// # Related Packages
//
//   - pkg/companies: persisted tenant state
//   - pkg/plans: the plan catalog and price references
package billing
