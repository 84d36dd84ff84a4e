package companies

import (
	"context"
	"errors"
	"time"
)

// PlanStatus is the locally persisted gating status for a company.
// It is mutated only by the payment confirmation path (webhooks) and the
// admin test harness, never by intent creation.
type PlanStatus string

const (
	PlanStatusActive    PlanStatus = "active"
	PlanStatusSuspended PlanStatus = "suspended"
)

// ErrCompanyNotFound is returned when a company does not exist
var ErrCompanyNotFound = errors.New("company not found")

// Company represents a tenant account subject to billing and access gating
type Company struct {
	ID                   int64      `json:"id"`
	Name                 string     `json:"name"`
	IsActive             bool       `json:"is_active"`
	PlanStatus           PlanStatus `json:"plan_status"`
	PlanID               string     `json:"plan_id"`
	StripeCustomerID     string     `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID string     `json:"stripe_subscription_id,omitempty"`
	TrialEndsAt          *time.Time `json:"trial_ends_at,omitempty"`

	// Informational snapshot of the processor-reported state, refreshed
	// asynchronously by the sync worker. Never consulted for hard denial.
	ExternalStatus     string     `json:"external_status,omitempty"`
	CurrentPeriodStart *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end"`
	LatestInvoiceID    string     `json:"latest_invoice_id,omitempty"`
	LatestInvoiceState string     `json:"latest_invoice_status,omitempty"`
	LatestInvoiceTotal int64      `json:"latest_invoice_total,omitempty"`
	LatestInvoicePaid  bool       `json:"latest_invoice_paid"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Suspended reports whether the local state forces access denial
func (c *Company) Suspended() bool {
	return !c.IsActive || c.PlanStatus == PlanStatusSuspended
}

// OnTrial reports whether the company's trial is still running at now
func (c *Company) OnTrial(now time.Time) bool {
	return c.TrialEndsAt != nil && c.TrialEndsAt.After(now)
}

// ExternalSnapshot holds the processor-reported fields persisted for a
// company by the async sync path
type ExternalSnapshot struct {
	SubscriptionID     string
	Status             string
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  bool
	LatestInvoiceID    string
	LatestInvoiceState string
	LatestInvoiceTotal int64
	LatestInvoicePaid  bool
}

// Service defines the interface for company persistence
type Service interface {
	CreateCompany(ctx context.Context, company *Company) error
	GetCompany(ctx context.Context, id int64) (*Company, error)
	ListCompanies(ctx context.Context) ([]*Company, error)
	// ListSubscribed returns companies holding an external subscription
	// reference, for the sync worker and the admin merged view.
	ListSubscribed(ctx context.Context) ([]*Company, error)

	// SetPlanStatus atomically updates the gating fields. It is the only
	// write used by the admin test harness and the webhook confirmation
	// path, so both produce indistinguishable downstream effects.
	SetPlanStatus(ctx context.Context, id int64, isActive bool, status PlanStatus) error

	// SetSubscriptionRef stores the processor customer/subscription ids
	// after a confirmed upgrade.
	SetSubscriptionRef(ctx context.Context, id int64, customerID, subscriptionID, planID string) error

	// UpdateExternalSnapshot persists the informational processor snapshot.
	// It must never touch is_active or plan_status.
	UpdateExternalSnapshot(ctx context.Context, id int64, snap *ExternalSnapshot) error
}
