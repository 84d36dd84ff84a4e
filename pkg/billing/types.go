package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// NormalizedStatus is the canonical subscription state, decoupled from the
// payment processor's vocabulary.
type NormalizedStatus string

const (
	StatusTrialing          NormalizedStatus = "trialing"
	StatusActive            NormalizedStatus = "active"
	StatusPastDue           NormalizedStatus = "past_due"
	StatusCanceled          NormalizedStatus = "canceled"
	StatusIncomplete        NormalizedStatus = "incomplete"
	StatusIncompleteExpired NormalizedStatus = "incomplete_expired"
	StatusUnpaid            NormalizedStatus = "unpaid"
)

// BillingPeriod represents the billing cadence for a subscription
type BillingPeriod string

const (
	PeriodMonthly BillingPeriod = "monthly"
	PeriodAnnual  BillingPeriod = "annual"
)

// Valid reports whether the billing period is one of the supported values
func (p BillingPeriod) Valid() bool {
	return p == PeriodMonthly || p == PeriodAnnual
}

// LatestInvoice is the processor-reported view of the most recent invoice.
// Fields are treated as opaque inputs; they are never re-derived locally.
type LatestInvoice struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int64  `json:"total"`
	Paid   bool   `json:"paid"`
}

// ExternalSubscription is the processor-reported subscription state
type ExternalSubscription struct {
	ID                 string         `json:"id"`
	CustomerID         string         `json:"customer"`
	Status             string         `json:"status"`
	CurrentPeriodStart time.Time      `json:"current_period_start"`
	CurrentPeriodEnd   time.Time      `json:"current_period_end"`
	CancelAtPeriodEnd  bool           `json:"cancel_at_period_end"`
	TrialEnd           *time.Time     `json:"trial_end,omitempty"`
	LatestInvoice      *LatestInvoice `json:"latest_invoice,omitempty"`
}

// Resolution is the output of the status resolver
type Resolution struct {
	IsActive  bool             `json:"is_active"`
	Status    NormalizedStatus `json:"status"`
	IsOnTrial bool             `json:"is_on_trial"`
}

// IntentResultKind discriminates the orchestrator result variants
type IntentResultKind string

const (
	KindClientSecret IntentResultKind = "client_secret"
	KindDemoMode     IntentResultKind = "demo_mode"
	KindRedirect     IntentResultKind = "redirect"
)

// SubscriptionIntentResult is the tagged union returned by the orchestrator.
// Exactly one variant is populated, discriminated by Kind.
type SubscriptionIntentResult struct {
	Kind         IntentResultKind `json:"kind"`
	IntentID     string           `json:"intent_id,omitempty"`
	ClientSecret string           `json:"client_secret,omitempty"`
	DemoMode     bool             `json:"demo_mode,omitempty"`
	Message      string           `json:"message,omitempty"`
	RedirectURL  string           `json:"redirect_url,omitempty"`
}

// PaymentIntentStatus tracks the lifecycle of a locally recorded intent
type PaymentIntentStatus string

const (
	IntentPending   PaymentIntentStatus = "pending"
	IntentConfirmed PaymentIntentStatus = "confirmed"
	IntentFailed    PaymentIntentStatus = "failed"
	IntentExpired   PaymentIntentStatus = "expired"
)

// PaymentIntent is the local in-flight record correlating an orchestrator
// call with its asynchronous confirmation. At most one pending intent exists
// per company, enforced by a partial unique index.
type PaymentIntent struct {
	ID            string              `json:"id"`
	CompanyID     int64               `json:"company_id"`
	PlanID        string              `json:"plan_id"`
	BillingPeriod BillingPeriod       `json:"billing_period"`
	Installments  int                 `json:"installments"`
	ClientSecret  string              `json:"client_secret,omitempty"`
	Status        PaymentIntentStatus `json:"status"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// Installment is the computed schedule for an annual plan paid in N parts
type Installment struct {
	Count          int             `json:"count"`
	PerInstallment decimal.Decimal `json:"per_installment"`
	Total          decimal.Decimal `json:"total"`
	InterestPaid   decimal.Decimal `json:"interest_paid"`
}

// ValidationError is a caller input error, rejected before any external call
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for a field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	_, ok := err.(*ValidationError)
	return ok
}

// ProcessorError is a payment processor failure (network, timeout, declined).
// It never mutates local state; the caller's UI may retry.
type ProcessorError struct {
	Code    string
	Message string
}

func (e *ProcessorError) Error() string {
	return fmt.Sprintf("processor error %s: %s", e.Code, e.Message)
}

// IsProcessorError checks if an error is a processor error
func IsProcessorError(err error) bool {
	_, ok := err.(*ProcessorError)
	return ok
}
