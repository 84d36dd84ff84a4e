package billing

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/agendly/agendly/pkg/companies"
	"github.com/agendly/agendly/pkg/observability"
	"github.com/agendly/agendly/pkg/plans"
)

// upgradeLockTTL bounds how long a per-company upgrade lock may be held if
// a request dies without releasing it
const upgradeLockTTL = 30 * time.Second

// Orchestrator creates and updates external payment artifacts for a plan
// selection. It never mutates Company state: intent creation and status
// confirmation are separate transactions with different trust levels, and
// only the confirmation path (webhooks or the admin harness) writes the
// gating fields.
type Orchestrator struct {
	companies   companies.Service
	plans       plans.Service
	intents     *IntentStore
	processor   ProcessorClient
	locks       *redis.Client
	logger      *observability.Logger
	metrics     *observability.Metrics
	redirectURL string
}

// NewOrchestrator creates a payment orchestrator. A nil processor enables
// demo mode; a nil Redis client disables the advisory lock and relies on
// the intent store's unique constraint alone.
func NewOrchestrator(
	companyService companies.Service,
	planService plans.Service,
	intents *IntentStore,
	processor ProcessorClient,
	locks *redis.Client,
	logger *observability.Logger,
	metrics *observability.Metrics,
) *Orchestrator {
	return &Orchestrator{
		companies: companyService,
		plans:     planService,
		intents:   intents,
		processor: processor,
		locks:     locks,
		logger:    logger,
		metrics:   metrics,
	}
}

// SetRedirectURL configures the hosted checkout fallback used when a plan
// has no configured price reference
func (o *Orchestrator) SetRedirectURL(redirectURL string) {
	o.redirectURL = redirectURL
}

// CreateOrUpgradeSubscription creates an external subscription intent for
// the company's plan selection. The result is one of three variants:
// a client secret for in-app confirmation, a demo-mode acknowledgment, or
// a hosted-flow redirect. Calls are idempotent per company while an intent
// is pending.
func (o *Orchestrator) CreateOrUpgradeSubscription(ctx context.Context, companyID int64, planID string, period BillingPeriod, installments int) (*SubscriptionIntentResult, error) {
	if !period.Valid() {
		return nil, NewValidationError("billingPeriod", "must be monthly or annual")
	}
	if installments == 0 {
		installments = 1
	}
	if period == PeriodMonthly && installments != 1 {
		return nil, NewValidationError("installments", "only annual plans support installments")
	}
	if period == PeriodAnnual && !ValidInstallmentCount(installments) {
		return nil, ErrInvalidInstallmentCount
	}

	company, err := o.companies.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}

	plan, err := o.plans.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	baseAmount := plan.Price
	priceID := plan.StripePriceID
	if period == PeriodAnnual {
		if plan.AnnualPrice == nil {
			return nil, NewValidationError("billingPeriod", fmt.Sprintf("plan %s has no annual price", planID))
		}
		baseAmount = *plan.AnnualPrice
		priceID = plan.StripeAnnualPriceID
	}

	var schedule *Installment
	if period == PeriodAnnual {
		schedule, err = ComputeInstallment(baseAmount, installments)
		if err != nil {
			return nil, err
		}
	}

	// Serialize concurrent upgrades for the same company. On Redis
	// failure we fall through to the intent store's unique constraint.
	if acquired, err := o.acquireLock(ctx, companyID); err == nil && !acquired {
		if existing, err := o.intents.GetPending(ctx, companyID); err == nil && existing != nil {
			return o.resultFromIntent(existing), nil
		}
		return nil, NewValidationError("", "an upgrade for this company is already in progress")
	}
	defer o.releaseLock(ctx, companyID)

	if existing, err := o.intents.GetPending(ctx, companyID); err != nil {
		return nil, err
	} else if existing != nil {
		return o.resultFromIntent(existing), nil
	}

	if o.processor == nil {
		return o.demoModeResult(company, plan, period, schedule), nil
	}

	if priceID == "" && o.redirectURL != "" {
		o.metrics.IntentsCreatedTotal.WithLabelValues(string(KindRedirect)).Inc()
		return &SubscriptionIntentResult{
			Kind:        KindRedirect,
			RedirectURL: fmt.Sprintf("%s?company=%d&plan=%s&period=%s", o.redirectURL, companyID, planID, period),
		}, nil
	}

	candidate := &PaymentIntent{
		ID:            uuid.NewString(),
		CompanyID:     companyID,
		PlanID:        planID,
		BillingPeriod: period,
		Installments:  installments,
	}
	claimed, intent, err := o.intents.ClaimPending(ctx, candidate)
	if err != nil {
		return nil, err
	}
	if !claimed && intent == nil {
		// The insert conflicted with a pending intent that was confirmed
		// or expired before the follow-up lookup ran. Claim once more.
		claimed, intent, err = o.intents.ClaimPending(ctx, candidate)
		if err != nil {
			return nil, err
		}
	}
	if !claimed {
		if intent == nil {
			return nil, NewValidationError("", "an upgrade for this company is already in progress")
		}
		// Lost the race to a concurrent call; reuse its intent.
		return o.resultFromIntent(intent), nil
	}

	clientSecret, err := o.createExternalSubscription(ctx, company, plan, priceID, intent)
	if err != nil {
		if markErr := o.intents.MarkStatus(ctx, intent.ID, IntentFailed); markErr != nil {
			o.logger.WithError(markErr).Error("failed to mark intent failed after processor error")
		}
		if procErr, ok := err.(*ProcessorError); ok {
			o.metrics.ProcessorErrorsTotal.WithLabelValues(procErr.Code).Inc()
		}
		return nil, err
	}

	if err := o.intents.SetClientSecret(ctx, intent.ID, clientSecret); err != nil {
		return nil, err
	}

	o.metrics.IntentsCreatedTotal.WithLabelValues(string(KindClientSecret)).Inc()
	o.logger.WithFields(map[string]interface{}{
		"company_id": companyID,
		"plan_id":    planID,
		"period":     period,
		"intent_id":  intent.ID,
	}).Info("payment intent created")

	return &SubscriptionIntentResult{
		Kind:         KindClientSecret,
		IntentID:     intent.ID,
		ClientSecret: clientSecret,
	}, nil
}

// CancelAtPeriodEnd toggles scheduled cancellation on the external
// subscription. Local state is untouched; the eventual webhook carries the
// resulting status change.
func (o *Orchestrator) CancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (*ExternalSubscription, error) {
	if o.processor == nil {
		return nil, NewValidationError("", "payment processor is not configured")
	}
	sub, err := o.processor.SetCancelAtPeriodEnd(ctx, subscriptionID, cancel)
	if err != nil {
		if procErr, ok := err.(*ProcessorError); ok {
			o.metrics.ProcessorErrorsTotal.WithLabelValues(procErr.Code).Inc()
		}
		return nil, err
	}
	return sub, nil
}

func (o *Orchestrator) createExternalSubscription(ctx context.Context, company *companies.Company, plan *plans.Plan, priceID string, intent *PaymentIntent) (string, error) {
	customerID := company.StripeCustomerID
	if customerID == "" {
		var err error
		customerID, err = o.processor.CreateCustomer(ctx, company.Name, company.ID)
		if err != nil {
			return "", err
		}
	}

	metadata := map[string]string{
		"company_id":   strconv.FormatInt(company.ID, 10),
		"plan_id":      plan.ID,
		"intent_id":    intent.ID,
		"installments": strconv.Itoa(intent.Installments),
	}
	_, clientSecret, err := o.processor.CreateSubscription(ctx, customerID, priceID, metadata)
	if err != nil {
		return "", err
	}
	return clientSecret, nil
}

func (o *Orchestrator) demoModeResult(company *companies.Company, plan *plans.Plan, period BillingPeriod, schedule *Installment) *SubscriptionIntentResult {
	message := fmt.Sprintf("demo mode: subscription to plan %s (%s) simulated, no charge performed", plan.ID, period)
	if schedule != nil && schedule.Count > 1 {
		message = fmt.Sprintf("demo mode: subscription to plan %s in %d installments of %s simulated, no charge performed",
			plan.ID, schedule.Count, RoundPresentation(schedule.PerInstallment))
	}

	// Logged distinctly from genuine failures so operators can tell
	// "intentionally unconfigured" from "broken".
	o.logger.WithFields(map[string]interface{}{
		"company_id": company.ID,
		"plan_id":    plan.ID,
		"demo_mode":  true,
	}).Warn("payment processor not configured, returning demo mode fallback")
	o.metrics.DemoModeFallbacksTotal.Inc()
	o.metrics.IntentsCreatedTotal.WithLabelValues(string(KindDemoMode)).Inc()

	return &SubscriptionIntentResult{
		Kind:     KindDemoMode,
		DemoMode: true,
		Message:  message,
	}
}

// EstimateInstallments computes the presentation-ready installment options
// for a plan's annual price, for the selection UI.
func (o *Orchestrator) EstimateInstallments(ctx context.Context, planID string) (map[int]Installment, error) {
	plan, err := o.plans.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.AnnualPrice == nil {
		return nil, NewValidationError("planId", fmt.Sprintf("plan %s has no annual price", planID))
	}

	options := make(map[int]Installment)
	for count := range validInstallmentCounts {
		schedule, err := ComputeInstallment(*plan.AnnualPrice, count)
		if err != nil {
			return nil, err
		}
		options[count] = Installment{
			Count:          count,
			PerInstallment: RoundPresentation(schedule.PerInstallment),
			Total:          RoundPresentation(schedule.Total),
			InterestPaid:   RoundPresentation(schedule.InterestPaid),
		}
	}
	return options, nil
}

func (o *Orchestrator) acquireLock(ctx context.Context, companyID int64) (bool, error) {
	if o.locks == nil {
		return true, nil
	}
	key := upgradeLockKey(companyID)
	acquired, err := o.locks.SetNX(ctx, key, "1", upgradeLockTTL).Result()
	if err != nil {
		// Fail open: the intent store's unique constraint still prevents
		// duplicate external subscriptions.
		o.logger.WithError(err).Warn("upgrade lock unavailable, relying on intent uniqueness")
		return true, nil
	}
	return acquired, nil
}

func (o *Orchestrator) releaseLock(ctx context.Context, companyID int64) {
	if o.locks == nil {
		return
	}
	if err := o.locks.Del(ctx, upgradeLockKey(companyID)).Err(); err != nil {
		o.logger.WithError(err).Warn("failed to release upgrade lock")
	}
}

func upgradeLockKey(companyID int64) string {
	return "billing:upgrade:" + strconv.FormatInt(companyID, 10)
}

func (o *Orchestrator) resultFromIntent(intent *PaymentIntent) *SubscriptionIntentResult {
	return &SubscriptionIntentResult{
		Kind:         KindClientSecret,
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
	}
}
