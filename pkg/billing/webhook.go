package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/agendly/agendly/pkg/companies"
	"github.com/agendly/agendly/pkg/observability"
)

// WebhookEvent is the processor event envelope
type WebhookEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    webhookData     `json:"data"`
	Raw     json.RawMessage `json:"-"`
}

type webhookData struct {
	Object json.RawMessage `json:"object"`
}

// webhookObject carries the fields shared by subscription and invoice
// payloads that this core consumes
type webhookObject struct {
	ID                 string            `json:"id"`
	Customer           string            `json:"customer"`
	Subscription       string            `json:"subscription"`
	Status             string            `json:"status"`
	Total              int64             `json:"total"`
	Paid               bool              `json:"paid"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	Metadata           map[string]string `json:"metadata"`
	SubscriptionDetails *struct {
		Metadata map[string]string `json:"metadata"`
	} `json:"subscription_details"`
}

// WebhookProcessor applies processor callbacks to local state. This is the
// asynchronous half of the two-phase upgrade protocol: intent creation
// never mutates Company, and this is the only component besides the admin
// harness that does.
type WebhookProcessor struct {
	companies companies.Service
	intents   *IntentStore
	secret    string
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// NewWebhookProcessor creates a webhook processor
func NewWebhookProcessor(companyService companies.Service, intents *IntentStore, secret string, logger *observability.Logger, metrics *observability.Metrics) *WebhookProcessor {
	return &WebhookProcessor{
		companies: companyService,
		intents:   intents,
		secret:    secret,
		logger:    logger,
		metrics:   metrics,
	}
}

// VerifySignature checks the HMAC-SHA256 signature of a webhook payload
func (p *WebhookProcessor) VerifySignature(payload []byte, signature string) bool {
	if p.secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(p.secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// HandleEvent verifies and applies a processor event. Unknown event types
// are acknowledged and ignored.
func (p *WebhookProcessor) HandleEvent(ctx context.Context, payload []byte, signature string) error {
	if !p.VerifySignature(payload, signature) {
		return NewValidationError("signature", "webhook signature verification failed")
	}

	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return NewValidationError("payload", fmt.Sprintf("failed to parse webhook: %v", err))
	}

	var object webhookObject
	if err := json.Unmarshal(event.Data.Object, &object); err != nil {
		return NewValidationError("payload", fmt.Sprintf("failed to parse webhook object: %v", err))
	}

	p.metrics.WebhookEventsTotal.WithLabelValues(event.Type).Inc()
	logger := p.logger.WithFields(map[string]interface{}{
		"event_id":   event.ID,
		"event_type": event.Type,
	})

	switch event.Type {
	case "invoice.paid":
		return p.handleInvoicePaid(ctx, &object, logger)
	case "invoice.payment_failed":
		return p.handleInvoicePaymentFailed(ctx, &object, logger)
	case "customer.subscription.updated":
		return p.handleSubscriptionUpdated(ctx, &object, logger)
	case "customer.subscription.deleted":
		return p.handleSubscriptionDeleted(ctx, &object, logger)
	default:
		logger.Debug("ignoring unhandled webhook event type")
		return nil
	}
}

func (p *WebhookProcessor) handleInvoicePaid(ctx context.Context, object *webhookObject, logger *observability.Logger) error {
	companyID, metadata, err := p.companyFromMetadata(object)
	if err != nil {
		return err
	}

	if err := p.companies.SetPlanStatus(ctx, companyID, true, companies.PlanStatusActive); err != nil {
		return fmt.Errorf("failed to activate company %d: %w", companyID, err)
	}
	if object.Customer != "" && object.Subscription != "" {
		planID := metadata["plan_id"]
		if err := p.companies.SetSubscriptionRef(ctx, companyID, object.Customer, object.Subscription, planID); err != nil {
			return fmt.Errorf("failed to store subscription ref: %w", err)
		}
	}
	if err := p.intents.ResolvePendingForCompany(ctx, companyID, IntentConfirmed); err != nil {
		return err
	}

	logger.WithField("company_id", companyID).Info("invoice paid, company activated")
	return nil
}

func (p *WebhookProcessor) handleInvoicePaymentFailed(ctx context.Context, object *webhookObject, logger *observability.Logger) error {
	companyID, _, err := p.companyFromMetadata(object)
	if err != nil {
		return err
	}

	if err := p.companies.SetPlanStatus(ctx, companyID, false, companies.PlanStatusSuspended); err != nil {
		return fmt.Errorf("failed to suspend company %d: %w", companyID, err)
	}
	if err := p.intents.ResolvePendingForCompany(ctx, companyID, IntentFailed); err != nil {
		return err
	}

	logger.WithField("company_id", companyID).Warn("invoice payment failed, company suspended")
	return nil
}

func (p *WebhookProcessor) handleSubscriptionUpdated(ctx context.Context, object *webhookObject, logger *observability.Logger) error {
	companyID, _, err := p.companyFromMetadata(object)
	if err != nil {
		return err
	}

	if err := p.companies.UpdateExternalSnapshot(ctx, companyID, snapshotFromObject(object)); err != nil {
		return fmt.Errorf("failed to update snapshot: %w", err)
	}

	// Terminal external states confirm a status change; in-between states
	// (past_due and friends) stay informational.
	switch object.Status {
	case "active":
		if err := p.companies.SetPlanStatus(ctx, companyID, true, companies.PlanStatusActive); err != nil {
			return err
		}
	case "canceled", "cancelled", "incomplete_expired":
		if err := p.companies.SetPlanStatus(ctx, companyID, false, companies.PlanStatusSuspended); err != nil {
			return err
		}
	}

	logger.WithFields(map[string]interface{}{
		"company_id": companyID,
		"status":     object.Status,
	}).Info("subscription updated")
	return nil
}

func (p *WebhookProcessor) handleSubscriptionDeleted(ctx context.Context, object *webhookObject, logger *observability.Logger) error {
	companyID, _, err := p.companyFromMetadata(object)
	if err != nil {
		return err
	}

	snap := snapshotFromObject(object)
	snap.Status = "canceled"
	if err := p.companies.UpdateExternalSnapshot(ctx, companyID, snap); err != nil {
		return fmt.Errorf("failed to update snapshot: %w", err)
	}
	if err := p.companies.SetPlanStatus(ctx, companyID, false, companies.PlanStatusSuspended); err != nil {
		return fmt.Errorf("failed to suspend company %d: %w", companyID, err)
	}

	logger.WithField("company_id", companyID).Info("subscription deleted, company suspended")
	return nil
}

func (p *WebhookProcessor) companyFromMetadata(object *webhookObject) (int64, map[string]string, error) {
	metadata := object.Metadata
	if len(metadata) == 0 && object.SubscriptionDetails != nil {
		metadata = object.SubscriptionDetails.Metadata
	}
	raw, ok := metadata["company_id"]
	if !ok {
		return 0, nil, NewValidationError("metadata", "event carries no company_id")
	}
	companyID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, nil, NewValidationError("metadata", fmt.Sprintf("invalid company_id %q", raw))
	}
	return companyID, metadata, nil
}

func snapshotFromObject(object *webhookObject) *companies.ExternalSnapshot {
	snap := &companies.ExternalSnapshot{
		SubscriptionID:    object.ID,
		Status:            object.Status,
		CancelAtPeriodEnd: object.CancelAtPeriodEnd,
	}
	if object.CurrentPeriodStart > 0 {
		start := time.Unix(object.CurrentPeriodStart, 0).UTC()
		snap.CurrentPeriodStart = &start
	}
	if object.CurrentPeriodEnd > 0 {
		end := time.Unix(object.CurrentPeriodEnd, 0).UTC()
		snap.CurrentPeriodEnd = &end
	}
	return snap
}
