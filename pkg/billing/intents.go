package billing

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// IntentStore persists in-flight payment intents. A partial unique index on
// (company_id) WHERE status = 'pending' guarantees at most one pending
// intent per company, which is what makes orchestrator calls idempotent
// under concurrent retries.
type IntentStore struct {
	db *sql.DB
}

// NewIntentStore creates a new IntentStore
func NewIntentStore(db *sql.DB) *IntentStore {
	return &IntentStore{db: db}
}

// ClaimPending atomically records a pending intent for the company. If
// another pending intent already exists the claim fails and the existing
// intent is returned instead.
func (s *IntentStore) ClaimPending(ctx context.Context, intent *PaymentIntent) (bool, *PaymentIntent, error) {
	query := `
		INSERT INTO payment_intents (id, company_id, plan_id, billing_period, installments, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (company_id) WHERE status = 'pending' DO NOTHING
		RETURNING created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query, intent.ID, intent.CompanyID, intent.PlanID,
		intent.BillingPeriod, intent.Installments, IntentPending).
		Scan(&intent.CreatedAt, &intent.UpdatedAt)
	if err == sql.ErrNoRows {
		existing, err := s.GetPending(ctx, intent.CompanyID)
		if err != nil {
			return false, nil, err
		}
		return false, existing, nil
	}
	if err != nil {
		return false, nil, fmt.Errorf("failed to claim payment intent: %w", err)
	}
	intent.Status = IntentPending
	return true, intent, nil
}

// GetPending returns the company's pending intent, or nil if none exists
func (s *IntentStore) GetPending(ctx context.Context, companyID int64) (*PaymentIntent, error) {
	query := `
		SELECT id, company_id, plan_id, billing_period, installments, client_secret, status, created_at, updated_at
		FROM payment_intents
		WHERE company_id = $1 AND status = 'pending'
	`
	intent := &PaymentIntent{}
	var clientSecret sql.NullString
	err := s.db.QueryRowContext(ctx, query, companyID).Scan(
		&intent.ID, &intent.CompanyID, &intent.PlanID, &intent.BillingPeriod,
		&intent.Installments, &clientSecret, &intent.Status,
		&intent.CreatedAt, &intent.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending intent: %w", err)
	}
	intent.ClientSecret = clientSecret.String
	return intent, nil
}

// SetClientSecret stores the processor client secret on a claimed intent
func (s *IntentStore) SetClientSecret(ctx context.Context, id, clientSecret string) error {
	query := `UPDATE payment_intents SET client_secret = $1, updated_at = NOW() WHERE id = $2`
	if _, err := s.db.ExecContext(ctx, query, clientSecret, id); err != nil {
		return fmt.Errorf("failed to set client secret: %w", err)
	}
	return nil
}

// MarkStatus transitions an intent to a terminal status
func (s *IntentStore) MarkStatus(ctx context.Context, id string, status PaymentIntentStatus) error {
	query := `UPDATE payment_intents SET status = $1, updated_at = NOW() WHERE id = $2`
	if _, err := s.db.ExecContext(ctx, query, status, id); err != nil {
		return fmt.Errorf("failed to mark intent %s: %w", status, err)
	}
	return nil
}

// ResolvePendingForCompany transitions the company's pending intent, if
// any, to the given terminal status. Used by the webhook confirmation path.
func (s *IntentStore) ResolvePendingForCompany(ctx context.Context, companyID int64, status PaymentIntentStatus) error {
	query := `UPDATE payment_intents SET status = $1, updated_at = NOW() WHERE company_id = $2 AND status = 'pending'`
	if _, err := s.db.ExecContext(ctx, query, status, companyID); err != nil {
		return fmt.Errorf("failed to resolve pending intent: %w", err)
	}
	return nil
}

// ExpireStale marks pending intents older than maxAge as expired. An
// abandoned payment confirmation needs no rollback; the intent simply
// expires here and processor-side.
func (s *IntentStore) ExpireStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	query := `
		UPDATE payment_intents SET status = 'expired', updated_at = NOW()
		WHERE status = 'pending' AND created_at < $1
	`
	result, err := s.db.ExecContext(ctx, query, time.Now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("failed to expire stale intents: %w", err)
	}
	return result.RowsAffected()
}
