package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements are applied in order on startup. Every statement is
// idempotent so repeated runs are safe.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS plans (
		id                     TEXT PRIMARY KEY,
		stripe_price_id        TEXT NOT NULL DEFAULT '',
		stripe_annual_price_id TEXT NOT NULL DEFAULT '',
		created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS companies (
		id                     BIGSERIAL PRIMARY KEY,
		name                   TEXT NOT NULL,
		is_active              BOOLEAN NOT NULL DEFAULT TRUE,
		plan_status            TEXT NOT NULL DEFAULT 'active',
		plan_id                TEXT NOT NULL DEFAULT '',
		stripe_customer_id     TEXT NOT NULL DEFAULT '',
		stripe_subscription_id TEXT NOT NULL DEFAULT '',
		trial_ends_at          TIMESTAMPTZ,
		external_status        TEXT NOT NULL DEFAULT '',
		current_period_start   TIMESTAMPTZ,
		current_period_end     TIMESTAMPTZ,
		cancel_at_period_end   BOOLEAN NOT NULL DEFAULT FALSE,
		latest_invoice_id      TEXT NOT NULL DEFAULT '',
		latest_invoice_status  TEXT NOT NULL DEFAULT '',
		latest_invoice_total   BIGINT NOT NULL DEFAULT 0,
		latest_invoice_paid    BOOLEAN NOT NULL DEFAULT FALSE,
		created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_companies_subscription
		ON companies (stripe_subscription_id)
		WHERE stripe_subscription_id <> ''`,

	`CREATE TABLE IF NOT EXISTS payment_intents (
		id            TEXT PRIMARY KEY,
		company_id    BIGINT NOT NULL REFERENCES companies(id),
		plan_id       TEXT NOT NULL,
		billing_period TEXT NOT NULL,
		installments  INTEGER NOT NULL DEFAULT 1,
		status        TEXT NOT NULL DEFAULT 'pending',
		client_secret TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	// At most one pending intent per company. The claim path relies on
	// ON CONFLICT against this index for its idempotency guarantee.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_payment_intents_pending
		ON payment_intents (company_id)
		WHERE status = 'pending'`,

	`CREATE INDEX IF NOT EXISTS idx_payment_intents_status_created
		ON payment_intents (status, created_at)`,
}

// EnsureSchema creates the tables and indexes if they do not exist
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d failed: %w", i, err)
		}
	}
	return nil
}
