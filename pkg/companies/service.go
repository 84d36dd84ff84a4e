package companies

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresService implements the companies Service interface using PostgreSQL
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

const companyColumns = `id, name, is_active, plan_status, plan_id,
       stripe_customer_id, stripe_subscription_id, trial_ends_at,
       external_status, current_period_start, current_period_end,
       cancel_at_period_end, latest_invoice_id, latest_invoice_status,
       latest_invoice_total, latest_invoice_paid, created_at, updated_at`

// CreateCompany inserts a new company row. New companies start on trial with
// plan_status=active.
func (s *PostgresService) CreateCompany(ctx context.Context, company *Company) error {
	if company.PlanStatus == "" {
		company.PlanStatus = PlanStatusActive
	}
	query := `
		INSERT INTO companies (name, is_active, plan_status, plan_id, trial_ends_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query, company.Name, company.IsActive,
		company.PlanStatus, company.PlanID, company.TrialEndsAt).
		Scan(&company.ID, &company.CreatedAt, &company.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create company: %w", err)
	}
	return nil
}

// GetCompany retrieves a company by ID
func (s *PostgresService) GetCompany(ctx context.Context, id int64) (*Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE id = $1`
	company, err := scanCompany(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrCompanyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return company, nil
}

// ListCompanies lists all companies
func (s *PostgresService) ListCompanies(ctx context.Context) ([]*Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies ORDER BY id`
	return s.list(ctx, query)
}

// ListSubscribed returns companies with an external subscription reference
func (s *PostgresService) ListSubscribed(ctx context.Context) ([]*Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies
		WHERE stripe_subscription_id IS NOT NULL AND stripe_subscription_id <> ''
		ORDER BY id`
	return s.list(ctx, query)
}

func (s *PostgresService) list(ctx context.Context, query string) ([]*Company, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	var result []*Company
	for rows.Next() {
		company, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		result = append(result, company)
	}
	return result, rows.Err()
}

// SetPlanStatus atomically updates the gating fields in a single UPDATE.
// There is no read-then-write window: concurrent harness and webhook
// updates are last-writer-wins.
func (s *PostgresService) SetPlanStatus(ctx context.Context, id int64, isActive bool, status PlanStatus) error {
	query := `UPDATE companies SET is_active = $1, plan_status = $2, updated_at = NOW() WHERE id = $3`
	result, err := s.db.ExecContext(ctx, query, isActive, status, id)
	if err != nil {
		return fmt.Errorf("failed to set plan status: %w", err)
	}
	return checkAffected(result)
}

// SetSubscriptionRef stores the external customer/subscription references
// and the confirmed plan after a successful payment confirmation.
func (s *PostgresService) SetSubscriptionRef(ctx context.Context, id int64, customerID, subscriptionID, planID string) error {
	query := `
		UPDATE companies
		SET stripe_customer_id = $1, stripe_subscription_id = $2, plan_id = $3, updated_at = NOW()
		WHERE id = $4
	`
	result, err := s.db.ExecContext(ctx, query, customerID, subscriptionID, planID, id)
	if err != nil {
		return fmt.Errorf("failed to set subscription ref: %w", err)
	}
	return checkAffected(result)
}

// UpdateExternalSnapshot persists the processor-reported informational
// fields. The gating columns is_active/plan_status are deliberately not
// part of this statement.
func (s *PostgresService) UpdateExternalSnapshot(ctx context.Context, id int64, snap *ExternalSnapshot) error {
	query := `
		UPDATE companies
		SET external_status = $1, current_period_start = $2, current_period_end = $3,
		    cancel_at_period_end = $4, latest_invoice_id = $5, latest_invoice_status = $6,
		    latest_invoice_total = $7, latest_invoice_paid = $8,
		    stripe_subscription_id = COALESCE(NULLIF($9, ''), stripe_subscription_id),
		    updated_at = NOW()
		WHERE id = $10
	`
	result, err := s.db.ExecContext(ctx, query, snap.Status, snap.CurrentPeriodStart,
		snap.CurrentPeriodEnd, snap.CancelAtPeriodEnd, snap.LatestInvoiceID,
		snap.LatestInvoiceState, snap.LatestInvoiceTotal, snap.LatestInvoicePaid,
		snap.SubscriptionID, id)
	if err != nil {
		return fmt.Errorf("failed to update external snapshot: %w", err)
	}
	return checkAffected(result)
}

func checkAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrCompanyNotFound
	}
	return nil
}

// scanner abstracts sql.Row and sql.Rows for scanCompany
type scanner interface {
	Scan(dest ...any) error
}

func scanCompany(row scanner) (*Company, error) {
	company := &Company{}
	var customerID, subscriptionID, externalStatus, invoiceID, invoiceStatus sql.NullString
	var invoiceTotal sql.NullInt64
	var invoicePaid sql.NullBool

	err := row.Scan(
		&company.ID, &company.Name, &company.IsActive, &company.PlanStatus,
		&company.PlanID, &customerID, &subscriptionID, &company.TrialEndsAt,
		&externalStatus, &company.CurrentPeriodStart, &company.CurrentPeriodEnd,
		&company.CancelAtPeriodEnd, &invoiceID, &invoiceStatus,
		&invoiceTotal, &invoicePaid, &company.CreatedAt, &company.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	company.StripeCustomerID = customerID.String
	company.StripeSubscriptionID = subscriptionID.String
	company.ExternalStatus = externalStatus.String
	company.LatestInvoiceID = invoiceID.String
	company.LatestInvoiceState = invoiceStatus.String
	company.LatestInvoiceTotal = invoiceTotal.Int64
	company.LatestInvoicePaid = invoicePaid.Bool

	return company, nil
}
