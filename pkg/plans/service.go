package plans

import (
	"context"
	"database/sql"
	"fmt"
)

// Service defines the interface for plan lookups and administration
type Service interface {
	GetPlan(ctx context.Context, id string) (*Plan, error)
	ListPlans(ctx context.Context) ([]*Plan, error)
	// UpdateStripePriceID sets the external price reference for a plan.
	// The reference must match the price_* pattern; everything else about
	// a plan is immutable through this service.
	UpdateStripePriceID(ctx context.Context, id, priceID string, annual bool) error
}

// PostgresService implements the plans Service backed by PostgreSQL. The
// plan definitions come from the catalog; the database stores only the
// editable Stripe price references, seeded on startup.
type PostgresService struct {
	db      *sql.DB
	catalog *Catalog
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB, catalog *Catalog) *PostgresService {
	return &PostgresService{db: db, catalog: catalog}
}

// Seed inserts catalog plans missing from the database. Existing rows keep
// their Stripe price references.
func (s *PostgresService) Seed(ctx context.Context) error {
	query := `
		INSERT INTO plans (id, stripe_price_id, stripe_annual_price_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`
	for _, plan := range s.catalog.List() {
		if _, err := s.db.ExecContext(ctx, query, plan.ID, plan.StripePriceID, plan.StripeAnnualPriceID); err != nil {
			return fmt.Errorf("failed to seed plan %s: %w", plan.ID, err)
		}
	}
	return nil
}

// GetPlan returns the catalog plan overlaid with the persisted price refs
func (s *PostgresService) GetPlan(ctx context.Context, id string) (*Plan, error) {
	plan, ok := s.catalog.Get(id)
	if !ok || !plan.Active {
		return nil, ErrPlanNotFound
	}

	query := `SELECT stripe_price_id, stripe_annual_price_id, created_at, updated_at FROM plans WHERE id = $1`
	var priceID, annualPriceID sql.NullString
	err := s.db.QueryRowContext(ctx, query, id).
		Scan(&priceID, &annualPriceID, &plan.CreatedAt, &plan.UpdatedAt)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	if priceID.Valid && priceID.String != "" {
		plan.StripePriceID = priceID.String
	}
	if annualPriceID.Valid && annualPriceID.String != "" {
		plan.StripeAnnualPriceID = annualPriceID.String
	}
	return &plan, nil
}

// ListPlans returns all catalog plans with persisted price refs applied
func (s *PostgresService) ListPlans(ctx context.Context) ([]*Plan, error) {
	refs, err := s.loadPriceRefs(ctx)
	if err != nil {
		return nil, err
	}

	catalogPlans := s.catalog.List()
	result := make([]*Plan, 0, len(catalogPlans))
	for i := range catalogPlans {
		plan := catalogPlans[i]
		if ref, ok := refs[plan.ID]; ok {
			if ref.priceID != "" {
				plan.StripePriceID = ref.priceID
			}
			if ref.annualPriceID != "" {
				plan.StripeAnnualPriceID = ref.annualPriceID
			}
		}
		result = append(result, &plan)
	}
	return result, nil
}

// UpdateStripePriceID validates and persists an external price reference
func (s *PostgresService) UpdateStripePriceID(ctx context.Context, id, priceID string, annual bool) error {
	if !ValidStripePriceID(priceID) {
		return fmt.Errorf("%w: %q", ErrInvalidPriceID, priceID)
	}
	if _, ok := s.catalog.Get(id); !ok {
		return ErrPlanNotFound
	}

	column := "stripe_price_id"
	if annual {
		column = "stripe_annual_price_id"
	}
	query := fmt.Sprintf(`
		INSERT INTO plans (id, %s) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET %s = EXCLUDED.%s, updated_at = NOW()
	`, column, column, column)

	if _, err := s.db.ExecContext(ctx, query, id, priceID); err != nil {
		return fmt.Errorf("failed to update stripe price id: %w", err)
	}
	return nil
}

type priceRef struct {
	priceID       string
	annualPriceID string
}

func (s *PostgresService) loadPriceRefs(ctx context.Context) (map[string]priceRef, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, stripe_price_id, stripe_annual_price_id FROM plans`)
	if err != nil {
		return nil, fmt.Errorf("failed to load price refs: %w", err)
	}
	defer rows.Close()

	refs := make(map[string]priceRef)
	for rows.Next() {
		var id string
		var priceID, annualPriceID sql.NullString
		if err := rows.Scan(&id, &priceID, &annualPriceID); err != nil {
			return nil, fmt.Errorf("failed to scan price ref: %w", err)
		}
		refs[id] = priceRef{priceID: priceID.String, annualPriceID: annualPriceID.String}
	}
	return refs, rows.Err()
}
