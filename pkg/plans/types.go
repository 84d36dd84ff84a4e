package plans

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FeatureFlag is a product capability granted by a plan
type FeatureFlag string

const (
	FeatureScheduling       FeatureFlag = "scheduling"
	FeatureOnlineBooking    FeatureFlag = "online_booking"
	FeatureFinancialReports FeatureFlag = "financial_reports"
	FeatureReminders        FeatureFlag = "reminders"
	FeatureMultiUnit        FeatureFlag = "multi_unit"
)

// ErrPlanNotFound is returned when a plan does not exist
var ErrPlanNotFound = errors.New("plan not found")

// ErrInvalidPriceID is returned for external price references that do not
// match the price_* pattern
var ErrInvalidPriceID = errors.New("invalid stripe price id: must match price_*")

// Plan represents a billing plan. Plans are immutable once referenced by an
// active subscription; only the external price references may be edited.
type Plan struct {
	ID                  string           `json:"id" yaml:"id"`
	Name                string           `json:"name" yaml:"name"`
	Price               decimal.Decimal  `json:"price" yaml:"price"`
	AnnualPrice         *decimal.Decimal `json:"annual_price,omitempty" yaml:"annual_price,omitempty"`
	MaxProfessionals    int              `json:"max_professionals" yaml:"max_professionals"`
	Permissions         []FeatureFlag    `json:"permissions" yaml:"permissions"`
	StripePriceID       string           `json:"stripe_price_id,omitempty" yaml:"stripe_price_id,omitempty"`
	StripeAnnualPriceID string           `json:"stripe_annual_price_id,omitempty" yaml:"stripe_annual_price_id,omitempty"`
	Active              bool             `json:"active" yaml:"active"`
	CreatedAt           time.Time        `json:"created_at,omitempty" yaml:"-"`
	UpdatedAt           time.Time        `json:"updated_at,omitempty" yaml:"-"`
}

// HasPermission reports whether the plan grants a feature
func (p *Plan) HasPermission(flag FeatureFlag) bool {
	for _, f := range p.Permissions {
		if f == flag {
			return true
		}
	}
	return false
}

// ValidStripePriceID reports whether s looks like a Stripe price reference
func ValidStripePriceID(s string) bool {
	return strings.HasPrefix(s, "price_") && len(s) > len("price_")
}
