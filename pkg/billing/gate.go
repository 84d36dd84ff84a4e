package billing

import (
	"context"

	"github.com/agendly/agendly/pkg/companies"
	"github.com/agendly/agendly/pkg/observability"
)

// AccessGate decides whether a company may use the product. It is consulted
// on every authenticated company-scoped request, so it reads only the most
// recently persisted Company row; external state is synced asynchronously
// and never fetched on this path.
type AccessGate struct {
	companies companies.Service
	metrics   *observability.Metrics
}

// NewAccessGate creates a new AccessGate
func NewAccessGate(companyService companies.Service, metrics *observability.Metrics) *AccessGate {
	return &AccessGate{
		companies: companyService,
		metrics:   metrics,
	}
}

// CanAccess reports whether the company may be served. A denial is an
// expected, frequent outcome and is returned as false with a nil error;
// only an unknown company or a storage failure produces an error.
func (g *AccessGate) CanAccess(ctx context.Context, companyID int64) (bool, error) {
	company, err := g.companies.GetCompany(ctx, companyID)
	if err != nil {
		return false, err
	}

	resolution := Resolve(company, company.ExternalStatus)
	if !resolution.IsActive && g.metrics != nil {
		g.metrics.GateDenialsTotal.WithLabelValues(string(resolution.Status)).Inc()
	}
	return resolution.IsActive, nil
}

// Status returns the full resolution for a company, for callers that need
// the normalized status and trial flag in addition to the gate decision.
func (g *AccessGate) Status(ctx context.Context, companyID int64) (*Resolution, error) {
	company, err := g.companies.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	resolution := Resolve(company, company.ExternalStatus)
	return &resolution, nil
}
