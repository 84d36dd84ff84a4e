package api

import (
	"errors"
	"net/http"

	"github.com/agendly/agendly/pkg/billing"
	"github.com/agendly/agendly/pkg/companies"
	"github.com/agendly/agendly/pkg/httputil"
	"github.com/agendly/agendly/pkg/plans"
)

// writeServiceError maps domain errors onto HTTP status codes: caller
// mistakes are 4xx, processor failures are 502, everything else is 500.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case billing.IsValidationError(err),
		errors.Is(err, billing.ErrInvalidInstallmentCount),
		errors.Is(err, billing.ErrInvalidAmount),
		errors.Is(err, plans.ErrInvalidPriceID):
		httputil.WriteError(w, http.StatusBadRequest, err)
	case errors.Is(err, companies.ErrCompanyNotFound),
		errors.Is(err, plans.ErrPlanNotFound):
		httputil.WriteError(w, http.StatusNotFound, err)
	case billing.IsProcessorError(err):
		httputil.WriteBadGateway(w, "payment processor unavailable, no changes were made")
	default:
		httputil.WriteInternalError(w, err)
	}
}
