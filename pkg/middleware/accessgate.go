package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/agendly/agendly/pkg/billing"
	"github.com/agendly/agendly/pkg/companies"
	"github.com/agendly/agendly/pkg/httputil"
	"github.com/agendly/agendly/pkg/observability"
)

// CompanyIDHeader carries the authenticated company on gated requests
const CompanyIDHeader = "X-Company-ID"

// PlansRedirectPath is where denied callers are routed to pick a plan
const PlansRedirectPath = "/plans"

// CompanyContextMiddleware extracts the company id from the request header
// and stores it in the context. Requests without the header pass through
// unchanged; the gate middleware decides whether that is acceptable.
func CompanyContextMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw := r.Header.Get(CompanyIDHeader); raw != "" {
				companyID, err := strconv.ParseInt(raw, 10, 64)
				if err != nil {
					httputil.WriteBadRequest(w, "invalid company id")
					return
				}
				r = r.WithContext(observability.WithCompanyID(r.Context(), companyID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AccessGateMiddleware blocks requests from companies whose subscription
// does not permit access. Denials return 402 with a redirect to the plan
// selection flow; the billing and test-harness surfaces are mounted outside
// this middleware so a suspended company can still pay its way back in.
func AccessGateMiddleware(gate *billing.AccessGate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			companyID := observability.GetCompanyID(r.Context())
			if companyID == 0 {
				httputil.WriteErrorMessage(w, http.StatusUnauthorized, "company identification required")
				return
			}

			allowed, err := gate.CanAccess(r.Context(), companyID)
			if err != nil {
				if errors.Is(err, companies.ErrCompanyNotFound) {
					httputil.WriteNotFoundError(w, "company not found")
					return
				}
				httputil.WriteInternalError(w, err)
				return
			}
			if !allowed {
				httputil.WritePaymentRequired(w, "subscription required", PlansRedirectPath)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
