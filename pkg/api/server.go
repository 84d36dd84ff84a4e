package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/agendly/agendly/pkg/billing"
	"github.com/agendly/agendly/pkg/companies"
	"github.com/agendly/agendly/pkg/middleware"
	"github.com/agendly/agendly/pkg/observability"
	"github.com/agendly/agendly/pkg/plans"
)

// Server represents our API server
type Server struct {
	router       *mux.Router
	companies    companies.Service
	plans        plans.Service
	gate         *billing.AccessGate
	orchestrator *billing.Orchestrator
	harness      *billing.Harness
	webhooks     *billing.WebhookProcessor
	syncer       *billing.Syncer
	logger       *observability.Logger
	metrics      *observability.Metrics
}

// NewServer creates a new API server
func NewServer(
	companyService companies.Service,
	planService plans.Service,
	gate *billing.AccessGate,
	orchestrator *billing.Orchestrator,
	harness *billing.Harness,
	webhooks *billing.WebhookProcessor,
	syncer *billing.Syncer,
	logger *observability.Logger,
	metrics *observability.Metrics,
) *Server {
	s := &Server{
		router:       mux.NewRouter(),
		companies:    companyService,
		plans:        planService,
		gate:         gate,
		orchestrator: orchestrator,
		harness:      harness,
		webhooks:     webhooks,
		syncer:       syncer,
		logger:       logger,
		metrics:      metrics,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestIDMiddleware(s.logger))
	s.router.Use(middleware.CompanyContextMiddleware())
	if s.metrics != nil {
		s.router.Use(s.metrics.InstrumentHandler)
	}

	// Billing surface. Mounted outside the access gate so a suspended
	// company can still subscribe or pay.
	s.router.HandleFunc("/api/subscription/upgrade", s.upgradeSubscription).Methods("POST")
	s.router.HandleFunc("/api/create-subscription", s.createSubscription).Methods("POST")
	s.router.HandleFunc("/api/subscription/status", s.subscriptionStatus).Methods("GET")
	s.router.HandleFunc("/api/billing/webhook", s.handleWebhook).Methods("POST")

	// Plan catalog.
	s.router.HandleFunc("/api/plans", s.listPlans).Methods("GET")
	s.router.HandleFunc("/api/plans/{id}", s.getPlan).Methods("GET")
	s.router.HandleFunc("/api/plans/{id}/installments", s.planInstallments).Methods("GET")

	// Company provisioning.
	s.router.HandleFunc("/api/companies", s.createCompany).Methods("POST")
	s.router.HandleFunc("/api/companies/{id}", s.getCompany).Methods("GET")

	// Admin test harness. Also outside the gate: its whole point is to
	// flip companies in and out of suspension.
	s.router.HandleFunc("/api/test/simulate-payment-failure", s.simulatePaymentFailure).Methods("POST")
	s.router.HandleFunc("/api/test/simulate-payment-success", s.simulatePaymentSuccess).Methods("POST")

	// Admin surface.
	s.router.HandleFunc("/api/admin/plans", s.adminListPlans).Methods("GET")
	s.router.HandleFunc("/api/admin/plans/{id}/stripe", s.updatePlanStripePrice).Methods("PUT")
	s.router.HandleFunc("/api/admin/stripe/subscriptions", s.adminListSubscriptions).Methods("GET")
	s.router.HandleFunc("/api/admin/stripe/subscriptions/{subscriptionId}/cancel", s.adminCancelSubscription).Methods("POST")
	s.router.HandleFunc("/api/admin/stripe/subscriptions/{subscriptionId}/reactivate", s.adminReactivateSubscription).Methods("POST")

	// Gated product surface. Everything mounted here requires an active
	// subscription; /access doubles as the client-side probe.
	gated := s.router.PathPrefix("/api/app").Subrouter()
	gated.Use(middleware.AccessGateMiddleware(s.gate))
	gated.HandleFunc("/access", s.accessProbe).Methods("GET")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router exposes the underlying router so the host application can mount
// its own gated resources under /api/app
func (s *Server) Router() *mux.Router {
	return s.router
}
