package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agendly/agendly/pkg/billing"
	"github.com/agendly/agendly/pkg/companies"
	"github.com/agendly/agendly/pkg/middleware"
	"github.com/agendly/agendly/pkg/observability"
	"github.com/agendly/agendly/pkg/plans"
)

// stubCompanyService is an in-memory companies.Service
type stubCompanyService struct {
	mu     sync.Mutex
	byID   map[int64]*companies.Company
	nextID int64
}

func newStubCompanyService(seed ...*companies.Company) *stubCompanyService {
	s := &stubCompanyService{byID: make(map[int64]*companies.Company), nextID: 1}
	for _, c := range seed {
		if c.ID == 0 {
			c.ID = s.nextID
		}
		if c.ID >= s.nextID {
			s.nextID = c.ID + 1
		}
		s.byID[c.ID] = c
	}
	return s
}

func (s *stubCompanyService) CreateCompany(_ context.Context, company *companies.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	company.ID = s.nextID
	s.nextID++
	s.byID[company.ID] = company
	return nil
}

func (s *stubCompanyService) GetCompany(_ context.Context, id int64) (*companies.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	company, ok := s.byID[id]
	if !ok {
		return nil, companies.ErrCompanyNotFound
	}
	copied := *company
	return &copied, nil
}

func (s *stubCompanyService) ListCompanies(_ context.Context) ([]*companies.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]*companies.Company, 0, len(s.byID))
	for _, c := range s.byID {
		copied := *c
		result = append(result, &copied)
	}
	return result, nil
}

func (s *stubCompanyService) ListSubscribed(ctx context.Context) ([]*companies.Company, error) {
	all, _ := s.ListCompanies(ctx)
	result := make([]*companies.Company, 0)
	for _, c := range all {
		if c.StripeSubscriptionID != "" {
			result = append(result, c)
		}
	}
	return result, nil
}

func (s *stubCompanyService) SetPlanStatus(_ context.Context, id int64, isActive bool, status companies.PlanStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	company, ok := s.byID[id]
	if !ok {
		return companies.ErrCompanyNotFound
	}
	company.IsActive = isActive
	company.PlanStatus = status
	return nil
}

func (s *stubCompanyService) SetSubscriptionRef(_ context.Context, id int64, customerID, subscriptionID, planID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	company, ok := s.byID[id]
	if !ok {
		return companies.ErrCompanyNotFound
	}
	company.StripeCustomerID = customerID
	company.StripeSubscriptionID = subscriptionID
	company.PlanID = planID
	return nil
}

func (s *stubCompanyService) UpdateExternalSnapshot(_ context.Context, id int64, snap *companies.ExternalSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	company, ok := s.byID[id]
	if !ok {
		return companies.ErrCompanyNotFound
	}
	company.ExternalStatus = snap.Status
	return nil
}

// stubPlanService is an in-memory plans.Service
type stubPlanService struct {
	plans map[string]*plans.Plan
}

func newStubPlanService() *stubPlanService {
	annual := decimal.NewFromInt(990)
	return &stubPlanService{plans: map[string]*plans.Plan{
		"team": {
			ID:            "team",
			Name:          "Team",
			Price:         decimal.NewFromInt(99),
			AnnualPrice:   &annual,
			StripePriceID: "price_team",
			Active:        true,
		},
	}}
}

func (s *stubPlanService) GetPlan(_ context.Context, id string) (*plans.Plan, error) {
	p, ok := s.plans[id]
	if !ok {
		return nil, plans.ErrPlanNotFound
	}
	copied := *p
	return &copied, nil
}

func (s *stubPlanService) ListPlans(context.Context) ([]*plans.Plan, error) {
	result := make([]*plans.Plan, 0, len(s.plans))
	for _, p := range s.plans {
		copied := *p
		result = append(result, &copied)
	}
	return result, nil
}

func (s *stubPlanService) UpdateStripePriceID(_ context.Context, id, priceID string, annual bool) error {
	if !plans.ValidStripePriceID(priceID) {
		return plans.ErrInvalidPriceID
	}
	p, ok := s.plans[id]
	if !ok {
		return plans.ErrPlanNotFound
	}
	if annual {
		p.StripeAnnualPriceID = priceID
	} else {
		p.StripePriceID = priceID
	}
	return nil
}

type serverFixture struct {
	server    *Server
	companies *stubCompanyService
	mock      sqlmock.Sqlmock
}

func newServerFixture(t *testing.T, processor billing.ProcessorClient) *serverFixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	metrics := observability.NewMetrics(nil)

	companyService := newStubCompanyService(&companies.Company{
		ID:         1,
		Name:       "Clinic One",
		IsActive:   true,
		PlanStatus: companies.PlanStatusActive,
	})
	planService := newStubPlanService()
	intents := billing.NewIntentStore(db)

	gate := billing.NewAccessGate(companyService, metrics)
	orchestrator := billing.NewOrchestrator(companyService, planService, intents, processor, nil, logger, metrics)
	harness := billing.NewHarness(companyService, logger, metrics)
	webhooks := billing.NewWebhookProcessor(companyService, intents, "whsec_test", logger, metrics)
	syncer := billing.NewSyncer(companyService, processor, intents, logger, metrics)

	return &serverFixture{
		server:    NewServer(companyService, planService, gate, orchestrator, harness, webhooks, syncer, logger, metrics),
		companies: companyService,
		mock:      mock,
	}
}

func (f *serverFixture) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		encoded, _ := json.Marshal(body)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	recorder := httptest.NewRecorder()
	f.server.ServeHTTP(recorder, req)
	return recorder
}

func TestHarnessEndpointsFlipAccessGate(t *testing.T) {
	f := newServerFixture(t, nil)
	companyHeader := map[string]string{middleware.CompanyIDHeader: "1"}

	resp := f.do(http.MethodGet, "/api/app/access", nil, companyHeader)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = f.do(http.MethodPost, "/api/test/simulate-payment-failure", map[string]int64{"companyId": 1}, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var resolution billing.Resolution
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &resolution))
	assert.False(t, resolution.IsActive)

	// Suspended company is blocked from the product and told where to go.
	resp = f.do(http.MethodGet, "/api/app/access", nil, companyHeader)
	require.Equal(t, http.StatusPaymentRequired, resp.Code)
	var denial map[string]string
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &denial))
	assert.Equal(t, middleware.PlansRedirectPath, denial["redirect_to"])

	// The status endpoint stays reachable while suspended.
	resp = f.do(http.MethodGet, "/api/subscription/status", nil, companyHeader)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = f.do(http.MethodPost, "/api/test/simulate-payment-success", map[string]int64{"companyId": 1}, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = f.do(http.MethodGet, "/api/app/access", nil, companyHeader)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestGatedRouteRequiresCompanyHeader(t *testing.T) {
	f := newServerFixture(t, nil)

	resp := f.do(http.MethodGet, "/api/app/access", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestUpgradeValidationErrors(t *testing.T) {
	f := newServerFixture(t, nil)

	t.Run("missing plan", func(t *testing.T) {
		resp := f.do(http.MethodPost, "/api/subscription/upgrade",
			map[string]any{"companyId": 1}, nil)
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("bad billing period", func(t *testing.T) {
		resp := f.do(http.MethodPost, "/api/subscription/upgrade",
			map[string]any{"companyId": 1, "planId": "team", "billingPeriod": "weekly"}, nil)
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("unsupported installment count", func(t *testing.T) {
		resp := f.do(http.MethodPost, "/api/subscription/upgrade",
			map[string]any{"companyId": 1, "planId": "team", "billingPeriod": "annual", "installments": 7}, nil)
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("unknown plan", func(t *testing.T) {
		resp := f.do(http.MethodPost, "/api/subscription/upgrade",
			map[string]any{"companyId": 1, "planId": "enterprise"}, nil)
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})
}

func TestUpgradeDemoMode(t *testing.T) {
	f := newServerFixture(t, nil)
	f.mock.ExpectQuery("SELECT id, company_id, plan_id").
		WillReturnError(sql.ErrNoRows)

	resp := f.do(http.MethodPost, "/api/subscription/upgrade",
		map[string]any{"companyId": 1, "planId": "team", "billingPeriod": "monthly"}, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var result billing.SubscriptionIntentResult
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	assert.Equal(t, billing.KindDemoMode, result.Kind)
	assert.True(t, result.DemoMode)
}

func TestCreateSubscriptionAliasUsesHeaderCompany(t *testing.T) {
	f := newServerFixture(t, nil)
	f.mock.ExpectQuery("SELECT id, company_id, plan_id").
		WillReturnError(sql.ErrNoRows)

	resp := f.do(http.MethodPost, "/api/create-subscription",
		map[string]any{"planId": "team"},
		map[string]string{middleware.CompanyIDHeader: "1"})
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestSubscriptionStatusRequiresIdentity(t *testing.T) {
	f := newServerFixture(t, nil)

	resp := f.do(http.MethodGet, "/api/subscription/status", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	f := newServerFixture(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/billing/webhook",
		bytes.NewReader([]byte(`{"id":"evt_1","type":"invoice.paid","data":{"object":{}}}`)))
	req.Header.Set("Stripe-Signature", "bogus")
	recorder := httptest.NewRecorder()
	f.server.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestPlanEndpoints(t *testing.T) {
	f := newServerFixture(t, nil)

	resp := f.do(http.MethodGet, "/api/plans", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = f.do(http.MethodGet, "/api/plans/team", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = f.do(http.MethodGet, "/api/plans/enterprise", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = f.do(http.MethodGet, "/api/plans/team/installments", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var options map[string]billing.Installment
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &options))
	assert.Len(t, options, 7)
}

func TestAdminUpdatePlanStripePrice(t *testing.T) {
	f := newServerFixture(t, nil)

	t.Run("rejects malformed reference", func(t *testing.T) {
		resp := f.do(http.MethodPut, "/api/admin/plans/team/stripe",
			map[string]any{"stripePriceId": "abc123"}, nil)
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("accepts valid reference", func(t *testing.T) {
		resp := f.do(http.MethodPut, "/api/admin/plans/team/stripe",
			map[string]any{"stripePriceId": "price_1ABC"}, nil)
		assert.Equal(t, http.StatusOK, resp.Code)
	})

	t.Run("unknown plan", func(t *testing.T) {
		resp := f.do(http.MethodPut, "/api/admin/plans/enterprise/stripe",
			map[string]any{"stripePriceId": "price_1ABC"}, nil)
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})
}

func TestAdminCancelWithoutProcessor(t *testing.T) {
	f := newServerFixture(t, nil)

	resp := f.do(http.MethodPost, "/api/admin/stripe/subscriptions/sub_1/cancel", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCompanyEndpoints(t *testing.T) {
	f := newServerFixture(t, nil)

	resp := f.do(http.MethodPost, "/api/companies",
		map[string]any{"name": "Clinic Two", "planId": "team", "trialDays": 14}, nil)
	require.Equal(t, http.StatusCreated, resp.Code)

	var created companies.Company
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))
	assert.NotZero(t, created.ID)
	assert.NotNil(t, created.TrialEndsAt)

	resp = f.do(http.MethodGet, "/api/companies/1", nil, nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = f.do(http.MethodGet, "/api/companies/999", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = f.do(http.MethodPost, "/api/companies", map[string]any{}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestRequestIDEchoed(t *testing.T) {
	f := newServerFixture(t, nil)

	resp := f.do(http.MethodGet, "/api/plans", nil, map[string]string{middleware.RequestIDHeader: "req-42"})
	assert.Equal(t, "req-42", resp.Header().Get(middleware.RequestIDHeader))

	resp = f.do(http.MethodGet, "/api/plans", nil, nil)
	assert.NotEmpty(t, resp.Header().Get(middleware.RequestIDHeader))
}
