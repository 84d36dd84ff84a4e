package billing

import (
	"context"
	"io"
	"sync"

	"github.com/agendly/agendly/pkg/companies"
	"github.com/agendly/agendly/pkg/observability"
)

// fakeCompanyService is an in-memory companies.Service for tests
type fakeCompanyService struct {
	mu        sync.Mutex
	byID      map[int64]*companies.Company
	nextID    int64
	snapshots map[int64]*companies.ExternalSnapshot
}

func newFakeCompanyService(seed ...*companies.Company) *fakeCompanyService {
	s := &fakeCompanyService{
		byID:      make(map[int64]*companies.Company),
		snapshots: make(map[int64]*companies.ExternalSnapshot),
		nextID:    1,
	}
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

func (s *fakeCompanyService) CreateCompany(_ context.Context, company *companies.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	company.ID = s.nextID
	s.nextID++
	s.byID[company.ID] = company
	return nil
}

func (s *fakeCompanyService) GetCompany(_ context.Context, id int64) (*companies.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	company, ok := s.byID[id]
	if !ok {
		return nil, companies.ErrCompanyNotFound
	}
	copied := *company
	return &copied, nil
}

func (s *fakeCompanyService) ListCompanies(_ context.Context) ([]*companies.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]*companies.Company, 0, len(s.byID))
	for _, c := range s.byID {
		copied := *c
		result = append(result, &copied)
	}
	return result, nil
}

func (s *fakeCompanyService) ListSubscribed(ctx context.Context) ([]*companies.Company, error) {
	all, err := s.ListCompanies(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]*companies.Company, 0, len(all))
	for _, c := range all {
		if c.StripeSubscriptionID != "" {
			result = append(result, c)
		}
	}
	return result, nil
}

func (s *fakeCompanyService) SetPlanStatus(_ context.Context, id int64, isActive bool, status companies.PlanStatus) error {
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

func (s *fakeCompanyService) SetSubscriptionRef(_ context.Context, id int64, customerID, subscriptionID, planID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	company, ok := s.byID[id]
	if !ok {
		return companies.ErrCompanyNotFound
	}
	company.StripeCustomerID = customerID
	company.StripeSubscriptionID = subscriptionID
	if planID != "" {
		company.PlanID = planID
	}
	return nil
}

func (s *fakeCompanyService) UpdateExternalSnapshot(_ context.Context, id int64, snap *companies.ExternalSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	company, ok := s.byID[id]
	if !ok {
		return companies.ErrCompanyNotFound
	}
	s.snapshots[id] = snap
	company.ExternalStatus = snap.Status
	company.CancelAtPeriodEnd = snap.CancelAtPeriodEnd
	return nil
}

// fakeProcessor is a scripted ProcessorClient
type fakeProcessor struct {
	mu                  sync.Mutex
	customerID          string
	clientSecret        string
	subscription        *ExternalSubscription
	err                 error
	createdCustomers    int
	createdSubs         int
	lastMetadata        map[string]string
	cancelAtPeriodEnd   *bool
	getSubscriptionHits int
}

func (p *fakeProcessor) CreateCustomer(context.Context, string, int64) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.createdCustomers++
	return p.customerID, nil
}

func (p *fakeProcessor) CreateSubscription(_ context.Context, _, _ string, metadata map[string]string) (*ExternalSubscription, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, "", p.err
	}
	p.createdSubs++
	p.lastMetadata = metadata
	return p.subscription, p.clientSecret, nil
}

func (p *fakeProcessor) GetSubscription(context.Context, string) (*ExternalSubscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.getSubscriptionHits++
	return p.subscription, nil
}

func (p *fakeProcessor) SetCancelAtPeriodEnd(_ context.Context, _ string, cancel bool) (*ExternalSubscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.cancelAtPeriodEnd = &cancel
	sub := *p.subscription
	sub.CancelAtPeriodEnd = cancel
	return &sub, nil
}

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func testMetrics() *observability.Metrics {
	return observability.NewMetrics(nil)
}
