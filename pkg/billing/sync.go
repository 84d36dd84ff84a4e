package billing

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/errgroup"

	"github.com/agendly/agendly/pkg/companies"
	"github.com/agendly/agendly/pkg/observability"
)

// staleIntentMaxAge is how long a pending intent may sit unconfirmed before
// the sweep marks it expired
const staleIntentMaxAge = 24 * time.Hour

// Syncer periodically pulls processor-reported subscription state into the
// local informational snapshot so the access gate and the admin view never
// call the processor on a request path. Processor reads go through a small
// TTL cache because the admin view is polled every 30 seconds.
type Syncer struct {
	companies   companies.Service
	processor   ProcessorClient
	intents     *IntentStore
	cache       *expirable.LRU[string, *ExternalSubscription]
	logger      *observability.Logger
	metrics     *observability.Metrics
	concurrency int
}

// NewSyncer creates a syncer. A nil processor turns SyncAll into a no-op
// apart from the stale intent sweep (demo mode has nothing to pull).
func NewSyncer(companyService companies.Service, processor ProcessorClient, intents *IntentStore, logger *observability.Logger, metrics *observability.Metrics) *Syncer {
	return &Syncer{
		companies:   companyService,
		processor:   processor,
		intents:     intents,
		cache:       expirable.NewLRU[string, *ExternalSubscription](512, nil, 10*time.Second),
		logger:      logger,
		metrics:     metrics,
		concurrency: 8,
	}
}

// SyncAll refreshes the external snapshot of every subscribed company and
// sweeps stale pending intents. Individual company failures are logged and
// do not abort the pass.
func (s *Syncer) SyncAll(ctx context.Context) error {
	start := time.Now()

	if expired, err := s.intents.ExpireStale(ctx, staleIntentMaxAge); err != nil {
		s.logger.WithError(err).Error("stale intent sweep failed")
	} else if expired > 0 {
		s.logger.WithField("expired", expired).Info("expired stale payment intents")
	}

	if s.processor == nil {
		return nil
	}

	subscribed, err := s.companies.ListSubscribed(ctx)
	if err != nil {
		s.metrics.SyncRunsTotal.WithLabelValues("error").Inc()
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.concurrency)
	for _, company := range subscribed {
		company := company
		group.Go(func() error {
			if err := s.syncCompany(groupCtx, company); err != nil {
				s.logger.WithError(err).WithField("company_id", company.ID).Warn("company sync failed")
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		s.metrics.SyncRunsTotal.WithLabelValues("error").Inc()
		return err
	}

	s.metrics.SyncRunsTotal.WithLabelValues("ok").Inc()
	s.metrics.SyncDuration.Observe(time.Since(start).Seconds())
	s.metrics.SyncedCompanies.Set(float64(len(subscribed)))
	return nil
}

func (s *Syncer) syncCompany(ctx context.Context, company *companies.Company) error {
	external, err := s.FetchExternal(ctx, company.StripeSubscriptionID)
	if err != nil {
		return err
	}
	return s.companies.UpdateExternalSnapshot(ctx, company.ID, snapshotFromExternal(external))
}

// FetchExternal returns the processor subscription state, served from the
// TTL cache when fresh
func (s *Syncer) FetchExternal(ctx context.Context, subscriptionID string) (*ExternalSubscription, error) {
	if cached, ok := s.cache.Get(subscriptionID); ok {
		return cached, nil
	}
	external, err := s.processor.GetSubscription(ctx, subscriptionID)
	if err != nil {
		if procErr, ok := err.(*ProcessorError); ok {
			s.metrics.ProcessorErrorsTotal.WithLabelValues(procErr.Code).Inc()
		}
		return nil, err
	}
	s.cache.Add(subscriptionID, external)
	return external, nil
}

// MergedSubscription is the per-company merged local and external view for
// admin monitoring
type MergedSubscription struct {
	Company    *companies.Company    `json:"company"`
	External   *ExternalSubscription `json:"external,omitempty"`
	Resolution Resolution            `json:"resolution"`
}

// MergedView returns the merged view for every subscribed company. A
// processor failure for one company degrades that entry to local-only
// rather than failing the whole view.
func (s *Syncer) MergedView(ctx context.Context) ([]*MergedSubscription, error) {
	subscribed, err := s.companies.ListSubscribed(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*MergedSubscription, 0, len(subscribed))
	for _, company := range subscribed {
		entry := &MergedSubscription{Company: company}

		externalStatus := company.ExternalStatus
		if s.processor != nil {
			if external, err := s.FetchExternal(ctx, company.StripeSubscriptionID); err == nil {
				entry.External = external
				externalStatus = external.Status
			} else {
				s.logger.WithError(err).WithField("company_id", company.ID).Warn("external fetch failed, serving local snapshot")
			}
		}

		entry.Resolution = Resolve(company, externalStatus)
		result = append(result, entry)
	}
	return result, nil
}

func snapshotFromExternal(external *ExternalSubscription) *companies.ExternalSnapshot {
	snap := &companies.ExternalSnapshot{
		SubscriptionID:    external.ID,
		Status:            external.Status,
		CancelAtPeriodEnd: external.CancelAtPeriodEnd,
	}
	if !external.CurrentPeriodStart.IsZero() {
		start := external.CurrentPeriodStart
		snap.CurrentPeriodStart = &start
	}
	if !external.CurrentPeriodEnd.IsZero() {
		end := external.CurrentPeriodEnd
		snap.CurrentPeriodEnd = &end
	}
	if external.LatestInvoice != nil {
		snap.LatestInvoiceID = external.LatestInvoice.ID
		snap.LatestInvoiceState = external.LatestInvoice.Status
		snap.LatestInvoiceTotal = external.LatestInvoice.Total
		snap.LatestInvoicePaid = external.LatestInvoice.Paid
	}
	return snap
}
