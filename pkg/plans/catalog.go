package plans

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/agendly/agendly/pkg/observability"
)

// Catalog is the in-memory plan registry. Reads are immutable-per-request:
// callers get copies, so a concurrent reload never mutates a plan a request
// already holds.
type Catalog struct {
	mu    sync.RWMutex
	plans map[string]Plan
	order []string
}

// NewCatalog creates a catalog seeded with the default plans
func NewCatalog() *Catalog {
	c := &Catalog{plans: make(map[string]Plan)}
	c.replace(DefaultPlans())
	return c
}

// DefaultPlans returns the built-in plan definitions
func DefaultPlans() []Plan {
	annualSolo := decimal.NewFromInt(490)
	annualTeam := decimal.NewFromInt(990)
	annualClinic := decimal.NewFromInt(1990)
	return []Plan{
		{
			ID:               "solo",
			Name:             "Solo",
			Price:            decimal.NewFromInt(49),
			AnnualPrice:      &annualSolo,
			MaxProfessionals: 1,
			Permissions:      []FeatureFlag{FeatureScheduling, FeatureOnlineBooking},
			Active:           true,
		},
		{
			ID:               "team",
			Name:             "Team",
			Price:            decimal.NewFromInt(99),
			AnnualPrice:      &annualTeam,
			MaxProfessionals: 5,
			Permissions: []FeatureFlag{
				FeatureScheduling, FeatureOnlineBooking, FeatureReminders,
			},
			Active: true,
		},
		{
			ID:               "clinic",
			Name:             "Clinic",
			Price:            decimal.NewFromInt(199),
			AnnualPrice:      &annualClinic,
			MaxProfessionals: 20,
			Permissions: []FeatureFlag{
				FeatureScheduling, FeatureOnlineBooking, FeatureReminders,
				FeatureFinancialReports, FeatureMultiUnit,
			},
			Active: true,
		},
	}
}

func (c *Catalog) replace(plans []Plan) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plans = make(map[string]Plan, len(plans))
	c.order = c.order[:0]
	for _, p := range plans {
		c.plans[p.ID] = p
		c.order = append(c.order, p.ID)
	}
}

// Get returns a copy of the plan with the given id
func (c *Catalog) Get(id string) (Plan, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.plans[id]
	return p, ok
}

// List returns copies of all plans in definition order
func (c *Catalog) List() []Plan {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Plan, 0, len(c.order))
	for _, id := range c.order {
		result = append(result, c.plans[id])
	}
	return result
}

// catalogFile is the YAML shape of a plan catalog file
type catalogFile struct {
	Plans []Plan `yaml:"plans"`
}

// LoadFromFile replaces the catalog contents from a YAML file
func (c *Catalog) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read catalog file: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse catalog file: %w", err)
	}
	if len(file.Plans) == 0 {
		return fmt.Errorf("catalog file %s defines no plans", path)
	}
	for _, p := range file.Plans {
		if p.ID == "" {
			return fmt.Errorf("catalog file %s contains a plan without an id", path)
		}
	}

	c.replace(file.Plans)
	return nil
}

// Watch reloads the catalog whenever the file changes, until the context is
// canceled. Reload errors keep the previous catalog and are logged.
func (c *Catalog) Watch(ctx context.Context, path string, logger *observability.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create catalog watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch catalog file: %w", err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := c.LoadFromFile(path); err != nil {
					logger.WithError(err).Warn("catalog reload failed, keeping previous plans")
					continue
				}
				logger.WithField("path", path).Info("plan catalog reloaded")
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.WithError(err).Warn("catalog watcher error")
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}
