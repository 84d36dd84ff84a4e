package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/agendly/agendly/pkg/companies"
)

func activeCompany() *companies.Company {
	return &companies.Company{
		ID:         1,
		Name:       "Clinic One",
		IsActive:   true,
		PlanStatus: companies.PlanStatusActive,
	}
}

func suspendedCompany() *companies.Company {
	return &companies.Company{
		ID:         1,
		Name:       "Clinic One",
		IsActive:   false,
		PlanStatus: companies.PlanStatusSuspended,
	}
}

func TestResolveLocalStateOnly(t *testing.T) {
	now := time.Now()

	t.Run("active company with no external state", func(t *testing.T) {
		r := resolveAt(activeCompany(), "", now)
		assert.True(t, r.IsActive)
		assert.Equal(t, StatusActive, r.Status)
		assert.False(t, r.IsOnTrial)
	})

	t.Run("suspended company with no external state", func(t *testing.T) {
		r := resolveAt(suspendedCompany(), "", now)
		assert.False(t, r.IsActive)
		assert.Equal(t, StatusUnpaid, r.Status)
	})

	t.Run("trial still running", func(t *testing.T) {
		company := activeCompany()
		trialEnd := now.Add(48 * time.Hour)
		company.TrialEndsAt = &trialEnd

		r := resolveAt(company, "", now)
		assert.True(t, r.IsActive)
		assert.Equal(t, StatusTrialing, r.Status)
		assert.True(t, r.IsOnTrial)
	})

	t.Run("trial expired falls back to active", func(t *testing.T) {
		company := activeCompany()
		trialEnd := now.Add(-time.Hour)
		company.TrialEndsAt = &trialEnd

		r := resolveAt(company, "", now)
		assert.True(t, r.IsActive)
		assert.Equal(t, StatusActive, r.Status)
		assert.False(t, r.IsOnTrial)
	})
}

func TestResolveLocalSuspensionOverridesExternal(t *testing.T) {
	// A locally suspended company is denied no matter what the processor
	// reports. This is what makes the test harness work with no processor.
	now := time.Now()
	for _, external := range []string{"", "active", "trialing", "past_due", "unpaid", "canceled", "incomplete", "nonsense"} {
		t.Run("external "+external, func(t *testing.T) {
			r := resolveAt(suspendedCompany(), external, now)
			assert.False(t, r.IsActive)
		})
	}
}

func TestResolveExternalStatuses(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		external string
		active   bool
		status   NormalizedStatus
	}{
		{"active", "active", true, StatusActive},
		{"trialing", "trialing", true, StatusTrialing},
		{"past due is a grace period", "past_due", true, StatusPastDue},
		{"unpaid is a grace period", "unpaid", true, StatusPastDue},
		{"canceled", "canceled", false, StatusCanceled},
		{"canceled british spelling", "cancelled", false, StatusCanceled},
		{"incomplete", "incomplete", false, StatusIncomplete},
		{"incomplete expired", "incomplete_expired", false, StatusIncompleteExpired},
		{"unknown falls back to local", "something_new", true, StatusActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := resolveAt(activeCompany(), tt.external, now)
			assert.Equal(t, tt.active, r.IsActive)
			assert.Equal(t, tt.status, r.Status)
		})
	}
}

func TestResolveSuspensionEscalatesGracePeriod(t *testing.T) {
	// past_due stays permitted only while the company is locally active;
	// a suspension escalates it to unpaid, which denies.
	now := time.Now()

	r := resolveAt(activeCompany(), "past_due", now)
	assert.True(t, r.IsActive)
	assert.Equal(t, StatusPastDue, r.Status)

	r = resolveAt(suspendedCompany(), "past_due", now)
	assert.False(t, r.IsActive)
	assert.Equal(t, StatusUnpaid, r.Status)
}

func TestResolveInactiveFlagAloneSuspends(t *testing.T) {
	// is_active=false denies even when plan_status still says active.
	company := activeCompany()
	company.IsActive = false

	r := resolveAt(company, "active", time.Now())
	assert.False(t, r.IsActive)
	assert.Equal(t, StatusUnpaid, r.Status)
}
