package billing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agendly/agendly/pkg/companies"
)

func TestAccessGateAllowsActiveCompany(t *testing.T) {
	service := newFakeCompanyService(activeCompany())
	gate := NewAccessGate(service, testMetrics())

	allowed, err := gate.CanAccess(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestAccessGateDeniesSuspendedCompany(t *testing.T) {
	service := newFakeCompanyService(suspendedCompany())
	gate := NewAccessGate(service, testMetrics())

	allowed, err := gate.CanAccess(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestAccessGateUnknownCompany(t *testing.T) {
	gate := NewAccessGate(newFakeCompanyService(), testMetrics())

	_, err := gate.CanAccess(context.Background(), 42)
	assert.ErrorIs(t, err, companies.ErrCompanyNotFound)
}

func TestAccessGateStatus(t *testing.T) {
	company := activeCompany()
	trialEnd := time.Now().Add(24 * time.Hour)
	company.TrialEndsAt = &trialEnd
	gate := NewAccessGate(newFakeCompanyService(company), testMetrics())

	resolution, err := gate.Status(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, resolution.IsActive)
	assert.Equal(t, StatusTrialing, resolution.Status)
	assert.True(t, resolution.IsOnTrial)
}

func TestHarnessAndGateRoundTrip(t *testing.T) {
	// The harness must flip the gate decision both ways with no processor
	// configured at all.
	service := newFakeCompanyService(activeCompany())
	gate := NewAccessGate(service, testMetrics())
	harness := NewHarness(service, testLogger(), testMetrics())
	ctx := context.Background()

	allowed, err := gate.CanAccess(ctx, 1)
	require.NoError(t, err)
	require.True(t, allowed)

	require.NoError(t, harness.SimulatePaymentFailure(ctx, 1))
	allowed, err = gate.CanAccess(ctx, 1)
	require.NoError(t, err)
	assert.False(t, allowed)

	require.NoError(t, harness.SimulatePaymentSuccess(ctx, 1))
	allowed, err = gate.CanAccess(ctx, 1)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestHarnessUnknownCompany(t *testing.T) {
	harness := NewHarness(newFakeCompanyService(), testLogger(), testMetrics())

	err := harness.SimulatePaymentFailure(context.Background(), 99)
	assert.ErrorIs(t, err, companies.ErrCompanyNotFound)

	err = harness.SimulatePaymentSuccess(context.Background(), 99)
	assert.ErrorIs(t, err, companies.ErrCompanyNotFound)
}
