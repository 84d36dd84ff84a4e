package billing

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIntentStore(t *testing.T) (*IntentStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewIntentStore(db), mock
}

func TestClaimPendingInsertsNewIntent(t *testing.T) {
	store, mock := newTestIntentStore(t)

	mock.ExpectQuery("INSERT INTO payment_intents").
		WithArgs("intent-1", int64(1), "team", "annual", 6, "pending").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(time.Now(), time.Now()))

	intent := &PaymentIntent{ID: "intent-1", CompanyID: 1, PlanID: "team", BillingPeriod: PeriodAnnual, Installments: 6}
	claimed, got, err := store.ClaimPending(context.Background(), intent)
	require.NoError(t, err)

	assert.True(t, claimed)
	assert.Equal(t, IntentPending, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimPendingLosesRaceReturnsExisting(t *testing.T) {
	store, mock := newTestIntentStore(t)

	// ON CONFLICT DO NOTHING yields no RETURNING row.
	mock.ExpectQuery("INSERT INTO payment_intents").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT id, company_id, plan_id").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(intentColumns()).
			AddRow("intent-0", int64(1), "solo", "monthly", 1, "pi_first", "pending", time.Now(), time.Now()))

	intent := &PaymentIntent{ID: "intent-1", CompanyID: 1, PlanID: "team", BillingPeriod: PeriodMonthly, Installments: 1}
	claimed, got, err := store.ClaimPending(context.Background(), intent)
	require.NoError(t, err)

	assert.False(t, claimed)
	assert.Equal(t, "intent-0", got.ID)
	assert.Equal(t, "pi_first", got.ClientSecret)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPendingNone(t *testing.T) {
	store, mock := newTestIntentStore(t)

	mock.ExpectQuery("SELECT id, company_id, plan_id").
		WithArgs(int64(5)).
		WillReturnError(sql.ErrNoRows)

	intent, err := store.GetPending(context.Background(), 5)
	require.NoError(t, err)
	assert.Nil(t, intent)
}

func TestExpireStale(t *testing.T) {
	store, mock := newTestIntentStore(t)

	mock.ExpectExec("UPDATE payment_intents SET status = 'expired'").
		WillReturnResult(sqlmock.NewResult(0, 3))

	expired, err := store.ExpireStale(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(3), expired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolvePendingForCompany(t *testing.T) {
	store, mock := newTestIntentStore(t)

	mock.ExpectExec("UPDATE payment_intents SET status").
		WithArgs("confirmed", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.ResolvePendingForCompany(context.Background(), 1, IntentConfirmed))
	assert.NoError(t, mock.ExpectationsWereMet())
}
