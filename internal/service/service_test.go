package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"posdoctor/internal/cache"
	"posdoctor/internal/domain"
	"posdoctor/internal/reconcile"
	"posdoctor/internal/store"
	"posdoctor/internal/store/memory"
)

var fixedNow = time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)

func corruptedValues() map[string][]byte {
	return map[string][]byte{
		domain.KeyShifts: []byte(`[
			{"id":"A","status":"active","startTime":"2024-01-03T08:00:00.000Z","cashier":"rina"},
			{"id":"A","status":"completed","startTime":"2024-01-03T08:00:00.000Z"},
			{"id":"B","status":"active","startTime":"2024-01-03T09:00:00.000Z"},
			{"id":"C","status":"active","endTime":"2024-01-03T00:00:00.000Z"}
		]`),
		domain.KeyActiveShift: []byte(`{"id":"X","status":"completed"}`),
		domain.KeySales: []byte(`[
			{"id":1,"total":100,"date":"2024-01-01T10:00:00.000Z","downPayment":{"enabled":true,"amount":40,"remaining":0}},
			{"id":2,"total":"15.5","items":[{"price":"5.5","quantity":"2"}]}
		]`),
		domain.KeyProducts: []byte(`[{"sku":"TEA"}]`),
	}
}

func newTestService(st store.DocumentStore, reports cache.ReportCache, metrics *Metrics) *Service {
	svc := New(st, reports, metrics, zerolog.Nop(), Options{
		Reconcile:     reconcile.DefaultOptions(),
		AdminPassword: "reset-admin-pass",
	})
	svc.now = func() time.Time { return fixedNow }
	return svc
}

type failingStore struct {
	inner   store.DocumentStore
	loadErr error
	saveErr error
}

func (f failingStore) Load(ctx context.Context) (domain.Document, error) {
	if f.loadErr != nil {
		return domain.Document{}, f.loadErr
	}
	return f.inner.Load(ctx)
}

func (f failingStore) Save(_ context.Context, _ domain.Document) error {
	return f.saveErr
}

func TestRepairFixesAndPersists(t *testing.T) {
	st := memory.NewWithValues(corruptedValues())
	svc := newTestService(st, nil, nil)

	result, err := svc.Repair(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.Persisted)
	assert.Equal(t, 1, result.RemovedDuplicates)
	// A and C lose to B, pointer cleared.
	assert.Equal(t, 3, result.FixedShifts)
	// remainder on 1; total, price, quantity and date on 2.
	assert.Equal(t, 5, result.FixedInvoices)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 1, st.Saves())

	doc, err := st.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, doc.Shifts, 3)
	assert.Equal(t, domain.ShiftStatusEnded, doc.Shifts[0].Status)
	assert.Equal(t, domain.ShiftStatusActive, doc.Shifts[1].Status)
	assert.Equal(t, domain.ShiftStatusEnded, doc.Shifts[2].Status)
	assert.Nil(t, doc.ActiveShift)
	assert.Equal(t, `[{"sku":"TEA"}]`, string(doc.Extra[domain.KeyProducts]))

	raw, ok := st.Value(domain.KeyShifts)
	require.True(t, ok)
	assert.Contains(t, string(raw), `"cashier":"rina"`)
}

func TestRepairIsIdempotent(t *testing.T) {
	st := memory.NewWithValues(corruptedValues())
	svc := newTestService(st, nil, nil)

	_, err := svc.Repair(context.Background())
	require.NoError(t, err)
	first, _ := st.Value(domain.KeySales)

	second, err := svc.Repair(context.Background())
	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.Zero(t, second.FixedShifts)
	assert.Zero(t, second.FixedInvoices)
	assert.Zero(t, second.RemovedDuplicates)
	assert.False(t, second.Persisted)
	assert.Equal(t, 1, st.Saves())

	after, _ := st.Value(domain.KeySales)
	assert.Equal(t, first, after)
}

func TestRepairWithoutChangesDoesNotSave(t *testing.T) {
	st := memory.NewWithValues(map[string][]byte{
		domain.KeyShifts: []byte(`[{"id":"A","status":"completed","startTime":"2024-01-02T08:00:00.000Z","endTime":"2024-01-02T16:00:00.000Z"}]`),
		domain.KeySales:  []byte(`[]`),
	})
	svc := newTestService(st, nil, nil)

	result, err := svc.Repair(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.Changed())
	assert.Zero(t, st.Saves())
}

func TestRepairSurfacesPersistenceFailure(t *testing.T) {
	st := failingStore{inner: memory.NewWithValues(corruptedValues()), saveErr: errors.New("disk full")}
	reports := cache.NewMemoryReportCache()
	svc := newTestService(st, reports, nil)

	result, err := svc.Repair(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrPersistence)
	assert.Contains(t, err.Error(), "disk full")
	assert.False(t, result.Success)
	assert.False(t, result.Persisted)

	_, ok, err := svc.LastReport(context.Background())
	require.NoError(t, err)
	assert.False(t, ok, "failed passes are not cached")
}

func TestRepairLoadFailure(t *testing.T) {
	st := failingStore{loadErr: store.ErrUnavailable}
	svc := newTestService(st, nil, nil)

	result, err := svc.Repair(context.Background())
	assert.ErrorIs(t, err, store.ErrUnavailable)
	assert.False(t, result.Success)

	_, err = svc.Validate(context.Background())
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

func TestValidateIsReadOnly(t *testing.T) {
	st := memory.NewWithValues(corruptedValues())
	svc := newTestService(st, nil, nil)

	result, err := svc.Validate(context.Background())
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.Len(t, result.Violations, 9)
	assert.Equal(t, 1, result.PartialInvoices)
	assert.Equal(t, fixedNow, result.CheckedAt)
	assert.Zero(t, st.Saves())

	raw, _ := st.Value(domain.KeyActiveShift)
	assert.JSONEq(t, `{"id":"X","status":"completed"}`, string(raw))
}

func TestValidateAdvisoryOnlyIsValid(t *testing.T) {
	st := memory.NewWithValues(map[string][]byte{
		domain.KeyShifts:      []byte(`[{"id":"A","status":"ended","startTime":"2024-01-02T08:00:00.000Z","endTime":"2024-01-02T16:00:00.000Z"}]`),
		domain.KeyActiveShift: []byte(`{"id":"A","status":"active"}`),
		domain.KeySales:       []byte(`"not an array"`),
	})
	svc := newTestService(st, nil, nil)

	result, err := svc.Validate(context.Background())
	require.NoError(t, err)
	assert.True(t, result.IsValid)
	require.Len(t, result.Violations, 1)
	assert.True(t, result.Violations[0].Advisory)
	require.Len(t, result.ParseFailures, 1)
	assert.Equal(t, domain.KeySales, result.ParseFailures[0].Key)
}

func TestResetOverwritesDocument(t *testing.T) {
	st := memory.NewWithValues(corruptedValues())
	svc := newTestService(st, nil, nil)
	ctx := WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin"})

	doc, result, err := svc.Reset(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, fixedNow, result.ResetAt)
	assert.Empty(t, doc.Shifts)
	assert.Equal(t, 1, st.Saves())

	_, ok := st.Value(domain.KeyActiveShift)
	assert.False(t, ok)
	products, _ := st.Value(domain.KeyProducts)
	assert.Equal(t, `[]`, string(products))

	users, err := svc.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "admin", users[0].Username)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(users[0].Password), []byte("reset-admin-pass")))
}

func TestResetErrors(t *testing.T) {
	svc := New(memory.New(), nil, nil, zerolog.Nop(), Options{})
	_, _, err := svc.Reset(context.Background())
	assert.ErrorIs(t, err, ErrResetNotConfigured)

	failing := newTestService(failingStore{saveErr: errors.New("read-only")}, nil, nil)
	_, _, err = failing.Reset(context.Background())
	assert.ErrorIs(t, err, store.ErrPersistence)
}

func TestLastReportReturnsCachedRepair(t *testing.T) {
	reports := cache.NewMemoryReportCache()
	svc := newTestService(memory.NewWithValues(corruptedValues()), reports, nil)

	_, ok, err := svc.LastReport(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	result, err := svc.Repair(context.Background())
	require.NoError(t, err)

	last, ok, err := svc.LastReport(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, result.RunID, last.RunID)
	assert.Equal(t, result.FixedInvoices, last.FixedInvoices)
}

func TestRepairRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	svc := newTestService(memory.NewWithValues(corruptedValues()), nil, metrics)

	_, err := svc.Repair(context.Background())
	require.NoError(t, err)
	_, err = svc.Repair(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Passes.WithLabelValues(opRepair, "repaired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Passes.WithLabelValues(opRepair, "clean")))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.Fixes.WithLabelValues("shifts")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Violations.WithLabelValues(opRepair, domain.RuleDuplicateID)))
}

func TestListUsersSkipsUnreadableRecords(t *testing.T) {
	st := memory.NewWithValues(map[string][]byte{
		domain.KeyUsers: []byte(`"[{\"username\":\"kasir\",\"role\":\"cashier\"},42,{\"username\":\"admin\",\"role\":\"admin\",\"active\":false}]"`),
	})
	svc := newTestService(st, nil, nil)

	users, err := svc.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "admin", users[0].Username)
	assert.False(t, users[0].IsActive())
	assert.Equal(t, "kasir", users[1].Username)
}

func TestScheduleRepairStarts(t *testing.T) {
	svc := newTestService(memory.New(), nil, nil)

	s, err := ScheduleRepair(svc, "03:00", time.UTC)
	require.NoError(t, err)
	defer s.Stop()
	assert.True(t, s.IsRunning())
	assert.Len(t, s.Jobs(), 1)
}
