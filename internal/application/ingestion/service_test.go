package ingestion

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/TRAXX-Intelligence/internal/domain/fleet"
	"github.com/turtacn/TRAXX-Intelligence/internal/testutil"
	"github.com/turtacn/TRAXX-Intelligence/pkg/errors"
)

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishAlerts(ctx context.Context, alerts []fleet.Alert) error {
	return m.Called(ctx, alerts).Error(0)
}

type reconcileSpy struct {
	versions []uint64
}

func (r *reconcileSpy) Reconcile(snap *fleet.Snapshot) {
	r.versions = append(r.versions, snap.Version())
}

type countRecorder struct {
	mu       sync.Mutex
	ingested map[string]int
	raised   int
}

func (r *countRecorder) RecordIngested(source string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ingested == nil {
		r.ingested = make(map[string]int)
	}
	r.ingested[source] += n
}

func (r *countRecorder) RecordAlertsRaised(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.raised += n
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("alt-%d", n)
	}
}

func newService(store *fleet.Store, opts ...Option) *Service {
	opts = append([]Option{
		WithClock(testutil.NewFakeClock(testutil.Epoch)),
		WithIDGenerator(sequentialIDs()),
	}, opts...)
	return NewService(store, testutil.NewMockLogger(), opts...)
}

func healthy(id, facility string) RawTracker {
	exp := testutil.Epoch.Add(72 * time.Hour)
	return RawTracker{ID: id, BatteryPct: intp(90), Phase: "at_facility", FacilityID: facility, ExpectedReturn: &exp}
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

func TestLoad_ReplacesAndDerivesAlerts(t *testing.T) {
	store := fleet.NewStore()
	spy := &reconcileSpy{}
	rec := &countRecorder{}
	svc := newService(store, WithReconciler(spy), WithRecorder(rec))

	low := healthy("t-low", "f-1")
	low.BatteryPct = intp(9)
	ds := Dataset{
		Facilities: []RawFacility{{ID: "f-1", Name: "Mercy"}, {ID: ""}},
		Trackers:   []RawTracker{healthy("t-ok", "f-1"), low, {ID: ""}},
		Alerts: []RawAlert{
			{ID: "a-old", TrackerID: "t-ok", Type: "generic", Severity: "info"},
			{ID: "a-ghost", TrackerID: "t-missing"},
		},
	}

	snap, rep, err := svc.Load(context.Background(), "fixture", ds)
	require.NoError(t, err)

	assert.Equal(t, LoadReport{Trackers: 2, Facilities: 1, Alerts: 2, Derived: 1, Skipped: 3}, rep)
	assert.Equal(t, uint64(1), snap.Version())
	assert.Equal(t, 2, snap.AssetCount("f-1"))

	derived, ok := snap.Alert("alt-1")
	require.True(t, ok)
	assert.Equal(t, "t-low", derived.TrackerID)
	assert.Equal(t, fleet.AlertLowBattery, derived.Type)
	assert.Equal(t, fleet.SeverityCritical, derived.Severity)
	assert.Equal(t, "f-1", derived.FacilityID)
	assert.Equal(t, testutil.Epoch, derived.CreatedAt)

	assert.Equal(t, []uint64{1}, spy.versions)
	assert.Equal(t, 7, rec.ingested["fixture"])
}

func TestLoad_ExistingOpenAlertSuppressesDerivation(t *testing.T) {
	store := fleet.NewStore()
	svc := newService(store)

	low := healthy("t-1", "")
	low.BatteryPct = intp(20)
	ds := Dataset{
		Trackers: []RawTracker{low},
		Alerts:   []RawAlert{{ID: "a-1", TrackerID: "t-1", Type: "low_battery", Severity: "warning"}},
	}
	_, rep, err := svc.Load(context.Background(), "fixture", ds)
	require.NoError(t, err)
	assert.Zero(t, rep.Derived)
}

func TestLoad_DuplicateIDsLastWins(t *testing.T) {
	store := fleet.NewStore()
	svc := newService(store)

	first, second := healthy("t-1", ""), healthy("t-1", "")
	second.Name = "Second"
	snap, rep, err := svc.Load(context.Background(), "fixture", Dataset{Trackers: []RawTracker{first, second}})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Trackers)
	tr, _ := snap.Tracker("t-1")
	assert.Equal(t, "Second", tr.Name)
}

func TestLoad_CancelledContext(t *testing.T) {
	svc := newService(fleet.NewStore())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := svc.Load(ctx, "fixture", Dataset{})
	assert.ErrorIs(t, err, context.Canceled)
}

// ---------------------------------------------------------------------------
// Scan events
// ---------------------------------------------------------------------------

func TestApplyScans_RaisesOncePerOpenCondition(t *testing.T) {
	store := fleet.NewStore()
	pub := &mockPublisher{}
	rec := &countRecorder{}
	svc := newService(store, WithPublisher(pub), WithRecorder(rec))
	_, _, err := svc.Load(context.Background(), "generator", Dataset{Trackers: []RawTracker{healthy("t-1", "f-1")}})
	require.NoError(t, err)

	pub.On("PublishAlerts", mock.Anything, mock.MatchedBy(func(a []fleet.Alert) bool {
		return len(a) == 1 && a[0].Type == fleet.AlertLowBattery
	})).Return(nil).Once()

	rep, err := svc.ApplyScans(context.Background(), "kafka", []ScanEvent{
		{TrackerID: "t-1", At: testutil.Epoch, BatteryPct: intp(25)},
		{TrackerID: "t-1", At: testutil.Epoch, BatteryPct: intp(10)},
		{TrackerID: "t-404", At: testutil.Epoch, BatteryPct: intp(1)},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Applied)
	assert.Equal(t, []string{"t-404"}, rep.Unknown)
	require.Len(t, rep.Raised, 1)
	assert.Equal(t, fleet.SeverityCritical, rep.Raised[0].Severity)
	assert.Equal(t, uint64(2), rep.Version)

	tr, _ := store.Snapshot().Tracker("t-1")
	assert.Equal(t, 10, tr.BatteryPct)

	// still low: the open alert covers it
	rep, err = svc.ApplyScans(context.Background(), "kafka", []ScanEvent{{TrackerID: "t-1", BatteryPct: intp(5)}})
	require.NoError(t, err)
	assert.Empty(t, rep.Raised)

	pub.AssertExpectations(t)
	assert.Equal(t, 1, rec.raised)
	assert.Equal(t, 4, rec.ingested["kafka"])
}

func TestApplyScans_ResolvedAlertAllowsNewOne(t *testing.T) {
	store := fleet.NewStore()
	svc := newService(store)
	low := healthy("t-1", "")
	low.BatteryPct = intp(10)
	_, _, err := svc.Load(context.Background(), "fixture", Dataset{Trackers: []RawTracker{low}})
	require.NoError(t, err)

	_, err = svc.ResolveAlert(context.Background(), "alt-1")
	require.NoError(t, err)

	rep, err := svc.ApplyScans(context.Background(), "mqtt", []ScanEvent{{TrackerID: "t-1", BatteryPct: intp(8)}})
	require.NoError(t, err)
	require.Len(t, rep.Raised, 1)
	assert.Equal(t, "alt-2", rep.Raised[0].ID)
	assert.Len(t, store.Snapshot().Alerts(), 2)
}

func TestApplyScans_EscalatesOpenAlert(t *testing.T) {
	store := fleet.NewStore()
	pub := &mockPublisher{}
	svc := newService(store, WithPublisher(pub))
	low := healthy("t-1", "f-1")
	low.BatteryPct = intp(25)
	_, rep, err := svc.Load(context.Background(), "fixture", Dataset{Trackers: []RawTracker{low}})
	require.NoError(t, err)
	require.Equal(t, 1, rep.Derived)

	pub.On("PublishAlerts", mock.Anything, mock.MatchedBy(func(a []fleet.Alert) bool {
		return len(a) == 1 && a[0].Severity == fleet.SeverityCritical
	})).Return(nil).Once()

	scan, err := svc.ApplyScans(context.Background(), "kafka", []ScanEvent{{TrackerID: "t-1", BatteryPct: intp(5)}})
	require.NoError(t, err)
	require.Len(t, scan.Raised, 1)
	assert.Equal(t, "alt-2", scan.Raised[0].ID)
	assert.Equal(t, fleet.AlertLowBattery, scan.Raised[0].Type)
	assert.Equal(t, fleet.SeverityCritical, scan.Raised[0].Severity)

	snap := store.Snapshot()
	warning, ok := snap.Alert("alt-1")
	require.True(t, ok)
	assert.True(t, warning.Resolved)
	assert.NotNil(t, warning.ResolvedAt)

	open := snap.OpenAlerts()
	require.Len(t, open, 1)
	assert.Equal(t, fleet.SeverityCritical, open[0].Severity)

	// recovering to warning keeps the critical alert open
	scan, err = svc.ApplyScans(context.Background(), "kafka", []ScanEvent{{TrackerID: "t-1", BatteryPct: intp(20)}})
	require.NoError(t, err)
	assert.Empty(t, scan.Raised)
	pub.AssertExpectations(t)
}

func TestApplyScans_EscalatesOverdueAtSevenDays(t *testing.T) {
	clk := testutil.NewFakeClock(testutil.Epoch)
	store := fleet.NewStore()
	svc := newService(store, WithClock(clk))
	late := healthy("t-1", "")
	late.Phase = "in_transit"
	late.ExpectedReturn = timep(testutil.Epoch.Add(-2 * 24 * time.Hour))
	snap, _, err := svc.Load(context.Background(), "fixture", Dataset{Trackers: []RawTracker{late}})
	require.NoError(t, err)
	require.Len(t, snap.OpenAlerts(), 1)
	assert.Equal(t, fleet.SeverityWarning, snap.OpenAlerts()[0].Severity)

	clk.Advance(5 * 24 * time.Hour)
	rep, err := svc.ApplyScans(context.Background(), "mqtt", []ScanEvent{{TrackerID: "t-1", At: clk.Now()}})
	require.NoError(t, err)
	require.Len(t, rep.Raised, 1)
	assert.Equal(t, fleet.AlertOverdueReturn, rep.Raised[0].Type)
	assert.Equal(t, fleet.SeverityCritical, rep.Raised[0].Severity)
	assert.Len(t, store.Snapshot().OpenAlerts(), 1)
}

func TestLoad_RawAlertSeverityFollowsThresholds(t *testing.T) {
	store := fleet.NewStore()
	svc := newService(store)
	low := healthy("t-1", "")
	low.BatteryPct = intp(5)
	snap, rep, err := svc.Load(context.Background(), "fixture", Dataset{
		Trackers: []RawTracker{low},
		Alerts:   []RawAlert{{ID: "a-1", TrackerID: "t-1", Type: "low_battery", Severity: "info"}},
	})
	require.NoError(t, err)
	assert.Zero(t, rep.Derived)
	a, ok := snap.Alert("a-1")
	require.True(t, ok)
	assert.Equal(t, fleet.SeverityCritical, a.Severity)
}

func TestApplyScans_PublisherFailureKeepsAlerts(t *testing.T) {
	store := fleet.NewStore()
	pub := &mockPublisher{}
	pub.On("PublishAlerts", mock.Anything, mock.Anything).Return(errors.New(errors.ErrCodeMessagingError, "broker down"))
	svc := newService(store, WithPublisher(pub))
	_, _, err := svc.Load(context.Background(), "fixture", Dataset{Trackers: []RawTracker{healthy("t-1", "")}})
	require.NoError(t, err)

	rep, err := svc.ApplyScans(context.Background(), "kafka", []ScanEvent{{TrackerID: "t-1", Drop: &fleet.DropEvent{ForceG: 3}, SterilizationCycles: intp(505)}})
	require.NoError(t, err)
	require.Len(t, rep.Raised, 1)
	assert.Equal(t, fleet.AlertHighCycleCount, rep.Raised[0].Type)
	assert.Len(t, store.Snapshot().OpenAlerts(), 1)
}

func TestApplyScans_EmptyBatchNoVersionBump(t *testing.T) {
	store := fleet.NewStore()
	svc := newService(store)
	rep, err := svc.ApplyScans(context.Background(), "kafka", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), rep.Version)
	assert.Equal(t, uint64(0), store.Version())
}

func TestApplyScans_RetiredRaisesNothing(t *testing.T) {
	store := fleet.NewStore()
	svc := newService(store)
	retired := healthy("t-1", "")
	retired.Retired = true
	_, _, err := svc.Load(context.Background(), "fixture", Dataset{Trackers: []RawTracker{retired}})
	require.NoError(t, err)

	rep, err := svc.ApplyScans(context.Background(), "kafka", []ScanEvent{{TrackerID: "t-1", BatteryPct: intp(1)}})
	require.NoError(t, err)
	assert.Empty(t, rep.Raised)
}

// ---------------------------------------------------------------------------
// Alert lifecycle
// ---------------------------------------------------------------------------

func TestAlertLifecycle(t *testing.T) {
	store := fleet.NewStore()
	spy := &reconcileSpy{}
	svc := newService(store, WithReconciler(spy))
	low := healthy("t-1", "")
	low.BatteryPct = intp(10)
	_, _, err := svc.Load(context.Background(), "fixture", Dataset{Trackers: []RawTracker{low}})
	require.NoError(t, err)
	ctx := context.Background()

	a, err := svc.AcknowledgeAlert(ctx, "alt-1")
	require.NoError(t, err)
	assert.True(t, a.Acknowledged)
	assert.True(t, a.Open())
	v := store.Version()

	// second acknowledgement changes nothing
	_, err = svc.AcknowledgeAlert(ctx, "alt-1")
	require.NoError(t, err)
	assert.Equal(t, v, store.Version())

	a, err = svc.ResolveAlert(ctx, "alt-1")
	require.NoError(t, err)
	assert.False(t, a.Open())
	require.NotNil(t, a.ResolvedAt)

	_, err = svc.ResolveAlert(ctx, "alt-1")
	assert.True(t, errors.IsCode(err, errors.ErrCodeAlertAlreadyClosed))
	_, err = svc.AcknowledgeAlert(ctx, "alt-1")
	assert.True(t, errors.IsCode(err, errors.ErrCodeAlertAlreadyClosed))

	_, err = svc.AcknowledgeAlert(ctx, "nope")
	assert.True(t, errors.IsCode(err, errors.ErrCodeAlertNotFound))

	// never deleted
	stored, ok := store.Snapshot().Alert("alt-1")
	require.True(t, ok)
	assert.True(t, stored.Resolved)
	assert.Equal(t, []uint64{1, 2, 3}, spy.versions)
}

//Personal.AI order the ending
