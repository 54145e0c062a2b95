package clustering

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/TRAXX-Intelligence/internal/domain/fleet"
	"github.com/turtacn/TRAXX-Intelligence/internal/testutil"
	"github.com/turtacn/TRAXX-Intelligence/pkg/errors"
	"github.com/turtacn/TRAXX-Intelligence/pkg/types/common"
)

type recorderStub struct {
	mu    sync.Mutex
	kinds []string
}

func (r *recorderStub) RecordClusterRecompute(kind string, _ time.Duration, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, kind)
}

func newEngineFixture(t *testing.T) (*Engine, *fleet.Store, *recorderStub) {
	t.Helper()
	t1 := testutil.Tracker("t-1", 40.7128, -74.0060)
	t2 := testutil.Tracker("t-2", 41.8781, -87.6298, func(tr *fleet.Tracker) { tr.Retired = true })
	f1 := testutil.Facility("f-1", 40.7128, -74.0060)
	open := testutil.Alert("a-1", t1, fleet.SeverityCritical, time.Hour)
	resolved := testutil.Alert("a-2", t1, fleet.SeverityWarning, 2*time.Hour)
	resolved.Resolved = true

	store := testutil.Store([]fleet.Tracker{t1, t2}, []fleet.Facility{f1}, []fleet.Alert{open, resolved})
	rec := &recorderStub{}
	return NewEngine(store, testutil.MapConfig(), testutil.NewMockLogger(), WithRecorder(rec)), store, rec
}

func TestEngine_MemoizesUntilViewportOrStoreChanges(t *testing.T) {
	e, store, rec := newEngineFixture(t)
	vp := worldAt(5)

	first, err := e.Clusters(common.KindTracker, vp)
	require.NoError(t, err)
	second, err := e.Clusters(common.KindTracker, vp)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, uint64(1), e.Recomputes())

	_, err = e.Clusters(common.KindTracker, worldAt(6))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), e.Recomputes())

	_, err = e.Clusters(common.KindTracker, vp)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), e.Recomputes(), "earlier viewport is still memoized")

	store.ReplaceFacilities(store.Snapshot().Facilities())
	_, err = e.Clusters(common.KindTracker, vp)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), e.Recomputes())
	assert.Equal(t, []string{"tracker", "tracker", "tracker"}, rec.kinds)
}

func TestEngine_SetParamsInvalidates(t *testing.T) {
	e, _, _ := newEngineFixture(t)
	vp := worldAt(5)
	_, err := e.Clusters(common.KindFacility, vp)
	require.NoError(t, err)

	m := e.Params()
	m.ClusterRadius.Facility = 10
	require.NoError(t, e.SetParams(m))
	assert.Equal(t, 10.0, e.Params().ClusterRadius.Facility)

	_, err = e.Clusters(common.KindFacility, vp)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), e.Recomputes())

	m.TileSize = -1
	err = e.SetParams(m)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
	assert.Equal(t, 10.0, e.Params().ClusterRadius.Facility)
}

func TestEngine_ExcludesRetiredAndResolved(t *testing.T) {
	e, _, _ := newEngineFixture(t)
	vp := worldAt(18)

	trackers, err := e.Clusters(common.KindTracker, vp)
	require.NoError(t, err)
	require.Len(t, trackers, 1)
	assert.Equal(t, "t-1", trackers[0].ID)

	alerts, err := e.Clusters(common.KindAlert, vp)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "a-1", alerts[0].ID)
	assert.True(t, alerts[0].Style.Pulsing)
}

func TestEngine_RejectsBadInput(t *testing.T) {
	e, _, _ := newEngineFixture(t)

	_, err := e.Clusters(common.KindTracker, Viewport{Bounds: common.Bounds{South: 10, North: 5}, Zoom: 3})
	assert.True(t, errors.IsCode(err, errors.ErrCodeViewportInvalid))

	_, err = e.Clusters(common.KindTracker, worldAt(42))
	assert.True(t, errors.IsCode(err, errors.ErrCodeViewportInvalid))

	_, err = e.Clusters("drone", worldAt(3))
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidEntityKind))
	assert.Equal(t, uint64(0), e.Recomputes())
}

func TestEngine_RejectsNonFiniteViewport(t *testing.T) {
	e, _, _ := newEngineFixture(t)
	nan, inf := math.NaN(), math.Inf(1)

	bad := []Viewport{
		{Bounds: common.Bounds{South: nan, West: -90, North: 43, East: -86}, Zoom: 5},
		{Bounds: common.Bounds{South: 40, West: -90, North: 43, East: nan}, Zoom: 5},
		{Bounds: common.Bounds{South: 40, West: -inf, North: 43, East: -86}, Zoom: 5},
		{Bounds: common.Bounds{South: 40, West: -90, North: 43, East: -86}, Zoom: nan},
		{Bounds: common.Bounds{South: 40, West: -90, North: 43, East: -86}, Zoom: inf},
	}
	for i := 0; i < 100; i++ {
		for _, vp := range bad {
			_, err := e.Clusters(common.KindTracker, vp)
			require.True(t, errors.IsCode(err, errors.ErrCodeViewportInvalid), "%+v", vp)
		}
	}
	assert.Equal(t, uint64(0), e.Recomputes())
	e.memoMu.Lock()
	defer e.memoMu.Unlock()
	assert.Empty(t, e.memo)
	assert.Empty(t, e.order)
}

func TestEngine_ConcurrentIdenticalRequests(t *testing.T) {
	e, _, _ := newEngineFixture(t)
	vp := worldAt(7)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Clusters(common.KindFacility, vp)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(1), e.Recomputes())
}

func TestEngine_MemoBounded(t *testing.T) {
	store := testutil.Store([]fleet.Tracker{testutil.Tracker("t-1", 1, 1)}, nil, nil)
	e := NewEngine(store, testutil.MapConfig(), nil, WithMemoSize(2))

	for _, z := range []float64{3, 4, 5} {
		_, err := e.Clusters(common.KindTracker, worldAt(z))
		require.NoError(t, err)
	}
	_, err := e.Clusters(common.KindTracker, worldAt(3))
	require.NoError(t, err)
	assert.Equal(t, uint64(4), e.Recomputes(), "oldest entry was evicted")
}

func TestViewportDebouncer_OnePerFrame(t *testing.T) {
	clock := testutil.NewFakeClock(testutil.Epoch)
	var got []Viewport
	d := NewViewportDebouncer(clock, 16*time.Millisecond, func(vp Viewport) { got = append(got, vp) })

	for z := 3.0; z <= 8; z++ {
		d.Submit(worldAt(z))
		clock.Advance(2 * time.Millisecond)
	}
	clock.Advance(16 * time.Millisecond)
	require.Len(t, got, 1)
	assert.Equal(t, 8.0, got[0].Zoom)

	clock.Advance(time.Second)
	assert.Len(t, got, 1, "no submit, no flush")

	d.Submit(worldAt(9))
	clock.Advance(16 * time.Millisecond)
	require.Len(t, got, 2)
	assert.Equal(t, 9.0, got[1].Zoom)
}

func TestViewportDebouncer_Stop(t *testing.T) {
	clock := testutil.NewFakeClock(testutil.Epoch)
	calls := 0
	d := NewViewportDebouncer(clock, 16*time.Millisecond, func(Viewport) { calls++ })
	d.Submit(worldAt(3))
	d.Stop()
	d.Submit(worldAt(4))
	clock.Advance(time.Second)
	assert.Zero(t, calls)
	assert.Zero(t, clock.Pending())
}

//Personal.AI order the ending
