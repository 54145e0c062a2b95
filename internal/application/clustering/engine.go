package clustering

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/turtacn/TRAXX-Intelligence/internal/config"
	"github.com/turtacn/TRAXX-Intelligence/internal/domain/fleet"
	"github.com/turtacn/TRAXX-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TRAXX-Intelligence/pkg/errors"
	"github.com/turtacn/TRAXX-Intelligence/pkg/types/common"
)

const defaultMemoSize = 64

// Recorder receives one call per actual recomputation.
type Recorder interface {
	RecordClusterRecompute(kind string, d time.Duration, nodes int)
}

// Engine serves cluster layouts for the live store.  Results are memoized on
// (kind, viewport, store version, params generation), so selection or
// highlight changes that leave all four untouched never recompute.
type Engine struct {
	store  *fleet.Store
	logger logging.Logger
	rec    Recorder

	mu     sync.RWMutex
	params config.MapConfig
	gen    uint64

	memoMu   sync.Mutex
	memo     map[memoKey][]Node
	order    []memoKey
	memoSize int

	group      singleflight.Group
	recomputes atomic.Uint64
}

type memoKey struct {
	kind    common.EntityKind
	vp      Viewport
	version uint64
	gen     uint64
}

func (k memoKey) String() string {
	b := k.vp.Bounds
	return fmt.Sprintf("%s|%v,%v,%v,%v|%v|%d|%d", k.kind, b.South, b.West, b.North, b.East, k.vp.Zoom, k.version, k.gen)
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) { e.rec = r }
}

// WithMemoSize bounds the number of memoized layouts.
func WithMemoSize(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.memoSize = n
		}
	}
}

// NewEngine creates an engine over store.
func NewEngine(store *fleet.Store, params config.MapConfig, logger logging.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	config.ApplyMapDefaults(&params)
	e := &Engine{
		store:    store,
		logger:   logger.Named("clustering"),
		params:   params,
		memo:     make(map[memoKey][]Node),
		memoSize: defaultMemoSize,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Params returns the active map tunables.
func (e *Engine) Params() config.MapConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.params
}

// SetParams swaps the map tunables and invalidates every memoized layout.
func (e *Engine) SetParams(m config.MapConfig) error {
	config.ApplyMapDefaults(&m)
	if err := m.Validate(); err != nil {
		return errors.Wrap(err, errors.ErrCodeValidation, "rejected map parameters")
	}
	e.mu.Lock()
	e.params = m
	e.gen++
	e.mu.Unlock()

	e.memoMu.Lock()
	e.memo = make(map[memoKey][]Node)
	e.order = nil
	e.memoMu.Unlock()

	e.logger.Info("map parameters updated",
		logging.Float64("tracker_radius", m.ClusterRadius.Tracker),
		logging.Float64("facility_radius", m.ClusterRadius.Facility),
		logging.Float64("alert_radius", m.ClusterRadius.Alert),
		logging.Duration("highlight_ttl", m.HighlightTTL))
	return nil
}

// Recomputes is the number of layouts actually computed.
func (e *Engine) Recomputes() uint64 { return e.recomputes.Load() }

// Clusters returns the layout of kind for vp against the current snapshot.
// The returned slice is shared with the memo and must not be modified.
func (e *Engine) Clusters(kind common.EntityKind, vp Viewport) ([]Node, error) {
	e.mu.RLock()
	params, gen := e.params, e.gen
	e.mu.RUnlock()

	if err := vp.Validate(params.MinZoom, params.MaxZoom); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeViewportInvalid, "invalid viewport")
	}
	switch kind {
	case common.KindTracker, common.KindFacility, common.KindAlert:
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidEntityKind, "unknown entity kind %q", kind)
	}

	snap := e.store.Snapshot()
	key := memoKey{kind: kind, vp: vp, version: snap.Version(), gen: gen}

	if nodes, ok := e.lookup(key); ok {
		return nodes, nil
	}

	v, _, _ := e.group.Do(key.String(), func() (interface{}, error) {
		if nodes, ok := e.lookup(key); ok {
			return nodes, nil
		}
		nodes := e.compute(snap, kind, vp, params)
		e.remember(key, nodes)
		return nodes, nil
	})
	return v.([]Node), nil
}

func (e *Engine) compute(snap *fleet.Snapshot, kind common.EntityKind, vp Viewport, m config.MapConfig) []Node {
	start := time.Now()
	groups := Cluster(Points(snap, kind), vp, ParamsFor(m, kind))
	nodes := LayoutFromConfig(m).Place(groups, vp.Zoom)
	elapsed := time.Since(start)

	e.recomputes.Add(1)
	if e.rec != nil {
		e.rec.RecordClusterRecompute(string(kind), elapsed, len(nodes))
	}
	e.logger.Debug("clusters recomputed",
		logging.String("kind", string(kind)),
		logging.Float64("zoom", vp.Zoom),
		logging.Uint64("version", snap.Version()),
		logging.Int("nodes", len(nodes)),
		logging.Duration("elapsed", elapsed))
	return nodes
}

func (e *Engine) lookup(key memoKey) ([]Node, bool) {
	e.memoMu.Lock()
	defer e.memoMu.Unlock()
	nodes, ok := e.memo[key]
	return nodes, ok
}

// remember stores nodes, dropping layouts of older store versions first and
// then the oldest entries beyond the memo size.
func (e *Engine) remember(key memoKey, nodes []Node) {
	e.memoMu.Lock()
	defer e.memoMu.Unlock()

	kept := e.order[:0]
	for _, k := range e.order {
		if k.version < key.version || k.gen < key.gen {
			delete(e.memo, k)
			continue
		}
		kept = append(kept, k)
	}
	e.order = kept

	for len(e.order) >= e.memoSize {
		delete(e.memo, e.order[0])
		e.order = e.order[1:]
	}
	e.memo[key] = nodes
	e.order = append(e.order, key)
}

// ParamsFor picks the grouping tunables of one kind.
func ParamsFor(m config.MapConfig, kind common.EntityKind) Params {
	p := Params{DisableAtZoom: m.ClusterMaxZoom, TileSize: m.TileSize}
	switch kind {
	case common.KindTracker:
		p.RadiusPx = m.ClusterRadius.Tracker
	case common.KindFacility:
		p.RadiusPx = m.ClusterRadius.Facility
	case common.KindAlert:
		p.RadiusPx = m.ClusterRadius.Alert
	}
	return p
}

// Points extracts the drawable entities of kind.  Retired trackers and
// resolved alerts are not drawn.
func Points(snap *fleet.Snapshot, kind common.EntityKind) []GeoPoint {
	var out []GeoPoint
	switch kind {
	case common.KindTracker:
		for _, t := range snap.Trackers() {
			if t.Retired {
				continue
			}
			out = append(out, GeoPoint{ID: t.ID, Kind: kind, Status: string(t.Phase), Location: t.Location})
		}
	case common.KindFacility:
		for _, f := range snap.Facilities() {
			out = append(out, GeoPoint{ID: f.ID, Kind: kind, Status: string(f.Status), Location: f.Location})
		}
	case common.KindAlert:
		for _, a := range snap.Alerts() {
			if !a.Open() {
				continue
			}
			out = append(out, GeoPoint{ID: a.ID, Kind: kind, Status: string(a.Severity), Location: a.Location})
		}
	}
	return out
}

//Personal.AI order the ending
