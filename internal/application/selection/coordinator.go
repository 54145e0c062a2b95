// Package selection owns the single "what is focused" state of the map.  At
// most one tracker, facility, or alert is selected at a time; entering a
// selected state asks the camera to center on the entity.
package selection

import (
	"context"
	"sort"
	"sync"

	"github.com/turtacn/TRAXX-Intelligence/internal/domain/fleet"
	"github.com/turtacn/TRAXX-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TRAXX-Intelligence/pkg/errors"
	"github.com/turtacn/TRAXX-Intelligence/pkg/types/common"
)

// ============================================================================
// State
// ============================================================================

// State is the coordinator state.
type State string

const (
	Unselected       State = "unselected"
	TrackerSelected  State = "tracker_selected"
	FacilitySelected State = "facility_selected"
	AlertSelected    State = "alert_selected"
)

// Selection is the tagged variant {None, Tracker(id), Facility(id), Alert(id)}.
// The zero value is None.
type Selection struct {
	Kind common.EntityKind `json:"kind,omitempty"`
	ID   string            `json:"id,omitempty"`
}

// None is the empty selection.
var None = Selection{}

// IsNone reports whether nothing is selected.
func (s Selection) IsNone() bool { return s.ID == "" }

// State maps the selection to its coordinator state.
func (s Selection) State() State {
	if s.IsNone() {
		return Unselected
	}
	switch s.Kind {
	case common.KindTracker:
		return TrackerSelected
	case common.KindFacility:
		return FacilitySelected
	case common.KindAlert:
		return AlertSelected
	}
	return Unselected
}

// Reason explains a selection change.
type Reason string

const (
	ReasonSelect    Reason = "select"
	ReasonToggle    Reason = "toggle"
	ReasonClose     Reason = "close"
	ReasonStale     Reason = "stale"
	ReasonReconcile Reason = "reconcile"
)

// Change is delivered to observers after every transition.
type Change struct {
	Previous Selection `json:"previous"`
	Current  Selection `json:"current"`
	Reason   Reason    `json:"reason"`
}

// ============================================================================
// Coordinator
// ============================================================================

// Coordinator is the single writer of the selection.
type Coordinator struct {
	store     *fleet.Store
	camera    Camera
	focusZoom float64
	logger    logging.Logger

	mu  sync.Mutex
	cur Selection

	obsMu     sync.RWMutex
	observers map[int]func(Change)
	nextObs   int
}

// NewCoordinator creates a coordinator that resolves ids against store and
// centers camera at focusZoom.  camera may be nil until a renderer mounts.
func NewCoordinator(store *fleet.Store, camera Camera, focusZoom float64, logger logging.Logger) *Coordinator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Coordinator{
		store:     store,
		camera:    camera,
		focusZoom: focusZoom,
		logger:    logger.Named("selection"),
		observers: make(map[int]func(Change)),
	}
}

// Current returns the active selection.
func (c *Coordinator) Current() Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

// Select focuses (kind, id), replacing any prior selection.  Selecting the
// active entity again toggles back to None.  An id missing from the store
// resets to None without error.  The camera is asked to center on the entity;
// a camera failure is logged and leaves the selection in place.
func (c *Coordinator) Select(ctx context.Context, kind common.EntityKind, id string) (Selection, error) {
	switch kind {
	case common.KindTracker, common.KindFacility, common.KindAlert:
	default:
		return c.Current(), errors.Newf(errors.ErrCodeInvalidEntityKind, "cannot select entity kind %q", kind)
	}

	target := Selection{Kind: kind, ID: id}
	coord, found := locate(c.store.Snapshot(), target)

	c.mu.Lock()
	prev := c.cur
	var reason Reason
	switch {
	case !found:
		c.cur = None
		reason = ReasonStale
	case prev == target:
		c.cur = None
		reason = ReasonToggle
	default:
		c.cur = target
		reason = ReasonSelect
	}
	next := c.cur
	c.mu.Unlock()

	if reason == ReasonStale {
		c.logger.Debug("stale selection target dropped",
			logging.String("kind", string(kind)), logging.String("id", id))
	}
	if prev != next {
		c.publish(Change{Previous: prev, Current: next, Reason: reason})
	}
	if reason == ReasonSelect {
		c.center(ctx, target, coord)
	}
	return next, nil
}

// Close returns to None.  Closing while already unselected is a no-op.
func (c *Coordinator) Close() {
	c.mu.Lock()
	prev := c.cur
	c.cur = None
	c.mu.Unlock()

	if !prev.IsNone() {
		c.publish(Change{Previous: prev, Current: None, Reason: ReasonClose})
	}
}

// Reconcile drops the selection when its entity has left the snapshot.
// The ingestion boundary calls it after every replace.
func (c *Coordinator) Reconcile(snap *fleet.Snapshot) {
	c.mu.Lock()
	prev := c.cur
	if prev.IsNone() {
		c.mu.Unlock()
		return
	}
	if _, ok := locate(snap, prev); ok {
		c.mu.Unlock()
		return
	}
	c.cur = None
	c.mu.Unlock()

	c.logger.Info("selection cleared after refresh",
		logging.String("kind", string(prev.Kind)), logging.String("id", prev.ID),
		logging.Uint64("version", snap.Version()))
	c.publish(Change{Previous: prev, Current: None, Reason: ReasonReconcile})
}

// Subscribe registers fn for every change and returns a cancel func.
func (c *Coordinator) Subscribe(fn func(Change)) func() {
	c.obsMu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.obsMu.Unlock()
	return func() {
		c.obsMu.Lock()
		delete(c.observers, id)
		c.obsMu.Unlock()
	}
}

func (c *Coordinator) publish(ch Change) {
	c.obsMu.RLock()
	ids := make([]int, 0, len(c.observers))
	for id := range c.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, c.observers[id])
	}
	c.obsMu.RUnlock()

	for _, fn := range fns {
		fn(ch)
	}
}

func (c *Coordinator) center(ctx context.Context, sel Selection, coord common.Coordinate) {
	if c.camera == nil {
		c.logger.Warn("camera not mounted; selection kept without centering",
			logging.String("id", sel.ID))
		return
	}
	if err := c.camera.SetView(ctx, coord, c.focusZoom); err != nil {
		c.logger.Warn("camera center failed; selection kept",
			logging.String("id", sel.ID), logging.Err(err))
	}
}

// locate finds the coordinate of sel in snap.
func locate(snap *fleet.Snapshot, sel Selection) (common.Coordinate, bool) {
	switch sel.Kind {
	case common.KindTracker:
		if t, ok := snap.Tracker(sel.ID); ok {
			return t.Location, true
		}
	case common.KindFacility:
		if f, ok := snap.Facility(sel.ID); ok {
			return f.Location, true
		}
	case common.KindAlert:
		if a, ok := snap.Alert(sel.ID); ok {
			return a.Location, true
		}
	}
	return common.Coordinate{}, false
}

//Personal.AI order the ending
