// Package detail projects the current selection into a panel: the selected
// entity with its related entities.  The only state it owns is which
// secondary list is expanded.
package detail

import (
	"sync"
	"time"

	"github.com/turtacn/TRAXX-Intelligence/internal/application/marker"
	"github.com/turtacn/TRAXX-Intelligence/internal/application/selection"
	"github.com/turtacn/TRAXX-Intelligence/internal/domain/fleet"
	"github.com/turtacn/TRAXX-Intelligence/pkg/types/common"
)

// Section names an expandable secondary list.
type Section string

const (
	SectionNone     Section = ""
	SectionAlerts   Section = "alerts"
	SectionTrackers Section = "trackers"
)

// TrackerSummary is the compact form of a tracker used in lists.
type TrackerSummary struct {
	ID         string            `json:"id"`
	Label      string            `json:"label"`
	Phase      fleet.Phase       `json:"phase"`
	BatteryPct int               `json:"battery_pct"`
	Overdue    bool              `json:"overdue"`
	Location   common.Coordinate `json:"location"`
	Style      marker.Style      `json:"style"`
}

// Summarize builds the compact form of t at now.
func Summarize(t fleet.Tracker, now time.Time) TrackerSummary {
	return TrackerSummary{
		ID:         t.ID,
		Label:      t.Label(),
		Phase:      t.Phase,
		BatteryPct: t.BatteryPct,
		Overdue:    t.IsOverdue(now),
		Location:   t.Location,
		Style:      marker.ForTracker(t),
	}
}

// TrackerPanel is shown for a selected tracker.
type TrackerPanel struct {
	Tracker     fleet.Tracker   `json:"tracker"`
	Overdue     bool            `json:"overdue"`
	OverdueDays int             `json:"overdue_days"`
	DropCount   int             `json:"drop_count"`
	MaxDropG    float64         `json:"max_drop_g"`
	Facility    *fleet.Facility `json:"facility,omitempty"`
	Alerts      []fleet.Alert   `json:"alerts"`
	Style       marker.Style    `json:"style"`
}

// FacilityPanel is shown for a selected facility.
type FacilityPanel struct {
	Facility   fleet.Facility   `json:"facility"`
	AssetCount int              `json:"asset_count"`
	Trackers   []TrackerSummary `json:"trackers"`
	Alerts     []fleet.Alert    `json:"alerts"`
	Style      marker.Style     `json:"style"`
}

// AlertPanel is shown for a selected alert.
type AlertPanel struct {
	Alert   fleet.Alert     `json:"alert"`
	Subject *TrackerSummary `json:"subject,omitempty"`
	Style   marker.Style    `json:"style"`
}

// Panel is the rendered detail view.  Exactly one of the entity panels is
// set.
type Panel struct {
	Selection selection.Selection `json:"selection"`
	Expanded  Section             `json:"expanded,omitempty"`
	Tracker   *TrackerPanel       `json:"tracker,omitempty"`
	Facility  *FacilityPanel      `json:"facility,omitempty"`
	Alert     *AlertPanel         `json:"alert,omitempty"`
}

// Project builds the panel for sel from snap.  It returns false when nothing
// is selected or the entity is no longer in the snapshot.
func Project(snap *fleet.Snapshot, sel selection.Selection, now time.Time) (*Panel, bool) {
	if sel.IsNone() {
		return nil, false
	}
	p := &Panel{Selection: sel}

	switch sel.Kind {
	case common.KindTracker:
		t, ok := snap.Tracker(sel.ID)
		if !ok {
			return nil, false
		}
		alerts := snap.AlertsFor(t.ID)
		fleet.SortAlertsNewestFirst(alerts)
		tp := &TrackerPanel{
			Tracker:     t,
			Overdue:     t.IsOverdue(now),
			OverdueDays: t.OverdueDays(now),
			DropCount:   t.DropCount(),
			MaxDropG:    t.MaxDropForce(),
			Alerts:      alerts,
			Style:       marker.ForTracker(t),
		}
		if f, ok := snap.Facility(t.FacilityID); ok {
			tp.Facility = &f
		}
		p.Tracker = tp

	case common.KindFacility:
		f, ok := snap.Facility(sel.ID)
		if !ok {
			return nil, false
		}
		trackers := snap.TrackersAt(f.ID)
		summaries := make([]TrackerSummary, 0, len(trackers))
		for _, t := range trackers {
			summaries = append(summaries, Summarize(t, now))
		}
		alerts := snap.AlertsAtFacility(f.ID)
		fleet.SortAlertsNewestFirst(alerts)
		p.Facility = &FacilityPanel{
			Facility:   f,
			AssetCount: snap.AssetCount(f.ID),
			Trackers:   summaries,
			Alerts:     alerts,
			Style:      marker.ForFacility(f),
		}

	case common.KindAlert:
		a, ok := snap.Alert(sel.ID)
		if !ok {
			return nil, false
		}
		ap := &AlertPanel{Alert: a, Style: marker.ForAlert(a)}
		if t, ok := snap.Tracker(a.TrackerID); ok {
			s := Summarize(t, now)
			ap.Subject = &s
		}
		p.Alert = ap

	default:
		return nil, false
	}
	return p, true
}

// Renderer wraps Project with the expanded-section state.  The expanded
// section belongs to one selection; it resets when the selection changes or
// the panel closes.
type Renderer struct {
	store *fleet.Store
	sel   *selection.Coordinator
	now   func() time.Time

	mu       sync.Mutex
	owner    selection.Selection
	expanded Section
}

// NewRenderer reads from store and the coordinator's current selection.
func NewRenderer(store *fleet.Store, sel *selection.Coordinator, clock common.Clock) *Renderer {
	if clock == nil {
		clock = common.SystemClock()
	}
	return &Renderer{store: store, sel: sel, now: clock.Now}
}

// Render returns the panel for the current selection, or false when there
// is nothing to show.
func (r *Renderer) Render() (*Panel, bool) {
	cur := r.sel.Current()
	p, ok := Project(r.store.Snapshot(), cur, r.now())
	if !ok {
		return nil, false
	}
	p.Expanded = r.expandedFor(cur)
	return p, true
}

// Expand opens section for the current selection.  Sections that do not
// apply to the selected kind are ignored.
func (r *Renderer) Expand(section Section) Section {
	cur := r.sel.Current()
	if !applies(cur.Kind, section) {
		return r.expandedFor(cur)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owner = cur
	r.expanded = section
	return section
}

// Collapse closes any expanded section.
func (r *Renderer) Collapse() {
	r.mu.Lock()
	r.expanded = SectionNone
	r.mu.Unlock()
}

// Close collapses and clears the selection, returning control to the map.
// Safe to call repeatedly.
func (r *Renderer) Close() {
	r.Collapse()
	r.sel.Close()
}

func (r *Renderer) expandedFor(cur selection.Selection) Section {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.owner != cur {
		r.owner = cur
		r.expanded = SectionNone
	}
	return r.expanded
}

func applies(kind common.EntityKind, s Section) bool {
	switch s {
	case SectionAlerts:
		return kind == common.KindTracker || kind == common.KindFacility
	case SectionTrackers:
		return kind == common.KindFacility
	}
	return s == SectionNone
}

//Personal.AI order the ending
