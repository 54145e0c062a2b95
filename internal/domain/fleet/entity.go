// Package fleet holds the tracked-asset domain: trackers, facilities, alerts,
// the fixed threshold table that derives alert severity, and the Store that
// publishes immutable snapshots of all three collections.
package fleet

import (
	"fmt"
	"time"

	"github.com/turtacn/TRAXX-Intelligence/pkg/types/common"
)

// TrackerType is the physical tag attached to a kit.
type TrackerType string

const (
	TrackerMotionTemp TrackerType = "motion_temperature"
	TrackerBluetooth  TrackerType = "bluetooth"
	TrackerGPS        TrackerType = "gps"
	TrackerHybrid     TrackerType = "hybrid"
)

// Connectivity is the ordinal link quality of a tracker.
type Connectivity string

const (
	ConnectivityExcellent Connectivity = "excellent"
	ConnectivityGood      Connectivity = "good"
	ConnectivityPoor      Connectivity = "poor"
)

// Phase is the logistics state of a tracked kit.  Exactly one phase applies
// at any time.
type Phase string

const (
	PhaseInTransit            Phase = "in_transit"
	PhaseAtFacility           Phase = "at_facility"
	PhaseInProcedure          Phase = "in_procedure"
	PhaseAwaitingReturn       Phase = "awaiting_return"
	PhaseAtDistributionCenter Phase = "at_distribution_center"
	PhaseReturned             Phase = "returned"
)

// Phases lists every phase in trajectory order.
var Phases = []Phase{
	PhaseAtDistributionCenter, PhaseInTransit, PhaseAtFacility,
	PhaseInProcedure, PhaseAwaitingReturn, PhaseReturned,
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	for _, known := range Phases {
		if p == known {
			return true
		}
	}
	return false
}

// Label returns a human-readable phase name.
func (p Phase) Label() string {
	switch p {
	case PhaseInTransit:
		return "in transit"
	case PhaseAtFacility:
		return "at facility"
	case PhaseInProcedure:
		return "in procedure"
	case PhaseAwaitingReturn:
		return "awaiting return"
	case PhaseAtDistributionCenter:
		return "at distribution center"
	case PhaseReturned:
		return "returned"
	}
	return string(p)
}

// DropEvent records one shock measured by a tracker.
type DropEvent struct {
	At     time.Time `json:"at" yaml:"at"`
	ForceG float64   `json:"force_g" yaml:"force_g"`
}

// Tracker is a tagged surgical kit.
type Tracker struct {
	ID          string      `json:"id" yaml:"id"`
	Name        string      `json:"name" yaml:"name"`
	KitType     string      `json:"kit_type,omitempty" yaml:"kit_type"`
	TrackerType TrackerType `json:"tracker_type" yaml:"tracker_type"`

	BatteryPct       int          `json:"battery_pct" yaml:"battery_pct"`
	Connectivity     Connectivity `json:"connectivity" yaml:"connectivity"`
	LastTransmission time.Time    `json:"last_transmission" yaml:"last_transmission"`
	TemperatureC     *float64     `json:"temperature_c,omitempty" yaml:"temperature_c"`

	SterilizationCycles int         `json:"sterilization_cycles" yaml:"sterilization_cycles"`
	WashCycles          int         `json:"wash_cycles" yaml:"wash_cycles"`
	UsageCount          int         `json:"usage_count" yaml:"usage_count"`
	Drops               []DropEvent `json:"drops,omitempty" yaml:"drops"`

	Phase          Phase     `json:"phase" yaml:"phase"`
	DaysAtLocation int       `json:"days_at_location" yaml:"days_at_location"`
	ExpectedReturn time.Time `json:"expected_return" yaml:"expected_return"`

	FacilityID         string            `json:"facility_id,omitempty" yaml:"facility_id"`
	Location           common.Coordinate `json:"location" yaml:"location"`
	PreviousFacilityID string            `json:"previous_facility_id,omitempty" yaml:"previous_facility_id"`
	DepartedAt         time.Time         `json:"departed_at,omitempty" yaml:"departed_at"`

	Retired bool `json:"retired,omitempty" yaml:"retired"`
}

// IsOverdue reports whether the kit is past its expected return and has not
// been returned.  A tracker without an expected return date is never overdue.
func (t Tracker) IsOverdue(now time.Time) bool {
	if t.Phase == PhaseReturned || t.ExpectedReturn.IsZero() {
		return false
	}
	return now.After(t.ExpectedReturn)
}

// OverdueDays is the number of whole days past the expected return, or 0.
func (t Tracker) OverdueDays(now time.Time) int {
	if !t.IsOverdue(now) {
		return 0
	}
	return int(now.Sub(t.ExpectedReturn) / (24 * time.Hour))
}

// DropCount is the cumulative number of recorded drop/shock events.
func (t Tracker) DropCount() int { return len(t.Drops) }

// MaxDropForce is the strongest recorded shock in g, or 0.
func (t Tracker) MaxDropForce() float64 {
	var peak float64
	for _, d := range t.Drops {
		if d.ForceG > peak {
			peak = d.ForceG
		}
	}
	return peak
}

// Label is the short display label used in lists and actionable items.
func (t Tracker) Label() string {
	if t.Name != "" {
		return fmt.Sprintf("%s (%s)", t.Name, t.ID)
	}
	return t.ID
}

// FacilityType classifies a site.
type FacilityType string

const (
	FacilityHospital FacilityType = "hospital"
	FacilityASC      FacilityType = "ambulatory_surgery_center"
)

// FacilityStatus is the operational state of a site.
type FacilityStatus string

const (
	FacilityActive         FacilityStatus = "active"
	FacilityNeedsAttention FacilityStatus = "needs_attention"
)

// Facility is a hospital or surgery center.  The number of kits on site is
// derived from the tracker collection (Snapshot.AssetCount), never stored.
type Facility struct {
	ID                string            `json:"id" yaml:"id"`
	Name              string            `json:"name" yaml:"name"`
	Type              FacilityType      `json:"type" yaml:"type"`
	Region            string            `json:"region" yaml:"region"`
	Location          common.Coordinate `json:"location" yaml:"location"`
	PendingProcedures int               `json:"pending_procedures" yaml:"pending_procedures"`
	Status            FacilityStatus    `json:"status" yaml:"status"`
}

// Label is the short display label.
func (f Facility) Label() string {
	if f.Name != "" {
		return f.Name
	}
	return f.ID
}

// AlertType is the triggering condition of an alert.
type AlertType string

const (
	AlertLowBattery     AlertType = "low_battery"
	AlertOverdueReturn  AlertType = "overdue_return"
	AlertHighCycleCount AlertType = "high_cycle_count"
	AlertMultipleDrops  AlertType = "multiple_drops"
	AlertTemperature    AlertType = "temperature_out_of_range"
	AlertGeneric        AlertType = "generic"
)

// Severity grades an alert.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Rank orders severities; higher is more urgent.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	}
	return 0
}

// Alert is raised when a tracker crosses a threshold.  Alerts are never
// deleted; they are acknowledged and later resolved.
type Alert struct {
	ID         string            `json:"id" yaml:"id"`
	TrackerID  string            `json:"tracker_id" yaml:"tracker_id"`
	FacilityID string            `json:"facility_id,omitempty" yaml:"facility_id"`
	Type       AlertType         `json:"type" yaml:"type"`
	Severity   Severity          `json:"severity" yaml:"severity"`
	Message    string            `json:"message" yaml:"message"`
	Location   common.Coordinate `json:"location" yaml:"location"`
	CreatedAt  time.Time         `json:"created_at" yaml:"created_at"`

	Acknowledged   bool       `json:"acknowledged" yaml:"acknowledged"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty" yaml:"acknowledged_at"`
	Resolved       bool       `json:"resolved" yaml:"resolved"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty" yaml:"resolved_at"`
}

// Open reports whether the alert still needs attention.
func (a Alert) Open() bool { return !a.Resolved }

// Label is the short display label.
func (a Alert) Label() string {
	return fmt.Sprintf("%s %s on %s", a.Severity, a.Type, a.TrackerID)
}

// NewAlert builds an alert for t from a threshold breach.  The location and
// facility are copied from the tracker at creation time.
func NewAlert(id string, t Tracker, b Breach, now time.Time) Alert {
	return Alert{
		ID:         id,
		TrackerID:  t.ID,
		FacilityID: t.FacilityID,
		Type:       b.Type,
		Severity:   b.Severity,
		Message:    b.Message,
		Location:   t.Location,
		CreatedAt:  now,
	}
}

//Personal.AI order the ending
