// Package ingestion is the only writer of the fleet store.  It turns raw
// tracker, facility and alert records (from the seeded generator, a fixture
// file, Kafka or MQTT) into domain entities, fills missing optional fields
// with neutral defaults, and derives threshold alerts from scan events.
package ingestion

import (
	"strings"
	"time"

	"github.com/turtacn/TRAXX-Intelligence/internal/domain/fleet"
	"github.com/turtacn/TRAXX-Intelligence/pkg/types/common"
)

// Defaults for missing optional tracker fields.
const (
	DefaultBatteryPct   = 50
	DefaultConnectivity = fleet.ConnectivityGood
	DefaultPhase        = fleet.PhaseAtDistributionCenter
	DefaultTrackerType  = fleet.TrackerGPS
)

// ─────────────────────────────────────────────────────────────────────────────
// Raw records
// ─────────────────────────────────────────────────────────────────────────────

// RawTracker is a tracker as delivered by a feed.  Pointer fields are
// optional; string enums are free text and fall back to a default when
// unknown.
type RawTracker struct {
	ID                  string             `json:"id" yaml:"id"`
	Name                string             `json:"name" yaml:"name"`
	KitType             string             `json:"kit_type" yaml:"kit_type"`
	TrackerType         string             `json:"tracker_type" yaml:"tracker_type"`
	BatteryPct          *int               `json:"battery_pct" yaml:"battery_pct"`
	Connectivity        string             `json:"connectivity" yaml:"connectivity"`
	LastTransmission    *time.Time         `json:"last_transmission" yaml:"last_transmission"`
	TemperatureC        *float64           `json:"temperature_c" yaml:"temperature_c"`
	SterilizationCycles int                `json:"sterilization_cycles" yaml:"sterilization_cycles"`
	WashCycles          int                `json:"wash_cycles" yaml:"wash_cycles"`
	UsageCount          int                `json:"usage_count" yaml:"usage_count"`
	Drops               []fleet.DropEvent  `json:"drops" yaml:"drops"`
	Phase               string             `json:"phase" yaml:"phase"`
	DaysAtLocation      int                `json:"days_at_location" yaml:"days_at_location"`
	ExpectedReturn      *time.Time         `json:"expected_return" yaml:"expected_return"`
	FacilityID          string             `json:"facility_id" yaml:"facility_id"`
	Location            *common.Coordinate `json:"location" yaml:"location"`
	PreviousFacilityID  string             `json:"previous_facility_id" yaml:"previous_facility_id"`
	DepartedAt          *time.Time         `json:"departed_at" yaml:"departed_at"`
	Retired             bool               `json:"retired" yaml:"retired"`
}

// RawFacility is a facility as delivered by a feed.
type RawFacility struct {
	ID                string            `json:"id" yaml:"id"`
	Name              string            `json:"name" yaml:"name"`
	Type              string            `json:"type" yaml:"type"`
	Region            string            `json:"region" yaml:"region"`
	Location          common.Coordinate `json:"location" yaml:"location"`
	PendingProcedures int               `json:"pending_procedures" yaml:"pending_procedures"`
	Status            string            `json:"status" yaml:"status"`
}

// RawAlert is a pre-existing alert carried by a fixture or feed.
type RawAlert struct {
	ID           string             `json:"id" yaml:"id"`
	TrackerID    string             `json:"tracker_id" yaml:"tracker_id"`
	Type         string             `json:"type" yaml:"type"`
	Severity     string             `json:"severity" yaml:"severity"`
	Message      string             `json:"message" yaml:"message"`
	Location     *common.Coordinate `json:"location" yaml:"location"`
	CreatedAt    *time.Time         `json:"created_at" yaml:"created_at"`
	Acknowledged bool               `json:"acknowledged" yaml:"acknowledged"`
	Resolved     bool               `json:"resolved" yaml:"resolved"`
}

// Dataset is one complete load of the three collections.
type Dataset struct {
	Trackers   []RawTracker  `json:"trackers" yaml:"trackers"`
	Facilities []RawFacility `json:"facilities" yaml:"facilities"`
	Alerts     []RawAlert    `json:"alerts" yaml:"alerts"`
}

// ScanEvent is one telemetry reading for an existing tracker.  Only the
// fields present are applied.
type ScanEvent struct {
	TrackerID           string             `json:"tracker_id" yaml:"tracker_id"`
	At                  time.Time          `json:"at" yaml:"at"`
	BatteryPct          *int               `json:"battery_pct,omitempty" yaml:"battery_pct"`
	Connectivity        string             `json:"connectivity,omitempty" yaml:"connectivity"`
	TemperatureC        *float64           `json:"temperature_c,omitempty" yaml:"temperature_c"`
	Location            *common.Coordinate `json:"location,omitempty" yaml:"location"`
	FacilityID          *string            `json:"facility_id,omitempty" yaml:"facility_id"`
	Phase               string             `json:"phase,omitempty" yaml:"phase"`
	SterilizationCycles *int               `json:"sterilization_cycles,omitempty" yaml:"sterilization_cycles"`
	WashCycles          *int               `json:"wash_cycles,omitempty" yaml:"wash_cycles"`
	Drop                *fleet.DropEvent   `json:"drop,omitempty" yaml:"drop"`
	ExpectedReturn      *time.Time         `json:"expected_return,omitempty" yaml:"expected_return"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Normalization
// ─────────────────────────────────────────────────────────────────────────────

// NormalizeTracker converts r, defaulting missing optional fields.
func NormalizeTracker(r RawTracker, now time.Time) fleet.Tracker {
	t := fleet.Tracker{
		ID:                  strings.TrimSpace(r.ID),
		Name:                strings.TrimSpace(r.Name),
		KitType:             r.KitType,
		TrackerType:         trackerType(r.TrackerType),
		BatteryPct:          DefaultBatteryPct,
		Connectivity:        connectivity(r.Connectivity, DefaultConnectivity),
		TemperatureC:        r.TemperatureC,
		SterilizationCycles: nonNegative(r.SterilizationCycles),
		WashCycles:          nonNegative(r.WashCycles),
		UsageCount:          nonNegative(r.UsageCount),
		Drops:               append([]fleet.DropEvent(nil), r.Drops...),
		Phase:               phase(r.Phase, DefaultPhase),
		DaysAtLocation:      nonNegative(r.DaysAtLocation),
		FacilityID:          strings.TrimSpace(r.FacilityID),
		PreviousFacilityID:  strings.TrimSpace(r.PreviousFacilityID),
		Retired:             r.Retired,
	}
	if r.BatteryPct != nil {
		t.BatteryPct = clampPct(*r.BatteryPct)
	}
	if r.LastTransmission != nil {
		t.LastTransmission = *r.LastTransmission
	} else {
		t.LastTransmission = now
	}
	if r.ExpectedReturn != nil {
		t.ExpectedReturn = *r.ExpectedReturn
	}
	if r.Location != nil {
		t.Location = *r.Location
	}
	if r.DepartedAt != nil {
		t.DepartedAt = *r.DepartedAt
	}
	return t
}

// NormalizeFacility converts r.
func NormalizeFacility(r RawFacility) fleet.Facility {
	f := fleet.Facility{
		ID:                strings.TrimSpace(r.ID),
		Name:              strings.TrimSpace(r.Name),
		Type:              fleet.FacilityHospital,
		Region:            r.Region,
		Location:          r.Location,
		PendingProcedures: nonNegative(r.PendingProcedures),
		Status:            fleet.FacilityActive,
	}
	if fleet.FacilityType(r.Type) == fleet.FacilityASC {
		f.Type = fleet.FacilityASC
	}
	if fleet.FacilityStatus(r.Status) == fleet.FacilityNeedsAttention {
		f.Status = fleet.FacilityNeedsAttention
	}
	return f
}

// NormalizeAlert converts r.  The location and facility fall back to the
// subject tracker when it is known.  For a typed alert whose condition the
// subject still breaches, severity comes from the threshold table and the raw
// value is ignored.
func NormalizeAlert(r RawAlert, subject *fleet.Tracker, now time.Time) fleet.Alert {
	a := fleet.Alert{
		ID:           strings.TrimSpace(r.ID),
		TrackerID:    strings.TrimSpace(r.TrackerID),
		Type:         alertType(r.Type),
		Severity:     severity(r.Severity),
		Message:      r.Message,
		CreatedAt:    now,
		Acknowledged: r.Acknowledged || r.Resolved,
		Resolved:     r.Resolved,
	}
	if r.CreatedAt != nil {
		a.CreatedAt = *r.CreatedAt
	}
	if subject != nil {
		a.FacilityID = subject.FacilityID
		a.Location = subject.Location
		if b, ok := fleet.Grade(*subject, a.Type, now); ok {
			a.Severity = b.Severity
		}
	}
	if r.Location != nil {
		a.Location = *r.Location
	}
	if a.Acknowledged {
		at := a.CreatedAt
		a.AcknowledgedAt = &at
	}
	if a.Resolved {
		at := a.CreatedAt
		a.ResolvedAt = &at
	}
	return a
}

// Apply merges the present fields of ev into t.
func (ev ScanEvent) Apply(t fleet.Tracker) fleet.Tracker {
	if ev.BatteryPct != nil {
		t.BatteryPct = clampPct(*ev.BatteryPct)
	}
	if ev.Connectivity != "" {
		t.Connectivity = connectivity(ev.Connectivity, t.Connectivity)
	}
	if ev.TemperatureC != nil {
		v := *ev.TemperatureC
		t.TemperatureC = &v
	}
	if ev.Location != nil {
		t.Location = *ev.Location
	}
	if ev.FacilityID != nil && *ev.FacilityID != t.FacilityID {
		if t.FacilityID != "" {
			t.PreviousFacilityID = t.FacilityID
		}
		t.FacilityID = *ev.FacilityID
		t.DaysAtLocation = 0
	}
	if ev.Phase != "" {
		next := phase(ev.Phase, t.Phase)
		if next == fleet.PhaseInTransit && t.Phase != fleet.PhaseInTransit {
			t.DepartedAt = ev.At
		}
		t.Phase = next
	}
	if ev.SterilizationCycles != nil {
		t.SterilizationCycles = nonNegative(*ev.SterilizationCycles)
	}
	if ev.WashCycles != nil {
		t.WashCycles = nonNegative(*ev.WashCycles)
	}
	if ev.Drop != nil {
		t.Drops = append(append([]fleet.DropEvent(nil), t.Drops...), *ev.Drop)
	}
	if ev.ExpectedReturn != nil {
		t.ExpectedReturn = *ev.ExpectedReturn
	}
	if !ev.At.IsZero() && ev.At.After(t.LastTransmission) {
		t.LastTransmission = ev.At
	}
	return t
}

func trackerType(s string) fleet.TrackerType {
	switch v := fleet.TrackerType(s); v {
	case fleet.TrackerMotionTemp, fleet.TrackerBluetooth, fleet.TrackerGPS, fleet.TrackerHybrid:
		return v
	}
	return DefaultTrackerType
}

func connectivity(s string, fallback fleet.Connectivity) fleet.Connectivity {
	switch v := fleet.Connectivity(s); v {
	case fleet.ConnectivityExcellent, fleet.ConnectivityGood, fleet.ConnectivityPoor:
		return v
	}
	return fallback
}

func phase(s string, fallback fleet.Phase) fleet.Phase {
	if p := fleet.Phase(s); p.Valid() {
		return p
	}
	return fallback
}

func alertType(s string) fleet.AlertType {
	switch v := fleet.AlertType(s); v {
	case fleet.AlertLowBattery, fleet.AlertOverdueReturn, fleet.AlertHighCycleCount,
		fleet.AlertMultipleDrops, fleet.AlertTemperature:
		return v
	}
	return fleet.AlertGeneric
}

func severity(s string) fleet.Severity {
	switch v := fleet.Severity(s); v {
	case fleet.SeverityCritical, fleet.SeverityWarning:
		return v
	}
	return fleet.SeverityInfo
}

func clampPct(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

//Personal.AI order the ending
