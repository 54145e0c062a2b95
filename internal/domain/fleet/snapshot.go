package fleet

import (
	"sort"
	"time"
)

// Snapshot is an immutable view of all three collections at one version.
// Accessors return copies; the snapshot itself is never modified after
// construction.
type Snapshot struct {
	version    uint64
	builtAt    time.Time
	trackers   []Tracker
	facilities []Facility
	alerts     []Alert

	trackerIdx  map[string]int
	facilityIdx map[string]int
	alertIdx    map[string]int

	trackersByFacility map[string][]int
	alertsByTracker    map[string][]int
	alertsByFacility   map[string][]int
}

// newSnapshot copies and indexes the collections.  Each collection is sorted
// by id so iteration order is stable across versions.
func newSnapshot(version uint64, trackers []Tracker, facilities []Facility, alerts []Alert, builtAt time.Time) *Snapshot {
	s := &Snapshot{
		version:    version,
		builtAt:    builtAt,
		trackers:   append([]Tracker(nil), trackers...),
		facilities: append([]Facility(nil), facilities...),
		alerts:     append([]Alert(nil), alerts...),
	}
	sort.SliceStable(s.trackers, func(i, j int) bool { return s.trackers[i].ID < s.trackers[j].ID })
	sort.SliceStable(s.facilities, func(i, j int) bool { return s.facilities[i].ID < s.facilities[j].ID })
	sort.SliceStable(s.alerts, func(i, j int) bool { return s.alerts[i].ID < s.alerts[j].ID })

	s.trackerIdx = make(map[string]int, len(s.trackers))
	s.trackersByFacility = make(map[string][]int)
	for i, t := range s.trackers {
		s.trackerIdx[t.ID] = i
		if t.FacilityID != "" {
			s.trackersByFacility[t.FacilityID] = append(s.trackersByFacility[t.FacilityID], i)
		}
	}

	s.facilityIdx = make(map[string]int, len(s.facilities))
	for i, f := range s.facilities {
		s.facilityIdx[f.ID] = i
	}

	s.alertIdx = make(map[string]int, len(s.alerts))
	s.alertsByTracker = make(map[string][]int)
	s.alertsByFacility = make(map[string][]int)
	for i, a := range s.alerts {
		s.alertIdx[a.ID] = i
		s.alertsByTracker[a.TrackerID] = append(s.alertsByTracker[a.TrackerID], i)
		if a.FacilityID != "" {
			s.alertsByFacility[a.FacilityID] = append(s.alertsByFacility[a.FacilityID], i)
		}
	}
	return s
}

// Version is the store version this snapshot was published at.
func (s *Snapshot) Version() uint64 { return s.version }

// BuiltAt is when the snapshot was published.
func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }

// Trackers returns every tracker, sorted by id.
func (s *Snapshot) Trackers() []Tracker { return append([]Tracker(nil), s.trackers...) }

// Facilities returns every facility, sorted by id.
func (s *Snapshot) Facilities() []Facility { return append([]Facility(nil), s.facilities...) }

// Alerts returns every alert, sorted by id.
func (s *Snapshot) Alerts() []Alert { return append([]Alert(nil), s.alerts...) }

// Tracker looks up a tracker by id.
func (s *Snapshot) Tracker(id string) (Tracker, bool) {
	i, ok := s.trackerIdx[id]
	if !ok {
		return Tracker{}, false
	}
	return s.trackers[i], true
}

// Facility looks up a facility by id.
func (s *Snapshot) Facility(id string) (Facility, bool) {
	i, ok := s.facilityIdx[id]
	if !ok {
		return Facility{}, false
	}
	return s.facilities[i], true
}

// Alert looks up an alert by id.
func (s *Snapshot) Alert(id string) (Alert, bool) {
	i, ok := s.alertIdx[id]
	if !ok {
		return Alert{}, false
	}
	return s.alerts[i], true
}

// TrackersAt returns the trackers whose current facility is facilityID.
func (s *Snapshot) TrackersAt(facilityID string) []Tracker {
	idx := s.trackersByFacility[facilityID]
	out := make([]Tracker, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.trackers[i])
	}
	return out
}

// AssetCount is the number of trackers currently at facilityID.  It is
// derived from the tracker collection on every call.
func (s *Snapshot) AssetCount(facilityID string) int {
	return len(s.trackersByFacility[facilityID])
}

// AlertsFor returns the alerts whose subject is trackerID.
func (s *Snapshot) AlertsFor(trackerID string) []Alert {
	return s.pickAlerts(s.alertsByTracker[trackerID])
}

// AlertsAtFacility returns the alerts raised while their subject was at
// facilityID.
func (s *Snapshot) AlertsAtFacility(facilityID string) []Alert {
	return s.pickAlerts(s.alertsByFacility[facilityID])
}

func (s *Snapshot) pickAlerts(idx []int) []Alert {
	out := make([]Alert, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.alerts[i])
	}
	return out
}

// OpenAlerts returns unresolved alerts ordered by creation time, newest
// first.  Ties break on id.
func (s *Snapshot) OpenAlerts() []Alert {
	out := make([]Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		if a.Open() {
			out = append(out, a)
		}
	}
	SortAlertsNewestFirst(out)
	return out
}

// SortAlertsNewestFirst orders alerts by CreatedAt descending, then id.
func SortAlertsNewestFirst(alerts []Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		if !alerts[i].CreatedAt.Equal(alerts[j].CreatedAt) {
			return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
		}
		return alerts[i].ID < alerts[j].ID
	})
}

// Stats summarizes the snapshot at now.
type Stats struct {
	Version          uint64           `json:"version"`
	Trackers         int              `json:"trackers"`
	ActiveTrackers   int              `json:"active_trackers"`
	Facilities       int              `json:"facilities"`
	Alerts           int              `json:"alerts"`
	OpenAlerts       int              `json:"open_alerts"`
	ByPhase          map[Phase]int    `json:"by_phase"`
	OpenBySeverity   map[Severity]int `json:"open_by_severity"`
	Overdue          int              `json:"overdue"`
	CriticalBattery  int              `json:"critical_battery"`
	LowBattery       int              `json:"low_battery"`
	PoorConnectivity int              `json:"poor_connectivity"`
	AvgBatteryPct    float64          `json:"avg_battery_pct"`
	Utilization      float64          `json:"utilization"`
}

// Stats computes fleet aggregates.  Retired trackers are counted in Trackers
// but excluded from every other tracker figure.  Utilization is the share of
// active kits in procedure or at a facility.
func (s *Snapshot) Stats(now time.Time) Stats {
	st := Stats{
		Version:        s.version,
		Trackers:       len(s.trackers),
		Facilities:     len(s.facilities),
		Alerts:         len(s.alerts),
		ByPhase:        make(map[Phase]int),
		OpenBySeverity: make(map[Severity]int),
	}

	var batterySum, inUse int
	for _, t := range s.trackers {
		if t.Retired {
			continue
		}
		st.ActiveTrackers++
		st.ByPhase[t.Phase]++
		batterySum += t.BatteryPct
		if t.IsOverdue(now) {
			st.Overdue++
		}
		if sev, ok := BatterySeverity(t.BatteryPct); ok {
			if sev == SeverityCritical {
				st.CriticalBattery++
			} else {
				st.LowBattery++
			}
		}
		if t.Connectivity == ConnectivityPoor {
			st.PoorConnectivity++
		}
		if t.Phase == PhaseInProcedure || t.Phase == PhaseAtFacility {
			inUse++
		}
	}
	if st.ActiveTrackers > 0 {
		st.AvgBatteryPct = float64(batterySum) / float64(st.ActiveTrackers)
		st.Utilization = float64(inUse) / float64(st.ActiveTrackers)
	}

	for _, a := range s.alerts {
		if a.Open() {
			st.OpenAlerts++
			st.OpenBySeverity[a.Severity]++
		}
	}
	return st
}

//Personal.AI order the ending
