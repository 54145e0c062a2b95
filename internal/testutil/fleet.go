package testutil

import (
	"time"

	"github.com/turtacn/TRAXX-Intelligence/internal/config"
	"github.com/turtacn/TRAXX-Intelligence/internal/domain/fleet"
	"github.com/turtacn/TRAXX-Intelligence/pkg/types/common"
)

// Epoch is the fixed "now" used by fleet fixtures.
var Epoch = time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

// Tracker builds an active, healthy tracker at (lat, lng).
func Tracker(id string, lat, lng float64, mods ...func(*fleet.Tracker)) fleet.Tracker {
	t := fleet.Tracker{
		ID:               id,
		Name:             "Kit " + id,
		TrackerType:      fleet.TrackerGPS,
		BatteryPct:       80,
		Connectivity:     fleet.ConnectivityGood,
		LastTransmission: Epoch.Add(-time.Minute),
		Phase:            fleet.PhaseAtFacility,
		ExpectedReturn:   Epoch.Add(72 * time.Hour),
		Location:         common.Coordinate{Lat: lat, Lng: lng},
	}
	for _, m := range mods {
		m(&t)
	}
	return t
}

// Facility builds an active hospital at (lat, lng).
func Facility(id string, lat, lng float64, mods ...func(*fleet.Facility)) fleet.Facility {
	f := fleet.Facility{
		ID:       id,
		Name:     "Hospital " + id,
		Type:     fleet.FacilityHospital,
		Region:   "Midwest",
		Location: common.Coordinate{Lat: lat, Lng: lng},
		Status:   fleet.FacilityActive,
	}
	for _, m := range mods {
		m(&f)
	}
	return f
}

// Alert builds an open alert on subject created at Epoch minus age.
func Alert(id string, subject fleet.Tracker, sev fleet.Severity, age time.Duration) fleet.Alert {
	return fleet.Alert{
		ID:         id,
		TrackerID:  subject.ID,
		FacilityID: subject.FacilityID,
		Type:       fleet.AlertGeneric,
		Severity:   sev,
		Message:    string(sev) + " condition on " + subject.ID,
		Location:   subject.Location,
		CreatedAt:  Epoch.Add(-age),
	}
}

// MapConfig returns map tunables with every default applied.
func MapConfig() config.MapConfig {
	var m config.MapConfig
	config.ApplyMapDefaults(&m)
	return m
}

// Store returns a store already holding the given collections.
func Store(trackers []fleet.Tracker, facilities []fleet.Facility, alerts []fleet.Alert) *fleet.Store {
	s := fleet.NewStore()
	s.Replace(trackers, facilities, alerts)
	return s
}

//Personal.AI order the ending
