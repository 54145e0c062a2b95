package ingestion

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/turtacn/TRAXX-Intelligence/internal/domain/fleet"
	"github.com/turtacn/TRAXX-Intelligence/pkg/types/common"
)

type metro struct {
	city   string
	region string
	lat    float64
	lng    float64
}

var metros = []metro{
	{"Boston", "Northeast", 42.3601, -71.0589},
	{"New York", "Northeast", 40.7128, -74.0060},
	{"Philadelphia", "Northeast", 39.9526, -75.1652},
	{"Atlanta", "Southeast", 33.7490, -84.3880},
	{"Miami", "Southeast", 25.7617, -80.1918},
	{"Nashville", "Southeast", 36.1627, -86.7816},
	{"Chicago", "Midwest", 41.8781, -87.6298},
	{"Minneapolis", "Midwest", 44.9778, -93.2650},
	{"St. Louis", "Midwest", 38.6270, -90.1994},
	{"Dallas", "South Central", 32.7767, -96.7970},
	{"Houston", "South Central", 29.7604, -95.3698},
	{"Denver", "Mountain", 39.7392, -104.9903},
	{"Phoenix", "Mountain", 33.4484, -112.0740},
	{"Seattle", "West", 47.6062, -122.3321},
	{"San Francisco", "West", 37.7749, -122.4194},
	{"Los Angeles", "West", 34.0522, -118.2437},
}

var kitTypes = []string{
	"Orthopedic Trauma", "Spinal Fusion", "Total Knee", "Total Hip",
	"Arthroscopy", "Cardiac Valve", "Neuro Shunt", "Hand & Wrist",
}

var distributionCenter = common.Coordinate{Lat: 39.0997, Lng: -94.5786}

// Generator produces a deterministic mock fleet: the same seed, counts and
// reference time always yield the same dataset.
type Generator struct {
	Seed       int64
	Trackers   int
	Facilities int
}

// Generate builds the dataset relative to now.
func (g Generator) Generate(now time.Time) Dataset {
	rng := rand.New(rand.NewSource(g.Seed))
	now = now.UTC().Truncate(time.Minute)

	var ds Dataset
	for i := 0; i < g.Facilities; i++ {
		m := metros[i%len(metros)]
		f := RawFacility{
			ID:                fmt.Sprintf("fac-%03d", i+1),
			Name:              fmt.Sprintf("%s %s", m.city, facilitySuffix(i)),
			Type:              string(fleet.FacilityHospital),
			Region:            m.region,
			Location:          jitter(rng, common.Coordinate{Lat: m.lat, Lng: m.lng}, 0.15),
			PendingProcedures: rng.Intn(12),
			Status:            string(fleet.FacilityActive),
		}
		if i%3 == 2 {
			f.Type = string(fleet.FacilityASC)
		}
		if rng.Float64() < 0.1 {
			f.Status = string(fleet.FacilityNeedsAttention)
		}
		ds.Facilities = append(ds.Facilities, f)
	}

	for i := 0; i < g.Trackers; i++ {
		ds.Trackers = append(ds.Trackers, g.tracker(rng, i, ds.Facilities, now))
	}
	return ds
}

func (g Generator) tracker(rng *rand.Rand, i int, facilities []RawFacility, now time.Time) RawTracker {
	kit := kitTypes[rng.Intn(len(kitTypes))]
	types := []fleet.TrackerType{fleet.TrackerMotionTemp, fleet.TrackerBluetooth, fleet.TrackerGPS, fleet.TrackerHybrid}
	conns := []fleet.Connectivity{fleet.ConnectivityExcellent, fleet.ConnectivityGood, fleet.ConnectivityGood, fleet.ConnectivityPoor}

	battery := 5 + rng.Intn(96)
	lastSeen := now.Add(-time.Duration(rng.Intn(6*60)) * time.Minute)
	expected := now.Add(time.Duration(rng.Intn(21*24)-7*24) * time.Hour)

	t := RawTracker{
		ID:                  fmt.Sprintf("trk-%04d", i+1),
		Name:                fmt.Sprintf("%s Kit %d", kit, i+1),
		KitType:             kit,
		TrackerType:         string(types[rng.Intn(len(types))]),
		BatteryPct:          &battery,
		Connectivity:        string(conns[rng.Intn(len(conns))]),
		LastTransmission:    &lastSeen,
		SterilizationCycles: rng.Intn(560),
		WashCycles:          rng.Intn(700),
		UsageCount:          rng.Intn(300),
		DaysAtLocation:      rng.Intn(14),
		ExpectedReturn:      &expected,
		Retired:             rng.Float64() < 0.02,
	}
	t.WashCycles += t.SterilizationCycles

	if n := rng.Intn(8) - 2; n > 0 {
		for d := 0; d < n; d++ {
			t.Drops = append(t.Drops, fleet.DropEvent{
				At:     now.Add(-time.Duration(rng.Intn(60*24)) * time.Hour),
				ForceG: 2 + float64(rng.Intn(180))/10,
			})
		}
	}
	if t.TrackerType == string(fleet.TrackerMotionTemp) || t.TrackerType == string(fleet.TrackerHybrid) {
		temp := 18 + float64(rng.Intn(300))/10
		if rng.Float64() < 0.05 {
			temp = -12 + float64(rng.Intn(80))/10
		}
		t.TemperatureC = &temp
	}

	var loc common.Coordinate
	phase := fleet.Phases[rng.Intn(len(fleet.Phases))]
	switch {
	case len(facilities) == 0 || phase == fleet.PhaseAtDistributionCenter || phase == fleet.PhaseReturned:
		loc = jitter(rng, distributionCenter, 0.05)
	case phase == fleet.PhaseInTransit:
		from := facilities[rng.Intn(len(facilities))]
		to := facilities[rng.Intn(len(facilities))]
		frac := rng.Float64()
		loc = common.Coordinate{
			Lat: from.Location.Lat + (to.Location.Lat-from.Location.Lat)*frac,
			Lng: from.Location.Lng + (to.Location.Lng-from.Location.Lng)*frac,
		}
		departed := now.Add(-time.Duration(1+rng.Intn(72)) * time.Hour)
		t.PreviousFacilityID = from.ID
		t.DepartedAt = &departed
	default:
		f := facilities[rng.Intn(len(facilities))]
		t.FacilityID = f.ID
		loc = jitter(rng, f.Location, 0.002)
	}
	t.Phase = string(phase)
	t.Location = &loc
	return t
}

func facilitySuffix(i int) string {
	switch i % 3 {
	case 0:
		return "General Hospital"
	case 1:
		return "Medical Center"
	}
	return "Surgery Center"
}

func jitter(rng *rand.Rand, c common.Coordinate, deg float64) common.Coordinate {
	return common.Coordinate{
		Lat: c.Lat + (rng.Float64()*2-1)*deg,
		Lng: c.Lng + (rng.Float64()*2-1)*deg,
	}
}

//Personal.AI order the ending
