// Package marker maps an entity's semantic status to its visual treatment.
// The table is closed and pure: ResolveStyle never fails and keeps no state.
package marker

import (
	"github.com/turtacn/TRAXX-Intelligence/internal/domain/fleet"
	"github.com/turtacn/TRAXX-Intelligence/pkg/types/common"
)

// Style is the visual treatment of one marker.
type Style struct {
	Color   string `json:"color"`
	Glyph   string `json:"glyph"`
	Pulsing bool   `json:"pulsing"`
}

// Neutral is returned for any (kind, status) pair missing from the table.
var Neutral = Style{Color: "#9e9e9e", Glyph: "circle", Pulsing: false}

type key struct {
	kind   common.EntityKind
	status string
}

// styles is the full lookup table.  Pulsing is set only for in-procedure and
// awaiting-return trackers and for critical alerts.
var styles = map[key]Style{
	{common.KindTracker, string(fleet.PhaseInTransit)}:            {Color: "#1e88e5", Glyph: "truck", Pulsing: false},
	{common.KindTracker, string(fleet.PhaseAtFacility)}:           {Color: "#43a047", Glyph: "kit", Pulsing: false},
	{common.KindTracker, string(fleet.PhaseInProcedure)}:          {Color: "#8e24aa", Glyph: "scalpel", Pulsing: true},
	{common.KindTracker, string(fleet.PhaseAwaitingReturn)}:       {Color: "#fb8c00", Glyph: "hourglass", Pulsing: true},
	{common.KindTracker, string(fleet.PhaseAtDistributionCenter)}: {Color: "#546e7a", Glyph: "warehouse", Pulsing: false},
	{common.KindTracker, string(fleet.PhaseReturned)}:             {Color: "#78909c", Glyph: "check", Pulsing: false},

	{common.KindFacility, string(fleet.FacilityActive)}:         {Color: "#00897b", Glyph: "hospital", Pulsing: false},
	{common.KindFacility, string(fleet.FacilityNeedsAttention)}: {Color: "#f4511e", Glyph: "hospital-alert", Pulsing: false},

	{common.KindAlert, string(fleet.SeverityCritical)}: {Color: "#e53935", Glyph: "alert-octagon", Pulsing: true},
	{common.KindAlert, string(fleet.SeverityWarning)}:  {Color: "#fdd835", Glyph: "alert-triangle", Pulsing: false},
	{common.KindAlert, string(fleet.SeverityInfo)}:     {Color: "#29b6f6", Glyph: "info", Pulsing: false},
}

// ResolveStyle returns the style for (kind, status), or Neutral.
func ResolveStyle(kind common.EntityKind, status string) Style {
	if s, ok := styles[key{kind, status}]; ok {
		return s
	}
	return Neutral
}

// ForTracker resolves a tracker by its phase.
func ForTracker(t fleet.Tracker) Style {
	return ResolveStyle(common.KindTracker, string(t.Phase))
}

// ForFacility resolves a facility by its status.
func ForFacility(f fleet.Facility) Style {
	return ResolveStyle(common.KindFacility, string(f.Status))
}

// ForAlert resolves an alert by its severity.
func ForAlert(a fleet.Alert) Style {
	return ResolveStyle(common.KindAlert, string(a.Severity))
}

// ClusterBadge is the badge drawn for a cluster of one kind.  Kinds keep
// distinct badges so clusters of different kinds never look alike.
func ClusterBadge(kind common.EntityKind) Style {
	switch kind {
	case common.KindTracker:
		return Style{Color: "#1565c0", Glyph: "cluster-kits"}
	case common.KindFacility:
		return Style{Color: "#00695c", Glyph: "cluster-sites"}
	case common.KindAlert:
		return Style{Color: "#c62828", Glyph: "cluster-alerts"}
	}
	return Neutral
}

//Personal.AI order the ending
