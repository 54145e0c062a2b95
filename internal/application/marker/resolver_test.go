package marker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/turtacn/TRAXX-Intelligence/internal/domain/fleet"
	"github.com/turtacn/TRAXX-Intelligence/pkg/types/common"
)

func TestResolveStyle_PulsingSetIsClosed(t *testing.T) {
	pulsing := map[key]bool{
		{common.KindTracker, string(fleet.PhaseInProcedure)}:    true,
		{common.KindTracker, string(fleet.PhaseAwaitingReturn)}: true,
		{common.KindAlert, string(fleet.SeverityCritical)}:      true,
	}
	for k := range styles {
		assert.Equal(t, pulsing[k], ResolveStyle(k.kind, k.status).Pulsing, "%s/%s", k.kind, k.status)
	}
}

func TestResolveStyle_EveryKnownStatusHasEntry(t *testing.T) {
	for _, p := range fleet.Phases {
		assert.NotEqual(t, Neutral, ResolveStyle(common.KindTracker, string(p)), p)
	}
	for _, s := range []fleet.FacilityStatus{fleet.FacilityActive, fleet.FacilityNeedsAttention} {
		assert.NotEqual(t, Neutral, ResolveStyle(common.KindFacility, string(s)), s)
	}
	for _, s := range []fleet.Severity{fleet.SeverityCritical, fleet.SeverityWarning, fleet.SeverityInfo} {
		assert.NotEqual(t, Neutral, ResolveStyle(common.KindAlert, string(s)), s)
	}
}

func TestResolveStyle_TotalOverUnknownInputs(t *testing.T) {
	inputs := []struct {
		kind   common.EntityKind
		status string
	}{
		{common.KindTracker, ""},
		{common.KindTracker, "teleported"},
		{common.KindFacility, "closed"},
		{common.KindAlert, "catastrophic"},
		{common.EntityKind("drone"), "in_transit"},
		{"", ""},
		{common.KindFacility, string(fleet.PhaseInTransit)},
	}
	for _, in := range inputs {
		var got Style
		assert.NotPanics(t, func() { got = ResolveStyle(in.kind, in.status) })
		assert.Equal(t, Neutral, got)
		assert.NotEmpty(t, got.Color)
		assert.NotEmpty(t, got.Glyph)
	}
}

func TestResolveStyle_Deterministic(t *testing.T) {
	a := ResolveStyle(common.KindAlert, string(fleet.SeverityCritical))
	b := ResolveStyle(common.KindAlert, string(fleet.SeverityCritical))
	assert.Equal(t, a, b)
}

func TestEntityHelpers(t *testing.T) {
	assert.True(t, ForTracker(fleet.Tracker{Phase: fleet.PhaseInProcedure}).Pulsing)
	assert.False(t, ForTracker(fleet.Tracker{Phase: fleet.PhaseInTransit}).Pulsing)
	assert.True(t, ForAlert(fleet.Alert{Severity: fleet.SeverityCritical}).Pulsing)
	assert.Equal(t, "hospital-alert", ForFacility(fleet.Facility{Status: fleet.FacilityNeedsAttention}).Glyph)
	assert.Equal(t, Neutral, ForFacility(fleet.Facility{}))
}

func TestClusterBadge_DistinctPerKind(t *testing.T) {
	seen := map[Style]bool{}
	for _, k := range common.Kinds {
		b := ClusterBadge(k)
		assert.False(t, seen[b], k)
		seen[b] = true
	}
	assert.Equal(t, Neutral, ClusterBadge("drone"))
}

//Personal.AI order the ending
