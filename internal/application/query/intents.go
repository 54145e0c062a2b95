package query

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/turtacn/TRAXX-Intelligence/internal/domain/fleet"
	"github.com/turtacn/TRAXX-Intelligence/pkg/types/common"
)

// Intent names, in table order.
const (
	IntentCriticalAlerts = "critical_alerts"
	IntentBattery        = "battery"
	IntentInTransit      = "in_transit"
	IntentSterilization  = "sterilization"
	IntentDrops          = "drops"
	IntentOverdue        = "overdue"
	IntentUtilization    = "utilization"
	IntentConnectivity   = "connectivity"
	IntentSummary        = "summary"
)

// ============================================================================
// Intent table
// ============================================================================

// view is what a handler reads.
type view struct {
	snap    *fleet.Snapshot
	now     time.Time
	maxRows int
	live    *ContextSummary
}

type intent struct {
	name     string
	keywords []*regexp.Regexp
	// answer renders the local reply.
	answer func(v view) string
	// targets lists the entities the intent points at, most urgent first.
	targets func(v view) []ActionableItem
}

func (in intent) matches(text string) bool {
	for _, re := range in.keywords {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// words compiles keywords that match at the start of a word, so "drop"
// also matches "drops" and "dropped".
func words(kw ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(kw))
	for i, k := range kw {
		out[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(k))
	}
	return out
}

// intents is checked in order; the first match answers.  The summary entry
// has no keywords and catches everything else.
var intents = []intent{
	{IntentCriticalAlerts, words("critical", "urgent", "severe", "emergenc"), answerCritical, targetsCritical},
	{IntentBattery, words("battery", "batteries", "charge", "power level"), answerBattery, targetsBattery},
	{IntentInTransit, words("in transit", "in-transit", "transit", "shipping", "shipment", "en route"), answerInTransit, targetsInTransit},
	{IntentSterilization, words("steriliz", "sterilis", "autoclave", "cycle", "wash"), answerSterilization, targetsSterilization},
	{IntentDrops, words("drop", "shock", "impact", "damage"), answerDrops, targetsDrops},
	{IntentOverdue, words("overdue", "past due", "return"), answerOverdue, targetsOverdue},
	{IntentUtilization, words("utiliz", "utilis", "usage", "in use", "procedure", "idle"), answerUtilization, targetsUtilization},
	{IntentConnectivity, words("connectiv", "signal", "offline", "network", "connection"), answerConnectivity, targetsConnectivity},
	{IntentSummary, nil, answerSummary, nil},
}

// Classify returns the intent that answers question.
func Classify(question string) string {
	return classify(question).name
}

func classify(question string) intent {
	for _, in := range intents {
		if in.keywords == nil || in.matches(question) {
			return in
		}
	}
	return intents[len(intents)-1]
}

// ============================================================================
// Analyzer
// ============================================================================

// Analyzer answers questions from a snapshot alone.
type Analyzer struct {
	maxRows  int
	maxItems int
}

// NewAnalyzer lists at most maxRows entities in a reply and attaches at most
// maxItems actionable items per matched intent.
func NewAnalyzer(maxRows, maxItems int) *Analyzer {
	if maxRows < 1 {
		maxRows = 8
	}
	if maxItems < 1 {
		maxItems = 3
	}
	return &Analyzer{maxRows: maxRows, maxItems: maxItems}
}

// Answer picks the first matching intent and renders its reply.
func (a *Analyzer) Answer(snap *fleet.Snapshot, question string, now time.Time, live *ContextSummary) (string, string) {
	in := classify(question)
	return in.name, in.answer(view{snap: snap, now: now, maxRows: a.maxRows, live: live})
}

// Actionable scans every text for intent keywords and attaches up to
// maxItems entities per matched intent, in table order.  An entity is listed
// once even when several intents point at it.
func (a *Analyzer) Actionable(snap *fleet.Snapshot, now time.Time, texts ...string) []ActionableItem {
	joined := strings.Join(texts, "\n")
	v := view{snap: snap, now: now, maxRows: a.maxRows}

	seen := make(map[string]bool)
	out := []ActionableItem{}
	for _, in := range intents {
		if in.targets == nil || !in.matches(joined) {
			continue
		}
		n := 0
		for _, item := range in.targets(v) {
			if n == a.maxItems {
				break
			}
			key := string(item.Kind) + "/" + item.ID
			if seen[key] {
				continue
			}
			seen[key] = true
			item.Intent = in.name
			out = append(out, item)
			n++
		}
	}
	return out
}

// ============================================================================
// Handlers
// ============================================================================

func activeTrackers(snap *fleet.Snapshot) []fleet.Tracker {
	var out []fleet.Tracker
	for _, t := range snap.Trackers() {
		if !t.Retired {
			out = append(out, t)
		}
	}
	return out
}

func trackerItem(t fleet.Tracker) ActionableItem {
	return ActionableItem{Kind: common.KindTracker, ID: t.ID, Label: t.Label()}
}

func trackerItems(ts []fleet.Tracker) []ActionableItem {
	out := make([]ActionableItem, len(ts))
	for i, t := range ts {
		out[i] = trackerItem(t)
	}
	return out
}

// list renders numbered lines up to maxRows plus a "+N more" tail.
func list(n, maxRows int, line func(i int) string) string {
	var b strings.Builder
	for i := 0; i < n && i < maxRows; i++ {
		fmt.Fprintf(&b, "\n%d. %s", i+1, line(i))
	}
	if n > maxRows {
		fmt.Fprintf(&b, "\n+%d more", n-maxRows)
	}
	return b.String()
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d/time.Minute))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh", int(d/time.Hour))
	}
	return fmt.Sprintf("%dd", int(d/(24*time.Hour)))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func facilityName(snap *fleet.Snapshot, id string) string {
	if f, ok := snap.Facility(id); ok {
		return f.Label()
	}
	return ""
}

// ── critical alerts ─────────────────────────────────────────────────────────

func criticalAlerts(snap *fleet.Snapshot) []fleet.Alert {
	var out []fleet.Alert
	for _, al := range snap.OpenAlerts() {
		if al.Severity == fleet.SeverityCritical {
			out = append(out, al)
		}
	}
	return out
}

// answerCritical lists alerts by id, subject and site only; the alert type
// stays out of the text so it does not pull other intents into the
// actionable scan.
func answerCritical(v view) string {
	alerts := criticalAlerts(v.snap)
	if len(alerts) == 0 {
		return fmt.Sprintf("No open critical alerts right now. %d other open %s.",
			len(v.snap.OpenAlerts()), plural(len(v.snap.OpenAlerts()), "alert", "alerts"))
	}
	head := fmt.Sprintf("%d open critical %s, newest first:", len(alerts), plural(len(alerts), "alert", "alerts"))
	return head + list(len(alerts), v.maxRows, func(i int) string {
		al := alerts[i]
		subject := al.TrackerID
		if t, ok := v.snap.Tracker(al.TrackerID); ok {
			subject = t.Label()
		}
		where := "in the field"
		if name := facilityName(v.snap, al.FacilityID); name != "" {
			where = "at " + name
		}
		return fmt.Sprintf("%s: %s %s (%s ago)", al.ID, subject, where, formatAge(v.now.Sub(al.CreatedAt)))
	})
}

func targetsCritical(v view) []ActionableItem {
	alerts := criticalAlerts(v.snap)
	out := make([]ActionableItem, len(alerts))
	for i, al := range alerts {
		out[i] = ActionableItem{Kind: common.KindAlert, ID: al.ID, Label: al.Label()}
	}
	return out
}

// ── battery ─────────────────────────────────────────────────────────────────

func lowBattery(snap *fleet.Snapshot) (critical, low []fleet.Tracker) {
	for _, t := range activeTrackers(snap) {
		sev, ok := fleet.BatterySeverity(t.BatteryPct)
		switch {
		case !ok:
		case sev == fleet.SeverityCritical:
			critical = append(critical, t)
		default:
			low = append(low, t)
		}
	}
	byBattery := func(ts []fleet.Tracker) {
		sort.SliceStable(ts, func(i, j int) bool {
			if ts[i].BatteryPct != ts[j].BatteryPct {
				return ts[i].BatteryPct < ts[j].BatteryPct
			}
			return ts[i].ID < ts[j].ID
		})
	}
	byBattery(critical)
	byBattery(low)
	return critical, low
}

func answerBattery(v view) string {
	st := v.snap.Stats(v.now)
	critical, low := lowBattery(v.snap)
	text := fmt.Sprintf("Battery status across %d active kits: %d critical (below %d%%), %d low (below %d%%), average %.0f%%.",
		st.ActiveTrackers, len(critical), fleet.BatteryCriticalBelow, len(low), fleet.BatteryWarningBelow, st.AvgBatteryPct)
	if len(critical) == 0 {
		return text
	}
	return text + "\nNeeds charging now:" + list(len(critical), v.maxRows, func(i int) string {
		return fmt.Sprintf("%s at %d%%", critical[i].Label(), critical[i].BatteryPct)
	})
}

func targetsBattery(v view) []ActionableItem {
	critical, low := lowBattery(v.snap)
	return trackerItems(append(critical, low...))
}

// ── in transit ──────────────────────────────────────────────────────────────

func inTransit(snap *fleet.Snapshot) []fleet.Tracker {
	var out []fleet.Tracker
	for _, t := range activeTrackers(snap) {
		if t.Phase == fleet.PhaseInTransit {
			out = append(out, t)
		}
	}
	// longest on the road first; unknown departures last
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].DepartedAt, out[j].DepartedAt
		if a.IsZero() != b.IsZero() {
			return b.IsZero()
		}
		if !a.Equal(b) {
			return a.Before(b)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func answerInTransit(v view) string {
	moving := inTransit(v.snap)
	if len(moving) == 0 {
		return "No kits are in transit right now."
	}
	head := fmt.Sprintf("%d %s in transit:", len(moving), plural(len(moving), "kit is", "kits are"))
	return head + list(len(moving), v.maxRows, func(i int) string {
		t := moving[i]
		line := t.Label()
		if name := facilityName(v.snap, t.PreviousFacilityID); name != "" {
			line += " from " + name
		}
		if !t.DepartedAt.IsZero() {
			line += fmt.Sprintf(", departed %s ago", formatAge(v.now.Sub(t.DepartedAt)))
		}
		return line
	})
}

func targetsInTransit(v view) []ActionableItem { return trackerItems(inTransit(v.snap)) }

// ── sterilization cycles ────────────────────────────────────────────────────

func highCycles(snap *fleet.Snapshot) (replace, inspect []fleet.Tracker) {
	var all []fleet.Tracker
	for _, t := range activeTrackers(snap) {
		if _, ok := fleet.CycleSeverity(t.SterilizationCycles); ok {
			all = append(all, t)
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].SterilizationCycles != all[j].SterilizationCycles {
			return all[i].SterilizationCycles > all[j].SterilizationCycles
		}
		return all[i].ID < all[j].ID
	})
	for _, t := range all {
		if sev, _ := fleet.CycleSeverity(t.SterilizationCycles); sev == fleet.SeverityCritical {
			replace = append(replace, t)
		} else {
			inspect = append(inspect, t)
		}
	}
	return replace, inspect
}

func answerSterilization(v view) string {
	active := activeTrackers(v.snap)
	replace, inspect := highCycles(v.snap)
	var sum int
	for _, t := range active {
		sum += t.SterilizationCycles
	}
	avg := 0.0
	if len(active) > 0 {
		avg = float64(sum) / float64(len(active))
	}
	text := fmt.Sprintf("%d kits at or above %d sterilization cycles (replace) and %d at or above %d (inspect). Fleet average %.0f cycles.",
		len(replace), fleet.CyclesCriticalAt, len(inspect), fleet.CyclesWarningAt, avg)
	flagged := append(replace, inspect...)
	if len(flagged) == 0 {
		return text
	}
	return text + list(len(flagged), v.maxRows, func(i int) string {
		return fmt.Sprintf("%s: %d cycles", flagged[i].Label(), flagged[i].SterilizationCycles)
	})
}

func targetsSterilization(v view) []ActionableItem {
	replace, inspect := highCycles(v.snap)
	return trackerItems(append(replace, inspect...))
}

// ── drops and shocks ────────────────────────────────────────────────────────

func dropped(snap *fleet.Snapshot) []fleet.Tracker {
	var out []fleet.Tracker
	for _, t := range activeTrackers(snap) {
		if _, ok := fleet.DropSeverity(t.DropCount()); ok {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DropCount() != out[j].DropCount() {
			return out[i].DropCount() > out[j].DropCount()
		}
		if out[i].MaxDropForce() != out[j].MaxDropForce() {
			return out[i].MaxDropForce() > out[j].MaxDropForce()
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func answerDrops(v view) string {
	flagged := dropped(v.snap)
	var severe int
	for _, t := range flagged {
		if t.DropCount() >= fleet.DropsCriticalAt {
			severe++
		}
	}
	text := fmt.Sprintf("%d kits with %d+ drop events and %d with %d-%d.",
		severe, fleet.DropsCriticalAt, len(flagged)-severe, fleet.DropsWarningAt, fleet.DropsCriticalAt-1)
	if len(flagged) == 0 {
		return text
	}
	return text + list(len(flagged), v.maxRows, func(i int) string {
		t := flagged[i]
		return fmt.Sprintf("%s: %d drops, peak %.1fg", t.Label(), t.DropCount(), t.MaxDropForce())
	})
}

func targetsDrops(v view) []ActionableItem { return trackerItems(dropped(v.snap)) }

// ── overdue returns ─────────────────────────────────────────────────────────

func overdue(snap *fleet.Snapshot, now time.Time) []fleet.Tracker {
	var out []fleet.Tracker
	for _, t := range activeTrackers(snap) {
		if t.IsOverdue(now) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ExpectedReturn.Equal(out[j].ExpectedReturn) {
			return out[i].ExpectedReturn.Before(out[j].ExpectedReturn)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func answerOverdue(v view) string {
	late := overdue(v.snap, v.now)
	if len(late) == 0 {
		return "No kits are overdue for return."
	}
	var severe int
	for _, t := range late {
		if t.OverdueDays(v.now) >= fleet.OverdueCriticalDays {
			severe++
		}
	}
	head := fmt.Sprintf("%d %s overdue for return (%d by %d+ days):",
		len(late), plural(len(late), "kit is", "kits are"), severe, fleet.OverdueCriticalDays)
	return head + list(len(late), v.maxRows, func(i int) string {
		t := late[i]
		line := fmt.Sprintf("%s: %d %s overdue", t.Label(), t.OverdueDays(v.now), plural(t.OverdueDays(v.now), "day", "days"))
		if name := facilityName(v.snap, t.FacilityID); name != "" {
			line += " at " + name
		}
		return line
	})
}

func targetsOverdue(v view) []ActionableItem { return trackerItems(overdue(v.snap, v.now)) }

// ── utilization ─────────────────────────────────────────────────────────────

type siteLoad struct {
	f     fleet.Facility
	count int
}

func busiestSites(snap *fleet.Snapshot) []siteLoad {
	var out []siteLoad
	for _, f := range snap.Facilities() {
		if n := snap.AssetCount(f.ID); n > 0 {
			out = append(out, siteLoad{f, n})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].f.ID < out[j].f.ID
	})
	return out
}

func answerUtilization(v view) string {
	st := v.snap.Stats(v.now)
	inProcedure := st.ByPhase[fleet.PhaseInProcedure]
	onSite := st.ByPhase[fleet.PhaseAtFacility]
	text := fmt.Sprintf("Utilization is %.0f%%: %d of %d active kits are deployed (%d in procedure, %d on site).",
		st.Utilization*100, inProcedure+onSite, st.ActiveTrackers, inProcedure, onSite)
	sites := busiestSites(v.snap)
	if len(sites) == 0 {
		return text
	}
	return text + "\nBusiest sites:" + list(len(sites), v.maxRows, func(i int) string {
		return fmt.Sprintf("%s: %d %s", sites[i].f.Label(), sites[i].count, plural(sites[i].count, "kit", "kits"))
	})
}

func targetsUtilization(v view) []ActionableItem {
	sites := busiestSites(v.snap)
	out := make([]ActionableItem, len(sites))
	for i, s := range sites {
		out[i] = ActionableItem{Kind: common.KindFacility, ID: s.f.ID, Label: s.f.Label()}
	}
	return out
}

// ── connectivity ────────────────────────────────────────────────────────────

func poorlyConnected(snap *fleet.Snapshot) []fleet.Tracker {
	var out []fleet.Tracker
	for _, t := range activeTrackers(snap) {
		if t.Connectivity == fleet.ConnectivityPoor {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].LastTransmission.Equal(out[j].LastTransmission) {
			return out[i].LastTransmission.Before(out[j].LastTransmission)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func answerConnectivity(v view) string {
	counts := make(map[fleet.Connectivity]int)
	for _, t := range activeTrackers(v.snap) {
		counts[t.Connectivity]++
	}
	poor := poorlyConnected(v.snap)
	text := fmt.Sprintf("%d kits report poor connectivity; %d good, %d excellent.",
		len(poor), counts[fleet.ConnectivityGood], counts[fleet.ConnectivityExcellent])
	if len(poor) == 0 {
		return text
	}
	return text + list(len(poor), v.maxRows, func(i int) string {
		t := poor[i]
		if t.LastTransmission.IsZero() {
			return t.Label() + ": never heard from"
		}
		return fmt.Sprintf("%s: last heard %s ago", t.Label(), formatAge(v.now.Sub(t.LastTransmission)))
	})
}

func targetsConnectivity(v view) []ActionableItem { return trackerItems(poorlyConnected(v.snap)) }

// ── summary ─────────────────────────────────────────────────────────────────

func answerSummary(v view) string {
	st := v.snap.Stats(v.now)
	text := fmt.Sprintf("Fleet summary: %d active kits across %d facilities. %d open alerts (%d critical). %d overdue, %d with low battery. Utilization %.0f%%.",
		st.ActiveTrackers, st.Facilities, st.OpenAlerts, st.OpenBySeverity[fleet.SeverityCritical],
		st.Overdue, st.CriticalBattery+st.LowBattery, st.Utilization*100)
	if v.live != nil && (v.live.Kits > 0 || v.live.Alerts > 0) {
		text += fmt.Sprintf(" Live feed reports %d kits and %d alerts.", v.live.Kits, v.live.Alerts)
	}
	return text
}

//Personal.AI order the ending
