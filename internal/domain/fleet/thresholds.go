package fleet

import (
	"fmt"
	"time"
)

// Threshold table.  Alert severity is a pure function of these values.
const (
	BatteryCriticalBelow = 15
	BatteryWarningBelow  = 30

	CyclesCriticalAt = 500
	CyclesWarningAt  = 400

	DropsCriticalAt = 5
	DropsWarningAt  = 3

	OverdueCriticalDays = 7

	TemperatureMinC           = 2.0
	TemperatureMaxC           = 40.0
	TemperatureCriticalMargin = 10.0
)

// Breach is one threshold crossing found on a tracker.
type Breach struct {
	Type     AlertType
	Severity Severity
	Message  string
}

// BatterySeverity grades a battery percentage.  ok is false above the warning
// threshold.
func BatterySeverity(pct int) (sev Severity, ok bool) {
	switch {
	case pct < BatteryCriticalBelow:
		return SeverityCritical, true
	case pct < BatteryWarningBelow:
		return SeverityWarning, true
	}
	return "", false
}

// CycleSeverity grades a sterilization cycle count.
func CycleSeverity(cycles int) (Severity, bool) {
	switch {
	case cycles >= CyclesCriticalAt:
		return SeverityCritical, true
	case cycles >= CyclesWarningAt:
		return SeverityWarning, true
	}
	return "", false
}

// DropSeverity grades a cumulative drop count.
func DropSeverity(drops int) (Severity, bool) {
	switch {
	case drops >= DropsCriticalAt:
		return SeverityCritical, true
	case drops >= DropsWarningAt:
		return SeverityWarning, true
	}
	return "", false
}

// OverdueSeverity grades a tracker's overdue state at now.
func OverdueSeverity(t Tracker, now time.Time) (Severity, bool) {
	if !t.IsOverdue(now) {
		return "", false
	}
	if t.OverdueDays(now) >= OverdueCriticalDays {
		return SeverityCritical, true
	}
	return SeverityWarning, true
}

// TemperatureSeverity grades a temperature reading in °C.
func TemperatureSeverity(c float64) (Severity, bool) {
	switch {
	case c < TemperatureMinC-TemperatureCriticalMargin || c > TemperatureMaxC+TemperatureCriticalMargin:
		return SeverityCritical, true
	case c < TemperatureMinC || c > TemperatureMaxC:
		return SeverityWarning, true
	}
	return "", false
}

// ThresholdRule evaluates one alert condition against a tracker.
type ThresholdRule struct {
	Type     AlertType
	Evaluate func(t Tracker, now time.Time) (Breach, bool)
}

// DefaultThresholdRules is the closed set of alert conditions, checked in
// order during ingestion.
var DefaultThresholdRules = []ThresholdRule{
	{
		Type: AlertLowBattery,
		Evaluate: func(t Tracker, _ time.Time) (Breach, bool) {
			sev, ok := BatterySeverity(t.BatteryPct)
			if !ok {
				return Breach{}, false
			}
			return Breach{AlertLowBattery, sev, fmt.Sprintf("Battery at %d%% on %s", t.BatteryPct, t.ID)}, true
		},
	},
	{
		Type: AlertOverdueReturn,
		Evaluate: func(t Tracker, now time.Time) (Breach, bool) {
			sev, ok := OverdueSeverity(t, now)
			if !ok {
				return Breach{}, false
			}
			return Breach{AlertOverdueReturn, sev, fmt.Sprintf("%s is %d day(s) past expected return", t.ID, t.OverdueDays(now))}, true
		},
	},
	{
		Type: AlertHighCycleCount,
		Evaluate: func(t Tracker, _ time.Time) (Breach, bool) {
			sev, ok := CycleSeverity(t.SterilizationCycles)
			if !ok {
				return Breach{}, false
			}
			return Breach{AlertHighCycleCount, sev, fmt.Sprintf("%s has %d sterilization cycles", t.ID, t.SterilizationCycles)}, true
		},
	},
	{
		Type: AlertMultipleDrops,
		Evaluate: func(t Tracker, _ time.Time) (Breach, bool) {
			sev, ok := DropSeverity(t.DropCount())
			if !ok {
				return Breach{}, false
			}
			return Breach{AlertMultipleDrops, sev, fmt.Sprintf("%s recorded %d drop events (max %.1fg)", t.ID, t.DropCount(), t.MaxDropForce())}, true
		},
	},
	{
		Type: AlertTemperature,
		Evaluate: func(t Tracker, _ time.Time) (Breach, bool) {
			if t.TemperatureC == nil {
				return Breach{}, false
			}
			sev, ok := TemperatureSeverity(*t.TemperatureC)
			if !ok {
				return Breach{}, false
			}
			return Breach{AlertTemperature, sev, fmt.Sprintf("%s reads %.1f°C", t.ID, *t.TemperatureC)}, true
		},
	},
}

// EvaluateThresholds runs every rule against t and returns the breaches.
func EvaluateThresholds(t Tracker, now time.Time) []Breach {
	var out []Breach
	for _, r := range DefaultThresholdRules {
		if b, ok := r.Evaluate(t, now); ok {
			out = append(out, b)
		}
	}
	return out
}

// Grade evaluates the single rule for typ.  ok is false for generic alerts
// and for conditions t no longer breaches.
func Grade(t Tracker, typ AlertType, now time.Time) (Breach, bool) {
	for _, r := range DefaultThresholdRules {
		if r.Type == typ {
			return r.Evaluate(t, now)
		}
	}
	return Breach{}, false
}

//Personal.AI order the ending
