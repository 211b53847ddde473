package classify

import (
	"errors"

	"github.com/getevidly/evidly-app-sub001/internal/thresholds"
)

// Condition is the compliance outcome for a single reading. The values form
// a total order: in_range < warning < violation. Stale sits outside the
// order; it reports absence of data, never "all clear".
type Condition string

const (
	CondInRange   Condition = "in_range"
	CondWarning   Condition = "warning"
	CondViolation Condition = "violation"
	CondStale     Condition = "stale"
)

// Rank orders conditions by badness for worse-of comparisons.
func (c Condition) Rank() int {
	switch c {
	case CondInRange:
		return 0
	case CondWarning:
		return 1
	case CondViolation, CondStale:
		return 2
	default:
		return 0
	}
}

// Worse returns the worse of two conditions.
func Worse(a, b Condition) Condition {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// ViolationKind is the category of threshold breach. Together with the
// sensor id it forms the alerting key.
type ViolationKind string

const (
	KindHighTemp    ViolationKind = "high_temp"
	KindLowTemp     ViolationKind = "low_temp"
	KindHumidity    ViolationKind = "humidity"
	KindStaleSensor ViolationKind = "stale_sensor"
)

// Result is the classification of one reading against one threshold.
type Result struct {
	Condition Condition
	// Kind is set when Condition is warning or violation; it names the
	// breached bound.
	Kind ViolationKind
	// CriticalOverride is true when the value sits past the threshold by
	// more than the zone's critical margin. It short-circuits the normal
	// escalation chain.
	CriticalOverride bool
}

// ErrDefrostCycle marks a reading excluded from classification because the
// sensor reported an in-progress defrost cycle.
var ErrDefrostCycle = errors.New("classify: defrost cycle in progress")

// Temperature classifies a temperature value against a zone threshold.
// Direction follows which bound is authoritative: upper-bounded zones treat
// "max exceeded" as bad, hot-holding treats "min not met" as bad.
func Temperature(valueF float64, threshold thresholds.ZoneThreshold) Result {
	if threshold.UpperBounded() {
		max := *threshold.MaxTempF
		switch {
		case valueF > max:
			return Result{
				Condition:        CondViolation,
				Kind:             KindHighTemp,
				CriticalOverride: threshold.CriticalMarginDeg > 0 && valueF > max+threshold.CriticalMarginDeg,
			}
		case valueF > max-threshold.WarningBufferDeg:
			return Result{Condition: CondWarning, Kind: KindHighTemp}
		default:
			return Result{Condition: CondInRange}
		}
	}

	min := *threshold.MinTempF
	switch {
	case valueF < min:
		return Result{
			Condition:        CondViolation,
			Kind:             KindLowTemp,
			CriticalOverride: threshold.CriticalMarginDeg > 0 && valueF < min-threshold.CriticalMarginDeg,
		}
	case valueF < min+threshold.WarningBufferDeg:
		return Result{Condition: CondWarning, Kind: KindLowTemp}
	default:
		return Result{Condition: CondInRange}
	}
}

// Humidity classifies a humidity value against the zone's ceiling, when set.
// The warning buffer for humidity reuses the temperature buffer expressed in
// percentage points.
func Humidity(valuePct float64, threshold thresholds.ZoneThreshold) Result {
	if threshold.MaxHumidityPct == nil {
		return Result{Condition: CondInRange}
	}
	max := *threshold.MaxHumidityPct
	switch {
	case valuePct > max:
		return Result{Condition: CondViolation, Kind: KindHumidity}
	case valuePct > max-threshold.WarningBufferDeg:
		return Result{Condition: CondWarning, Kind: KindHumidity}
	default:
		return Result{Condition: CondInRange}
	}
}

// Evaluate classifies a temperature plus optional humidity value against a
// threshold. The two dimensions are evaluated independently and the worse
// outcome wins; acceptable humidity never hides a temperature violation.
func Evaluate(temperatureF float64, humidityPct *float64, threshold thresholds.ZoneThreshold) (Result, error) {
	if err := threshold.Validate(); err != nil {
		return Result{}, err
	}
	result := Temperature(temperatureF, threshold)
	if humidityPct != nil {
		humidity := Humidity(*humidityPct, threshold)
		if humidity.Condition.Rank() > result.Condition.Rank() {
			result = humidity
		}
	}
	return result, nil
}
