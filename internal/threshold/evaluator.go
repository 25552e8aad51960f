package threshold

import (
	"fmt"
	"math"
	"time"

	"reptilia-backend/internal/habitat"
)

type Result struct {
	Status habitat.Status
	// Raw ignores hysteresis: ok whenever min <= value <= max.
	Raw      habitat.Status
	Level    habitat.Severity
	Bound    string
	BoundVal float64
}

// ViolatedBound renders the bound for alert messages, e.g. "min=31".
func (r Result) ViolatedBound() string {
	if r.Bound == "" {
		return ""
	}
	return fmt.Sprintf("%s=%g", r.Bound, r.BoundVal)
}

// Stale reports whether a reading taken at ts is too old to act on at now.
// A zero window disables the check.
func Stale(ts, now time.Time, window time.Duration) bool {
	return window > 0 && now.Sub(ts) > window
}

// Evaluate classifies a reading against a threshold. prev is the status
// returned for the previous valid reading of the same zone; callers must not
// feed an unknown result back as prev.
func Evaluate(reading habitat.Reading, th habitat.Threshold, prev habitat.Status, now time.Time, staleAfter time.Duration) Result {
	if !reading.Valid || math.IsNaN(reading.Value) || math.IsInf(reading.Value, 0) || Stale(reading.Timestamp, now, staleAfter) {
		return Result{Status: habitat.StatusUnknown, Raw: habitat.StatusUnknown}
	}
	v := reading.Value
	raw := habitat.StatusOK
	switch {
	case v < th.Min:
		raw = habitat.StatusTooLow
	case v > th.Max:
		raw = habitat.StatusTooHigh
	}
	status := raw
	switch {
	case prev == habitat.StatusTooLow && raw != habitat.StatusTooHigh && v < th.Min+th.Hysteresis:
		status = habitat.StatusTooLow
	case prev == habitat.StatusTooHigh && raw != habitat.StatusTooLow && v > th.Max-th.Hysteresis:
		status = habitat.StatusTooHigh
	}
	res := Result{Status: status, Raw: raw}
	switch status {
	case habitat.StatusTooLow:
		res.Bound, res.BoundVal = "min", th.Min
		switch {
		case v < th.WarningMin:
			res.Level, res.Bound, res.BoundVal = habitat.SeverityCritical, "warning_min", th.WarningMin
		case v < th.Min:
			res.Level = habitat.SeverityWarning
		default:
			res.Level = habitat.SeverityInfo
		}
	case habitat.StatusTooHigh:
		res.Bound, res.BoundVal = "max", th.Max
		switch {
		case v > th.WarningMax:
			res.Level, res.Bound, res.BoundVal = habitat.SeverityCritical, "warning_max", th.WarningMax
		case v > th.Max:
			res.Level = habitat.SeverityWarning
		default:
			res.Level = habitat.SeverityInfo
		}
	}
	return res
}
