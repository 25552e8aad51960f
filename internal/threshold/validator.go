package threshold

import (
	"math"

	"reptilia-backend/internal/habitat"
)

func Validate(th habitat.Threshold) error {
	var details []habitat.ErrorDetail
	if th.SensorID == "" {
		details = append(details, habitat.ErrorDetail{Field: "sensor_id", Problem: "missing", Hint: "Threshold must name a sensor"})
	}
	fields := []struct {
		name  string
		value float64
	}{{"min", th.Min}, {"max", th.Max}, {"warning_min", th.WarningMin}, {"warning_max", th.WarningMax}, {"hysteresis", th.Hysteresis}}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			details = append(details, habitat.ErrorDetail{Field: f.name, Problem: "not finite", Hint: "Use a real number"})
		}
	}
	if th.Min > th.Max {
		details = append(details, habitat.ErrorDetail{Field: "min", Problem: "greater than max", Hint: "min <= max"})
	}
	if th.WarningMin > th.Min {
		details = append(details, habitat.ErrorDetail{Field: "warning_min", Problem: "greater than min", Hint: "warning_min <= min"})
	}
	if th.WarningMax < th.Max {
		details = append(details, habitat.ErrorDetail{Field: "warning_max", Problem: "less than max", Hint: "max <= warning_max"})
	}
	if th.Hysteresis < 0 {
		details = append(details, habitat.ErrorDetail{Field: "hysteresis", Problem: "negative", Hint: "hysteresis >= 0"})
	}
	switch th.ActiveIn {
	case "", habitat.ActiveDay, habitat.ActiveNight, habitat.ActiveAlways:
	default:
		details = append(details, habitat.ErrorDetail{Field: "active_in", Problem: "unsupported", Hint: "Use day, night or always"})
	}
	if len(details) > 0 {
		return &habitat.ValidationError{Code: habitat.CodeThresholdInvalid, Message: "threshold failed validation", Details: details}
	}
	return nil
}
