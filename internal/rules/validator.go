package rules

import (
	"fmt"
	"math"

	"reptilia-backend/internal/habitat"
)

// ValidateRule checks that a rule is well formed. Normalises an empty
// action_on_clear to none.
func ValidateRule(rule *habitat.Rule) error {
	var details []habitat.ErrorDetail
	if rule.ID == "" {
		details = append(details, habitat.ErrorDetail{Field: "rule_id", Problem: "missing", Hint: "Provide a rule id"})
	}
	if rule.SensorID == "" {
		details = append(details, habitat.ErrorDetail{Field: "sensor_id", Problem: "missing", Hint: "Provide the sensor the rule watches"})
	}
	if rule.OutletID == "" {
		details = append(details, habitat.ErrorDetail{Field: "outlet_id", Problem: "missing", Hint: "Provide the outlet the rule drives"})
	}
	switch rule.Operator {
	case habitat.OpLT, habitat.OpGT, habitat.OpLTE, habitat.OpGTE, habitat.OpEQ:
	default:
		details = append(details, habitat.ErrorDetail{Field: "trigger_operator", Problem: "unsupported", Hint: "Use lt, gt, lte, gte or eq"})
	}
	if math.IsNaN(rule.TriggerValue) || math.IsInf(rule.TriggerValue, 0) {
		details = append(details, habitat.ErrorDetail{Field: "trigger_value", Problem: "not finite", Hint: "Use a real number"})
	}
	if rule.ActionOnTrigger != habitat.ActionOn && rule.ActionOnTrigger != habitat.ActionOff {
		details = append(details, habitat.ErrorDetail{Field: "action_on_trigger", Problem: "unsupported", Hint: "Use on or off"})
	}
	if rule.ActionOnClear == "" {
		rule.ActionOnClear = habitat.ActionNone
	}
	switch rule.ActionOnClear {
	case habitat.ActionOn, habitat.ActionOff, habitat.ActionNone:
	default:
		details = append(details, habitat.ErrorDetail{Field: "action_on_clear", Problem: "unsupported", Hint: "Use on, off or none"})
	}
	if math.IsNaN(rule.Hysteresis) || math.IsInf(rule.Hysteresis, 0) || rule.Hysteresis < 0 {
		details = append(details, habitat.ErrorDetail{Field: "hysteresis", Problem: "invalid", Hint: "hysteresis >= 0"})
	}
	if rule.MinDurationSeconds < 0 {
		details = append(details, habitat.ErrorDetail{Field: "min_duration_seconds", Problem: "negative", Hint: "min_duration_seconds >= 0"})
	}
	if len(details) > 0 {
		return &habitat.ValidationError{Code: habitat.CodeRuleInvalid, Message: "rule failed validation", Details: details}
	}
	return nil
}

// CheckInventory reports references to devices the habitat does not own.
func CheckInventory(rule habitat.Rule, habitatID string, inv habitat.Inventory) error {
	var details []habitat.ErrorDetail
	if rule.HabitatID != "" && rule.HabitatID != habitatID {
		details = append(details, habitat.ErrorDetail{Field: "habitat_id", Problem: "mismatch", Hint: fmt.Sprintf("Rule belongs to %s", habitatID)})
	}
	if !inv.HasSensor(rule.SensorID) {
		details = append(details, habitat.ErrorDetail{Field: "sensor_id", Problem: "unknown sensor", Hint: rule.SensorID})
	}
	if !inv.HasOutlet(rule.OutletID) {
		details = append(details, habitat.ErrorDetail{Field: "outlet_id", Problem: "unknown outlet", Hint: rule.OutletID})
	}
	if len(details) > 0 {
		return &habitat.ValidationError{Code: habitat.CodeInconsistent, Message: "rule references unknown devices", Details: details}
	}
	return nil
}
