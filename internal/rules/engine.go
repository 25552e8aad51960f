package rules

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"reptilia-backend/internal/habitat"
)

const eqEpsilon = 0.001

// Engine owns the automation rules of one habitat. It is not safe for
// concurrent use; the habitat aggregate serialises access.
//
// Rules targeting the same outlet are not arbitrated: each firing rule emits
// its own command in registration order and the outlet sees the last write.
type Engine struct {
	habitatID string
	inv       habitat.Inventory
	order     []string
	rules     map[string]*habitat.Rule
	locked    map[string]bool
}

func NewEngine(habitatID string, inv habitat.Inventory) *Engine {
	return &Engine{
		habitatID: habitatID,
		inv:       inv,
		rules:     map[string]*habitat.Rule{},
		locked:    map[string]bool{},
	}
}

// Register validates and appends a rule. Runtime fields on the rule are kept,
// so persisted rules resume where they left off.
func (e *Engine) Register(rule habitat.Rule) error {
	if err := ValidateRule(&rule); err != nil {
		return err
	}
	if err := CheckInventory(rule, e.habitatID, e.inv); err != nil {
		return err
	}
	if _, ok := e.rules[rule.ID]; ok {
		return &habitat.ValidationError{
			Code:    habitat.CodeRuleInvalid,
			Message: "rule failed validation",
			Details: []habitat.ErrorDetail{{Field: "rule_id", Problem: "duplicate", Hint: rule.ID}},
		}
	}
	rule = copyRule(rule)
	rule.HabitatID = e.habitatID
	e.rules[rule.ID] = &rule
	e.order = append(e.order, rule.ID)
	return nil
}

// Restore registers every rule it can and returns the rejections.
func (e *Engine) Restore(rules []habitat.Rule) []error {
	var errs []error
	for _, r := range rules {
		if err := e.Register(r); err != nil {
			errs = append(errs, fmt.Errorf("rule %s: %w", r.ID, err))
		}
	}
	return errs
}

func (e *Engine) Has(id string) bool {
	_, ok := e.rules[id]
	return ok
}

func (e *Engine) Get(id string) (habitat.Rule, bool) {
	r, ok := e.rules[id]
	if !ok {
		return habitat.Rule{}, false
	}
	return copyRule(*r), true
}

func (e *Engine) Rules() []habitat.Rule {
	out := make([]habitat.Rule, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, copyRule(*e.rules[id]))
	}
	return out
}

func (e *Engine) SetEnabled(id string, enabled bool) error {
	r, ok := e.rules[id]
	if !ok {
		return habitat.ErrNotFound
	}
	r.Enabled = enabled
	return nil
}

// SetTagEnabled flips every rule carrying tag and returns the ids it changed.
func (e *Engine) SetTagEnabled(tag string, enabled bool) []string {
	changed := []string{}
	for _, id := range e.order {
		r := e.rules[id]
		if r.Tag == tag && r.Enabled != enabled {
			r.Enabled = enabled
			changed = append(changed, id)
		}
	}
	return changed
}

func (e *Engine) Remove(id string) bool {
	if _, ok := e.rules[id]; !ok {
		return false
	}
	delete(e.rules, id)
	for i, rid := range e.order {
		if rid == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	return true
}

// RetireAll drops every rule, used when the habitat is deleted.
func (e *Engine) RetireAll() {
	e.rules = map[string]*habitat.Rule{}
	e.order = nil
}

// LockOn suppresses "on" commands to the given outlets until UnlockOn. Rules
// whose last command switched a locked outlet on are flagged so they re-derive
// it once the lock is lifted.
func (e *Engine) LockOn(outlets ...string) {
	for _, o := range outlets {
		if o != "" {
			e.locked[o] = true
		}
	}
	for _, r := range e.rules {
		if e.locked[r.OutletID] && r.LastAction == habitat.ActionOn {
			r.RetryPending = true
		}
	}
}

func (e *Engine) UnlockOn() {
	e.locked = map[string]bool{}
}

// MarkFailed makes the next Process call re-derive the rule's last command.
func (e *Engine) MarkFailed(id string) {
	if r, ok := e.rules[id]; ok && r.LastAction != "" && r.LastAction != habitat.ActionNone {
		r.RetryPending = true
	}
}

func (e *Engine) Process(reading habitat.Reading, now time.Time) []habitat.OutletCommand {
	if !reading.Valid || math.IsNaN(reading.Value) || math.IsInf(reading.Value, 0) {
		return nil
	}
	cmds := []habitat.OutletCommand{}
	for _, id := range e.order {
		r := e.rules[id]
		if !r.Enabled || r.SensorID != reading.SensorID {
			continue
		}
		if cmd, ok := e.step(r, reading.Value, now); ok {
			cmds = append(cmds, cmd)
		}
	}
	return cmds
}

func (e *Engine) step(r *habitat.Rule, v float64, now time.Time) (habitat.OutletCommand, bool) {
	if r.CurrentlyTriggered {
		if holdsWithHysteresis(*r, v) {
			return e.retry(r, now)
		}
		r.CurrentlyTriggered = false
		r.ConditionSince = nil
		if r.ActionOnClear == habitat.ActionNone {
			r.LastAction = habitat.ActionNone
			r.RetryPending = false
			return habitat.OutletCommand{}, false
		}
		return e.emit(r, r.ActionOnClear, now)
	}
	if !holds(*r, v) {
		r.ConditionSince = nil
		return e.retry(r, now)
	}
	if r.ConditionSince == nil {
		since := now
		r.ConditionSince = &since
	}
	if now.Sub(*r.ConditionSince) < r.MinDuration() {
		return e.retry(r, now)
	}
	fired := now
	r.CurrentlyTriggered = true
	r.LastTriggeredAt = &fired
	return e.emit(r, r.ActionOnTrigger, now)
}

func (e *Engine) retry(r *habitat.Rule, now time.Time) (habitat.OutletCommand, bool) {
	if !r.RetryPending || r.LastAction == "" || r.LastAction == habitat.ActionNone {
		return habitat.OutletCommand{}, false
	}
	return e.emit(r, r.LastAction, now)
}

func (e *Engine) emit(r *habitat.Rule, action habitat.Action, now time.Time) (habitat.OutletCommand, bool) {
	r.LastAction = action
	if action == habitat.ActionOn && e.locked[r.OutletID] {
		r.RetryPending = true
		return habitat.OutletCommand{}, false
	}
	r.RetryPending = false
	return habitat.OutletCommand{
		ID:           uuid.NewString(),
		HabitatID:    e.habitatID,
		OutletID:     r.OutletID,
		DesiredState: habitat.OutletState(action),
		Reason:       "automation: " + r.ID,
		TriggeredBy:  r.ID,
		Timestamp:    now,
	}, true
}

func holds(r habitat.Rule, v float64) bool {
	switch r.Operator {
	case habitat.OpLT:
		return v < r.TriggerValue
	case habitat.OpGT:
		return v > r.TriggerValue
	case habitat.OpLTE:
		return v <= r.TriggerValue
	case habitat.OpGTE:
		return v >= r.TriggerValue
	case habitat.OpEQ:
		return math.Abs(v-r.TriggerValue) < eqEpsilon
	default:
		return false
	}
}

// holdsWithHysteresis widens the trigger boundary by the rule's hysteresis
// so a triggered rule only clears after overshooting in the other direction.
func holdsWithHysteresis(r habitat.Rule, v float64) bool {
	h := r.Hysteresis
	switch r.Operator {
	case habitat.OpLT:
		return v < r.TriggerValue+h
	case habitat.OpLTE:
		return v <= r.TriggerValue+h
	case habitat.OpGT:
		return v > r.TriggerValue-h
	case habitat.OpGTE:
		return v >= r.TriggerValue-h
	case habitat.OpEQ:
		return math.Abs(v-r.TriggerValue) < eqEpsilon+h
	default:
		return false
	}
}

func copyRule(r habitat.Rule) habitat.Rule {
	if r.LastTriggeredAt != nil {
		t := *r.LastTriggeredAt
		r.LastTriggeredAt = &t
	}
	if r.ConditionSince != nil {
		t := *r.ConditionSince
		r.ConditionSince = &t
	}
	return r
}
