package habitat

import "time"

type Unit string

const (
	UnitTemperature Unit = "temperature"
	UnitHumidity    Unit = "humidity"
)

type Reading struct {
	SensorID  string    `json:"sensor_id"`
	HabitatID string    `json:"habitat_id,omitempty"`
	Value     float64   `json:"value"`
	Unit      Unit      `json:"unit"`
	Timestamp time.Time `json:"timestamp"`
	Valid     bool      `json:"valid"`
}

type Zone string

const (
	ZoneBasking  Zone = "basking"
	ZoneCoolSide Zone = "cool_side"
	ZoneNight    Zone = "night"
	ZoneHumidity Zone = "humidity"
)

// ActiveIn selects the light modes during which a threshold is evaluated.
type ActiveIn string

const (
	ActiveDay    ActiveIn = "day"
	ActiveNight  ActiveIn = "night"
	ActiveAlways ActiveIn = "always"
)

type Threshold struct {
	SensorID   string   `json:"sensor_id" yaml:"sensor_id"`
	Zone       Zone     `json:"zone" yaml:"zone"`
	Min        float64  `json:"min" yaml:"min"`
	Max        float64  `json:"max" yaml:"max"`
	WarningMin float64  `json:"warning_min" yaml:"warning_min"`
	WarningMax float64  `json:"warning_max" yaml:"warning_max"`
	Hysteresis float64  `json:"hysteresis" yaml:"hysteresis"`
	ActiveIn   ActiveIn `json:"active_in" yaml:"active_in"`
}

func (t Threshold) ActiveDuring(mode Mode) bool {
	switch t.ActiveIn {
	case ActiveDay:
		return mode == ModeDay
	case ActiveNight:
		return mode == ModeNight
	default:
		return true
	}
}

type Status string

const (
	StatusOK      Status = "ok"
	StatusTooLow  Status = "too_low"
	StatusTooHigh Status = "too_high"
	StatusUnknown Status = "unknown"
)

func (s Status) Violation() bool {
	return s == StatusTooLow || s == StatusTooHigh
}

type Operator string

const (
	OpLT  Operator = "lt"
	OpGT  Operator = "gt"
	OpLTE Operator = "lte"
	OpGTE Operator = "gte"
	OpEQ  Operator = "eq"
)

type Action string

const (
	ActionOn   Action = "on"
	ActionOff  Action = "off"
	ActionNone Action = "none"
)

type OutletState string

const (
	OutletOn      OutletState = "on"
	OutletOff     OutletState = "off"
	OutletUnknown OutletState = "unknown"
)

// Rule tags used by the day/night controller.
const (
	TagDaytime = "daytime"
	TagNight   = "night"
)

type Rule struct {
	ID                 string     `json:"rule_id"`
	Name               string     `json:"name"`
	HabitatID          string     `json:"habitat_id"`
	SensorID           string     `json:"sensor_id"`
	OutletID           string     `json:"outlet_id"`
	Operator           Operator   `json:"trigger_operator"`
	TriggerValue       float64    `json:"trigger_value"`
	ActionOnTrigger    Action     `json:"action_on_trigger"`
	ActionOnClear      Action     `json:"action_on_clear"`
	Hysteresis         float64    `json:"hysteresis"`
	MinDurationSeconds int        `json:"min_duration_seconds"`
	Tag                string     `json:"tag,omitempty"`
	Enabled            bool       `json:"enabled"`
	LastTriggeredAt    *time.Time `json:"last_triggered_at"`
	CurrentlyTriggered bool       `json:"currently_triggered"`
	ConditionSince     *time.Time `json:"condition_since"`
	LastAction         Action     `json:"last_action,omitempty"`
	RetryPending       bool       `json:"retry_pending"`
}

func (r Rule) MinDuration() time.Duration {
	return time.Duration(r.MinDurationSeconds) * time.Second
}

const (
	TriggeredByUser           = "user"
	TriggeredByModeTransition = "mode-transition"
)

type OutletCommand struct {
	ID           string      `json:"command_id"`
	HabitatID    string      `json:"habitat_id"`
	OutletID     string      `json:"outlet_id"`
	DesiredState OutletState `json:"desired_state"`
	Reason       string      `json:"reason"`
	TriggeredBy  string      `json:"triggered_by"`
	Timestamp    time.Time   `json:"timestamp"`
}

// CommandResult is the outcome recorded next to a command in the audit trail.
type CommandResult struct {
	Command  OutletCommand `json:"command"`
	Success  bool          `json:"success"`
	Error    string        `json:"error,omitempty"`
	Executed time.Time     `json:"executed_at"`
}

type Mode string

const (
	ModeDay   Mode = "day"
	ModeNight Mode = "night"
)

func (m Mode) Valid() bool {
	return m == ModeDay || m == ModeNight
}

type DayNightState struct {
	HabitatID        string    `json:"habitat_id"`
	Mode             Mode      `json:"mode"`
	LastTransitionAt time.Time `json:"last_transition_at"`
	Date             string    `json:"date"`
	SunriseAt        time.Time `json:"sunrise_at"`
	SunsetAt         time.Time `json:"sunset_at"`
	OverrideUntil    time.Time `json:"override_until,omitempty"`
}

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// Above reports whether s is more severe than other.
func (s Severity) Above(other Severity) bool {
	return s.rank() > other.rank()
}

type Alert struct {
	ID             string     `json:"alert_id"`
	HabitatID      string     `json:"habitat_id"`
	SensorID       string     `json:"sensor_id,omitempty"`
	OutletID       string     `json:"outlet_id,omitempty"`
	Zone           Zone       `json:"zone,omitempty"`
	Status         Status     `json:"status,omitempty"`
	Severity       Severity   `json:"severity"`
	Message        string     `json:"message"`
	Value          float64    `json:"value"`
	ViolatedBound  string     `json:"violated_bound"`
	CreatedAt      time.Time  `json:"created_at"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

func (a Alert) Open() bool {
	return !a.Acknowledged && a.ResolvedAt == nil
}
