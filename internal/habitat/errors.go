package habitat

import (
	"errors"
	"fmt"
	"strings"
)

const (
	CodeRuleInvalid      = "RULE_SCHEMA_INVALID"
	CodeThresholdInvalid = "THRESHOLD_INVALID"
	CodeInconsistent     = "CONFIG_INCONSISTENT"
	CodeModeInvalid      = "MODE_INVALID"
	CodeCommandInvalid   = "COMMAND_INVALID"
)

type ErrorDetail struct {
	Field   string `json:"field"`
	Problem string `json:"problem"`
	Hint    string `json:"hint"`
}

// ValidationError rejects configuration at registration time. Code
// CONFIG_INCONSISTENT marks references to sensors or outlets the habitat
// does not have.
type ValidationError struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details"`
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		parts = append(parts, d.Field+" "+d.Problem)
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(parts, ", "))
}

func IsInconsistency(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr) && verr.Code == CodeInconsistent
}

type FailureKind string

const (
	KindTimeout    FailureKind = "timeout"
	KindConnection FailureKind = "connection"
	KindNoData     FailureKind = "no_data"
	KindStale      FailureKind = "stale"
	KindInvalid    FailureKind = "invalid"
	KindError      FailureKind = "error"
)

type AcquisitionError struct {
	SensorID string
	Kind     FailureKind
	Err      error
}

func (e *AcquisitionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("sensor %s: %s", e.SensorID, e.Kind)
	}
	return fmt.Sprintf("sensor %s: %s: %v", e.SensorID, e.Kind, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

type ActuationError struct {
	OutletID string
	Kind     FailureKind
	Err      error
}

func (e *ActuationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("outlet %s: %s", e.OutletID, e.Kind)
	}
	return fmt.Sprintf("outlet %s: %s: %v", e.OutletID, e.Kind, e.Err)
}

func (e *ActuationError) Unwrap() error { return e.Err }

var ErrNotFound = errors.New("not found")

// ErrNotStarted is returned while a habitat's persisted state could not be loaded.
var ErrNotStarted = errors.New("habitat state not loaded")
