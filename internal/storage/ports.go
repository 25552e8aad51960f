package storage

import (
	"context"

	"reptilia-backend/internal/habitat"
)

// StateStore is the key-value half: rules, thresholds, day/night state and
// alerts, written on every mutation.
type StateStore interface {
	LoadRules(ctx context.Context, habitatID string) ([]habitat.Rule, error)
	SaveRules(ctx context.Context, habitatID string, rules []habitat.Rule) error
	LoadThresholds(ctx context.Context, habitatID string) ([]habitat.Threshold, error)
	SaveThresholds(ctx context.Context, habitatID string, thresholds []habitat.Threshold) error
	LoadDayNight(ctx context.Context, habitatID string) (habitat.DayNightState, error)
	SaveDayNight(ctx context.Context, state habitat.DayNightState) error
	LoadAlerts(ctx context.Context, habitatID string) ([]habitat.Alert, error)
	SaveAlert(ctx context.Context, alert habitat.Alert) error
}

// AuditLog is the append-only half.
type AuditLog interface {
	AppendReading(ctx context.Context, reading habitat.Reading) error
	AppendCommand(ctx context.Context, result habitat.CommandResult) error
}

// CommandHistory reads back the audit trail of outlet commands.
type CommandHistory interface {
	RecentCommands(ctx context.Context, habitatID string, limit int) ([]habitat.CommandResult, error)
}
