package storage

import (
	"context"
	"errors"
	"sort"

	"reptilia-backend/internal/habitat"
)

// Split routes state to one backend and the audit trail to another, copying
// audit records to any mirrors. Mirror failures are joined into the result
// but do not stop the primary write.
type Split struct {
	StateStore
	Audit   AuditLog
	Mirrors []AuditLog
}

func (s Split) AppendReading(ctx context.Context, reading habitat.Reading) error {
	errs := []error{s.Audit.AppendReading(ctx, reading)}
	for _, m := range s.Mirrors {
		errs = append(errs, m.AppendReading(ctx, reading))
	}
	return errors.Join(errs...)
}

func (s Split) AppendCommand(ctx context.Context, result habitat.CommandResult) error {
	errs := []error{s.Audit.AppendCommand(ctx, result)}
	for _, m := range s.Mirrors {
		errs = append(errs, m.AppendCommand(ctx, result))
	}
	return errors.Join(errs...)
}

// RecentCommands reads from the audit log, or from the first mirror that
// keeps a history when the log itself does not.
func (s Split) RecentCommands(ctx context.Context, habitatID string, limit int) ([]habitat.CommandResult, error) {
	logs := append([]AuditLog{s.Audit}, s.Mirrors...)
	for _, l := range logs {
		if h, ok := l.(CommandHistory); ok {
			return h.RecentCommands(ctx, habitatID, limit)
		}
	}
	return nil, errors.New("audit log keeps no command history")
}

func sortByCreated(alerts []habitat.Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].CreatedAt.Before(alerts[j].CreatedAt)
	})
}
