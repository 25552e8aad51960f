package monitor

import (
	"context"
	"errors"

	"reptilia-backend/internal/habitat"
)

const (
	SubjectCommand = "habitat.command"
	SubjectAlert   = "habitat.alert"
	SubjectMode    = "habitat.mode"
)

// Store persists habitat state. Load methods return empty results, not
// errors, when nothing was saved; LoadDayNight returns habitat.ErrNotFound.
type Store interface {
	LoadRules(ctx context.Context, habitatID string) ([]habitat.Rule, error)
	SaveRules(ctx context.Context, habitatID string, rules []habitat.Rule) error
	LoadThresholds(ctx context.Context, habitatID string) ([]habitat.Threshold, error)
	SaveThresholds(ctx context.Context, habitatID string, thresholds []habitat.Threshold) error
	LoadDayNight(ctx context.Context, habitatID string) (habitat.DayNightState, error)
	SaveDayNight(ctx context.Context, state habitat.DayNightState) error
	LoadAlerts(ctx context.Context, habitatID string) ([]habitat.Alert, error)
	SaveAlert(ctx context.Context, alert habitat.Alert) error
	AppendReading(ctx context.Context, reading habitat.Reading) error
	AppendCommand(ctx context.Context, result habitat.CommandResult) error
}

type Publisher interface {
	Publish(subject string, payload any) error
}

// Fanout publishes to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(subject string, payload any) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(subject, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
