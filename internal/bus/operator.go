package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"reptilia-backend/internal/habitat"
)

const (
	SubjectModeOverride = "habitat.mode.override"
	SubjectAlertAck     = "habitat.alert.ack"

	handleTimeout = 10 * time.Second
)

// Event is an operator request received over the bus.
type Event struct {
	HabitatID string       `json:"habitat_id"`
	Mode      habitat.Mode `json:"mode,omitempty"`
	AlertID   string       `json:"alert_id,omitempty"`
	By        string       `json:"by,omitempty"`
}

// Operator executes operator requests; monitor.Fleet implements it.
type Operator interface {
	ForceMode(ctx context.Context, habitatID string, mode habitat.Mode) error
	Acknowledge(ctx context.Context, habitatID, alertID, by string) error
}

// Handle decodes and executes one operator message.
func Handle(ctx context.Context, op Operator, subject string, data []byte) error {
	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil {
		return fmt.Errorf("decode %s: %w", subject, err)
	}
	if evt.HabitatID == "" {
		return errors.New("habitat_id is required")
	}
	switch subject {
	case SubjectModeOverride:
		return op.ForceMode(ctx, evt.HabitatID, evt.Mode)
	case SubjectAlertAck:
		if evt.AlertID == "" {
			return errors.New("alert_id is required")
		}
		by := evt.By
		if by == "" {
			by = "bus"
		}
		return op.Acknowledge(ctx, evt.HabitatID, evt.AlertID, by)
	default:
		return fmt.Errorf("unsupported subject %q", subject)
	}
}

// Listen subscribes op to the operator subjects. Failures are logged; the
// bus has no reply channel.
func Listen(s *Subscriber, op Operator, log *slog.Logger) ([]*nats.Subscription, error) {
	handler := func(subject string, data []byte) {
		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		defer cancel()
		if err := Handle(ctx, op, subject, data); err != nil {
			log.Warn("operator request failed", slog.String("subject", subject), slog.String("error", err.Error()))
			return
		}
		log.Info("operator request handled", slog.String("subject", subject))
	}
	subs := []*nats.Subscription{}
	for _, subject := range []string{SubjectModeOverride, SubjectAlertAck} {
		sub, err := s.Subscribe(subject, handler)
		if err != nil {
			for _, prev := range subs {
				_ = prev.Unsubscribe()
			}
			return nil, fmt.Errorf("subscribe %s: %w", subject, err)
		}
		subs = append(subs, sub)
	}
	return subs, nil
}
