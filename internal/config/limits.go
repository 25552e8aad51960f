package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"reptilia-backend/internal/monitor"
)

type Limits struct {
	MinPollSeconds     int           `yaml:"min_poll_seconds"`
	MaxPollSeconds     int           `yaml:"max_poll_seconds"`
	SensorTimeout      time.Duration `yaml:"sensor_timeout"`
	OutletTimeout      time.Duration `yaml:"outlet_timeout"`
	StaleAfter         time.Duration `yaml:"stale_after"`
	SustainCycles      int           `yaml:"sustain_cycles"`
	CriticalImmediate  bool          `yaml:"critical_immediate"`
	OutletFailureLimit int           `yaml:"outlet_failure_limit"`
	DayNightCheckSpec  string        `yaml:"day_night_check"`
}

func DefaultLimits() Limits {
	return Limits{
		MinPollSeconds:     5,
		MaxPollSeconds:     3600,
		SensorTimeout:      5 * time.Second,
		OutletTimeout:      5 * time.Second,
		StaleAfter:         120 * time.Second,
		SustainCycles:      3,
		CriticalImmediate:  true,
		OutletFailureLimit: 3,
		DayNightCheckSpec:  "@every 1m",
	}
}

func (l Limits) Validate() error {
	var errs []error
	if l.MinPollSeconds <= 0 || l.MaxPollSeconds < l.MinPollSeconds {
		errs = append(errs, fmt.Errorf("poll bounds %d..%d are invalid", l.MinPollSeconds, l.MaxPollSeconds))
	}
	if l.SensorTimeout <= 0 || l.OutletTimeout <= 0 {
		errs = append(errs, errors.New("device timeouts must be positive"))
	}
	if l.StaleAfter < 0 {
		errs = append(errs, errors.New("stale_after must not be negative"))
	}
	if l.SustainCycles < 1 {
		errs = append(errs, errors.New("sustain_cycles must be at least 1"))
	}
	if l.OutletFailureLimit < 0 {
		errs = append(errs, errors.New("outlet_failure_limit must not be negative"))
	}
	if _, err := cron.ParseStandard(l.DayNightCheckSpec); err != nil {
		errs = append(errs, fmt.Errorf("day_night_check %q: %w", l.DayNightCheckSpec, err))
	}
	return errors.Join(errs...)
}

func (l Limits) MonitorOptions() monitor.Options {
	return monitor.Options{
		StaleAfter:         l.StaleAfter,
		SensorTimeout:      l.SensorTimeout,
		OutletTimeout:      l.OutletTimeout,
		SustainCycles:      l.SustainCycles,
		CriticalImmediate:  l.CriticalImmediate,
		OutletFailureLimit: l.OutletFailureLimit,
	}
}
