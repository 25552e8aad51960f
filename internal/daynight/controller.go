package daynight

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"reptilia-backend/internal/habitat"
	"reptilia-backend/internal/rules"
	"reptilia-backend/internal/suntimes"
)

const dateLayout = "2006-01-02"

type Config struct {
	HabitatID  string
	Location   habitat.Location
	HeatLamp   string
	UVB        string
	NightRules []habitat.Rule
}

// Controller tracks the light mode of one habitat and swaps the engine's
// active rule set on sunrise and sunset. Like the engine it is not safe for
// concurrent use.
type Controller struct {
	cfg     Config
	engine  *rules.Engine
	sun     suntimes.Source
	loc     *time.Location
	state   habitat.DayNightState
	ready   bool
	pending []habitat.OutletCommand
}

func New(cfg Config, engine *rules.Engine, sun suntimes.Source) (*Controller, error) {
	loc := time.UTC
	if cfg.Location.Timezone != "" {
		l, err := time.LoadLocation(cfg.Location.Timezone)
		if err != nil {
			return nil, fmt.Errorf("habitat %s timezone: %w", cfg.HabitatID, err)
		}
		loc = l
	}
	return &Controller{
		cfg:    cfg,
		engine: engine,
		sun:    sun,
		loc:    loc,
		state:  habitat.DayNightState{HabitatID: cfg.HabitatID},
	}, nil
}

// Restore seeds the controller with persisted state. The mode is reapplied
// by the next Init.
func (c *Controller) Restore(state habitat.DayNightState) {
	if !state.Mode.Valid() {
		return
	}
	state.HabitatID = c.cfg.HabitatID
	c.state = state
}

func (c *Controller) State() habitat.DayNightState {
	return c.state
}

func (c *Controller) Mode() habitat.Mode {
	return c.state.Mode
}

// Init determines the mode for now and applies its rule set and unconditional
// commands. A restored override that has not expired keeps its mode.
func (c *Controller) Init(now time.Time) ([]habitat.OutletCommand, error) {
	sunErr := c.refresh(now)
	mode := c.state.Mode
	if !c.overridden(now) {
		if natural, ok := c.natural(now); ok {
			mode = natural
		}
	}
	if !mode.Valid() {
		mode = habitat.ModeDay
	}
	c.ready = true
	cmds, err := c.transition(mode, now)
	return cmds, errors.Join(sunErr, err)
}

// Check runs the transition actions once per crossing. Commands that failed
// since the previous check are returned again.
func (c *Controller) Check(now time.Time) ([]habitat.OutletCommand, error) {
	if !c.ready {
		return c.Init(now)
	}
	sunErr := c.refresh(now)
	cmds := c.takePending(now)
	if c.overridden(now) {
		return cmds, sunErr
	}
	c.state.OverrideUntil = time.Time{}
	mode, ok := c.natural(now)
	if !ok || mode == c.state.Mode {
		return cmds, sunErr
	}
	transition, err := c.transition(mode, now)
	return transition, errors.Join(sunErr, err)
}

// Force switches to mode and holds it until the next sun event.
func (c *Controller) Force(mode habitat.Mode, now time.Time) ([]habitat.OutletCommand, error) {
	if !mode.Valid() {
		return nil, &habitat.ValidationError{
			Code:    habitat.CodeModeInvalid,
			Message: "invalid mode",
			Details: []habitat.ErrorDetail{{Field: "mode", Problem: "unsupported", Hint: "Use day or night"}},
		}
	}
	sunErr := c.refresh(now)
	c.ready = true
	cmds, err := c.transition(mode, now)
	if next, nerr := c.NextEvent(now); nerr == nil {
		c.state.OverrideUntil = next
	}
	return cmds, errors.Join(sunErr, err)
}

// NextEvent returns the first sunrise or sunset strictly after now.
func (c *Controller) NextEvent(now time.Time) (time.Time, error) {
	for day := 0; day < 2; day++ {
		date := now.In(c.loc).AddDate(0, 0, day)
		rise, set, err := c.sunTimes(date)
		if err != nil {
			return time.Time{}, err
		}
		if now.Before(rise) {
			return rise, nil
		}
		if now.Before(set) {
			return set, nil
		}
	}
	return time.Time{}, suntimes.ErrNoSunEvent
}

// MarkFailed queues an unconditional command for the next Check. Commands
// from an earlier mode are dropped on the next transition.
func (c *Controller) MarkFailed(cmd habitat.OutletCommand) {
	for _, p := range c.pending {
		if p.OutletID == cmd.OutletID {
			return
		}
	}
	c.pending = append(c.pending, cmd)
}

func (c *Controller) takePending(now time.Time) []habitat.OutletCommand {
	if len(c.pending) == 0 {
		return nil
	}
	cmds := make([]habitat.OutletCommand, 0, len(c.pending))
	for _, p := range c.pending {
		cmds = append(cmds, c.command(p.OutletID, p.DesiredState, p.Reason, now))
	}
	c.pending = nil
	return cmds
}

func (c *Controller) overridden(now time.Time) bool {
	return !c.state.OverrideUntil.IsZero() && now.Before(c.state.OverrideUntil)
}

// natural reports the mode implied by the sun. False when the date has no
// sun events, in which case the current mode is kept.
func (c *Controller) natural(now time.Time) (habitat.Mode, bool) {
	if c.state.SunriseAt.IsZero() || c.state.SunsetAt.IsZero() {
		return "", false
	}
	if !now.Before(c.state.SunriseAt) && now.Before(c.state.SunsetAt) {
		return habitat.ModeDay, true
	}
	return habitat.ModeNight, true
}

func (c *Controller) refresh(now time.Time) error {
	date := now.In(c.loc).Format(dateLayout)
	if date == c.state.Date && !c.state.SunriseAt.IsZero() {
		return nil
	}
	c.state.Date = date
	rise, set, err := c.sunTimes(now)
	c.state.SunriseAt, c.state.SunsetAt = rise, set
	if errors.Is(err, suntimes.ErrNoSunEvent) {
		return nil
	}
	return err
}

func (c *Controller) sunTimes(date time.Time) (time.Time, time.Time, error) {
	lat, lon := c.cfg.Location.Latitude, c.cfg.Location.Longitude
	rise, err := c.sun.Sunrise(date, lat, lon, c.loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	set, err := c.sun.Sunset(date, lat, lon, c.loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return rise, set, nil
}

func (c *Controller) transition(mode habitat.Mode, now time.Time) ([]habitat.OutletCommand, error) {
	c.state.Mode = mode
	c.state.LastTransitionAt = now
	c.pending = nil
	if mode == habitat.ModeNight {
		return c.toNight(now)
	}
	return c.toDay(now), nil
}

func (c *Controller) toNight(now time.Time) ([]habitat.OutletCommand, error) {
	c.engine.SetTagEnabled(habitat.TagDaytime, false)
	var errs []error
	for _, r := range c.cfg.NightRules {
		if c.engine.Has(r.ID) {
			_ = c.engine.SetEnabled(r.ID, true)
			continue
		}
		r.Enabled = true
		if err := c.engine.Register(r); err != nil {
			errs = append(errs, fmt.Errorf("night rule %s: %w", r.ID, err))
		}
	}
	c.engine.LockOn(c.cfg.HeatLamp, c.cfg.UVB)
	cmds := []habitat.OutletCommand{}
	if c.cfg.UVB != "" {
		cmds = append(cmds, c.command(c.cfg.UVB, habitat.OutletOff, "night: uvb off", now))
	}
	if c.cfg.HeatLamp != "" {
		cmds = append(cmds, c.command(c.cfg.HeatLamp, habitat.OutletOff, "night: heat lamp off", now))
	}
	return cmds, errors.Join(errs...)
}

func (c *Controller) toDay(now time.Time) []habitat.OutletCommand {
	c.engine.SetTagEnabled(habitat.TagNight, false)
	c.engine.SetTagEnabled(habitat.TagDaytime, true)
	c.engine.UnlockOn()
	cmds := []habitat.OutletCommand{}
	if c.cfg.UVB != "" {
		cmds = append(cmds, c.command(c.cfg.UVB, habitat.OutletOn, "day: uvb on", now))
	}
	return cmds
}

func (c *Controller) command(outletID string, state habitat.OutletState, reason string, now time.Time) habitat.OutletCommand {
	return habitat.OutletCommand{
		ID:           uuid.NewString(),
		HabitatID:    c.cfg.HabitatID,
		OutletID:     outletID,
		DesiredState: state,
		Reason:       reason,
		TriggeredBy:  habitat.TriggeredByModeTransition,
		Timestamp:    now,
	}
}
