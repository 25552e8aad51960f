package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"reptilia-backend/internal/clock"
	"reptilia-backend/internal/daynight"
	"reptilia-backend/internal/device"
	"reptilia-backend/internal/habitat"
	"reptilia-backend/internal/rules"
	"reptilia-backend/internal/suntimes"
	"reptilia-backend/internal/threshold"
)

const persistTimeout = 5 * time.Second

type Options struct {
	StaleAfter         time.Duration
	SensorTimeout      time.Duration
	OutletTimeout      time.Duration
	SustainCycles      int
	CriticalImmediate  bool
	OutletFailureLimit int
}

func DefaultOptions() Options {
	return Options{
		StaleAfter:         120 * time.Second,
		SensorTimeout:      5 * time.Second,
		OutletTimeout:      5 * time.Second,
		SustainCycles:      3,
		CriticalImmediate:  true,
		OutletFailureLimit: 3,
	}
}

type Deps struct {
	Sensors   device.SensorSource
	Outlets   device.OutletSink
	Store     Store
	Publisher Publisher
	Clock     clock.Clock
	Sun       suntimes.Source
	Logger    *slog.Logger
}

type zoneState struct {
	status    habitat.Status
	level     habitat.Severity
	value     float64
	streak    int
	updatedAt time.Time
}

// Habitat is the automation aggregate of one enclosure. Cycles, day/night
// checks and operator actions are serialised by cycle; mu guards the state
// and is released while devices are called.
type Habitat struct {
	cfg  habitat.Config
	opts Options
	deps Deps
	log  *slog.Logger

	cycle   sync.Mutex
	started bool

	mu           sync.RWMutex
	engine       *rules.Engine
	dn           *daynight.Controller
	thresholds   []habitat.Threshold
	zones        map[string]*zoneState
	readings     map[string]habitat.Reading
	alerts       *alertBook
	failures     map[string]int
	outletStates map[string]habitat.OutletState
	lastCycle    time.Time
}

func New(cfg habitat.Config, deps Deps, opts Options) (*Habitat, error) {
	if err := cfg.Resolve(); err != nil {
		return nil, err
	}
	if deps.Sensors == nil || deps.Outlets == nil {
		return nil, errors.New("sensor source and outlet sink are required")
	}
	if deps.Store == nil {
		return nil, errors.New("store is required")
	}
	if deps.Publisher == nil {
		deps.Publisher = Fanout{}
	}
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	if deps.Sun == nil {
		deps.Sun = suntimes.ForName(cfg.SunTimes)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	engine := rules.NewEngine(cfg.ID, cfg.Inventory())
	dn, err := daynight.New(daynight.Config{
		HabitatID:  cfg.ID,
		Location:   cfg.Location,
		HeatLamp:   cfg.Outlets.HeatLamp,
		UVB:        cfg.Outlets.UVB,
		NightRules: habitat.NightHeatingRules(cfg),
	}, engine, deps.Sun)
	if err != nil {
		return nil, err
	}
	return &Habitat{
		cfg:          cfg,
		opts:         opts,
		deps:         deps,
		log:          deps.Logger.With(slog.String("habitat", cfg.ID)),
		engine:       engine,
		dn:           dn,
		zones:        map[string]*zoneState{},
		readings:     map[string]habitat.Reading{},
		alerts:       newAlertBook(cfg.ID),
		failures:     map[string]int{},
		outletStates: map[string]habitat.OutletState{},
	}, nil
}

func (h *Habitat) ID() string {
	return h.cfg.ID
}

// Start loads persisted state, falling back to the species defaults, and
// applies the current light mode. Until a load succeeds the habitat neither
// drives outlets nor writes rules, and every cycle retries the load.
func (h *Habitat) Start(ctx context.Context) error {
	h.cycle.Lock()
	defer h.cycle.Unlock()
	return h.startLocked(ctx)
}

func (h *Habitat) startLocked(ctx context.Context) error {
	if h.started {
		return nil
	}
	store := h.deps.Store
	persistedRules, err := store.LoadRules(ctx, h.cfg.ID)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	if len(persistedRules) == 0 {
		persistedRules = habitat.BuildRules(h.cfg)
	}
	thresholds, err := store.LoadThresholds(ctx, h.cfg.ID)
	if err != nil {
		return fmt.Errorf("load thresholds: %w", err)
	}
	if len(thresholds) == 0 {
		thresholds = habitat.BuildThresholds(h.cfg)
	}
	state, err := store.LoadDayNight(ctx, h.cfg.ID)
	if err != nil && !errors.Is(err, habitat.ErrNotFound) {
		return fmt.Errorf("load day/night state: %w", err)
	}
	alerts, err := store.LoadAlerts(ctx, h.cfg.ID)
	if err != nil {
		return fmt.Errorf("load alerts: %w", err)
	}

	now := h.deps.Clock.Now()
	h.mu.Lock()
	for _, rerr := range h.engine.Restore(persistedRules) {
		h.log.Warn("rule rejected", slog.String("error", rerr.Error()))
	}
	for _, th := range thresholds {
		if err := h.checkThreshold(th); err != nil {
			h.log.Warn("threshold rejected", slog.String("sensor", th.SensorID), slog.String("error", err.Error()))
			continue
		}
		h.thresholds = append(h.thresholds, th)
	}
	h.dn.Restore(state)
	h.alerts.restore(alerts)
	cmds, err := h.dn.Init(now)
	if err != nil {
		h.log.Warn("day/night init", slog.String("error", err.Error()))
	}
	stale := h.resetInactiveZonesLocked(now)
	h.log.Info("habitat started", slog.String("mode", string(h.dn.Mode())), slog.Int("rules", len(h.engine.Rules())))
	h.mu.Unlock()
	h.started = true

	h.settle(ctx, now, nil, stale, cmds, true)
	return nil
}

// ready retries a failed start. Callers hold cycle.
func (h *Habitat) ready(ctx context.Context) error {
	if h.started {
		return nil
	}
	if err := h.startLocked(ctx); err != nil {
		h.log.Warn("habitat not started", slog.String("error", err.Error()))
		return fmt.Errorf("%w: %v", habitat.ErrNotStarted, err)
	}
	return nil
}

// Report summarises one cycle.
type Report struct {
	At       time.Time
	Mode     habitat.Mode
	Readings []habitat.Reading
	Zones    []ZoneStatus
	Commands []habitat.CommandResult
	Alerts   []habitat.Alert
}

// RunCycle acquires every sensor, evaluates thresholds and rules in one
// exclusive section, then drives the outlets.
func (h *Habitat) RunCycle(ctx context.Context) Report {
	h.cycle.Lock()
	defer h.cycle.Unlock()
	if err := h.ready(ctx); err != nil {
		return Report{At: h.deps.Clock.Now()}
	}
	now := h.deps.Clock.Now()
	readings := h.acquire(ctx, now)

	h.mu.Lock()
	cmds, alerts, modeChanged := h.checkDayNightLocked(now)
	var zones []ZoneStatus
	for _, r := range readings {
		h.readings[r.SensorID] = r
		z, a := h.evaluateLocked(r, now)
		zones = append(zones, z...)
		alerts = append(alerts, a...)
		cmds = append(cmds, h.engine.Process(r, now)...)
	}
	h.lastCycle = now
	mode := h.dn.Mode()
	h.mu.Unlock()

	results, outletAlerts := h.settle(ctx, now, readings, alerts, cmds, modeChanged)
	return Report{
		At:       now,
		Mode:     mode,
		Readings: readings,
		Zones:    zones,
		Commands: results,
		Alerts:   append(alerts, outletAlerts...),
	}
}

// CheckDayNight runs the day/night check on its own, for the coarse timer.
func (h *Habitat) CheckDayNight(ctx context.Context) []habitat.CommandResult {
	h.cycle.Lock()
	defer h.cycle.Unlock()
	if err := h.ready(ctx); err != nil {
		return nil
	}
	now := h.deps.Clock.Now()
	h.mu.Lock()
	cmds, alerts, changed := h.checkDayNightLocked(now)
	h.mu.Unlock()
	results, _ := h.settle(ctx, now, nil, alerts, cmds, changed)
	return results
}

// ForceMode switches the light mode now and holds it until the next sun event.
func (h *Habitat) ForceMode(ctx context.Context, mode habitat.Mode) ([]habitat.CommandResult, error) {
	if !mode.Valid() {
		return nil, &habitat.ValidationError{
			Code:    habitat.CodeModeInvalid,
			Message: "invalid mode",
			Details: []habitat.ErrorDetail{{Field: "mode", Problem: "unsupported", Hint: "Use day or night"}},
		}
	}
	h.cycle.Lock()
	defer h.cycle.Unlock()
	if err := h.ready(ctx); err != nil {
		return nil, err
	}
	now := h.deps.Clock.Now()
	h.mu.Lock()
	cmds, err := h.dn.Force(mode, now)
	if err != nil {
		h.log.Warn("forced mode", slog.String("error", err.Error()))
	}
	alerts := h.resetInactiveZonesLocked(now)
	h.log.Info("mode forced", slog.String("mode", string(mode)), slog.Time("until", h.dn.State().OverrideUntil))
	h.mu.Unlock()
	results, _ := h.settle(ctx, now, nil, alerts, cmds, true)
	return results, nil
}

// ManualControl switches an outlet on behalf of an operator. Rules are not
// consulted and may override the state on a later cycle.
func (h *Habitat) ManualControl(ctx context.Context, outletID string, state habitat.OutletState) (habitat.CommandResult, error) {
	if !h.cfg.Inventory().HasOutlet(outletID) {
		return habitat.CommandResult{}, &habitat.ValidationError{
			Code:    habitat.CodeInconsistent,
			Message: "unknown outlet",
			Details: []habitat.ErrorDetail{{Field: "outlet_id", Problem: "unknown outlet", Hint: outletID}},
		}
	}
	if state != habitat.OutletOn && state != habitat.OutletOff {
		return habitat.CommandResult{}, &habitat.ValidationError{
			Code:    habitat.CodeCommandInvalid,
			Message: "invalid outlet state",
			Details: []habitat.ErrorDetail{{Field: "state", Problem: "unsupported", Hint: "Use on or off"}},
		}
	}
	h.cycle.Lock()
	defer h.cycle.Unlock()
	if err := h.ready(ctx); err != nil {
		return habitat.CommandResult{}, err
	}
	now := h.deps.Clock.Now()
	cmd := command(h.cfg.ID, outletID, state, "manual control", habitat.TriggeredByUser, now)
	results, _ := h.settle(ctx, now, nil, nil, []habitat.OutletCommand{cmd}, false)
	res := results[0]
	if !res.Success {
		return res, &habitat.ActuationError{OutletID: outletID, Kind: habitat.KindError, Err: errors.New(res.Error)}
	}
	return res, nil
}

func (h *Habitat) Acknowledge(ctx context.Context, alertID, by string) (habitat.Alert, error) {
	h.mu.Lock()
	alert, err := h.alerts.acknowledge(alertID, by, h.deps.Clock.Now())
	h.mu.Unlock()
	if err != nil {
		return habitat.Alert{}, err
	}
	pctx, cancel := persistContext(ctx)
	defer cancel()
	h.recordAlerts(pctx, []habitat.Alert{alert})
	return alert, nil
}

// RegisterRule adds an operator rule. Tagged rules registered outside their
// mode start disabled.
func (h *Habitat) RegisterRule(ctx context.Context, rule habitat.Rule) error {
	h.cycle.Lock()
	defer h.cycle.Unlock()
	if err := h.ready(ctx); err != nil {
		return err
	}
	h.mu.Lock()
	mode := h.dn.Mode()
	if (rule.Tag == habitat.TagDaytime && mode == habitat.ModeNight) || (rule.Tag == habitat.TagNight && mode == habitat.ModeDay) {
		rule.Enabled = false
	}
	err := h.engine.Register(rule)
	ruleSet := h.engine.Rules()
	h.mu.Unlock()
	if err != nil {
		return err
	}
	h.saveRules(ctx, ruleSet)
	return nil
}

func (h *Habitat) SetRuleEnabled(ctx context.Context, ruleID string, enabled bool) error {
	h.cycle.Lock()
	defer h.cycle.Unlock()
	if err := h.ready(ctx); err != nil {
		return err
	}
	h.mu.Lock()
	err := h.engine.SetEnabled(ruleID, enabled)
	ruleSet := h.engine.Rules()
	h.mu.Unlock()
	if err != nil {
		return err
	}
	h.saveRules(ctx, ruleSet)
	return nil
}

func (h *Habitat) RemoveRule(ctx context.Context, ruleID string) error {
	h.cycle.Lock()
	defer h.cycle.Unlock()
	if err := h.ready(ctx); err != nil {
		return err
	}
	h.mu.Lock()
	removed := h.engine.Remove(ruleID)
	ruleSet := h.engine.Rules()
	h.mu.Unlock()
	if !removed {
		return habitat.ErrNotFound
	}
	h.saveRules(ctx, ruleSet)
	return nil
}

// Retire drops every rule of a deleted habitat.
func (h *Habitat) Retire(ctx context.Context) {
	h.cycle.Lock()
	defer h.cycle.Unlock()
	h.mu.Lock()
	h.engine.RetireAll()
	h.mu.Unlock()
	h.saveRules(ctx, []habitat.Rule{})
}

// SetThreshold replaces the threshold of the same sensor and zone.
func (h *Habitat) SetThreshold(ctx context.Context, th habitat.Threshold) error {
	if th.ActiveIn == "" {
		th.ActiveIn = habitat.ActiveAlways
	}
	if err := h.checkThreshold(th); err != nil {
		return err
	}
	h.cycle.Lock()
	defer h.cycle.Unlock()
	if err := h.ready(ctx); err != nil {
		return err
	}
	h.mu.Lock()
	replaced := false
	for i, existing := range h.thresholds {
		if existing.SensorID == th.SensorID && existing.Zone == th.Zone {
			h.thresholds[i] = th
			replaced = true
		}
	}
	if !replaced {
		h.thresholds = append(h.thresholds, th)
	}
	delete(h.zones, zoneKey(th))
	thresholds := append([]habitat.Threshold(nil), h.thresholds...)
	h.mu.Unlock()
	pctx, cancel := persistContext(ctx)
	defer cancel()
	if err := h.deps.Store.SaveThresholds(pctx, h.cfg.ID, thresholds); err != nil {
		h.log.Warn("save thresholds", slog.String("error", err.Error()))
	}
	return nil
}

// NextSunEvent returns the next sunrise or sunset of the habitat.
func (h *Habitat) NextSunEvent() (time.Time, error) {
	now := h.deps.Clock.Now()
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dn.NextEvent(now)
}

func (h *Habitat) checkThreshold(th habitat.Threshold) error {
	if err := threshold.Validate(th); err != nil {
		return err
	}
	if !h.cfg.Inventory().HasSensor(th.SensorID) {
		return &habitat.ValidationError{
			Code:    habitat.CodeInconsistent,
			Message: "threshold references unknown sensor",
			Details: []habitat.ErrorDetail{{Field: "sensor_id", Problem: "unknown sensor", Hint: th.SensorID}},
		}
	}
	return nil
}

func (h *Habitat) acquire(ctx context.Context, now time.Time) []habitat.Reading {
	ids := h.cfg.SensorIDs()
	readings := make([]habitat.Reading, 0, len(ids))
	for _, id := range ids {
		rctx, cancel := context.WithTimeout(ctx, h.opts.SensorTimeout)
		reading, err := h.deps.Sensors.Read(rctx, id)
		cancel()
		if err == nil && threshold.Stale(reading.Timestamp, now, h.opts.StaleAfter) {
			err = &habitat.AcquisitionError{SensorID: id, Kind: habitat.KindStale}
		}
		if err != nil {
			h.log.Warn("sensor read failed", slog.String("sensor", id), slog.String("error", err.Error()))
			reading = habitat.Reading{SensorID: id, Timestamp: now}
		}
		reading.SensorID = id
		reading.HabitatID = h.cfg.ID
		if reading.Unit == "" {
			reading.Unit = h.cfg.UnitFor(id)
		}
		if reading.Timestamp.IsZero() {
			reading.Timestamp = now
		}
		readings = append(readings, reading)
	}
	return readings
}

func (h *Habitat) checkDayNightLocked(now time.Time) ([]habitat.OutletCommand, []habitat.Alert, bool) {
	before := h.dn.State().LastTransitionAt
	cmds, err := h.dn.Check(now)
	if err != nil {
		h.log.Warn("day/night check", slog.String("error", err.Error()))
	}
	changed := !h.dn.State().LastTransitionAt.Equal(before)
	var alerts []habitat.Alert
	if changed {
		h.log.Info("mode transition", slog.String("mode", string(h.dn.Mode())))
		alerts = h.resetInactiveZonesLocked(now)
	}
	return cmds, alerts, changed
}

// resetInactiveZonesLocked forgets the state of zones the current mode does
// not watch and resolves their alerts, which would otherwise stay open with
// nothing left to clear them.
func (h *Habitat) resetInactiveZonesLocked(now time.Time) []habitat.Alert {
	mode := h.dn.Mode()
	var resolved []habitat.Alert
	for _, th := range h.thresholds {
		if th.ActiveDuring(mode) {
			continue
		}
		delete(h.zones, zoneKey(th))
		resolved = append(resolved, h.alerts.resolveSensor(th.SensorID, th.Zone, habitat.StatusUnknown, now)...)
	}
	return resolved
}

func (h *Habitat) evaluateLocked(reading habitat.Reading, now time.Time) ([]ZoneStatus, []habitat.Alert) {
	mode := h.dn.Mode()
	var zones []ZoneStatus
	var alerts []habitat.Alert
	for _, th := range h.thresholds {
		if th.SensorID != reading.SensorID || !th.ActiveDuring(mode) {
			continue
		}
		key := zoneKey(th)
		zs, ok := h.zones[key]
		if !ok {
			zs = &zoneState{status: habitat.StatusUnknown}
			h.zones[key] = zs
		}
		res := threshold.Evaluate(reading, th, zs.status, now, h.opts.StaleAfter)
		if res.Status == habitat.StatusUnknown {
			zones = append(zones, zoneStatus(th, zs, mode))
			continue
		}
		switch {
		case !res.Status.Violation():
			zs.streak = 0
		case res.Status == zs.status:
			zs.streak++
		default:
			zs.streak = 1
		}
		zs.status, zs.level, zs.value, zs.updatedAt = res.Status, res.Level, reading.Value, now
		zones = append(zones, zoneStatus(th, zs, mode))

		alerts = append(alerts, h.alerts.resolveSensor(th.SensorID, th.Zone, res.Status, now)...)
		if !res.Status.Violation() {
			continue
		}
		sustained := zs.streak >= h.opts.SustainCycles
		immediate := h.opts.CriticalImmediate && res.Level == habitat.SeverityCritical
		if !sustained && !immediate {
			continue
		}
		alert, changed := h.alerts.raise(sensorKey(th.SensorID, th.Zone, res.Status), habitat.Alert{
			SensorID:      th.SensorID,
			Zone:          th.Zone,
			Status:        res.Status,
			Severity:      alertSeverity(res.Level),
			Message:       sensorMessage(th.SensorID, th.Zone, res.Status, reading.Value, res.ViolatedBound()),
			Value:         reading.Value,
			ViolatedBound: res.ViolatedBound(),
		}, now)
		if changed {
			h.log.Warn("alert raised", slog.String("alert", alert.ID), slog.String("sensor", th.SensorID), slog.String("severity", string(alert.Severity)))
			alerts = append(alerts, alert)
		}
	}
	return zones, alerts
}

// alertSeverity maps a hysteresis-held reading, which is back inside the
// band, to warning so it never opens an info alert.
func alertSeverity(level habitat.Severity) habitat.Severity {
	if level == habitat.SeverityInfo {
		return habitat.SeverityWarning
	}
	return level
}

// settle drives the outlets outside the state lock, folds the outcomes back
// in and records everything.
func (h *Habitat) settle(ctx context.Context, now time.Time, readings []habitat.Reading, alerts []habitat.Alert, cmds []habitat.OutletCommand, modeChanged bool) ([]habitat.CommandResult, []habitat.Alert) {
	results := make([]habitat.CommandResult, 0, len(cmds))
	for _, cmd := range cmds {
		results = append(results, h.send(ctx, cmd))
	}

	h.mu.Lock()
	var outletAlerts []habitat.Alert
	for _, res := range results {
		if a := h.applyResultLocked(res, now); a != nil {
			outletAlerts = append(outletAlerts, *a)
		}
	}
	ruleSet := h.engine.Rules()
	state := h.dn.State()
	h.mu.Unlock()

	pctx, cancel := persistContext(ctx)
	defer cancel()
	store := h.deps.Store
	for _, r := range readings {
		if !r.Valid {
			continue
		}
		if err := store.AppendReading(pctx, r); err != nil {
			h.log.Warn("append reading", slog.String("error", err.Error()))
		}
	}
	for _, res := range results {
		if err := store.AppendCommand(pctx, res); err != nil {
			h.log.Warn("append command", slog.String("error", err.Error()))
		}
		if err := h.deps.Publisher.Publish(SubjectCommand, res); err != nil {
			h.log.Warn("publish command", slog.String("error", err.Error()))
		}
	}
	h.recordAlerts(pctx, append(append([]habitat.Alert(nil), alerts...), outletAlerts...))
	if err := store.SaveRules(pctx, h.cfg.ID, ruleSet); err != nil {
		h.log.Warn("save rules", slog.String("error", err.Error()))
	}
	if err := store.SaveDayNight(pctx, state); err != nil {
		h.log.Warn("save day/night state", slog.String("error", err.Error()))
	}
	if modeChanged {
		if err := h.deps.Publisher.Publish(SubjectMode, state); err != nil {
			h.log.Warn("publish mode", slog.String("error", err.Error()))
		}
	}
	return results, outletAlerts
}

func (h *Habitat) send(ctx context.Context, cmd habitat.OutletCommand) habitat.CommandResult {
	octx, cancel := context.WithTimeout(ctx, h.opts.OutletTimeout)
	defer cancel()
	err := h.deps.Outlets.SetState(octx, cmd.OutletID, cmd.DesiredState)
	res := habitat.CommandResult{Command: cmd, Success: err == nil, Executed: h.deps.Clock.Now()}
	if err != nil {
		res.Error = err.Error()
		h.log.Error("outlet command failed",
			slog.String("outlet", cmd.OutletID),
			slog.String("state", string(cmd.DesiredState)),
			slog.String("triggered_by", cmd.TriggeredBy),
			slog.String("error", err.Error()))
	}
	return res
}

func (h *Habitat) applyResultLocked(res habitat.CommandResult, now time.Time) *habitat.Alert {
	outlet := res.Command.OutletID
	if res.Success {
		h.failures[outlet] = 0
		h.outletStates[outlet] = res.Command.DesiredState
		return h.alerts.resolveOutlet(outlet, now)
	}
	h.failures[outlet]++
	h.outletStates[outlet] = habitat.OutletUnknown
	switch by := res.Command.TriggeredBy; {
	case by == habitat.TriggeredByModeTransition:
		h.dn.MarkFailed(res.Command)
	case by != habitat.TriggeredByUser:
		h.engine.MarkFailed(by)
	}
	if h.opts.OutletFailureLimit <= 0 || h.failures[outlet] < h.opts.OutletFailureLimit {
		return nil
	}
	alert, changed := h.alerts.raise(outletKey(outlet), habitat.Alert{
		OutletID: outlet,
		Severity: habitat.SeverityCritical,
		Message:  outletMessage(outlet, h.failures[outlet]),
		Value:    float64(h.failures[outlet]),
	}, now)
	if !changed {
		return nil
	}
	h.log.Warn("alert raised", slog.String("alert", alert.ID), slog.String("outlet", outlet), slog.Int("failures", h.failures[outlet]))
	return &alert
}

func (h *Habitat) recordAlerts(ctx context.Context, alerts []habitat.Alert) {
	for _, a := range alerts {
		if err := h.deps.Store.SaveAlert(ctx, a); err != nil {
			h.log.Warn("save alert", slog.String("error", err.Error()))
		}
		if err := h.deps.Publisher.Publish(SubjectAlert, a); err != nil {
			h.log.Warn("publish alert", slog.String("error", err.Error()))
		}
	}
}

func (h *Habitat) saveRules(ctx context.Context, ruleSet []habitat.Rule) {
	pctx, cancel := persistContext(ctx)
	defer cancel()
	if err := h.deps.Store.SaveRules(pctx, h.cfg.ID, ruleSet); err != nil {
		h.log.Warn("save rules", slog.String("error", err.Error()))
	}
}

// persistContext ignores cancellation of the cycle; writes are bounded by
// persistTimeout instead.
func persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
}

func zoneKey(th habitat.Threshold) string {
	return th.SensorID + "|" + string(th.Zone)
}
