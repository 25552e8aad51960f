package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"reptilia-backend/internal/clock"
	"reptilia-backend/internal/device"
	"reptilia-backend/internal/habitat"
	"reptilia-backend/internal/storage"
	"reptilia-backend/internal/suntimes"
)

var noon = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type recorder struct {
	mu       sync.Mutex
	subjects []string
}

func (r *recorder) Publish(subject string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subjects = append(r.subjects, subject)
	return nil
}

func (r *recorder) count(subject string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.subjects {
		if s == subject {
			n++
		}
	}
	return n
}

type fixture struct {
	h       *Habitat
	clk     *clock.Fixed
	sensors *device.MockSensor
	outlets *device.MockOutlet
	store   *storage.Memory
	pub     *recorder
}

func testConfig() habitat.Config {
	return habitat.Config{
		ID:      "hab-1",
		Species: habitat.LeopardGecko,
		Sensors: habitat.Sensors{Basking: "basking", Cool: "cool", Humidity: "humidity"},
		Outlets: habitat.Outlets{HeatLamp: "heat-lamp", CeramicHeater: "ceramic", UVB: "uvb", Humidifier: "humidifier"},
	}
}

func newFixture(t *testing.T, start time.Time, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		clk:     clock.NewFixed(start),
		sensors: device.NewMockSensor(),
		outlets: device.NewMockOutlet(),
		store:   storage.NewMemory(),
		pub:     &recorder{},
	}
	f.sensors.Now = f.clk.Now
	f.sensors.Set("basking", 33)
	f.sensors.Set("cool", 25)
	f.sensors.Set("humidity", 35)
	f.h = f.build(t, opts)
	return f
}

func (f *fixture) build(t *testing.T, opts Options) *Habitat {
	t.Helper()
	h := f.assemble(t, f.store, opts)
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	return h
}

// assemble wires a habitat over store without starting it.
func (f *fixture) assemble(t *testing.T, store Store, opts Options) *Habitat {
	t.Helper()
	h, err := New(testConfig(), Deps{
		Sensors:   f.sensors,
		Outlets:   f.outlets,
		Store:     store,
		Publisher: f.pub,
		Clock:     f.clk,
		Sun:       suntimes.DefaultFixed(),
		Logger:    slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return h
}

// flakyStore fails the next failLoads rule loads.
type flakyStore struct {
	*storage.Memory
	mu        sync.Mutex
	failLoads int
}

func (s *flakyStore) LoadRules(ctx context.Context, habitatID string) ([]habitat.Rule, error) {
	s.mu.Lock()
	fail := s.failLoads > 0
	if fail {
		s.failLoads--
	}
	s.mu.Unlock()
	if fail {
		return nil, errors.New("connection refused")
	}
	return s.Memory.LoadRules(ctx, habitatID)
}

// hookStore runs onReading once, while the first reading of a cycle is persisted.
type hookStore struct {
	*storage.Memory
	once      sync.Once
	onReading func()
}

func (s *hookStore) AppendReading(ctx context.Context, reading habitat.Reading) error {
	if s.onReading != nil {
		s.once.Do(s.onReading)
	}
	return s.Memory.AppendReading(ctx, reading)
}

func (f *fixture) cycle(advance time.Duration) Report {
	f.clk.Advance(advance)
	return f.h.RunCycle(context.Background())
}

func immediateOptions() Options {
	opts := DefaultOptions()
	opts.SustainCycles = 1
	return opts
}

func TestAlertDeduplication(t *testing.T) {
	f := newFixture(t, noon, immediateOptions())
	f.sensors.Set("basking", 31)
	f.cycle(time.Minute)
	f.sensors.Set("basking", 30.5)
	f.cycle(time.Minute)
	alerts := f.h.Status().Alerts
	if len(alerts) != 1 {
		t.Fatalf("expected one open alert, got %d", len(alerts))
	}
	a := alerts[0]
	if a.Value != 30.5 || a.Status != habitat.StatusTooLow || a.SensorID != "basking" || a.Severity != habitat.SeverityWarning {
		t.Fatalf("unexpected alert %+v", a)
	}
	if !a.CreatedAt.Equal(noon.Add(2 * time.Minute)) {
		t.Fatalf("expected created_at refreshed, got %v", a.CreatedAt)
	}
	if a.ViolatedBound != "min=32" {
		t.Fatalf("unexpected bound %s", a.ViolatedBound)
	}
}

func TestAlertNeedsSustainedViolation(t *testing.T) {
	f := newFixture(t, noon, DefaultOptions())
	f.sensors.Set("basking", 31)
	for i := 0; i < 2; i++ {
		if r := f.cycle(time.Minute); len(r.Alerts) != 0 {
			t.Fatalf("cycle %d: expected no alert yet", i)
		}
	}
	r := f.cycle(time.Minute)
	if len(r.Alerts) != 1 || len(f.h.Status().Alerts) != 1 {
		t.Fatalf("expected alert on third cycle, got %+v", r.Alerts)
	}
}

func TestCriticalAlertRaisedImmediately(t *testing.T) {
	f := newFixture(t, noon, DefaultOptions())
	f.sensors.Set("basking", 25)
	r := f.cycle(time.Minute)
	if len(r.Alerts) != 1 || r.Alerts[0].Severity != habitat.SeverityCritical || r.Alerts[0].ViolatedBound != "warning_min=30" {
		t.Fatalf("expected critical alert, got %+v", r.Alerts)
	}
}

func TestAlertSeverityEscalates(t *testing.T) {
	f := newFixture(t, noon, immediateOptions())
	f.sensors.Set("basking", 31)
	f.cycle(time.Minute)
	f.sensors.Set("basking", 28)
	f.cycle(time.Minute)
	alerts := f.h.Status().Alerts
	if len(alerts) != 1 || alerts[0].Severity != habitat.SeverityCritical {
		t.Fatalf("expected one escalated alert, got %+v", alerts)
	}
}

func TestAlertResolvesWhenZoneRecovers(t *testing.T) {
	f := newFixture(t, noon, immediateOptions())
	f.sensors.Set("basking", 31)
	f.cycle(time.Minute)
	f.sensors.Set("basking", 33)
	r := f.cycle(time.Minute)
	if len(f.h.Status().Alerts) != 0 {
		t.Fatalf("expected alert resolved")
	}
	if len(r.Alerts) != 1 || r.Alerts[0].ResolvedAt == nil {
		t.Fatalf("expected resolved alert reported, got %+v", r.Alerts)
	}
	stored := f.store.Alerts("hab-1")
	if len(stored) != 1 || stored[0].ResolvedAt == nil {
		t.Fatalf("expected resolution persisted, got %+v", stored)
	}
}

func TestAcquisitionFailureKeepsAlertOpen(t *testing.T) {
	f := newFixture(t, noon, immediateOptions())
	f.sensors.Set("basking", 31)
	f.cycle(time.Minute)
	f.sensors.Fail("basking", habitat.KindTimeout)
	f.cycle(time.Minute)
	snap := f.h.Status()
	if len(snap.Alerts) != 1 {
		t.Fatalf("expected alert to stay open")
	}
	for _, z := range snap.Zones {
		if z.Zone == habitat.ZoneBasking && z.Status != habitat.StatusTooLow {
			t.Fatalf("expected last known status kept, got %s", z.Status)
		}
	}
}

func TestStaleReadingIsUnknown(t *testing.T) {
	f := newFixture(t, noon, immediateOptions())
	f.sensors.Now = func() time.Time { return noon.Add(-time.Hour) }
	f.sensors.Set("basking", 20)
	r := f.cycle(time.Minute)
	if len(r.Alerts) != 0 {
		t.Fatalf("stale reading must not alert, got %+v", r.Alerts)
	}
	for _, reading := range r.Readings {
		if reading.Valid {
			t.Fatalf("expected stale readings marked invalid: %+v", reading)
		}
	}
}

func TestAcknowledgeIsTerminal(t *testing.T) {
	f := newFixture(t, noon, immediateOptions())
	f.sensors.Set("basking", 31)
	r := f.cycle(time.Minute)
	id := r.Alerts[0].ID
	a, err := f.h.Acknowledge(context.Background(), id, "keeper")
	if err != nil || !a.Acknowledged || a.AcknowledgedBy != "keeper" || a.AcknowledgedAt == nil {
		t.Fatalf("unexpected ack result %+v %v", a, err)
	}
	if r := f.cycle(time.Minute); len(r.Alerts) != 0 || len(f.h.Status().Alerts) != 0 {
		t.Fatalf("acknowledged violation must not re-alert")
	}
	f.sensors.Set("basking", 34)
	f.cycle(time.Minute)
	f.sensors.Set("basking", 31)
	if r := f.cycle(time.Minute); len(r.Alerts) != 1 || r.Alerts[0].ID == id {
		t.Fatalf("expected a new alert after recovery, got %+v", r.Alerts)
	}
	if _, err := f.h.Acknowledge(context.Background(), "missing", "keeper"); !errors.Is(err, habitat.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStartAppliesCurrentMode(t *testing.T) {
	f := newFixture(t, noon, DefaultOptions())
	if f.outlets.State("uvb") != habitat.OutletOn {
		t.Fatalf("expected uvb on at day start")
	}
	night := newFixture(t, noon.Add(8*time.Hour), DefaultOptions())
	if night.outlets.State("uvb") != habitat.OutletOff || night.outlets.State("heat-lamp") != habitat.OutletOff {
		t.Fatalf("expected uvb and heat lamp off at night start")
	}
	if night.pub.count(SubjectMode) != 1 {
		t.Fatalf("expected mode event on start")
	}
}

func TestRuleCommandsDispatchedAfterDebounce(t *testing.T) {
	f := newFixture(t, noon, DefaultOptions())
	f.sensors.Set("basking", 31)
	if r := f.cycle(time.Minute); len(r.Commands) != 0 {
		t.Fatalf("expected debounce to hold, got %+v", r.Commands)
	}
	r := f.cycle(5 * time.Minute)
	if len(r.Commands) != 1 || r.Commands[0].Command.TriggeredBy != "hab-1-basking-heat-on" || !r.Commands[0].Success {
		t.Fatalf("expected heat lamp command, got %+v", r.Commands)
	}
	if f.outlets.State("heat-lamp") != habitat.OutletOn {
		t.Fatalf("expected heat lamp on")
	}
	audit := f.store.Commands()
	if audit[len(audit)-1].Command.OutletID != "heat-lamp" {
		t.Fatalf("expected command in audit trail")
	}
}

func TestFailedOutletRetriedNextCycle(t *testing.T) {
	f := newFixture(t, noon, DefaultOptions())
	f.sensors.Set("basking", 31)
	f.cycle(time.Minute)
	f.outlets.Fail("heat-lamp", habitat.KindConnection)
	r := f.cycle(5 * time.Minute)
	if len(r.Commands) != 1 || r.Commands[0].Success {
		t.Fatalf("expected failed command, got %+v", r.Commands)
	}
	f.outlets.Recover("heat-lamp")
	r = f.cycle(time.Minute)
	if len(r.Commands) != 1 || !r.Commands[0].Success || r.Commands[0].Command.DesiredState != habitat.OutletOn {
		t.Fatalf("expected command re-derived, got %+v", r.Commands)
	}
	if r := f.cycle(time.Minute); len(r.Commands) != 0 {
		t.Fatalf("expected no further commands, got %+v", r.Commands)
	}
}

func TestPersistentOutletFailureRaisesCriticalAlert(t *testing.T) {
	f := &fixture{
		clk:     clock.NewFixed(noon),
		sensors: device.NewMockSensor(),
		outlets: device.NewMockOutlet(),
		store:   storage.NewMemory(),
		pub:     &recorder{},
	}
	f.sensors.Now = f.clk.Now
	f.sensors.Set("basking", 33)
	f.sensors.Set("cool", 25)
	f.sensors.Set("humidity", 35)
	f.outlets.Fail("uvb", habitat.KindTimeout)
	f.h = f.build(t, DefaultOptions())
	f.cycle(time.Minute)
	r := f.cycle(time.Minute)
	if len(r.Alerts) != 1 || r.Alerts[0].OutletID != "uvb" || r.Alerts[0].Severity != habitat.SeverityCritical {
		t.Fatalf("expected outlet alert on third failure, got %+v", r.Alerts)
	}
	if f.h.Status().OutletFailures["uvb"] != 3 {
		t.Fatalf("expected failure count 3")
	}
	f.outlets.Recover("uvb")
	r = f.cycle(time.Minute)
	if len(r.Alerts) != 1 || r.Alerts[0].ResolvedAt == nil || f.outlets.State("uvb") != habitat.OutletOn {
		t.Fatalf("expected outlet alert resolved after success, got %+v", r.Alerts)
	}
}

func TestNightNeverSwitchesHeatLampOn(t *testing.T) {
	f := newFixture(t, noon.Add(8*time.Hour), DefaultOptions())
	f.sensors.Set("basking", 20)
	for i := 0; i < 8; i++ {
		for _, res := range f.cycle(time.Minute * 5).Commands {
			if res.Command.DesiredState == habitat.OutletOn && (res.Command.OutletID == "heat-lamp" || res.Command.OutletID == "uvb") {
				t.Fatalf("unexpected night command %+v", res.Command)
			}
		}
	}
}

func TestNightHeatingDrivesCeramicHeater(t *testing.T) {
	f := newFixture(t, noon.Add(8*time.Hour), DefaultOptions())
	f.sensors.Set("cool", 19)
	f.cycle(time.Minute)
	r := f.cycle(5 * time.Minute)
	found := false
	for _, res := range r.Commands {
		if res.Command.OutletID == "ceramic" && res.Command.DesiredState == habitat.OutletOn {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected ceramic heater on at night, got %+v", r.Commands)
	}
}

func TestManualControl(t *testing.T) {
	f := newFixture(t, noon, DefaultOptions())
	res, err := f.h.ManualControl(context.Background(), "humidifier", habitat.OutletOn)
	if err != nil || res.Command.TriggeredBy != habitat.TriggeredByUser {
		t.Fatalf("unexpected result %+v %v", res, err)
	}
	if f.outlets.State("humidifier") != habitat.OutletOn {
		t.Fatalf("expected humidifier on")
	}
	if _, err := f.h.ManualControl(context.Background(), "fogger", habitat.OutletOn); !habitat.IsInconsistency(err) {
		t.Fatalf("expected inconsistency, got %v", err)
	}
	if _, err := f.h.ManualControl(context.Background(), "uvb", "dim"); err == nil {
		t.Fatalf("expected invalid state error")
	}
	f.outlets.Fail("humidifier", habitat.KindConnection)
	var act *habitat.ActuationError
	if _, err := f.h.ManualControl(context.Background(), "humidifier", habitat.OutletOff); !errors.As(err, &act) {
		t.Fatalf("expected actuation error, got %v", err)
	}
}

func TestForceMode(t *testing.T) {
	f := newFixture(t, noon, DefaultOptions())
	before := f.pub.count(SubjectMode)
	results, err := f.h.ForceMode(context.Background(), habitat.ModeNight)
	if err != nil || len(results) != 2 {
		t.Fatalf("unexpected results %+v %v", results, err)
	}
	if f.outlets.State("uvb") != habitat.OutletOff || f.h.Status().Mode != habitat.ModeNight {
		t.Fatalf("expected forced night applied")
	}
	if f.pub.count(SubjectMode) != before+1 {
		t.Fatalf("expected mode event")
	}
	f.cycle(time.Minute)
	if f.h.Status().Mode != habitat.ModeNight {
		t.Fatalf("expected override to hold during cycles")
	}
	if _, err := f.h.ForceMode(context.Background(), "dawn"); err == nil {
		t.Fatalf("expected invalid mode error")
	}
}

func TestCheckDayNightAtSunset(t *testing.T) {
	f := newFixture(t, noon, DefaultOptions())
	if results := f.h.CheckDayNight(context.Background()); len(results) != 0 {
		t.Fatalf("expected no commands within day, got %+v", results)
	}
	f.clk.Set(time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC))
	if results := f.h.CheckDayNight(context.Background()); len(results) != 2 {
		t.Fatalf("expected sunset commands, got %+v", results)
	}
	if results := f.h.CheckDayNight(context.Background()); len(results) != 0 {
		t.Fatalf("expected idempotent check, got %+v", results)
	}
}

func TestRegisterRule(t *testing.T) {
	f := newFixture(t, noon, DefaultOptions())
	rule := habitat.Rule{
		ID: "mist", SensorID: "humidity", OutletID: "mister", Operator: habitat.OpLT,
		TriggerValue: 25, ActionOnTrigger: habitat.ActionOn, Enabled: true,
	}
	if err := f.h.RegisterRule(context.Background(), rule); !habitat.IsInconsistency(err) {
		t.Fatalf("expected unknown outlet rejected, got %v", err)
	}
	rule.OutletID = "humidifier"
	if err := f.h.RegisterRule(context.Background(), rule); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored, _ := f.store.LoadRules(context.Background(), "hab-1")
	if stored[len(stored)-1].ID != "mist" {
		t.Fatalf("expected rule persisted")
	}
	if err := f.h.SetRuleEnabled(context.Background(), "mist", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.h.SetRuleEnabled(context.Background(), "nope", false); !errors.Is(err, habitat.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := f.h.RemoveRule(context.Background(), "mist"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSetThreshold(t *testing.T) {
	f := newFixture(t, noon, immediateOptions())
	th := habitat.Threshold{SensorID: "basking", Zone: habitat.ZoneBasking, Min: 34, Max: 36, WarningMin: 30, WarningMax: 40, Hysteresis: 1, ActiveIn: habitat.ActiveDay}
	if err := f.h.SetThreshold(context.Background(), th); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r := f.cycle(time.Minute); len(r.Alerts) != 1 {
		t.Fatalf("expected alert against new bounds, got %+v", r.Alerts)
	}
	th.Min = 40
	if err := f.h.SetThreshold(context.Background(), th); err == nil {
		t.Fatalf("expected invalid threshold rejected")
	}
}

func TestRestartResumesRuleState(t *testing.T) {
	f := newFixture(t, noon, DefaultOptions())
	f.sensors.Set("basking", 31)
	f.cycle(time.Minute)
	f.h = f.build(t, DefaultOptions())
	r := f.cycle(5 * time.Minute)
	if len(r.Commands) != 1 || r.Commands[0].Command.OutletID != "heat-lamp" {
		t.Fatalf("expected debounce state restored, got %+v", r.Commands)
	}
}

func TestStatusSnapshot(t *testing.T) {
	f := newFixture(t, noon, DefaultOptions())
	f.cycle(time.Minute)
	snap := f.h.Status()
	if snap.HabitatID != "hab-1" || snap.Mode != habitat.ModeDay || len(snap.Readings) != 3 || len(snap.Zones) != 4 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.OutletStates["uvb"] != habitat.OutletOn || snap.OutletStates["mister"] != "" {
		t.Fatalf("unexpected outlet states %+v", snap.OutletStates)
	}
	states := f.h.RefreshOutlets(context.Background())
	if states["uvb"] != habitat.OutletOn || states["ceramic"] != habitat.OutletUnknown {
		t.Fatalf("unexpected read-back %+v", states)
	}
}

func TestFleet(t *testing.T) {
	f := newFixture(t, noon, immediateOptions())
	fleet := NewFleet()
	if err := fleet.Add(f.h); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := fleet.Add(f.h); err == nil {
		t.Fatalf("expected duplicate habitat rejected")
	}
	if err := fleet.ForceMode(context.Background(), "hab-2", habitat.ModeNight); !errors.Is(err, habitat.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := fleet.ForceMode(context.Background(), "hab-1", habitat.ModeNight); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.h.Status().Mode != habitat.ModeNight || len(fleet.All()) != 1 {
		t.Fatalf("expected forced mode through fleet")
	}
}

func TestFailedStartNeverOverwritesPersistedRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, noon, DefaultOptions())
	f.sensors.Set("basking", 31)
	f.cycle(time.Minute)
	persisted, _ := f.store.LoadRules(ctx, "hab-1")
	if len(persisted) == 0 {
		t.Fatalf("expected rules persisted")
	}

	f.h = f.assemble(t, &flakyStore{Memory: f.store, failLoads: 3}, DefaultOptions())
	if err := f.h.Start(ctx); err == nil {
		t.Fatalf("expected start to fail")
	}
	sent := len(f.outlets.Commands())
	if r := f.cycle(5 * time.Minute); len(r.Commands) != 0 || len(r.Readings) != 0 {
		t.Fatalf("expected idle cycle while state is not loaded, got %+v", r)
	}
	if len(f.outlets.Commands()) != sent {
		t.Fatalf("expected no outlet driven before load")
	}
	if _, err := f.h.ForceMode(ctx, habitat.ModeNight); !errors.Is(err, habitat.ErrNotStarted) {
		t.Fatalf("expected not started, got %v", err)
	}
	stored, _ := f.store.LoadRules(ctx, "hab-1")
	if len(stored) != len(persisted) {
		t.Fatalf("expected %d persisted rules kept, got %d", len(persisted), len(stored))
	}
}

func TestCycleRetriesFailedStart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, noon, DefaultOptions())
	f.sensors.Set("basking", 31)
	f.cycle(time.Minute)

	f.h = f.assemble(t, &flakyStore{Memory: f.store, failLoads: 1}, DefaultOptions())
	if err := f.h.Start(ctx); err == nil {
		t.Fatalf("expected start to fail")
	}
	r := f.cycle(5 * time.Minute)
	heated := false
	for _, res := range r.Commands {
		if res.Command.OutletID == "heat-lamp" && res.Command.DesiredState == habitat.OutletOn {
			heated = true
		}
	}
	if !heated {
		t.Fatalf("expected persisted rule state resumed after retry, got %+v", r.Commands)
	}
	if len(f.h.Status().Rules) == 0 {
		t.Fatalf("expected rules loaded")
	}
}

func TestAlertsLatchPerZone(t *testing.T) {
	f := newFixture(t, noon, immediateOptions())
	enclosure := habitat.Threshold{
		SensorID: "cool", Zone: habitat.Zone("enclosure"), Min: 27, Max: 30,
		WarningMin: 20, WarningMax: 35, Hysteresis: 1, ActiveIn: habitat.ActiveAlways,
	}
	if err := f.h.SetThreshold(context.Background(), enclosure); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ids := map[string]bool{}
	for i := 0; i < 4; i++ {
		for _, a := range f.cycle(time.Minute).Alerts {
			if a.SensorID == "cool" {
				ids[a.ID] = true
				if a.ResolvedAt != nil {
					t.Fatalf("expected alert to stay open, got %+v", a)
				}
			}
		}
	}
	if len(ids) != 1 {
		t.Fatalf("expected one alert across cycles, got %d", len(ids))
	}
	open := f.h.Status().Alerts
	if len(open) != 1 || open[0].Zone != enclosure.Zone {
		t.Fatalf("expected single enclosure alert, got %+v", open)
	}
}

func TestRuleChangeDuringCycleIsKept(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, noon, DefaultOptions())
	rule := habitat.Rule{
		ID: "mist", SensorID: "humidity", OutletID: "humidifier", Operator: habitat.OpLT,
		TriggerValue: 25, ActionOnTrigger: habitat.ActionOn, Enabled: true,
	}
	if err := f.h.RegisterRule(ctx, rule); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	store := &hookStore{Memory: f.store}
	f.h = f.assemble(t, store, DefaultOptions())
	if err := f.h.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	removed := make(chan error, 1)
	h := f.h
	store.onReading = func() {
		go func() { removed <- h.RemoveRule(ctx, "mist") }()
		time.Sleep(50 * time.Millisecond)
	}
	f.cycle(time.Minute)
	if err := <-removed; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored, _ := f.store.LoadRules(ctx, "hab-1")
	for _, r := range stored {
		if r.ID == "mist" {
			t.Fatalf("expected removed rule to stay removed")
		}
	}
}

func TestModeTransitionResolvesInactiveZoneAlerts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, noon.Add(5*time.Hour), immediateOptions())
	f.sensors.Set("basking", 30)
	r := f.cycle(time.Minute)
	if len(r.Alerts) != 1 || r.Alerts[0].Zone != habitat.ZoneBasking {
		t.Fatalf("expected basking alert, got %+v", r.Alerts)
	}
	f.clk.Set(time.Date(2024, 6, 1, 18, 30, 0, 0, time.UTC))
	r = f.cycle(0)
	if r.Mode != habitat.ModeNight {
		t.Fatalf("expected night, got %s", r.Mode)
	}
	for _, a := range f.h.Status().Alerts {
		if a.SensorID == "basking" {
			t.Fatalf("expected basking alert resolved at sunset, got %+v", a)
		}
	}
	for _, a := range f.store.Alerts("hab-1") {
		if a.SensorID == "basking" && a.ResolvedAt == nil {
			t.Fatalf("expected resolution persisted, got %+v", a)
		}
	}

	day := newFixture(t, noon, immediateOptions())
	day.sensors.Set("basking", 30)
	day.cycle(time.Minute)
	if _, err := day.h.ForceMode(ctx, habitat.ModeNight); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if open := day.h.Status().Alerts; len(open) != 0 {
		t.Fatalf("expected alerts resolved on forced night, got %+v", open)
	}
}
