package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"reptilia-backend/internal/clock"
	"reptilia-backend/internal/device"
	"reptilia-backend/internal/habitat"
	"reptilia-backend/internal/monitor"
	"reptilia-backend/internal/scheduler"
	"reptilia-backend/internal/storage"
	"reptilia-backend/internal/suntimes"
)

type fixture struct {
	router  chi.Router
	hab     *monitor.Habitat
	sensors *device.MockSensor
	outlets *device.MockOutlet
	store   *storage.Memory
	jobs    *fakeJobs
	clk     *clock.Fixed
}

type fakeJobs struct {
	infos   []scheduler.JobInfo
	removed []string
}

func (f *fakeJobs) ListJobs() []scheduler.JobInfo { return f.infos }

func (f *fakeJobs) Unschedule(habitatID string) { f.removed = append(f.removed, habitatID) }

func setup(t *testing.T) *fixture {
	t.Helper()
	clk := clock.NewFixed(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	sensors := device.NewMockSensor()
	sensors.Now = clk.Now
	sensors.Set("basking", 31)
	sensors.Set("cool", 25)
	sensors.Set("humidity", 35)
	outlets := device.NewMockOutlet()
	store := storage.NewMemory()
	opts := monitor.DefaultOptions()
	opts.SustainCycles = 1
	hab, err := monitor.New(habitat.Config{
		ID:      "gecko-1",
		Name:    "Gecko tank",
		Species: habitat.LeopardGecko,
		Sensors: habitat.Sensors{Basking: "basking", Cool: "cool", Humidity: "humidity"},
		Outlets: habitat.Outlets{HeatLamp: "heat-lamp", CeramicHeater: "ceramic", UVB: "uvb", Humidifier: "humidifier"},
	}, monitor.Deps{
		Sensors: sensors,
		Outlets: outlets,
		Store:   store,
		Clock:   clk,
		Sun:     suntimes.DefaultFixed(),
		Logger:  slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := hab.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	fleet := monitor.NewFleet()
	if err := fleet.Add(hab); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	jobs := &fakeJobs{infos: []scheduler.JobInfo{{HabitatID: "gecko-1", PollIntervalSeconds: 60}}}
	h := &Handler{Fleet: fleet, Jobs: jobs, History: store, Timeout: time.Second}
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return &fixture{router: r, hab: hab, sensors: sensors, outlets: outlets, store: store, jobs: jobs, clk: clk}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	return resp
}

func TestHealthAndJobs(t *testing.T) {
	f := setup(t)
	if resp := f.do(t, http.MethodGet, "/healthz", nil); resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	resp := f.do(t, http.MethodGet, "/jobs", nil)
	var jobs []scheduler.JobInfo
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil || len(jobs) != 1 {
		t.Fatalf("unexpected jobs %v %+v", err, jobs)
	}
}

func TestListHabitatsAndStatus(t *testing.T) {
	f := setup(t)
	f.hab.RunCycle(context.Background())
	resp := f.do(t, http.MethodGet, "/habitats", nil)
	var list []habitatSummary
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0].HabitatID != "gecko-1" || list[0].Mode != habitat.ModeDay || list[0].OpenAlerts != 1 {
		t.Fatalf("unexpected list %+v", list)
	}
	resp = f.do(t, http.MethodGet, "/habitats/gecko-1/status", nil)
	var snap monitor.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.HabitatID != "gecko-1" || len(snap.Alerts) != 1 || len(snap.Readings) != 3 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if resp := f.do(t, http.MethodGet, "/habitats/nope/status", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestForceModeRoute(t *testing.T) {
	f := setup(t)
	resp := f.do(t, http.MethodPost, "/habitats/gecko-1/mode", map[string]string{"mode": "night"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if f.hab.Status().Mode != habitat.ModeNight || f.outlets.State("uvb") != habitat.OutletOff {
		t.Fatalf("expected night forced")
	}
	resp = f.do(t, http.MethodPost, "/habitats/gecko-1/mode", map[string]string{"mode": "dusk"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	var errResp errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Code != habitat.CodeModeInvalid {
		t.Fatalf("unexpected error body %+v %v", errResp, err)
	}
}

func TestRuleRoutes(t *testing.T) {
	f := setup(t)
	bad := map[string]any{"rule_id": "mist", "sensor_id": "humidity", "outlet_id": "humidifier", "trigger_operator": "between", "trigger_value": 25, "action_on_trigger": "on"}
	resp := f.do(t, http.MethodPost, "/habitats/gecko-1/rules", bad)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	var errResp errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Code != habitat.CodeRuleInvalid || len(errResp.Details) != 1 || errResp.Details[0].Field != "trigger_operator" {
		t.Fatalf("unexpected error body %+v", errResp)
	}
	bad["trigger_operator"] = "lt"
	bad["outlet_id"] = "fogger"
	resp = f.do(t, http.MethodPost, "/habitats/gecko-1/rules", bad)
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Code != habitat.CodeInconsistent {
		t.Fatalf("expected inconsistency, got %+v", errResp)
	}
	bad["outlet_id"] = "humidifier"
	if resp := f.do(t, http.MethodPost, "/habitats/gecko-1/rules", bad); resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if resp := f.do(t, http.MethodPost, "/habitats/gecko-1/rules/mist/disable", nil); resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	for _, r := range f.hab.Status().Rules {
		if r.ID == "mist" && r.Enabled {
			t.Fatalf("expected rule disabled")
		}
	}
	if resp := f.do(t, http.MethodPost, "/habitats/gecko-1/rules/ghost/enable", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	if resp := f.do(t, http.MethodDelete, "/habitats/gecko-1/rules/mist", nil); resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if resp := f.do(t, http.MethodPost, "/habitats/gecko-1/rules", map[string]any{"unknown": 1}); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected unknown fields rejected, got %d", resp.Code)
	}
}

func TestThresholdRoute(t *testing.T) {
	f := setup(t)
	th := habitat.Threshold{SensorID: "basking", Zone: habitat.ZoneBasking, Min: 30, Max: 36, WarningMin: 28, WarningMax: 38, Hysteresis: 1, ActiveIn: habitat.ActiveDay}
	if resp := f.do(t, http.MethodPost, "/habitats/gecko-1/thresholds", th); resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	th.Min = 50
	if resp := f.do(t, http.MethodPost, "/habitats/gecko-1/thresholds", th); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestOutletRoute(t *testing.T) {
	f := setup(t)
	if resp := f.do(t, http.MethodPost, "/habitats/gecko-1/outlets/humidifier", map[string]string{"state": "on"}); resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if f.outlets.State("humidifier") != habitat.OutletOn {
		t.Fatalf("expected humidifier on")
	}
	f.outlets.Fail("humidifier", habitat.KindTimeout)
	if resp := f.do(t, http.MethodPost, "/habitats/gecko-1/outlets/humidifier", map[string]string{"state": "off"}); resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.Code)
	}
	if resp := f.do(t, http.MethodPost, "/habitats/gecko-1/outlets/fogger", map[string]string{"state": "on"}); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	resp := f.do(t, http.MethodGet, "/habitats/gecko-1/outlets", nil)
	var states map[string]habitat.OutletState
	if err := json.NewDecoder(resp.Body).Decode(&states); err != nil || states["uvb"] != habitat.OutletOn {
		t.Fatalf("unexpected states %+v %v", states, err)
	}
}

func TestAckRoute(t *testing.T) {
	f := setup(t)
	report := f.hab.RunCycle(context.Background())
	if len(report.Alerts) != 1 {
		t.Fatalf("expected an alert to acknowledge")
	}
	id := report.Alerts[0].ID
	resp := f.do(t, http.MethodPost, "/habitats/gecko-1/alerts/"+id+"/ack", map[string]string{"by": "keeper"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if len(f.hab.Status().Alerts) != 0 {
		t.Fatalf("expected alert acknowledged")
	}
	if resp := f.do(t, http.MethodPost, "/habitats/gecko-1/alerts/missing/ack", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestCommandHistoryRoute(t *testing.T) {
	f := setup(t)
	f.do(t, http.MethodPost, "/habitats/gecko-1/outlets/humidifier", map[string]string{"state": "on"})
	resp := f.do(t, http.MethodGet, "/habitats/gecko-1/commands?limit=1", nil)
	var cmds []habitat.CommandResult
	if err := json.NewDecoder(resp.Body).Decode(&cmds); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(cmds) != 1 || cmds[0].Command.OutletID != "humidifier" || cmds[0].Command.TriggeredBy != habitat.TriggeredByUser {
		t.Fatalf("unexpected history %+v", cmds)
	}
	if resp := f.do(t, http.MethodGet, "/habitats/gecko-1/commands?limit=zero", nil); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestDeleteHabitatRoute(t *testing.T) {
	f := setup(t)
	if resp := f.do(t, http.MethodDelete, "/habitats/gecko-1", nil); resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if len(f.jobs.removed) != 1 || f.jobs.removed[0] != "gecko-1" {
		t.Fatalf("expected habitat unscheduled, got %v", f.jobs.removed)
	}
	if rules, _ := f.store.LoadRules(context.Background(), "gecko-1"); len(rules) != 0 {
		t.Fatalf("expected rules retired, got %d", len(rules))
	}
	if resp := f.do(t, http.MethodGet, "/habitats/gecko-1/status", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.Code)
	}
	if resp := f.do(t, http.MethodDelete, "/habitats/gecko-1", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", resp.Code)
	}
}
