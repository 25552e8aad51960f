package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sample = `
service:
  workers: 2
  limits:
    sustain_cycles: 2
    stale_after: 90s
storage:
  state_backend: memory
gateways:
  rack:
    transport: http
    endpoint: http://gateway.local/rpc
    username: keeper
    password: enc:abc
habitats:
  - id: gecko-1
    species: leopard_gecko
    gateway: rack
    poll_interval_seconds: 30
    sensors: {basking: basking, cool: cool, humidity: humidity}
    outlets: {heat_lamp: heat-lamp, uvb: uvb}
    location: {latitude: 52.52, longitude: 13.4, timezone: Europe/Berlin}
  - id: python-1
    species: ball_python
    sensors: {basking: t1}
    outlets: {heat_lamp: lamp}
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Service.Workers != 2 || cfg.Service.AdminPort != "8090" {
		t.Fatalf("unexpected service config %+v", cfg.Service)
	}
	limits := cfg.Service.Limits
	if limits.SustainCycles != 2 || limits.StaleAfter != 90*time.Second || !limits.CriticalImmediate || limits.OutletFailureLimit != 3 {
		t.Fatalf("expected defaults kept under overrides, got %+v", limits)
	}
	if len(cfg.Habitats) != 2 || cfg.Habitats[0].Location.Timezone != "Europe/Berlin" {
		t.Fatalf("unexpected habitats %+v", cfg.Habitats)
	}
	if cfg.PollInterval(cfg.Habitats[0]) != 30*time.Second || cfg.PollInterval(cfg.Habitats[1]) != time.Minute {
		t.Fatalf("unexpected poll intervals")
	}
	if UsesMock(cfg.Habitats[0]) || !UsesMock(cfg.Habitats[1]) {
		t.Fatalf("unexpected gateway selection")
	}
	if cfg.Gateways["rack"].Password != "enc:abc" {
		t.Fatalf("expected gateway password kept for decryption")
	}
	opts := limits.MonitorOptions()
	if opts.SustainCycles != 2 || opts.SensorTimeout != 5*time.Second {
		t.Fatalf("unexpected monitor options %+v", opts)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ADMIN_PORT", "9999")
	t.Setenv("WORKER_COUNT", "7")
	t.Setenv("NATS_URL", "nats://bus:4222")
	t.Setenv("ENCRYPTION_KEY", "k")
	cfg, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Service.AdminPort != "9999" || cfg.Service.Workers != 7 || cfg.Bus.URL != "nats://bus:4222" || cfg.Service.EncryptionKey != "k" {
		t.Fatalf("expected env overrides applied, got %+v %+v", cfg.Service, cfg.Bus)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"unknown gateway": strings.Replace(sample, "gateway: rack", "gateway: shelf", 1),
		"duplicate id":    strings.Replace(sample, "id: python-1", "id: gecko-1", 1),
		"poll too fast":   strings.Replace(sample, "poll_interval_seconds: 30", "poll_interval_seconds: 1", 1),
		"bad backend":     strings.Replace(sample, "state_backend: memory", "state_backend: etcd", 1),
		"postgres no dsn": strings.Replace(sample, "state_backend: memory", "state_backend: postgres", 1),
		"bad sustain":     strings.Replace(sample, "sustain_cycles: 2", "sustain_cycles: 0", 1),
		"no habitats":     sample[:strings.Index(sample, "habitats:")],
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestLimitsValidate(t *testing.T) {
	l := DefaultLimits()
	if err := l.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l.DayNightCheckSpec = "sometimes"
	if err := l.Validate(); err == nil {
		t.Fatalf("expected invalid cron spec")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}
