package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"reptilia-backend/internal/audit"
	"reptilia-backend/internal/device"
	"reptilia-backend/internal/habitat"
)

const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"

	gatewayMock = "mock"
)

type Config struct {
	Service  ServiceConfig                   `yaml:"service"`
	Storage  StorageConfig                   `yaml:"storage"`
	Audit    *audit.ConnectionConfig         `yaml:"audit"`
	Bus      BusConfig                       `yaml:"bus"`
	Notify   NotifyConfig                    `yaml:"notify"`
	Gateways map[string]device.GatewayConfig `yaml:"gateways"`
	Habitats []habitat.Config                `yaml:"habitats"`
}

type ServiceConfig struct {
	AdminPort           string `yaml:"admin_port"`
	Workers             int    `yaml:"workers"`
	JobTimeoutSeconds   int    `yaml:"job_timeout_seconds"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
	ShutdownSeconds     int    `yaml:"shutdown_seconds"`
	EncryptionKey       string `yaml:"-"`
	Limits              Limits `yaml:"limits"`
}

type StorageConfig struct {
	Backend       string `yaml:"state_backend"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

type BusConfig struct {
	URL string `yaml:"url"`
}

type NotifyConfig struct {
	URL      string   `yaml:"url"`
	Queue    string   `yaml:"queue"`
	Subjects []string `yaml:"subjects"`
}

func Default() Config {
	return Config{
		Service: ServiceConfig{
			AdminPort:           "8090",
			Workers:             4,
			JobTimeoutSeconds:   30,
			PollIntervalSeconds: 60,
			ShutdownSeconds:     15,
			Limits:              DefaultLimits(),
		},
		Storage: StorageConfig{Backend: BackendPostgres},
		Notify:  NotifyConfig{Subjects: []string{"habitat.alert"}},
	}
}

// Load reads the yaml file at path over the defaults, then applies the
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(data)
}

func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Storage.PostgresDSN = getenv("DATABASE_URL", c.Storage.PostgresDSN)
	c.Storage.RedisAddr = getenv("REDIS_ADDR", c.Storage.RedisAddr)
	c.Bus.URL = getenv("NATS_URL", c.Bus.URL)
	c.Notify.URL = getenv("AMQP_URL", c.Notify.URL)
	c.Service.AdminPort = getenv("ADMIN_PORT", c.Service.AdminPort)
	c.Service.Workers = getenvInt("WORKER_COUNT", c.Service.Workers)
	c.Service.PollIntervalSeconds = getenvInt("POLL_INTERVAL_SECONDS", c.Service.PollIntervalSeconds)
	c.Service.EncryptionKey = getenv("ENCRYPTION_KEY", c.Service.EncryptionKey)
}

func (c Config) Validate() error {
	var errs []error
	if err := c.Service.Limits.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Service.Workers <= 0 {
		errs = append(errs, errors.New("service.workers must be positive"))
	}
	if c.Service.JobTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("service.job_timeout_seconds must be positive"))
	}
	switch c.Storage.Backend {
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for the postgres backend"))
		}
	case BackendRedis:
		if c.Storage.RedisAddr == "" {
			errs = append(errs, errors.New("storage.redis_addr is required for the redis backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unsupported state backend %q", c.Storage.Backend))
	}
	if len(c.Habitats) == 0 {
		errs = append(errs, errors.New("no habitats configured"))
	}
	seen := map[string]bool{}
	for _, h := range c.Habitats {
		if h.ID == "" {
			errs = append(errs, errors.New("habitat id is required"))
			continue
		}
		if seen[h.ID] {
			errs = append(errs, fmt.Errorf("habitat %s configured twice", h.ID))
		}
		seen[h.ID] = true
		if !c.knownGateway(h.Gateway) {
			errs = append(errs, fmt.Errorf("habitat %s: unknown gateway %q", h.ID, h.Gateway))
		}
		poll := c.PollSeconds(h)
		if poll < c.Service.Limits.MinPollSeconds || poll > c.Service.Limits.MaxPollSeconds {
			errs = append(errs, fmt.Errorf("habitat %s: poll interval %ds outside %d..%d", h.ID, poll,
				c.Service.Limits.MinPollSeconds, c.Service.Limits.MaxPollSeconds))
		}
	}
	return errors.Join(errs...)
}

// PollSeconds is the habitat's poll interval, falling back to the service
// default.
func (c Config) PollSeconds(h habitat.Config) int {
	if h.PollIntervalSeconds > 0 {
		return h.PollIntervalSeconds
	}
	return c.Service.PollIntervalSeconds
}

func (c Config) PollInterval(h habitat.Config) time.Duration {
	return time.Duration(c.PollSeconds(h)) * time.Second
}

// UsesMock reports whether the habitat runs against in-process devices.
func UsesMock(h habitat.Config) bool {
	return h.Gateway == "" || strings.EqualFold(h.Gateway, gatewayMock)
}

func (c Config) knownGateway(name string) bool {
	if name == "" || strings.EqualFold(name, gatewayMock) {
		return true
	}
	for configured := range c.Gateways {
		if strings.EqualFold(configured, name) {
			return true
		}
	}
	return false
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
