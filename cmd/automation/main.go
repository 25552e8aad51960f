package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"reptilia-backend/internal/api"
	"reptilia-backend/internal/audit"
	"reptilia-backend/internal/bus"
	"reptilia-backend/internal/config"
	"reptilia-backend/internal/crypto"
	"reptilia-backend/internal/device"
	"reptilia-backend/internal/habitat"
	"reptilia-backend/internal/monitor"
	"reptilia-backend/internal/notify"
	"reptilia-backend/internal/scheduler"
	"reptilia-backend/internal/storage"
	"reptilia-backend/internal/suntimes"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx := context.Background()

	cfg, err := config.Load(getenv("REPTILIA_CONFIG", "config.yaml"))
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var encryptor crypto.Encryptor
	if cfg.Service.EncryptionKey != "" {
		key, err := crypto.ParseKey(cfg.Service.EncryptionKey)
		if err != nil {
			logger.Error("invalid encryption key", slog.String("error", err.Error()))
			os.Exit(1)
		}
		aes, err := crypto.NewAesGcmEncryptor(key)
		if err != nil {
			logger.Error("invalid encryption key", slog.String("error", err.Error()))
			os.Exit(1)
		}
		encryptor = aes
	}
	if cfg.Audit != nil {
		plain, err := crypto.Reveal(encryptor, cfg.Audit.Password)
		if err != nil {
			logger.Error("failed to decrypt audit password", slog.String("error", err.Error()))
			os.Exit(1)
		}
		cfg.Audit.Password = plain
	}
	gateways, err := device.BuildRegistry(cfg.Gateways, func(value string) (string, error) {
		return crypto.Reveal(encryptor, value)
	})
	if err != nil {
		logger.Error("failed to configure gateways", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	store, err := openStore(ctx, cfg, logger, &closers)
	if err != nil {
		logger.Error("failed to open storage", slog.String("error", err.Error()))
		os.Exit(1)
	}

	publishers := monitor.Fanout{}
	if cfg.Bus.URL != "" {
		pub, err := bus.NewPublisher(cfg.Bus.URL)
		if err != nil {
			logger.Error("failed to connect to nats", slog.String("error", err.Error()))
			os.Exit(1)
		}
		closers = append(closers, pub.Close)
		publishers = append(publishers, pub)
	}
	if cfg.Notify.URL != "" {
		amqpPub, err := notify.Dial(cfg.Notify.URL, cfg.Notify.Queue, cfg.Notify.Subjects...)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", slog.String("error", err.Error()))
			os.Exit(1)
		}
		closers = append(closers, func() { _ = amqpPub.Close() })
		publishers = append(publishers, amqpPub)
	}

	reg, err := scheduler.NewRegistry(scheduler.Options{
		Workers:      cfg.Service.Workers,
		JobTimeout:   time.Duration(cfg.Service.JobTimeoutSeconds) * time.Second,
		DayNightSpec: cfg.Service.Limits.DayNightCheckSpec,
	}, logger)
	if err != nil {
		logger.Error("failed to start scheduler", slog.String("error", err.Error()))
		os.Exit(1)
	}

	fleet := monitor.NewFleet()
	for _, hc := range cfg.Habitats {
		sensors, outlets, err := devicesFor(hc, gateways)
		if err != nil {
			logger.Error("failed to configure devices", slog.String("habitat", hc.ID), slog.String("error", err.Error()))
			os.Exit(1)
		}
		hab, err := monitor.New(hc, monitor.Deps{
			Sensors:   sensors,
			Outlets:   outlets,
			Store:     store,
			Publisher: publishers,
			Sun:       suntimes.ForName(hc.SunTimes),
			Logger:    logger,
		}, cfg.Service.Limits.MonitorOptions())
		if err != nil {
			logger.Error("invalid habitat", slog.String("habitat", hc.ID), slog.String("error", err.Error()))
			os.Exit(1)
		}
		startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err = hab.Start(startCtx)
		cancel()
		if err != nil {
			// Cycles retry the load; the habitat stays idle until it succeeds.
			logger.Warn("habitat start deferred", slog.String("habitat", hc.ID), slog.String("error", err.Error()))
		}
		if err := fleet.Add(hab); err != nil {
			logger.Error("failed to register habitat", slog.String("habitat", hc.ID), slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := reg.Schedule(hab, cfg.PollInterval(hc)); err != nil {
			logger.Error("failed to schedule habitat", slog.String("habitat", hc.ID), slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	if cfg.Bus.URL != "" {
		sub, err := bus.NewSubscriber(cfg.Bus.URL)
		if err != nil {
			logger.Error("failed to connect to nats", slog.String("error", err.Error()))
			os.Exit(1)
		}
		closers = append(closers, sub.Close)
		if _, err := bus.Listen(sub, fleet, logger); err != nil {
			logger.Error("failed to subscribe", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))
	handler := &api.Handler{Fleet: fleet, Jobs: reg, History: store, Timeout: 10 * time.Second}
	handler.RegisterRoutes(r)

	server := &http.Server{
		Addr:              ":" + cfg.Service.AdminPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		logger.Info("automation admin listening", slog.String("port", cfg.Service.AdminPort), slog.Int("habitats", len(cfg.Habitats)))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("admin server error", slog.String("error", err.Error()))
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Service.ShutdownSeconds)*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin shutdown error", slog.String("error", err.Error()))
	}
	if err := reg.Stop(shutdownCtx); err != nil {
		logger.Error("scheduler shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("automation stopped")
}

// openStore builds the configured state backend with its audit trail and
// registers the connections to close on exit.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger, closers *[]func()) (storage.Split, error) {
	var (
		state storage.StateStore
		trail storage.AuditLog
	)
	if cfg.Storage.PostgresDSN != "" && cfg.Storage.Backend != config.BackendMemory {
		pg, err := storage.NewStore(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return storage.Split{}, err
		}
		*closers = append(*closers, pg.Close)
		repo := storage.NewRepository(pg)
		state, trail = repo, repo
	}
	switch cfg.Storage.Backend {
	case config.BackendRedis:
		rs, err := storage.NewRedisState(cfg.Storage.RedisAddr, cfg.Storage.RedisPassword, cfg.Storage.RedisDB)
		if err != nil {
			return storage.Split{}, err
		}
		*closers = append(*closers, func() { _ = rs.Close() })
		state = rs
	case config.BackendMemory:
		mem := storage.NewMemory()
		state, trail = mem, mem
	}
	if trail == nil {
		trail = storage.NewMemory()
	}

	split := storage.Split{StateStore: state, Audit: trail}
	if cfg.Audit != nil {
		sink, err := audit.NewSink(*cfg.Audit)
		if err != nil {
			return storage.Split{}, err
		}
		*closers = append(*closers, func() { _ = sink.Close() })
		auditCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := sink.TestConnection(auditCtx); err != nil {
			return storage.Split{}, err
		}
		if err := sink.EnsureSchema(auditCtx); err != nil {
			return storage.Split{}, err
		}
		logger.Info("audit mirror enabled", slog.String("dialect", sink.Dialect()))
		split.Mirrors = append(split.Mirrors, sink)
	}
	return split, nil
}

// devicesFor returns the habitat's gateway, or mocks seeded with the middle of
// the species bands when it runs without hardware.
func devicesFor(hc habitat.Config, gateways *device.Registry) (device.SensorSource, device.OutletSink, error) {
	if !config.UsesMock(hc) {
		gw, err := gateways.GatewayFor(hc.Gateway)
		if err != nil {
			return nil, nil, err
		}
		return gw, gw, nil
	}
	if err := hc.Resolve(); err != nil {
		return nil, nil, err
	}
	req := hc.Requirements
	sensors := device.NewMockSensor()
	if hc.Sensors.Basking != "" {
		sensors.Set(hc.Sensors.Basking, (req.BaskingTempMin+req.BaskingTempMax)/2)
	}
	if hc.Sensors.Cool != "" {
		sensors.Set(hc.Sensors.Cool, (req.CoolSideTempMin+req.CoolSideTempMax)/2)
	}
	if hc.Sensors.Humidity != "" {
		sensors.Set(hc.Sensors.Humidity, (req.HumidityMin+req.HumidityMax)/2)
	}
	return sensors, device.NewMockOutlet(), nil
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
