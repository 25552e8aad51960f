package storage

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"reptilia-backend/internal/habitat"
)

func setupTestRepository(t *testing.T) (*Repository, func()) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	store, err := NewStore(context.Background(), dsn)
	if err != nil {
		t.Fatalf("failed to connect to db: %v", err)
	}
	schema, err := os.ReadFile("../../migrations/001_init.sql")
	if err != nil {
		t.Fatalf("failed to read schema: %v", err)
	}
	if _, err := store.Pool.Exec(context.Background(), string(schema)); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}
	return NewRepository(store), store.Close
}

func TestRepositoryRulesRoundTrip(t *testing.T) {
	repo, cleanup := setupTestRepository(t)
	defer cleanup()
	ctx := context.Background()
	habitatID := "test-" + uuid.NewString()
	since := time.Now().UTC().Truncate(time.Second)
	rules := []habitat.Rule{
		{ID: "b", SensorID: "s", OutletID: "o", Operator: habitat.OpLT, Enabled: true, ConditionSince: &since},
		{ID: "a", SensorID: "s", OutletID: "o", Operator: habitat.OpGTE},
	}
	if err := repo.SaveRules(ctx, habitatID, rules); err != nil {
		t.Fatalf("save rules: %v", err)
	}
	if err := repo.SaveRules(ctx, habitatID, rules[:1]); err != nil {
		t.Fatalf("replace rules: %v", err)
	}
	loaded, err := repo.LoadRules(ctx, habitatID)
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	if len(loaded) != 1 || loaded[0].ID != "b" || loaded[0].ConditionSince == nil || !loaded[0].ConditionSince.Equal(since) {
		t.Fatalf("unexpected rules %+v", loaded)
	}
}

func TestRepositoryDayNight(t *testing.T) {
	repo, cleanup := setupTestRepository(t)
	defer cleanup()
	ctx := context.Background()
	habitatID := "test-" + uuid.NewString()
	if _, err := repo.LoadDayNight(ctx, habitatID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	rise := time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC)
	state := habitat.DayNightState{HabitatID: habitatID, Mode: habitat.ModeDay, Date: "2024-06-01", SunriseAt: rise, SunsetAt: rise.Add(12 * time.Hour)}
	if err := repo.SaveDayNight(ctx, state); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := repo.LoadDayNight(ctx, habitatID)
	if err != nil || loaded.Mode != habitat.ModeDay || !loaded.SunriseAt.Equal(rise) || !loaded.OverrideUntil.IsZero() {
		t.Fatalf("unexpected state %+v %v", loaded, err)
	}
}

func TestRepositoryAlertsAndAudit(t *testing.T) {
	repo, cleanup := setupTestRepository(t)
	defer cleanup()
	ctx := context.Background()
	habitatID := "test-" + uuid.NewString()
	alert := habitat.Alert{ID: uuid.NewString(), HabitatID: habitatID, SensorID: "s", Severity: habitat.SeverityWarning, CreatedAt: time.Now().UTC()}
	if err := repo.SaveAlert(ctx, alert); err != nil {
		t.Fatalf("save alert: %v", err)
	}
	open, err := repo.LoadAlerts(ctx, habitatID)
	if err != nil || len(open) != 1 {
		t.Fatalf("expected one open alert, got %d %v", len(open), err)
	}
	alert.Acknowledged = true
	_ = repo.SaveAlert(ctx, alert)
	if open, _ := repo.LoadAlerts(ctx, habitatID); len(open) != 0 {
		t.Fatalf("expected acknowledged alert closed")
	}
	cmd := habitat.OutletCommand{ID: uuid.NewString(), HabitatID: habitatID, OutletID: "uvb", DesiredState: habitat.OutletOn, Reason: "test", TriggeredBy: habitat.TriggeredByUser, Timestamp: time.Now().UTC()}
	if err := repo.AppendCommand(ctx, habitat.CommandResult{Command: cmd, Success: true, Executed: time.Now().UTC()}); err != nil {
		t.Fatalf("append command: %v", err)
	}
	cmds, err := repo.RecentCommands(ctx, habitatID, 10)
	if err != nil || len(cmds) != 1 || cmds[0].Command.OutletID != "uvb" {
		t.Fatalf("unexpected commands %+v %v", cmds, err)
	}
}
