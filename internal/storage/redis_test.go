package storage

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"

	"reptilia-backend/internal/habitat"
)

func setupRedis(t *testing.T) *RedisState {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	s, err := NewRedisState(addr, "", 0)
	if err != nil {
		t.Fatalf("failed to connect to redis: %v", err)
	}
	return s
}

func TestRedisStateRoundTrip(t *testing.T) {
	s := setupRedis(t)
	defer s.Close()
	ctx := context.Background()
	habitatID := "test-" + uuid.NewString()
	if _, err := s.LoadDayNight(ctx, habitatID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if rules, err := s.LoadRules(ctx, habitatID); err != nil || len(rules) != 0 {
		t.Fatalf("expected no rules, got %v %v", rules, err)
	}
	_ = s.SaveRules(ctx, habitatID, []habitat.Rule{{ID: "r1"}})
	rules, _ := s.LoadRules(ctx, habitatID)
	if len(rules) != 1 || rules[0].ID != "r1" {
		t.Fatalf("unexpected rules %+v", rules)
	}
	alert := habitat.Alert{ID: "a1", HabitatID: habitatID}
	_ = s.SaveAlert(ctx, alert)
	if open, _ := s.LoadAlerts(ctx, habitatID); len(open) != 1 {
		t.Fatalf("expected open alert")
	}
	alert.Acknowledged = true
	_ = s.SaveAlert(ctx, alert)
	if open, _ := s.LoadAlerts(ctx, habitatID); len(open) != 0 {
		t.Fatalf("expected acknowledged alert dropped")
	}
	s.Client.Del(ctx, redisKey(habitatID, "rules"), redisKey(habitatID, "alerts"))
}
