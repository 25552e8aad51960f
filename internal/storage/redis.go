package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"reptilia-backend/internal/habitat"
)

// RedisState keeps the key-value half in redis as JSON documents under
// reptilia:<habitat>:*.
type RedisState struct {
	Client *redis.Client
}

func NewRedisState(addr, password string, db int) (*RedisState, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisState{Client: client}, nil
}

func (s *RedisState) Close() error {
	return s.Client.Close()
}

func redisKey(habitatID, kind string) string {
	return "reptilia:" + habitatID + ":" + kind
}

func (s *RedisState) getJSON(ctx context.Context, key string, dst any) (bool, error) {
	data, err := s.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(data, dst)
}

func (s *RedisState) setJSON(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.Client.Set(ctx, key, data, 0).Err()
}

func (s *RedisState) LoadRules(ctx context.Context, habitatID string) ([]habitat.Rule, error) {
	rules := []habitat.Rule{}
	if _, err := s.getJSON(ctx, redisKey(habitatID, "rules"), &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func (s *RedisState) SaveRules(ctx context.Context, habitatID string, rules []habitat.Rule) error {
	return s.setJSON(ctx, redisKey(habitatID, "rules"), rules)
}

func (s *RedisState) LoadThresholds(ctx context.Context, habitatID string) ([]habitat.Threshold, error) {
	thresholds := []habitat.Threshold{}
	if _, err := s.getJSON(ctx, redisKey(habitatID, "thresholds"), &thresholds); err != nil {
		return nil, err
	}
	return thresholds, nil
}

func (s *RedisState) SaveThresholds(ctx context.Context, habitatID string, thresholds []habitat.Threshold) error {
	return s.setJSON(ctx, redisKey(habitatID, "thresholds"), thresholds)
}

func (s *RedisState) LoadDayNight(ctx context.Context, habitatID string) (habitat.DayNightState, error) {
	var state habitat.DayNightState
	found, err := s.getJSON(ctx, redisKey(habitatID, "daynight"), &state)
	if err != nil {
		return habitat.DayNightState{}, err
	}
	if !found {
		return habitat.DayNightState{}, ErrNotFound
	}
	return state, nil
}

func (s *RedisState) SaveDayNight(ctx context.Context, state habitat.DayNightState) error {
	return s.setJSON(ctx, redisKey(state.HabitatID, "daynight"), state)
}

// LoadAlerts returns the open alerts kept in the habitat's alert hash.
func (s *RedisState) LoadAlerts(ctx context.Context, habitatID string) ([]habitat.Alert, error) {
	values, err := s.Client.HGetAll(ctx, redisKey(habitatID, "alerts")).Result()
	if err != nil {
		return nil, err
	}
	alerts := []habitat.Alert{}
	for _, raw := range values {
		var a habitat.Alert
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	sortByCreated(alerts)
	return alerts, nil
}

// SaveAlert keeps open alerts in the hash and drops closed ones, so the hash
// never grows past the currently open set.
func (s *RedisState) SaveAlert(ctx context.Context, alert habitat.Alert) error {
	key := redisKey(alert.HabitatID, "alerts")
	if !alert.Open() {
		return s.Client.HDel(ctx, key, alert.ID).Err()
	}
	data, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	return s.Client.HSet(ctx, key, alert.ID, data).Err()
}
