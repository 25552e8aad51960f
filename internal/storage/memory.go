package storage

import (
	"context"
	"sync"

	"reptilia-backend/internal/habitat"
)

// Memory keeps everything in process. Used for tests and when no database
// is configured.
type Memory struct {
	mu         sync.Mutex
	rules      map[string][]habitat.Rule
	thresholds map[string][]habitat.Threshold
	dayNight   map[string]habitat.DayNightState
	alerts     map[string]map[string]habitat.Alert
	alertOrder map[string][]string
	readings   []habitat.Reading
	commands   []habitat.CommandResult
}

func NewMemory() *Memory {
	return &Memory{
		rules:      map[string][]habitat.Rule{},
		thresholds: map[string][]habitat.Threshold{},
		dayNight:   map[string]habitat.DayNightState{},
		alerts:     map[string]map[string]habitat.Alert{},
		alertOrder: map[string][]string{},
	}
}

func (m *Memory) LoadRules(ctx context.Context, habitatID string) ([]habitat.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]habitat.Rule{}, m.rules[habitatID]...), nil
}

func (m *Memory) SaveRules(ctx context.Context, habitatID string, rules []habitat.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[habitatID] = append([]habitat.Rule{}, rules...)
	return nil
}

func (m *Memory) LoadThresholds(ctx context.Context, habitatID string) ([]habitat.Threshold, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]habitat.Threshold{}, m.thresholds[habitatID]...), nil
}

func (m *Memory) SaveThresholds(ctx context.Context, habitatID string, thresholds []habitat.Threshold) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.thresholds[habitatID] = append([]habitat.Threshold{}, thresholds...)
	return nil
}

func (m *Memory) LoadDayNight(ctx context.Context, habitatID string) (habitat.DayNightState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.dayNight[habitatID]
	if !ok {
		return habitat.DayNightState{}, ErrNotFound
	}
	return state, nil
}

func (m *Memory) SaveDayNight(ctx context.Context, state habitat.DayNightState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dayNight[state.HabitatID] = state
	return nil
}

func (m *Memory) LoadAlerts(ctx context.Context, habitatID string) ([]habitat.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []habitat.Alert{}
	for _, id := range m.alertOrder[habitatID] {
		if a := m.alerts[habitatID][id]; a.Open() {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *Memory) SaveAlert(ctx context.Context, alert habitat.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byID, ok := m.alerts[alert.HabitatID]
	if !ok {
		byID = map[string]habitat.Alert{}
		m.alerts[alert.HabitatID] = byID
	}
	if _, seen := byID[alert.ID]; !seen {
		m.alertOrder[alert.HabitatID] = append(m.alertOrder[alert.HabitatID], alert.ID)
	}
	byID[alert.ID] = alert
	return nil
}

// Alerts returns every saved alert of a habitat, open or not.
func (m *Memory) Alerts(habitatID string) []habitat.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []habitat.Alert{}
	for _, id := range m.alertOrder[habitatID] {
		out = append(out, m.alerts[habitatID][id])
	}
	return out
}

func (m *Memory) AppendReading(ctx context.Context, reading habitat.Reading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readings = append(m.readings, reading)
	return nil
}

func (m *Memory) AppendCommand(ctx context.Context, result habitat.CommandResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, result)
	return nil
}

func (m *Memory) Readings() []habitat.Reading {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]habitat.Reading{}, m.readings...)
}

func (m *Memory) Commands() []habitat.CommandResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]habitat.CommandResult{}, m.commands...)
}

// RecentCommands returns up to limit commands of a habitat, newest first.
func (m *Memory) RecentCommands(ctx context.Context, habitatID string, limit int) ([]habitat.CommandResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []habitat.CommandResult{}
	for i := len(m.commands) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if m.commands[i].Command.HabitatID == habitatID {
			out = append(out, m.commands[i])
		}
	}
	return out, nil
}
