package monitor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"reptilia-backend/internal/habitat"
)

type ZoneStatus struct {
	SensorID  string           `json:"sensor_id"`
	Zone      habitat.Zone     `json:"zone"`
	Active    bool             `json:"active"`
	Status    habitat.Status   `json:"status"`
	Level     habitat.Severity `json:"level,omitempty"`
	Value     float64          `json:"value"`
	Streak    int              `json:"streak"`
	UpdatedAt time.Time        `json:"updated_at"`
}

type Snapshot struct {
	HabitatID      string                         `json:"habitat_id"`
	Name           string                         `json:"name"`
	Species        habitat.Species                `json:"species"`
	Mode           habitat.Mode                   `json:"mode"`
	DayNight       habitat.DayNightState          `json:"day_night"`
	Rules          []habitat.Rule                 `json:"rules"`
	Thresholds     []habitat.Threshold            `json:"thresholds"`
	Zones          []ZoneStatus                   `json:"zones"`
	Readings       []habitat.Reading              `json:"readings"`
	Alerts         []habitat.Alert                `json:"alerts"`
	OutletFailures map[string]int                 `json:"outlet_failures"`
	OutletStates   map[string]habitat.OutletState `json:"outlet_states"`
	LastCycleAt    time.Time                      `json:"last_cycle_at"`
}

// Status returns a consistent snapshot; it never observes a cycle half way.
func (h *Habitat) Status() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	mode := h.dn.Mode()
	snap := Snapshot{
		HabitatID:      h.cfg.ID,
		Name:           h.cfg.Name,
		Species:        h.cfg.Species,
		Mode:           mode,
		DayNight:       h.dn.State(),
		Rules:          h.engine.Rules(),
		Thresholds:     append([]habitat.Threshold{}, h.thresholds...),
		Zones:          []ZoneStatus{},
		Readings:       []habitat.Reading{},
		Alerts:         h.alerts.open(),
		OutletFailures: map[string]int{},
		OutletStates:   map[string]habitat.OutletState{},
		LastCycleAt:    h.lastCycle,
	}
	for _, th := range h.thresholds {
		zs, ok := h.zones[zoneKey(th)]
		if !ok {
			zs = &zoneState{status: habitat.StatusUnknown}
		}
		snap.Zones = append(snap.Zones, zoneStatus(th, zs, mode))
	}
	for _, id := range h.cfg.SensorIDs() {
		if r, ok := h.readings[id]; ok {
			snap.Readings = append(snap.Readings, r)
		}
	}
	for _, id := range h.cfg.OutletIDs() {
		snap.OutletFailures[id] = h.failures[id]
		state, ok := h.outletStates[id]
		if !ok {
			state = habitat.OutletUnknown
		}
		snap.OutletStates[id] = state
	}
	return snap
}

// RefreshOutlets reads back the state of every configured outlet.
func (h *Habitat) RefreshOutlets(ctx context.Context) map[string]habitat.OutletState {
	states := map[string]habitat.OutletState{}
	for _, id := range h.cfg.OutletIDs() {
		octx, cancel := context.WithTimeout(ctx, h.opts.OutletTimeout)
		state, err := h.deps.Outlets.GetState(octx, id)
		cancel()
		if err != nil {
			state = habitat.OutletUnknown
		}
		states[id] = state
	}
	h.mu.Lock()
	for id, state := range states {
		h.outletStates[id] = state
	}
	h.mu.Unlock()
	return states
}

func zoneStatus(th habitat.Threshold, zs *zoneState, mode habitat.Mode) ZoneStatus {
	return ZoneStatus{
		SensorID:  th.SensorID,
		Zone:      th.Zone,
		Active:    th.ActiveDuring(mode),
		Status:    zs.status,
		Level:     zs.level,
		Value:     zs.value,
		Streak:    zs.streak,
		UpdatedAt: zs.updatedAt,
	}
}

func command(habitatID, outletID string, state habitat.OutletState, reason, by string, now time.Time) habitat.OutletCommand {
	return habitat.OutletCommand{
		ID:           uuid.NewString(),
		HabitatID:    habitatID,
		OutletID:     outletID,
		DesiredState: state,
		Reason:       reason,
		TriggeredBy:  by,
		Timestamp:    now,
	}
}
