package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"reptilia-backend/internal/habitat"
)

type Repository struct {
	Store *Store
}

func NewRepository(store *Store) *Repository {
	return &Repository{Store: store}
}

func (r *Repository) LoadRules(ctx context.Context, habitatID string) ([]habitat.Rule, error) {
	rows, err := r.Store.Pool.Query(ctx, `
		SELECT rule_json FROM habitat_rules WHERE habitat_id=$1 ORDER BY position`, habitatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := []habitat.Rule{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var rule habitat.Rule
		if err := json.Unmarshal(data, &rule); err != nil {
			return nil, err
		}
		results = append(results, rule)
	}
	return results, rows.Err()
}

// SaveRules replaces the habitat's rule set, keeping registration order.
func (r *Repository) SaveRules(ctx context.Context, habitatID string, rules []habitat.Rule) error {
	tx, err := r.Store.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if _, err := tx.Exec(ctx, `DELETE FROM habitat_rules WHERE habitat_id=$1`, habitatID); err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for i, rule := range rules {
		data, err := json.Marshal(rule)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO habitat_rules (habitat_id, rule_id, position, enabled, rule_json, updated_at)
			VALUES ($1,$2,$3,$4,$5,now())`, habitatID, rule.ID, i, rule.Enabled, data)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) LoadThresholds(ctx context.Context, habitatID string) ([]habitat.Threshold, error) {
	row := r.Store.Pool.QueryRow(ctx, `SELECT thresholds_json FROM habitat_thresholds WHERE habitat_id=$1`, habitatID)
	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []habitat.Threshold{}, nil
		}
		return nil, err
	}
	thresholds := []habitat.Threshold{}
	if err := json.Unmarshal(data, &thresholds); err != nil {
		return nil, err
	}
	return thresholds, nil
}

func (r *Repository) SaveThresholds(ctx context.Context, habitatID string, thresholds []habitat.Threshold) error {
	data, err := json.Marshal(thresholds)
	if err != nil {
		return err
	}
	_, err = r.Store.Pool.Exec(ctx, `
		INSERT INTO habitat_thresholds (habitat_id, thresholds_json, updated_at) VALUES ($1,$2,now())
		ON CONFLICT (habitat_id) DO UPDATE SET thresholds_json=EXCLUDED.thresholds_json, updated_at=now()`,
		habitatID, data)
	return err
}

func (r *Repository) LoadDayNight(ctx context.Context, habitatID string) (habitat.DayNightState, error) {
	row := r.Store.Pool.QueryRow(ctx, `
		SELECT mode, last_transition_at, date, sunrise_at, sunset_at, override_until
		FROM day_night_state WHERE habitat_id=$1`, habitatID)
	state := habitat.DayNightState{HabitatID: habitatID}
	var mode string
	var last, sunrise, sunset, override *time.Time
	if err := row.Scan(&mode, &last, &state.Date, &sunrise, &sunset, &override); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return habitat.DayNightState{}, ErrNotFound
		}
		return habitat.DayNightState{}, err
	}
	state.Mode = habitat.Mode(mode)
	state.LastTransitionAt = deref(last)
	state.SunriseAt = deref(sunrise)
	state.SunsetAt = deref(sunset)
	state.OverrideUntil = deref(override)
	return state, nil
}

func (r *Repository) SaveDayNight(ctx context.Context, state habitat.DayNightState) error {
	_, err := r.Store.Pool.Exec(ctx, `
		INSERT INTO day_night_state (habitat_id, mode, last_transition_at, date, sunrise_at, sunset_at, override_until, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now())
		ON CONFLICT (habitat_id) DO UPDATE SET
			mode=EXCLUDED.mode, last_transition_at=EXCLUDED.last_transition_at, date=EXCLUDED.date,
			sunrise_at=EXCLUDED.sunrise_at, sunset_at=EXCLUDED.sunset_at,
			override_until=EXCLUDED.override_until, updated_at=now()`,
		state.HabitatID, string(state.Mode), nullable(state.LastTransitionAt), state.Date,
		nullable(state.SunriseAt), nullable(state.SunsetAt), nullable(state.OverrideUntil))
	return err
}

// LoadAlerts returns alerts that are neither acknowledged nor resolved.
func (r *Repository) LoadAlerts(ctx context.Context, habitatID string) ([]habitat.Alert, error) {
	rows, err := r.Store.Pool.Query(ctx, `
		SELECT alert_json FROM alerts
		WHERE habitat_id=$1 AND acknowledged=false AND resolved_at IS NULL
		ORDER BY created_at`, habitatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := []habitat.Alert{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var alert habitat.Alert
		if err := json.Unmarshal(data, &alert); err != nil {
			return nil, err
		}
		results = append(results, alert)
	}
	return results, rows.Err()
}

func (r *Repository) SaveAlert(ctx context.Context, alert habitat.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	_, err = r.Store.Pool.Exec(ctx, `
		INSERT INTO alerts (id, habitat_id, sensor_id, outlet_id, severity, status, acknowledged, resolved_at, alert_json, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO UPDATE SET
			severity=EXCLUDED.severity, acknowledged=EXCLUDED.acknowledged, resolved_at=EXCLUDED.resolved_at,
			alert_json=EXCLUDED.alert_json, created_at=EXCLUDED.created_at`,
		alert.ID, alert.HabitatID, alert.SensorID, alert.OutletID, string(alert.Severity), string(alert.Status),
		alert.Acknowledged, alert.ResolvedAt, data, alert.CreatedAt)
	return err
}

func (r *Repository) AppendReading(ctx context.Context, reading habitat.Reading) error {
	_, err := r.Store.Pool.Exec(ctx, `
		INSERT INTO readings (habitat_id, sensor_id, value, unit, ts_utc) VALUES ($1,$2,$3,$4,$5)`,
		reading.HabitatID, reading.SensorID, reading.Value, string(reading.Unit), reading.Timestamp.UTC())
	return err
}

func (r *Repository) AppendCommand(ctx context.Context, result habitat.CommandResult) error {
	cmd := result.Command
	_, err := r.Store.Pool.Exec(ctx, `
		INSERT INTO outlet_commands (id, habitat_id, outlet_id, desired_state, reason, triggered_by, ts_utc, success, error, executed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		cmd.ID, cmd.HabitatID, cmd.OutletID, string(cmd.DesiredState), cmd.Reason, cmd.TriggeredBy,
		cmd.Timestamp.UTC(), result.Success, result.Error, result.Executed.UTC())
	return err
}

// RecentCommands returns the most recent commands of a habitat, newest first.
func (r *Repository) RecentCommands(ctx context.Context, habitatID string, limit int) ([]habitat.CommandResult, error) {
	rows, err := r.Store.Pool.Query(ctx, `
		SELECT id, outlet_id, desired_state, reason, triggered_by, ts_utc, success, error, executed_at
		FROM outlet_commands WHERE habitat_id=$1 ORDER BY ts_utc DESC LIMIT $2`, habitatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := []habitat.CommandResult{}
	for rows.Next() {
		res := habitat.CommandResult{Command: habitat.OutletCommand{HabitatID: habitatID}}
		var state string
		if err := rows.Scan(&res.Command.ID, &res.Command.OutletID, &state, &res.Command.Reason,
			&res.Command.TriggeredBy, &res.Command.Timestamp, &res.Success, &res.Error, &res.Executed); err != nil {
			return nil, err
		}
		res.Command.DesiredState = habitat.OutletState(state)
		results = append(results, res)
	}
	return results, rows.Err()
}

func nullable(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}
