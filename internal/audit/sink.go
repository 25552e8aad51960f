package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"reptilia-backend/internal/habitat"
)

// ConnectionConfig points the audit trail at an external SQL database.
type ConnectionConfig struct {
	Type     string `yaml:"type"` // mysql | postgres | mssql
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	// Schema qualifies the audit tables, e.g. "audit" gives audit.audit_readings.
	Schema string `yaml:"schema"`
}

// dialect holds what differs between the supported databases.
type dialect struct {
	name        string
	quote       func(string) string
	placeholder func(n int) string
	createStmts func(readings, commands string) []string
	limitQuery  func(cols, table, where, order string, limit string) string
}

// Sink appends readings and command outcomes to an SQL table pair through
// database/sql. It implements storage.AuditLog.
type Sink struct {
	d        dialect
	db       *sql.DB
	readings string
	commands string
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

func newSink(d dialect, db *sql.DB, schema string) (*Sink, error) {
	readings, err := qualify(schema, "audit_readings", d.quote)
	if err != nil {
		return nil, err
	}
	commands, err := qualify(schema, "audit_commands", d.quote)
	if err != nil {
		return nil, err
	}
	return &Sink{d: d, db: db, readings: readings, commands: commands}, nil
}

func (s *Sink) Dialect() string {
	return s.d.name
}

func (s *Sink) TestConnection(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", s.d.name, err)
	}
	return nil
}

func (s *Sink) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// EnsureSchema creates the audit tables when they are missing.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	for _, stmt := range s.d.createStmts(s.readings, s.commands) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create %s audit schema: %w", s.d.name, err)
		}
	}
	return nil
}

func (s *Sink) AppendReading(ctx context.Context, reading habitat.Reading) error {
	query := s.insert(s.readings, "habitat_id", "sensor_id", "value", "unit", "valid", "recorded_at")
	_, err := s.db.ExecContext(ctx, query,
		reading.HabitatID, reading.SensorID, reading.Value, string(reading.Unit), reading.Valid, reading.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("append %s reading: %w", s.d.name, err)
	}
	return nil
}

func (s *Sink) AppendCommand(ctx context.Context, result habitat.CommandResult) error {
	cmd := result.Command
	query := s.insert(s.commands,
		"command_id", "habitat_id", "outlet_id", "desired_state", "reason", "triggered_by",
		"success", "error", "issued_at", "executed_at")
	_, err := s.db.ExecContext(ctx, query,
		cmd.ID, cmd.HabitatID, cmd.OutletID, string(cmd.DesiredState), cmd.Reason, cmd.TriggeredBy,
		result.Success, result.Error, cmd.Timestamp.UTC(), result.Executed.UTC())
	if err != nil {
		return fmt.Errorf("append %s command: %w", s.d.name, err)
	}
	return nil
}

// RecentCommands returns the newest command outcomes of a habitat.
func (s *Sink) RecentCommands(ctx context.Context, habitatID string, limit int) ([]habitat.CommandResult, error) {
	if limit <= 0 {
		limit = 50
	}
	cols, err := quoteList([]string{
		"command_id", "outlet_id", "desired_state", "reason", "triggered_by",
		"success", "error", "issued_at", "executed_at",
	}, s.d.quote)
	if err != nil {
		return nil, err
	}
	query := s.d.limitQuery(cols, s.commands,
		s.d.quote("habitat_id")+" = "+s.d.placeholder(1),
		s.d.quote("executed_at")+" DESC",
		s.d.placeholder(2))
	rows, err := s.db.QueryContext(ctx, query, habitatID, limit)
	if err != nil {
		return nil, fmt.Errorf("query %s commands: %w", s.d.name, err)
	}
	defer rows.Close()
	results := []habitat.CommandResult{}
	for rows.Next() {
		var res habitat.CommandResult
		var state string
		var issued, executed time.Time
		if err := rows.Scan(&res.Command.ID, &res.Command.OutletID, &state, &res.Command.Reason,
			&res.Command.TriggeredBy, &res.Success, &res.Error, &issued, &executed); err != nil {
			return nil, fmt.Errorf("scan %s command: %w", s.d.name, err)
		}
		res.Command.HabitatID = habitatID
		res.Command.DesiredState = habitat.OutletState(state)
		res.Command.Timestamp = issued.UTC()
		res.Executed = executed.UTC()
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s commands: %w", s.d.name, err)
	}
	return results, nil
}

func (s *Sink) insert(table string, columns ...string) string {
	cols, _ := quoteList(columns, s.d.quote)
	marks := make([]string, len(columns))
	for i := range columns {
		marks[i] = s.d.placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, cols, strings.Join(marks, ", "))
}

func qualify(schema, table string, quote func(string) string) (string, error) {
	ident := table
	if strings.TrimSpace(schema) != "" {
		ident = strings.TrimSpace(schema) + "." + table
	}
	quoted, _, err := quoteQualified(ident, 2, quote)
	if err != nil {
		return "", fmt.Errorf("invalid audit table: %w", err)
	}
	return quoted, nil
}

func splitIdentifier(ident string) ([]string, error) {
	trimmed := strings.TrimSpace(ident)
	if trimmed == "" {
		return nil, errors.New("identifier is empty")
	}
	parts := strings.Split(trimmed, ".")
	for _, part := range parts {
		if part == "" {
			return nil, errors.New("identifier contains empty segment")
		}
		if !identPattern.MatchString(part) {
			return nil, fmt.Errorf("identifier segment %q is invalid", part)
		}
	}
	return parts, nil
}

func quoteQualified(ident string, maxSegments int, quote func(string) string) (string, []string, error) {
	parts, err := splitIdentifier(ident)
	if err != nil {
		return "", nil, err
	}
	if maxSegments > 0 && len(parts) > maxSegments {
		return "", nil, fmt.Errorf("identifier %q has too many segments", ident)
	}
	quoted := make([]string, len(parts))
	for i, part := range parts {
		quoted[i] = quote(part)
	}
	return strings.Join(quoted, "."), parts, nil
}

func quoteList(names []string, quote func(string) string) (string, error) {
	if len(names) == 0 {
		return "", errors.New("no columns provided")
	}
	quoted := make([]string, len(names))
	for i, name := range names {
		parts, err := splitIdentifier(name)
		if err != nil || len(parts) != 1 {
			return "", fmt.Errorf("invalid column name %q", name)
		}
		quoted[i] = quote(name)
	}
	return strings.Join(quoted, ", "), nil
}
