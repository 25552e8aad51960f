package audit

import (
	"fmt"
	"strings"

	_ "github.com/lib/pq"
)

var postgresDialect = dialect{
	name:        "postgres",
	quote:       func(s string) string { return "\"" + s + "\"" },
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	createStmts: func(readings, commands string) []string {
		return []string{
			`CREATE TABLE IF NOT EXISTS ` + readings + ` (
				"id" BIGSERIAL PRIMARY KEY,
				"habitat_id" TEXT NOT NULL,
				"sensor_id" TEXT NOT NULL,
				"value" DOUBLE PRECISION NOT NULL,
				"unit" TEXT NOT NULL,
				"valid" BOOLEAN NOT NULL,
				"recorded_at" TIMESTAMPTZ NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS ` + commands + ` (
				"command_id" TEXT PRIMARY KEY,
				"habitat_id" TEXT NOT NULL,
				"outlet_id" TEXT NOT NULL,
				"desired_state" TEXT NOT NULL,
				"reason" TEXT NOT NULL,
				"triggered_by" TEXT NOT NULL,
				"success" BOOLEAN NOT NULL,
				"error" TEXT NOT NULL,
				"issued_at" TIMESTAMPTZ NOT NULL,
				"executed_at" TIMESTAMPTZ NOT NULL
			)`,
		}
	},
	limitQuery: func(cols, table, where, order, limit string) string {
		return fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s LIMIT %s", cols, table, where, order, limit)
	},
}

func postgresDSN(cfg ConnectionConfig) string {
	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	sslMode := strings.ToLower(strings.TrimSpace(cfg.SSLMode))
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, sslMode)
}
