package audit

import (
	"fmt"
	"net/url"
	"strings"

	_ "github.com/microsoft/go-mssqldb"
)

var mssqlDialect = dialect{
	name:        "mssql",
	quote:       func(s string) string { return "[" + s + "]" },
	placeholder: func(n int) string { return fmt.Sprintf("@p%d", n) },
	createStmts: func(readings, commands string) []string {
		return []string{
			"IF OBJECT_ID(N'" + readings + "', N'U') IS NULL CREATE TABLE " + readings + ` (
				id BIGINT IDENTITY(1,1) PRIMARY KEY,
				habitat_id NVARCHAR(128) NOT NULL,
				sensor_id NVARCHAR(128) NOT NULL,
				value FLOAT NOT NULL,
				unit NVARCHAR(16) NOT NULL,
				valid BIT NOT NULL,
				recorded_at DATETIME2 NOT NULL
			)`,
			"IF OBJECT_ID(N'" + commands + "', N'U') IS NULL CREATE TABLE " + commands + ` (
				command_id NVARCHAR(64) PRIMARY KEY,
				habitat_id NVARCHAR(128) NOT NULL,
				outlet_id NVARCHAR(128) NOT NULL,
				desired_state NVARCHAR(16) NOT NULL,
				reason NVARCHAR(MAX) NOT NULL,
				triggered_by NVARCHAR(128) NOT NULL,
				success BIT NOT NULL,
				error NVARCHAR(MAX) NOT NULL,
				issued_at DATETIME2 NOT NULL,
				executed_at DATETIME2 NOT NULL
			)`,
		}
	},
	limitQuery: func(cols, table, where, order, limit string) string {
		return fmt.Sprintf("SELECT TOP (%s) %s FROM %s WHERE %s ORDER BY %s", limit, cols, table, where, order)
	},
}

func mssqlDSN(cfg ConnectionConfig) string {
	if cfg.Port == 0 {
		cfg.Port = 1433
	}
	user := url.QueryEscape(cfg.User)
	pass := url.QueryEscape(cfg.Password)
	encrypt := "true"
	if strings.ToLower(strings.TrimSpace(cfg.SSLMode)) == "disable" {
		encrypt = "disable"
	}
	return fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s&encrypt=%s", user, pass, cfg.Host, cfg.Port, cfg.Database, encrypt)
}
