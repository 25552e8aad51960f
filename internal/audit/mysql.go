package audit

import (
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
)

var mysqlDialect = dialect{
	name:        "mysql",
	quote:       func(s string) string { return "`" + s + "`" },
	placeholder: func(int) string { return "?" },
	createStmts: func(readings, commands string) []string {
		return []string{
			"CREATE TABLE IF NOT EXISTS " + readings + ` (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				habitat_id VARCHAR(128) NOT NULL,
				sensor_id VARCHAR(128) NOT NULL,
				value DOUBLE NOT NULL,
				unit VARCHAR(16) NOT NULL,
				valid BOOLEAN NOT NULL,
				recorded_at DATETIME(6) NOT NULL
			)`,
			"CREATE TABLE IF NOT EXISTS " + commands + ` (
				command_id VARCHAR(64) PRIMARY KEY,
				habitat_id VARCHAR(128) NOT NULL,
				outlet_id VARCHAR(128) NOT NULL,
				desired_state VARCHAR(16) NOT NULL,
				reason TEXT NOT NULL,
				triggered_by VARCHAR(128) NOT NULL,
				success BOOLEAN NOT NULL,
				error TEXT NOT NULL,
				issued_at DATETIME(6) NOT NULL,
				executed_at DATETIME(6) NOT NULL
			)`,
		}
	},
	limitQuery: func(cols, table, where, order, limit string) string {
		return fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s LIMIT %s", cols, table, where, order, limit)
	},
}

func mysqlDSN(cfg ConnectionConfig) string {
	if cfg.Port == 0 {
		cfg.Port = 3306
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
	sslMode := strings.ToLower(strings.TrimSpace(cfg.SSLMode))
	if sslMode == "disable" {
		dsn += "&tls=false"
	} else if sslMode != "" {
		dsn += "&tls=true"
	}
	return dsn
}
