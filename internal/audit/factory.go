package audit

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// NewSink opens the audit database named by cfg.Type. The connection is
// lazy; call TestConnection to verify it.
func NewSink(cfg ConnectionConfig) (*Sink, error) {
	if strings.TrimSpace(cfg.Type) == "" {
		return nil, errors.New("connection type is required")
	}
	var (
		d      dialect
		driver string
		dsn    string
	)
	switch strings.ToLower(cfg.Type) {
	case "mysql":
		d, driver, dsn = mysqlDialect, "mysql", mysqlDSN(cfg)
	case "postgres", "postgresql":
		d, driver, dsn = postgresDialect, "postgres", postgresDSN(cfg)
	case "mssql", "sqlserver":
		d, driver, dsn = mssqlDialect, "sqlserver", mssqlDSN(cfg)
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
	}
	db, err := openDatabase(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s connection: %w", d.name, err)
	}
	sink, err := newSink(d, db, cfg.Schema)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return sink, nil
}

func openDatabase(driverName, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	return db, nil
}
