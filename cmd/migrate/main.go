package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ledgerDDL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	name TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	dsn := getenv("DATABASE_URL", "")
	if dsn == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	dir := getenv("MIGRATIONS_DIR", "migrations")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		logger.Error("failed to connect", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("database unreachable", slog.String("error", err.Error()))
		os.Exit(1)
	}

	applied, err := migrate(ctx, pool, dir, logger)
	if err != nil {
		logger.Error("migration failed", slog.String("dir", dir), slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("migrations complete", slog.String("dir", dir), slog.Int("applied", applied))
}

// migrate applies every file of dir not yet recorded in schema_migrations,
// each in its own transaction, and returns how many ran.
func migrate(ctx context.Context, pool *pgxpool.Pool, dir string, logger *slog.Logger) (int, error) {
	if _, err := pool.Exec(ctx, ledgerDDL); err != nil {
		return 0, fmt.Errorf("create ledger: %w", err)
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return 0, fmt.Errorf("list migrations: %w", err)
	}
	if len(files) == 0 {
		logger.Warn("no migrations found", slog.String("dir", dir))
		return 0, nil
	}
	done, err := appliedNames(ctx, pool)
	if err != nil {
		return 0, err
	}
	todo := pending(files, done)
	for _, file := range todo {
		if err := applyFile(ctx, pool, file); err != nil {
			return 0, err
		}
		logger.Info("applied migration", slog.String("file", file))
	}
	return len(todo), nil
}

func appliedNames(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, `SELECT name FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	done := make(map[string]bool, len(names))
	for _, n := range names {
		done[n] = true
	}
	return done, nil
}

func applyFile(ctx context.Context, pool *pgxpool.Pool, file string) error {
	content, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, string(content)); err != nil {
			return fmt.Errorf("apply %s: %w", file, err)
		}
		_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, filepath.Base(file))
		return err
	})
}

// pending returns the files whose base name is not in done, in name order.
func pending(files []string, done map[string]bool) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		if !done[filepath.Base(f)] {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return filepath.Base(out[i]) < filepath.Base(out[j]) })
	return out
}

func getenv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
