package main

import (
	"path/filepath"
	"testing"
)

func TestPendingSkipsAppliedFiles(t *testing.T) {
	files := []string{
		filepath.Join("migrations", "002_alerts.sql"),
		filepath.Join("migrations", "001_init.sql"),
		filepath.Join("migrations", "003_history.sql"),
	}
	got := pending(files, map[string]bool{"002_alerts.sql": true})
	if len(got) != 2 || filepath.Base(got[0]) != "001_init.sql" || filepath.Base(got[1]) != "003_history.sql" {
		t.Fatalf("unexpected pending list %v", got)
	}
	if got := pending(files, map[string]bool{"001_init.sql": true, "002_alerts.sql": true, "003_history.sql": true}); len(got) != 0 {
		t.Fatalf("expected nothing pending, got %v", got)
	}
}

func TestGetenvFallback(t *testing.T) {
	t.Setenv("MIGRATIONS_DIR", "")
	if got := getenv("MIGRATIONS_DIR", "migrations"); got != "migrations" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv("MIGRATIONS_DIR", "/srv/sql")
	if got := getenv("MIGRATIONS_DIR", "migrations"); got != "/srv/sql" {
		t.Fatalf("expected override, got %q", got)
	}
}
