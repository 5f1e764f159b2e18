package storage

import (
	"testing"

	"nutrichat/internal/config"
)

func TestOpenMemoryAndMigrate(t *testing.T) {
	db, err := Open("sqlite3", config.DatabaseConfig{DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if err := Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// idempotent
	if err := Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	for _, table := range []string{"users", "user_tokens", "chat_turns"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open("postgres", config.DatabaseConfig{}); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
	if _, err := Open("sqlite3", config.DatabaseConfig{}); err == nil {
		t.Fatalf("expected error for empty sqlite dsn")
	}
}
