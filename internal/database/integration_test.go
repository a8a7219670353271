package database

import (
	"path/filepath"
	"testing"
)

// TestDatabaseLifecycle covers initialization, migrations and transactions
// against a throwaway SQLite file
func TestDatabaseLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, err := Initialize(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := db.RunMigrations("../../migrations"); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	// Migrations are recorded and not re-run
	if err := db.RunMigrations("../../migrations"); err != nil {
		t.Fatalf("Re-running migrations failed: %v", err)
	}

	tables := []string{"users", "sessions", "tasks", "task_recipients", "attempts", "migrations"}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s not found: %v", table, err)
		}
	}
}

func TestTransactionRollback(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, err := Initialize(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := db.RunMigrations("../../migrations"); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}
	if _, err := tx.Exec(
		"INSERT INTO tasks (id, title, description, content_url, owner_id, created_at_ms) VALUES (?, ?, ?, ?, ?, ?)",
		"task-1", "Title", "", "/task.html", "google:parent-1", int64(1700000000000)); err != nil {
		t.Fatalf("Failed to insert in transaction: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Failed to roll back: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM tasks").Scan(&count); err != nil {
		t.Fatalf("Failed to count tasks: %v", err)
	}
	if count != 0 {
		t.Errorf("rolled-back insert is visible, count = %d", count)
	}
}
