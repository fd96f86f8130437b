package db

import (
	"path/filepath"
	"testing"
)

func TestInitDB_CreatesJobsTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	database, err := InitDB(path)
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	defer database.Close()

	for _, col := range []string{"id", "stage", "file_name", "units", "failed", "status", "duration_ms", "source_lang", "target_lang"} {
		if !columnExists(database, "jobs", col) {
			t.Errorf("column %q missing", col)
		}
	}
}

func TestInitDB_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	for i := 0; i < 2; i++ {
		database, err := InitDB(path)
		if err != nil {
			t.Fatalf("InitDB #%d: %v", i+1, err)
		}
		database.Close()
	}
}

func TestInitDB_BadPath(t *testing.T) {
	if _, err := InitDB(filepath.Join(t.TempDir(), "missing", "dir", "x.db")); err == nil {
		t.Error("expected error for unreachable path")
	}
}
