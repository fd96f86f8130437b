package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"doctranslate/internal/db"
)

func TestRunAndRestore(t *testing.T) {
	dataDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dataDir, "config.json"), []byte(`{"server":{"port":8000}}`), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, "encryption.key"), []byte("0123456789abcdef0123456789abcdef"), 0600); err != nil {
		t.Fatal(err)
	}
	database, err := db.InitDB(filepath.Join(dataDir, "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()
	if _, err := database.Exec(`INSERT INTO jobs (id, stage, file_name, format, status, created_at) VALUES ('j1', 'extract', 'a.pdf', 'pdf', 'success', CURRENT_TIMESTAMP)`); err != nil {
		t.Fatal(err)
	}

	res, err := Run(context.Background(), Options{DataDir: dataDir, OutputDir: t.TempDir(), DB: database})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.FilesWritten != 3 || res.Manifest.Jobs != 1 {
		t.Errorf("result = %+v", res)
	}
	if !strings.HasPrefix(filepath.Base(res.ArchivePath), "doctranslate_") {
		t.Errorf("archive name = %s", res.ArchivePath)
	}

	target := t.TempDir()
	n, err := Restore(res.ArchivePath, target)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if n != 4 {
		t.Errorf("restored files = %d, want 4", n)
	}
	key, err := os.ReadFile(filepath.Join(target, "encryption.key"))
	if err != nil || string(key) != "0123456789abcdef0123456789abcdef" {
		t.Errorf("key = %q, %v", key, err)
	}

	restored, err := sql.Open("sqlite3", filepath.Join(target, HistoryFile))
	if err != nil {
		t.Fatal(err)
	}
	defer restored.Close()
	var name string
	if err := restored.QueryRow(`SELECT file_name FROM jobs WHERE id = 'j1'`).Scan(&name); err != nil || name != "a.pdf" {
		t.Errorf("restored job = %q, %v", name, err)
	}
}

func TestRun_WithoutHistory(t *testing.T) {
	dataDir := t.TempDir()
	res, err := Run(context.Background(), Options{DataDir: dataDir, OutputDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.FilesWritten != 0 || len(res.Manifest.Files) != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestRestore_RejectsTraversal(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "evil.tar.gz")
	f, err := os.Create(archive)
	if err != nil {
		t.Fatal(err)
	}
	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)
	addBytesToTar(tw, []byte("x"), "../escape.txt")
	tw.Close()
	gw.Close()
	f.Close()

	target := t.TempDir()
	if _, err := Restore(archive, target); err == nil {
		t.Fatal("expected traversal error")
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(target), "escape.txt")); !os.IsNotExist(err) {
		t.Error("file escaped the target directory")
	}
}

func TestRestore_NotAnArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.txt")
	os.WriteFile(path, []byte("hello"), 0644)
	if _, err := Restore(path, t.TempDir()); err == nil {
		t.Error("expected decompress error")
	}
}
