package errlog

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// resetGlobal tears down the package-level singleton so each test starts clean.
func resetGlobal() {
	mu.Lock()
	defer mu.Unlock()
	if global != nil {
		global.close()
		global = nil
	}
}

func TestInitAndLogf(t *testing.T) {
	dir := t.TempDir()
	resetGlobal()
	if err := Init(Options{Dir: dir}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer resetGlobal()

	Logf("[Translate] unit %s passed through", "page 2")

	if GetLogPath() != filepath.Join(dir, logFileName) {
		t.Errorf("GetLogPath = %q", GetLogPath())
	}
	data, err := os.ReadFile(GetLogPath())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "[ERROR] [Translate] unit page 2 passed through") {
		t.Errorf("unexpected log content: %s", data)
	}
}

func TestInitTwiceIsNoop(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	resetGlobal()
	if err := Init(Options{Dir: first}); err != nil {
		t.Fatal(err)
	}
	defer resetGlobal()
	if err := Init(Options{Dir: second}); err != nil {
		t.Fatal(err)
	}
	if GetLogDir() != first {
		t.Errorf("second Init changed dir to %q", GetLogDir())
	}
}

func TestRotation(t *testing.T) {
	dir := t.TempDir()
	resetGlobal()
	if err := Init(Options{Dir: dir, RotationSizeMB: 1}); err != nil {
		t.Fatal(err)
	}
	defer resetGlobal()

	mu.Lock()
	global.size = global.maxRotSize - 10
	mu.Unlock()

	Logf("this message triggers rotation because the size counter is near the limit")

	archives, err := ListArchives()
	if err != nil {
		t.Fatal(err)
	}
	if len(archives) == 0 {
		t.Fatal("expected an archive after rotation")
	}

	gf, err := os.Open(filepath.Join(dir, archives[0]))
	if err != nil {
		t.Fatal(err)
	}
	defer gf.Close()
	gr, err := gzip.NewReader(gf)
	if err != nil {
		t.Fatalf("invalid gzip archive: %v", err)
	}
	defer gr.Close()
	content, err := io.ReadAll(gr)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(content), "triggers rotation") {
		t.Errorf("archive content missing message: %s", content)
	}

	info, err := os.Stat(GetLogPath())
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() > 0 {
		t.Errorf("active log not emptied after rotation, size=%d", info.Size())
	}
}

func TestPruneArchives(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 8; i++ {
		name := fmt.Sprintf("error-20260101-00000%d.000.log.gz", i)
		os.WriteFile(filepath.Join(dir, name), []byte("fake"), 0644)
	}

	l := &errorLogger{dir: dir, maxBackups: 3}
	l.pruneArchives()

	left, err := listArchives(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 3 {
		t.Fatalf("expected 3 archives after prune, got %v", left)
	}
	if left[0] != "error-20260101-000005.000.log.gz" {
		t.Errorf("oldest archives should be pruned first, kept %v", left)
	}
}

func TestRecentLines(t *testing.T) {
	dir := t.TempDir()
	resetGlobal()
	if err := Init(Options{Dir: dir}); err != nil {
		t.Fatal(err)
	}
	defer resetGlobal()

	for i := 1; i <= 5; i++ {
		Logf("line %d", i)
	}
	lines, err := RecentLines(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 || !strings.HasSuffix(lines[0], "line 4") || !strings.HasSuffix(lines[1], "line 5") {
		t.Errorf("RecentLines(2) = %q", lines)
	}
}

func TestRotationSizeMB(t *testing.T) {
	resetGlobal()
	if got := GetRotationSizeMB(); got != defaultRotationMB {
		t.Errorf("default rotation = %d", got)
	}
	if err := Init(Options{Dir: t.TempDir()}); err != nil {
		t.Fatal(err)
	}
	defer resetGlobal()
	SetRotationSizeMB(0)
	if got := GetRotationSizeMB(); got != 1 {
		t.Errorf("rotation after SetRotationSizeMB(0) = %d, want 1", got)
	}
}

func TestLogfBeforeInit(t *testing.T) {
	resetGlobal()
	Logf("this should be silently ignored")
}

func TestCloseIdempotent(t *testing.T) {
	resetGlobal()
	Close()
	Close()
}
