package fontcheck

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestIsTrueType(t *testing.T) {
	dir := t.TempDir()
	ttf := filepath.Join(dir, "a.ttf")
	writeFile(t, ttf, []byte{0, 1, 0, 0, 0, 0})
	otf := filepath.Join(dir, "b.ttf")
	writeFile(t, otf, []byte("OTTO...."))

	if !IsTrueType(ttf) {
		t.Error("TrueType signature not recognized")
	}
	if IsTrueType(otf) {
		t.Error("CFF font accepted")
	}
	if IsTrueType(filepath.Join(dir, "missing.ttf")) {
		t.Error("missing file accepted")
	}
}

func TestSearchDirs_KeywordOrder(t *testing.T) {
	dir := t.TempDir()
	sig := []byte{0, 1, 0, 0}
	writeFile(t, filepath.Join(dir, "sub", "Arial.ttf"), sig)
	writeFile(t, filepath.Join(dir, "NotoSans-Regular.ttf"), sig)
	writeFile(t, filepath.Join(dir, "NotoSans-Regular.ttc"), sig)
	writeFile(t, filepath.Join(dir, "FreeSans.ttf"), []byte("OTTO"))

	got := searchDirs([]string{dir}, []string{"freesans", "arial", "notosans"})
	if filepath.Base(got) != "Arial.ttf" {
		t.Errorf("searchDirs = %q, want Arial.ttf", got)
	}
	if got := searchDirs([]string{dir}, []string{"tahoma"}); got != "" {
		t.Errorf("searchDirs without match = %q", got)
	}
	if got := searchDirs([]string{filepath.Join(dir, "nope")}, []string{"arial"}); got != "" {
		t.Errorf("missing dir = %q", got)
	}
}
