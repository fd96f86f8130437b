package svc

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recordingSink struct {
	lines  []string
	closed bool
}

func (r *recordingSink) Info(_ uint32, msg string) error    { r.lines = append(r.lines, "I:"+msg); return nil }
func (r *recordingSink) Warning(_ uint32, msg string) error { r.lines = append(r.lines, "W:"+msg); return nil }
func (r *recordingSink) Error(_ uint32, msg string) error   { r.lines = append(r.lines, "E:"+msg); return nil }
func (r *recordingSink) Close() error                       { r.closed = true; return nil }

func TestServiceLogger_File(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	sl, err := NewServiceLogger("doctranslate", false, dir)
	if err != nil {
		t.Fatalf("NewServiceLogger: %v", err)
	}
	sink := &recordingSink{}
	sl.events = sink

	sl.Info("started on %d", 8000)
	sl.Warning("slow")
	sl.Error("failed: %v", errors.New("boom"))
	sl.Close()
	sl.Info("after close")

	data, err := os.ReadFile(filepath.Join(dir, logFileName))
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{"[INFO] started on 8000", "[WARNING] slow", "[ERROR] failed: boom"} {
		if !strings.Contains(text, want) {
			t.Errorf("log missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "after close") {
		t.Error("write after close reached the file")
	}
	if len(sink.lines) != 3 || sink.lines[2] != "E:failed: boom" || !sink.closed {
		t.Errorf("sink = %+v", sink)
	}
}
