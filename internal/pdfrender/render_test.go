package pdfrender

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"pgregory.net/rapid"

	"doctranslate/internal/model"
)

func TestSanitizeForPDF(t *testing.T) {
	cases := map[string]string{
		"":                       NoContentPlaceholder,
		"Tom & Jerry":            "Tom &amp; Jerry",
		`<a href="x">'q'</a>`:    "&lt;a href=&quot;x&quot;&gt;&#39;q&#39;&lt;/a&gt;",
		"line\u2028sep\u2029par": "line sep par",
		"nul\x00sub\x1a\x1c\x1f": "nulsub",
		"keep\ttab\nnewline":     "keep\ttab\nnewline",
		"Xin chào thế giới":      "Xin chào thế giới",
	}
	for in, want := range cases {
		if got := SanitizeForPDF(in); got != want {
			t.Errorf("SanitizeForPDF(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeForPDF_IdempotentWithoutMarkup(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.StringOf(rapid.SampledFrom([]rune("ab cdé日\n\t\x00\x1a\x1d\u2028\u2029"))).Draw(t, "s")
		once := SanitizeForPDF(s)
		if twice := SanitizeForPDF(once); twice != once {
			t.Fatalf("not idempotent: %q -> %q -> %q", s, once, twice)
		}
	})
}

func TestSanitizeForPDF_NoMarkupSurvives(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "s")
		out := SanitizeForPDF(s)
		if strings.ContainsAny(out, "<>\"'\x00\x1a\x1c\x1d\x1e\x1f\u2028\u2029") {
			t.Fatalf("SanitizeForPDF(%q) = %q still holds markup or controls", s, out)
		}
	})
}

func TestFontRegistry_Order(t *testing.T) {
	r := NewFontRegistry()
	if got := r.Choose(); got != FamilyDejaVu {
		t.Fatalf("Choose = %q, want %q", got, FamilyDejaVu)
	}

	r.Register(FamilyArial, []byte("a"), nil)
	r.Register(FamilyViet, []byte("v"), nil)
	r.Register("Other", []byte("o"), nil)
	want := []string{FamilyDejaVu, FamilyViet, FamilyArial}
	if got := r.Candidates(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Candidates = %v, want %v", got, want)
	}

	r.Unregister(FamilyDejaVu)
	if got := r.Choose(); got != FamilyViet {
		t.Errorf("Choose = %q, want %q", got, FamilyViet)
	}
	r.Unregister(FamilyViet)
	r.Unregister(FamilyArial)
	if got := r.Choose(); got != DefaultFamily {
		t.Errorf("Choose = %q, want %q", got, DefaultFamily)
	}
}

func TestFontRegistry_RegisterFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "viet.ttf")
	if err := os.WriteFile(good, dejaVuRegular, 0644); err != nil {
		t.Fatal(err)
	}
	bad := filepath.Join(dir, "bad.ttf")
	if err := os.WriteFile(bad, []byte("not a font"), 0644); err != nil {
		t.Fatal(err)
	}

	r := NewFontRegistry()
	if err := r.RegisterFile(FamilyViet, good); err != nil {
		t.Fatalf("RegisterFile: %v", err)
	}
	if err := r.RegisterFile(FamilyArial, bad); err == nil {
		t.Fatal("expected error for non-TrueType file")
	}
	if len(r.Candidates()) != 2 {
		t.Errorf("Candidates = %v", r.Candidates())
	}
}

func TestWrapText(t *testing.T) {
	runeWidth := func(s string) float64 { return float64(utf8.RuneCountInString(s)) }

	got := WrapText("the quick brown fox jumps", 10, runeWidth)
	want := []string{"the quick", "brown fox", "jumps"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("WrapText = %q, want %q", got, want)
	}

	got = WrapText("ab abcdefghijklmnopqrstuvwxyz cd", 10, runeWidth)
	want = []string{"ab", "abcdefghij", "klmnopqrst", "uvwxyz cd"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("WrapText long word = %q, want %q", got, want)
	}

	if got := WrapText("   ", 10, runeWidth); len(got) != 0 {
		t.Errorf("blank text = %q", got)
	}
}

func TestWrapText_Properties(t *testing.T) {
	runeWidth := func(s string) float64 { return float64(utf8.RuneCountInString(s)) }
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.StringOf(rapid.SampledFrom([]rune("abcxyzàệ日 "))).Draw(t, "text")
		width := rapid.IntRange(1, 30).Draw(t, "width")

		lines := WrapText(text, float64(width), runeWidth)
		for _, l := range lines {
			if runeWidth(l) > float64(width) {
				t.Fatalf("line %q wider than %d", l, width)
			}
			if l == "" || strings.TrimSpace(l) != l {
				t.Fatalf("line %q is empty or padded", l)
			}
		}
		strip := func(s string) string { return strings.Join(strings.Fields(s), "") }
		if strip(strings.Join(lines, " ")) != strip(text) {
			t.Fatalf("content changed: %q -> %q", text, lines)
		}
	})
}

func TestPageMarkup(t *testing.T) {
	got := PageMarkup(2, 3, "a < b\nc")
	want := "<b>Trang 2/3</b><br>a &lt; b<br>c"
	if got != want {
		t.Errorf("PageMarkup = %q, want %q", got, want)
	}
}

func TestDocumentPageText(t *testing.T) {
	doc := Document{Pages: []string{"xin chào", ""}}
	if doc.PageText(0) != "xin chào" {
		t.Error("translated page text lost")
	}
	if doc.PageText(1) != NoTranslationPlaceholder || doc.PageText(5) != NoTranslationPlaceholder {
		t.Error("missing translation should use the placeholder")
	}
}

var twoPages = Document{
	Title: "report.pdf",
	Pages: []string{"Xin chào thế giới. <Kết thúc> & \"trích dẫn\"", ""},
}

func TestStrategies_ProduceValidPDF(t *testing.T) {
	for _, s := range DefaultStrategies() {
		t.Run(s.Name(), func(t *testing.T) {
			out, err := s.Render(twoPages, NewFontRegistry())
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			n, err := PageCount(out)
			if err != nil {
				t.Fatalf("PageCount: %v", err)
			}
			if n != 2 {
				t.Errorf("pages = %d, want 2", n)
			}
		})
	}
}

func TestCanvasStrategy_Overflow(t *testing.T) {
	long := strings.Repeat("Đây là một câu rất dài để kiểm tra việc ngắt trang. ", 200)
	out, err := CanvasStrategy{}.Render(Document{Pages: []string{long}}, NewFontRegistry())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	n, err := PageCount(out)
	if err != nil {
		t.Fatal(err)
	}
	if n < 2 {
		t.Errorf("overflowing page should continue on a new page, got %d pages", n)
	}
}

func TestStrategies_CoreFontFallback(t *testing.T) {
	fonts := NewFontRegistry()
	fonts.Unregister(FamilyDejaVu)
	fonts.Register(FamilyViet, []byte("definitely not a font"), nil)

	out, _, err := NewRenderer(fonts).Render(context.Background(), twoPages)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if n, err := PageCount(out); err != nil || n != 2 {
		t.Fatalf("PageCount = %d, %v", n, err)
	}
}

type failingStrategy struct{ panic bool }

func (failingStrategy) Name() string { return "failing" }

func (s failingStrategy) Render(Document, *FontRegistry) ([]byte, error) {
	if s.panic {
		panic("layout engine exploded")
	}
	return nil, errors.New("layout engine unavailable")
}

type garbageStrategy struct{}

func (garbageStrategy) Name() string { return "garbage" }

func (garbageStrategy) Render(Document, *FontRegistry) ([]byte, error) {
	return []byte("%PDF-1.4 nothing here"), nil
}

func TestRenderer_FallsBack(t *testing.T) {
	r := NewRenderer(nil)
	r.Strategies = []Strategy{failingStrategy{panic: true}, garbageStrategy{}, CanvasStrategy{}}

	out, used, err := r.Render(context.Background(), twoPages)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if used != "canvas" {
		t.Errorf("strategy = %q, want canvas", used)
	}
	if len(out) == 0 {
		t.Error("empty output")
	}
}

func TestRenderer_AllFail(t *testing.T) {
	r := NewRenderer(nil)
	r.Strategies = []Strategy{failingStrategy{}, garbageStrategy{}}

	_, _, err := r.Render(context.Background(), twoPages)
	if !errors.Is(err, model.ErrReassembly) {
		t.Fatalf("error = %v, want ErrReassembly", err)
	}
	if !strings.Contains(err.Error(), "layout engine unavailable") || !strings.Contains(err.Error(), "garbage") {
		t.Errorf("combined error lacks a cause: %v", err)
	}
}

func TestRenderer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewRenderer(nil).Render(ctx, twoPages)
	if !errors.Is(err, model.ErrReassembly) || !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v", err)
	}
}
