package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"pgregory.net/rapid"
)

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	for _, text := range []string{"", "hello", strings.Repeat("a", 10)} {
		got := Split(text, 10)
		if len(got) != 1 || got[0] != text {
			t.Errorf("Split(%q, 10) = %q, want single chunk", text, got)
		}
	}
}

func TestSplit_SentenceBoundary(t *testing.T) {
	got := Split("Hello world. Goodbye world.", 15)
	want := []string{"Hello world.", " Goodbye world."}
	if len(got) != len(want) {
		t.Fatalf("Split = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplit_SpaceBoundary(t *testing.T) {
	got := Split("alpha beta gamma delta", 12)
	want := []string{"alpha beta ", "gamma delta"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("Split = %q, want %q", got, want)
	}
}

func TestSplit_HardCut(t *testing.T) {
	got := Split("abcdefghij", 4)
	want := []string{"abcd", "efgh", "ij"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("Split = %q, want %q", got, want)
	}
}

func TestSplit_BoundaryAtWindowStartIgnored(t *testing.T) {
	// The '.' sits at the first position of the second window and must not
	// produce a zero-length chunk.
	got := Split("abcd.efgh", 4)
	for i, c := range got {
		if c == "" {
			t.Fatalf("chunk %d is empty: %q", i, got)
		}
	}
	if strings.Join(got, "") != "abcd.efgh" {
		t.Errorf("chunks do not reassemble: %q", got)
	}
}

func TestSplit_CountsRunes(t *testing.T) {
	text := strings.Repeat("ありがとう。", 3)
	got := Split(text, 6)
	if len(got) != 3 {
		t.Fatalf("expected 3 chunks, got %q", got)
	}
	for _, c := range got {
		if n := utf8.RuneCountInString(c); n > 6 {
			t.Errorf("chunk %q has %d runes", c, n)
		}
	}
}

func TestSplit_NonPositiveMax(t *testing.T) {
	got := Split("some text", 0)
	if len(got) != 1 || got[0] != "some text" {
		t.Errorf("Split with max 0 = %q", got)
	}
}

func TestJoin(t *testing.T) {
	if got := Join([]string{"a", "b", "c"}); got != "a b c" {
		t.Errorf("Join = %q", got)
	}
	if got := Join(nil); got != "" {
		t.Errorf("Join(nil) = %q", got)
	}
}

func TestNewTextChunker(t *testing.T) {
	tc := NewTextChunker()
	if tc.MaxLength != DefaultMaxLength {
		t.Fatalf("MaxLength = %d", tc.MaxLength)
	}
	long := strings.Repeat("word ", 2000)
	for _, c := range tc.Split(long) {
		if utf8.RuneCountInString(c) > DefaultMaxLength {
			t.Fatalf("chunk exceeds default max: %d", utf8.RuneCountInString(c))
		}
	}
}

func genText() *rapid.Generator[string] {
	return rapid.StringOfN(rapid.SampledFrom([]rune("ab .!?xyzé日本\n")), 0, 300, -1)
}

func TestSplit_ReassemblesExactly(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := genText().Draw(t, "text")
		max := rapid.IntRange(1, 50).Draw(t, "max")
		chunks := Split(text, max)
		if got := strings.Join(chunks, ""); got != text {
			t.Fatalf("reassembled %q, want %q", got, text)
		}
	})
}

func TestSplit_RespectsBound(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := genText().Draw(t, "text")
		max := rapid.IntRange(1, 50).Draw(t, "max")
		chunks := Split(text, max)
		if len(chunks) == 0 {
			t.Fatal("no chunks")
		}
		for i, c := range chunks {
			if utf8.RuneCountInString(c) > max {
				t.Fatalf("chunk %d %q longer than %d", i, c, max)
			}
			if len(chunks) > 1 && c == "" {
				t.Fatalf("empty chunk %d in %q", i, chunks)
			}
		}
	})
}

func TestSplit_SingleChunkIffShort(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := genText().Draw(t, "text")
		max := rapid.IntRange(1, 50).Draw(t, "max")
		chunks := Split(text, max)
		short := utf8.RuneCountInString(text) <= max
		if short != (len(chunks) == 1) {
			t.Fatalf("len=%d max=%d chunks=%d", utf8.RuneCountInString(text), max, len(chunks))
		}
	})
}
