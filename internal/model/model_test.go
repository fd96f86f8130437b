package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestFormatFromFilename(t *testing.T) {
	cases := map[string]Format{
		"report.pdf":     FormatPDF,
		"REPORT.PDF":     FormatPDF,
		"book.xlsx":      FormatExcel,
		"old.xls":        FormatExcel,
		"letter.docx":    FormatWord,
		"legacy.DOC":     FormatWord,
		"dir/a.b.c.docx": FormatWord,
	}
	for name, want := range cases {
		got, err := FormatFromFilename(name)
		if err != nil {
			t.Errorf("FormatFromFilename(%q): unexpected error %v", name, err)
			continue
		}
		if got != want {
			t.Errorf("FormatFromFilename(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestFormatFromFilename_Unsupported(t *testing.T) {
	for _, name := range []string{"notes.txt", "slides.pptx", "noext", "", "image.png"} {
		_, err := FormatFromFilename(name)
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("FormatFromFilename(%q) error = %v, want ErrUnsupportedFormat", name, err)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(" Excel "); err != nil || f != FormatExcel {
		t.Fatalf("ParseFormat(Excel) = %q, %v", f, err)
	}
	if _, err := ParseFormat("ppt"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestSniffContainer(t *testing.T) {
	if c := SniffContainer([]byte("%PDF-1.7\n")); c != ContainerPDF {
		t.Errorf("pdf sniffed as %s", c)
	}
	if c := SniffContainer([]byte("PK\x03\x04rest")); c != ContainerZip {
		t.Errorf("zip sniffed as %s", c)
	}
	if c := SniffContainer([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1, 0}); c != ContainerOLE2 {
		t.Errorf("ole2 sniffed as %s", c)
	}
	if c := SniffContainer([]byte("hello")); c != ContainerUnknown {
		t.Errorf("text sniffed as %s", c)
	}
}

func TestErrorsWrapCause(t *testing.T) {
	cause := errors.New("bad xref")
	err := Unreadable(FormatPDF, cause)
	if !errors.Is(err, ErrUnreadableDocument) || !errors.Is(err, cause) {
		t.Fatalf("Unreadable lost its chain: %v", err)
	}
	err = ReassemblyFailed(FormatWord, cause)
	if !errors.Is(err, ErrReassembly) || !errors.Is(err, cause) {
		t.Fatalf("ReassemblyFailed lost its chain: %v", err)
	}
	if !errors.Is(TranslationFailed(cause), ErrTranslationUnavailable) {
		t.Fatal("TranslationFailed does not match ErrTranslationUnavailable")
	}
}

func TestExportFilename(t *testing.T) {
	cases := []struct {
		name   string
		format Format
		want   string
	}{
		{"report.pdf", FormatPDF, "translated_report.pdf"},
		{"bảng tính.xlsx", FormatExcel, "translated_bảng tính.xlsx"},
		{"old.xls", FormatExcel, "translated_old.xlsx"},
		{"legacy.doc", FormatWord, "translated_legacy.docx"},
		{`C:\Users\me\letter.docx`, FormatWord, "translated_letter.docx"},
		{"", FormatPDF, "translated_document.pdf"},
	}
	for _, tc := range cases {
		if got := ExportFilename(tc.name, tc.format); got != tc.want {
			t.Errorf("ExportFilename(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestContentDisposition(t *testing.T) {
	got := ContentDisposition("translated_tài liệu.pdf")
	if !strings.HasPrefix(got, "attachment; ") {
		t.Fatalf("missing attachment prefix: %q", got)
	}
	if !strings.Contains(got, "filename*=UTF-8''translated_t%C3%A0i%20li%E1%BB%87u.pdf") {
		t.Errorf("unexpected encoded name: %q", got)
	}
	if !strings.Contains(got, `filename="translated_t_i li_u.pdf"`) {
		t.Errorf("unexpected ascii fallback: %q", got)
	}
}

func TestPercentEncodeKeepsUnreserved(t *testing.T) {
	in := "AZaz09-._~/"
	if got := PercentEncode(in); got != in {
		t.Errorf("PercentEncode(%q) = %q", in, got)
	}
	if got := PercentEncode("a&b=c"); got != "a%26b%3Dc" {
		t.Errorf("PercentEncode reserved = %q", got)
	}
}

func TestUnitsOrderAndWriteThrough(t *testing.T) {
	b := &Bundle{
		Format: FormatExcel,
		Sheets: []Sheet{
			{Name: "S1", Cells: []Cell{{Address: "A1", Text: Text{Content: "a"}}, {Address: "B1", Text: Text{Content: "b"}}}},
			{Name: "S2", Cells: []Cell{{Address: "A1", Text: Text{Content: "c"}}}},
		},
	}
	units := b.Units()
	want := []string{"S1!A1", "S1!B1", "S2!A1"}
	if len(units) != len(want) || b.Len() != len(want) {
		t.Fatalf("got %d units, want %d", len(units), len(want))
	}
	for i, u := range units {
		if u.Address != want[i] {
			t.Errorf("unit %d address = %q, want %q", i, u.Address, want[i])
		}
		u.Translated = strings.ToUpper(u.Content)
	}
	if b.Sheets[1].Cells[0].Translated != "C" {
		t.Errorf("write through unit did not reach bundle: %+v", b.Sheets[1].Cells[0])
	}
}

func TestContentWireShape(t *testing.T) {
	b := &Bundle{Format: FormatPDF, Pages: []Page{
		{Number: 1, Text: Text{Content: "Hello", Translated: "Xin chào"}},
		{Number: 2, Text: Text{Content: "World"}},
	}}
	data, err := b.MarshalContent()
	if err != nil {
		t.Fatalf("MarshalContent: %v", err)
	}
	want := `[{"page":1,"content":"Hello","translated_content":"Xin chào"},{"page":2,"content":"World"}]`
	if string(data) != want {
		t.Fatalf("wire shape:\n got %s\nwant %s", data, want)
	}

	sheets := `[{"sheet_name":"Sheet1","cells":[{"address":"A1","content":"x","translated_content":"y"}]}]`
	got, err := UnmarshalContent(FormatExcel, []byte(sheets))
	if err != nil {
		t.Fatalf("UnmarshalContent: %v", err)
	}
	if got.Sheets[0].Name != "Sheet1" || got.Sheets[0].Cells[0].Translated != "y" {
		t.Errorf("decoded sheet = %+v", got.Sheets[0])
	}
}

func TestMarshalContent_EmptyIsArray(t *testing.T) {
	b := &Bundle{Format: FormatWord}
	data, err := b.MarshalContent()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[]" {
		t.Errorf("empty bundle encoded as %s", data)
	}
	var v []json.RawMessage
	if err := json.Unmarshal(data, &v); err != nil {
		t.Errorf("not a JSON array: %v", err)
	}
}

func TestUnmarshalContent_RejectsDuplicates(t *testing.T) {
	_, err := UnmarshalContent(FormatWord, []byte(`[{"paragraph":2,"content":"a"},{"paragraph":2,"content":"b"}]`))
	if err == nil {
		t.Fatal("expected duplicate paragraph error")
	}
	_, err = UnmarshalContent(FormatPDF, []byte(`[{"page":0,"content":"a"}]`))
	if err == nil {
		t.Fatal("expected invalid page error")
	}
	_, err = UnmarshalContent(FormatPDF, []byte(`{"page":1}`))
	if err == nil {
		t.Fatal("expected decode error for non-array content")
	}
}
