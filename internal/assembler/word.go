package assembler

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/fumiama/go-docx"

	"doctranslate/internal/model"
	"doctranslate/internal/parser"
)

// RunStyle is the part of a run's formatting carried over to its
// replacement.
type RunStyle struct {
	Bold      bool
	Italic    bool
	Underline string
	Size      string
}

// CaptureStyles returns the style of each visible text run of p in order.
func CaptureStyles(p parser.WordParagraph) []RunStyle {
	styles := make([]RunStyle, 0, len(p.RunProps))
	for _, raw := range p.RunProps {
		styles = append(styles, styleOf(raw))
	}
	return styles
}

type onOff struct {
	Val *string `xml:"val,attr"`
}

// on reports whether a toggle property is set. A bare element is on;
// w:val="0", "false" or "off" turns it off.
func (o *onOff) on() bool {
	if o == nil {
		return false
	}
	if o.Val == nil {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(*o.Val)) {
	case "0", "false", "off":
		return false
	}
	return true
}

type valAttr struct {
	Val string `xml:"val,attr"`
}

type runProperties struct {
	Bold      *onOff   `xml:"b"`
	Italic    *onOff   `xml:"i"`
	Underline *valAttr `xml:"u"`
	Size      *valAttr `xml:"sz"`
}

// styleOf decodes a raw w:rPr element. Unreadable properties yield the zero
// style.
func styleOf(raw []byte) RunStyle {
	var s RunStyle
	if len(raw) == 0 {
		return s
	}
	var rp runProperties
	if err := xml.Unmarshal(raw, &rp); err != nil {
		return s
	}
	s.Bold = rp.Bold.on()
	s.Italic = rp.Italic.on()
	if rp.Underline != nil && rp.Underline.Val != "none" {
		s.Underline = rp.Underline.Val
	}
	if rp.Size != nil {
		s.Size = rp.Size.Val
	}
	return s
}

// apply sets the captured style on r.
func (s RunStyle) apply(r *docx.Run) {
	if r.RunProperties == nil {
		r.RunProperties = &docx.RunProperties{}
	}
	if s.Bold {
		r.Bold()
	}
	if s.Italic {
		r.Italic()
	}
	if s.Underline != "" {
		r.Underline(s.Underline)
	}
	if s.Size != "" {
		r.Size(s.Size)
	}
}

// textRun builds a run holding text, with tabs and line breaks as their
// own run children.
func textRun(text string) *docx.Run {
	r := &docx.Run{}
	var seg strings.Builder
	flush := func() {
		if seg.Len() > 0 {
			r.Children = append(r.Children, &docx.Text{Text: seg.String(), XMLSpace: "preserve"})
			seg.Reset()
		}
	}
	for _, c := range text {
		switch c {
		case '\t':
			flush()
			r.Children = append(r.Children, &docx.Tab{})
		case '\n':
			flush()
			r.Children = append(r.Children, &docx.BarterRabbet{})
		case '\r':
		default:
			seg.WriteRune(c)
		}
	}
	flush()
	return r
}

// ReplaceParagraph renders p with its text runs swapped for a single run
// holding text. The captured run styles are re-applied in order, as far as
// new runs exist. Paragraph properties and children without text are kept.
func ReplaceParagraph(p parser.WordParagraph, text string) ([]byte, error) {
	styles := CaptureStyles(p)
	runs := []*docx.Run{textRun(text)}
	for i, r := range runs {
		if i < len(styles) {
			styles[i].apply(r)
		}
	}

	var buf bytes.Buffer
	buf.Write(p.Head)
	buf.Write(p.Props)
	for _, k := range p.Kept {
		buf.Write(k)
	}
	for _, r := range runs {
		out, err := xml.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("encode run: %w", err)
		}
		buf.Write(out)
	}
	buf.WriteString(p.Tail())
	return buf.Bytes(), nil
}

// reassembleWord writes translated paragraphs into a .docx document. Only
// the mapped paragraphs of the main document part are rewritten; every
// other byte of the package is copied through.
func reassembleWord(original []byte, b *model.Bundle) ([]byte, error) {
	doc, err := parser.ReadWordDocument(original)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}

	tr := translations(b)
	var body bytes.Buffer
	last, replaced := 0, 0
	for i, p := range doc.Paragraphs {
		text, ok := tr["paragraph "+strconv.Itoa(i+1)]
		if !ok {
			continue
		}
		repl, err := ReplaceParagraph(p, text)
		if err != nil {
			return nil, fmt.Errorf("paragraph %d: %w", i+1, err)
		}
		body.Write(doc.XML[last:p.Start])
		body.Write(repl)
		last = p.End
		replaced++
	}
	if replaced == 0 {
		log.Printf("[Word] no paragraphs replaced")
		return original, nil
	}
	body.Write(doc.XML[last:])

	out, err := replacePart(original, doc.Part, body.Bytes())
	if err != nil {
		return nil, fmt.Errorf("write document: %w", err)
	}
	log.Printf("[Word] %d paragraphs replaced", replaced)
	return out, nil
}

// replacePart rewrites one entry of a zip package. Other entries are
// copied in their original compressed form.
func replacePart(pkg []byte, name string, content []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(pkg), int64(len(pkg)))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range zr.File {
		if f.Name == name {
			w, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: f.Method, Modified: f.Modified})
			if err != nil {
				return nil, err
			}
			if _, err := w.Write(content); err != nil {
				return nil, err
			}
			continue
		}
		raw, err := f.OpenRaw()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		fh := f.FileHeader
		w, err := zw.CreateRaw(&fh)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		if _, err := io.Copy(w, raw); err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
	}
	if err := zw.SetComment(zr.Comment); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// reassembleWordLegacy converts a legacy .doc document into a new .docx
// with every original paragraph, blank ones included, so indices keep their
// meaning.
func reassembleWordLegacy(original []byte, b *model.Bundle) ([]byte, error) {
	paras, err := parser.ReadLegacyWordParagraphs(original)
	if err != nil {
		return nil, fmt.Errorf("read legacy document: %w", err)
	}

	tr := translations(b)
	doc := docx.New().WithDefaultTheme()
	for i, text := range paras {
		if t, ok := tr["paragraph "+strconv.Itoa(i+1)]; ok {
			text = t
		}
		p := doc.AddParagraph()
		if text != "" {
			p.AddText(text)
		}
	}

	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write document: %w", err)
	}
	log.Printf("[Word] legacy document converted: %d paragraphs", len(paras))
	return buf.Bytes(), nil
}
