package parser

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"strings"

	goword "github.com/VantageDataChat/GoWord"

	"doctranslate/internal/model"
)

// WordprocessingML main namespaces (transitional and strict).
const (
	nsWordTransitional = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsWordStrict       = "http://purl.oclc.org/ooxml/wordprocessingml/main"
)

const defaultDocumentPart = "word/document.xml"

// WordDocument is the main part of a .docx package with its top-level body
// paragraphs located by byte range.
type WordDocument struct {
	// Part is the zip entry name of the main document part.
	Part string
	// XML is the raw content of Part.
	XML []byte
	// Paragraphs are the w:p elements directly under w:body, in order.
	// Bundle paragraph indices are positions in this slice, from 1.
	// Paragraphs inside tables or content controls are not part of it.
	Paragraphs []WordParagraph
}

// WordParagraph is one top-level body paragraph. All byte slices alias
// WordDocument.XML.
type WordParagraph struct {
	// Start and End delimit the whole element in WordDocument.XML.
	Start, End int
	// Text is the visible text: runs at any depth (hyperlinks, tracked
	// insertions, smart tags, simple fields, content controls). Deleted
	// text, field instructions and text boxes are left out. Tabs become
	// '\t' and breaks '\n'.
	Text string
	// Head is the opening tag, rewritten as a start tag when the element
	// was self-closing.
	Head []byte
	// Props is the w:pPr element, nil if absent.
	Props []byte
	// Kept are the direct children that carry no text (bookmarks, drawing
	// runs, comment anchors), in order.
	Kept [][]byte
	// RunProps holds the w:rPr element of each visible text run in order,
	// nil for runs without properties.
	RunProps [][]byte
}

// Tail returns the closing tag matching Head.
func (p WordParagraph) Tail() string {
	name := bytes.TrimPrefix(p.Head, []byte("<"))
	if i := bytes.IndexAny(name, " \t\r\n/>"); i >= 0 {
		name = name[:i]
	}
	return "</" + string(name) + ">"
}

// ReadWordDocument locates the main document part of a .docx package and
// scans its body paragraphs.
func ReadWordDocument(data []byte) (*WordDocument, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	part := mainDocumentPart(zr)
	var raw []byte
	for _, f := range zr.File {
		if f.Name != part {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", part, err)
		}
		raw, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", part, err)
		}
		break
	}
	if raw == nil {
		return nil, fmt.Errorf("%s not found", part)
	}

	paras, err := scanBody(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", part, err)
	}
	return &WordDocument{Part: part, XML: raw, Paragraphs: paras}, nil
}

// mainDocumentPart resolves the officeDocument relationship of the package,
// falling back to word/document.xml.
func mainDocumentPart(zr *zip.Reader) string {
	for _, f := range zr.File {
		if f.Name != "_rels/.rels" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			break
		}
		var rels struct {
			Relationship []struct {
				Type   string `xml:"Type,attr"`
				Target string `xml:"Target,attr"`
			}
		}
		err = xml.NewDecoder(rc).Decode(&rels)
		rc.Close()
		if err != nil {
			break
		}
		for _, r := range rels.Relationship {
			if strings.HasSuffix(r.Type, "/officeDocument") && r.Target != "" {
				return path.Clean(strings.TrimPrefix(r.Target, "/"))
			}
		}
	}
	return defaultDocumentPart
}

func isW(n xml.Name, local string) bool {
	return n.Local == local && (n.Space == nsWordTransitional || n.Space == nsWordStrict)
}

// embedded elements hold separate stories; their text is not paragraph text
// and they survive a rewrite untouched.
func embedded(n xml.Name) bool {
	switch n.Local {
	case "AlternateContent":
		return true
	case "txbxContent", "drawing", "pict", "object":
		return isW(n, n.Local)
	}
	return false
}

// scanBody streams document XML and records every w:p directly under w:body.
func scanBody(data []byte) ([]WordParagraph, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		stack []xml.Name
		paras []WordParagraph
		cur   *paraScan
	)
	for {
		start := int(dec.InputOffset())
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name)
			end := int(dec.InputOffset())
			switch {
			case cur != nil:
				cur.open(stack, start)
			case isW(t.Name, "p") && len(stack) >= 2 && isW(stack[len(stack)-2], "body"):
				cur = &paraScan{data: data, depth: len(stack), start: start, headEnd: end}
			}
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, errors.New("unbalanced document")
			}
			end := int(dec.InputOffset())
			if cur != nil {
				if len(stack) == cur.depth {
					paras = append(paras, cur.finish(end))
					cur = nil
				} else {
					cur.close(stack, end)
				}
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if cur != nil && cur.inText() {
				cur.text.Write(t)
			}
		}
	}
	if len(stack) != 0 {
		return nil, errors.New("unbalanced document")
	}
	return paras, nil
}

// paraScan accumulates one paragraph. Depths are stack lengths; zero means
// "not inside".
type paraScan struct {
	data           []byte
	depth          int
	start, headEnd int

	child     int
	childText bool

	embedAt, hiddenAt, textAt int
	runAt, rPrStart           int
	runProps                  []byte
	runVisible                bool

	para WordParagraph
	text strings.Builder
}

func (s *paraScan) inText() bool {
	return s.textAt != 0 && s.hiddenAt == 0 && s.embedAt == 0
}

func (s *paraScan) open(stack []xml.Name, start int) {
	d := len(stack)
	name := stack[d-1]
	if d == s.depth+1 {
		s.child, s.childText = start, false
	}
	if s.embedAt != 0 {
		return
	}
	if embedded(name) {
		s.embedAt = d
		return
	}
	inRun := s.runAt != 0 && d == s.runAt+1
	switch {
	case isW(name, "del"), isW(name, "moveFrom"):
		if s.hiddenAt == 0 {
			s.hiddenAt = d
		}
	case isW(name, "r"):
		s.runAt, s.runProps, s.runVisible = d, nil, false
	case isW(name, "rPr") && inRun:
		s.rPrStart = start
	case isW(name, "t") && inRun:
		s.textAt = d
		s.markText()
	case (isW(name, "tab") || isW(name, "br") || isW(name, "cr")) && inRun:
		s.markText()
		if s.hiddenAt == 0 {
			if name.Local == "tab" {
				s.text.WriteByte('\t')
			} else {
				s.text.WriteByte('\n')
			}
		}
	case isW(name, "delText"), isW(name, "instrText"):
		s.childText = true
		if s.hiddenAt == 0 {
			s.hiddenAt = d
		}
	case isW(name, "fldChar"), isW(name, "sym"), isW(name, "noBreakHyphen"), isW(name, "softHyphen"):
		s.childText = true
	}
}

// markText flags the current child as text-bearing and records the style
// of the first visible text element of each run.
func (s *paraScan) markText() {
	s.childText = true
	if s.hiddenAt == 0 && s.runAt != 0 && !s.runVisible {
		s.runVisible = true
		s.para.RunProps = append(s.para.RunProps, s.runProps)
	}
}

func (s *paraScan) close(stack []xml.Name, end int) {
	d := len(stack)
	name := stack[d-1]
	switch {
	case s.embedAt == d:
		s.embedAt = 0
	case s.embedAt != 0:
		return
	default:
		if s.hiddenAt == d {
			s.hiddenAt = 0
		}
		if s.textAt == d {
			s.textAt = 0
		}
		if s.runAt != 0 && d == s.runAt+1 && isW(name, "rPr") {
			s.runProps = s.data[s.rPrStart:end]
		}
		if s.runAt == d {
			s.runAt = 0
		}
	}
	if d == s.depth+1 {
		child := s.data[s.child:end]
		switch {
		case isW(name, "pPr"):
			s.para.Props = child
		case !s.childText:
			s.para.Kept = append(s.para.Kept, child)
		}
	}
}

func (s *paraScan) finish(end int) WordParagraph {
	p := s.para
	p.Start, p.End = s.start, end
	p.Text = s.text.String()
	head := s.data[s.start:s.headEnd]
	if s.headEnd == end {
		// <w:p/> has no separate closing tag.
		trimmed := bytes.TrimRight(bytes.TrimSuffix(head, []byte("/>")), " \t\r\n")
		head = append(append([]byte{}, trimmed...), '>')
	}
	p.Head = head
	return p
}

// parseWord emits one unit per non-blank body paragraph of a .docx file.
func (dp *DocumentParser) parseWord(data []byte) (*model.Bundle, error) {
	doc, err := ReadWordDocument(data)
	if err != nil {
		return nil, model.Unreadable(model.FormatWord, err)
	}

	b := &model.Bundle{Format: model.FormatWord, Title: docxTitle(data)}
	for i, p := range doc.Paragraphs {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		b.Paragraphs = append(b.Paragraphs, model.Paragraph{Index: i + 1, Text: model.Text{Content: p.Text}})
	}
	log.Printf("[Word] %d body paragraphs, %d with text", len(doc.Paragraphs), len(b.Paragraphs))
	return b, nil
}

// docxTitle reads the core properties title. Failure only loses the title.
func docxTitle(data []byte) string {
	var title string
	err := guard("word properties", func() error {
		doc, err := goword.OpenFromBytes(data)
		if err != nil {
			return err
		}
		title = strings.TrimSpace(doc.Properties.Title)
		return nil
	})
	if err != nil {
		log.Printf("[Word] document properties unavailable: %v", err)
	}
	return title
}
