package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Text is the translatable payload of every addressable unit. Translated is
// empty until the translation stage has run; empty means "no translation".
type Text struct {
	Content    string `json:"content"`
	Translated string `json:"translated_content,omitempty"`
}

// HasTranslation reports whether a non-empty translation is present.
func (t *Text) HasTranslation() bool {
	return t.Translated != ""
}

// Page is one PDF page, numbered from 1.
type Page struct {
	Number int `json:"page"`
	Text
}

// Cell is one spreadsheet cell, addressed like "B7".
type Cell struct {
	Address string `json:"address"`
	Text
}

// Sheet groups the non-empty cells of one worksheet in scan order.
type Sheet struct {
	Name  string `json:"sheet_name"`
	Cells []Cell `json:"cells"`
}

// Paragraph is one non-empty body paragraph. Index counts every paragraph of
// the document body from 1, blank ones included.
type Paragraph struct {
	Index int `json:"paragraph"`
	Text
}

// Bundle is the extracted content of one document. Exactly one of Pages,
// Sheets or Paragraphs is used, according to Format.
type Bundle struct {
	Format     Format
	Filename   string
	Title      string
	Pages      []Page
	Sheets     []Sheet
	Paragraphs []Paragraph
}

// Unit is a view onto one addressable unit of a bundle. Text points into the
// bundle, so writes through it are visible in the bundle.
type Unit struct {
	Address string
	*Text
}

// Units returns the bundle's units in address order: pages ascending, sheets
// in workbook order with their cells in scan order, paragraphs ascending.
func (b *Bundle) Units() []Unit {
	var units []Unit
	switch b.Format {
	case FormatPDF:
		for i := range b.Pages {
			p := &b.Pages[i]
			units = append(units, Unit{Address: "page " + strconv.Itoa(p.Number), Text: &p.Text})
		}
	case FormatExcel:
		for i := range b.Sheets {
			s := &b.Sheets[i]
			for j := range s.Cells {
				c := &s.Cells[j]
				units = append(units, Unit{Address: s.Name + "!" + c.Address, Text: &c.Text})
			}
		}
	case FormatWord:
		for i := range b.Paragraphs {
			p := &b.Paragraphs[i]
			units = append(units, Unit{Address: "paragraph " + strconv.Itoa(p.Index), Text: &p.Text})
		}
	}
	return units
}

// Len returns the number of units in the bundle.
func (b *Bundle) Len() int {
	switch b.Format {
	case FormatPDF:
		return len(b.Pages)
	case FormatWord:
		return len(b.Paragraphs)
	case FormatExcel:
		n := 0
		for _, s := range b.Sheets {
			n += len(s.Cells)
		}
		return n
	}
	return 0
}

// MarshalContent encodes the unit list in the wire shape for the bundle's
// format: a page list, a sheet list or a paragraph list.
func (b *Bundle) MarshalContent() ([]byte, error) {
	switch b.Format {
	case FormatPDF:
		return json.Marshal(nonNil(b.Pages))
	case FormatExcel:
		sheets := make([]Sheet, len(b.Sheets))
		for i, s := range b.Sheets {
			sheets[i] = Sheet{Name: s.Name, Cells: nonNil(s.Cells)}
		}
		return json.Marshal(sheets)
	case FormatWord:
		return json.Marshal(nonNil(b.Paragraphs))
	}
	return nil, Unsupported(string(b.Format))
}

// UnmarshalContent decodes a wire unit list for the given format.
func UnmarshalContent(format Format, data []byte) (*Bundle, error) {
	b := &Bundle{Format: format}
	var err error
	switch format {
	case FormatPDF:
		err = json.Unmarshal(data, &b.Pages)
	case FormatExcel:
		err = json.Unmarshal(data, &b.Sheets)
	case FormatWord:
		err = json.Unmarshal(data, &b.Paragraphs)
	default:
		return nil, Unsupported(string(format))
	}
	if err != nil {
		return nil, fmt.Errorf("invalid %s content: %w", format, err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate checks that addresses are well formed and unique within their scope.
func (b *Bundle) Validate() error {
	switch b.Format {
	case FormatPDF:
		seen := make(map[int]bool, len(b.Pages))
		for _, p := range b.Pages {
			if p.Number < 1 {
				return fmt.Errorf("invalid page number %d", p.Number)
			}
			if seen[p.Number] {
				return fmt.Errorf("duplicate page %d", p.Number)
			}
			seen[p.Number] = true
		}
	case FormatExcel:
		seenSheet := make(map[string]bool, len(b.Sheets))
		for _, s := range b.Sheets {
			if seenSheet[s.Name] {
				return fmt.Errorf("duplicate sheet %q", s.Name)
			}
			seenSheet[s.Name] = true
			seen := make(map[string]bool, len(s.Cells))
			for _, c := range s.Cells {
				addr := strings.ToUpper(c.Address)
				if addr == "" {
					return fmt.Errorf("empty cell address in sheet %q", s.Name)
				}
				if seen[addr] {
					return fmt.Errorf("duplicate cell %s in sheet %q", addr, s.Name)
				}
				seen[addr] = true
			}
		}
	case FormatWord:
		seen := make(map[int]bool, len(b.Paragraphs))
		for _, p := range b.Paragraphs {
			if p.Index < 1 {
				return fmt.Errorf("invalid paragraph index %d", p.Index)
			}
			if seen[p.Index] {
				return fmt.Errorf("duplicate paragraph %d", p.Index)
			}
			seen[p.Index] = true
		}
	default:
		return Unsupported(string(b.Format))
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
