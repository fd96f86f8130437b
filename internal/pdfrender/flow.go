package pdfrender

import (
	"fmt"
	"html"
	"strings"

	"github.com/go-pdf/fpdf"
)

// TitlePrefix heads every translated document.
const TitlePrefix = "Bản dịch"

// FlowStrategy lays out each page's text as flowing markup: a title block,
// then per original page a "Trang N/total" heading and the text, with a page
// break between pages.
type FlowStrategy struct{}

func (FlowStrategy) Name() string { return "flow" }

func (FlowStrategy) Render(doc Document, fonts *FontRegistry) ([]byte, error) {
	pdf := newDocument(doc.Title)
	f := fonts.install(pdf)
	pdf.AddPage()

	f.set(pdf, "B", titleSize)
	pdf.CellFormat(0, 10, f.tr(documentTitle(doc.Title)), "", 1, "C", false, 0, "")
	pdf.Ln(lineHeight)

	total := len(doc.Pages)
	for i := 0; i < total; i++ {
		if i > 0 {
			pdf.AddPage()
		}
		writeMarkup(pdf, f, PageMarkup(i+1, total, doc.PageText(i)))
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
	}
	return output(pdf)
}

// PageMarkup returns the flowing markup of one page: a bold heading and the
// sanitized text with newlines as <br> tags.
func PageMarkup(page, total int, text string) string {
	body := strings.ReplaceAll(SanitizeForPDF(text), "\n", "<br>")
	return fmt.Sprintf("<b>Trang %d/%d</b><br>%s", page, total, body)
}

// writeMarkup writes tokenized markup with fpdf's flowing Write.
func writeMarkup(pdf *fpdf.Fpdf, f face, markup string) {
	f.set(pdf, "", bodySize)
	for _, seg := range fpdf.HTMLBasicTokenize(markup) {
		switch seg.Cat {
		case 'T':
			pdf.Write(lineHeight, f.tr(html.UnescapeString(seg.Str)))
		case 'O':
			switch seg.Str {
			case "b":
				f.set(pdf, "B", headSize)
			case "br":
				pdf.Ln(lineHeight)
			}
		case 'C':
			if seg.Str == "b" {
				f.set(pdf, "", bodySize)
				pdf.Ln(lineHeight / 2)
			}
		}
	}
}

func documentTitle(title string) string {
	if title == "" {
		return TitlePrefix
	}
	return TitlePrefix + ": " + title
}
