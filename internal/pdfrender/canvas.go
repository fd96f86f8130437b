package pdfrender

import (
	"fmt"
	"html"
	"strings"

	"github.com/go-pdf/fpdf"
)

// CanvasStrategy draws text directly at computed positions. Each original
// page starts a new physical page; overflowing text continues on further
// pages.
type CanvasStrategy struct{}

func (CanvasStrategy) Name() string { return "canvas" }

func (CanvasStrategy) Render(doc Document, fonts *FontRegistry) ([]byte, error) {
	pdf := newDocument(doc.Title)
	pdf.SetAutoPageBreak(false, 0)
	f := fonts.install(pdf)

	pageW, pageH := pdf.GetPageSize()
	usable := pageW - 2*margin
	bottom := pageH - margin
	measure := func(s string) float64 { return pdf.GetStringWidth(f.tr(s)) }

	total := len(doc.Pages)
	for i := 0; i < total; i++ {
		pdf.AddPage()
		y := margin + lineHeight

		f.set(pdf, "B", titleSize)
		drawCentered(pdf, f, pageW, y, fmt.Sprintf("%s - Trang %d", TitlePrefix, i+1))
		y += lineHeight + 2
		f.set(pdf, "", bodySize-2)
		drawCentered(pdf, f, pageW, y, fmt.Sprintf("%d/%d", i+1, total))
		y += 2 * lineHeight

		f.set(pdf, "", bodySize)
		text := html.UnescapeString(SanitizeForPDF(doc.PageText(i)))
		for p, para := range strings.Split(text, "\n") {
			if p > 0 {
				y += lineHeight
			}
			for _, line := range WrapText(para, usable, measure) {
				if y > bottom {
					pdf.AddPage()
					y = margin + lineHeight
				}
				pdf.Text(margin, y, f.tr(line))
				y += lineHeight
			}
		}
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
	}
	return output(pdf)
}

func drawCentered(pdf *fpdf.Fpdf, f face, pageW, y float64, s string) {
	s = f.tr(s)
	pdf.Text((pageW-pdf.GetStringWidth(s))/2, y, s)
}

// WrapText greedily packs the words of text into lines no wider than width.
// A word wider than a line is split between runes.
func WrapText(text string, width float64, measure func(string) float64) []string {
	var lines []string
	line := ""
	for _, w := range strings.Fields(text) {
		for measure(w) > width {
			head, tail := splitToWidth(w, width, measure)
			if tail == "" {
				break
			}
			if line != "" {
				lines = append(lines, line)
				line = ""
			}
			lines = append(lines, head)
			w = tail
		}
		if line == "" {
			line = w
			continue
		}
		if candidate := line + " " + w; measure(candidate) <= width {
			line = candidate
		} else {
			lines = append(lines, line)
			line = w
		}
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}

// splitToWidth returns the longest prefix of w, at least one rune, that fits
// width, and the rest.
func splitToWidth(w string, width float64, measure func(string) float64) (string, string) {
	runes := []rune(w)
	k := 1
	for k < len(runes) && measure(string(runes[:k+1])) <= width {
		k++
	}
	return string(runes[:k]), string(runes[k:])
}
