package assembler

import (
	"context"
	"fmt"
	"log"

	"doctranslate/internal/model"
	"doctranslate/internal/parser"
	"doctranslate/internal/pdfrender"
)

// reassemblePDF renders a translation-only document with one section per
// page of the original.
func (a *Assembler) reassemblePDF(ctx context.Context, original []byte, b *model.Bundle) ([]byte, error) {
	pageCount, err := parser.PDFPageCount(original)
	if err != nil {
		return nil, fmt.Errorf("read original: %w", err)
	}

	doc := pdfrender.Document{Title: b.Title, Pages: make([]string, pageCount)}
	if doc.Title == "" {
		doc.Title = b.Filename
	}
	for _, p := range b.Pages {
		if p.Number < 1 || p.Number > pageCount {
			log.Printf("[PDF] translated page %d outside original (%d pages), ignored", p.Number, pageCount)
			continue
		}
		doc.Pages[p.Number-1] = p.Translated
	}

	var fonts *pdfrender.FontRegistry
	if a.Fonts != nil {
		fonts = a.Fonts()
	}
	r := pdfrender.NewRenderer(fonts)
	if len(a.Strategies) > 0 {
		r.Strategies = a.Strategies
	}
	data, _, err := r.Render(ctx, doc)
	return data, err
}
