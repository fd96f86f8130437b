// Package assembler writes translated bundles back into documents of the
// original format. Office originals are re-opened and patched in place; PDF
// originals only contribute their page count to a new translation document.
package assembler

import (
	"context"
	"errors"
	"log"

	"doctranslate/internal/model"
	"doctranslate/internal/pdfrender"
)

// Output is a reassembled document.
type Output struct {
	Data      []byte
	MediaType string
	Ext       string
}

// Assembler rebuilds documents. The zero value renders PDFs with the
// bundled font and the default layout strategies.
type Assembler struct {
	// Fonts builds the font registry of one PDF render call.
	Fonts func() *pdfrender.FontRegistry
	// Strategies overrides the PDF layout order when non-empty.
	Strategies []pdfrender.Strategy
}

// New returns an Assembler using fonts for PDF output.
func New(fonts func() *pdfrender.FontRegistry) *Assembler {
	return &Assembler{Fonts: fonts}
}

// Reassemble applies the translations of b to the original document bytes.
// Units without a translation leave the original content in place. Any
// failure is returned as model.ErrReassembly; no partial output is produced.
func (a *Assembler) Reassemble(ctx context.Context, original []byte, b *model.Bundle) (*Output, error) {
	if b == nil {
		return nil, model.ReassemblyFailed("", errors.New("no content"))
	}
	if len(original) == 0 {
		return nil, model.ReassemblyFailed(b.Format, errors.New("original document is empty"))
	}
	if err := ctx.Err(); err != nil {
		return nil, model.ReassemblyFailed(b.Format, err)
	}

	container := model.SniffContainer(original)
	var (
		data []byte
		err  error
	)
	switch b.Format {
	case model.FormatPDF:
		data, err = a.reassemblePDF(ctx, original, b)
	case model.FormatExcel:
		if container == model.ContainerOLE2 {
			data, err = reassembleExcelLegacy(original, b)
		} else {
			data, err = reassembleExcel(original, b)
		}
	case model.FormatWord:
		if container == model.ContainerOLE2 {
			data, err = reassembleWordLegacy(original, b)
		} else {
			data, err = reassembleWord(original, b)
		}
	default:
		return nil, model.Unsupported(string(b.Format))
	}
	if err != nil {
		if errors.Is(err, model.ErrReassembly) {
			return nil, err
		}
		return nil, model.ReassemblyFailed(b.Format, err)
	}

	log.Printf("[Assembler] %s (%s, %s container): %d bytes", b.Filename, b.Format, container, len(data))
	return &Output{Data: data, MediaType: b.Format.MediaType(), Ext: b.Format.Extension()}, nil
}

// translations indexes the translated units of b by address. Units without
// a translation are absent.
func translations(b *model.Bundle) map[string]string {
	m := make(map[string]string)
	for _, u := range b.Units() {
		if u.HasTranslation() {
			m[u.Address] = u.Translated
		}
	}
	return m
}
