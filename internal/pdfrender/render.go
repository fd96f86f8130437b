// Package pdfrender builds the translated PDF. Layout strategies are tried
// in order until one produces a document that pdfcpu accepts.
package pdfrender

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"doctranslate/internal/errlog"
	"doctranslate/internal/model"
)

// NoTranslationPlaceholder is rendered for pages without a translation.
const NoTranslationPlaceholder = "Không có bản dịch cho trang này"

// Layout constants, in millimetres and points.
const (
	margin     = 20.0
	titleSize  = 16.0
	headSize   = 13.0
	bodySize   = 11.0
	lineHeight = 6.0
)

// Document is the input of a render: the translated text of each original
// page in order. An empty entry means the page has no translation.
type Document struct {
	Title string
	Pages []string
}

// PageText returns the text to lay out for a 0-based page.
func (d Document) PageText(i int) string {
	if i < len(d.Pages) && d.Pages[i] != "" {
		return d.Pages[i]
	}
	return NoTranslationPlaceholder
}

// Strategy lays out a Document as PDF bytes.
type Strategy interface {
	Name() string
	Render(doc Document, fonts *FontRegistry) ([]byte, error)
}

// DefaultStrategies returns the layout strategies in fallback order.
func DefaultStrategies() []Strategy {
	return []Strategy{FlowStrategy{}, CanvasStrategy{}}
}

// Renderer runs strategies in order and returns the first valid output.
type Renderer struct {
	Fonts      *FontRegistry
	Strategies []Strategy
}

// NewRenderer returns a renderer with the default strategies.
func NewRenderer(fonts *FontRegistry) *Renderer {
	if fonts == nil {
		fonts = NewFontRegistry()
	}
	return &Renderer{Fonts: fonts, Strategies: DefaultStrategies()}
}

// Render returns the PDF bytes and the name of the strategy that produced
// them. It fails with model.ErrReassembly only when every strategy fails.
func (r *Renderer) Render(ctx context.Context, doc Document) ([]byte, string, error) {
	var errs []error
	for _, s := range r.Strategies {
		if err := ctx.Err(); err != nil {
			return nil, "", model.ReassemblyFailed(model.FormatPDF, err)
		}

		var out []byte
		err := guard(s.Name(), func() error {
			var err error
			out, err = s.Render(doc, r.Fonts)
			return err
		})
		if err == nil {
			err = validate(out)
		}
		if err == nil {
			log.Printf("[PDF] rendered %d pages with %s layout (%d bytes)", len(doc.Pages), s.Name(), len(out))
			return out, s.Name(), nil
		}

		log.Printf("[PDF] %s layout failed: %v", s.Name(), err)
		errlog.Logf("[PDF] %s layout failed: %v", s.Name(), err)
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}
	if len(errs) == 0 {
		errs = append(errs, errors.New("no layout strategies configured"))
	}
	return nil, "", model.ReassemblyFailed(model.FormatPDF, errors.Join(errs...))
}

var disableConfigDir sync.Once

// validate parses the output with pdfcpu and checks it has pages.
func validate(data []byte) error {
	n, err := PageCount(data)
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.New("output has no pages")
	}
	return nil
}

// PageCount reads a PDF with pdfcpu in relaxed validation mode.
func PageCount(data []byte) (int, error) {
	disableConfigDir.Do(api.DisableConfigDir)
	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed
	pctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("pdfcpu validation: %w", err)
	}
	return pctx.PageCount, nil
}

// newDocument returns an A4 document with the common margins and metadata.
func newDocument(title string) *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetCreator("doctranslate", true)
	if title != "" {
		pdf.SetTitle(title, true)
	}
	return pdf
}

// output serializes a finished document.
func output(pdf *fpdf.Fpdf) ([]byte, error) {
	if err := pdf.Error(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func guard(what string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", what, r)
		}
	}()
	return fn()
}
