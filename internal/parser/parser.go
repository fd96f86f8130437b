// Package parser extracts addressable text units from PDF, spreadsheet and
// word-processor documents. Each format has its own extractor; Parse
// dispatches on the file extension and, for Office files, on the container
// (OOXML zip or legacy OLE2).
package parser

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"doctranslate/internal/model"
)

// OCREngine recognizes text in a page image.
type OCREngine interface {
	Recognize(ctx context.Context, img []byte) (string, error)
}

// DefaultOCRTimeout bounds recognition of one page.
const DefaultOCRTimeout = 2 * time.Minute

// DocumentParser extracts bundles from raw document bytes. The zero value is
// usable and skips OCR.
type DocumentParser struct {
	OCR        OCREngine
	OCRTimeout time.Duration
}

// Parse extracts the units of the document named filename. It fails with
// model.ErrUnsupportedFormat for unknown extensions and
// model.ErrUnreadableDocument when the container cannot be parsed.
func (dp *DocumentParser) Parse(ctx context.Context, data []byte, filename string) (*model.Bundle, error) {
	format, err := model.FormatFromFilename(filename)
	if err != nil {
		return nil, err
	}

	var b *model.Bundle
	container := model.SniffContainer(data)
	switch format {
	case model.FormatPDF:
		b, err = dp.parsePDF(ctx, data)
	case model.FormatExcel:
		if container == model.ContainerOLE2 {
			b, err = dp.parseXLSLegacy(data)
		} else {
			b, err = dp.parseExcel(data)
		}
	case model.FormatWord:
		if container == model.ContainerOLE2 {
			b, err = dp.parseWordLegacy(data)
		} else {
			b, err = dp.parseWord(data)
		}
	}
	if err != nil {
		return nil, err
	}
	b.Filename = filename
	log.Printf("[Parser] %s (%s, %s container): %d units", filename, format, container, b.Len())
	return b, nil
}

var (
	controlCharRe  = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	multiSpaceRe   = regexp.MustCompile(`[ \t]+`)
	multiNewlineRe = regexp.MustCompile(`\n{3,}`)
)

// CleanText removes control characters (except newlines and tabs), collapses
// runs of spaces and tabs, trims every line and collapses three or more
// newlines into two. The result is NFC normalized.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = controlCharRe.ReplaceAllString(text, "")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(multiSpaceRe.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	text = multiNewlineRe.ReplaceAllString(text, "\n\n")

	return norm.NFC.String(strings.TrimSpace(text))
}

// guard runs fn and converts a panic inside a third-party parser into an error.
func guard(what string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", what, r)
		}
	}()
	return fn()
}
