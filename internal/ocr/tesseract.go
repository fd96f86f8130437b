//go:build tesseract

package ocr

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract recognizes text with libtesseract.
type Tesseract struct {
	opts Options
}

// New creates a Tesseract engine.
func New(opts Options) (*Tesseract, error) {
	if len(opts.Languages) == 0 {
		opts.Languages = DefaultOptions().Languages
	}
	if opts.DPI <= 0 {
		opts.DPI = DefaultOptions().DPI
	}
	return &Tesseract{opts: opts}, nil
}

type result struct {
	text string
	err  error
}

// Recognize preprocesses img and returns the recognized text. Recognition
// itself cannot be interrupted; a cancelled ctx only stops the wait.
func (t *Tesseract) Recognize(ctx context.Context, img []byte) (string, error) {
	prepared, err := Preprocess(img, t.opts.DPI)
	if err != nil {
		return "", err
	}

	done := make(chan result, 1)
	go func() {
		text, err := t.run(prepared)
		done <- result{text, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		return r.text, r.err
	}
}

func (t *Tesseract) run(img []byte) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.opts.Languages...); err != nil {
		return "", fmt.Errorf("ocr language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(t.opts.PageSegMode)); err != nil {
		return "", fmt.Errorf("ocr page mode: %w", err)
	}
	if err := client.SetVariable("user_defined_dpi", strconv.Itoa(t.opts.DPI)); err != nil {
		return "", fmt.Errorf("ocr dpi: %w", err)
	}
	if err := client.SetImageFromBytes(img); err != nil {
		return "", fmt.Errorf("ocr image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr: %w", err)
	}
	return strings.TrimSpace(text), nil
}
