//go:build !tesseract

package ocr

import "context"

// Tesseract is unavailable in builds without the "tesseract" tag.
type Tesseract struct{}

// New always fails with ErrUnavailable.
func New(Options) (*Tesseract, error) {
	return nil, ErrUnavailable
}

// Recognize always fails with ErrUnavailable.
func (t *Tesseract) Recognize(context.Context, []byte) (string, error) {
	return "", ErrUnavailable
}
