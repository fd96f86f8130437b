// Package ocr recognizes text in scanned page images. The Tesseract engine is
// only compiled with the "tesseract" build tag because it links libtesseract;
// without it New reports ErrUnavailable and callers skip OCR.
package ocr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"strings"

	"golang.org/x/image/draw"
)

var (
	// ErrUnavailable is returned by New when the binary was built without OCR.
	ErrUnavailable = errors.New("ocr engine not available in this build")
	// ErrBlankImage is returned by Preprocess for images of a single flat colour.
	ErrBlankImage = errors.New("blank page image")
)

// Options configures recognition.
type Options struct {
	// Languages are tesseract language packs, e.g. "jpn", "eng", "vie".
	Languages []string
	// PageSegMode is the tesseract page segmentation mode (6 = single block).
	PageSegMode int
	// DPI is the resolution images are upscaled to before recognition.
	DPI int
}

// DefaultOptions mixes Japanese, English and Vietnamese at 300 dpi.
func DefaultOptions() Options {
	return Options{
		Languages:   []string{"jpn", "eng", "vie"},
		PageSegMode: 6,
		DPI:         300,
	}
}

// ParseLanguages splits a "jpn+eng+vie" style list.
func ParseLanguages(s string) []string {
	var langs []string
	for _, l := range strings.FieldsFunc(s, func(r rune) bool { return r == '+' || r == ',' || r == ' ' }) {
		langs = append(langs, l)
	}
	return langs
}

// a4WidthInches is used to estimate the resolution of a full-page scan.
const a4WidthInches = 8.27

// maxUpscale bounds the enlargement of small images.
const maxUpscale = 4.0

// Preprocess decodes img, converts it to grayscale and upscales it so that a
// full-width page reaches dpi. The result is PNG encoded.
func Preprocess(img []byte, dpi int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("decode page image: %w", err)
	}
	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("empty page image")
	}

	scale := 1.0
	if dpi > 0 {
		target := float64(dpi) * a4WidthInches
		if w := float64(b.Dx()); w < target {
			scale = target / w
		}
		if scale > maxUpscale {
			scale = maxUpscale
		}
	}

	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), src, b.Min, draw.Src)
	if isBlank(gray) {
		return nil, ErrBlankImage
	}

	out := image.Image(gray)
	if scale > 1.0 {
		w := int(float64(b.Dx()) * scale)
		h := int(float64(b.Dy()) * scale)
		dst := image.NewGray(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), gray, gray.Bounds(), draw.Src, nil)
		out = dst
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode page image: %w", err)
	}
	return buf.Bytes(), nil
}

// isBlank reports whether an image is a single flat colour, which recognition
// cannot turn into text.
func isBlank(img image.Image) bool {
	b := img.Bounds()
	if b.Empty() {
		return true
	}
	first := color.GrayModel.Convert(img.At(b.Min.X, b.Min.Y)).(color.Gray)
	for y := b.Min.Y; y < b.Max.Y; y += 4 {
		for x := b.Min.X; x < b.Max.X; x += 4 {
			c := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			if d := int(c.Y) - int(first.Y); d > 16 || d < -16 {
				return false
			}
		}
	}
	return true
}
