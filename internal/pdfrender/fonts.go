package pdfrender

import (
	_ "embed"
	"fmt"
	"log"
	"os"

	"github.com/go-pdf/fpdf"

	"doctranslate/internal/errlog"
	"doctranslate/internal/fontcheck"
)

//go:embed fonts/DejaVuSansCondensed.ttf
var dejaVuRegular []byte

//go:embed fonts/DejaVuSansCondensed-Bold.ttf
var dejaVuBold []byte

// Font family names known to the renderer.
const (
	FamilyDejaVu  = "DejaVu"
	FamilyViet    = "VietFont"
	FamilyArial   = "Arial"
	DefaultFamily = "Helvetica"
)

// preferredFamilies is the selection order among registered fonts.
var preferredFamilies = []string{FamilyDejaVu, FamilyViet, FamilyArial}

type fontData struct {
	regular []byte
	bold    []byte
}

// FontRegistry is the set of TrueType fonts available to one render call.
// The bundled DejaVu family is always registered.
type FontRegistry struct {
	fonts map[string]fontData
}

// NewFontRegistry returns a registry holding the bundled Unicode font.
func NewFontRegistry() *FontRegistry {
	r := &FontRegistry{fonts: make(map[string]fontData)}
	r.Register(FamilyDejaVu, dejaVuRegular, dejaVuBold)
	return r
}

// Register adds a font family. A nil bold face reuses the regular one.
func (r *FontRegistry) Register(family string, regular, bold []byte) {
	if len(bold) == 0 {
		bold = regular
	}
	r.fonts[family] = fontData{regular: regular, bold: bold}
}

// RegisterFile adds a family from a TrueType file on disk.
func (r *FontRegistry) RegisterFile(family, path string) error {
	if !fontcheck.IsTrueType(path) {
		return fmt.Errorf("font %s: %s is not a TrueType file", family, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("font %s: %w", family, err)
	}
	r.Register(family, data, nil)
	return nil
}

// Unregister removes a family.
func (r *FontRegistry) Unregister(family string) {
	delete(r.fonts, family)
}

// Candidates returns the registered preferred families in selection order.
func (r *FontRegistry) Candidates() []string {
	var out []string
	for _, family := range preferredFamilies {
		if _, ok := r.fonts[family]; ok {
			out = append(out, family)
		}
	}
	return out
}

// Choose returns the family a render call will try first.
func (r *FontRegistry) Choose() string {
	if c := r.Candidates(); len(c) > 0 {
		return c[0]
	}
	return DefaultFamily
}

// face is the font selected into one fpdf document. tr converts UTF-8 text
// to the encoding the font expects.
type face struct {
	family string
	tr     func(string) string
}

func (f face) set(pdf *fpdf.Fpdf, style string, size float64) {
	pdf.SetFont(f.family, style, size)
}

// install loads the first candidate that fpdf accepts, falling back to the
// core Helvetica font with the cp1252 translator.
func (r *FontRegistry) install(pdf *fpdf.Fpdf) face {
	for _, family := range r.Candidates() {
		fd := r.fonts[family]
		err := guard("font "+family, func() error {
			pdf.AddUTF8FontFromBytes(family, "", fd.regular)
			pdf.AddUTF8FontFromBytes(family, "B", fd.bold)
			pdf.SetFont(family, "", bodySize)
			return pdf.Error()
		})
		if err == nil {
			return face{family: family, tr: func(s string) string { return s }}
		}
		log.Printf("[PDF] font %s unusable: %v", family, err)
		errlog.Logf("[PDF] font %s unusable: %v", family, err)
		pdf.ClearError()
	}

	pdf.SetFont(DefaultFamily, "", bodySize)
	return face{family: DefaultFamily, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}
