package pdfrender

import "strings"

// NoContentPlaceholder replaces empty text.
const NoContentPlaceholder = "Không có nội dung"

var markupEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// SanitizeForPDF escapes XML-significant characters and removes the control
// characters that break the layout engine's markup parsing. Line and
// paragraph separators become spaces. Empty text, before or after stripping,
// becomes NoContentPlaceholder. Applying it twice double-escapes '&'.
func SanitizeForPDF(text string) string {
	if text == "" {
		return NoContentPlaceholder
	}
	text = markupEscaper.Replace(text)
	text = strings.Map(func(r rune) rune {
		switch {
		case r == '\u2028', r == '\u2029':
			return ' '
		case r == 0x00, r == 0x1A, r >= 0x1C && r <= 0x1F:
			return -1
		}
		return r
	}, text)
	if text == "" {
		return NoContentPlaceholder
	}
	return text
}
