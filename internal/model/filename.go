package model

import (
	"path/filepath"
	"strings"
)

// ExportFilename names the translated output of original. Legacy containers
// are written in their OOXML successor, so the extension follows format.
func ExportFilename(original string, format Format) string {
	base := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "document" + format.Extension()
	}
	ext := filepath.Ext(base)
	if want := format.Extension(); want != "" && !strings.EqualFold(ext, want) {
		base = strings.TrimSuffix(base, ext) + want
	}
	return "translated_" + base
}

// ContentDisposition builds an attachment header carrying both an ASCII
// fallback name and the RFC 5987 UTF-8 form.
func ContentDisposition(filename string) string {
	fallback := strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			return '_'
		}
		return r
	}, filename)
	return `attachment; filename="` + fallback + `"; filename*=UTF-8''` + PercentEncode(filename)
}

// PercentEncode escapes every byte outside A-Z a-z 0-9 - . _ ~ and '/'.
func PercentEncode(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '.', c == '_', c == '~', c == '/':
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0x0f])
		}
	}
	return b.String()
}
