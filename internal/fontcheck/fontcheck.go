// Package fontcheck locates a system TrueType font able to render Vietnamese
// and Japanese text. The PDF renderer embeds it as a fallback family when the
// bundled font cannot be used.
package fontcheck

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// FindUnicodeFont returns the path of a TrueType font with Vietnamese
// coverage, or "" when none is installed. Collections (.ttc) and OpenType
// CFF fonts are ignored since the PDF writer only embeds plain TrueType.
func FindUnicodeFont() string {
	path := findUnicodeFont()
	logFontStatus(path)
	return path
}

// IsTrueType reports whether the file at path starts with a TrueType
// signature.
func IsTrueType(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	head := make([]byte, 4)
	if _, err := f.Read(head); err != nil {
		return false
	}
	return bytes.Equal(head, []byte{0x00, 0x01, 0x00, 0x00}) || string(head) == "true"
}

// searchDirs returns the first TrueType file under dirs whose base name
// contains one of the keywords, trying keywords in order.
func searchDirs(dirs, keywords []string) string {
	var candidates []string
	for _, dir := range dirs {
		filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".ttf") {
				candidates = append(candidates, path)
			}
			return nil
		})
	}
	for _, kw := range keywords {
		for _, path := range candidates {
			if strings.Contains(strings.ToLower(filepath.Base(path)), kw) && IsTrueType(path) {
				return path
			}
		}
	}
	return ""
}

// logFontStatus logs the result of font detection.
func logFontStatus(path string) {
	if path != "" {
		log.Printf("[Fonts] system Unicode font: %s", path)
	} else {
		log.Println("[Fonts] no system Unicode TrueType font found, using bundled font only")
	}
}
