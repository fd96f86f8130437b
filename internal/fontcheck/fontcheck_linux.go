//go:build linux

package fontcheck

import (
	"os/exec"
	"strings"
)

// preferredFonts are file name keywords of common fonts with Vietnamese
// coverage, best first.
var preferredFonts = []string{
	"notosans-regular",
	"dejavusans.ttf",
	"liberationsans-regular",
	"freesans",
	"arial",
	"notosans",
	"dejavusans",
}

var fontDirs = []string{
	"/usr/share/fonts",
	"/usr/local/share/fonts",
}

func findUnicodeFont() string {
	if path := findWithFontconfig(); path != "" {
		return path
	}
	return searchDirs(fontDirs, preferredFonts)
}

// findWithFontconfig asks fc-list for regular-weight fonts covering
// Vietnamese and picks the preferred one.
func findWithFontconfig() string {
	fcList, err := exec.LookPath("fc-list")
	if err != nil {
		return ""
	}
	out, err := exec.Command(fcList, ":lang=vi:style=Regular", "file").Output()
	if err != nil {
		return ""
	}

	var files []string
	for _, line := range strings.Split(string(out), "\n") {
		path := strings.TrimSuffix(strings.TrimSpace(line), ":")
		if strings.HasSuffix(strings.ToLower(path), ".ttf") && IsTrueType(path) {
			files = append(files, path)
		}
	}
	for _, kw := range preferredFonts {
		for _, path := range files {
			if strings.Contains(strings.ToLower(path), kw) {
				return path
			}
		}
	}
	if len(files) > 0 {
		return files[0]
	}
	return ""
}
