//go:build !linux

package fontcheck

import (
	"os"
	"path/filepath"
	"runtime"
)

var preferredFonts = []string{"arial.ttf", "arialuni", "tahoma.ttf", "segoeui.ttf", "verdana.ttf"}

func findUnicodeFont() string {
	var dirs []string
	switch runtime.GOOS {
	case "windows":
		root := os.Getenv("WINDIR")
		if root == "" {
			root = `C:\Windows`
		}
		dirs = []string{filepath.Join(root, "Fonts")}
	case "darwin":
		dirs = []string{"/Library/Fonts", "/System/Library/Fonts/Supplemental"}
		if home, err := os.UserHomeDir(); err == nil {
			dirs = append(dirs, filepath.Join(home, "Library", "Fonts"))
		}
	default:
		dirs = []string{"/usr/local/share/fonts", "/usr/share/fonts"}
	}
	return searchDirs(dirs, preferredFonts)
}
