package translate

import "strings"

// ContainsJapanese reports whether text has a rune in the kana/CJK symbol
// range (U+3000, U+30FF) or the CJK unified ideograph range (U+4E00, U+9FFF),
// both bounds exclusive.
func ContainsJapanese(text string) bool {
	for _, r := range text {
		if (r > 0x3000 && r < 0x30FF) || (r > 0x4E00 && r < 0x9FFF) {
			return true
		}
	}
	return false
}

// DetectSource returns "ja" for text containing Japanese characters and
// AutoDetect otherwise.
func DetectSource(text string) string {
	if ContainsJapanese(text) {
		return "ja"
	}
	return AutoDetect
}

// ChooseSource prefers an explicit hint over detection.
func ChooseSource(text, hint string) string {
	hint = strings.TrimSpace(hint)
	if hint != "" && !strings.EqualFold(hint, AutoDetect) {
		return hint
	}
	return DetectSource(text)
}
