package textstats

import (
	"strings"
	"unicode"
	"unicode/utf16"
)

type CountResult struct {
	WordCount                int `json:"wordCount"`
	CharCountExcludingSpaces int `json:"charCountExcludingSpaces"`
	CharCountIncludingSpaces int `json:"charCountIncludingSpaces"`
}

// Count returns nil for empty or whitespace-only text so callers can tell
// "nothing counted" apart from a counted result.
//
// Character counts are UTF-16 code units, so a character outside the BMP
// counts as two.
func Count(text string) *CountResult {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	res := &CountResult{}
	inWord := false
	for _, r := range text {
		n := codeUnits(r)
		res.CharCountIncludingSpaces += n
		if unicode.IsSpace(r) {
			inWord = false
			continue
		}
		res.CharCountExcludingSpaces += n
		if !inWord {
			res.WordCount++
			inWord = true
		}
	}
	return res
}

func codeUnits(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	// invalid UTF-8 decodes to U+FFFD, a single unit
	return 1
}
