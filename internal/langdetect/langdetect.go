// Package langdetect guesses the language of extracted text, limited to the
// languages the OCR engines can be initialised with.
package langdetect

import (
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
)

// minRunes below which detection is not attempted.
const minRunes = 20

var ocrCodes = map[lingua.Language]string{
	lingua.English:    "eng",
	lingua.Spanish:    "spa",
	lingua.French:     "fra",
	lingua.German:     "deu",
	lingua.Italian:    "ita",
	lingua.Portuguese: "por",
	lingua.Russian:    "rus",
	lingua.Chinese:    "chi_sim",
	lingua.Japanese:   "jpn",
	lingua.Korean:     "kor",
}

type Detector struct {
	once     sync.Once
	detector lingua.LanguageDetector
}

// New returns a detector; language models load on first use.
func New() *Detector {
	return &Detector{}
}

func (d *Detector) build() {
	langs := make([]lingua.Language, 0, len(ocrCodes))
	for l := range ocrCodes {
		langs = append(langs, l)
	}
	d.detector = lingua.NewLanguageDetectorBuilder().
		FromLanguages(langs...).
		WithMinimumRelativeDistance(0.1).
		Build()
}

// Detect returns the OCR language code for text, or "" when the text is too
// short or no language is a confident match.
func (d *Detector) Detect(text string) string {
	text = strings.TrimSpace(text)
	if len([]rune(text)) < minRunes {
		return ""
	}
	d.once.Do(d.build)

	lang, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return ""
	}
	return ocrCodes[lang]
}
