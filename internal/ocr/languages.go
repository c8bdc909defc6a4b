package ocr

import (
	"fmt"
	"strings"

	"github.com/toricodesthings/text-metrics-service/internal/apperr"
)

const DefaultLanguage = "eng"

// Languages are the recognition languages engines may be initialised with.
var Languages = []string{"eng", "spa", "fra", "deu", "ita", "por", "rus", "chi_sim", "jpn", "kor"}

// NormalizeLanguage maps an empty code to the default and rejects codes
// outside Languages.
func NormalizeLanguage(code string) (string, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return DefaultLanguage, nil
	}
	for _, l := range Languages {
		if l == code {
			return code, nil
		}
	}
	return "", apperr.New(apperr.KindInvalidInput, "ocr",
		fmt.Sprintf("unsupported OCR language %q (supported: %s)", code, strings.Join(Languages, ", ")))
}
