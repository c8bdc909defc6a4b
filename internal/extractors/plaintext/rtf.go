package plaintext

import (
	"context"
	"regexp"
	"strings"

	"github.com/toricodesthings/text-metrics-service/internal/apperr"
	"github.com/toricodesthings/text-metrics-service/internal/extract"
	"github.com/toricodesthings/text-metrics-service/internal/htmltext"
)

var (
	rtfGroups  = regexp.MustCompile(`\{\\(?:fonttbl|colortbl|stylesheet|info)(?:[^{}]|\{[^{}]*\})*\}`)
	rtfPar     = regexp.MustCompile(`\\par[d]?\b`)
	rtfTab     = regexp.MustCompile(`\\tab\b`)
	rtfHex     = regexp.MustCompile(`\\'[0-9a-fA-F]{2}`)
	rtfControl = regexp.MustCompile(`\\[a-zA-Z]+-?\d* ?`)
)

// RTFExtractor strips control words from rich text files. It does not
// interpret code pages; escaped non-ASCII bytes are dropped.
type RTFExtractor struct {
	maxBytes int64
}

func NewRTF(maxBytes int64) *RTFExtractor { return &RTFExtractor{maxBytes: maxBytes} }

func (e *RTFExtractor) Name() string                  { return "document/rtf" }
func (e *RTFExtractor) MaxFileSize() int64            { return e.maxBytes }
func (e *RTFExtractor) SupportedTypes() []string      { return []string{"application/rtf", "text/rtf"} }
func (e *RTFExtractor) SupportedExtensions() []string { return []string{".rtf"} }

func (e *RTFExtractor) Extract(ctx context.Context, job extract.Job) (extract.Result, error) {
	if err := ctx.Err(); err != nil {
		return extract.Result{}, err
	}
	s, err := Decode(job.Data)
	if err != nil {
		return extract.Result{}, apperr.Wrap(apperr.KindRead, e.Name(), "could not decode RTF file", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(s), `{\rtf`) {
		return extract.Result{}, apperr.New(apperr.KindExtraction, e.Name(), "file is not a valid RTF document")
	}
	return extract.Result{Text: stripRTF(s), Method: "native", FileType: e.Name(), MIMEType: job.MIMEType}, nil
}

func stripRTF(s string) string {
	s = rtfGroups.ReplaceAllString(s, "")
	s = rtfPar.ReplaceAllString(s, "\n")
	s = rtfTab.ReplaceAllString(s, "\t")
	s = rtfHex.ReplaceAllString(s, "")
	s = rtfControl.ReplaceAllString(s, "")
	s = strings.NewReplacer("{", "", "}", "").Replace(s)
	return htmltext.Normalize(s)
}
