package plaintext

import (
	"context"
	"errors"

	"github.com/toricodesthings/text-metrics-service/internal/apperr"
	"github.com/toricodesthings/text-metrics-service/internal/extract"
	"github.com/toricodesthings/text-metrics-service/internal/htmltext"
)

// HTMLExtractor reduces saved web pages with the same rules used for fetched
// pages.
type HTMLExtractor struct {
	maxBytes int64
}

func NewHTML(maxBytes int64) *HTMLExtractor { return &HTMLExtractor{maxBytes: maxBytes} }

func (e *HTMLExtractor) Name() string       { return "document/html" }
func (e *HTMLExtractor) MaxFileSize() int64 { return e.maxBytes }
func (e *HTMLExtractor) SupportedTypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}
func (e *HTMLExtractor) SupportedExtensions() []string {
	return []string{".html", ".htm", ".xhtml"}
}

func (e *HTMLExtractor) Extract(ctx context.Context, job extract.Job) (extract.Result, error) {
	if err := ctx.Err(); err != nil {
		return extract.Result{}, err
	}
	raw, err := Decode(job.Data)
	if err != nil {
		return extract.Result{}, apperr.Wrap(apperr.KindRead, e.Name(), "could not decode file as text", err)
	}

	text, err := htmltext.Reduce(raw)
	if errors.Is(err, htmltext.ErrNoContent) {
		return extract.Result{}, apperr.New(apperr.KindEmptyContent, e.Name(), "the page has no readable text")
	}
	if err != nil {
		return extract.Result{}, apperr.Wrap(apperr.KindExtraction, e.Name(), "could not parse HTML", err)
	}

	var meta map[string]string
	if m := htmltext.Meta(raw, ""); m.Title != "" {
		meta = map[string]string{"title": m.Title}
	}
	return extract.Result{Text: text, Method: "native", FileType: e.Name(), MIMEType: job.MIMEType, Metadata: meta}, nil
}
