package plaintext

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/toricodesthings/text-metrics-service/internal/apperr"
	"github.com/toricodesthings/text-metrics-service/internal/extract"
)

// Extractor handles plain text, markdown and subtitle files.
type Extractor struct {
	maxBytes int64
}

func New(maxBytes int64) *Extractor {
	return &Extractor{maxBytes: maxBytes}
}

func (e *Extractor) Name() string { return "text" }

func (e *Extractor) MaxFileSize() int64 { return e.maxBytes }

func (e *Extractor) SupportedTypes() []string {
	return []string{"text/plain", "text/markdown", "text/x-markdown", "application/x-subrip"}
}

func (e *Extractor) SupportedExtensions() []string {
	return []string{".txt", ".text", ".md", ".markdown", ".srt"}
}

func (e *Extractor) Extract(ctx context.Context, job extract.Job) (extract.Result, error) {
	if err := ctx.Err(); err != nil {
		return extract.Result{}, err
	}

	text, err := Decode(job.Data)
	if err != nil {
		return extract.Result{}, apperr.Wrap(apperr.KindRead, e.Name(), "could not decode file as text", err)
	}

	fileType := "text/plain"
	switch strings.ToLower(filepath.Ext(job.FileName)) {
	case ".md", ".markdown":
		fileType = "text/markdown"
	case ".srt":
		fileType = "text/subrip"
	}

	return extract.Result{
		Text:     strings.TrimSpace(text),
		Method:   "native",
		FileType: fileType,
		MIMEType: job.MIMEType,
	}, nil
}

// Decode converts b to a string. A UTF-8 or UTF-16 byte order mark selects
// the encoding. Valid UTF-8 is returned as is; anything else is decoded with
// the legacy charset sniffed from the content, windows-1252 by default.
func Decode(b []byte) (string, error) {
	if hasBOM(b) {
		out, _, err := transform.Bytes(unicode.BOMOverride(encoding.Nop.NewDecoder()), b)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
	if utf8.Valid(b) {
		return string(b), nil
	}

	enc, _, _ := charset.DetermineEncoding(b, "text/plain")
	out, _, err := transform.Bytes(enc.NewDecoder(), b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func hasBOM(b []byte) bool {
	return bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}) ||
		bytes.HasPrefix(b, []byte{0xFF, 0xFE}) ||
		bytes.HasPrefix(b, []byte{0xFE, 0xFF})
}
