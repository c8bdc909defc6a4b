package image

import (
	"context"
	"strings"

	"github.com/toricodesthings/text-metrics-service/internal/apperr"
	"github.com/toricodesthings/text-metrics-service/internal/extract"
)

// OCR reads text out of a single picture.
type OCR interface {
	Image(ctx context.Context, data []byte, language string, onProgress func(int)) (string, error)
}

// Extractor handles photos and scans of printed text. Images carry no text
// layer, so every extraction goes through OCR.
type Extractor struct {
	ocr      OCR
	maxBytes int64
}

func New(ocr OCR, maxBytes int64) *Extractor {
	return &Extractor{ocr: ocr, maxBytes: maxBytes}
}

func (e *Extractor) Name() string { return "image" }

func (e *Extractor) MaxFileSize() int64 { return e.maxBytes }

func (e *Extractor) SupportedTypes() []string {
	return []string{"image/jpeg", "image/png", "image/gif", "image/webp", "image/bmp", "image/tiff"}
}

func (e *Extractor) SupportedExtensions() []string {
	return []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tiff", ".tif"}
}

func (e *Extractor) Extract(ctx context.Context, job extract.Job) (extract.Result, error) {
	if err := ctx.Err(); err != nil {
		return extract.Result{}, err
	}
	if e.ocr == nil {
		return extract.Result{}, apperr.New(apperr.KindOCR, e.Name(), "text recognition is not configured")
	}

	text, err := e.ocr.Image(ctx, job.Data, job.Language, job.OnProgress)
	if err != nil {
		return extract.Result{}, err
	}
	if strings.TrimSpace(text) == "" {
		return extract.Result{}, apperr.New(apperr.KindEmptyContent, e.Name(), "no text was recognised in the image")
	}
	return extract.Result{
		Text:     text,
		Method:   "ocr",
		FileType: e.Name(),
		MIMEType: job.MIMEType,
	}, nil
}
