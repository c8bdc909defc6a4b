package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/toricodesthings/text-metrics-service/internal/apperr"
	"github.com/toricodesthings/text-metrics-service/internal/extract"
)

// DefaultMinTextLayerChars is the shortest text layer accepted without OCR.
const DefaultMinTextLayerChars = 50

const (
	MethodTextLayer = "text-layer"
	MethodOCR       = "ocr"
)

// OCR recognises the text of a whole PDF. It is satisfied by *ocr.Controller.
type OCR interface {
	Extract(ctx context.Context, pdf []byte, language string, onProgress func(int)) (string, error)
}

type Extractor struct {
	ocr      OCR
	maxBytes int64
	minChars int
	log      *zap.Logger

	textLayer func(data []byte) (string, int, error)
}

// New returns a PDF extractor. ocr may be nil, in which case scanned PDFs
// yield only whatever text layer they have.
func New(ocr OCR, maxBytes int64, minChars int, log *zap.Logger) *Extractor {
	if minChars <= 0 {
		minChars = DefaultMinTextLayerChars
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{ocr: ocr, maxBytes: maxBytes, minChars: minChars, log: log, textLayer: readTextLayer}
}

func (e *Extractor) Name() string { return "document/pdf" }

func (e *Extractor) MaxFileSize() int64 { return e.maxBytes }

func (e *Extractor) SupportedTypes() []string {
	return []string{"application/pdf"}
}

func (e *Extractor) SupportedExtensions() []string {
	return []string{".pdf"}
}

func (e *Extractor) Extract(ctx context.Context, job extract.Job) (extract.Result, error) {
	if err := ctx.Err(); err != nil {
		return extract.Result{}, err
	}

	text, pages, err := e.textLayer(job.Data)
	if err == nil && utf16Len(text) >= e.minChars {
		job.Progress(100)
		return e.result(job, text, MethodTextLayer, pages), nil
	}

	if err != nil {
		e.log.Info("pdf text layer unreadable, falling back to ocr", zap.String("file", job.FileName), zap.Error(err))
	} else {
		e.log.Info("pdf text layer too short, falling back to ocr",
			zap.String("file", job.FileName),
			zap.Int("chars", utf16Len(text)),
			zap.Int("min", e.minChars),
		)
	}

	if e.ocr == nil {
		if err == nil && text != "" {
			job.Progress(100)
			return e.result(job, text, MethodTextLayer, pages), nil
		}
		return extract.Result{}, apperr.New(apperr.KindEmptyContent, e.Name(), "no extractable text")
	}

	ocrText, ocrErr := e.ocr.Extract(ctx, job.Data, job.Language, job.OnProgress)
	if ocrErr != nil {
		return extract.Result{}, ocrErr
	}
	ocrText = strings.TrimSpace(ocrText)
	if ocrText == "" {
		return extract.Result{}, apperr.New(apperr.KindEmptyContent, e.Name(), "no extractable text")
	}
	return e.result(job, ocrText, MethodOCR, pages), nil
}

func (e *Extractor) result(job extract.Job, text, method string, pages int) extract.Result {
	return extract.Result{
		Text:     text,
		Method:   method,
		FileType: e.Name(),
		MIMEType: job.MIMEType,
		Language: job.Language,
		Pages:    pages,
	}
}

// readTextLayer returns the trimmed text layer and the page count. Each row's
// glyphs form one run; runs on a page are joined by a space and pages by a
// newline. The parser panics on some malformed files, which is reported as an
// error.
func readTextLayer(data []byte) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, pages, err = "", 0, fmt.Errorf("pdf parser panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}

	pages = reader.NumPage()
	out := make([]string, 0, pages)
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return "", pages, fmt.Errorf("page %d: %w", i, err)
		}
		runs := make([]string, 0, len(rows))
		for _, row := range rows {
			var run strings.Builder
			for _, glyph := range row.Content {
				run.WriteString(glyph.S)
			}
			if s := run.String(); strings.TrimSpace(s) != "" {
				runs = append(runs, s)
			}
		}
		out = append(out, strings.Join(runs, " "))
	}
	return strings.TrimSpace(strings.Join(out, "\n")), pages, nil
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}
