package office

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/toricodesthings/text-metrics-service/internal/apperr"
	"github.com/toricodesthings/text-metrics-service/internal/extract"
)

const invalidDocx = "could not read the document; the file may not be a valid Word document"

var errMissingBody = errors.New("word/document.xml has no body")

type DOCXExtractor struct {
	maxBytes int64
}

func NewDOCX(maxBytes int64) *DOCXExtractor {
	return &DOCXExtractor{maxBytes: maxBytes}
}

func (e *DOCXExtractor) Name() string       { return "document/docx" }
func (e *DOCXExtractor) MaxFileSize() int64 { return e.maxBytes }
func (e *DOCXExtractor) SupportedTypes() []string {
	return []string{"application/vnd.openxmlformats-officedocument.wordprocessingml.document"}
}
func (e *DOCXExtractor) SupportedExtensions() []string { return []string{".docx"} }

func (e *DOCXExtractor) Extract(ctx context.Context, job extract.Job) (extract.Result, error) {
	if err := ctx.Err(); err != nil {
		return extract.Result{}, err
	}

	zr, err := zip.NewReader(bytes.NewReader(job.Data), int64(len(job.Data)))
	if err != nil {
		return extract.Result{}, apperr.Wrap(apperr.KindExtraction, e.Name(), invalidDocx, err)
	}

	body, err := readZipFile(zr, "word/document.xml", defaultMaxZipEntryBytes)
	if err != nil {
		return extract.Result{}, apperr.Wrap(apperr.KindExtraction, e.Name(), invalidDocx, err)
	}

	text, err := docxRawText(body)
	if err != nil {
		return extract.Result{}, apperr.Wrap(apperr.KindExtraction, e.Name(), invalidDocx, err)
	}

	return extract.Result{
		Text:     text,
		Method:   "native",
		FileType: e.Name(),
		MIMEType: job.MIMEType,
		Metadata: parseCoreMetadata(zr),
	}, nil
}

// docxRawText returns the text of every paragraph in document order,
// including those inside tables, separated by blank lines. Tabs and breaks
// inside a paragraph are kept.
func docxRawText(b []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(b))

	var (
		paragraphs []string
		cur        strings.Builder
		inText     bool
		sawBody    bool
	)
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "body":
				sawBody = true
			case "p":
				cur.Reset()
			case "t":
				inText = true
			case "tab":
				cur.WriteByte('\t')
			case "br", "cr":
				cur.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if s := strings.TrimSpace(cur.String()); s != "" {
					paragraphs = append(paragraphs, s)
				}
				cur.Reset()
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		}
	}
	if !sawBody {
		return "", errMissingBody
	}
	return strings.TrimSpace(strings.Join(paragraphs, "\n\n")), nil
}
