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

const (
	odfTextNS  = "urn:oasis:names:tc:opendocument:xmlns:text:1.0"
	odfTableNS = "urn:oasis:names:tc:opendocument:xmlns:table:1.0"

	invalidODF = "could not read the document; the file may not be a valid OpenDocument file"
)

// ODFExtractor reads OpenDocument text, spreadsheet and presentation files.
type ODFExtractor struct {
	maxBytes int64
}

func NewODF(maxBytes int64) *ODFExtractor { return &ODFExtractor{maxBytes: maxBytes} }

func (e *ODFExtractor) Name() string       { return "document/opendocument" }
func (e *ODFExtractor) MaxFileSize() int64 { return e.maxBytes }
func (e *ODFExtractor) SupportedTypes() []string {
	return []string{
		"application/vnd.oasis.opendocument.text",
		"application/vnd.oasis.opendocument.spreadsheet",
		"application/vnd.oasis.opendocument.presentation",
	}
}
func (e *ODFExtractor) SupportedExtensions() []string { return []string{".odt", ".ods", ".odp"} }

func (e *ODFExtractor) Extract(ctx context.Context, job extract.Job) (extract.Result, error) {
	if err := ctx.Err(); err != nil {
		return extract.Result{}, err
	}

	zr, err := zip.NewReader(bytes.NewReader(job.Data), int64(len(job.Data)))
	if err != nil {
		return extract.Result{}, apperr.Wrap(apperr.KindExtraction, e.Name(), invalidODF, err)
	}
	content, err := readZipFile(zr, "content.xml", defaultMaxZipEntryBytes)
	if err != nil {
		return extract.Result{}, apperr.Wrap(apperr.KindExtraction, e.Name(), invalidODF, err)
	}
	text, err := odfText(content)
	if err != nil {
		return extract.Result{}, apperr.Wrap(apperr.KindExtraction, e.Name(), invalidODF, err)
	}

	return extract.Result{
		Text:     text,
		Method:   "native",
		FileType: e.Name(),
		MIMEType: job.MIMEType,
		Metadata: parseODFMetadata(zr),
	}, nil
}

// odfText returns paragraphs and headings separated by blank lines. Table
// rows become one line each, with the cells tab separated.
func odfText(b []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(b))

	var (
		blocks []string
		para   strings.Builder
		inPara int
		cell   []string
		row    []string
		inCell bool
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
			switch {
			case t.Name.Space == odfTextNS && (t.Name.Local == "p" || t.Name.Local == "h"):
				if inPara == 0 {
					para.Reset()
				}
				inPara++
			case t.Name.Space == odfTextNS && t.Name.Local == "s":
				para.WriteByte(' ')
			case t.Name.Space == odfTextNS && t.Name.Local == "tab":
				para.WriteByte('\t')
			case t.Name.Space == odfTextNS && t.Name.Local == "line-break":
				para.WriteByte('\n')
			case t.Name.Space == odfTableNS && t.Name.Local == "table-row":
				row = row[:0]
			case t.Name.Space == odfTableNS && t.Name.Local == "table-cell":
				inCell = true
				cell = cell[:0]
			}
		case xml.EndElement:
			switch {
			case t.Name.Space == odfTextNS && (t.Name.Local == "p" || t.Name.Local == "h"):
				inPara--
				if inPara > 0 {
					continue
				}
				s := strings.TrimSpace(para.String())
				if s == "" {
					continue
				}
				if inCell {
					cell = append(cell, s)
				} else {
					blocks = append(blocks, s)
				}
			case t.Name.Space == odfTableNS && t.Name.Local == "table-cell":
				inCell = false
				if len(cell) > 0 {
					row = append(row, strings.Join(cell, " "))
				}
			case t.Name.Space == odfTableNS && t.Name.Local == "table-row":
				if len(row) > 0 {
					blocks = append(blocks, strings.Join(row, "\t"))
				}
			}
		case xml.CharData:
			if inPara > 0 {
				para.Write(t)
			}
		}
	}
	return strings.TrimSpace(strings.Join(blocks, "\n\n")), nil
}

var odfMetaKeys = map[string]string{
	"title":           "title",
	"initial-creator": "author",
	"creation-date":   "created",
	"date":            "modified",
	"subject":         "subject",
	"description":     "description",
}

// parseODFMetadata reads the Dublin Core and meta fields from meta.xml.
func parseODFMetadata(zr *zip.Reader) map[string]string {
	b, err := readZipFile(zr, "meta.xml", defaultMaxZipMetadataBytes)
	if err != nil {
		return nil
	}
	meta := map[string]string{}
	dec := xml.NewDecoder(bytes.NewReader(b))
	var tag string
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			tag = t.Name.Local
		case xml.CharData:
			if key, ok := odfMetaKeys[tag]; ok {
				if val := strings.TrimSpace(string(t)); val != "" {
					meta[key] = val
				}
			}
		case xml.EndElement:
			tag = ""
		}
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}
