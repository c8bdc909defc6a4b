package office

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/toricodesthings/text-metrics-service/internal/apperr"
	"github.com/toricodesthings/text-metrics-service/internal/extract"
)

const (
	drawingMLNS = "http://schemas.openxmlformats.org/drawingml/2006/main"
	invalidPPTX = "could not read the presentation; the file may not be a valid PowerPoint file"
	slidePrefix = "ppt/slides/slide"
	slideSuffix = ".xml"
)

type PPTXExtractor struct {
	maxBytes int64
}

func NewPPTX(maxBytes int64) *PPTXExtractor {
	return &PPTXExtractor{maxBytes: maxBytes}
}

func (e *PPTXExtractor) Name() string       { return "document/pptx" }
func (e *PPTXExtractor) MaxFileSize() int64 { return e.maxBytes }
func (e *PPTXExtractor) SupportedTypes() []string {
	return []string{"application/vnd.openxmlformats-officedocument.presentationml.presentation"}
}
func (e *PPTXExtractor) SupportedExtensions() []string { return []string{".pptx"} }

// Extract returns the text shown on each slide in slide order. Speaker notes
// are left out.
func (e *PPTXExtractor) Extract(ctx context.Context, job extract.Job) (extract.Result, error) {
	if err := ctx.Err(); err != nil {
		return extract.Result{}, err
	}

	zr, err := zip.NewReader(bytes.NewReader(job.Data), int64(len(job.Data)))
	if err != nil {
		return extract.Result{}, apperr.Wrap(apperr.KindExtraction, e.Name(), invalidPPTX, err)
	}

	slides := slideNames(zr)
	parts := make([]string, 0, len(slides))
	for _, name := range slides {
		b, err := readZipFile(zr, name, defaultMaxZipEntryBytes)
		if err != nil {
			continue
		}
		text, err := pptxParagraphs(b)
		if err != nil {
			return extract.Result{}, apperr.Wrap(apperr.KindExtraction, e.Name(), invalidPPTX, err)
		}
		if text != "" {
			parts = append(parts, text)
		}
	}

	meta := parseCoreMetadata(zr)
	if meta == nil {
		meta = map[string]string{}
	}
	meta["slides"] = strconv.Itoa(len(slides))
	return extract.Result{
		Text:     strings.Join(parts, "\n\n"),
		Method:   "native",
		FileType: e.Name(),
		MIMEType: job.MIMEType,
		Metadata: meta,
	}, nil
}

// slideNames lists ppt/slides/slideN.xml entries ordered by N.
func slideNames(zr *zip.Reader) []string {
	type slide struct {
		name string
		n    int
	}
	var found []slide
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, slidePrefix) || !strings.HasSuffix(f.Name, slideSuffix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(f.Name, slidePrefix), slideSuffix))
		if err != nil {
			continue
		}
		found = append(found, slide{name: f.Name, n: n})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })

	names := make([]string, len(found))
	for i, s := range found {
		names[i] = s.name
	}
	return names
}

// pptxParagraphs joins the runs of each a:p into one line and separates
// paragraphs with newlines.
func pptxParagraphs(b []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(b))
	var (
		paragraphs []string
		cur        strings.Builder
		inText     bool
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
			if t.Name.Space != drawingMLNS {
				continue
			}
			switch t.Name.Local {
			case "p":
				cur.Reset()
			case "t":
				inText = true
			case "br":
				cur.WriteByte('\n')
			}
		case xml.EndElement:
			if t.Name.Space != drawingMLNS {
				continue
			}
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
	return strings.Join(paragraphs, "\n"), nil
}
