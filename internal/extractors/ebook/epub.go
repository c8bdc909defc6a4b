package ebook

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/toricodesthings/text-metrics-service/internal/apperr"
	"github.com/toricodesthings/text-metrics-service/internal/extract"
	"github.com/toricodesthings/text-metrics-service/internal/htmltext"
)

const (
	maxPackageBytes = 4 << 20
	maxChapterBytes = 16 << 20
)

type EPUBExtractor struct {
	maxBytes int64
}

func NewEPUB(maxBytes int64) *EPUBExtractor { return &EPUBExtractor{maxBytes: maxBytes} }

func (e *EPUBExtractor) Name() string                  { return "document/epub" }
func (e *EPUBExtractor) MaxFileSize() int64            { return e.maxBytes }
func (e *EPUBExtractor) SupportedTypes() []string      { return []string{"application/epub+zip"} }
func (e *EPUBExtractor) SupportedExtensions() []string { return []string{".epub"} }

// Extract reads chapters in spine order and reduces each one like a web
// page. Chapters are separated by a blank line.
func (e *EPUBExtractor) Extract(ctx context.Context, job extract.Job) (extract.Result, error) {
	if err := ctx.Err(); err != nil {
		return extract.Result{}, err
	}

	zr, err := zip.NewReader(bytes.NewReader(job.Data), int64(len(job.Data)))
	if err != nil {
		return extract.Result{}, apperr.Wrap(apperr.KindExtraction, e.Name(), "the file may not be a valid EPUB", err)
	}

	opfPath := findOPFPath(zr)
	if opfPath == "" {
		for _, f := range zr.File {
			if strings.HasSuffix(strings.ToLower(f.Name), ".opf") {
				opfPath = f.Name
				break
			}
		}
	}

	var (
		spine []string
		meta  map[string]string
	)
	if opfPath != "" {
		if b, err := readZipEntry(zr, opfPath, maxPackageBytes); err == nil {
			spine, meta = parseOPF(b, path.Dir(opfPath))
		}
	}

	// Without a usable spine, fall back to every HTML document in archive order.
	if len(spine) == 0 {
		for _, f := range zr.File {
			switch strings.ToLower(path.Ext(f.Name)) {
			case ".xhtml", ".html", ".htm":
				spine = append(spine, f.Name)
			}
		}
	}

	var chapters []string
	for _, item := range spine {
		if err := ctx.Err(); err != nil {
			return extract.Result{}, err
		}
		b, err := readZipEntry(zr, item, maxChapterBytes)
		if err != nil {
			continue
		}
		text, err := htmltext.Reduce(string(b))
		if err != nil {
			continue
		}
		chapters = append(chapters, text)
	}
	if len(chapters) == 0 {
		return extract.Result{}, apperr.New(apperr.KindEmptyContent, e.Name(), "the book has no readable chapters")
	}

	if meta == nil {
		meta = map[string]string{}
	}
	meta["chapters"] = strconv.Itoa(len(chapters))
	return extract.Result{
		Text:     strings.Join(chapters, "\n\n"),
		Method:   "native",
		FileType: e.Name(),
		MIMEType: job.MIMEType,
		Metadata: meta,
	}, nil
}

// findOPFPath returns the rootfile full-path from META-INF/container.xml.
func findOPFPath(zr *zip.Reader) string {
	b, err := readZipEntry(zr, "META-INF/container.xml", maxPackageBytes)
	if err != nil {
		return ""
	}
	dec := xml.NewDecoder(bytes.NewReader(b))
	for {
		tok, err := dec.Token()
		if err != nil {
			return ""
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "rootfile" {
			continue
		}
		for _, a := range se.Attr {
			if a.Name.Local == "full-path" {
				return a.Value
			}
		}
	}
}

var opfMetaKeys = map[string]string{
	"title":       "title",
	"creator":     "author",
	"publisher":   "publisher",
	"language":    "language",
	"description": "description",
	"date":        "date",
}

// parseOPF returns the spine as archive paths, plus the Dublin Core fields
// worth reporting. The first value of a repeated field wins.
func parseOPF(data []byte, opfDir string) ([]string, map[string]string) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	manifest := map[string]string{}
	var order []string
	meta := map[string]string{}
	var currentTag string

	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			currentTag = t.Name.Local
			switch t.Name.Local {
			case "item":
				var id, href string
				for _, a := range t.Attr {
					switch a.Name.Local {
					case "id":
						id = a.Value
					case "href":
						href = a.Value
					}
				}
				if id != "" && href != "" {
					manifest[id] = href
				}
			case "itemref":
				for _, a := range t.Attr {
					if a.Name.Local == "idref" {
						order = append(order, a.Value)
					}
				}
			}
		case xml.CharData:
			key, ok := opfMetaKeys[currentTag]
			if !ok {
				continue
			}
			if val := strings.TrimSpace(string(t)); val != "" {
				if _, seen := meta[key]; !seen {
					meta[key] = val
				}
			}
		case xml.EndElement:
			currentTag = ""
		}
	}

	paths := make([]string, 0, len(order))
	for _, idref := range order {
		href, ok := manifest[idref]
		if !ok {
			continue
		}
		if opfDir != "" && opfDir != "." {
			href = path.Join(opfDir, href)
		}
		paths = append(paths, href)
	}
	if len(meta) == 0 {
		meta = nil
	}
	return paths, meta
}

var errEntryTooLarge = errors.New("entry exceeds uncompressed limit")

func readZipEntry(zr *zip.Reader, name string, limit int64) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		if f.UncompressedSize64 > uint64(limit) {
			return nil, fmt.Errorf("%s: %w", name, errEntryTooLarge)
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		b, err := io.ReadAll(io.LimitReader(rc, limit+1))
		if err != nil {
			return nil, err
		}
		if int64(len(b)) > limit {
			return nil, fmt.Errorf("%s: %w", name, errEntryTooLarge)
		}
		return b, nil
	}
	return nil, fmt.Errorf("not found: %s", name)
}
