package ebook

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/toricodesthings/text-metrics-service/internal/apperr"
	"github.com/toricodesthings/text-metrics-service/internal/extract"
)

const containerXML = `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
<rootfiles><rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/></rootfiles>
</container>`

const contentOPF = `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" xmlns:dc="http://purl.org/dc/elements/1.1/">
<metadata><dc:title>Short Tales</dc:title><dc:creator>Ann Author</dc:creator><dc:language>en</dc:language></metadata>
<manifest>
<item id="c2" href="text/two.xhtml" media-type="application/xhtml+xml"/>
<item id="c1" href="text/one.xhtml" media-type="application/xhtml+xml"/>
</manifest>
<spine><itemref idref="c1"/><itemref idref="c2"/></spine>
</package>`

func buildEPUB(t *testing.T, entries [][2]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e[0])
		if err != nil {
			t.Fatalf("create entry: %v", err)
		}
		if _, err := w.Write([]byte(e[1])); err != nil {
			t.Fatalf("write entry: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestEPUBFollowsSpine(t *testing.T) {
	data := buildEPUB(t, [][2]string{
		{"META-INF/container.xml", containerXML},
		{"OEBPS/content.opf", contentOPF},
		{"OEBPS/text/two.xhtml", `<html><body><p>Second chapter.</p></body></html>`},
		{"OEBPS/text/one.xhtml", `<html><head><style>p{}</style></head><body><h1>One</h1><p>First chapter.</p></body></html>`},
	})

	res, err := NewEPUB(1<<20).Extract(context.Background(), extract.Job{Data: data, FileName: "tales.epub"})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if want := "One\nFirst chapter.\n\nSecond chapter."; res.Text != want {
		t.Fatalf("unexpected text %q", res.Text)
	}
	if res.Metadata["title"] != "Short Tales" || res.Metadata["author"] != "Ann Author" || res.Metadata["chapters"] != "2" {
		t.Fatalf("unexpected metadata %v", res.Metadata)
	}
}

func TestEPUBWithoutPackageUsesHTMLFiles(t *testing.T) {
	data := buildEPUB(t, [][2]string{
		{"a.html", `<html><body><p>Loose page.</p></body></html>`},
	})
	res, err := NewEPUB(1<<20).Extract(context.Background(), extract.Job{Data: data})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if res.Text != "Loose page." {
		t.Fatalf("unexpected text %q", res.Text)
	}
}

func TestEPUBErrors(t *testing.T) {
	_, err := NewEPUB(1<<20).Extract(context.Background(), extract.Job{Data: []byte("not a zip")})
	if !apperr.Is(err, apperr.KindExtraction) {
		t.Fatalf("expected extraction error, got %v", err)
	}

	data := buildEPUB(t, [][2]string{{"mimetype", "application/epub+zip"}})
	_, err = NewEPUB(1<<20).Extract(context.Background(), extract.Job{Data: data})
	if !apperr.Is(err, apperr.KindEmptyContent) {
		t.Fatalf("expected empty content, got %v", err)
	}
}
