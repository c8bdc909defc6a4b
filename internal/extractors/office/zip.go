package office

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

const (
	defaultMaxZipEntryBytes    = 64 << 20
	defaultMaxZipMetadataBytes = 1 << 20
)

// readZipFile returns the named entry, refusing entries that decompress to
// more than limit bytes.
func readZipFile(zr *zip.Reader, name string, limit int64) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		if f.UncompressedSize64 > uint64(limit) {
			return nil, fmt.Errorf("%s exceeds %d bytes", name, limit)
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
			return nil, fmt.Errorf("%s exceeds %d bytes", name, limit)
		}
		return b, nil
	}
	return nil, fmt.Errorf("missing %s", name)
}

// parseCoreMetadata extracts title, author and dates from docProps/core.xml.
func parseCoreMetadata(zr *zip.Reader) map[string]string {
	b, err := readZipFile(zr, "docProps/core.xml", defaultMaxZipMetadataBytes)
	if err != nil {
		return nil
	}

	keys := map[string]string{
		"title":          "title",
		"creator":        "author",
		"created":        "created",
		"modified":       "modified",
		"subject":        "subject",
		"lastModifiedBy": "lastModifiedBy",
	}

	meta := map[string]string{}
	dec := xml.NewDecoder(strings.NewReader(string(b)))
	var currentTag string
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			currentTag = t.Name.Local
		case xml.CharData:
			if key, ok := keys[currentTag]; ok {
				if val := strings.TrimSpace(string(t)); val != "" {
					meta[key] = val
				}
			}
		case xml.EndElement:
			currentTag = ""
		}
	}

	if len(meta) == 0 {
		return nil
	}
	return meta
}
