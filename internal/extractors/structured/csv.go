package structured

import (
	"context"
	"encoding/csv"
	"errors"
	"strconv"
	"strings"

	"github.com/toricodesthings/text-metrics-service/internal/apperr"
	"github.com/toricodesthings/text-metrics-service/internal/extract"
	"github.com/toricodesthings/text-metrics-service/internal/extractors/plaintext"
)

var errNotTabular = errors.New("no delimiter produced more than one column")

type CSVExtractor struct {
	maxBytes int64
}

func NewCSV(maxBytes int64) *CSVExtractor { return &CSVExtractor{maxBytes: maxBytes} }

func (e *CSVExtractor) Name() string       { return "structured/csv" }
func (e *CSVExtractor) MaxFileSize() int64 { return e.maxBytes }
func (e *CSVExtractor) SupportedTypes() []string {
	return []string{"text/csv", "text/tab-separated-values"}
}
func (e *CSVExtractor) SupportedExtensions() []string { return []string{".csv", ".tsv"} }

// Extract lays cells out the way the spreadsheet extractor does: non-empty
// cells tab separated, one record per line. Input that does not parse as a
// table is counted as plain text.
func (e *CSVExtractor) Extract(ctx context.Context, job extract.Job) (extract.Result, error) {
	if err := ctx.Err(); err != nil {
		return extract.Result{}, err
	}

	raw, err := plaintext.Decode(job.Data)
	if err != nil {
		return extract.Result{}, apperr.Wrap(apperr.KindRead, e.Name(), "could not decode file as text", err)
	}

	recs, delim, err := readRecords(raw)
	if err != nil {
		return extract.Result{Text: strings.TrimSpace(raw), Method: "native", FileType: e.Name(), MIMEType: job.MIMEType}, nil
	}

	return extract.Result{
		Text:     recordsToText(recs),
		Method:   "native",
		FileType: e.Name(),
		MIMEType: job.MIMEType,
		Metadata: map[string]string{
			"rows":      strconv.Itoa(len(recs)),
			"columns":   strconv.Itoa(maxCols(recs)),
			"delimiter": string(delim),
		},
	}, nil
}

func readRecords(s string) ([][]string, rune, error) {
	for _, d := range []rune{',', '\t', ';', '|'} {
		r := csv.NewReader(strings.NewReader(s))
		r.Comma = d
		r.FieldsPerRecord = -1
		r.LazyQuotes = true
		recs, err := r.ReadAll()
		if err == nil && len(recs) > 0 && maxCols(recs) > 1 {
			return recs, d, nil
		}
	}
	return nil, ',', errNotTabular
}

func maxCols(recs [][]string) int {
	m := 0
	for _, row := range recs {
		if len(row) > m {
			m = len(row)
		}
	}
	return m
}

func recordsToText(recs [][]string) string {
	lines := make([]string, 0, len(recs))
	for _, row := range recs {
		cells := make([]string, 0, len(row))
		for _, cell := range row {
			if c := strings.TrimSpace(cell); c != "" {
				cells = append(cells, c)
			}
		}
		if len(cells) > 0 {
			lines = append(lines, strings.Join(cells, "\t"))
		}
	}
	return strings.Join(lines, "\n")
}
