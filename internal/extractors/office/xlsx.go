package office

import (
	"bytes"
	"context"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/toricodesthings/text-metrics-service/internal/apperr"
	"github.com/toricodesthings/text-metrics-service/internal/extract"
)

type XLSXExtractor struct {
	maxBytes int64
}

func NewXLSX(maxBytes int64) *XLSXExtractor {
	return &XLSXExtractor{maxBytes: maxBytes}
}

func (e *XLSXExtractor) Name() string       { return "document/xlsx" }
func (e *XLSXExtractor) MaxFileSize() int64 { return e.maxBytes }
func (e *XLSXExtractor) SupportedTypes() []string {
	return []string{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"}
}
func (e *XLSXExtractor) SupportedExtensions() []string { return []string{".xlsx"} }

// Extract emits the non-empty cells of every sheet, tab separated, one row
// per line, with a blank line between sheets.
func (e *XLSXExtractor) Extract(ctx context.Context, job extract.Job) (extract.Result, error) {
	if err := ctx.Err(); err != nil {
		return extract.Result{}, err
	}

	f, err := excelize.OpenReader(bytes.NewReader(job.Data))
	if err != nil {
		return extract.Result{}, apperr.Wrap(apperr.KindExtraction, e.Name(), "the file may not be a valid Excel workbook", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	var sections []string
	totalRows := 0
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}

		var lines []string
		for _, row := range rows {
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
		if len(lines) == 0 {
			continue
		}
		totalRows += len(lines)
		sections = append(sections, strings.Join(lines, "\n"))
	}

	return extract.Result{
		Text:     strings.Join(sections, "\n\n"),
		Method:   "native",
		FileType: e.Name(),
		MIMEType: job.MIMEType,
		Metadata: map[string]string{
			"sheets":    strconv.Itoa(len(sheets)),
			"totalRows": strconv.Itoa(totalRows),
		},
	}, nil
}
