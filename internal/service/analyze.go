package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/toricodesthings/text-metrics-service/internal/apperr"
	"github.com/toricodesthings/text-metrics-service/internal/extract"
	"github.com/toricodesthings/text-metrics-service/internal/textstats"
)

const (
	SourceText = "text"
	SourceFile = "file"
	SourceURL  = "url"
)

// Report is what callers render: the metrics plus where the text came from.
// Metrics is nil when there was nothing to count.
type Report struct {
	Source    string             `json:"source"`
	Text      string             `json:"text,omitempty"`
	Method    string             `json:"method,omitempty"`
	FileType  string             `json:"fileType,omitempty"`
	MIMEType  string             `json:"mimeType,omitempty"`
	Language  string             `json:"language,omitempty"`
	Pages     int                `json:"pages,omitempty"`
	Metadata  map[string]string  `json:"metadata,omitempty"`
	URL       string             `json:"url,omitempty"`
	Title     string             `json:"title,omitempty"`
	Transport string             `json:"transport,omitempty"`
	Metrics   *textstats.Metrics `json:"metrics"`
}

type Options struct {
	FilterStopWords bool
	// Frequency includes the repeated-words analysis. Text and files always
	// get one; direct input may skip it.
	Frequency bool
	// Language is the OCR language for scanned PDFs.
	Language   string
	OnProgress extract.ProgressFunc
}

// AnalyzeText counts direct input. Empty input is not an error; the report
// simply has no metrics.
func (s *Service) AnalyzeText(text string, opts Options) Report {
	return Report{
		Source:  SourceText,
		Metrics: textstats.Compute(text, opts.FilterStopWords, opts.Frequency),
	}
}

// AnalyzeFile extracts the text of an upload and counts it.
func (s *Service) AnalyzeFile(ctx context.Context, up extract.Upload, opts Options) (Report, error) {
	language := opts.Language
	if language == "" {
		language = s.cfg.OCRLanguage
	}
	res, err := s.router.Extract(ctx, up, extract.Options{Language: language, OnProgress: opts.OnProgress})
	if err != nil {
		return Report{Source: SourceFile, FileType: res.FileType, MIMEType: res.MIMEType}, err
	}
	return Report{
		Source:   SourceFile,
		Text:     res.Text,
		Method:   res.Method,
		FileType: res.FileType,
		MIMEType: res.MIMEType,
		Language: res.Language,
		Pages:    res.Pages,
		Metadata: res.Metadata,
		Metrics:  textstats.Compute(res.Text, opts.FilterStopWords, true),
	}, nil
}

// AnalyzeURL fetches a page through the transport chain and counts its
// readable text.
func (s *Service) AnalyzeURL(ctx context.Context, rawURL string, opts Options) (Report, error) {
	page, err := s.fetcher.FetchPageText(ctx, rawURL)
	if err != nil {
		s.log.Info("url analysis failed",
			zap.String("kind", string(apperr.KindOf(err))),
			zap.String("cause", string(apperr.CauseKind(err))),
			zap.Error(err),
		)
		return Report{Source: SourceURL, URL: rawURL}, err
	}
	return Report{
		Source:    SourceURL,
		Text:      page.Text,
		URL:       page.URL,
		Title:     page.Meta.Title,
		Transport: page.Transport,
		Metrics:   textstats.Compute(page.Text, opts.FilterStopWords, true),
	}, nil
}
