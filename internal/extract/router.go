package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/toricodesthings/text-metrics-service/internal/apperr"
)

// LanguageDetector guesses the language code of extracted text.
type LanguageDetector interface {
	Detect(text string) string
}

type Router struct {
	registry *Registry
	log      *zap.Logger
	detector LanguageDetector
}

func NewRouter(registry *Registry, log *zap.Logger, detector LanguageDetector) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{registry: registry, log: log, detector: detector}
}

// Options carries per-call extraction settings.
type Options struct {
	Language   string
	OnProgress ProgressFunc
}

// Extract resolves an extractor for the upload and returns its trimmed,
// non-empty text.
func (r *Router) Extract(ctx context.Context, up Upload, opts Options) (Result, error) {
	start := time.Now()
	if len(up.Data) == 0 {
		return Result{}, apperr.New(apperr.KindInvalidInput, "extract", "file is empty")
	}

	mt := DetectMIME(up.Data, up.MIMEType)
	ext := strings.ToLower(filepath.Ext(up.FileName))
	extractor, err := r.registry.Resolve(mt, ext)
	if err != nil {
		return Result{MIMEType: mt, FileType: "unknown"}, err
	}

	if max := extractor.MaxFileSize(); max > 0 && int64(len(up.Data)) > max {
		return Result{MIMEType: mt, FileType: extractor.Name()}, apperr.New(apperr.KindInvalidInput, "extract",
			fmt.Sprintf("file exceeds %s limit (%dMB)", extractor.Name(), max/(1<<20)))
	}

	job := Job{
		Data:       up.Data,
		FileName:   up.FileName,
		MIMEType:   mt,
		Language:   opts.Language,
		OnProgress: opts.OnProgress,
	}

	res, err := extractor.Extract(ctx, job)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			err = apperr.Wrap(apperr.KindExtraction, extractor.Name(), "extraction failed", err)
		}
		r.log.Info("extraction failed",
			zap.String("fileType", extractor.Name()),
			zap.Int("bytes", len(up.Data)),
			zap.Error(err),
		)
		res.FileType, res.MIMEType = extractor.Name(), mt
		return res, err
	}

	res.Text = strings.TrimSpace(res.Text)
	if res.FileType == "" {
		res.FileType = extractor.Name()
	}
	if res.MIMEType == "" {
		res.MIMEType = mt
	}
	if res.Text == "" {
		return res, apperr.New(apperr.KindEmptyContent, extractor.Name(), "no extractable text found in this file")
	}
	if r.detector != nil && res.Language == "" {
		res.Language = r.detector.Detect(res.Text)
	}

	r.log.Info("extraction complete",
		zap.String("fileType", res.FileType),
		zap.String("method", res.Method),
		zap.Int("bytes", len(up.Data)),
		zap.Int("chars", len(res.Text)),
		zap.Duration("took", time.Since(start)),
	)
	return res, nil
}
