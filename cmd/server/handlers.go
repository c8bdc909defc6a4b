package main

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/toricodesthings/text-metrics-service/internal/apperr"
	"github.com/toricodesthings/text-metrics-service/internal/extract"
	"github.com/toricodesthings/text-metrics-service/internal/service"
)

type analyzeRequest struct {
	Text            string `json:"text"`
	FilterStopWords bool   `json:"filterStopWords"`
	Frequency       *bool  `json:"frequency,omitempty"`
}

type fetchRequest struct {
	URL             string `json:"url"`
	FilterStopWords bool   `json:"filterStopWords"`
}

type analysisResponse struct {
	Success bool `json:"success"`
	service.Report
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, active, _ := s.metrics.get()
	status := "healthy"
	code := http.StatusOK

	ratio := s.cfg.HealthDegradeRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 0.9
	}

	if s.cfg.MaxConcurrentRequests > 0 && active >= int64(float64(s.cfg.MaxConcurrentRequests)*ratio) {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":  status,
		"active":  active,
		"version": version,
	})
}

func (s *server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	total, active, failed := s.metrics.get()

	writeJSON(w, http.StatusOK, map[string]any{
		"activeRequests": active,
		"totalRequests":  total,
		"failedRequests": failed,
		"goroutines":     runtime.NumGoroutine(),
		"memAllocMB":     m.Alloc / (1 << 20),
		"memSysMB":       m.Sys / (1 << 20),
	})
}

func (s *server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[analyzeRequest](r, s.cfg.MaxJSONBodyBytes)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "bad_request", sanitizeError(err))
		return
	}

	frequency := true
	if req.Frequency != nil {
		frequency = *req.Frequency
	}
	report := s.svc.AnalyzeText(req.Text, service.Options{
		FilterStopWords: req.FilterStopWords,
		Frequency:       frequency,
	})
	writeJSON(w, http.StatusOK, analysisResponse{Success: true, Report: report})
}

func (s *server) handleExtract(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r, s.log)

	// Multipart framing adds a little on top of the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+(1<<20))
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErr(w, http.StatusRequestEntityTooLarge, string(apperr.KindInvalidInput), "File is too large")
			return
		}
		writeErr(w, http.StatusBadRequest, string(apperr.KindInvalidInput), "A file is required in the \"file\" field")
		return
	}
	defer file.Close()
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	up, err := extract.ReadUpload(file, header.Filename, header.Header.Get("Content-Type"), s.cfg.MaxUploadBytes)
	if err != nil {
		s.writeAppErr(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.ExtractTimeout)
	defer cancel()

	report, err := s.svc.AnalyzeFile(ctx, up, service.Options{
		FilterStopWords: formBool(r, "filterStopWords"),
		Language:        strings.TrimSpace(r.FormValue("language")),
		OnProgress: func(p int) {
			log.Debug("ocr progress", zap.String("file", sanitizeLogString(up.FileName)), zap.Int("percent", p))
		},
	})
	if err != nil {
		log.Info("extract failed",
			zap.String("file", sanitizeLogString(up.FileName)),
			zap.String("kind", string(apperr.KindOf(err))),
			zap.Error(err),
		)
		s.writeAppErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analysisResponse{Success: true, Report: report})
}

func (s *server) handleFetch(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[fetchRequest](r, s.cfg.MaxJSONBodyBytes)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "bad_request", sanitizeError(err))
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeErr(w, http.StatusBadRequest, string(apperr.KindInvalidURL), "url required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.FetchTimeout)
	defer cancel()

	report, err := s.svc.AnalyzeURL(ctx, req.URL, service.Options{FilterStopWords: req.FilterStopWords})
	if err != nil {
		s.writeAppErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analysisResponse{Success: true, Report: report})
}

// writeAppErr renders a pipeline failure with the message a user can act on.
func (s *server) writeAppErr(w http.ResponseWriter, err error) {
	s.metrics.incFailed()
	if errors.Is(err, context.DeadlineExceeded) && apperr.KindOf(err) == apperr.KindInternal {
		err = apperr.Wrap(apperr.KindTimeout, "request", "request timed out", err)
	}
	writeErr(w, apperr.HTTPStatus(err), string(apperr.KindOf(err)), apperr.UserMessage(err))
}

func formBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(r.FormValue(key)))
	return b
}
