package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/toricodesthings/text-metrics-service/internal/apperr"
	"github.com/toricodesthings/text-metrics-service/internal/config"
	"github.com/toricodesthings/text-metrics-service/internal/extract"
)

func testService(t *testing.T, mutate func(*config.Config)) *Service {
	t.Helper()
	cfg := config.Load()
	cfg.AllowPrivateURLs = true
	cfg.RelayURL = ""
	cfg.ProxyProvidersFile = ""
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestAnalyzeText(t *testing.T) {
	s := testService(t, nil)

	r := s.AnalyzeText("the cat and the hat", Options{FilterStopWords: true, Frequency: true})
	if r.Metrics == nil || r.Metrics.WordCount != 5 {
		t.Fatalf("unexpected metrics: %+v", r.Metrics)
	}
	if r.Metrics.RepeatedWordsAnalysis == nil {
		t.Fatalf("expected frequency analysis")
	}

	if r := s.AnalyzeText("   ", Options{}); r.Metrics != nil {
		t.Fatalf("expected no metrics for blank input, got %+v", r.Metrics)
	}
}

func TestAnalyzeFile(t *testing.T) {
	s := testService(t, nil)

	up := extract.Upload{FileName: "notes.md", Data: []byte("# Title\n\nSome words here, some words there.")}
	r, err := s.AnalyzeFile(context.Background(), up, Options{})
	if err != nil {
		t.Fatalf("AnalyzeFile: %v", err)
	}
	if r.Source != SourceFile || r.FileType != "text/markdown" {
		t.Fatalf("unexpected report: %+v", r)
	}
	if r.Metrics == nil || r.Metrics.WordCount != 8 {
		t.Fatalf("unexpected metrics: %+v", r.Metrics)
	}
}

func TestAnalyzeFileUnsupported(t *testing.T) {
	s := testService(t, nil)
	up := extract.Upload{FileName: "song.mp3", MIMEType: "audio/mpeg", Data: []byte{0xff, 0xfb, 0x90}}
	_, err := s.AnalyzeFile(context.Background(), up, Options{})
	if apperr.KindOf(err) != apperr.KindInvalidInput {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestAnalyzeURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<!DOCTYPE html><html><head><title>Fox facts</title></head>
<body><nav>Home | About</nav><main><p>The quick brown fox jumps over the lazy dog.</p></main></body></html>`))
	}))
	defer srv.Close()

	s := testService(t, nil)
	r, err := s.AnalyzeURL(context.Background(), srv.URL, Options{})
	if err != nil {
		t.Fatalf("AnalyzeURL: %v", err)
	}
	if r.Transport != "direct" {
		t.Fatalf("expected direct transport, got %q", r.Transport)
	}
	if r.Metrics == nil || r.Metrics.WordCount != 9 {
		t.Fatalf("unexpected metrics for %q: %+v", r.Text, r.Metrics)
	}
}

func TestDirectFetchRefusesPrivateAddressAfterResolution(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<p>internal</p>"))
	}))
	defer srv.Close()

	s := testService(t, func(c *config.Config) { c.AllowPrivateURLs = false })
	if _, err := s.Direct().Fetch(context.Background(), srv.URL); apperr.KindOf(err) != apperr.KindInvalidURL {
		t.Fatalf("expected invalid url, got %v", err)
	}

	open := testService(t, nil)
	if _, err := open.Direct().Fetch(context.Background(), srv.URL); err != nil {
		t.Fatalf("expected private fetch to be allowed, got %v", err)
	}
}

func TestAnalyzeURLRejectsBadScheme(t *testing.T) {
	s := testService(t, nil)
	_, err := s.AnalyzeURL(context.Background(), "ftp://example.com/file", Options{})
	if apperr.KindOf(err) != apperr.KindInvalidURL {
		t.Fatalf("expected invalid url, got %v", err)
	}
}

func TestNewLoadsProviderFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "providers.yaml")
	body := "providers:\n  - name: mirror\n    url: https://mirror.example/get?u={url}\n    envelope: raw\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	testService(t, func(c *config.Config) { c.ProxyProvidersFile = path })

	cfg := config.Load()
	cfg.ProxyProvidersFile = filepath.Join(dir, "missing.yaml")
	if _, err := New(cfg, nil); err == nil {
		t.Fatalf("expected error for missing provider file")
	}
}

func TestNewRejectsUnknownEngine(t *testing.T) {
	cfg := config.Load()
	cfg.OCREngine = "abbyy"
	if _, err := New(cfg, nil); err == nil {
		t.Fatalf("expected error for unknown OCR engine")
	}
}

func TestRegistryCoversFormats(t *testing.T) {
	s := testService(t, nil)
	want := map[string]bool{".pdf": true, ".docx": true, ".xlsx": true, ".txt": true, ".md": true, ".srt": true, ".html": true, ".rtf": true,
		".png": true, ".jpg": true, ".csv": true, ".epub": true, ".odt": true, ".pptx": true, ".ods": true, ".tex": true}
	for _, ext := range s.Extensions() {
		delete(want, ext)
	}
	if len(want) != 0 {
		t.Fatalf("missing extensions: %v", want)
	}
}
