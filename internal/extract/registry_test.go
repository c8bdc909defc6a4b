package extract

import (
	"context"
	"testing"

	"github.com/toricodesthings/text-metrics-service/internal/apperr"
)

type stubExtractor struct {
	name string
	mts  []string
	exts []string
	max  int64
	text string
	err  error
	got  Job
}

func (s *stubExtractor) Extract(ctx context.Context, job Job) (Result, error) {
	s.got = job
	if s.err != nil {
		return Result{}, s.err
	}
	return Result{Text: s.text, Method: "native"}, nil
}
func (s *stubExtractor) SupportedTypes() []string      { return s.mts }
func (s *stubExtractor) SupportedExtensions() []string { return s.exts }
func (s *stubExtractor) Name() string                  { return s.name }
func (s *stubExtractor) MaxFileSize() int64            { return s.max }

func TestResolvePrefersExtension(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubExtractor{name: "text", mts: []string{"text/plain"}, exts: []string{".txt"}})
	r.Register(&stubExtractor{name: "subtitle", exts: []string{".srt"}})

	e, err := r.Resolve("text/plain", ".srt")
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if e.Name() != "subtitle" {
		t.Fatalf("expected subtitle extractor, got %q", e.Name())
	}
}

func TestResolveFallbacks(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubExtractor{name: "text", mts: []string{"text/plain"}})
	r.Register(&stubExtractor{name: "pdf", mts: []string{"application/pdf"}})

	cases := [][2]string{
		{"application/pdf", "pdf"},
		{"Application/PDF; version=1", "pdf"},
		{"text/csv", "text"},
		{"text/plain; charset=utf-8", "text"},
	}
	for _, c := range cases {
		e, err := r.Resolve(c[0], "")
		if err != nil {
			t.Fatalf("resolve %q: %v", c[0], err)
		}
		if e.Name() != c[1] {
			t.Fatalf("resolve %q: expected %q, got %q", c[0], c[1], e.Name())
		}
	}

	_, err := r.Resolve("image/png", ".png")
	if !apperr.Is(err, apperr.KindInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
