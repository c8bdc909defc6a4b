package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/toricodesthings/text-metrics-service/internal/apperr"
)

type fakeRenderer struct {
	doc     *fakeDocument
	openErr error
}

func (r *fakeRenderer) Open(ctx context.Context, pdf []byte) (Document, error) {
	if r.openErr != nil {
		return nil, r.openErr
	}
	return r.doc, nil
}

type fakeDocument struct {
	pages    []string
	failOn   map[int]bool
	closed   bool
	rendered []int
}

func (d *fakeDocument) PageCount() int { return len(d.pages) }

func (d *fakeDocument) RenderPage(ctx context.Context, page int, scale float64) ([]byte, error) {
	d.rendered = append(d.rendered, page)
	if d.failOn[page] {
		return nil, fmt.Errorf("render page %d", page)
	}
	return []byte(d.pages[page-1]), nil
}

func (d *fakeDocument) Close() error {
	d.closed = true
	return nil
}

type fakeEngine struct {
	initErr error
	rec     *fakeRecognizer
	lang    string
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Init(ctx context.Context, language string) (Recognizer, error) {
	e.lang = language
	if e.initErr != nil {
		return nil, e.initErr
	}
	return e.rec, nil
}

// fakeRecognizer echoes the "image" bytes back as text.
type fakeRecognizer struct {
	closed bool
	err    map[string]error
}

func (r *fakeRecognizer) Recognize(ctx context.Context, png []byte, onProgress func(float64)) (string, error) {
	if err := r.err[string(png)]; err != nil {
		return "", err
	}
	for _, f := range []float64{0, 0.5, 0.25, 1} {
		report(onProgress, f)
	}
	return string(png), nil
}

func (r *fakeRecognizer) Close() error {
	r.closed = true
	return nil
}

func TestExtractSkipsFailedPages(t *testing.T) {
	doc := &fakeDocument{
		pages:  []string{"page one", "page two", "page three"},
		failOn: map[int]bool{2: true},
	}
	rec := &fakeRecognizer{}
	c := NewController(&fakeRenderer{doc: doc}, &fakeEngine{rec: rec}, nil)

	text, err := c.Extract(context.Background(), []byte("%PDF"), "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "page one\n\npage three" {
		t.Fatalf("unexpected text: %q", text)
	}
	if !doc.closed || !rec.closed {
		t.Fatalf("expected document and recognizer to be closed")
	}
	if len(doc.rendered) != 3 {
		t.Fatalf("expected every page to be attempted, got %v", doc.rendered)
	}
}

func TestExtractRecognizerErrorIsSkipped(t *testing.T) {
	doc := &fakeDocument{pages: []string{"bad", "good"}}
	rec := &fakeRecognizer{err: map[string]error{"bad": errors.New("boom")}}
	c := NewController(&fakeRenderer{doc: doc}, &fakeEngine{rec: rec}, nil)

	text, err := c.Extract(context.Background(), []byte("%PDF"), "eng", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "good" {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestExtractProgressIsMonotone(t *testing.T) {
	doc := &fakeDocument{pages: []string{"a", "b", "c", "d"}}
	c := NewController(&fakeRenderer{doc: doc}, &fakeEngine{rec: &fakeRecognizer{}}, nil)

	var seen []int
	if _, err := c.Extract(context.Background(), []byte("%PDF"), "", func(p int) { seen = append(seen, p) }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seen) == 0 || seen[len(seen)-1] != 100 {
		t.Fatalf("expected progress to end at 100, got %v", seen)
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] <= seen[i-1] {
			t.Fatalf("progress went backwards or repeated: %v", seen)
		}
	}
	for _, p := range seen[:len(seen)-1] {
		if p > renderBand {
			t.Fatalf("page progress escaped its band: %v", seen)
		}
	}
}

func TestExtractOpenFailure(t *testing.T) {
	c := NewController(&fakeRenderer{openErr: errors.New("not a pdf")}, &fakeEngine{rec: &fakeRecognizer{}}, nil)
	_, err := c.Extract(context.Background(), []byte("junk"), "", nil)
	if apperr.KindOf(err) != apperr.KindOCR {
		t.Fatalf("expected ocr error, got %v", err)
	}
}

func TestExtractInitFailureClosesDocument(t *testing.T) {
	doc := &fakeDocument{pages: []string{"a"}}
	c := NewController(&fakeRenderer{doc: doc}, &fakeEngine{initErr: errors.New("no tessdata")}, nil)
	_, err := c.Extract(context.Background(), []byte("%PDF"), "", nil)
	if apperr.KindOf(err) != apperr.KindOCR {
		t.Fatalf("expected ocr error, got %v", err)
	}
	if !doc.closed {
		t.Fatalf("expected document to be closed after init failure")
	}
}

func TestExtractRejectsUnknownLanguage(t *testing.T) {
	engine := &fakeEngine{rec: &fakeRecognizer{}}
	c := NewController(&fakeRenderer{doc: &fakeDocument{}}, engine, nil)
	_, err := c.Extract(context.Background(), []byte("%PDF"), "klingon", nil)
	if apperr.KindOf(err) != apperr.KindInvalidInput {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if engine.lang != "" {
		t.Fatalf("engine should not be started for an unsupported language")
	}
}

func TestExtractDefaultsLanguage(t *testing.T) {
	engine := &fakeEngine{rec: &fakeRecognizer{}}
	c := NewController(&fakeRenderer{doc: &fakeDocument{pages: []string{"x"}}}, engine, nil)
	if _, err := c.Extract(context.Background(), []byte("%PDF"), "  ", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if engine.lang != DefaultLanguage {
		t.Fatalf("expected %q, got %q", DefaultLanguage, engine.lang)
	}
}

func TestExtractCancelledStopsEarly(t *testing.T) {
	doc := &fakeDocument{pages: []string{"a", "b"}}
	rec := &fakeRecognizer{}
	c := NewController(&fakeRenderer{doc: doc}, &fakeEngine{rec: rec}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	SetConcurrencyLimit(0)
	text, err := c.Extract(ctx, []byte("%PDF"), "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "" || len(doc.rendered) != 0 {
		t.Fatalf("expected no pages after cancellation, got %q %v", text, doc.rendered)
	}
	if !rec.closed {
		t.Fatalf("expected recognizer to be closed")
	}
}

func TestConcurrencyLimitHonoursContext(t *testing.T) {
	SetConcurrencyLimit(1)
	defer SetConcurrencyLimit(0)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = withConcurrencyLimit(context.Background(), func() (int, error) {
			close(started)
			<-release
			return 0, nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := withConcurrencyLimit(ctx, func() (int, error) { return 1, nil })
	close(release)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNormalizeLanguage(t *testing.T) {
	got, err := NormalizeLanguage(" SPA ")
	if err != nil || got != "spa" {
		t.Fatalf("NormalizeLanguage = %q, %v", got, err)
	}
	if _, err := NormalizeLanguage("xx"); err == nil || !strings.Contains(err.Error(), "unsupported OCR language") {
		t.Fatalf("expected unsupported language error, got %v", err)
	}
}

func TestNewSelectsComponents(t *testing.T) {
	c, err := New(Settings{Engine: "mistral", Renderer: "embedded", MistralAPIKey: "k", Scale: 3}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := c.engine.(MistralEngine); !ok {
		t.Fatalf("expected mistral engine, got %T", c.engine)
	}
	if _, ok := c.renderer.(EmbeddedImageRenderer); !ok {
		t.Fatalf("expected embedded renderer, got %T", c.renderer)
	}
	if c.scale != 3 {
		t.Fatalf("expected scale 3, got %v", c.scale)
	}

	c, err = New(Settings{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := c.engine.(TesseractEngine); !ok {
		t.Fatalf("expected tesseract by default, got %T", c.engine)
	}
	if _, ok := c.renderer.(PopplerRenderer); !ok {
		t.Fatalf("expected poppler by default, got %T", c.renderer)
	}

	if _, err := New(Settings{Engine: "easyocr"}, nil); err == nil {
		t.Fatalf("expected unknown engine to be rejected")
	}
	if _, err := New(Settings{Renderer: "mupdf"}, nil); err == nil {
		t.Fatalf("expected unknown renderer to be rejected")
	}
}
