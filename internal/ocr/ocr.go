// Package ocr recognises text in PDFs that have no usable text layer and in
// image files. Pages are rasterised one at a time by a Renderer and read by a
// Recognizer.
package ocr

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/toricodesthings/text-metrics-service/internal/apperr"
)

const (
	DefaultScale = 2.0

	// Page progress fills [0,renderBand); the rest is reserved for teardown.
	renderBand = 80
)

// Renderer opens PDFs for rasterisation.
type Renderer interface {
	Open(ctx context.Context, pdf []byte) (Document, error)
}

// Document is an opened PDF. Pages are numbered from 1.
type Document interface {
	PageCount() int
	// RenderPage returns a PNG of the page at scale times its native size.
	RenderPage(ctx context.Context, page int, scale float64) ([]byte, error)
	Close() error
}

// Engine creates recognizers for a language.
type Engine interface {
	Name() string
	Init(ctx context.Context, language string) (Recognizer, error)
}

// Recognizer reads text from one PNG image at a time. onProgress, when not
// nil, receives the fraction of the current image completed.
type Recognizer interface {
	Recognize(ctx context.Context, png []byte, onProgress func(float64)) (string, error)
	Close() error
}

type Controller struct {
	renderer    Renderer
	engine      Engine
	log         *zap.Logger
	scale       float64
	pageTimeout time.Duration
}

type Option func(*Controller)

func WithScale(scale float64) Option {
	return func(c *Controller) {
		if scale > 0 {
			c.scale = scale
		}
	}
}

// WithPageTimeout bounds rendering plus recognition of a single page.
func WithPageTimeout(d time.Duration) Option {
	return func(c *Controller) { c.pageTimeout = d }
}

func NewController(renderer Renderer, engine Engine, log *zap.Logger, opts ...Option) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Controller{renderer: renderer, engine: engine, log: log, scale: DefaultScale}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Extract recognises every page of pdf in order and returns the combined
// text, which may be empty. Failures on individual pages are logged and
// skipped; only an unopenable document or an engine that cannot start is an
// error. Progress values never decrease and the last one is 100.
func (c *Controller) Extract(ctx context.Context, pdf []byte, language string, onProgress func(int)) (string, error) {
	lang, err := NormalizeLanguage(language)
	if err != nil {
		return "", err
	}
	return withConcurrencyLimit(ctx, func() (string, error) {
		return c.run(ctx, pdf, lang, newProgress(onProgress))
	})
}

func (c *Controller) run(ctx context.Context, pdf []byte, lang string, prog *progress) (string, error) {
	doc, err := c.renderer.Open(ctx, pdf)
	if err != nil {
		return "", apperr.Wrap(apperr.KindOCR, "ocr", "could not open PDF for text recognition", err)
	}
	defer doc.Close()

	rec, err := c.engine.Init(ctx, lang)
	if err != nil {
		return "", apperr.Wrap(apperr.KindOCR, "ocr", "could not start text recognition", err)
	}
	defer func() {
		if err := rec.Close(); err != nil {
			c.log.Warn("ocr engine close failed", zap.String("engine", c.engine.Name()), zap.Error(err))
		}
	}()

	n := doc.PageCount()
	start := time.Now()
	var acc strings.Builder
	for i := 1; i <= n; i++ {
		base := float64(i-1) * renderBand / float64(n)
		prog.set(base)
		if err := ctx.Err(); err != nil {
			c.log.Info("ocr cancelled", zap.Int("page", i), zap.Int("pages", n))
			break
		}

		text, err := c.page(ctx, doc, rec, i, func(f float64) {
			prog.set(base + clamp01(f)*renderBand/float64(n))
		})
		if err != nil {
			c.log.Warn("ocr page failed",
				zap.String("engine", c.engine.Name()),
				zap.Int("page", i),
				zap.Error(err),
			)
			continue
		}
		if text = cleanText(text); text != "" {
			acc.WriteString(text)
			acc.WriteString("\n\n")
		}
	}
	prog.set(100)

	out := strings.TrimSpace(acc.String())
	c.log.Info("ocr complete",
		zap.String("engine", c.engine.Name()),
		zap.String("language", lang),
		zap.Int("pages", n),
		zap.Int("chars", len(out)),
		zap.Duration("took", time.Since(start)),
	)
	return out, nil
}

func (c *Controller) page(ctx context.Context, doc Document, rec Recognizer, i int, onProgress func(float64)) (string, error) {
	if c.pageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.pageTimeout)
		defer cancel()
	}
	img, err := doc.RenderPage(ctx, i, c.scale)
	if err != nil {
		return "", err
	}
	return rec.Recognize(ctx, img, onProgress)
}

// progress forwards integer percentages and drops anything lower than what
// was already reported.
type progress struct {
	mu   sync.Mutex
	fn   func(int)
	last int
}

func newProgress(fn func(int)) *progress {
	return &progress{fn: fn, last: -1}
}

func (p *progress) set(v float64) {
	pct := int(v)
	if pct > 100 {
		pct = 100
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if pct <= p.last {
		return
	}
	p.last = pct
	if p.fn != nil {
		p.fn(pct)
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
