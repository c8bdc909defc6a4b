package ocr

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	"image/png"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/toricodesthings/text-metrics-service/internal/apperr"
)

var (
	zeroWidthChars    = regexp.MustCompile("[\u200B-\u200D\uFEFF\u00AD\u2060]")
	standaloneImgName = regexp.MustCompile(`(?mi)^[\w-]+\.(jpeg|jpg|png|gif|webp|svg|bmp|tiff?)[ \t]*$`)
	excessiveNewlines = regexp.MustCompile(`\n{4,}`)
	trailingSpaces    = regexp.MustCompile(`(?m)[ \t]+$`)
)

// cleanText strips invisible characters and lone image file names from
// recognised text and normalises line endings.
func cleanText(text string) string {
	if text == "" {
		return ""
	}
	text = zeroWidthChars.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = standaloneImgName.ReplaceAllString(text, "")
	text = trailingSpaces.ReplaceAllString(text, "")
	text = excessiveNewlines.ReplaceAllString(text, "\n\n\n")
	return strings.TrimSpace(text)
}

// Image recognises text in a single picture. Any format the image package
// can decode is accepted; it is upscaled like an embedded PDF image and
// handed to the recognizer as PNG.
func (c *Controller) Image(ctx context.Context, data []byte, language string, onProgress func(int)) (string, error) {
	lang, err := NormalizeLanguage(language)
	if err != nil {
		return "", err
	}
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", apperr.Wrap(apperr.KindExtraction, "ocr", "could not decode the image", err)
	}

	return withConcurrencyLimit(ctx, func() (string, error) {
		prog := newProgress(onProgress)
		prog.set(0)
		start := time.Now()

		var buf bytes.Buffer
		if err := png.Encode(&buf, upscale(src, c.scale)); err != nil {
			return "", apperr.Wrap(apperr.KindOCR, "ocr", "could not prepare the image", err)
		}

		rec, err := c.engine.Init(ctx, lang)
		if err != nil {
			return "", apperr.Wrap(apperr.KindOCR, "ocr", "could not start text recognition", err)
		}
		defer func() {
			if err := rec.Close(); err != nil {
				c.log.Warn("ocr engine close failed", zap.String("engine", c.engine.Name()), zap.Error(err))
			}
		}()

		pageCtx := ctx
		if c.pageTimeout > 0 {
			var cancel context.CancelFunc
			pageCtx, cancel = context.WithTimeout(ctx, c.pageTimeout)
			defer cancel()
		}
		text, err := rec.Recognize(pageCtx, buf.Bytes(), func(f float64) {
			prog.set(clamp01(f) * renderBand)
		})
		if err != nil {
			return "", apperr.Wrap(apperr.KindOCR, "ocr", "text recognition failed", err)
		}
		prog.set(100)

		out := cleanText(text)
		c.log.Info("image ocr complete",
			zap.String("engine", c.engine.Name()),
			zap.String("language", lang),
			zap.String("format", format),
			zap.Int("chars", len(out)),
			zap.Duration("took", time.Since(start)),
		)
		return out, nil
	})
}
