package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"math"
	"sort"

	// Decoders for the image formats PDFs embed.
	_ "image/jpeg"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
)

// maxScaledPixels caps the upscaled raster so one page cannot exhaust memory.
const maxScaledPixels = 40_000_000

// EmbeddedImageRenderer is a pure Go renderer for scanned PDFs: instead of
// rasterising the page it takes the largest image embedded on it. Pages
// without images fail to render and are skipped by the controller.
type EmbeddedImageRenderer struct{}

func (EmbeddedImageRenderer) Open(ctx context.Context, pdf []byte) (Document, error) {
	conf := model.NewDefaultConfiguration()
	pctx, err := api.ReadValidateAndOptimize(bytes.NewReader(pdf), conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}
	return &embeddedDocument{ctx: pctx}, nil
}

type embeddedDocument struct {
	ctx *model.Context
}

func (d *embeddedDocument) PageCount() int { return d.ctx.PageCount }

func (d *embeddedDocument) RenderPage(ctx context.Context, page int, scale float64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	images, err := pdfcpu.ExtractPageImages(d.ctx, page, false)
	if err != nil {
		return nil, fmt.Errorf("extract images on page %d: %w", page, err)
	}

	best := largestImage(images)
	if best == nil {
		return nil, fmt.Errorf("page %d has no decodable images", page)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, upscale(best, scale)); err != nil {
		return nil, fmt.Errorf("encode page %d: %w", page, err)
	}
	return buf.Bytes(), nil
}

func (d *embeddedDocument) Close() error { return nil }

// largestImage decodes the images keyed by object number and returns the one
// with the most pixels. Equal areas go to the lowest object number.
func largestImage(images map[int]model.Image) image.Image {
	objNrs := make([]int, 0, len(images))
	for nr := range images {
		objNrs = append(objNrs, nr)
	}
	sort.Ints(objNrs)

	var best image.Image
	for _, nr := range objNrs {
		decoded, _, err := image.Decode(images[nr])
		if err != nil {
			continue
		}
		if best == nil || area(decoded.Bounds()) > area(best.Bounds()) {
			best = decoded
		}
	}
	return best
}

// upscale resizes src by scale with Catmull-Rom resampling.
func upscale(src image.Image, scale float64) image.Image {
	b := src.Bounds()
	w, h := scaledSize(b, scale)
	if w < 1 || h < 1 || (w == b.Dx() && h == b.Dy()) {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

// scaledSize applies scale to b, shrinking the factor if the result would
// exceed maxScaledPixels.
func scaledSize(b image.Rectangle, scale float64) (int, int) {
	if scale <= 0 {
		scale = 1
	}
	if px := float64(b.Dx()) * float64(b.Dy()) * scale * scale; px > maxScaledPixels {
		scale = math.Sqrt(maxScaledPixels / float64(area(b)))
	}
	return int(math.Floor(float64(b.Dx()) * scale)), int(math.Floor(float64(b.Dy()) * scale))
}

func area(r image.Rectangle) int { return r.Dx() * r.Dy() }
