package ocr

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	maxPageImageBytes = 64 << 20
	maxPDFInfoBytes   = 1 << 20
)

var pageCountRegex = regexp.MustCompile(`(?m)^Pages:\s+(\d+)\s*$`)

// PopplerRenderer rasterises pages with pdftoppm and counts them with
// pdfinfo.
type PopplerRenderer struct {
	PDFInfoBinary  string
	PDFToPPMBinary string
	InfoTimeout    time.Duration
}

func (r PopplerRenderer) withDefaults() PopplerRenderer {
	out := r
	if out.PDFInfoBinary == "" {
		out.PDFInfoBinary = "pdfinfo"
	}
	if out.PDFToPPMBinary == "" {
		out.PDFToPPMBinary = "pdftoppm"
	}
	if out.InfoTimeout <= 0 {
		out.InfoTimeout = 5 * time.Second
	}
	return out
}

func (r PopplerRenderer) Open(ctx context.Context, pdf []byte) (Document, error) {
	r = r.withDefaults()

	dir, err := os.MkdirTemp("", "textmetrics-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	path := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(path, pdf, 0o600); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("write pdf: %w", err)
	}

	pages, err := r.pageCount(ctx, path)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	return &popplerDocument{r: r, dir: dir, path: path, pages: pages}, nil
}

func (r PopplerRenderer) pageCount(ctx context.Context, path string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.InfoTimeout)
	defer cancel()

	out, stderr, err := runCommandCaptureLimited(exec.CommandContext(ctx, r.PDFInfoBinary, path), maxPDFInfoBytes)
	if err != nil {
		return 0, classifyToolErr(ctx, "pdfinfo", err, stderr)
	}
	return parsePages(string(out))
}

type popplerDocument struct {
	r     PopplerRenderer
	dir   string
	path  string
	pages int
}

func (d *popplerDocument) PageCount() int { return d.pages }

// RenderPage writes no files: without an output root pdftoppm streams the PNG
// to stdout.
func (d *popplerDocument) RenderPage(ctx context.Context, page int, scale float64) ([]byte, error) {
	if page < 1 || page > d.pages {
		return nil, fmt.Errorf("invalid page number: %d", page)
	}
	dpi := int(math.Round(72 * scale))
	cmd := exec.CommandContext(ctx, d.r.PDFToPPMBinary,
		"-f", strconv.Itoa(page),
		"-l", strconv.Itoa(page),
		"-r", strconv.Itoa(dpi),
		"-png",
		"-singlefile",
		d.path,
	)
	png, stderr, err := runCommandCaptureLimited(cmd, maxPageImageBytes)
	if err != nil {
		return nil, classifyToolErr(ctx, "pdftoppm", err, stderr)
	}
	if len(png) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no image for page %d", page)
	}
	return png, nil
}

func (d *popplerDocument) Close() error {
	return os.RemoveAll(d.dir)
}

func parsePages(pdfinfoOut string) (int, error) {
	if m := pageCountRegex.FindStringSubmatch(pdfinfoOut); len(m) == 2 {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, fmt.Errorf("pdfinfo: invalid page count: %w", err)
		}
		return validatePages(n)
	}

	sc := bufio.NewScanner(strings.NewReader(pdfinfoOut))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(strings.ToLower(line), "pages:") {
			continue
		}
		fields := strings.Fields(line[len("pages:"):])
		if len(fields) == 0 {
			break
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil {
			return 0, fmt.Errorf("pdfinfo: invalid page count: %w", err)
		}
		return validatePages(n)
	}
	return 0, fmt.Errorf("pdfinfo: pages field not found in output")
}

func validatePages(count int) (int, error) {
	if count <= 0 || count > 50000 {
		return 0, fmt.Errorf("pdfinfo: unreasonable page count: %d", count)
	}
	return count, nil
}
