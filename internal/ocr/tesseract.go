package ocr

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const maxRecognizedBytes = 10 << 20

// TesseractEngine runs the tesseract CLI once per page image.
type TesseractEngine struct {
	Binary      string
	InitTimeout time.Duration
}

func (e TesseractEngine) Name() string { return "tesseract" }

func (e TesseractEngine) binary() string {
	if e.Binary == "" {
		return "tesseract"
	}
	return e.Binary
}

// Init checks that the binary runs and has data for language installed.
func (e TesseractEngine) Init(ctx context.Context, language string) (Recognizer, error) {
	timeout := e.InitTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	lctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, stderr, err := runCommandCaptureLimited(exec.CommandContext(lctx, e.binary(), "--list-langs"), 1<<20)
	if err != nil {
		return nil, classifyToolErr(lctx, "tesseract", err, stderr)
	}
	// Older releases print the list on stderr.
	if !hasLanguage(string(out)+"\n"+stderr, language) {
		return nil, fmt.Errorf("tesseract has no data for language %q", language)
	}

	dir, err := os.MkdirTemp("", "textmetrics-tesseract-*")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	return &tesseractRecognizer{binary: e.binary(), language: language, dir: dir}, nil
}

func hasLanguage(listing, language string) bool {
	sc := bufio.NewScanner(strings.NewReader(listing))
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == language {
			return true
		}
	}
	return false
}

type tesseractRecognizer struct {
	binary   string
	language string
	dir      string
	seq      int
}

func (r *tesseractRecognizer) Recognize(ctx context.Context, png []byte, onProgress func(float64)) (string, error) {
	report(onProgress, 0)

	r.seq++
	path := filepath.Join(r.dir, fmt.Sprintf("page-%d.png", r.seq))
	if err := os.WriteFile(path, png, 0o600); err != nil {
		return "", fmt.Errorf("write page image: %w", err)
	}
	defer os.Remove(path)

	cmd := exec.CommandContext(ctx, r.binary, path, "stdout", "-l", r.language)
	out, stderr, err := runCommandCaptureLimited(cmd, maxRecognizedBytes)
	if err != nil {
		return "", classifyToolErr(ctx, "tesseract", err, stderr)
	}

	report(onProgress, 1)
	return string(out), nil
}

func (r *tesseractRecognizer) Close() error {
	return os.RemoveAll(r.dir)
}

func report(fn func(float64), f float64) {
	if fn != nil {
		fn(f)
	}
}
