package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

var errOutputLimit = errors.New("output exceeds limit")

// runCommandCaptureLimited runs cmd and captures stdout up to maxBytes. Stderr
// is captured in full for error classification.
func runCommandCaptureLimited(cmd *exec.Cmd, maxBytes int64) (stdout []byte, stderr string, err error) {
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, "", fmt.Errorf("stdout pipe: %w", err)
	}

	var errBuf bytes.Buffer
	cmd.Stderr = &errBuf

	if err := cmd.Start(); err != nil {
		return nil, "", fmt.Errorf("start: %w", err)
	}

	out, readErr := io.ReadAll(io.LimitReader(stdoutPipe, maxBytes+1))
	if int64(len(out)) > maxBytes {
		_ = cmd.Process.Kill()
	}
	waitErr := cmd.Wait()
	stderrStr := strings.TrimSpace(errBuf.String())

	if readErr != nil {
		return nil, stderrStr, fmt.Errorf("read stdout: %w", readErr)
	}
	if int64(len(out)) > maxBytes {
		return nil, stderrStr, errOutputLimit
	}
	if waitErr != nil {
		return nil, stderrStr, waitErr
	}
	return out, stderrStr, nil
}

// isHelpOrUsageOutput reports whether stderr is a usage dump rather than a
// processing error.
func isHelpOrUsageOutput(stderr string) bool {
	return strings.Contains(stderr, "version ") && strings.Contains(stderr, "Usage:")
}

// classifyToolErr turns a failed poppler or tesseract run into a readable
// error, preferring known stderr messages over the exit status.
func classifyToolErr(ctx context.Context, tool string, err error, stderr string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s timeout: %w", tool, ctx.Err())
	}
	if errors.Is(err, errOutputLimit) {
		return fmt.Errorf("%s output too large", tool)
	}
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%s is not installed: %w", tool, err)
	}

	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return fmt.Errorf("%s failed: %w", tool, err)
	}
	switch {
	case isHelpOrUsageOutput(stderr):
		return fmt.Errorf("%s failed (bad invocation): %s", tool, truncate(stderr, 200))
	case containsAny(stderr, "Incorrect password", "Command Line Error: Incorrect password"):
		return fmt.Errorf("PDF is password protected")
	case containsAny(stderr, "PDF file is damaged", "Syntax Error", "Couldn't find trailer dictionary", "May not be a PDF file"):
		return fmt.Errorf("PDF appears to be damaged or invalid")
	case containsAny(stderr, "Failed loading language", "Error opening data file"):
		return fmt.Errorf("%s language data missing: %s", tool, truncate(stderr, 200))
	}
	return fmt.Errorf("%s failed: %s", tool, truncate(stderr, 500))
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
