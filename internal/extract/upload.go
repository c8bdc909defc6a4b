package extract

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/toricodesthings/text-metrics-service/internal/apperr"
)

// Upload is a file received from a client or read from disk.
type Upload struct {
	FileName string
	MIMEType string
	Data     []byte
}

// ReadUpload reads at most maxBytes from body. Larger inputs are rejected
// rather than truncated.
func ReadUpload(body io.Reader, fileName, declaredMIME string, maxBytes int64) (Upload, error) {
	lr := &io.LimitedReader{R: body, N: maxBytes + 1}
	data, err := io.ReadAll(lr)
	if err != nil {
		return Upload{}, apperr.Wrap(apperr.KindRead, "upload", "could not read file", err)
	}
	if int64(len(data)) > maxBytes {
		return Upload{}, apperr.New(apperr.KindInvalidInput, "upload",
			fmt.Sprintf("file exceeds %dMB limit", maxBytes/(1<<20)))
	}

	name := strings.TrimSpace(fileName)
	if name == "" {
		name = "input.bin"
	}
	return Upload{
		FileName: filepath.Base(name),
		MIMEType: DetectMIME(data, declaredMIME),
		Data:     data,
	}, nil
}

// ReadFile loads a local file as an Upload.
func ReadFile(path string, maxBytes int64) (Upload, error) {
	f, err := os.Open(path)
	if err != nil {
		return Upload{}, apperr.Wrap(apperr.KindRead, "upload", "could not open file", err)
	}
	defer f.Close()
	return ReadUpload(f, filepath.Base(path), "", maxBytes)
}

// DetectMIME trusts a specific declared type and sniffs the content when the
// client sent nothing useful.
func DetectMIME(data []byte, declared string) string {
	mt := strings.ToLower(strings.TrimSpace(declared))
	if mt != "" && !strings.HasPrefix(mt, "application/octet-stream") {
		return mt
	}
	if len(data) == 0 {
		return mt
	}
	return strings.ToLower(mimetype.Detect(data).String())
}
