package extract

import "context"

// Extractor is implemented by every file-type handler. Extract returns the
// full text or a typed error; it never returns partial text.
type Extractor interface {
	Extract(ctx context.Context, job Job) (Result, error)
	SupportedTypes() []string
	SupportedExtensions() []string
	Name() string
	MaxFileSize() int64
}

// ProgressFunc receives a completion percentage in [0,100].
type ProgressFunc func(percent int)
