package ocr

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Settings selects and configures the engine and renderer behind a Controller.
type Settings struct {
	Engine   string // tesseract | mistral
	Renderer string // poppler | embedded

	TesseractBinary string
	PDFToPPMBinary  string
	PDFInfoBinary   string
	InfoTimeout     time.Duration

	MistralAPIKey string
	MistralModel  string

	Scale       float64
	PageTimeout time.Duration
}

// New builds a Controller from settings.
func New(s Settings, log *zap.Logger) (*Controller, error) {
	var engine Engine
	switch s.Engine {
	case "", "tesseract":
		engine = TesseractEngine{Binary: s.TesseractBinary}
	case "mistral":
		engine = MistralEngine{APIKey: s.MistralAPIKey, Model: s.MistralModel}
	default:
		return nil, fmt.Errorf("unknown OCR engine %q", s.Engine)
	}

	var renderer Renderer
	switch s.Renderer {
	case "", "poppler":
		renderer = PopplerRenderer{
			PDFInfoBinary:  s.PDFInfoBinary,
			PDFToPPMBinary: s.PDFToPPMBinary,
			InfoTimeout:    s.InfoTimeout,
		}
	case "embedded":
		renderer = EmbeddedImageRenderer{}
	default:
		return nil, fmt.Errorf("unknown OCR renderer %q", s.Renderer)
	}

	return NewController(renderer, engine, log,
		WithScale(s.Scale),
		WithPageTimeout(s.PageTimeout),
	), nil
}
