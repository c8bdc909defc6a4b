// Package service assembles the extraction pipeline, the webpage fetcher and
// the statistics engine from configuration. Both the HTTP server and the CLI
// go through it.
package service

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/toricodesthings/text-metrics-service/internal/config"
	"github.com/toricodesthings/text-metrics-service/internal/extract"
	"github.com/toricodesthings/text-metrics-service/internal/extractors/ebook"
	imageextractor "github.com/toricodesthings/text-metrics-service/internal/extractors/image"
	"github.com/toricodesthings/text-metrics-service/internal/extractors/office"
	pdfextractor "github.com/toricodesthings/text-metrics-service/internal/extractors/pdf"
	"github.com/toricodesthings/text-metrics-service/internal/extractors/plaintext"
	"github.com/toricodesthings/text-metrics-service/internal/extractors/structured"
	"github.com/toricodesthings/text-metrics-service/internal/langdetect"
	"github.com/toricodesthings/text-metrics-service/internal/ocr"
	"github.com/toricodesthings/text-metrics-service/internal/webfetch"
)

type Service struct {
	cfg      config.Config
	log      *zap.Logger
	registry *extract.Registry
	router   *extract.Router
	fetcher  *webfetch.Orchestrator
	direct   *webfetch.DirectTransport
}

// New wires every component from cfg.
func New(cfg config.Config, log *zap.Logger) (*Service, error) {
	if log == nil {
		log = zap.NewNop()
	}

	controller, err := ocr.New(ocr.Settings{
		Engine:          cfg.OCREngine,
		Renderer:        cfg.OCRRenderer,
		TesseractBinary: cfg.TesseractBinary,
		PDFToPPMBinary:  cfg.PDFToPPMBinary,
		PDFInfoBinary:   cfg.PDFInfoBinary,
		InfoTimeout:     cfg.PopplerInfoTimeout,
		MistralAPIKey:   cfg.MistralAPIKey,
		MistralModel:    cfg.DefaultOCRModel,
		Scale:           cfg.OCRScale,
		PageTimeout:     cfg.OCRPageTimeout,
	}, log.Named("ocr"))
	if err != nil {
		return nil, err
	}
	ocr.SetConcurrencyLimit(cfg.MaxOCRConcurrent)

	providers := webfetch.DefaultProviders
	if cfg.ProxyProvidersFile != "" {
		providers, err = webfetch.LoadProviders(cfg.ProxyProvidersFile)
		if err != nil {
			return nil, fmt.Errorf("proxy providers: %w", err)
		}
	}

	base := &http.Transport{
		MaxIdleConns:        20,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	client := &http.Client{Transport: base}
	// Direct fetches reach user-supplied hosts, so they are checked again
	// once the name has resolved.
	directClient := client
	if !cfg.AllowPrivateURLs {
		directClient = webfetch.PublicClient(base)
	}
	chain := webfetch.DefaultChain(webfetch.ChainOptions{
		Client:        client,
		DirectClient:  directClient,
		RelayURL:      cfg.RelayURL,
		RelayTimeout:  cfg.RelayTimeout,
		DirectTimeout: cfg.DirectFetchTimeout,
		ProxyTimeout:  cfg.ProxyTimeout,
		MaxBodyBytes:  cfg.MaxHTMLBytes,
		Providers:     providers,
	})
	fetchLog := log.Named("webfetch")
	fetcher := webfetch.New(fetchLog, chain, webfetch.WithAllowPrivate(cfg.AllowPrivateURLs))

	registry := NewRegistry(cfg, controller, log)
	return &Service{
		cfg:      cfg,
		log:      log,
		registry: registry,
		router:   extract.NewRouter(registry, log.Named("extract"), langdetect.New()),
		fetcher:  fetcher,
		direct:   webfetch.NewDirect(directClient, cfg.RelayTimeout, cfg.MaxHTMLBytes),
	}, nil
}

// OCR is what the PDF and image extractors need from the recognition
// pipeline. *ocr.Controller implements it.
type OCR interface {
	pdfextractor.OCR
	imageextractor.OCR
}

// NewRegistry registers every supported format. A later registration
// replaces an earlier one for the same MIME type or extension.
func NewRegistry(cfg config.Config, recognizer OCR, log *zap.Logger) *extract.Registry {
	registry := extract.NewRegistry()
	registry.Register(pdfextractor.New(recognizer, cfg.MaxPDFBytes, cfg.MinTextLayerChars, log.Named("pdf")))
	registry.Register(imageextractor.New(recognizer, cfg.MaxImageBytes))
	registry.Register(office.NewDOCX(cfg.MaxOfficeBytes))
	registry.Register(office.NewXLSX(cfg.MaxOfficeBytes))
	registry.Register(office.NewPPTX(cfg.MaxOfficeBytes))
	registry.Register(office.NewODF(cfg.MaxOfficeBytes))
	registry.Register(ebook.NewEPUB(cfg.MaxOfficeBytes))
	registry.Register(plaintext.NewHTML(cfg.MaxTextBytes))
	registry.Register(plaintext.NewRTF(cfg.MaxTextBytes))
	registry.Register(plaintext.NewLaTeX(cfg.MaxTextBytes))
	registry.Register(structured.NewCSV(cfg.MaxTextBytes))
	registry.Register(plaintext.New(cfg.MaxTextBytes))
	return registry
}

// Direct is the plain HTTP transport the relay endpoint fetches through.
func (s *Service) Direct() *webfetch.DirectTransport { return s.direct }

// Extensions lists the file extensions that can be analysed.
func (s *Service) Extensions() []string { return s.registry.Extensions() }

func (s *Service) Config() config.Config { return s.cfg }
