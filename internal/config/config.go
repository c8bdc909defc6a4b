package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string

	// Secrets
	InternalSharedSecret string
	MistralAPIKey        string

	// Limits
	MaxJSONBodyBytes int64
	MaxUploadBytes   int64
	MaxPDFBytes      int64
	MaxTextBytes     int64
	MaxOfficeBytes   int64
	MaxImageBytes    int64

	// Concurrency
	MaxConcurrentRequests int64
	MaxOCRConcurrent      int64

	// Server timeouts
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration

	// Request timeouts
	ExtractTimeout time.Duration
	FetchTimeout   time.Duration

	// rate limiting (per IP)
	RateLimitEvery time.Duration
	RateLimitBurst int

	// housekeeping
	CleanupInterval time.Duration

	// health
	HealthDegradeRatio float64

	// http
	MaxHeaderBytes int

	// PDF / OCR
	MinTextLayerChars  int
	OCREngine          string // tesseract | mistral
	OCRRenderer        string // poppler | embedded
	OCRLanguage        string
	OCRScale           float64
	OCRPageTimeout     time.Duration
	DefaultOCRModel    string
	TesseractBinary    string
	PDFToPPMBinary     string
	PDFInfoBinary      string
	PopplerInfoTimeout time.Duration

	// Webpage fetching
	RelayURL           string
	RelayTimeout       time.Duration
	DirectFetchTimeout time.Duration
	ProxyTimeout       time.Duration
	ProxyProvidersFile string
	MaxHTMLBytes       int64
	AllowPrivateURLs   bool

	// Logging
	LogLevel  string
	LogFormat string
	LogFile   string
}

// Load reads a .env file when present and then the process environment.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port: envStr("PORT", "8080"),

		InternalSharedSecret: envStr("INTERNAL_SHARED_SECRET", ""),
		MistralAPIKey:        envStr("MISTRAL_API_KEY", ""),

		MaxJSONBodyBytes: int64(envInt("MAX_JSON_BODY_BYTES", 4<<20)),
		MaxUploadBytes:   int64(envInt("MAX_UPLOAD_BYTES", int(100<<20))),
		MaxPDFBytes:      int64(envInt("MAX_PDF_BYTES", int(100<<20))),
		MaxTextBytes:     int64(envInt("MAX_TEXT_BYTES", int(10<<20))),
		MaxOfficeBytes:   int64(envInt("MAX_OFFICE_BYTES", int(50<<20))),
		MaxImageBytes:    int64(envInt("MAX_IMAGE_BYTES", int(20<<20))),

		MaxConcurrentRequests: int64(envInt("MAX_CONCURRENT_REQUESTS", 15)),
		MaxOCRConcurrent:      int64(envInt("MAX_OCR_CONCURRENT", 2)),

		ReadHeaderTimeout: envDur("READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:       envDur("READ_TIMEOUT", 60*time.Second),
		WriteTimeout:      envDur("WRITE_TIMEOUT", 300*time.Second),
		IdleTimeout:       envDur("IDLE_TIMEOUT", 60*time.Second),

		ExtractTimeout: envDur("EXTRACT_TIMEOUT", 280*time.Second),
		FetchTimeout:   envDur("FETCH_TIMEOUT", 180*time.Second),

		RateLimitEvery: envDur("RATE_LIMIT_EVERY", 600*time.Millisecond),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 20),

		CleanupInterval: envDur("CLEANUP_INTERVAL", 5*time.Minute),

		HealthDegradeRatio: envFloat("HEALTH_DEGRADE_RATIO", 0.9),

		MaxHeaderBytes: envInt("MAX_HEADER_BYTES", 1<<20),

		MinTextLayerChars:  envInt("MIN_TEXT_LAYER_CHARS", 50),
		OCREngine:          strings.ToLower(envStr("OCR_ENGINE", "tesseract")),
		OCRRenderer:        strings.ToLower(envStr("OCR_RENDERER", "poppler")),
		OCRLanguage:        envStr("OCR_LANGUAGE", "eng"),
		OCRScale:           envFloat("OCR_SCALE", 2),
		OCRPageTimeout:     envDur("OCR_PAGE_TIMEOUT", 60*time.Second),
		DefaultOCRModel:    envStr("DEFAULT_OCR_MODEL", "mistral-ocr-latest"),
		TesseractBinary:    envStr("TESSERACT_BINARY", "tesseract"),
		PDFToPPMBinary:     envStr("PDFTOPPM_BINARY", "pdftoppm"),
		PDFInfoBinary:      envStr("PDFINFO_BINARY", "pdfinfo"),
		PopplerInfoTimeout: envDur("PDFINFO_TIMEOUT", 5*time.Second),

		RelayURL:           envStr("RELAY_URL", ""),
		RelayTimeout:       envDur("RELAY_TIMEOUT", 15*time.Second),
		DirectFetchTimeout: envDur("DIRECT_FETCH_TIMEOUT", 10*time.Second),
		ProxyTimeout:       envDur("PROXY_TIMEOUT", 20*time.Second),
		ProxyProvidersFile: envStr("PROXY_PROVIDERS_FILE", ""),
		MaxHTMLBytes:       int64(envInt("MAX_HTML_BYTES", int(10<<20))),
		AllowPrivateURLs:   envBool("ALLOW_PRIVATE_URLS", false),

		LogLevel:  strings.ToLower(envStr("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(envStr("LOG_FORMAT", "console")),
		LogFile:   envStr("LOG_FILE", ""),
	}
}

func (c Config) Validate() error {
	if s := strings.TrimSpace(c.InternalSharedSecret); s != "" && len(s) < 32 {
		return fmt.Errorf("INTERNAL_SHARED_SECRET must be at least 32 characters when set")
	}
	switch c.OCREngine {
	case "tesseract":
	case "mistral":
		if strings.TrimSpace(c.MistralAPIKey) == "" {
			return fmt.Errorf("OCR_ENGINE=mistral requires MISTRAL_API_KEY")
		}
	default:
		return fmt.Errorf("OCR_ENGINE must be tesseract or mistral, got %q", c.OCREngine)
	}
	switch c.OCRRenderer {
	case "poppler", "embedded":
	default:
		return fmt.Errorf("OCR_RENDERER must be poppler or embedded, got %q", c.OCRRenderer)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be console or json, got %q", c.LogFormat)
	}
	return nil
}

func envStr(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envBool(key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}

func envDur(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
