package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/toricodesthings/text-metrics-service/internal/config"
	"github.com/toricodesthings/text-metrics-service/internal/logging"
	"github.com/toricodesthings/text-metrics-service/internal/relay"
	"github.com/toricodesthings/text-metrics-service/internal/service"
)

const version = "1.0.0"

type server struct {
	cfg config.Config
	log *zap.Logger
	svc *service.Service

	requestSem *semaphore.Weighted

	// Per-IP rate limiters, swapped out wholesale by cleanupRateLimiters.
	limitersMu sync.RWMutex
	limiters   *sync.Map

	metrics *serverMetrics
}

type serverMetrics struct {
	mu            sync.RWMutex
	totalRequests int64
	activeReqs    int64
	failed        int64
}

func (m *serverMetrics) incActive() {
	m.mu.Lock()
	m.activeReqs++
	m.totalRequests++
	m.mu.Unlock()
}

func (m *serverMetrics) decActive() {
	m.mu.Lock()
	m.activeReqs--
	m.mu.Unlock()
}

func (m *serverMetrics) incFailed() {
	m.mu.Lock()
	m.failed++
	m.mu.Unlock()
}

func (m *serverMetrics) get() (total, active, failed int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalRequests, m.activeReqs, m.failed
}

func main() {
	cfg := config.Load()

	log, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	svc, err := service.New(cfg, log)
	if err != nil {
		log.Fatal("could not build service", zap.Error(err))
	}

	s := newServer(cfg, log, svc)

	maxHeaderBytes := 1 << 20
	if cfg.MaxHeaderBytes > 0 {
		maxHeaderBytes = cfg.MaxHeaderBytes
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.routes(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
	}

	if cfg.OCREngine == "mistral" {
		log.Info("ocr via mistral", zap.String("model", cfg.DefaultOCRModel))
	} else {
		log.Info("ocr via tesseract", zap.String("binary", cfg.TesseractBinary), zap.String("renderer", cfg.OCRRenderer))
	}
	if cfg.InternalSharedSecret == "" {
		log.Warn("INTERNAL_SHARED_SECRET not set (/metrics is public)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go s.cleanupRateLimiters(ctx)

	go func() {
		log.Info("textmetrics listening",
			zap.String("addr", srv.Addr),
			zap.Int64("maxConcurrent", cfg.MaxConcurrentRequests),
			zap.Int64("maxOCR", cfg.MaxOCRConcurrent),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
}

func newServer(cfg config.Config, log *zap.Logger, svc *service.Service) *server {
	maxConcurrent := cfg.MaxConcurrentRequests
	if maxConcurrent <= 0 {
		maxConcurrent = 15
	}
	return &server{
		cfg:        cfg,
		log:        log,
		svc:        svc,
		requestSem: semaphore.NewWeighted(maxConcurrent),
		limiters:   &sync.Map{},
		metrics:    &serverMetrics{},
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/metrics", s.withInternalAuth(s.handleMetrics))

	mux.HandleFunc("/analyze",
		s.withRateLimit(
			withMethod(http.MethodPost,
				s.withConcurrencyLimit(s.handleAnalyze))))

	mux.HandleFunc("/extract",
		s.withRateLimit(
			withMethod(http.MethodPost,
				s.withConcurrencyLimit(s.handleExtract))))

	mux.HandleFunc("/fetch",
		s.withRateLimit(
			withMethod(http.MethodPost,
				s.withConcurrencyLimit(s.handleFetch))))

	// The relay does its own method checks and sets its own CORS headers.
	mux.Handle("/api/fetch-url",
		s.withRateLimit(
			relay.New(s.log.Named("relay"), s.svc.Direct(), s.cfg.RelayTimeout, s.cfg.AllowPrivateURLs).ServeHTTP))

	return s.withLogging(s.withRecovery(withCORS(mux)))
}

func (s *server) cleanupRateLimiters(ctx context.Context) {
	interval := s.cfg.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		total, active, failed := s.metrics.get()
		s.log.Info("stats",
			zap.Int64("active", active),
			zap.Int64("total", total),
			zap.Int64("failed", failed),
			zap.Int("goroutines", runtime.NumGoroutine()),
			zap.Uint64("memMB", m.Alloc/(1<<20)),
		)

		s.limitersMu.Lock()
		s.limiters = &sync.Map{}
		s.limitersMu.Unlock()
	}
}
