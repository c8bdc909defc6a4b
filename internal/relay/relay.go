// Package relay serves GET /api/fetch-url: it fetches a page server-side and
// hands the HTML back to browser clients that cannot fetch it cross-origin.
package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/toricodesthings/text-metrics-service/internal/apperr"
	"github.com/toricodesthings/text-metrics-service/internal/htmltext"
	"github.com/toricodesthings/text-metrics-service/internal/webfetch"
)

const DefaultTimeout = 15 * time.Second

type Response struct {
	Content   string `json:"content"`
	Length    int    `json:"length"`
	URL       string `json:"url"`
	Timestamp string `json:"timestamp"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Status    int    `json:"status,omitempty"`
	URL       string `json:"url,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Fetcher is the upstream fetch the relay performs; *webfetch.DirectTransport
// satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, target string) (string, error)
}

type Handler struct {
	log          *zap.Logger
	fetcher      Fetcher
	timeout      time.Duration
	allowPrivate bool
	now          func() time.Time
}

func New(log *zap.Logger, fetcher Fetcher, timeout time.Duration, allowPrivate bool) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Handler{log: log, fetcher: fetcher, timeout: timeout, allowPrivate: allowPrivate, now: time.Now}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setCORS(w.Header())

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodGet:
	default:
		w.Header().Set("Allow", "GET, OPTIONS")
		h.fail(w, http.StatusMethodNotAllowed, apperr.New(apperr.KindInvalidInput, "relay", "method must be GET"), "")
		return
	}

	raw := strings.TrimSpace(r.URL.Query().Get("url"))
	if raw == "" {
		h.fail(w, http.StatusBadRequest, apperr.New(apperr.KindInvalidURL, "relay", "url parameter required"), "")
		return
	}
	u, err := webfetch.ValidateURL(raw, h.allowPrivate)
	if err != nil {
		h.fail(w, http.StatusBadRequest, err, raw)
		return
	}
	target := u.String()

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	html, err := h.fetcher.Fetch(ctx, target)
	if err != nil {
		h.fail(w, statusFor(err), err, target)
		return
	}
	if !htmltext.LooksLikeHTML(html) {
		h.fail(w, http.StatusUnprocessableEntity,
			apperr.New(apperr.KindEmptyContent, "relay", "upstream response is not an HTML page"), target)
		return
	}

	h.log.Debug("relay fetched page", zap.String("url", target), zap.Int("bytes", len(html)))
	writeJSON(w, http.StatusOK, Response{
		Content:   html,
		Length:    len(html),
		URL:       target,
		Timestamp: h.now().UTC().Format(time.RFC3339),
	})
}

func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindInvalidURL, apperr.KindInvalidInput:
		return http.StatusBadRequest
	case apperr.KindTimeout:
		return http.StatusGatewayTimeout
	case apperr.KindEmptyContent:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func (h *Handler) fail(w http.ResponseWriter, status int, err error, target string) {
	h.log.Info("relay fetch failed",
		zap.String("url", target),
		zap.Int("status", status),
		zap.Error(err),
	)
	writeJSON(w, status, errorResponse{
		Error:     apperr.UserMessage(err),
		Code:      string(apperr.KindOf(err)),
		Status:    apperr.StatusOf(err),
		URL:       target,
		Timestamp: h.now().UTC().Format(time.RFC3339),
	})
}

func setCORS(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
	h.Set("Access-Control-Max-Age", "86400")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
