package webfetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/toricodesthings/text-metrics-service/internal/apperr"
)

// Transport is one way of getting the HTML of a page. Fetch returns an error
// for anything the orchestrator should not accept, including responses that
// arrived fine but failed the transport's own content checks.
type Transport interface {
	ID() string
	Fetch(ctx context.Context, target string) (string, error)
}

const defaultMaxBodyBytes = 10 << 20

var browserHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9",
	"Cache-Control":   "no-cache",
}

// ---------- Direct ----------

type DirectTransport struct {
	client   *http.Client
	timeout  time.Duration
	maxBytes int64
}

func NewDirect(client *http.Client, timeout time.Duration, maxBytes int64) *DirectTransport {
	if client == nil {
		client = &http.Client{}
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxBodyBytes
	}
	return &DirectTransport{client: client, timeout: timeout, maxBytes: maxBytes}
}

func (t *DirectTransport) ID() string { return "direct" }

func (t *DirectTransport) Fetch(ctx context.Context, target string) (string, error) {
	ctx, cancel := withTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInvalidURL, t.ID(), "build request", err)
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", apperr.Classify(t.ID(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apperr.Status(t.ID(), resp.StatusCode)
	}
	return readDecoded(t.ID(), resp, t.maxBytes)
}

// ---------- Relay ----------

type relayResponse struct {
	Content string `json:"content"`
	Error   string `json:"error"`
}

// RelayTransport asks a relay endpoint (see internal/relay) to fetch the page
// server-side and hand back {content: html}.
type RelayTransport struct {
	client   *http.Client
	endpoint string
	timeout  time.Duration
	maxBytes int64
}

func NewRelay(client *http.Client, endpoint string, timeout time.Duration, maxBytes int64) *RelayTransport {
	if client == nil {
		client = &http.Client{}
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxBodyBytes
	}
	return &RelayTransport{client: client, endpoint: endpoint, timeout: timeout, maxBytes: maxBytes}
}

func (t *RelayTransport) ID() string { return "relay" }

func (t *RelayTransport) Fetch(ctx context.Context, target string) (string, error) {
	ctx, cancel := withTimeout(ctx, t.timeout)
	defer cancel()

	u, err := url.Parse(t.endpoint)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInvalidInput, t.ID(), "relay endpoint", err)
	}
	q := u.Query()
	q.Set("url", target)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInvalidInput, t.ID(), "build request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", apperr.Classify(t.ID(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apperr.Status(t.ID(), resp.StatusCode)
	}

	var body relayResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, t.maxBytes)).Decode(&body); err != nil {
		return "", apperr.Wrap(apperr.KindNetwork, t.ID(), "malformed relay response", err)
	}
	if strings.TrimSpace(body.Content) == "" {
		return "", apperr.New(apperr.KindEmptyContent, t.ID(), "relay returned no content")
	}
	return body.Content, nil
}

// ---------- helpers ----------

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// readDecoded reads at most maxBytes of the body and converts it to UTF-8
// using the declared or sniffed charset.
func readDecoded(op string, resp *http.Response, maxBytes int64) (string, error) {
	r, err := charset.NewReader(io.LimitReader(resp.Body, maxBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return "", apperr.Wrap(apperr.KindNetwork, op, "decode body", err)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", apperr.Classify(op, fmt.Errorf("read body: %w", err))
	}
	return string(b), nil
}
