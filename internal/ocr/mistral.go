package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	mistralAPIURL       = "https://api.mistral.ai/v1/ocr"
	defaultMistralModel = "mistral-ocr-latest"
	maxRetries          = 2
	retryDelay          = 2 * time.Second
	requestTimeout      = 120 * time.Second
)

type ocrPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

type ocrResponse struct {
	Pages []ocrPage `json:"pages"`
	Model string    `json:"model"`
}

type mistralErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// APIError is a non-2xx answer from the OCR API.
type APIError struct {
	StatusCode int
	Message    string
	Type       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mistral OCR %d (%s): %s", e.StatusCode, e.Type, e.Message)
}

// MistralEngine sends each rendered page to the Mistral OCR API as an inline
// image. The API detects the language itself, so Init only checks the key.
type MistralEngine struct {
	APIKey string
	Model  string
	// URL overrides the API endpoint.
	URL    string
	Client *http.Client
}

func (e MistralEngine) Name() string { return "mistral" }

func (e MistralEngine) Init(ctx context.Context, language string) (Recognizer, error) {
	if strings.TrimSpace(e.APIKey) == "" {
		return nil, errors.New("MISTRAL_API_KEY not configured")
	}
	r := &mistralRecognizer{engine: e}
	if r.engine.Model == "" {
		r.engine.Model = defaultMistralModel
	}
	if r.engine.URL == "" {
		r.engine.URL = mistralAPIURL
	}
	if r.engine.Client == nil {
		r.engine.Client = &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}
	return r, nil
}

type mistralRecognizer struct {
	engine MistralEngine
}

func (r *mistralRecognizer) Recognize(ctx context.Context, png []byte, onProgress func(float64)) (string, error) {
	report(onProgress, 0)

	body, err := json.Marshal(map[string]any{
		"model": r.engine.Model,
		"document": map[string]any{
			"type":      "image_url",
			"image_url": "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(retryDelay * time.Duration(attempt)):
			}
		}

		res, err := r.execute(ctx, body)
		if err == nil {
			report(onProgress, 1)
			return joinPages(res.Pages), nil
		}
		lastErr = err

		// Client errors will not succeed on retry.
		if isClientError(err) {
			break
		}
	}
	return "", fmt.Errorf("image OCR failed after %d attempts: %w", maxRetries+1, lastErr)
}

func (r *mistralRecognizer) Close() error {
	r.engine.Client.CloseIdleConnections()
	return nil
}

func (r *mistralRecognizer) execute(ctx context.Context, body []byte) (ocrResponse, error) {
	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, r.engine.URL, bytes.NewReader(body))
	if err != nil {
		return ocrResponse{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.engine.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "textmetrics/1.0")

	resp, err := r.engine.Client.Do(req)
	if err != nil {
		return ocrResponse{}, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ocrResponse{}, parseErrorResponse(resp)
	}

	var result ocrResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 100<<20)).Decode(&result); err != nil {
		return ocrResponse{}, fmt.Errorf("decode: %w", err)
	}
	if len(result.Pages) == 0 {
		return ocrResponse{}, fmt.Errorf("OCR returned no pages")
	}
	for i, page := range result.Pages {
		if len(page.Markdown) > maxRecognizedBytes {
			return ocrResponse{}, fmt.Errorf("page %d text too large: %dMB", i, len(page.Markdown)/(1<<20))
		}
	}
	return result, nil
}

func joinPages(pages []ocrPage) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		if t := strings.TrimSpace(p.Markdown); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

func parseErrorResponse(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var errResp mistralErrorResponse
	if json.Unmarshal(b, &errResp) == nil && errResp.Error.Message != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error.Message, Type: errResp.Error.Type}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: string(b), Type: "unknown"}
}

func isClientError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500
	}
	return false
}
