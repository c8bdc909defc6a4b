package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"sync/atomic"
	"testing"
)

func TestParsePages(t *testing.T) {
	cases := []struct {
		name    string
		out     string
		want    int
		wantErr bool
	}{
		{name: "standard", out: "Title: x\nPages:          12\nEncrypted: no\n", want: 12},
		{name: "lowercase fallback", out: "pages: 3 (estimated)\n", want: 3},
		{name: "missing", out: "Title: x\n", wantErr: true},
		{name: "zero", out: "Pages: 0\n", wantErr: true},
		{name: "absurd", out: "Pages: 999999\n", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parsePages(tc.out)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %d", got)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("parsePages = %d, %v; want %d", got, err, tc.want)
			}
		})
	}
}

func TestClassifyToolErr(t *testing.T) {
	ctx := context.Background()
	base := errors.New("exit status 1")

	cases := []struct {
		stderr string
		want   string
	}{
		{stderr: "Command Line Error: Incorrect password", want: "password protected"},
		{stderr: "Syntax Error: Couldn't find trailer dictionary", want: "damaged or invalid"},
		{stderr: "Error opening data file /usr/share/tessdata/jpn.traineddata", want: "language data missing"},
		{stderr: "pdftoppm version 22.02.0\nUsage: pdftoppm [options]", want: "bad invocation"},
		{stderr: "", want: "exit status 1"},
	}
	for _, tc := range cases {
		err := classifyToolErr(ctx, "pdftoppm", base, tc.stderr)
		if !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("classifyToolErr(%q) = %q, want it to mention %q", tc.stderr, err, tc.want)
		}
	}

	if err := classifyToolErr(ctx, "tesseract", exec.ErrNotFound, ""); !strings.Contains(err.Error(), "not installed") {
		t.Fatalf("expected not installed, got %v", err)
	}
	if err := classifyToolErr(ctx, "tesseract", errOutputLimit, ""); !strings.Contains(err.Error(), "too large") {
		t.Fatalf("expected output limit, got %v", err)
	}

	expired, cancel := context.WithTimeout(ctx, 0)
	defer cancel()
	<-expired.Done()
	if err := classifyToolErr(expired, "pdfinfo", base, ""); !strings.Contains(err.Error(), "timeout") {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestHasLanguage(t *testing.T) {
	listing := "List of available languages in \"/usr/share/tessdata/\" (3):\neng\nosd\nspa\n"
	if !hasLanguage(listing, "spa") {
		t.Fatalf("expected spa to be found")
	}
	if hasLanguage(listing, "sp") || hasLanguage(listing, "fra") {
		t.Fatalf("unexpected match")
	}
}

func TestUpscale(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 10, 20))
	out := upscale(src, 2)
	if b := out.Bounds(); b.Dx() != 20 || b.Dy() != 40 {
		t.Fatalf("unexpected size %v", b)
	}

	w, h := scaledSize(image.Rect(0, 0, 5000, 5000), 2)
	if w*h > maxScaledPixels {
		t.Fatalf("scaled size exceeded pixel cap: %dx%d", w, h)
	}
	if w < 6000 {
		t.Fatalf("expected a capped upscale rather than none, got %dx%d", w, h)
	}
}

func TestEmbeddedRendererRejectsGarbage(t *testing.T) {
	if _, err := (EmbeddedImageRenderer{}).Open(context.Background(), []byte("not a pdf")); err == nil {
		t.Fatalf("expected error for invalid PDF")
	}
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.Black)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestMistralRecognize(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		var body struct {
			Model    string `json:"model"`
			Document struct {
				Type     string `json:"type"`
				ImageURL string `json:"image_url"`
			} `json:"document"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if body.Document.Type != "image_url" || !strings.HasPrefix(body.Document.ImageURL, "data:image/png;base64,") {
			http.Error(w, "bad document", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(ocrResponse{
			Model: body.Model,
			Pages: []ocrPage{{Index: 0, Markdown: " first "}, {Index: 1, Markdown: ""}, {Index: 2, Markdown: "second"}},
		})
	}))
	defer srv.Close()

	rec, err := MistralEngine{APIKey: "secret", URL: srv.URL, Client: srv.Client()}.Init(context.Background(), "eng")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	defer rec.Close()

	var last float64
	text, err := rec.Recognize(context.Background(), testPNG(t), func(f float64) { last = f })
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	if text != "first\n\nsecond" {
		t.Fatalf("unexpected text %q", text)
	}
	if auth != "Bearer secret" {
		t.Fatalf("unexpected auth header %q", auth)
	}
	if last != 1 {
		t.Fatalf("expected final progress 1, got %v", last)
	}
}

func TestMistralClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"auth"}}`))
	}))
	defer srv.Close()

	rec, err := MistralEngine{APIKey: "wrong", URL: srv.URL, Client: srv.Client()}.Init(context.Background(), "eng")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	_, err = rec.Recognize(context.Background(), testPNG(t), nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized || apiErr.Message != "bad key" {
		t.Fatalf("expected APIError 401, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected a single call, got %d", n)
	}
}

func TestMistralInitNeedsKey(t *testing.T) {
	if _, err := (MistralEngine{}).Init(context.Background(), "eng"); err == nil {
		t.Fatalf("expected missing key error")
	}
}
