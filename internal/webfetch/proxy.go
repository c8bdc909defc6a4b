package webfetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/toricodesthings/text-metrics-service/internal/apperr"
	"github.com/toricodesthings/text-metrics-service/internal/htmltext"
)

type Envelope string

const (
	EnvelopeRaw   Envelope = "raw"
	EnvelopeJSON  Envelope = "json"
	EnvelopeJSONP Envelope = "jsonp"
)

// Provider describes a public CORS/fetch proxy. URL holds a {url}
// placeholder that receives the query-escaped target, or {rawurl} for
// providers that take the target appended verbatim to the path.
type Provider struct {
	Name     string   `yaml:"name"`
	URL      string   `yaml:"url"`
	Envelope Envelope `yaml:"envelope"`
	Field    string   `yaml:"field"`
}

// DefaultProviders is the built-in priority order.
var DefaultProviders = []Provider{
	{Name: "allorigins-raw", URL: "https://api.allorigins.win/raw?url={url}", Envelope: EnvelopeRaw},
	{Name: "allorigins-json", URL: "https://api.allorigins.win/get?url={url}", Envelope: EnvelopeJSON, Field: "contents"},
	{Name: "corsproxy-io", URL: "https://corsproxy.io/?url={url}", Envelope: EnvelopeRaw},
	{Name: "codetabs", URL: "https://api.codetabs.com/v1/proxy?quest={url}", Envelope: EnvelopeRaw},
	{Name: "thingproxy", URL: "https://thingproxy.freeboard.io/fetch/{rawurl}", Envelope: EnvelopeRaw},
	{Name: "allorigins-jsonp", URL: "https://api.allorigins.win/get?callback=textmetrics&url={url}", Envelope: EnvelopeJSONP, Field: "contents"},
	{Name: "cors-lol", URL: "https://api.cors.lol/?url={url}", Envelope: EnvelopeRaw},
}

type providerFile struct {
	Providers []Provider `yaml:"providers"`
}

// LoadProviders reads a YAML provider list. An empty path returns the
// built-in list.
func LoadProviders(path string) ([]Provider, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultProviders, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read providers: %w", err)
	}
	var pf providerFile
	if err := yaml.Unmarshal(b, &pf); err != nil {
		return nil, fmt.Errorf("parse providers: %w", err)
	}
	if len(pf.Providers) == 0 {
		return nil, fmt.Errorf("providers file %s lists no providers", path)
	}
	for i, p := range pf.Providers {
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("provider %d: %w", i, err)
		}
		if p.Envelope == "" {
			pf.Providers[i].Envelope = EnvelopeRaw
		}
	}
	return pf.Providers, nil
}

func (p Provider) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name required")
	}
	if !strings.Contains(p.URL, "{url}") && !strings.Contains(p.URL, "{rawurl}") {
		return fmt.Errorf("%s: url needs a {url} or {rawurl} placeholder", p.Name)
	}
	switch p.Envelope {
	case "", EnvelopeRaw:
	case EnvelopeJSON, EnvelopeJSONP:
		if p.Field == "" {
			return fmt.Errorf("%s: %s envelope needs a field", p.Name, p.Envelope)
		}
	default:
		return fmt.Errorf("%s: unknown envelope %q", p.Name, p.Envelope)
	}
	return nil
}

func (p Provider) requestURL(target string) string {
	out := strings.ReplaceAll(p.URL, "{url}", url.QueryEscape(target))
	return strings.ReplaceAll(out, "{rawurl}", target)
}

// unwrap extracts the page HTML from the provider's response envelope.
func (p Provider) unwrap(body string) (string, error) {
	switch p.Envelope {
	case EnvelopeJSON:
		return jsonField(body, p.Field)
	case EnvelopeJSONP:
		open := strings.Index(body, "(")
		end := strings.LastIndex(body, ")")
		if open < 0 || end <= open {
			return "", fmt.Errorf("malformed jsonp response")
		}
		return jsonField(body[open+1:end], p.Field)
	default:
		return body, nil
	}
}

func jsonField(body, field string) (string, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		return "", fmt.Errorf("decode envelope: %w", err)
	}
	v, ok := m[field].(string)
	if !ok {
		return "", fmt.Errorf("envelope has no string field %q", field)
	}
	return v, nil
}

// ---------- transport ----------

type ProxyTransport struct {
	provider Provider
	direct   *DirectTransport
}

func NewProxy(p Provider, client *http.Client, timeout time.Duration, maxBytes int64) *ProxyTransport {
	return &ProxyTransport{provider: p, direct: NewDirect(client, timeout, maxBytes)}
}

func (t *ProxyTransport) ID() string { return "proxy:" + t.provider.Name }

func (t *ProxyTransport) Fetch(ctx context.Context, target string) (string, error) {
	body, err := t.direct.Fetch(ctx, t.provider.requestURL(target))
	if err != nil {
		var e *apperr.Error
		if errors.As(err, &e) {
			e.Op = t.ID()
		}
		return "", err
	}

	content, err := t.provider.unwrap(body)
	if err != nil {
		return "", apperr.Wrap(apperr.KindNetwork, t.ID(), "unwrap response", err)
	}
	if !htmltext.LooksLikeHTML(content) {
		return "", apperr.New(apperr.KindEmptyContent, t.ID(), "response is not a usable HTML page")
	}
	return content, nil
}
