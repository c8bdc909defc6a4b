package webfetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toricodesthings/text-metrics-service/internal/apperr"
)

var articleHTML = "<html><head><title>Doc</title></head><body><div><p>" +
	strings.Repeat("Plenty of words to count here. ", 4) + "</p></div></body></html>"

type fakeTransport struct {
	id    string
	html  string
	err   error
	calls int
}

func (f *fakeTransport) ID() string { return f.id }

func (f *fakeTransport) Fetch(ctx context.Context, target string) (string, error) {
	f.calls++
	return f.html, f.err
}

func TestRelaySuccessSkipsRemainingTransports(t *testing.T) {
	relay := &fakeTransport{id: "relay", html: articleHTML}
	direct := &fakeTransport{id: "direct", html: articleHTML}
	proxy := &fakeTransport{id: "proxy:a", html: articleHTML}

	o := New(nil, []Transport{relay, direct, proxy})
	page, err := o.FetchPageText(context.Background(), "https://example.com/post")
	require.NoError(t, err)

	assert.Equal(t, "relay", page.Transport)
	assert.Contains(t, page.Text, "Plenty of words")
	assert.Equal(t, 1, relay.calls)
	assert.Equal(t, 0, direct.calls)
	assert.Equal(t, 0, proxy.calls)
}

func TestInvalidURLTriesNoTransport(t *testing.T) {
	direct := &fakeTransport{id: "direct", html: articleHTML}
	o := New(nil, []Transport{direct})

	for _, raw := range []string{"", "not a url", "ftp://example.com/x", "https://", "http://127.0.0.1/admin"} {
		_, err := o.FetchPageText(context.Background(), raw)
		assert.Equal(t, apperr.KindInvalidURL, apperr.KindOf(err), raw)
	}
	assert.Equal(t, 0, direct.calls)
}

func TestShortProxyBodyAdvancesChain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/short":
			_, _ = w.Write([]byte("<div>hi</div>"))
		case "/full":
			_, _ = w.Write([]byte(articleHTML))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	short := NewProxy(Provider{Name: "short", URL: srv.URL + "/short?url={url}", Envelope: EnvelopeRaw}, srv.Client(), time.Second, 0)
	full := NewProxy(Provider{Name: "full", URL: srv.URL + "/full?url={url}", Envelope: EnvelopeRaw}, srv.Client(), time.Second, 0)

	var attempts []Attempt
	o := New(nil, []Transport{short, full}, WithAttemptHook(func(a Attempt) { attempts = append(attempts, a) }))

	page, err := o.FetchPageText(context.Background(), "https://example.com/post")
	require.NoError(t, err)
	assert.Equal(t, "proxy:full", page.Transport)

	require.Len(t, attempts, 2)
	assert.False(t, attempts[0].Success)
	assert.Equal(t, apperr.KindEmptyContent, attempts[0].ErrorKind)
	assert.True(t, attempts[1].Success)
}

func TestAllTransportsFailedKeepsLastCause(t *testing.T) {
	o := New(nil, []Transport{
		&fakeTransport{id: "relay", err: apperr.New(apperr.KindNetwork, "relay", "refused")},
		&fakeTransport{id: "direct", err: apperr.Status("direct", http.StatusForbidden)},
	})

	_, err := o.FetchPageText(context.Background(), "https://example.com/post")
	require.Error(t, err)
	assert.Equal(t, apperr.KindAllTransportsFailed, apperr.KindOf(err))
	assert.Equal(t, apperr.KindHTTPStatus, apperr.CauseKind(err))
	assert.Equal(t, http.StatusForbidden, apperr.StatusOf(err))
	assert.Contains(t, apperr.UserMessage(err), "upload")
}

func TestAcceptedPageWithoutTextIsEmptyContent(t *testing.T) {
	empty := "<html><body><script>" + strings.Repeat("var a = 1;", 10) + "</script></body></html>"
	next := &fakeTransport{id: "direct", html: articleHTML}
	o := New(nil, []Transport{&fakeTransport{id: "relay", html: empty}, next})

	_, err := o.FetchPageText(context.Background(), "https://example.com/post")
	assert.Equal(t, apperr.KindEmptyContent, apperr.KindOf(err))
	assert.Equal(t, 0, next.calls)
}

func TestCancelledContextStopsChain(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	direct := &fakeTransport{id: "direct", html: articleHTML}

	_, err := New(nil, []Transport{direct}).FetchPageText(ctx, "https://example.com/post")
	require.Error(t, err)
	assert.Equal(t, 0, direct.calls)
}

func TestDirectTransportStatusAndCharset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla")
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write([]byte("<p>caf\xe9</p>"))
	}))
	defer srv.Close()

	d := NewDirect(srv.Client(), time.Second, 0)

	body, err := d.Fetch(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, "<p>café</p>", body)

	_, err = d.Fetch(context.Background(), srv.URL+"/missing")
	assert.Equal(t, apperr.KindHTTPStatus, apperr.KindOf(err))
	assert.Equal(t, http.StatusNotFound, apperr.StatusOf(err))
}

func TestDirectTransportTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := NewDirect(srv.Client(), 50*time.Millisecond, 0).Fetch(context.Background(), srv.URL)
	assert.Equal(t, apperr.KindTimeout, apperr.KindOf(err))
}

func TestPublicClientRefusesResolvedPrivateAddress(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	_, err := NewDirect(PublicClient(nil), time.Second, 0).Fetch(context.Background(), srv.URL)
	assert.Equal(t, apperr.KindInvalidURL, apperr.KindOf(err))
	assert.Equal(t, 0, hits)
}

func TestRefusePrivateAddress(t *testing.T) {
	assert.NoError(t, refusePrivateAddress("tcp4", "93.184.216.34:443", nil))
	for _, addr := range []string{"10.0.0.5:80", "127.0.0.1:8080", "[::1]:443", "169.254.169.254:80", "100.64.1.1:80"} {
		err := refusePrivateAddress("tcp", addr, nil)
		assert.Equal(t, apperr.KindInvalidURL, apperr.KindOf(err), addr)
	}
}

func TestRelayTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("url") == "https://example.com/empty" {
			_, _ = w.Write([]byte(`{"content":"  "}`))
			return
		}
		_, _ = w.Write([]byte(`{"content":"<html>ok</html>","length":14}`))
	}))
	defer srv.Close()

	relay := NewRelay(srv.Client(), srv.URL+"/api/fetch-url", time.Second, 0)

	got, err := relay.Fetch(context.Background(), "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", got)

	_, err = relay.Fetch(context.Background(), "https://example.com/empty")
	assert.Error(t, err)
}

func TestProviderUnwrap(t *testing.T) {
	tests := []struct {
		name    string
		p       Provider
		body    string
		want    string
		wantErr bool
	}{
		{name: "raw", p: Provider{Envelope: EnvelopeRaw}, body: "<html>x</html>", want: "<html>x</html>"},
		{name: "json", p: Provider{Envelope: EnvelopeJSON, Field: "contents"}, body: `{"contents":"<html>x</html>","status":{}}`, want: "<html>x</html>"},
		{name: "jsonp", p: Provider{Envelope: EnvelopeJSONP, Field: "contents"}, body: `textmetrics({"contents":"<body>(y)</body>"});`, want: "<body>(y)</body>"},
		{name: "json missing field", p: Provider{Envelope: EnvelopeJSON, Field: "contents"}, body: `{"other":1}`, wantErr: true},
		{name: "jsonp malformed", p: Provider{Envelope: EnvelopeJSONP, Field: "contents"}, body: `nothing here`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.p.unwrap(tt.body)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProviderRequestURL(t *testing.T) {
	q := Provider{URL: "https://p.example/get?url={url}"}
	assert.Equal(t, "https://p.example/get?url=https%3A%2F%2Fexample.com%2Fa%3Fb%3D1", q.requestURL("https://example.com/a?b=1"))

	raw := Provider{URL: "https://p.example/fetch/{rawurl}"}
	assert.Equal(t, "https://p.example/fetch/https://example.com/a", raw.requestURL("https://example.com/a"))
}

func TestDefaultChainOrder(t *testing.T) {
	chain := DefaultChain(ChainOptions{RelayURL: "http://localhost/api/fetch-url"})
	require.GreaterOrEqual(t, len(chain), 7)
	assert.Equal(t, "relay", chain[0].ID())
	assert.Equal(t, "direct", chain[1].ID())
	assert.Equal(t, "proxy:allorigins-raw", chain[2].ID())

	noRelay := DefaultChain(ChainOptions{})
	assert.Equal(t, "direct", noRelay[0].ID())
	assert.Len(t, noRelay, len(DefaultProviders)+1)
}

func TestLoadProviders(t *testing.T) {
	got, err := LoadProviders("")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(got), 5)

	dir := t.TempDir()
	path := filepath.Join(dir, "providers.yaml")
	yml := "providers:\n" +
		"  - name: mine\n    url: https://proxy.example/?u={url}\n" +
		"  - name: wrapped\n    url: https://proxy.example/get?u={url}\n    envelope: json\n    field: body\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	got, err = LoadProviders(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, EnvelopeRaw, got[0].Envelope)
	assert.Equal(t, "body", got[1].Field)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("providers:\n  - name: x\n    url: https://nope\n"), 0o600))
	_, err = LoadProviders(bad)
	assert.Error(t, err)

	_, err = LoadProviders(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
