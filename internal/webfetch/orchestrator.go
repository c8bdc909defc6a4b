package webfetch

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/toricodesthings/text-metrics-service/internal/apperr"
	"github.com/toricodesthings/text-metrics-service/internal/htmltext"
)

// Page is the reduced text of a fetched web page.
type Page struct {
	URL       string
	Text      string
	Transport string
	Meta      htmltext.PageMeta
}

// Attempt records the outcome of one transport try.
type Attempt struct {
	TransportID string
	Success     bool
	HTML        string
	ErrorKind   apperr.Kind
	Duration    time.Duration
}

type Orchestrator struct {
	log          *zap.Logger
	chain        []Transport
	allowPrivate bool
	onAttempt    func(Attempt)
}

type Option func(*Orchestrator)

// WithAllowPrivate lets the orchestrator fetch loopback and private hosts.
func WithAllowPrivate(allow bool) Option {
	return func(o *Orchestrator) { o.allowPrivate = allow }
}

// WithAttemptHook registers a callback run after every transport attempt.
func WithAttemptHook(fn func(Attempt)) Option {
	return func(o *Orchestrator) { o.onAttempt = fn }
}

func New(log *zap.Logger, chain []Transport, opts ...Option) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	o := &Orchestrator{log: log, chain: chain}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type ChainOptions struct {
	Client *http.Client
	// DirectClient fetches target pages from this host. Defaults to Client.
	DirectClient  *http.Client
	RelayURL      string
	RelayTimeout  time.Duration
	DirectTimeout time.Duration
	ProxyTimeout  time.Duration
	MaxBodyBytes  int64
	Providers     []Provider
}

// DefaultChain builds relay (when configured), direct, then one transport
// per proxy provider in order.
func DefaultChain(opts ChainOptions) []Transport {
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	providers := opts.Providers
	if len(providers) == 0 {
		providers = DefaultProviders
	}

	chain := make([]Transport, 0, len(providers)+2)
	if opts.RelayURL != "" {
		chain = append(chain, NewRelay(client, opts.RelayURL, opts.RelayTimeout, opts.MaxBodyBytes))
	}
	direct := opts.DirectClient
	if direct == nil {
		direct = client
	}
	chain = append(chain, NewDirect(direct, opts.DirectTimeout, opts.MaxBodyBytes))
	for _, p := range providers {
		chain = append(chain, NewProxy(p, client, opts.ProxyTimeout, opts.MaxBodyBytes))
	}
	return chain
}

// FetchPageText walks the transport chain until one returns acceptable HTML,
// then reduces it to text. Per-transport failures only advance the chain.
func (o *Orchestrator) FetchPageText(ctx context.Context, rawURL string) (Page, error) {
	u, err := ValidateURL(rawURL, o.allowPrivate)
	if err != nil {
		return Page{}, err
	}
	target := u.String()

	var lastErr error
	for _, t := range o.chain {
		if err := ctx.Err(); err != nil {
			return Page{}, apperr.Classify("fetch", err)
		}

		start := time.Now()
		html, err := t.Fetch(ctx, target)
		attempt := Attempt{TransportID: t.ID(), Duration: time.Since(start)}
		if err != nil {
			attempt.ErrorKind = apperr.KindOf(err)
			o.record(attempt, err)
			lastErr = err
			continue
		}
		attempt.Success = true
		attempt.HTML = html
		o.record(attempt, nil)

		text, err := htmltext.Reduce(html)
		if err != nil {
			if errors.Is(err, htmltext.ErrNoContent) {
				return Page{}, apperr.Wrap(apperr.KindEmptyContent, "fetch", "page has no readable text", err)
			}
			return Page{}, apperr.Wrap(apperr.KindExtraction, "fetch", "could not parse page", err)
		}
		return Page{
			URL:       target,
			Text:      text,
			Transport: t.ID(),
			Meta:      htmltext.Meta(html, target),
		}, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no transports configured")
	}
	return Page{}, apperr.Wrap(apperr.KindAllTransportsFailed, "fetch", "every transport failed", lastErr)
}

func (o *Orchestrator) record(a Attempt, err error) {
	if a.Success {
		o.log.Debug("fetch attempt succeeded",
			zap.String("transport", a.TransportID),
			zap.Int("bytes", len(a.HTML)),
			zap.Duration("took", a.Duration),
		)
	} else {
		o.log.Info("fetch attempt failed",
			zap.String("transport", a.TransportID),
			zap.String("kind", string(a.ErrorKind)),
			zap.Duration("took", a.Duration),
			zap.Error(err),
		)
	}
	if o.onAttempt != nil {
		o.onAttempt(a)
	}
}
