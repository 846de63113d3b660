// Package query provides declarative, cached subscriptions to GET resources of
// the Christland API.
package query

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/christlandtech/storefront-client/locale"
	"github.com/christlandtech/storefront-client/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Fetcher sends HTTP requests. *http.Client and *apiclient.Client both qualify.
type Fetcher interface {
	Do(req *http.Request) (*http.Response, error)
}

// Language is the source of the active UI language.
type Language interface {
	Current() string
	Subscribe(fn func(lang string)) (unsubscribe func())
}

// languageChangeListener is implemented by every Query.
type languageChangeListener interface {
	onLanguageChange()
}

// Client binds queries to a fetcher, a cache and the UI language.
type Client struct {
	fetcher   Fetcher
	baseURL   string
	cache     Cache
	language  Language
	localizer *locale.Localizer
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	focus     Trigger
	reconnect Trigger
	timeout   time.Duration

	unsubscribeLanguage func()

	mu      sync.Mutex
	queries map[languageChangeListener]struct{}
}

type ClientOption func(*Client)

// WithCache replaces the default MemoryCache, e.g. to share one cache between
// several clients.
func WithCache(cache Cache) ClientOption {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithLanguage sets the language injected in every request. Without it every
// request uses the default language.
func WithLanguage(lang Language) ClientOption {
	return func(c *Client) {
		c.language = lang
	}
}

func WithLocalizer(l *locale.Localizer) ClientOption {
	return func(c *Client) {
		c.localizer = l
	}
}

func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithFocusTrigger sets the source of "application regained focus" signals.
func WithFocusTrigger(t Trigger) ClientOption {
	return func(c *Client) {
		c.focus = t
	}
}

// WithReconnectTrigger sets the source of "network is back" signals.
func WithReconnectTrigger(t Trigger) ClientOption {
	return func(c *Client) {
		c.reconnect = t
	}
}

// WithDefaultTimeout sets the per-request timeout used by queries that do not
// set their own. Zero means no timeout.
func WithDefaultTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// NewClient creates a Client issuing requests through fetcher against baseURL.
func NewClient(fetcher Fetcher, baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		fetcher:   fetcher,
		baseURL:   strings.TrimRight(baseURL, "/"),
		cache:     NewMemoryCache(),
		localizer: locale.DefaultLocalizer,
		logger:    log.Logger,
		queries:   make(map[languageChangeListener]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.language != nil {
		c.unsubscribeLanguage = c.language.Subscribe(c.languageChanged)
	}
	return c
}

// Cache returns the cache shared by the client's queries.
func (c *Client) Cache() Cache {
	return c.cache
}

// Lang returns the language injected in requests.
func (c *Client) Lang() string {
	if c.language == nil {
		return locale.Normalize("")
	}
	return c.language.Current()
}

// Close stops listening for language changes. Queries must be closed separately.
func (c *Client) Close() {
	if c.unsubscribeLanguage != nil {
		c.unsubscribeLanguage()
	}
}

// languageChanged drops every cached value, then lets live queries refetch
// under their new key.
func (c *Client) languageChanged(lang string) {
	c.cache.Clear()
	c.metrics.RecordCacheClear()
	c.logger.Debug().Str("lang", lang).Msg("query: language changed, cache cleared")

	c.mu.Lock()
	listeners := make([]languageChangeListener, 0, len(c.queries))
	for q := range c.queries {
		listeners = append(listeners, q)
	}
	c.mu.Unlock()

	for _, q := range listeners {
		q.onLanguageChange()
	}
}

func (c *Client) register(q languageChangeListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries[q] = struct{}{}
}

func (c *Client) unregister(q languageChangeListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.queries, q)
}

func (c *Client) url(key string) string {
	if strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://") {
		return key
	}
	return c.baseURL + key
}
