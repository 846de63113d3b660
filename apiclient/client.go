// Package apiclient sends requests to the Christland API on behalf of the
// current session, refreshing the access token once when the server answers 401.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/christlandtech/storefront-client/internal/config"
	"github.com/christlandtech/storefront-client/internal/errors"
	"github.com/christlandtech/storefront-client/internal/utils"
	"github.com/christlandtech/storefront-client/metrics"
	"github.com/christlandtech/storefront-client/session"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const RequestIDHeader = "X-Request-ID"

// LanguageSource supplies the active UI language.
type LanguageSource interface {
	Current() string
}

// Client is the authenticated request wrapper. It is safe for concurrent use.
type Client struct {
	baseURL    string
	refreshURL string
	loginURL   string

	session  *session.Store
	http     *http.Client
	language LanguageSource
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	// concurrent 401s holding the same refresh token share one refresh call
	refreshGroup singleflight.Group
}

type Option func(*Client)

// WithHTTPClient sets the client used for every outbound call, including the
// refresh call.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLanguage sets the source of the Accept-Language header.
func WithLanguage(src LanguageSource) Option {
	return func(c *Client) {
		c.language = src
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewHTTPClient returns an http.Client with the given timeout. When tracing is
// set, outbound calls are wrapped in OpenTelemetry client spans.
func NewHTTPClient(timeout time.Duration, tracing bool) *http.Client {
	var transport http.RoundTripper = http.DefaultTransport
	if tracing {
		transport = otelhttp.NewTransport(transport)
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// New creates a Client for the API described by cfg, authenticating with store.
func New(cfg config.APIConfig, store *session.Store, opts ...Option) *Client {
	c := &Client{
		baseURL:    cfg.GetAPIBaseURL(),
		refreshURL: cfg.GetRefreshURL(),
		loginURL:   cfg.GetLoginURL(),
		session:    store,
		http:       NewHTTPClient(cfg.GetAPITimeout(), false),
		logger:     log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the store the client authenticates with.
func (c *Client) Session() *session.Store {
	return c.session
}

// URL resolves path against the API base. Absolute URLs are returned as is.
func (c *Client) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// Do sends req with the session's credentials.
//
// Responses other than 401 are returned unchanged. On a 401 the stored refresh
// token is exchanged for a new access token and req is sent exactly once more;
// that second response is returned whatever its status. When there is no
// refresh token the 401 is returned without a retry. When the refresh itself
// fails the session is logged out and the original 401 is returned.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	ctx := req.Context()

	if err := bufferBody(req); err != nil {
		return nil, fmt.Errorf("[apiclient Do] buffer body: %w", err)
	}

	var tok *oauth2.Token
	if t, err := c.session.TokenSource(ctx).Token(); err == nil {
		tok = t
	}

	res, err := c.send(req, tok)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusUnauthorized {
		c.metrics.RecordRequest(req.Method, res.StatusCode, time.Since(start))
		return res, nil
	}

	access, err := c.Refresh(ctx)
	if err != nil {
		c.logger.Debug().Err(err).Str("url", req.URL.Redacted()).Msg("apiclient: 401 not retried")
		c.metrics.RecordRequest(req.Method, res.StatusCode, time.Since(start))
		return res, nil
	}

	retry, err := c.send(req, &oauth2.Token{AccessToken: access, TokenType: "Bearer"})
	if err != nil {
		res.Body.Close()
		return nil, err
	}
	drain(res)
	c.metrics.RecordRequest(req.Method, retry.StatusCode, time.Since(start))
	return retry, nil
}

// send issues a copy of req carrying tok. req.Body must already be replayable.
func (c *Client) send(req *http.Request, tok *oauth2.Token) (*http.Response, error) {
	out := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("[apiclient send] replay body: %w", err)
		}
		out.Body = body
	}

	if tok != nil {
		tok.SetAuthHeader(out)
	}
	hasBody := out.Body != nil && out.Body != http.NoBody
	if hasBody && !utils.IsMultipart(out.Header.Get("Content-Type")) {
		out.Header.Set("Content-Type", "application/json")
	}
	out.Header.Set("Accept", "application/json")
	if out.Header.Get("Accept-Language") == "" && c.language != nil {
		out.Header.Set("Accept-Language", c.language.Current())
	}
	if out.Header.Get(RequestIDHeader) == "" {
		out.Header.Set(RequestIDHeader, uuid.NewString())
	}

	res, err := c.http.Do(out)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().
		Str("method", out.Method).
		Str("url", out.URL.Redacted()).
		Int("status", res.StatusCode).
		Str("request_id", out.Header.Get(RequestIDHeader)).
		Msg("apiclient: response")
	return res, nil
}

// Refresh exchanges the stored refresh token for a new access token and stores
// it. Concurrent callers share one exchange. It fails with ErrNoRefreshToken
// when none is stored and with ErrRefreshFailed when the server rejects it, in
// which case the session has been logged out.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	refresh := c.session.Refresh(ctx)
	if refresh == "" {
		c.metrics.RecordRefresh(metrics.RefreshNoRefreshToken)
		return "", errors.ErrNoRefreshToken
	}

	ch := c.refreshGroup.DoChan(refresh, func() (any, error) {
		return c.exchangeRefresh(context.WithoutCancel(ctx), refresh)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return "", r.Err
		}
		return r.Val.(string), nil
	}
}

// exchangeRefresh runs once per shared refresh. A failure logs the session out.
func (c *Client) exchangeRefresh(ctx context.Context, refresh string) (string, error) {
	access, outcome, err := c.postRefresh(ctx, refresh)
	c.metrics.RecordRefresh(outcome)
	if err != nil {
		c.logger.Warn().Err(err).Str("outcome", outcome).Msg("apiclient: refresh failed, logging out")
		c.metrics.RecordLogout()
		if logoutErr := c.session.Logout(ctx); logoutErr != nil {
			c.logger.Error().Err(logoutErr).Msg("apiclient: logout after failed refresh")
		}
		return "", err
	}

	if err := c.session.SetAccess(ctx, access); err != nil {
		// the retry can still use the new token even if it could not be stored
		c.logger.Error().Err(err).Msg("apiclient: could not store refreshed access token")
	}
	c.logger.Debug().Msg("apiclient: access token refreshed")
	return access, nil
}

func (c *Client) postRefresh(ctx context.Context, refresh string) (string, string, error) {
	payload, err := json.Marshal(map[string]string{"refresh": refresh})
	if err != nil {
		return "", metrics.RefreshInvalidBody, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.refreshURL, bytes.NewReader(payload))
	if err != nil {
		return "", metrics.RefreshNetworkError, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return "", metrics.RefreshNetworkError, errors.Wrapf(errors.ErrRefreshFailed, "refresh request: %v", err)
	}
	defer drain(res)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return "", metrics.RefreshRejected, errors.Wrapf(errors.ErrRefreshFailed, "refresh endpoint answered HTTP %d", res.StatusCode)
	}

	var body struct {
		Access string `json:"access"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", metrics.RefreshInvalidBody, errors.Wrapf(errors.ErrRefreshFailed, "decode refresh response: %v", err)
	}
	if body.Access == "" {
		return "", metrics.RefreshInvalidBody, errors.Wrapf(errors.ErrRefreshFailed, "refresh response has no access token")
	}
	return body.Access, metrics.RefreshSuccess, nil
}

// bufferBody makes req.Body replayable for the retry.
func bufferBody(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}
	data, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return err
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	req.Body, _ = req.GetBody()
	return nil
}

func drain(res *http.Response) {
	_, _ = io.Copy(io.Discard, res.Body)
	res.Body.Close()
}
