package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/christlandtech/storefront-client/apiclient"
	"github.com/christlandtech/storefront-client/catalog"
	"github.com/christlandtech/storefront-client/internal/config"
	"github.com/christlandtech/storefront-client/locale"
	"github.com/christlandtech/storefront-client/metrics"
	"github.com/christlandtech/storefront-client/query"
	"github.com/christlandtech/storefront-client/session"
	"github.com/christlandtech/storefront-client/session/kvstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// app holds the wired client stack shared by every command.
type app struct {
	cfg     config.Config
	logger  zerolog.Logger
	kv      session.KeyValueStore
	store   *session.Store
	lang    *locale.Service
	api     *apiclient.Client
	queries *query.Client
	catalog *catalog.Service

	metricsServer *http.Server
	closed        bool
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()
}

func newKeyValueStore(cfg config.SessionConfig) (session.KeyValueStore, error) {
	switch cfg.GetSessionStore() {
	case config.SessionStoreMemory:
		return kvstore.NewMemoryStore(), nil
	case config.SessionStoreFile:
		return kvstore.NewFileStore(cfg.GetSessionFile(), cfg.GetSessionPassphrase()), nil
	case config.SessionStoreRedis:
		return kvstore.NewRedisStore(cfg.GetRedisAddr(), cfg.GetRedisPrefix(), cfg.GetRedisTTL()), nil
	}
	return nil, fmt.Errorf("unknown session store %q", cfg.GetSessionStore())
}

func newApp(ctx context.Context, logger zerolog.Logger) (*app, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	kv, err := newKeyValueStore(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, kv: kv}

	var m *metrics.Metrics
	if addr := cfg.GetMetricsAddr(); addr != "" {
		reg := prometheus.NewRegistry()
		m = metrics.New(reg)
		a.metricsServer = &http.Server{
			Addr:              addr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go a.serveMetrics()
	}

	a.store = session.NewStore(kv,
		session.WithLoginRoute(cfg.GetLoginRoute()),
		session.WithLogger(logger),
		session.WithNavigator(session.NavigatorFunc(func(route string) {
			logger.Warn().Str("route", route).Msg("session ended, please log in again")
		})),
	)
	a.lang = locale.NewService(ctx, kv, cfg.GetDefaultLang(), locale.WithLogger(logger))
	a.api = apiclient.New(cfg, a.store,
		apiclient.WithHTTPClient(apiclient.NewHTTPClient(cfg.GetAPITimeout(), cfg.GetOtelEnabled())),
		apiclient.WithLanguage(a.lang),
		apiclient.WithMetrics(m),
		apiclient.WithLogger(logger),
	)
	a.queries = query.NewClient(a.api, cfg.GetAPIBaseURL(),
		query.WithLanguage(a.lang),
		query.WithMetrics(m),
		query.WithLogger(logger),
		query.WithDefaultTimeout(cfg.GetQueryTimeout()),
	)
	a.catalog = catalog.NewService(a.queries, a.api, catalog.WithLatestRefresh(cfg.GetLatestRefreshRate()))
	return a, nil
}

func (a *app) serveMetrics() {
	a.logger.Info().Str("addr", a.metricsServer.Addr).Msg("metrics listening")
	if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.logger.Error().Err(err).Msg("metrics server stopped")
	}
}

// close stops queries and the metrics server and releases the session
// storage. It is safe to call more than once.
func (a *app) close() {
	if a.closed {
		return
	}
	a.closed = true
	a.queries.Close()
	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.metricsServer.Shutdown(ctx)
	}
	if closer, ok := a.kv.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("closing session storage")
		}
	}
}

func (a *app) msg(id string, data map[string]any) string {
	return locale.DefaultLocalizer.Message(a.lang.Current(), id, data)
}
