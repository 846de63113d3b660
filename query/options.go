package query

import (
	"encoding/json"
	"time"
)

type settings struct {
	params             Params
	deps               []any
	keepPreviousData   bool
	debounce           time.Duration
	selectFn           func(raw json.RawMessage) (any, error)
	enabled            bool
	refreshInterval    time.Duration
	refetchOnFocus     bool
	refetchOnReconnect bool
	timeout            time.Duration
	hasTimeout         bool
	onSuccess          func(data any)
	onError            func(message string)
}

func defaultSettings() settings {
	return settings{
		keepPreviousData:   true,
		enabled:            true,
		refetchOnFocus:     true,
		refetchOnReconnect: true,
	}
}

// Option configures a Query.
type Option func(*settings)

// WithParams sets the query string parameters. They are part of the cache key.
func WithParams(p Params) Option {
	return func(s *settings) {
		s.params = p
	}
}

// WithDeps sets extra values whose change forces a refetch without changing
// the cache key.
func WithDeps(deps ...any) Option {
	return func(s *settings) {
		s.deps = deps
	}
}

// KeepPreviousData controls whether a refetch keeps showing the cached value
// instead of flipping to loading. Defaults to true.
func KeepPreviousData(keep bool) Option {
	return func(s *settings) {
		s.keepPreviousData = keep
	}
}

// WithDebounce delays each run by d after the key changes, so bursts of
// changes produce a single request for the final key.
func WithDebounce(d time.Duration) Option {
	return func(s *settings) {
		s.debounce = d
	}
}

// WithSelect transforms the raw JSON body before it is cached and exposed.
// A 204 response reaches fn as the JSON literal null.
func WithSelect[T any](fn func(raw json.RawMessage) (T, error)) Option {
	return func(s *settings) {
		s.selectFn = func(raw json.RawMessage) (any, error) {
			return fn(raw)
		}
	}
}

// Enabled controls whether the query issues requests. Defaults to true.
func Enabled(enabled bool) Option {
	return func(s *settings) {
		s.enabled = enabled
	}
}

// WithRefreshInterval re-runs the query every d while it is started.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *settings) {
		s.refreshInterval = d
	}
}

// RefetchOnWindowFocus controls refetching on focus signals. Defaults to true.
func RefetchOnWindowFocus(refetch bool) Option {
	return func(s *settings) {
		s.refetchOnFocus = refetch
	}
}

// RefetchOnReconnect controls refetching on reconnect signals. Defaults to true.
func RefetchOnReconnect(refetch bool) Option {
	return func(s *settings) {
		s.refetchOnReconnect = refetch
	}
}

// WithTimeout bounds each request. A timed out request is reported as an
// error, unlike a superseded one. Zero disables the client default.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.timeout = d
		s.hasTimeout = true
	}
}

// OnSuccess is called after each successful run with the new data.
func OnSuccess[T any](fn func(data *T)) Option {
	return func(s *settings) {
		s.onSuccess = func(data any) {
			v, _ := data.(*T)
			fn(v)
		}
	}
}

// OnError is called after each failed run with the error message.
func OnError(fn func(message string)) Option {
	return func(s *settings) {
		s.onError = fn
	}
}
