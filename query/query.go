package query

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sync"
	"time"

	"github.com/christlandtech/storefront-client/internal/apierror"
	"github.com/christlandtech/storefront-client/internal/errors"
	"github.com/christlandtech/storefront-client/internal/utils"
	"github.com/christlandtech/storefront-client/locale"
	"github.com/christlandtech/storefront-client/metrics"
)

// State is the observable state of a Query.
type State[T any] struct {
	// Data is the last successful value. nil before the first success or
	// when the server answered with no content.
	Data *T
	// Loading is true while a request runs and there is no cached value to
	// show for the current key (or KeepPreviousData is off).
	Loading bool
	// Error is the message of the last failed run, cleared on the next attempt.
	Error string
	// Err is the error behind Error.
	Err error
}

// Query is a subscription to one GET resource. Its lifecycle mirrors a UI
// component: Start when it appears, change params as inputs change, Close
// when it goes away. All methods are safe for concurrent use.
type Query[T any] struct {
	client *Client
	path   string

	mu       sync.Mutex
	settings settings
	state    State[T]
	started  bool
	closed   bool

	// generation identifies the current run; results of older runs are dropped
	generation uint64
	cancel     context.CancelFunc

	debounceTimer *time.Timer
	stopTicker    chan struct{}
	unsubscribes  []func()

	subscribers map[int]func(State[T])
	nextSub     int
}

var _ languageChangeListener = (*Query[any])(nil)

// New creates a query for path on client. It issues no request until Start.
func New[T any](client *Client, path string, opts ...Option) *Query[T] {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	if !s.hasTimeout {
		s.timeout = client.timeout
	}

	q := &Query[T]{
		client:      client,
		path:        path,
		settings:    s,
		subscribers: make(map[int]func(State[T])),
	}

	cached, ok := q.cachedLocked(q.keyLocked())
	if ok && s.keepPreviousData {
		q.state.Data = cached
	}
	q.state.Loading = s.enabled && (!ok || !s.keepPreviousData)
	return q
}

// Key returns the cache key for the current params and language.
func (q *Query[T]) Key() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.keyLocked()
}

// State returns a snapshot of the current state.
func (q *Query[T]) State() State[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Subscribe registers fn to receive every state change and returns a function
// that removes it. fn runs outside the query's lock and may call its methods.
func (q *Query[T]) Subscribe(fn func(State[T])) func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := q.nextSub
	q.nextSub++
	q.subscribers[id] = fn
	return func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.subscribers, id)
	}
}

// Start schedules the first run and arms the refresh interval and the focus
// and reconnect triggers. Calling Start again has no effect.
func (q *Query[T]) Start() {
	q.mu.Lock()
	if q.started || q.closed {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()

	q.client.register(q)
	var unsubscribes []func()
	if q.client.focus != nil {
		unsubscribes = append(unsubscribes, q.client.focus.Subscribe(q.onFocus))
	}
	if q.client.reconnect != nil {
		unsubscribes = append(unsubscribes, q.client.reconnect.Subscribe(q.onReconnect))
	}

	q.mu.Lock()
	q.unsubscribes = unsubscribes
	q.mu.Unlock()

	q.effect()
}

// SetParams replaces the query parameters. A run is scheduled only when the
// resulting cache key differs from the current one.
func (q *Query[T]) SetParams(p Params) {
	q.mu.Lock()
	before := q.keyLocked()
	q.settings.params = p
	after := q.keyLocked()
	if before == after {
		q.mu.Unlock()
		return
	}
	notify := func() {}
	if cached, ok := q.cachedLocked(after); ok && q.settings.keepPreviousData {
		q.state.Data = cached
		notify = q.publishLocked()
	}
	q.mu.Unlock()

	notify()
	q.effect()
}

// SetDeps replaces the extra dependencies. A run is scheduled when they differ.
func (q *Query[T]) SetDeps(deps ...any) {
	q.mu.Lock()
	if reflect.DeepEqual(q.settings.deps, deps) {
		q.mu.Unlock()
		return
	}
	q.settings.deps = deps
	q.mu.Unlock()
	q.effect()
}

// SetEnabled turns the query on or off. Disabling aborts any in-flight
// request, stops the timers and returns the state to idle.
func (q *Query[T]) SetEnabled(enabled bool) {
	q.mu.Lock()
	if q.settings.enabled == enabled {
		q.mu.Unlock()
		return
	}
	q.settings.enabled = enabled
	q.mu.Unlock()
	q.effect()
}

// Refetch drops the cached value for the current key and runs the query,
// returning once the run has finished or been superseded.
func (q *Query[T]) Refetch() {
	q.client.cache.Delete(q.Key())
	q.run()
}

// Close aborts any in-flight request and stops every timer and subscription.
// The query cannot be restarted.
func (q *Query[T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.stopTimersLocked()
	q.abortLocked()
	unsubscribes := q.unsubscribes
	q.unsubscribes = nil
	q.mu.Unlock()

	for _, unsubscribe := range unsubscribes {
		unsubscribe()
	}
	q.client.unregister(q)
}

func (q *Query[T]) onLanguageChange() {
	q.effect()
}

func (q *Query[T]) onFocus() {
	q.mu.Lock()
	refetch := q.settings.refetchOnFocus
	q.mu.Unlock()
	if refetch {
		go q.run()
	}
}

func (q *Query[T]) onReconnect() {
	q.mu.Lock()
	refetch := q.settings.refetchOnReconnect
	q.mu.Unlock()
	if refetch {
		go q.run()
	}
}

// effect re-arms the query after a change of key, deps or enabled.
func (q *Query[T]) effect() {
	q.mu.Lock()
	if !q.started || q.closed {
		q.mu.Unlock()
		return
	}
	q.stopTimersLocked()

	if !q.settings.enabled {
		q.abortLocked()
		notify := func() {}
		if q.state.Loading {
			q.state.Loading = false
			notify = q.publishLocked()
		}
		q.mu.Unlock()
		notify()
		return
	}

	if q.settings.debounce > 0 {
		q.debounceTimer = time.AfterFunc(q.settings.debounce, q.run)
	} else {
		go q.run()
	}
	if q.settings.refreshInterval > 0 {
		q.startTickerLocked(q.settings.refreshInterval)
	}
	q.mu.Unlock()
}

func (q *Query[T]) startTickerLocked(interval time.Duration) {
	stop := make(chan struct{})
	q.stopTicker = stop
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				q.run()
			}
		}
	}()
}

func (q *Query[T]) stopTimersLocked() {
	if q.debounceTimer != nil {
		q.debounceTimer.Stop()
		q.debounceTimer = nil
	}
	if q.stopTicker != nil {
		close(q.stopTicker)
		q.stopTicker = nil
	}
}

// abortLocked cancels the in-flight request and invalidates its result.
func (q *Query[T]) abortLocked() {
	if q.cancel != nil {
		q.cancel()
		q.cancel = nil
	}
	q.generation++
}

// run performs one request for the current key. A newer run supersedes it:
// the older request is cancelled and its result never reaches state or cache.
func (q *Query[T]) run() {
	q.mu.Lock()
	if q.closed || !q.settings.enabled {
		q.mu.Unlock()
		return
	}
	q.abortLocked()
	generation := q.generation

	ctx, cancel := context.WithCancel(context.Background())
	if q.settings.timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, q.settings.timeout)
		parentCancel := cancel
		cancel = func() {
			cancelTimeout()
			parentCancel()
		}
	}
	q.cancel = cancel

	lang := q.client.Lang()
	key := q.keyLocked()
	_, cached := q.client.cache.Get(key)
	q.client.metrics.RecordCacheLookup(cached)

	notify := func() {}
	if !cached || !q.settings.keepPreviousData {
		q.state.Loading = true
		q.state.Error = ""
		q.state.Err = nil
		notify = q.publishLocked()
	}
	selectFn := q.settings.selectFn
	timeout := q.settings.timeout
	q.mu.Unlock()
	notify()

	data, outcome, err := q.fetch(ctx, q.client.url(key), lang, selectFn)
	ctxErr := ctx.Err()
	cancel()

	q.mu.Lock()
	if generation != q.generation || q.closed {
		q.mu.Unlock()
		return
	}
	q.cancel = nil

	if err != nil && errors.Is(ctxErr, context.Canceled) {
		q.mu.Unlock()
		q.client.metrics.RecordQuery(q.path, metrics.QueryCancelled)
		return
	}

	onSuccess := q.settings.onSuccess
	onError := q.settings.onError
	var message string
	if err != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			outcome = metrics.QueryTimeout
			err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
			message = q.client.localizer.Message(lang, locale.MsgRequestTimeout, map[string]any{"Timeout": timeout})
		} else {
			message = q.errorMessage(lang, outcome, err)
		}
		q.state.Loading = false
		q.state.Error = message
		q.state.Err = err
	} else {
		q.client.cache.Set(key, data)
		q.state = State[T]{Data: data}
	}
	notify = q.publishLocked()
	q.mu.Unlock()

	q.client.metrics.RecordQuery(q.path, outcome)
	notify()

	if err != nil {
		q.client.logger.Debug().Err(err).Str("key", key).Str("outcome", outcome).Msg("query: run failed")
		if onError != nil {
			onError(message)
		}
		return
	}
	if onSuccess != nil {
		onSuccess(data)
	}
}

// fetch issues the GET and decodes the body. It returns the metrics outcome
// along with the result.
func (q *Query[T]) fetch(ctx context.Context, url, lang string, selectFn func(json.RawMessage) (any, error)) (*T, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, metrics.QueryNetwork, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", lang)

	res, err := q.client.fetcher.Do(req)
	if err != nil {
		return nil, metrics.QueryNetwork, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, metrics.QueryNetwork, err
	}

	contentType := res.Header.Get("Content-Type")
	isJSON := utils.IsJSONContentType(contentType)
	if res.StatusCode != http.StatusNoContent && !isJSON {
		return nil, metrics.QueryNonJSON, apierror.NonJSON(res.StatusCode, body,
			q.client.localizer.Message(lang, locale.MsgNonJSONResponse, map[string]any{
				"Status":  res.StatusCode,
				"Snippet": utils.Snippet(string(body)),
			}))
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		fallback := q.client.localizer.Message(lang, locale.MsgHTTPStatus, map[string]any{"Status": res.StatusCode})
		return nil, metrics.QueryHTTPError, apierror.FromStatus(res.StatusCode, body, fallback)
	}

	raw := json.RawMessage(body)
	if res.StatusCode == http.StatusNoContent || len(body) == 0 {
		raw = json.RawMessage("null")
	}

	data, err := decode[T](raw, selectFn)
	if err != nil {
		return nil, metrics.QueryDecode, err
	}
	return data, metrics.QuerySuccess, nil
}

func decode[T any](raw json.RawMessage, selectFn func(json.RawMessage) (any, error)) (*T, error) {
	if selectFn != nil {
		out, err := selectFn(raw)
		if err != nil {
			return nil, fmt.Errorf("select: %w", err)
		}
		v, ok := out.(T)
		if !ok {
			return nil, fmt.Errorf("select returned %T, want %T", out, *new(T))
		}
		return &v, nil
	}
	if string(raw) == "null" {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &v, nil
}

func (q *Query[T]) errorMessage(lang, outcome string, err error) string {
	if outcome == metrics.QueryNetwork {
		return q.client.localizer.Message(lang, locale.MsgNetworkError, map[string]any{"Detail": err.Error()})
	}
	return err.Error()
}

func (q *Query[T]) keyLocked() string {
	return BuildURL(q.path, q.settings.params, q.client.Lang())
}

func (q *Query[T]) cachedLocked(key string) (*T, bool) {
	v, ok := q.client.cache.Get(key)
	if !ok {
		return nil, false
	}
	data, _ := v.(*T)
	return data, true
}

// publishLocked snapshots the state for the subscribers. The returned function
// must be called after the lock is released.
func (q *Query[T]) publishLocked() func() {
	if len(q.subscribers) == 0 {
		return func() {}
	}
	snapshot := q.state
	subs := make([]func(State[T]), 0, len(q.subscribers))
	for _, fn := range q.subscribers {
		subs = append(subs, fn)
	}
	return func() {
		for _, fn := range subs {
			fn(snapshot)
		}
	}
}
