package query_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/christlandtech/storefront-client/internal/errors"
	"github.com/christlandtech/storefront-client/internal/fakeapi"
	"github.com/christlandtech/storefront-client/locale"
	"github.com/christlandtech/storefront-client/query"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type product struct {
	ID  int    `json:"id"`
	Nom string `json:"nom"`
}

type page struct {
	Count   int       `json:"count"`
	Results []product `json:"results"`
}

type fetcherFunc func(*http.Request) (*http.Response, error)

func (f fetcherFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

type env struct {
	srv       *fakeapi.Server
	client    *query.Client
	lang      *locale.Service
	cache     *query.MemoryCache
	focus     *query.Broadcaster
	reconnect *query.Broadcaster
}

func newEnv(t *testing.T, opts ...query.ClientOption) *env {
	t.Helper()
	e := &env{
		srv:       fakeapi.New(t),
		lang:      locale.NewService(context.Background(), nil, "fr"),
		cache:     query.NewMemoryCache(),
		focus:     query.NewBroadcaster(),
		reconnect: query.NewBroadcaster(),
	}
	all := append([]query.ClientOption{
		query.WithLanguage(e.lang),
		query.WithCache(e.cache),
		query.WithFocusTrigger(e.focus),
		query.WithReconnectTrigger(e.reconnect),
	}, opts...)
	e.client = query.NewClient(e.srv.Client(), e.srv.URL, all...)
	t.Cleanup(e.client.Close)
	return e
}

// products serves a page whose single product is named after the request.
func (e *env) products(t *testing.T) *atomic.Int32 {
	t.Helper()
	var calls atomic.Int32
	e.srv.Public(http.MethodGet, "/api/catalog/products/", func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		fakeapi.WriteJSON(w, http.StatusOK, page{
			Count: int(n),
			Results: []product{{
				ID:  int(n),
				Nom: r.URL.Query().Get("lang") + ":" + r.URL.Query().Get("page"),
			}},
		})
	})
	return &calls
}

func start[T any](t *testing.T, q *query.Query[T]) *query.Query[T] {
	t.Helper()
	q.Start()
	t.Cleanup(q.Close)
	return q
}

func TestQuery_FirstRun(t *testing.T) {
	e := newEnv(t)
	calls := e.products(t)

	q := query.New[page](e.client, "/api/catalog/products/", query.WithParams(query.Params{"page": 1, "category": ""}))
	require.True(t, q.State().Loading)
	start(t, q)

	require.Eventually(t, func() bool { return q.State().Data != nil }, waitFor, tick)
	st := q.State()
	require.False(t, st.Loading)
	require.Empty(t, st.Error)
	require.Equal(t, "fr:1", st.Data.Results[0].Nom)
	require.Equal(t, int32(1), calls.Load())

	got := e.srv.RequestsTo("/api/catalog/products/")
	require.Equal(t, "lang=fr&page=1", got[0].Query)
	require.Equal(t, "application/json", got[0].Header.Get("Accept"))

	_, ok := e.cache.Get("/api/catalog/products/?lang=fr&page=1")
	require.True(t, ok)
}

func TestQuery_CachedValueShownImmediately(t *testing.T) {
	e := newEnv(t)
	e.products(t)

	first := start(t, query.New[page](e.client, "/api/catalog/products/"))
	require.Eventually(t, func() bool { return first.State().Data != nil }, waitFor, tick)

	second := query.New[page](e.client, "/api/catalog/products/")
	st := second.State()
	require.False(t, st.Loading)
	require.NotNil(t, st.Data)

	third := query.New[page](e.client, "/api/catalog/products/", query.KeepPreviousData(false))
	require.Nil(t, third.State().Data)
	require.True(t, third.State().Loading)
}

func TestQuery_NonJSONResponse(t *testing.T) {
	e := newEnv(t)
	e.srv.Public(http.MethodGet, "/api/blog/hero/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, "<html>\n<head><title>502</title></head>\n</html>")
	})

	q := query.New[map[string]any](e.client, "/api/blog/hero/")
	q.Refetch()

	st := q.State()
	require.False(t, st.Loading)
	require.Nil(t, st.Data)
	require.Equal(t, "HTTP 200 — Réponse non-JSON: <html> <head><title>502</title></head> </html>", st.Error)
	require.ErrorIs(t, st.Err, apperrors.ErrNonJSONResponse)
	require.Zero(t, e.cache.Len())
}

func TestQuery_NoContent(t *testing.T) {
	e := newEnv(t)
	e.srv.Public(http.MethodGet, "/api/blog/posts/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	q := query.New[map[string]any](e.client, "/api/blog/posts/")
	q.Refetch()
	st := q.State()
	require.Empty(t, st.Error)
	require.Nil(t, st.Data)
	require.False(t, st.Loading)

	var selected json.RawMessage
	withSelect := query.New[[]product](e.client, "/api/blog/posts/", query.WithSelect(func(raw json.RawMessage) ([]product, error) {
		selected = raw
		return []product{}, nil
	}))
	withSelect.Refetch()
	require.Equal(t, "null", string(selected))
	require.NotNil(t, withSelect.State().Data)
	require.Empty(t, *withSelect.State().Data)
}

func TestQuery_HTTPErrorKeepsData(t *testing.T) {
	e := newEnv(t)
	var fail atomic.Bool
	e.srv.Public(http.MethodGet, "/api/catalog/filters/", func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			fakeapi.WriteJSON(w, http.StatusNotFound, map[string]string{"detail": "Catégorie introuvable."})
			return
		}
		fakeapi.WriteJSON(w, http.StatusOK, map[string]any{"brands": []any{}})
	})

	var errs []string
	q := query.New[map[string]any](e.client, "/api/catalog/filters/", query.OnError(func(msg string) {
		errs = append(errs, msg)
	}))
	q.Refetch()
	require.NotNil(t, q.State().Data)

	fail.Store(true)
	q.Refetch()
	st := q.State()
	require.Equal(t, "Catégorie introuvable.", st.Error)
	require.ErrorIs(t, st.Err, apperrors.ErrNotFound)
	require.NotNil(t, st.Data, "last good data is preserved")
	require.Equal(t, []string{"Catégorie introuvable."}, errs)

	e.srv.Public(http.MethodGet, "/api/catalog/marques/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	bare := query.New[[]product](e.client, "/api/catalog/marques/")
	bare.Refetch()
	require.Equal(t, "HTTP 503", bare.State().Error)
}

func TestQuery_NetworkError(t *testing.T) {
	fetcher := fetcherFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})
	client := query.NewClient(fetcher, "http://api.invalid")

	q := query.New[page](client, "/api/catalog/products/")
	q.Refetch()
	require.Equal(t, "Erreur réseau : connection refused", q.State().Error)
	require.False(t, q.State().Loading)
}

func TestQuery_Timeout(t *testing.T) {
	e := newEnv(t)
	e.srv.Public(http.MethodGet, "/api/dashboard/stats/", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
		fakeapi.WriteJSON(w, http.StatusOK, map[string]int{"users": 1})
	})

	q := query.New[map[string]int](e.client, "/api/dashboard/stats/", query.WithTimeout(50*time.Millisecond))
	q.Refetch()

	st := q.State()
	require.Equal(t, "Délai d'attente dépassé (50ms)", st.Error)
	require.ErrorIs(t, st.Err, context.DeadlineExceeded)
}

func TestQuery_LanguageInKeyAndCacheCleared(t *testing.T) {
	e := newEnv(t)
	calls := e.products(t)
	ctx := context.Background()

	q := start(t, query.New[page](e.client, "/api/catalog/products/", query.WithParams(query.Params{"page": 2})))
	require.Eventually(t, func() bool { return q.State().Data != nil }, waitFor, tick)
	frKey := q.Key()
	require.Equal(t, 1, e.cache.Len())

	require.NoError(t, e.lang.Set(ctx, "en"))
	enKey := q.Key()
	require.NotEqual(t, frKey, enKey)

	// the switch drops the French entry and the live query refetches in English
	require.Eventually(t, func() bool {
		st := q.State()
		return st.Data != nil && st.Data.Results[0].Nom == "en:2"
	}, waitFor, tick)
	require.Equal(t, int32(2), calls.Load())
	_, ok := e.cache.Get(frKey)
	require.False(t, ok)
	_, ok = e.cache.Get(enKey)
	require.True(t, ok)
}

func TestQuery_RefetchTwice(t *testing.T) {
	e := newEnv(t)
	calls := e.products(t)

	q := query.New[page](e.client, "/api/catalog/products/")
	q.Refetch()
	q.Refetch()

	require.Equal(t, int32(2), calls.Load())
	require.Equal(t, 2, q.State().Data.Count)
}

func TestQuery_DebounceCoalesces(t *testing.T) {
	e := newEnv(t)
	calls := e.products(t)

	q := start(t, query.New[page](e.client, "/api/catalog/products/",
		query.WithParams(query.Params{"page": 1}),
		query.WithDebounce(200*time.Millisecond),
	))
	q.SetParams(query.Params{"page": 2})
	time.Sleep(30 * time.Millisecond)
	q.SetParams(query.Params{"page": 3})
	time.Sleep(30 * time.Millisecond)
	q.SetParams(query.Params{"page": 4})

	require.Eventually(t, func() bool { return q.State().Data != nil }, waitFor, tick)
	time.Sleep(250 * time.Millisecond)

	require.Equal(t, int32(1), calls.Load())
	got := e.srv.RequestsTo("/api/catalog/products/")
	require.Len(t, got, 1)
	require.Equal(t, "lang=fr&page=4", got[0].Query)
}

func TestQuery_SameParamsDoNotRefetch(t *testing.T) {
	e := newEnv(t)
	calls := e.products(t)

	q := start(t, query.New[page](e.client, "/api/catalog/products/", query.WithParams(query.Params{"page": 1, "q": ""})))
	require.Eventually(t, func() bool { return calls.Load() == 1 }, waitFor, tick)

	q.SetParams(query.Params{"page": 1})
	q.SetParams(query.Params{"page": 1, "q": ""})
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, int32(1), calls.Load())

	q.SetDeps("filter-open")
	require.Eventually(t, func() bool { return calls.Load() == 2 }, waitFor, tick)
	q.SetDeps("filter-open")
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, int32(2), calls.Load())
}

func TestQuery_SupersededRequestNeverWrites(t *testing.T) {
	e := newEnv(t)
	e.srv.Public(http.MethodGet, "/api/dashboard/search/", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if q == "slow" {
			<-r.Context().Done()
			return
		}
		fakeapi.WriteJSON(w, http.StatusOK, page{Count: 1, Results: []product{{Nom: q}}})
	})

	q := start(t, query.New[page](e.client, "/api/dashboard/search/", query.WithParams(query.Params{"q": "slow"})))
	require.Eventually(t, func() bool { return len(e.srv.RequestsTo("/api/dashboard/search/")) == 1 }, waitFor, tick)

	q.SetParams(query.Params{"q": "fast"})
	require.Eventually(t, func() bool { return q.State().Data != nil }, waitFor, tick)

	st := q.State()
	require.Equal(t, "fast", st.Data.Results[0].Nom)
	require.Empty(t, st.Error, "an aborted request is not an error")
	require.Equal(t, 1, e.cache.Len())
}

func TestQuery_CloseAbortsInFlight(t *testing.T) {
	e := newEnv(t)
	started := make(chan struct{})
	var aborted atomic.Bool
	e.srv.Public(http.MethodGet, "/api/blog/latest/", func(w http.ResponseWriter, r *http.Request) {
		close(started)
		select {
		case <-r.Context().Done():
			aborted.Store(true)
			return
		case <-time.After(waitFor):
		}
		fakeapi.WriteJSON(w, http.StatusOK, []product{{ID: 1}})
	})

	var updates atomic.Int32
	q := query.New[[]product](e.client, "/api/blog/latest/")
	q.Subscribe(func(query.State[[]product]) { updates.Add(1) })
	q.Start()

	select {
	case <-started:
	case <-time.After(waitFor):
		t.Fatal("request never reached the server")
	}
	before := updates.Load()
	q.Close()

	require.Eventually(t, aborted.Load, waitFor, tick)
	time.Sleep(50 * time.Millisecond)

	st := q.State()
	require.Nil(t, st.Data)
	require.Empty(t, st.Error)
	require.NoError(t, st.Err)
	require.Zero(t, e.cache.Len())
	require.Equal(t, before, updates.Load())
}

func TestQuery_Enabled(t *testing.T) {
	e := newEnv(t)
	calls := e.products(t)

	q := query.New[page](e.client, "/api/catalog/products/", query.Enabled(false))
	require.False(t, q.State().Loading)
	start(t, q)
	q.Refetch()
	time.Sleep(50 * time.Millisecond)
	require.Zero(t, calls.Load())

	q.SetEnabled(true)
	require.Eventually(t, func() bool { return q.State().Data != nil }, waitFor, tick)

	q.SetEnabled(false)
	require.False(t, q.State().Loading)
	require.NotNil(t, q.State().Data)
}

func TestQuery_RefreshInterval(t *testing.T) {
	e := newEnv(t)
	calls := e.products(t)

	q := start(t, query.New[page](e.client, "/api/catalog/products/", query.WithRefreshInterval(40*time.Millisecond)))
	require.Eventually(t, func() bool { return calls.Load() >= 4 }, waitFor, tick)

	q.Close()
	time.Sleep(60 * time.Millisecond)
	stopped := calls.Load()
	time.Sleep(120 * time.Millisecond)
	require.Equal(t, stopped, calls.Load())
}

func TestQuery_FocusAndReconnect(t *testing.T) {
	e := newEnv(t)
	calls := e.products(t)

	q := start(t, query.New[page](e.client, "/api/catalog/products/"))
	quiet := start(t, query.New[page](e.client, "/api/catalog/products/",
		query.WithParams(query.Params{"page": 9}),
		query.RefetchOnWindowFocus(false),
		query.RefetchOnReconnect(false),
	))
	require.Eventually(t, func() bool { return calls.Load() == 2 }, waitFor, tick)

	e.focus.Broadcast()
	require.Eventually(t, func() bool { return calls.Load() == 3 }, waitFor, tick)
	e.reconnect.Broadcast()
	require.Eventually(t, func() bool { return calls.Load() == 4 }, waitFor, tick)

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(4), calls.Load())

	q.Close()
	quiet.Close()
	require.Zero(t, e.focus.Subscribers())
	require.Zero(t, e.reconnect.Subscribers())
}

func TestQuery_SubscribeAndCallbacks(t *testing.T) {
	e := newEnv(t)
	e.products(t)

	var mu sync.Mutex
	var states []query.State[page]
	var succeeded *page

	q := query.New[page](e.client, "/api/catalog/products/",
		query.KeepPreviousData(false),
		query.OnSuccess(func(p *page) { succeeded = p }),
	)
	unsubscribe := q.Subscribe(func(st query.State[page]) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, st)
	})
	q.Refetch()
	unsubscribe()
	q.Refetch()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, states, 2)
	require.True(t, states[0].Loading)
	require.False(t, states[1].Loading)
	require.Equal(t, 1, states[1].Data.Count)
	require.NotNil(t, succeeded)
	require.Equal(t, 2, succeeded.Count)
}

func TestQuery_UnauthorizedWithoutCredentials(t *testing.T) {
	e := newEnv(t)
	e.srv.Protected(http.MethodGet, "/api/contact/messages/", func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		fakeapi.WriteJSON(w, http.StatusOK, make([]product, limit))
	})

	q := query.New[[]product](e.client, "/api/contact/messages/", query.WithParams(query.Params{"limit": 3}))
	q.Refetch()

	require.ErrorIs(t, q.State().Err, apperrors.ErrUnauthorized)
	require.Nil(t, q.State().Data)
}
