package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	apperrors "github.com/christlandtech/storefront-client/internal/errors"
	"github.com/christlandtech/storefront-client/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// DefaultLoginRoute is where a logged out user is sent.
const DefaultLoginRoute = "/dashboard/Connexion"

// Store is the single source of truth for authentication state.
// It holds no state of its own: every read goes to the KeyValueStore, so
// several processes sharing the same storage observe the same session.
type Store struct {
	kv         KeyValueStore
	navigator  Navigator
	loginRoute string
	logger     zerolog.Logger

	// serialises the multi-slot writes of Login and Logout
	writeLock sync.Mutex
}

type Option func(*Store)

// WithNavigator sets the callback invoked with the login route on logout.
func WithNavigator(n Navigator) Option {
	return func(s *Store) {
		s.navigator = n
	}
}

func WithLoginRoute(route string) Option {
	return func(s *Store) {
		if route != "" {
			s.loginRoute = route
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a session store backed by kv.
func NewStore(kv KeyValueStore, opts ...Option) *Store {
	s := &Store{
		kv:         kv,
		navigator:  NavigatorFunc(func(string) {}),
		loginRoute: DefaultLoginRoute,
		logger:     log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Access returns the stored access token, or "" when none is stored.
// Storage read failures are logged and reported as an absent token.
func (s *Store) Access(ctx context.Context) string {
	return s.read(ctx, AccessKey)
}

// SetAccess stores the access token. An empty token removes the slot.
func (s *Store) SetAccess(ctx context.Context, accessToken string) error {
	return s.write(ctx, AccessKey, accessToken)
}

// Refresh returns the stored refresh token, or "" when none is stored.
func (s *Store) Refresh(ctx context.Context) string {
	return s.read(ctx, RefreshKey)
}

// SetRefresh stores the refresh token. An empty token removes the slot.
func (s *Store) SetRefresh(ctx context.Context, refreshToken string) error {
	return s.write(ctx, RefreshKey, refreshToken)
}

// User returns the stored identity snapshot. Corrupt JSON yields nil.
func (s *Store) User(ctx context.Context) *User {
	raw := s.read(ctx, UserKey)
	if raw == "" || raw == "null" {
		return nil
	}
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		s.logger.Warn().Err(err).Msg("session: stored user is not valid JSON")
		return nil
	}
	return &u
}

// SetUser stores the identity snapshot. A nil user removes the slot.
func (s *Store) SetUser(ctx context.Context, u *User) error {
	if u == nil {
		return s.write(ctx, UserKey, "")
	}
	b, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("session.SetUser: %w", err)
	}
	return s.write(ctx, UserKey, string(b))
}

// Login records a fresh session. Token structure is not validated here;
// expiry is checked lazily whenever the access token is used.
func (s *Store) Login(ctx context.Context, accessToken, refreshToken string, u *User) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	if err := s.SetAccess(ctx, accessToken); err != nil {
		return err
	}
	if err := s.SetRefresh(ctx, refreshToken); err != nil {
		return err
	}
	if err := s.SetUser(ctx, u); err != nil {
		return err
	}
	s.logger.Debug().Str("email", userEmail(u)).Msg("session: logged in")
	return nil
}

// IsLoggedIn reports whether a non-expired access token is stored.
// The refresh token is not considered.
func (s *Store) IsLoggedIn(ctx context.Context) bool {
	_, err := s.validToken(ctx)
	return err == nil
}

// BearerHeader returns an Authorization header for the current access token,
// or an empty header when the token is missing or expired.
func (s *Store) BearerHeader(ctx context.Context) http.Header {
	h := http.Header{}
	tok, err := s.validToken(ctx)
	if err != nil {
		return h
	}
	h.Set("Authorization", tok.Type()+" "+tok.AccessToken)
	return h
}

// TokenSource exposes the session as an oauth2.TokenSource so it can drive
// oauth2-aware HTTP clients. The source never refreshes on its own.
func (s *Store) TokenSource(ctx context.Context) oauth2.TokenSource {
	return tokenSource{ctx: ctx, store: s}
}

type tokenSource struct {
	ctx   context.Context
	store *Store
}

func (ts tokenSource) Token() (*oauth2.Token, error) {
	return ts.store.validToken(ts.ctx)
}

func (s *Store) validToken(ctx context.Context) (*oauth2.Token, error) {
	access := s.Access(ctx)
	if access == "" || token.IsExpired(access) {
		return nil, apperrors.ErrNoValidToken
	}
	exp, err := token.ExpiresAt(access)
	if err != nil {
		return nil, apperrors.ErrNoValidToken
	}
	return &oauth2.Token{AccessToken: access, TokenType: "Bearer", Expiry: exp}, nil
}

// Logout clears every slot and asks the navigator to show the login route.
// Navigation happens even when clearing storage fails, so no partially logged
// out state is left on screen.
func (s *Store) Logout(ctx context.Context) error {
	s.writeLock.Lock()
	var errs []error
	for _, key := range []string{AccessKey, RefreshKey, UserKey} {
		if err := s.kv.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
		}
	}
	s.writeLock.Unlock()

	err := errors.Join(errs...)
	if err != nil {
		s.logger.Error().Err(err).Msg("session: logout could not clear storage")
	} else {
		s.logger.Info().Str("route", s.loginRoute).Msg("session: logged out")
	}

	s.navigator.Navigate(s.loginRoute)
	return err
}

// LoginRoute returns the route sent to the navigator on logout.
func (s *Store) LoginRoute() string {
	return s.loginRoute
}

func (s *Store) read(ctx context.Context, key string) string {
	value, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("session: storage read failed")
		return ""
	}
	if !ok {
		return ""
	}
	return value
}

func (s *Store) write(ctx context.Context, key, value string) error {
	if value == "" {
		if err := s.kv.Delete(ctx, key); err != nil {
			return fmt.Errorf("session: delete %s: %w", key, err)
		}
		return nil
	}
	if err := s.kv.Set(ctx, key, value); err != nil {
		return fmt.Errorf("session: set %s: %w", key, err)
	}
	return nil
}

func userEmail(u *User) string {
	if u == nil {
		return ""
	}
	return u.Email
}
