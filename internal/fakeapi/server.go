// Package fakeapi is an in-process stand-in for the Christland REST API used
// by tests. It mints and verifies real HS256 tokens and serves the auth
// endpoints; tests register the resource routes they need.
package fakeapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/christlandtech/storefront-client/session"
	"github.com/go-chi/chi/v5"
)

const (
	LoginPath   = "/api/dashboard/auth/login/"
	RefreshPath = "/api/dashboard/auth/refresh/"
	MePath      = "/api/dashboard/auth/me/"
)

type account struct {
	password string
	user     session.User
}

// RecordedRequest is a snapshot of a request received by the server.
type RecordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// Server wraps an httptest.Server routed with chi.
type Server struct {
	*httptest.Server
	router chi.Router

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	mu             sync.Mutex
	accounts       map[string]account
	requests       []RecordedRequest
	refreshHandler http.HandlerFunc

	refreshCalls atomic.Int32
}

// New starts a server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		router:     chi.NewRouter(),
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
		accounts:   make(map[string]account),
	}
	s.router.Use(s.recordMiddleware)
	s.router.Post(LoginPath, s.loginHandler)
	s.router.Post(RefreshPath, s.refreshEntry)
	s.router.With(s.RequireAuth).Get(MePath, s.meHandler)

	s.Server = httptest.NewServer(s.router)
	t.Cleanup(s.Close)
	return s
}

// AddUser registers credentials accepted by the login endpoint.
func (s *Server) AddUser(email, password string, u session.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.Email = email
	s.accounts[email] = account{password: password, user: u}
}

// Public registers an unauthenticated route.
func (s *Server) Public(method, pattern string, h http.HandlerFunc) {
	s.router.Method(method, pattern, h)
}

// Protected registers a route behind RequireAuth.
func (s *Server) Protected(method, pattern string, h http.HandlerFunc) {
	s.router.With(s.RequireAuth).Method(method, pattern, h)
}

// OnRefresh replaces the refresh endpoint behaviour. Calls are still counted.
func (s *Server) OnRefresh(h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshHandler = h
}

func (s *Server) RefreshCalls() int {
	return int(s.refreshCalls.Load())
}

// Requests returns every request received so far, oldest first.
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// RequestsTo returns the recorded requests whose path equals path.
func (s *Server) RequestsTo(path string) []RecordedRequest {
	var out []RecordedRequest
	for _, r := range s.Requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) recordMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(body))
		}
		s.mu.Lock()
		s.requests = append(s.requests, RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
			Body:   body,
		})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"detail": "Corps JSON invalide."})
		return
	}

	s.mu.Lock()
	acc, ok := s.accounts[body.Email]
	s.mu.Unlock()
	if !ok || acc.password != body.Password {
		WriteJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Identifiants invalides."})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"access":  MintToken(TokenTypeAccess, acc.user.ID, s.AccessTTL),
		"refresh": MintToken(TokenTypeRefresh, acc.user.ID, s.RefreshTTL),
		"user":    acc.user,
	})
}

func (s *Server) refreshEntry(w http.ResponseWriter, r *http.Request) {
	s.refreshCalls.Add(1)
	s.mu.Lock()
	h := s.refreshHandler
	s.mu.Unlock()
	if h != nil {
		h(w, r)
		return
	}
	s.refreshHandlerDefault(w, r)
}

func (s *Server) refreshHandlerDefault(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Refresh string `json:"refresh"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Refresh == "" {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"detail": "refresh requis"})
		return
	}
	claims, err := verify(body.Refresh, TokenTypeRefresh)
	if err != nil {
		WriteJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token invalide ou expiré."})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"access": MintToken(TokenTypeAccess, claims.UserID, s.AccessTTL),
	})
}

func (s *Server) meHandler(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acc := range s.accounts {
		if acc.user.ID == claims.UserID {
			WriteJSON(w, http.StatusOK, acc.user)
			return
		}
	}
	WriteJSON(w, http.StatusNotFound, map[string]string{"detail": "Utilisateur introuvable."})
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
