package fakeapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/christlandtech/storefront-client/token"
)

type contextKey string

const contextKeyClaims contextKey = "claims"

// RequireAuth rejects requests without a valid Bearer access token with a 401.
func (s *Server) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || raw == "" {
			WriteJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Informations d'authentification non fournies."})
			return
		}
		claims, err := verify(raw, TokenTypeAccess)
		if err != nil {
			WriteJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token invalide ou expiré."})
			return
		}
		ctx := context.WithValue(r.Context(), contextKeyClaims, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimsFrom returns the access token claims set by RequireAuth.
func ClaimsFrom(r *http.Request) *token.Claims {
	claims, _ := r.Context().Value(contextKeyClaims).(*token.Claims)
	if claims == nil {
		return &token.Claims{}
	}
	return claims
}
