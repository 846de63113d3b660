package fakeapi

import (
	"fmt"
	"time"

	"github.com/christlandtech/storefront-client/token"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// DefaultSecret signs every token minted by the fake backend.
var DefaultSecret = []byte("christland-fake-secret")

// MintToken creates an HS256 token the way the backend does. iat and exp are
// taken from token.NowTimeFunc so tests that freeze time get matching tokens.
func MintToken(kind string, userID int64, ttl time.Duration) string {
	now := token.NowTimeFunc()
	claims := jwtlib.MapClaims{
		"typ": kind,
		"uid": userID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
		"jti": uuid.New().String(),
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(DefaultSecret)
	if err != nil {
		panic(fmt.Sprintf("fakeapi: sign token: %v", err))
	}
	return signed
}

// verify checks the signature, expiry and type of raw, returning its claims.
func verify(raw, kind string) (*token.Claims, error) {
	claims := &token.Claims{}
	_, err := jwtlib.ParseWithClaims(raw, claims, func(t *jwtlib.Token) (any, error) {
		return DefaultSecret, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithTimeFunc(token.NowTimeFunc),
		jwtlib.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if claims.Type != kind {
		return nil, fmt.Errorf("token type %q, want %q", claims.Type, kind)
	}
	return claims, nil
}
