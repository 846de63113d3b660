package token_test

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/christlandtech/storefront-client/internal/errors"
	"github.com/christlandtech/storefront-client/token"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func withFixedNow(t *testing.T) {
	t.Helper()
	prev := token.NowTimeFunc
	token.NowTimeFunc = func() time.Time { return fixedNow }
	t.Cleanup(func() { token.NowTimeFunc = prev })
}

func signed(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	s, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestIsExpired(t *testing.T) {
	withFixedNow(t)

	t.Run("not a jwt", func(t *testing.T) {
		require.True(t, token.IsExpired("not.a.jwt"))
	})

	t.Run("empty", func(t *testing.T) {
		require.True(t, token.IsExpired(""))
	})

	t.Run("two segments", func(t *testing.T) {
		require.True(t, token.IsExpired("abc.def"))
	})

	t.Run("valid for one hour", func(t *testing.T) {
		raw := signed(t, jwtlib.MapClaims{"typ": "access", "uid": 7, "exp": fixedNow.Add(time.Hour).Unix()})
		require.False(t, token.IsExpired(raw))
	})

	t.Run("expiry equal to now", func(t *testing.T) {
		raw := signed(t, jwtlib.MapClaims{"exp": fixedNow.Unix()})
		require.True(t, token.IsExpired(raw))
	})

	t.Run("expiry in the past", func(t *testing.T) {
		raw := signed(t, jwtlib.MapClaims{"exp": fixedNow.Add(-time.Second).Unix()})
		require.True(t, token.IsExpired(raw))
	})

	t.Run("no exp claim", func(t *testing.T) {
		raw := signed(t, jwtlib.MapClaims{"uid": 7})
		require.True(t, token.IsExpired(raw))
	})

	t.Run("header is not decoded", func(t *testing.T) {
		raw := signed(t, jwtlib.MapClaims{"exp": fixedNow.Add(time.Minute).Unix()})
		parts := strings.Split(raw, ".")
		require.False(t, token.IsExpired("not-a-header."+parts[1]+".sig"))
	})

	t.Run("payload is not json", func(t *testing.T) {
		payload := base64.RawURLEncoding.EncodeToString([]byte("exp=9999999999"))
		require.True(t, token.IsExpired("h."+payload+".s"))
	})

	t.Run("signature is not checked", func(t *testing.T) {
		raw := signed(t, jwtlib.MapClaims{"exp": fixedNow.Add(time.Minute).Unix()})
		parts := strings.Split(raw, ".")
		tampered := parts[0] + "." + parts[1] + "." + base64.RawURLEncoding.EncodeToString([]byte("bogus"))
		require.False(t, token.IsExpired(tampered))
	})
}

func TestDecodeClaims(t *testing.T) {
	withFixedNow(t)

	raw := signed(t, jwtlib.MapClaims{
		"typ":   "access",
		"uid":   42,
		"email": "admin@example.com",
		"role":  "admin",
		"iat":   fixedNow.Unix(),
		"exp":   fixedNow.Add(24 * time.Hour).Unix(),
	})

	claims, err := token.DecodeClaims(raw)
	require.NoError(t, err)
	require.Equal(t, "access", claims.Type)
	require.Equal(t, int64(42), claims.UserID)
	require.Equal(t, "admin@example.com", claims.Email)
	require.Equal(t, "admin", claims.Role)

	exp, ok := claims.Expiry()
	require.True(t, ok)
	require.Equal(t, fixedNow.Add(24*time.Hour).Unix(), exp.Unix())

	_, err = token.DecodeClaims("garbage")
	require.ErrorIs(t, err, errors.ErrMalformedToken)
}

func TestExpiresAt(t *testing.T) {
	raw := signed(t, jwtlib.MapClaims{"uid": 1})
	_, err := token.ExpiresAt(raw)
	require.ErrorIs(t, err, errors.ErrMissingExpiry)
}

// Any string that is not a well-formed token must be treated as expired.
func TestIsExpired_MalformedProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("random strings are expired", prop.ForAll(
		func(s string) bool {
			return token.IsExpired(s)
		},
		gen.AnyString(),
	))

	properties.Property("dot-joined random segments are expired", prop.ForAll(
		func(a, b, c string) bool {
			return token.IsExpired(a + "." + b + "." + c)
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
