package token

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/christlandtech/storefront-client/internal/errors"
	jwtlib "github.com/golang-jwt/jwt/v5"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

var segmentParser = jwtlib.NewParser(jwtlib.WithPaddingAllowed())

// Claims is the payload carried by the API's access and refresh tokens.
// Only ExpiresAt is needed for session decisions; the rest is informational.
type Claims struct {
	jwtlib.RegisteredClaims
	Type   string `json:"typ,omitempty"`   // "access" or "refresh"
	UserID int64  `json:"uid,omitempty"`   // Backend user id
	Email  string `json:"email,omitempty"` // Present on access tokens
	Role   string `json:"role,omitempty"`  // Present on access tokens
}

// Expiry returns the exp claim, or false when the token carries none.
func (c *Claims) Expiry() (time.Time, bool) {
	if c == nil || c.ExpiresAt == nil {
		return time.Time{}, false
	}
	return c.ExpiresAt.Time, true
}

// DecodeClaims reads the claims segment of a three-part token without verifying
// its signature or looking at its header. The client never holds the signing
// key; the server remains the authority on validity.
func DecodeClaims(rawToken string) (*Claims, error) {
	parts := strings.Split(strings.TrimSpace(rawToken), ".")
	if len(parts) != 3 || parts[1] == "" {
		return nil, errors.ErrMalformedToken
	}

	payload, err := segmentParser.DecodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrMalformedToken, err)
	}
	claims := &Claims{}
	if err := json.Unmarshal(payload, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrMalformedToken, err)
	}
	return claims, nil
}

// IsExpired reports whether rawToken must be treated as unusable. Tokens that
// cannot be decoded or carry no exp claim are expired; otherwise the token is
// expired once exp <= now, compared at second granularity.
func IsExpired(rawToken string) bool {
	claims, err := DecodeClaims(rawToken)
	if err != nil {
		return true
	}
	exp, ok := claims.Expiry()
	if !ok {
		return true
	}
	return exp.Unix() <= NowTimeFunc().Unix()
}

// ExpiresAt returns the expiry of rawToken, failing with ErrMissingExpiry when
// the token decodes but has no exp claim.
func ExpiresAt(rawToken string) (time.Time, error) {
	claims, err := DecodeClaims(rawToken)
	if err != nil {
		return time.Time{}, err
	}
	exp, ok := claims.Expiry()
	if !ok {
		return time.Time{}, errors.ErrMissingExpiry
	}
	return exp, nil
}
