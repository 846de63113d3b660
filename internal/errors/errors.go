package errors

import (
	"errors"
	"fmt"
)

// Common error types for the storefront client
var (
	// Session errors
	ErrNoValidToken   = errors.New("no valid access token")
	ErrNoRefreshToken = errors.New("no refresh token")
	ErrRefreshFailed  = errors.New("token refresh failed")
	ErrUnauthorized   = errors.New("unauthorized")

	// Token errors
	ErrMalformedToken = errors.New("malformed token")
	ErrMissingExpiry  = errors.New("token has no exp claim")

	// Response errors
	ErrNonJSONResponse = errors.New("non-JSON response")
	ErrHTTPStatus      = errors.New("unexpected HTTP status")

	// Storage errors
	ErrNotFound      = errors.New("not found")
	ErrSealedStorage = errors.New("sealed storage could not be opened")

	// General errors
	ErrInvalidArgument = errors.New("invalid argument")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
