package session

import "context"

// Storage slot names, shared with the web storefront so both clients can read
// the same persisted session.
const (
	AccessKey  = "auth_access"
	RefreshKey = "auth_refresh"
	UserKey    = "auth_user"
)

// KeyValueStore is the persistent client-side storage backing a session.
// Each slot holds an independent string value.
type KeyValueStore interface {
	// Get returns the value stored under key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Navigator receives navigation requests from the session, such as the
// redirect to the login route after a logout.
type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(route string)

func (f NavigatorFunc) Navigate(route string) {
	f(route)
}
