// Package sessionstore abstracts the server-side session state that the
// authentication flow carries between the start-authorization request and
// the callback. Values are scoped to a single browser session and keyed by
// short field names.
package sessionstore

import "context"

// Store is the server-side session state.
//
// A session is expected to be written by one request at a time; the only
// operation that must hold up against racing requests is CompareAndDelete,
// which backs the single-use guarantee of the anti-forgery state token.
type Store interface {
	// Get returns the value stored under key, and whether it was present.
	Get(ctx context.Context, sessionID, key string) (string, bool, error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, sessionID, key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, sessionID, key string) error

	// CompareAndDelete removes key only if its current value equals expect,
	// atomically, and reports whether it did. An absent key yields false.
	CompareAndDelete(ctx context.Context, sessionID, key, expect string) (bool, error)
}
