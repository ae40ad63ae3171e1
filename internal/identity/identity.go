// Package identity maps external identities, as asserted in retrieved ID
// tokens, to local user accounts. It implements the login and account-link
// completion the callback processor dispatches to.
package identity

import "context"

type User struct {
	ID          string
	Email       string
	DisplayName string
}

// Repository persists users and their links to external identities. A link
// is unique per (provider, subject) pair.
type Repository interface {
	// GetUserBySubject returns the user linked to the provider's subject,
	// or serviceerr.ErrNotFound.
	GetUserBySubject(ctx context.Context, provider, subject string) (User, error)

	CreateUser(ctx context.Context, user User) error

	// LinkIdentity records that the provider's subject belongs to the user.
	// An existing link for the pair is serviceerr.ErrConflict.
	LinkIdentity(ctx context.Context, userID, provider, subject string) error
}
