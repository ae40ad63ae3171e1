package identitymock

import (
	"context"

	"github.com/openkcm/auth-gateway/internal/identity"
	"github.com/openkcm/auth-gateway/internal/serviceerr"
)

type link struct {
	provider, subject string
}

type Repository struct {
	Users map[string]identity.User
	Links map[link]string

	getErr, createErr, linkErr error
}

func NewInMemRepository(getErr, createErr, linkErr error) *Repository {
	return &Repository{
		Users:     make(map[string]identity.User),
		Links:     make(map[link]string),
		getErr:    getErr,
		createErr: createErr,
		linkErr:   linkErr,
	}
}

func (r *Repository) Add(user identity.User, provider, subject string) {
	r.Users[user.ID] = user
	r.Links[link{provider, subject}] = user.ID
}

func (r *Repository) GetUserBySubject(ctx context.Context, provider, subject string) (identity.User, error) {
	if r.getErr != nil {
		return identity.User{}, r.getErr
	}

	userID, ok := r.Links[link{provider, subject}]
	if !ok {
		return identity.User{}, serviceerr.ErrNotFound
	}

	return r.Users[userID], nil
}

func (r *Repository) CreateUser(ctx context.Context, user identity.User) error {
	if r.createErr != nil {
		return r.createErr
	}

	if _, ok := r.Users[user.ID]; ok {
		return serviceerr.ErrConflict
	}

	r.Users[user.ID] = user

	return nil
}

func (r *Repository) LinkIdentity(ctx context.Context, userID, provider, subject string) error {
	if r.linkErr != nil {
		return r.linkErr
	}

	key := link{provider, subject}
	if _, ok := r.Links[key]; ok {
		return serviceerr.ErrConflict
	}

	r.Links[key] = userID

	return nil
}
