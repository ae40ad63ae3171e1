package identitysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openkcm/auth-gateway/internal/identity"
	"github.com/openkcm/auth-gateway/internal/serviceerr"
)

const uniqueViolation = "23505"

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) GetUserBySubject(ctx context.Context, provider, subject string) (identity.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT u.id, u.email, u.display_name
			 FROM users u
			 JOIN external_identities ei ON ei.user_id = u.id
			 WHERE ei.provider = $1 AND ei.subject = $2;`,
		provider, subject)

	var user identity.User
	if err := row.Scan(&user.ID, &user.Email, &user.DisplayName); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return identity.User{}, serviceerr.ErrNotFound
		}

		return identity.User{}, fmt.Errorf("scanning user row: %w", err)
	}

	return user, nil
}

func (r *Repository) CreateUser(ctx context.Context, user identity.User) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (id, email, display_name) VALUES ($1, $2, $3);`,
		user.ID, user.Email, user.DisplayName)
	if err != nil {
		if isUniqueViolation(err) {
			return serviceerr.ErrConflict
		}

		return fmt.Errorf("inserting user: %w", err)
	}

	return nil
}

func (r *Repository) LinkIdentity(ctx context.Context, userID, provider, subject string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO external_identities (user_id, provider, subject) VALUES ($1, $2, $3);`,
		userID, provider, subject)
	if err != nil {
		if isUniqueViolation(err) {
			return serviceerr.ErrConflict
		}

		return fmt.Errorf("inserting external identity: %w", err)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
