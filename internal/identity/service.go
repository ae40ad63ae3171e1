package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/auth-gateway/internal/client"
	"github.com/openkcm/auth-gateway/internal/flow"
	"github.com/openkcm/auth-gateway/internal/serviceerr"
	"github.com/openkcm/auth-gateway/internal/sessionstore"
)

const keyCurrentUser = "uid"

// Service implements flow.LoginCompleter and flow.LinkCompleter on top of
// the user repository and the session store.
type Service struct {
	users    Repository
	sessions sessionstore.Store
}

func NewService(users Repository, sessions sessionstore.Store) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
	}
}

// claims are read from the ID token without signature verification; the
// token was retrieved over the client's own token-endpoint connection, not
// from the browser.
type claims struct {
	Subject string
	Email   string
	Name    string
}

func parseClaims(tokens *client.TokenSet) (claims, error) {
	if tokens.IDToken == "" {
		return claims{}, errors.New("token set carries no id token")
	}

	mapClaims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokens.IDToken, mapClaims); err != nil {
		return claims{}, fmt.Errorf("parsing id token: %w", err)
	}

	subject, err := mapClaims.GetSubject()
	if err != nil || subject == "" {
		return claims{}, errors.New("id token carries no subject")
	}

	parsed := claims{Subject: subject}
	if email, ok := mapClaims["email"].(string); ok {
		parsed.Email = email
	}
	if name, ok := mapClaims["name"].(string); ok {
		parsed.Name = name
	}

	return parsed, nil
}

// CompleteLogin maps the asserted identity to a local user, creating one on
// first sight, and authenticates the session. A missing email claim on a
// first login is a failure: the account cannot be provisioned without it.
func (s *Service) CompleteLogin(ctx context.Context, sessionID string, cl client.Client, tokens *client.TokenSet, _ flow.Destination) flow.Result {
	parsed, err := parseClaims(tokens)
	if err != nil {
		return flow.Result{Reason: err.Error()}
	}

	user, err := s.users.GetUserBySubject(ctx, cl.Name(), parsed.Subject)
	switch {
	case errors.Is(err, serviceerr.ErrNotFound):
		user, err = s.provisionUser(ctx, cl.Name(), parsed)
		if err != nil {
			return flow.Result{Reason: err.Error()}
		}
	case err != nil:
		return flow.Result{Reason: fmt.Sprintf("loading user: %v", err)}
	}

	if err := s.sessions.Set(ctx, sessionID, keyCurrentUser, user.ID); err != nil {
		return flow.Result{Reason: fmt.Sprintf("authenticating session: %v", err)}
	}

	slogctx.Info(ctx, "User logged in", "client", cl.Name(), "user_id", user.ID)

	return flow.Result{OK: true}
}

// CompleteLink records the asserted identity as belonging to the given,
// already authenticated user.
func (s *Service) CompleteLink(ctx context.Context, userID string, cl client.Client, tokens *client.TokenSet) flow.Result {
	parsed, err := parseClaims(tokens)
	if err != nil {
		return flow.Result{Reason: err.Error()}
	}

	if err := s.users.LinkIdentity(ctx, userID, cl.Name(), parsed.Subject); err != nil {
		return flow.Result{Reason: fmt.Sprintf("linking identity: %v", err)}
	}

	slogctx.Info(ctx, "Account connected", "client", cl.Name(), "user_id", userID)

	return flow.Result{OK: true}
}

// CurrentUserID returns the authenticated user of the session, empty for
// anonymous.
func (s *Service) CurrentUserID(ctx context.Context, sessionID string) (string, error) {
	userID, _, err := s.sessions.Get(ctx, sessionID, keyCurrentUser)
	if err != nil {
		return "", fmt.Errorf("loading session user: %w", err)
	}

	return userID, nil
}

func (s *Service) provisionUser(ctx context.Context, provider string, parsed claims) (User, error) {
	if parsed.Email == "" {
		return User{}, errors.New("email claim not released by the provider")
	}

	user := User{
		ID:          uuid.NewString(),
		Email:       parsed.Email,
		DisplayName: parsed.Name,
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		return User{}, fmt.Errorf("creating user: %w", err)
	}

	if err := s.users.LinkIdentity(ctx, user.ID, provider, parsed.Subject); err != nil {
		return User{}, fmt.Errorf("linking new user: %w", err)
	}

	return user, nil
}
