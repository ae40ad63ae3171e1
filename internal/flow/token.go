// Package flow implements the relying-party half of the OIDC authorization
// code flow: the anti-forgery state token, the cross-request authorization
// context, the callback access gate and the callback processor.
package flow

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"

	"github.com/openkcm/auth-gateway/internal/sessionstore"
)

const keyStateToken = "oidc_state"

func randString(n int) string {
	const letters = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-"

	ret := make([]byte, n)
	for i := range n {
		num, _ := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		ret[i] = letters[num.Int64()]
	}

	return string(ret)
}

// StateToken issues and confirms the per-session anti-forgery token that is
// round-tripped through the authorization server's state parameter.
type StateToken struct {
	sessions sessionstore.Store
}

func NewStateToken(sessions sessionstore.Store) *StateToken {
	return &StateToken{sessions: sessions}
}

// Issue generates a fresh token and stores it for the session, replacing
// any token of an earlier, unfinished flow. Only one authorization flow is
// in flight per session.
func (t *StateToken) Issue(ctx context.Context, sessionID string) (string, error) {
	token := randString(64)

	if err := t.sessions.Set(ctx, sessionID, keyStateToken, token); err != nil {
		return "", fmt.Errorf("storing state token: %w", err)
	}

	return token, nil
}

// Confirm checks candidate against the stored token and consumes it on
// success. A token confirms at most once: the comparison and the deletion
// are atomic in the store, so a replayed callback URL fails here. On
// mismatch or absence the stored token, if any, is left in place.
func (t *StateToken) Confirm(ctx context.Context, sessionID, candidate string) (bool, error) {
	if candidate == "" {
		return false, nil
	}

	stored, ok, err := t.sessions.Get(ctx, sessionID, keyStateToken)
	if err != nil {
		return false, fmt.Errorf("loading state token: %w", err)
	}
	if !ok {
		return false, nil
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(candidate)) != 1 {
		return false, nil
	}

	// Re-checked atomically: a concurrent confirmation of the same token
	// may have consumed it between the read and this point.
	deleted, err := t.sessions.CompareAndDelete(ctx, sessionID, keyStateToken, candidate)
	if err != nil {
		return false, fmt.Errorf("consuming state token: %w", err)
	}

	return deleted, nil
}
