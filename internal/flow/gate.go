package flow

import "context"

// RedirectGate is the access control on the callback endpoint. The state
// token round trip is the sole anti-CSRF defense there: the gate must run,
// and allow, before the callback is processed.
type RedirectGate struct {
	token *StateToken
}

func NewRedirectGate(token *StateToken) *RedirectGate {
	return &RedirectGate{token: token}
}

// Access admits the callback only when the state parameter matches the
// token issued at authorization start. Confirmation consumes the token;
// there are no other side effects.
func (g *RedirectGate) Access(ctx context.Context, sessionID, stateParam string) (bool, error) {
	if stateParam == "" {
		return false, nil
	}

	return g.token.Confirm(ctx, sessionID, stateParam)
}
