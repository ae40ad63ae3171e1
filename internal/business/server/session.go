package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/openkcm/auth-gateway/internal/config"
)

type ctxKey string

const sessionIDKey ctxKey = "session_id"

// sessionMiddleware ties every request to a browser session. A request
// without a session cookie gets a fresh session ID; the flow state in the
// session store is keyed by it.
func sessionMiddleware(template config.CookieTemplate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := ""
			if cookie, err := r.Cookie(template.Name); err == nil {
				sessionID = cookie.Value
			}

			if sessionID == "" {
				sessionID = uuid.NewString()
				http.SetCookie(w, template.ToCookie(sessionID))
			}

			ctx := context.WithValue(r.Context(), sessionIDKey, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionIDFromContext(ctx context.Context) (string, error) {
	sessionID, ok := ctx.Value(sessionIDKey).(string)
	if !ok || sessionID == "" {
		return "", errors.New("no session id in ctx")
	}

	return sessionID, nil
}
