package notice

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openkcm/auth-gateway/internal/sessionstore"
)

const keyNotices = "notices"

// SessionQueue stores notices in the session store as a JSON list. The
// append is read-modify-write; session access is single-writer per session,
// matching the rest of the flow state.
type SessionQueue struct {
	sessions sessionstore.Store
}

func NewSessionQueue(sessions sessionstore.Store) *SessionQueue {
	return &SessionQueue{sessions: sessions}
}

func (q *SessionQueue) Queue(ctx context.Context, sessionID string, severity Severity, text string) error {
	notices, err := q.load(ctx, sessionID)
	if err != nil {
		return err
	}

	notices = append(notices, Notice{Severity: severity, Text: text})

	encoded, err := json.Marshal(notices)
	if err != nil {
		return fmt.Errorf("encoding notices: %w", err)
	}

	if err := q.sessions.Set(ctx, sessionID, keyNotices, string(encoded)); err != nil {
		return fmt.Errorf("storing notices: %w", err)
	}

	return nil
}

// Drain returns all queued notices and removes them.
func (q *SessionQueue) Drain(ctx context.Context, sessionID string) ([]Notice, error) {
	notices, err := q.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := q.sessions.Delete(ctx, sessionID, keyNotices); err != nil {
		return nil, fmt.Errorf("clearing notices: %w", err)
	}

	return notices, nil
}

func (q *SessionQueue) load(ctx context.Context, sessionID string) ([]Notice, error) {
	value, ok, err := q.sessions.Get(ctx, sessionID, keyNotices)
	if err != nil {
		return nil, fmt.Errorf("loading notices: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var notices []Notice
	if err := json.Unmarshal([]byte(value), &notices); err != nil {
		return nil, fmt.Errorf("decoding notices: %w", err)
	}

	return notices, nil
}
