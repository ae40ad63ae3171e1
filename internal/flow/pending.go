package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/openkcm/auth-gateway/internal/sessionstore"
)

type Operation string

const (
	OperationLogin   Operation = "login"
	OperationConnect Operation = "connect"
)

const (
	keyOperation     = "oidc_op"
	keyConnectUserID = "oidc_connect_uid"
	keyDestination   = "oidc_destination"
	keyClientName    = "oidc_client"
)

// DefaultDestinationPath is the post-flow route used when the start request
// did not name one: the user's own profile page.
const DefaultDestinationPath = "user"

// Destination is where the user is sent once the flow completes, an
// internal path with optional query options.
type Destination struct {
	Path  string     `json:"path"`
	Query url.Values `json:"query,omitempty"`
}

func (d Destination) IsZero() bool {
	return d.Path == "" && len(d.Query) == 0
}

// Pending is the authorization context carried from the start request to
// the callback through the session store.
type Pending struct {
	ClientName    string
	Operation     Operation
	ConnectUserID string
	Destination   Destination
}

// PendingAuthorization persists a Pending across the provider round trip,
// each field under its own session key.
type PendingAuthorization struct {
	sessions sessionstore.Store
}

func NewPendingAuthorization(sessions sessionstore.Store) *PendingAuthorization {
	return &PendingAuthorization{sessions: sessions}
}

// Save writes the set fields of pending. Unset fields are not written;
// their defaults are applied by LoadAndClear.
func (p *PendingAuthorization) Save(ctx context.Context, sessionID string, pending Pending) error {
	if pending.ClientName != "" {
		if err := p.sessions.Set(ctx, sessionID, keyClientName, pending.ClientName); err != nil {
			return fmt.Errorf("storing client name: %w", err)
		}
	}

	if pending.Operation != "" {
		if err := p.sessions.Set(ctx, sessionID, keyOperation, string(pending.Operation)); err != nil {
			return fmt.Errorf("storing operation: %w", err)
		}
	}

	if pending.ConnectUserID != "" {
		if err := p.sessions.Set(ctx, sessionID, keyConnectUserID, pending.ConnectUserID); err != nil {
			return fmt.Errorf("storing connect user id: %w", err)
		}
	}

	if !pending.Destination.IsZero() {
		encoded, err := json.Marshal(pending.Destination)
		if err != nil {
			return fmt.Errorf("encoding destination: %w", err)
		}

		if err := p.sessions.Set(ctx, sessionID, keyDestination, string(encoded)); err != nil {
			return fmt.Errorf("storing destination: %w", err)
		}
	}

	return nil
}

// LoadAndClear reads the whole pending context, applying defaults for
// missing fields, and deletes every field unconditionally. It is called
// exactly once per callback, before any branching, so that a failure partway
// through cannot leak stale context into a later, unrelated flow.
func (p *PendingAuthorization) LoadAndClear(ctx context.Context, sessionID string) (Pending, error) {
	pending := Pending{
		Operation:   OperationLogin,
		Destination: Destination{Path: DefaultDestinationPath},
	}

	var errs []error

	if value, ok, err := p.sessions.Get(ctx, sessionID, keyClientName); err != nil {
		errs = append(errs, fmt.Errorf("loading client name: %w", err))
	} else if ok {
		pending.ClientName = value
	}

	if value, ok, err := p.sessions.Get(ctx, sessionID, keyOperation); err != nil {
		errs = append(errs, fmt.Errorf("loading operation: %w", err))
	} else if ok {
		pending.Operation = Operation(value)
	}

	if value, ok, err := p.sessions.Get(ctx, sessionID, keyConnectUserID); err != nil {
		errs = append(errs, fmt.Errorf("loading connect user id: %w", err))
	} else if ok {
		pending.ConnectUserID = value
	}

	if value, ok, err := p.sessions.Get(ctx, sessionID, keyDestination); err != nil {
		errs = append(errs, fmt.Errorf("loading destination: %w", err))
	} else if ok {
		var destination Destination
		if err := json.Unmarshal([]byte(value), &destination); err != nil {
			errs = append(errs, fmt.Errorf("decoding destination: %w", err))
		} else {
			pending.Destination = destination
		}
	}

	// The teardown happens regardless of read failures above.
	for _, key := range []string{keyClientName, keyOperation, keyConnectUserID, keyDestination} {
		if err := p.sessions.Delete(ctx, sessionID, key); err != nil {
			errs = append(errs, fmt.Errorf("clearing %s: %w", key, err))
		}
	}

	if len(errs) > 0 {
		return Pending{}, errors.Join(errs...)
	}

	return pending, nil
}
