// Package valkeystore is the valkey-backed sessionstore.Store used in
// multi-instance deployments. Entries carry the configured session TTL so
// abandoned flows age out on their own.
package valkeystore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"
)

const objectTypeSession = "sess"

// compareAndDelete deletes the key only when it still holds the expected
// value. Scripted so the read and the delete cannot interleave with a
// concurrent callback racing on the same state token.
var compareAndDelete = valkey.NewLuaScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

type Store struct {
	valkey valkey.Client
	prefix string
	ttl    time.Duration
}

func New(valkeyClient valkey.Client, prefix string, ttl time.Duration) *Store {
	prefix = strings.TrimSuffix(prefix, ":")
	return &Store{
		valkey: valkeyClient,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *Store) Get(ctx context.Context, sessionID, key string) (string, bool, error) {
	resp := s.valkey.Do(ctx, s.valkey.B().Get().Key(s.key(sessionID, key)).Build())

	value, err := resp.ToString()
	if err != nil {
		valkeyErr, ok := valkey.IsValkeyErr(err)
		if ok && valkeyErr.IsNil() {
			return "", false, nil
		}

		return "", false, fmt.Errorf("executing get command: %w", err)
	}

	return value, true, nil
}

func (s *Store) Set(ctx context.Context, sessionID, key, value string) error {
	cmd := s.valkey.B().Set().Key(s.key(sessionID, key)).Value(value).Ex(s.ttl).Build()
	if err := s.valkey.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("executing set command: %w", err)
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, sessionID, key string) error {
	cmd := s.valkey.B().Del().Key(s.key(sessionID, key)).Build()
	if err := s.valkey.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("executing del command: %w", err)
	}

	return nil
}

func (s *Store) CompareAndDelete(ctx context.Context, sessionID, key, expect string) (bool, error) {
	resp := compareAndDelete.Exec(ctx, s.valkey, []string{s.key(sessionID, key)}, []string{expect})

	deleted, err := resp.AsInt64()
	if err != nil {
		return false, fmt.Errorf("executing compare-and-delete script: %w", err)
	}

	return deleted == 1, nil
}

func (s *Store) key(sessionID, key string) string {
	return fmt.Sprintf("%s:%s:%s:%s", s.prefix, objectTypeSession, sessionID, key)
}
