// Package memstore is an in-process sessionstore.Store used by unit tests
// and single-instance deployments.
package memstore

import (
	"context"
	"crypto/subtle"
	"sync"
)

type Store struct {
	mu       sync.Mutex
	sessions map[string]map[string]string
}

func New() *Store {
	return &Store{
		sessions: make(map[string]map[string]string),
	}
}

func (s *Store) Get(_ context.Context, sessionID, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.sessions[sessionID][key]

	return value, ok, nil
}

func (s *Store) Set(_ context.Context, sessionID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		session = make(map[string]string)
		s.sessions[sessionID] = session
	}
	session[key] = value

	return nil
}

func (s *Store) Delete(_ context.Context, sessionID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions[sessionID], key)

	return nil
}

func (s *Store) CompareAndDelete(_ context.Context, sessionID, key, expect string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.sessions[sessionID][key]
	if !ok {
		return false, nil
	}

	if subtle.ConstantTimeCompare([]byte(value), []byte(expect)) != 1 {
		return false, nil
	}

	delete(s.sessions[sessionID], key)

	return true, nil
}
