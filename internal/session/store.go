// Package session keeps per-session replacement maps so repeated entities
// stay consistent across multiple anonymize calls. Everything lives in
// memory; nothing sensitive is ever persisted.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"sync"

	"cloak/internal/redact"
)

// Session pairs a replacement map with the mutex callers must hold while the
// map is in use: the map itself is not safe for concurrent anonymize calls.
type Session struct {
	ID string

	Mu           sync.Mutex
	Replacements *redact.ReplacementMap
}

type Store struct {
	sessions sync.Map
}

func NewStore() *Store {
	return &Store{}
}

func GenerateID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}

// Acquire returns the session for id, creating it on first use.
func (s *Store) Acquire(id string) *Session {
	if id == "" {
		return &Session{Replacements: redact.NewReplacementMap()}
	}
	fresh := &Session{ID: id, Replacements: redact.NewReplacementMap()}
	actual, _ := s.sessions.LoadOrStore(id, fresh)
	return actual.(*Session)
}

// Get returns the session for id without creating one.
func (s *Store) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	v, ok := s.sessions.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

func (s *Store) Delete(id string) {
	if id == "" {
		return
	}
	s.sessions.Delete(id)
}
