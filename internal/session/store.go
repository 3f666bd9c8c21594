// Package session holds the authentication credential and the identity it
// was issued for, persisted across runs.
//
// The store does no network I/O. Consumers (the REST gateway and the
// live-update manager) read the credential through Get on every use
// rather than caching it, so clearing the session takes effect on the
// next outbound call.
package session

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/golang-jwt/jwt/v5"

	"chatterm/pkg/chat"
)

// Store owns the current session and its on-disk copy.
type Store struct {
	mu      sync.Mutex
	path    string
	current *chat.Session
	onClear []func()
}

type sessionFile struct {
	Token    string `toml:"token"`
	Username string `toml:"username"`
}

// NewStore opens the store backed by the given file path, loading any
// session persisted by a previous run. A missing or unreadable file
// yields an empty store, not an error.
func NewStore(path string) *Store {
	s := &Store{path: path}

	var f sessionFile
	if _, err := toml.DecodeFile(path, &f); err == nil && f.Token != "" {
		s.current = &chat.Session{Token: f.Token, Username: f.Username}
	}
	return s
}

// Set stores the credential and persists it with owner-only permissions.
func (s *Store) Set(token, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = &chat.Session{Token: token, Username: username}

	buf, err := toml.Marshal(sessionFile{Token: token, Username: username})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.WriteFile(s.path, buf, 0o600); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// Get returns the current session. The second return is false when no
// user is authenticated.
func (s *Store) Get() (chat.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return chat.Session{}, false
	}
	return *s.current, true
}

// Authenticated reports whether a credential is present.
func (s *Store) Authenticated() bool {
	_, ok := s.Get()
	return ok
}

// Clear erases the credential in memory and on disk, then notifies every
// registered listener. Safe to call when already empty.
func (s *Store) Clear() error {
	s.mu.Lock()
	wasSet := s.current != nil
	s.current = nil
	err := os.Remove(s.path)
	listeners := make([]func(), len(s.onClear))
	copy(listeners, s.onClear)
	s.mu.Unlock()

	if wasSet {
		for _, fn := range listeners {
			fn()
		}
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// OnClear registers a listener invoked after the session is cleared.
// Used for the unauthorized side effect: tearing down the live
// connection and returning the UI to the login screen.
func (s *Store) OnClear(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClear = append(s.onClear, fn)
}

// ExpiresAt reports the token's exp claim, if the token is a JWT carrying
// one. The claim is read without signature verification; only the server
// can actually validate the token, the client just uses this to warn
// about sessions that are about to lapse.
func (s *Store) ExpiresAt() (time.Time, bool) {
	sess, ok := s.Get()
	if !ok {
		return time.Time{}, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(sess.Token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
