// Package toggle holds the shared record controlling whether the SFTP
// server is reachable: the enabled flag, the current credential pair, the
// expiration timestamp, and the served root directory.
package toggle

import (
	"sync"
	"time"
)

// Credentials is the single username/password pair valid for the current
// enabled period. A new pair is generated on every enable.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// State is read by the auth path and the supervisor and written by the
// management service. All fields move together under one lock, so a
// reader can never observe enabled=true without credentials.
type State struct {
	mu          sync.RWMutex
	enabled     bool
	credentials *Credentials
	expiresAt   time.Time
	rootDir     string
}

func NewState(rootDir string) *State {
	return &State{rootDir: rootDir}
}

// Snapshot is one consistent view of all toggle fields
type Snapshot struct {
	Enabled     bool
	Credentials *Credentials
	ExpiresAt   time.Time
	RootDir     string
}

// Enable activates the server with a fresh credential pair. A zero
// expiresAt means the pair never expires.
func (s *State) Enable(creds Credentials, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = true
	s.credentials = &creds
	s.expiresAt = expiresAt
}

// Disable deactivates the server and drops credentials and expiration.
// The root directory survives disable cycles.
func (s *State) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = false
	s.credentials = nil
	s.expiresAt = time.Time{}
}

func (s *State) IsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// IsExpired reports whether an expiration is set and has passed
func (s *State) IsExpired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.expiresAt.IsZero() && !time.Now().Before(s.expiresAt)
}

// Credentials returns a copy of the current pair, or nil when disabled
func (s *State) Credentials() *Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.credentials == nil {
		return nil
	}
	creds := *s.credentials
	return &creds
}

// ExpiresAt returns the expiration timestamp and whether one is set
func (s *State) ExpiresAt() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt, !s.expiresAt.IsZero()
}

func (s *State) RootDir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rootDir
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Enabled:   s.enabled,
		ExpiresAt: s.expiresAt,
		RootDir:   s.rootDir,
	}
	if s.credentials != nil {
		creds := *s.credentials
		snap.Credentials = &creds
	}
	return snap
}
