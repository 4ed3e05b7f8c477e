// Package session persists the authenticated browser profile state across
// process restarts. The profile directory itself is opaque (the browser's
// cookies and local storage); this package only manages its location and a
// marker recording that an interactive login once completed there.
package session

import (
	"fmt"
	"os"
	"path/filepath"
)

const loginFlagName = "logged-in"

// Session describes the persisted browser profile state.
type Session struct {
	// ProfileDir is the persistent browser profile location.
	ProfileDir string

	// Valid reports whether a completed login has been recorded for the
	// profile. The marker is advisory: the driver still probes the page
	// and invalidates the session when the UI disagrees.
	Valid bool
}

// Store reads and writes session state under a state directory.
type Store struct {
	stateDir   string
	profileDir string
}

// NewStore creates a store rooted at stateDir. The directory tree is created
// on demand.
func NewStore(stateDir, profileDir string) *Store {
	return &Store{stateDir: stateDir, profileDir: profileDir}
}

// Load returns the current session. A missing or unreadable state directory
// is not an error: it yields an invalid session, forcing a fresh login.
func (s *Store) Load() (Session, error) {
	sess := Session{ProfileDir: s.profileDir}

	info, err := os.Stat(s.flagPath())
	if err != nil {
		if os.IsNotExist(err) {
			return sess, nil
		}
		// Unreadable state is treated as absent; recovery is a fresh login.
		return sess, nil
	}
	if info.IsDir() {
		return sess, nil
	}

	sess.Valid = true
	return sess, nil
}

// MarkValid records a completed login. Called only on login-state
// transitions, never concurrently with itself or Invalidate.
func (s *Store) MarkValid() error {
	if err := s.EnsureDirs(); err != nil {
		return err
	}
	if err := os.WriteFile(s.flagPath(), []byte("ok\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write login flag: %w", err)
	}
	return nil
}

// Invalidate clears the login marker. The profile directory is kept: a stale
// profile is harmless and may still shorten the next interactive login.
func (s *Store) Invalidate() error {
	if err := os.Remove(s.flagPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove login flag: %w", err)
	}
	return nil
}

// EnsureDirs creates the state and profile directories if needed.
func (s *Store) EnsureDirs() error {
	for _, dir := range []string{s.stateDir, s.profileDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// ProfileDir returns the browser profile directory managed by this store.
func (s *Store) ProfileDir() string {
	return s.profileDir
}

func (s *Store) flagPath() string {
	return filepath.Join(s.stateDir, loginFlagName)
}
