// Package session holds the per-connection authentication state. A Session
// is owned by exactly one connection and is not safe for concurrent use.
package session

import "github.com/google/uuid"

type Session struct {
	// ID correlates log lines of one connection.
	ID       string
	Remote   string
	Username string
	Logged   bool
}

// New returns an anonymous session for a connection from remote.
func New(remote string) *Session {
	return &Session{ID: uuid.NewString(), Remote: remote}
}

// Login moves the session to the authenticated state.
func (s *Session) Login(username string) {
	s.Username = username
	s.Logged = true
}

// Logout returns the session to the anonymous state.
func (s *Session) Logout() {
	s.Username = ""
	s.Logged = false
}

// Authenticated reports whether a user is logged in.
func (s *Session) Authenticated() bool { return s.Logged && s.Username != "" }
