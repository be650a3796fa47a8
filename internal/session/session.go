// Package session owns the per-user interactive state machine and
// orchestrates credentials, transcripts, generation, and export.
package session

import (
	"sync"

	"synbot/internal/models"
)

// State tracks where a session is in its lifecycle.
type State int

const (
	// StateAnonymous is the zero state before any successful login.
	StateAnonymous State = iota
	// StateAuthenticated means credentials checked but no display name yet.
	StateAuthenticated
	// StateActive means the transcript is loaded and a thread is selected.
	StateActive
)

// Session is the in-memory state of one logged-in user. It is created on
// login, cleared on logout, and never shared across users. The durable
// source of truth stays in the transcript store; the session only owns the
// current-thread view between persistence writes.
type Session struct {
	mu sync.Mutex

	state        State
	username     string
	displayName  string
	transcript   *models.Transcript
	activeThread string
}

// Username returns the account this session belongs to.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// DisplayName returns the name the assistant addresses the user by.
func (s *Session) DisplayName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayName
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ActiveThread returns the selected thread key, empty until active.
func (s *Session) ActiveThread() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeThread
}

// ThreadNames lists the user's thread keys in sorted order.
func (s *Session) ThreadNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transcript == nil {
		return nil
	}
	return s.transcript.ThreadNames()
}

// Messages returns a copy of the active thread's message sequence.
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	th := s.currentThread()
	if th == nil {
		return nil
	}
	out := make([]models.Message, len(th.Messages))
	copy(out, th.Messages)
	return out
}

// currentThread resolves the active thread. Callers hold s.mu.
func (s *Session) currentThread() *models.Thread {
	if s.transcript == nil || s.activeThread == "" {
		return nil
	}
	return s.transcript.Thread(s.activeThread)
}
