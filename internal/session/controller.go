package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"synbot/internal/export"
	"synbot/internal/models"
	"synbot/internal/store"
)

var (
	// ErrInvalidCredentials is returned when login validation fails.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUsernameTaken is returned when registration hits an existing name.
	ErrUsernameTaken = errors.New("username already exists")
	// ErrUnknownUsername is returned by password reset for absent accounts.
	ErrUnknownUsername = errors.New("username not found")
	// ErrNotActive is returned when an operation needs a loaded transcript.
	ErrNotActive = errors.New("session is not active")
	// ErrThreadNotFound is returned when switching to an absent thread.
	ErrThreadNotFound = errors.New("chat not found")
	// ErrDisplayNameRequired is returned when the display name is blank.
	ErrDisplayNameRequired = errors.New("display name is required")
	// ErrEmptyContent is returned when a submitted turn has no text.
	ErrEmptyContent = errors.New("content cannot be empty")
)

// Generator produces one assistant reply per user turn. Failures degrade to
// a diagnostic string delivered as the reply, so the turn flow stays
// failure-free apart from persistence.
type Generator interface {
	Generate(ctx context.Context, userText string, attachment []byte) string
}

// Controller orchestrates stores and the generation client for sessions.
type Controller struct {
	credentials store.CredentialStore
	transcripts store.TranscriptStore
	generator   Generator
}

// NewController builds a controller over the supplied collaborators.
func NewController(credentials store.CredentialStore, transcripts store.TranscriptStore, generator Generator) *Controller {
	return &Controller{
		credentials: credentials,
		transcripts: transcripts,
		generator:   generator,
	}
}

// Register creates an account. It does not log the user in.
func (c *Controller) Register(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return errors.New("username and password are required")
	}
	created, err := c.credentials.Register(ctx, username, password)
	if err != nil {
		return fmt.Errorf("register user: %w", err)
	}
	if !created {
		return ErrUsernameTaken
	}
	return nil
}

// Login validates credentials and opens a session in the authenticated
// state. The transcript is not loaded until the display name arrives.
func (c *Controller) Login(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	ok, err := c.credentials.Validate(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("validate credentials: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return &Session{state: StateAuthenticated, username: username}, nil
}

// ResetPassword overwrites the password of an existing account.
func (c *Controller) ResetPassword(ctx context.Context, username, newPassword string) error {
	username = strings.TrimSpace(username)
	if username == "" || newPassword == "" {
		return errors.New("username and password are required")
	}
	ok, err := c.credentials.ResetPassword(ctx, username, newPassword)
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	if !ok {
		return ErrUnknownUsername
	}
	return nil
}

// SetDisplayName records how the assistant should address the user. The
// first successful call loads (or lazily creates) the transcript, selects
// the default thread, and moves the session into the active state.
func (c *Controller) SetDisplayName(ctx context.Context, sess *Session, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrDisplayNameRequired
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.state == StateAnonymous {
		return ErrNotActive
	}
	sess.displayName = name
	if sess.state == StateActive {
		return nil
	}

	tr, err := c.transcripts.Load(ctx, sess.username)
	if err != nil {
		return fmt.Errorf("load transcript: %w", err)
	}
	sess.transcript = tr
	sess.activeThread = models.DefaultThreadName
	sess.state = StateActive
	return nil
}

// NewChat creates an empty thread under a timestamp-disambiguated key,
// makes it active, and persists the collection. Returns the thread key.
func (c *Controller) NewChat(ctx context.Context, sess *Session, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Network Chat"
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.state != StateActive {
		return "", ErrNotActive
	}
	th := sess.transcript.NewThread(name, time.Now())
	sess.activeThread = th.Name
	if err := c.transcripts.Save(ctx, sess.username, sess.transcript); err != nil {
		return "", fmt.Errorf("save transcript: %w", err)
	}
	return th.Name, nil
}

// SwitchChat selects an existing thread by key. No data is discarded.
func (c *Controller) SwitchChat(sess *Session, name string) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.state != StateActive {
		return ErrNotActive
	}
	if sess.transcript.Thread(name) == nil {
		return ErrThreadNotFound
	}
	sess.activeThread = name
	return nil
}

// SubmitTurn runs one full turn against the active thread: append the user
// message, obtain the assistant reply, append it, and persist the whole
// collection. The attachment feeds only this one generation request and is
// discarded afterwards, never persisted. The session mutex serializes turns
// submitted in rapid succession within this process; writers in other
// processes are not coordinated.
func (c *Controller) SubmitTurn(ctx context.Context, sess *Session, userText string, attachment []byte) (string, error) {
	userText = strings.TrimSpace(userText)
	if userText == "" {
		return "", ErrEmptyContent
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.state != StateActive {
		return "", ErrNotActive
	}
	th := sess.currentThread()
	if th == nil {
		return "", ErrThreadNotFound
	}

	reply := c.generator.Generate(ctx, userText, attachment)
	th.AppendTurn(models.NewMessage(models.RoleUser, userText), models.NewMessage(models.RoleAssistant, reply))

	if err := c.transcripts.Save(ctx, sess.username, sess.transcript); err != nil {
		return "", fmt.Errorf("save transcript: %w", err)
	}
	return reply, nil
}

// Export renders the active thread as a PDF, returning the bytes and the
// download filename derived from the thread key.
func (c *Controller) Export(sess *Session) ([]byte, string, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.state != StateActive {
		return nil, "", ErrNotActive
	}
	th := sess.currentThread()
	if th == nil {
		return nil, "", ErrThreadNotFound
	}
	data, err := export.PDF(th.Messages, th.Name)
	if err != nil {
		return nil, "", fmt.Errorf("export chat: %w", err)
	}
	return data, export.Filename(th.Name), nil
}

// Logout clears the in-memory session. Persisted data is untouched.
func (c *Controller) Logout(sess *Session) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.state = StateAnonymous
	sess.username = ""
	sess.displayName = ""
	sess.transcript = nil
	sess.activeThread = ""
}
