// Package auth issues, validates, and revokes the bearer tokens that tie
// HTTP callers to their in-memory sessions.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"synbot/internal/cache"
	"synbot/internal/session"
)

const tokenKeyPrefix = "synbot:token:"

// Manager maps tokens to live sessions. Sessions are process-local: the map
// is the authority, and the optional redis mirror only lets operators
// enumerate and revoke tokens from outside the process.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*tokenEntry

	tokenTTL       time.Duration
	cache          *cache.Client
	cookieName     string
	headerName     string
	csrfCookieName string
	csrfHeaderName string
}

type tokenEntry struct {
	sess      *session.Session
	expiresAt time.Time
}

// NewManager constructs a token manager with the supplied token lifetime.
// cacheClient may be nil when redis is not configured.
func NewManager(ttl time.Duration, cacheClient *cache.Client) *Manager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{
		sessions:       make(map[string]*tokenEntry),
		tokenTTL:       ttl,
		cache:          cacheClient,
		cookieName:     "auth_token",
		headerName:     "Authorization",
		csrfCookieName: "csrf_token",
		csrfHeaderName: "X-CSRF-Token",
	}
}

// Issue mints a token bound to the session.
func (m *Manager) Issue(ctx context.Context, sess *session.Session) (string, error) {
	if sess == nil {
		return "", errors.New("session required")
	}
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	expiresAt := time.Now().Add(m.tokenTTL)

	m.mu.Lock()
	m.sessions[token] = &tokenEntry{sess: sess, expiresAt: expiresAt}
	m.mu.Unlock()

	// Best effort: the process map stays authoritative if redis is down.
	_ = m.cache.Set(ctx, tokenKeyPrefix+token, sess.Username(), m.tokenTTL)
	return token, nil
}

// Resolve returns the live session for a token, expiring and honoring
// external revocation through the redis mirror when one is configured.
func (m *Manager) Resolve(ctx context.Context, token string) (*session.Session, error) {
	if token == "" {
		return nil, errors.New("token required")
	}
	m.mu.Lock()
	entry, ok := m.sessions[token]
	if ok && time.Now().After(entry.expiresAt) {
		delete(m.sessions, token)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return nil, errors.New("invalid token")
	}

	if _, err := m.cache.Get(ctx, tokenKeyPrefix+token); errors.Is(err, cache.ErrCacheMiss) {
		// Revoked out-of-band.
		m.mu.Lock()
		delete(m.sessions, token)
		m.mu.Unlock()
		return nil, errors.New("token revoked")
	}
	return entry.sess, nil
}

// Revoke forgets a single token.
func (m *Manager) Revoke(ctx context.Context, token string) {
	if token == "" {
		return
	}
	m.mu.Lock()
	delete(m.sessions, token)
	m.mu.Unlock()
	_ = m.cache.Del(ctx, tokenKeyPrefix+token)
}

// NewCSRFToken returns a random token used for CSRF protection.
func (m *Manager) NewCSRFToken() (string, error) {
	return generateToken()
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// AuthCookieName returns the cookie name storing auth tokens.
func (m *Manager) AuthCookieName() string {
	return m.cookieName
}

// CSRFCookieName returns the cookie used for CSRF tokens.
func (m *Manager) CSRFCookieName() string {
	return m.csrfCookieName
}

// CSRFHeaderName returns the CSRF header name.
func (m *Manager) CSRFHeaderName() string {
	return m.csrfHeaderName
}

// TokenTTL reports the configured token lifetime.
func (m *Manager) TokenTTL() time.Duration {
	return m.tokenTTL
}
