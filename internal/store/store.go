// Package store provides the persistence backends for credentials and chat
// transcripts. Every operation is a full read-modify-write against the
// backing store, guarded by an in-process mutex per store. Cross-process
// writers are not coordinated: two processes saving concurrently can lose
// updates. Multi-process deployments need an external lock or a
// transactional backing store.
package store

import (
	"context"

	"synbot/internal/models"
)

// CredentialStore backs registration, login, and password reset. The boolean
// result carries the authentication outcome; the error is reserved for
// persistence failures, which callers must propagate rather than swallow.
type CredentialStore interface {
	// Register creates a record unless the username is already taken.
	Register(ctx context.Context, username, password string) (bool, error)
	// Validate reports whether a record exists with exactly these credentials.
	Validate(ctx context.Context, username, password string) (bool, error)
	// ResetPassword overwrites the password of an existing record.
	ResetPassword(ctx context.Context, username, newPassword string) (bool, error)
}

// TranscriptStore is the durable source of truth for chat history.
type TranscriptStore interface {
	// Load returns the user's collection, or an empty collection holding a
	// single default thread when none exists yet. Corrupt or unexpected
	// persisted shapes also yield the empty default rather than an error.
	Load(ctx context.Context, username string) (*models.Transcript, error)
	// Save replaces the user's entire collection. The write must not corrupt
	// other users' data if the process is interrupted mid-save.
	Save(ctx context.Context, username string, tr *models.Transcript) error
}
