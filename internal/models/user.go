package models

// CredentialRecord holds one account entry keyed by username. Usernames are
// case-sensitive unique keys; records are created by registration, mutated
// only by password reset, and never deleted.
//
// Passwords are stored in plaintext. That is a known, deliberate limitation
// carried over from the system this replaces; hardening is out of scope.
type CredentialRecord struct {
	Password string `json:"password"`
}
