package auth

import "errors"

// Failure classes for session handling. Callers wrap these with %w and
// match with errors.Is.
var (
	// ErrNoCredential means no token was found in any storage location.
	ErrNoCredential = errors.New("no credential")
	// ErrVerification means the backend rejected the token.
	ErrVerification = errors.New("verification failed")
	// ErrForbidden means the session is valid but lacks the required access.
	ErrForbidden = errors.New("forbidden")
	// ErrTransport covers network and decode failures talking to the backend.
	ErrTransport = errors.New("backend unreachable")
	// ErrCorruptSession means the persisted user record could not be decoded.
	ErrCorruptSession = errors.New("corrupt session state")
)
