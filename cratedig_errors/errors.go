// Provides common cratedig error definitions.
package cratedig_errors

import "errors"

var (
	// ErrValidation marks missing or malformed caller input. Never retried.
	ErrValidation = errors.New("cratedig: invalid input")
	// ErrNotFound marks a point-lookup or composite-key miss.
	ErrNotFound = errors.New("cratedig: not found")
	// ErrStorage marks an underlying store I/O failure, possibly transient.
	// The core never retries; that is the caller's call.
	ErrStorage = errors.New("cratedig: storage failure")

	ErrCorruptRecord  = errors.New("cratedig: corrupt stored record")
	ErrExists         = errors.New("cratedig: already exists")
	ErrBadCredentials = errors.New("cratedig: invalid email or password")
	ErrBadResetToken  = errors.New("cratedig: invalid password reset token")
)
