package session

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/abysmo/ghd/internal/github"
)

var (
	// ErrTokenNotFound means no credential is active.
	ErrTokenNotFound = errors.New("token not found")

	// ErrUserNotSet means the active credential does not resolve to a stored user.
	ErrUserNotSet = errors.New("user not set")

	// ErrBadCredential means GitHub rejected the token.
	ErrBadCredential = errors.New("bad credential")

	// ErrUnknown matches every *UnknownError via errors.Is.
	ErrUnknown = errors.New("unknown remote error")
)

// UnknownError is a remote failure that is neither success nor a rejected
// credential. StatusCode is zero when no response was received.
type UnknownError struct {
	StatusCode int
	Err        error
}

func (e *UnknownError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("unknown remote error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("unknown remote error: %v", e.Err)
}

func (e *UnknownError) Unwrap() []error {
	return []error{ErrUnknown, e.Err}
}

// remoteError maps a github client error onto the session error kinds.
// GitHub answers 401 for bad credentials and 403 for forbidden ones.
func remoteError(err error) error {
	var se *github.StatusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrBadCredential, err)
		}
		return &UnknownError{StatusCode: se.StatusCode, Err: err}
	}
	return &UnknownError{Err: err}
}
