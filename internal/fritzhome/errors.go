package fritzhome

import (
	"errors"
	"fmt"
)

// ErrSessionExpired is returned when the FRITZ!Box rejects a session id.
// The cached id is dropped, the next request logs in again.
var ErrSessionExpired = errors.New("session expired")

// LoginError reports that the FRITZ!Box refused to open a session for Account.
type LoginError struct {
	Account string
	Err     error
}

func (e *LoginError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("login failed for user %q: %v", e.Account, e.Err)
	}
	return fmt.Sprintf("login failed for user %q", e.Account)
}

func (e *LoginError) Unwrap() error {
	return e.Err
}
