package database

import (
	"errors"
	"fmt"
	"net/url"
)

// ConnectionError reports a database target that is malformed, unsupported or
// unreachable. It is fatal to the selection step; callers surface it to the
// user and never retry.
type ConnectionError struct {
	URI    string
	Reason string
	Err    error
}

func (e *ConnectionError) Error() string {
	target := redact(e.URI)
	if target == "" {
		target = "(empty)"
	}
	if e.Err != nil {
		return fmt.Sprintf("cannot connect to %s: %s: %v", target, e.Reason, e.Err)
	}
	return fmt.Sprintf("cannot connect to %s: %s", target, e.Reason)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsConnectionError reports whether err is, or wraps, a ConnectionError.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

// redact hides the password component of a connection URI.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}
