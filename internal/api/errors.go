package api

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when the server rejects the credential.
// By the time the caller sees it the session has already been cleared;
// the only sensible reaction is returning to the login screen.
var ErrUnauthorized = errors.New("session is invalid or expired")

// RequestError is any non-401 HTTP failure. Message carries the
// server-provided explanation when the response body had one.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// IsStatus reports whether err is a RequestError with the given HTTP
// status. Used by callers that care about specific failures, e.g. 409 on
// signup meaning the username is taken.
func IsStatus(err error, status int) bool {
	var re *RequestError
	return errors.As(err, &re) && re.Status == status
}
