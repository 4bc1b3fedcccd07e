// Package apierror defines the error returned when a fetch operation gets a
// non-success HTTP response.
//
// Errors of this type pass through the cache unchanged, so callers can inspect
// the status of a failed read with errors.As or StatusOf.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error is a transport failure. It carries the HTTP status of the response
// and, if the response had a body, the body text as the underlying error.
type Error struct {
	err    error
	status int
}

func New(err error, status int) *Error {
	return &Error{
		err:    err,
		status: status,
	}
}

// FromResponse creates an error from a response status and body. If status is
// 0, only the body text is returned as a plain error.
func FromResponse(status int, body []byte) error {
	var err error
	text := strings.TrimSpace(string(body))
	if text != "" {
		err = errors.New(text)
	}
	if status == 0 {
		return err
	}
	return New(err, status)
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return e.statusLine()
}

func (e *Error) Status() int {
	return e.status
}

// Text returns the status, status text, and message, as "404 Not Found: msg".
func (e *Error) Text() string {
	line := e.statusLine()
	switch {
	case e.err == nil:
		return line
	case line == "":
		return e.err.Error()
	}
	return line + ": " + e.err.Error()
}

// statusLine renders the status as "404 Not Found", or just the code if it
// has no standard text, or "" if there is no status.
func (e *Error) statusLine() string {
	if e.status == 0 {
		return ""
	}
	if text := http.StatusText(e.status); text != "" {
		return fmt.Sprintf("%d %s", e.status, text)
	}
	return fmt.Sprintf("%d", e.status)
}

func (e *Error) Unwrap() error {
	return e.err
}

// StatusOf returns the HTTP status carried by err, or 0 if err is not, and
// does not wrap, an *Error.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status()
	}
	return 0
}

// IsNotFound reports whether err is a transport failure with status 404.
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}
