// SPDX-License-Identifier: MIT

package catalog

import (
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrUnreachable = errors.New("catalog: host unreachable or transport failure")
	ErrStatus      = errors.New("catalog: unexpected response status")
	ErrDecode      = errors.New("catalog: invalid response format or malformed data")
)

// Error wraps the sentinel errors with request context.
type Error struct {
	Sentinel  error
	Operation string
	Endpoint  string
	Status    int
	Body      string
	Err       error // Nested lower-level error (e.g. net.Error)
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("catalog: %s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Sentinel
}
