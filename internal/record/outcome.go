// SPDX-License-Identifier: MIT

package record

import "time"

// Reasons a recording stopped.
const (
	ReasonDeadline      = "deadline"
	ReasonSourceEnded   = "source_ended"
	ReasonRequestFailed = "request_failed"
	ReasonFileCreate    = "file_create_failed"
	ReasonReadFailed    = "read_failed"
	ReasonWriteFailed   = "write_failed"
)

// Outcome describes how one recording task ended. Path is empty when
// no output file was created.
type Outcome struct {
	Stream  string
	URL     string
	Path    string
	Bytes   int64
	Chunks  int
	Elapsed time.Duration
	Reason  string
	Err     error
}

// Success reports whether the recording ended without a failure. A
// reached deadline and a naturally ending source both count as
// success.
func (o Outcome) Success() bool {
	return o.Reason == ReasonDeadline || o.Reason == ReasonSourceEnded
}
