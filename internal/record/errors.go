// SPDX-License-Identifier: MIT

package record

import "errors"

var (
	// ErrNetwork marks request and read failures from the stream source.
	ErrNetwork = errors.New("record: network failure")
	// ErrFilesystem marks create and write failures on the output file.
	ErrFilesystem = errors.New("record: filesystem failure")
)
