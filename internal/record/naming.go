// SPDX-License-Identifier: MIT

package record

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// SanitizeName flattens a stream name to ASCII letters and digits.
// Accented characters are decomposed first, so "Radio Café 99.5"
// becomes "RadioCafe995" instead of losing the é outright.
func SanitizeName(name string) string {
	decomposed := norm.NFKD.String(name)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FileName returns the output file name for a stream.
func FileName(name string) string {
	return "stream_" + SanitizeName(name) + ".mp3"
}
