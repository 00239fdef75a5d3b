// SPDX-License-Identifier: MIT

// Package fsutil guards filesystem access for recording output. Every
// path the recorder writes is produced by ConfineJoin, so a hostile
// stream name can never place a file outside the output directory.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnsureDir creates dir and any missing parents.
func EnsureDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}

// ConfineJoin joins root and name and guarantees the result stays
// physically underneath root. name must be a bare file name: no
// separators, no backslashes, no traversal segments.
func ConfineJoin(root, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("file name must not be empty")
	}
	// Block backslashes to prevent OS-specific bypasses and ambiguity
	// in generic parsing.
	if strings.Contains(name, "\\") {
		return "", fmt.Errorf("file name contains backslash: %s", name)
	}
	if strings.ContainsRune(name, filepath.Separator) {
		return "", fmt.Errorf("file name contains separator: %s", name)
	}

	clean := filepath.Clean(name)
	if clean == "." || clean == ".." {
		return "", fmt.Errorf("path traversal attempt: %s", name)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("invalid root path: %w", err)
	}

	// Resolve the root so a symlinked output directory is compared
	// against its physical location.
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return "", err
		}
		realRoot = absRoot
	}

	full := filepath.Join(realRoot, clean)

	rel, err := filepath.Rel(realRoot, full)
	if err != nil {
		return "", fmt.Errorf("failed to relativize path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes root: %s", name)
	}

	return full, nil
}
