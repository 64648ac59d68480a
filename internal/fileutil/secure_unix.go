//go:build unix

// Package fileutil writes exported mail data with owner-only permissions.
// On Windows, owner-only modes (perm & 0077 == 0) additionally set a DACL
// restricting access to the current user.
package fileutil

import (
	"os"

	"golang.org/x/sys/unix"
)

// SecureMkdirAll creates a directory path and all parents that do not yet exist.
func SecureMkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// CreateExport creates or truncates path for writing exported data. A
// symlink in the final path component is refused.
func CreateExport(path string, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC|unix.O_NOFOLLOW, perm)
}
