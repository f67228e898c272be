// Package safeio provides contained path handling and atomic file writes.
//
// Every destructive filesystem operation in gsd funnels through this package:
// containment checks stop path traversal before any I/O happens, and atomic
// writes guarantee a destination file is never observable half-written.
package safeio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrTraversal is returned when a path escapes its required base directory.
var ErrTraversal = errors.New("path traversal detected")

// CleanUserPath cleans a user-provided path and rejects traversal attempts.
// Returns paths with forward slashes for cross-platform consistency.
func CleanUserPath(p string) (string, error) {
	c := filepath.Clean(p)
	if strings.Contains(c, "..") {
		return "", ErrTraversal
	}
	return filepath.ToSlash(c), nil
}

// EnsureWithin resolves path to absolute form and verifies that baseDir is a
// strict ancestor. It returns the resolved absolute path. No filesystem I/O
// is performed beyond path resolution, so it is safe to call before any
// directory exists.
func EnsureWithin(baseDir, path string) (string, error) {
	baseAbs, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base directory: %w", err)
	}
	pathAbs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	rel, err := filepath.Rel(baseAbs, pathAbs)
	if err != nil {
		return "", ErrTraversal
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrTraversal
	}
	return pathAbs, nil
}

// ReadFileContained reads a file only if it is contained within baseDir.
func ReadFileContained(baseDir, filePath string) ([]byte, error) {
	pathAbs, err := EnsureWithin(baseDir, filePath)
	if err != nil {
		return nil, err
	}
	// #nosec G304 -- pathAbs has been verified to be contained within baseDir
	return os.ReadFile(pathAbs)
}

// WriteFileAtomic writes data to path via a uniquely-named temporary sibling
// followed by a rename, so the destination is either the old content or the
// new content, never a mixture. The temporary file is removed on any failure
// and the original file is left untouched. Parent directories are created as
// needed.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// WriteFilePreservePerms atomically writes data to path preserving the
// existing file mode when possible. When the file does not exist, it uses a
// sane default of 0644.
func WriteFilePreservePerms(path string, data []byte) error {
	var mode os.FileMode = 0o644
	if st, err := os.Stat(path); err == nil {
		mode = st.Mode() & 0o777
		if mode == 0 {
			mode = 0o644
		}
	}
	return WriteFileAtomic(path, data, mode)
}
