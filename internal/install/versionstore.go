package install

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/gsdhq/gsd/internal/errs"
)

const versionFileName = "VERSION"

// VersionStore reads and writes the single-line VERSION marker under the
// installation root. The marker is the sole source of truth for "is this
// installed, and at what version": its absence means not installed.
type VersionStore struct {
	root Root
}

// NewVersionStore creates a store for the given root.
func NewVersionStore(root Root) *VersionStore {
	return &VersionStore{root: root}
}

// IsInstalled reports whether the VERSION marker exists. Permission failures
// are surfaced; a missing file is simply "not installed".
func (s *VersionStore) IsInstalled() (bool, error) {
	_, err := os.Stat(s.root.VersionFile())
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errs.Classify("stat VERSION", err)
}

// Version returns the trimmed installed version, or "" when the marker is
// absent.
func (s *VersionStore) Version() (string, error) {
	data, err := os.ReadFile(s.root.VersionFile())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errs.Classify("read VERSION", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// SetVersion writes the marker, creating the root directory as needed.
// Version strings are short enough that a plain whole-file write is
// acceptable here, unlike the manifest and settings files.
func (s *VersionStore) SetVersion(version string) error {
	if err := os.MkdirAll(s.root.Path, 0o750); err != nil {
		return errs.Classify("create installation root", err)
	}
	if err := os.WriteFile(s.root.VersionFile(), []byte(strings.TrimSpace(version)+"\n"), 0o644); err != nil {
		return errs.Classify("write VERSION", err)
	}
	return nil
}

// PackageVersion reads the "version" field from the package.json at the top
// of a source tree. It returns "" when the file is missing or carries no
// version; installs from such trees still need a marker from elsewhere.
func PackageVersion(sourceRoot string) string {
	data, err := os.ReadFile(filepath.Join(sourceRoot, "package.json"))
	if err != nil {
		return ""
	}
	var pkg struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return ""
	}
	return strings.TrimSpace(pkg.Version)
}

// Remove deletes the marker. Missing is not an error.
func (s *VersionStore) Remove() error {
	if err := os.Remove(s.root.VersionFile()); err != nil && !os.IsNotExist(err) {
		return errs.Classify("remove VERSION", err)
	}
	return nil
}
