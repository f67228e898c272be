package install

import (
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// allowedNamespaces is the fixed set of path patterns, relative to the
// installation root, that gsd is permitted to create, modify, or delete.
// Destructive operations intersect with this list no matter what a manifest
// claims; neighboring files in the shared config directory are never touched.
var allowedNamespaces = []string{
	"agents/gsd-*",
	"commands/gsd/**",
	"get-shit-done/**",
}

// InAllowedNamespace reports whether the root-relative path falls inside the
// namespace allow-list. Paths are normalized to forward slashes before
// matching, so callers can pass platform-native separators.
func InAllowedNamespace(relativePath string) bool {
	normalized := filepath.ToSlash(filepath.Clean(relativePath))
	for _, pattern := range allowedNamespaces {
		if ok, err := doublestar.Match(pattern, normalized); err == nil && ok {
			return true
		}
	}
	return false
}

// AllowedNamespaces returns a copy of the allow-list patterns for display.
func AllowedNamespaces() []string {
	out := make([]string, len(allowedNamespaces))
	copy(out, allowedNamespaces)
	return out
}
