// Package install implements the gsd installation lifecycle: scope and root
// resolution, the VERSION marker, the installed-files manifest, structure
// detection, backups, atomic file installation, integrity checking, and
// repair.
package install

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gsdhq/gsd/internal/errs"
	"github.com/gsdhq/gsd/pkg/safeio"
)

// Scope selects the per-user (global) or per-project (local) installation.
type Scope string

const (
	ScopeGlobal Scope = "global"
	ScopeLocal  Scope = "local"
)

const (
	// ConfigDirEnv overrides the global installation root.
	ConfigDirEnv = "GSD_CONFIG_DIR"

	// configDirName is the assistant config directory gsd installs into.
	configDirName = ".claude"
)

// Root is a resolved installation root. It is computed once per command
// invocation and never changes for the command's lifetime.
type Root struct {
	Scope Scope
	Path  string
}

// VersionFile returns the path of the VERSION marker.
func (r Root) VersionFile() string { return filepath.Join(r.Path, versionFileName) }

// ManifestFile returns the path of the installed-files manifest.
func (r Root) ManifestFile() string { return filepath.Join(r.Path, manifestFileName) }

// BackupsDir returns the backup parent directory.
func (r Root) BackupsDir() string { return filepath.Join(r.Path, backupsDirName) }

// ResolveRoot computes the installation root for a scope. overrideDir, when
// non-empty, replaces the environment/default path for global scope. The
// resolved path must sit strictly inside the permitted base (the user home
// directory for global, the working directory for local); anything else is a
// path-traversal error. No directories are created here.
func ResolveRoot(scope Scope, overrideDir string) (Root, error) {
	switch scope {
	case ScopeGlobal:
		return resolveGlobal(overrideDir)
	case ScopeLocal:
		return resolveLocal()
	default:
		return Root{}, fmt.Errorf("unknown scope %q", scope)
	}
}

func resolveGlobal(overrideDir string) (Root, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Root{}, errs.Classify("resolve home directory", err)
	}

	dir := overrideDir
	if dir == "" {
		dir = os.Getenv(ConfigDirEnv)
	}
	if dir == "" {
		dir = filepath.Join(home, configDirName)
	}

	resolved, err := safeio.EnsureWithin(home, dir)
	if err != nil {
		return Root{}, errs.Newf(errs.TagPathTraversal, "resolve global root", "%q escapes home directory %q", dir, home)
	}
	return Root{Scope: ScopeGlobal, Path: resolved}, nil
}

func resolveLocal() (Root, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Root{}, errs.Classify("resolve working directory", err)
	}

	dir := filepath.Join(cwd, configDirName)
	resolved, err := safeio.EnsureWithin(cwd, dir)
	if err != nil {
		return Root{}, errs.Newf(errs.TagPathTraversal, "resolve local root", "%q escapes working directory %q", dir, cwd)
	}
	return Root{Scope: ScopeLocal, Path: resolved}, nil
}

// ErrBothScopesInstalled is returned when no explicit scope was given and
// both a global and a local installation exist. Callers must ask the user to
// disambiguate rather than guessing.
var ErrBothScopesInstalled = errors.New("both global and local installations exist; pass --global or --local")

// ResolveScope picks the installation a command should act on. An explicit
// scope always wins. Without one, the single installed scope is chosen;
// both installed is an error, and neither installed falls back to global.
func ResolveScope(explicit Scope, overrideDir string) (Root, error) {
	if explicit != "" {
		return ResolveRoot(explicit, overrideDir)
	}

	globalRoot, err := ResolveRoot(ScopeGlobal, overrideDir)
	if err != nil {
		return Root{}, err
	}
	localRoot, err := ResolveRoot(ScopeLocal, "")
	if err != nil {
		return Root{}, err
	}

	globalInstalled, err := NewVersionStore(globalRoot).IsInstalled()
	if err != nil {
		return Root{}, err
	}
	localInstalled, err := NewVersionStore(localRoot).IsInstalled()
	if err != nil {
		return Root{}, err
	}

	switch {
	case globalInstalled && localInstalled:
		return Root{}, ErrBothScopesInstalled
	case localInstalled:
		return localRoot, nil
	default:
		return globalRoot, nil
	}
}
