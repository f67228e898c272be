package install

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gsdhq/gsd/internal/errs"
)

func TestResolveRootGlobalDefault(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(ConfigDirEnv, "")

	root, err := ResolveRoot(ScopeGlobal, "")
	if err != nil {
		t.Fatalf("ResolveRoot: %v", err)
	}
	if root.Path != filepath.Join(home, ".claude") {
		t.Errorf("expected %s, got %s", filepath.Join(home, ".claude"), root.Path)
	}
	if root.Scope != ScopeGlobal {
		t.Errorf("expected global scope, got %s", root.Scope)
	}
}

func TestResolveRootEnvOverride(t *testing.T) {
	home := t.TempDir()
	custom := filepath.Join(home, "custom-claude")
	t.Setenv("HOME", home)
	t.Setenv(ConfigDirEnv, custom)

	root, err := ResolveRoot(ScopeGlobal, "")
	if err != nil {
		t.Fatalf("ResolveRoot: %v", err)
	}
	if root.Path != custom {
		t.Errorf("expected %s, got %s", custom, root.Path)
	}
}

func TestResolveRootExplicitOverrideBeatsEnv(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(ConfigDirEnv, filepath.Join(home, "from-env"))

	explicit := filepath.Join(home, "from-flag")
	root, err := ResolveRoot(ScopeGlobal, explicit)
	if err != nil {
		t.Fatalf("ResolveRoot: %v", err)
	}
	if root.Path != explicit {
		t.Errorf("expected %s, got %s", explicit, root.Path)
	}
}

func TestResolveRootRejectsEscape(t *testing.T) {
	home := t.TempDir()
	outside := t.TempDir()
	t.Setenv("HOME", home)

	cases := []string{
		outside,
		filepath.Join(home, "..", "elsewhere"),
		home, // the home directory itself is not a valid root
	}
	for _, dir := range cases {
		_, err := ResolveRoot(ScopeGlobal, dir)
		if err == nil {
			t.Errorf("expected traversal error for %q", dir)
			continue
		}
		if errs.TagOf(err) != errs.TagPathTraversal {
			t.Errorf("expected TagPathTraversal for %q, got %v", dir, err)
		}
	}
}

func TestResolveRootLocal(t *testing.T) {
	project := t.TempDir()
	chdir(t, project)

	root, err := ResolveRoot(ScopeLocal, "")
	if err != nil {
		t.Fatalf("ResolveRoot: %v", err)
	}
	resolved, _ := filepath.EvalSymlinks(root.Path)
	expected, _ := filepath.EvalSymlinks(filepath.Join(project, ".claude"))
	if resolved != expected && root.Path != filepath.Join(project, ".claude") {
		t.Errorf("expected root under %s, got %s", project, root.Path)
	}
	if root.Scope != ScopeLocal {
		t.Errorf("expected local scope, got %s", root.Scope)
	}
}

func TestResolveScopeExplicitWins(t *testing.T) {
	home := t.TempDir()
	project := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(ConfigDirEnv, "")
	chdir(t, project)

	// Install in both scopes; an explicit flag must bypass disambiguation.
	for _, dir := range []string{filepath.Join(home, ".claude"), filepath.Join(project, ".claude")} {
		if err := NewVersionStore(Root{Path: dir}).SetVersion("1.0.0"); err != nil {
			t.Fatalf("SetVersion: %v", err)
		}
	}

	root, err := ResolveScope(ScopeLocal, "")
	if err != nil {
		t.Fatalf("ResolveScope: %v", err)
	}
	if root.Scope != ScopeLocal {
		t.Errorf("expected local, got %s", root.Scope)
	}
}

func TestResolveScopeBothInstalledNeedsExplicit(t *testing.T) {
	home := t.TempDir()
	project := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(ConfigDirEnv, "")
	chdir(t, project)

	for _, dir := range []string{filepath.Join(home, ".claude"), filepath.Join(project, ".claude")} {
		if err := NewVersionStore(Root{Path: dir}).SetVersion("1.0.0"); err != nil {
			t.Fatalf("SetVersion: %v", err)
		}
	}

	_, err := ResolveScope("", "")
	if !errors.Is(err, ErrBothScopesInstalled) {
		t.Fatalf("expected ErrBothScopesInstalled, got %v", err)
	}
}

func TestResolveScopeSingleInstalledWins(t *testing.T) {
	home := t.TempDir()
	project := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(ConfigDirEnv, "")
	chdir(t, project)

	if err := NewVersionStore(Root{Path: filepath.Join(project, ".claude")}).SetVersion("1.0.0"); err != nil {
		t.Fatalf("SetVersion: %v", err)
	}

	root, err := ResolveScope("", "")
	if err != nil {
		t.Fatalf("ResolveScope: %v", err)
	}
	if root.Scope != ScopeLocal {
		t.Errorf("expected the installed local scope, got %s", root.Scope)
	}
}

func TestResolveScopeNeitherInstalledDefaultsGlobal(t *testing.T) {
	home := t.TempDir()
	project := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(ConfigDirEnv, "")
	chdir(t, project)

	root, err := ResolveScope("", "")
	if err != nil {
		t.Fatalf("ResolveScope: %v", err)
	}
	if root.Scope != ScopeGlobal {
		t.Errorf("expected global default, got %s", root.Scope)
	}
}

// chdir switches the working directory for the duration of the test,
// restoring the original directory on cleanup. It stands in for
// testing.T.Chdir, which requires Go 1.24.
func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatalf("chdir: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(orig); err != nil {
			t.Fatalf("chdir cleanup: %v", err)
		}
	})
}
