package update

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gsdhq/gsd/internal/errs"
	"github.com/gsdhq/gsd/internal/install"
)

type fakeRegistry struct {
	latest   map[string]string
	versions map[string]bool
	err      error
}

func (f *fakeRegistry) LatestVersion(_ context.Context, _, distTag string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.latest[distTag], nil
}

func (f *fakeRegistry) VersionExists(_ context.Context, _, version string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.versions[version], nil
}

type fakeInstaller struct {
	sourceRoot string
	calls      int
	err        error
}

func (f *fakeInstaller) Install(_ context.Context, _ string, _ install.Scope) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.sourceRoot, nil
}

// templateSource builds a package directory shaped like the published npm
// package: template namespaces plus scaffolding.
func templateSource(t *testing.T, marker string) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"get-shit-done/workflows/plan.md": marker + " uses ~/.claude/get-shit-done\n",
		"commands/gsd/plan.md":            marker + "\n",
		"agents/gsd-planner.md":           marker + "\n",
		"package.json":                    `{"name":"get-shit-done-cc"}`,
	}
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

// installedRoot sets up a root with version v already installed.
func installedRoot(t *testing.T, v string) install.Root {
	t.Helper()
	root := install.Root{Scope: install.ScopeGlobal, Path: t.TempDir()}
	manifest := install.NewManifest(root)
	if _, err := install.NewFileInstaller(root, manifest).Install(templateSource(t, "v"+v)); err != nil {
		t.Fatalf("seed install: %v", err)
	}
	if err := install.NewVersionStore(root).SetVersion(v); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestCheckForUpdate(t *testing.T) {
	tests := []struct {
		name      string
		current   string
		latest    string
		available bool
	}{
		{"newer available", "1.0.0", "1.1.0", true},
		{"up to date", "1.1.0", "1.1.0", false},
		{"ahead of registry", "1.2.0", "1.1.0", false},
		{"not installed", "", "1.1.0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var root install.Root
			if tt.current != "" {
				root = installedRoot(t, tt.current)
			} else {
				root = install.Root{Scope: install.ScopeGlobal, Path: t.TempDir()}
			}
			reg := &fakeRegistry{latest: map[string]string{"latest": tt.latest}}
			orch := New(root, reg, &fakeInstaller{}, "latest")

			check, err := orch.CheckForUpdate(context.Background())
			if err != nil {
				t.Fatalf("CheckForUpdate: %v", err)
			}
			if check.UpdateAvailable != tt.available {
				t.Errorf("UpdateAvailable = %v, want %v", check.UpdateAvailable, tt.available)
			}
			if check.CurrentVersion != tt.current || check.LatestVersion != tt.latest {
				t.Errorf("unexpected check %+v", check)
			}
		})
	}
}

func TestValidateUpdate(t *testing.T) {
	root := installedRoot(t, "1.0.0")
	reg := &fakeRegistry{versions: map[string]bool{"1.1.0": true}}
	orch := New(root, reg, &fakeInstaller{}, "latest")
	ctx := context.Background()

	result, err := orch.ValidateUpdate(ctx, "1.1.0")
	if err != nil || !result.Valid {
		t.Fatalf("expected valid, got %+v, %v", result, err)
	}

	result, err = orch.ValidateUpdate(ctx, "not-a-version")
	if err != nil {
		t.Fatal(err)
	}
	if result.Valid {
		t.Error("malformed version must not validate")
	}

	result, err = orch.ValidateUpdate(ctx, "9.9.9")
	if err != nil {
		t.Fatal(err)
	}
	if result.Valid {
		t.Error("unpublished version must not validate")
	}
}

func TestValidateUpdateDoesNotCreateRoot(t *testing.T) {
	root := install.Root{Scope: install.ScopeGlobal, Path: filepath.Join(t.TempDir(), ".claude")}
	reg := &fakeRegistry{versions: map[string]bool{"1.1.0": true}}
	orch := New(root, reg, &fakeInstaller{}, "latest")

	result, err := orch.ValidateUpdate(context.Background(), "1.1.0")
	if err != nil {
		t.Fatal(err)
	}
	if result.Valid {
		t.Errorf("a missing root must not validate: %+v", result)
	}
	if _, err := os.Stat(root.Path); !os.IsNotExist(err) {
		t.Error("validation must not create the installation root")
	}
}

func TestPerformUpdateHappyPath(t *testing.T) {
	root := installedRoot(t, "1.0.0")
	source := templateSource(t, "v1.1.0")
	reg := &fakeRegistry{
		latest:   map[string]string{"latest": "1.1.0"},
		versions: map[string]bool{"1.1.0": true},
	}
	installer := &fakeInstaller{sourceRoot: source}
	orch := New(root, reg, installer, "latest")

	var lastFraction float64
	result, err := orch.PerformUpdate(context.Background(), Options{
		OnProgress: func(fraction float64, _ string) { lastFraction = fraction },
	})
	if err != nil {
		t.Fatalf("PerformUpdate: %v", err)
	}
	if !result.Success || result.UpToDate || result.Version != "1.1.0" {
		t.Fatalf("unexpected result %+v", result)
	}
	if installer.calls != 1 {
		t.Errorf("expected one package install, got %d", installer.calls)
	}
	if result.Stats.FilesCopied != 3 {
		t.Errorf("expected 3 files copied, got %d", result.Stats.FilesCopied)
	}
	if math.Abs(lastFraction-1.0) > 1e-9 {
		t.Errorf("expected progress to finish at 1.0, got %f", lastFraction)
	}

	version, err := install.NewVersionStore(root).Version()
	if err != nil || version != "1.1.0" {
		t.Errorf("VERSION marker = %q/%v, want 1.1.0", version, err)
	}

	// The template content was replaced and rewritten.
	data, err := os.ReadFile(filepath.Join(root.Path, "get-shit-done", "workflows", "plan.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "v1.1.0") {
		t.Errorf("expected updated content, got %q", data)
	}
	if strings.Contains(string(data), "~/.claude") {
		t.Error("path tokens must be rewritten during the copy")
	}

	// The marker of the previous version was backed up.
	backups, err := os.ReadDir(root.BackupsDir())
	if err != nil || len(backups) == 0 {
		t.Errorf("expected a backup of the previous version marker: %v", err)
	}
}

func TestPerformUpdateAlreadyUpToDate(t *testing.T) {
	root := installedRoot(t, "1.1.0")
	reg := &fakeRegistry{latest: map[string]string{"latest": "1.1.0"}}
	installer := &fakeInstaller{}
	orch := New(root, reg, installer, "latest")

	result, err := orch.PerformUpdate(context.Background(), Options{})
	if err != nil {
		t.Fatalf("PerformUpdate: %v", err)
	}
	if !result.UpToDate || !result.Success {
		t.Fatalf("expected up-to-date result, got %+v", result)
	}
	if installer.calls != 0 {
		t.Error("up-to-date run must not install anything")
	}
	if _, err := os.Stat(root.BackupsDir()); !os.IsNotExist(err) {
		t.Error("up-to-date run must not create backups")
	}
}

func TestPerformUpdateForceReinstallsSameVersion(t *testing.T) {
	root := installedRoot(t, "1.1.0")
	reg := &fakeRegistry{
		latest:   map[string]string{"latest": "1.1.0"},
		versions: map[string]bool{"1.1.0": true},
	}
	installer := &fakeInstaller{sourceRoot: templateSource(t, "again")}
	orch := New(root, reg, installer, "latest")

	result, err := orch.PerformUpdate(context.Background(), Options{Force: true})
	if err != nil {
		t.Fatalf("PerformUpdate: %v", err)
	}
	if result.UpToDate {
		t.Error("forced run must not short-circuit")
	}
	if installer.calls != 1 {
		t.Errorf("expected a reinstall, got %d calls", installer.calls)
	}
}

func TestPerformUpdateUnpublishedPinnedVersion(t *testing.T) {
	root := installedRoot(t, "1.0.0")
	reg := &fakeRegistry{versions: map[string]bool{}}
	installer := &fakeInstaller{}
	orch := New(root, reg, installer, "latest")

	_, err := orch.PerformUpdate(context.Background(), Options{TargetVersion: "9.9.9"})
	if errs.TagOf(err) != errs.TagVersionNotFound {
		t.Fatalf("expected TagVersionNotFound, got %v", err)
	}
	if installer.calls != 0 {
		t.Error("a failed pre-flight must not install anything")
	}
	version, _ := install.NewVersionStore(root).Version()
	if version != "1.0.0" {
		t.Errorf("VERSION must be untouched, got %q", version)
	}
}

func TestPerformUpdateMigratesLegacyLayout(t *testing.T) {
	root := installedRoot(t, "1.0.0")
	// A leftover legacy directory alongside the current one.
	legacy := filepath.Join(root.Path, "gsd", "old-workflow.md")
	if err := os.MkdirAll(filepath.Dir(legacy), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(legacy, []byte("legacy"), 0o644); err != nil {
		t.Fatal(err)
	}

	reg := &fakeRegistry{
		latest:   map[string]string{"latest": "1.1.0"},
		versions: map[string]bool{"1.1.0": true},
	}
	orch := New(root, reg, &fakeInstaller{sourceRoot: templateSource(t, "v1.1.0")}, "latest")

	result, err := orch.PerformUpdate(context.Background(), Options{})
	if err != nil {
		t.Fatalf("PerformUpdate: %v", err)
	}
	if !result.Success {
		t.Fatalf("unexpected result %+v", result)
	}
	if _, err := os.Stat(filepath.Join(root.Path, "gsd")); !os.IsNotExist(err) {
		t.Error("legacy directory should be gone after migration")
	}
	if _, err := os.Stat(filepath.Join(root.Path, "get-shit-done", "old-workflow.md")); err != nil {
		t.Errorf("legacy file should be merged into the new layout: %v", err)
	}
	if got := install.DetectStructure(root); got != install.StructureNew {
		t.Errorf("expected new structure, got %s", got)
	}
}

func TestPerformUpdateSkipMigrationWarns(t *testing.T) {
	root := installedRoot(t, "1.0.0")
	if err := os.MkdirAll(filepath.Join(root.Path, "gsd"), 0o755); err != nil {
		t.Fatal(err)
	}

	reg := &fakeRegistry{
		latest:   map[string]string{"latest": "1.1.0"},
		versions: map[string]bool{"1.1.0": true},
	}
	orch := New(root, reg, &fakeInstaller{sourceRoot: templateSource(t, "v1.1.0")}, "latest")

	result, err := orch.PerformUpdate(context.Background(), Options{SkipMigration: true})
	if err != nil {
		t.Fatalf("PerformUpdate: %v", err)
	}
	if !result.Success {
		t.Fatalf("skipping migration must not fail the update: %+v", result)
	}
	var found bool
	for _, w := range result.Warnings {
		if strings.Contains(w, "legacy layout") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a legacy-layout warning, got %v", result.Warnings)
	}
	if _, err := os.Stat(filepath.Join(root.Path, "gsd")); err != nil {
		t.Errorf("legacy directory must be left alone: %v", err)
	}
}

func TestPerformUpdateRegistryDownAbortsEarly(t *testing.T) {
	root := installedRoot(t, "1.0.0")
	reg := &fakeRegistry{err: errs.Newf(errs.TagNetworkError, "registry", "registry unreachable")}
	installer := &fakeInstaller{}
	orch := New(root, reg, installer, "latest")

	_, err := orch.PerformUpdate(context.Background(), Options{})
	if errs.TagOf(err) != errs.TagNetworkError {
		t.Fatalf("expected TagNetworkError, got %v", err)
	}
	if installer.calls != 0 {
		t.Error("network failure must abort before any destructive step")
	}
	version, _ := install.NewVersionStore(root).Version()
	if version != "1.0.0" {
		t.Errorf("VERSION must be untouched, got %q", version)
	}
}
