package install

import (
	"os"
	"path/filepath"
	"testing"
)

func TestUninstallRemovesInstalledFiles(t *testing.T) {
	root := testRoot(t)
	installFixture(t, root)
	// A neighbor file the uninstall must never touch.
	neighbor := writeFile(t, root.Path, "settings.json", "{}")

	result, err := NewUninstaller(root).Uninstall(UninstallOptions{})
	if err != nil {
		t.Fatalf("Uninstall: %v", err)
	}
	if len(result.Removed) != 3 {
		t.Errorf("expected 3 removed, got %v", result.Removed)
	}

	for _, rel := range []string{
		"get-shit-done/workflows/plan.md",
		"commands/gsd/plan.md",
		"agents/gsd-planner.md",
		"VERSION",
		"INSTALLED_FILES.json",
	} {
		if _, err := os.Stat(filepath.Join(root.Path, filepath.FromSlash(rel))); !os.IsNotExist(err) {
			t.Errorf("%s should be gone", rel)
		}
	}
	if _, err := os.Stat(neighbor); err != nil {
		t.Errorf("neighbor file must survive: %v", err)
	}

	installed, err := NewVersionStore(root).IsInstalled()
	if err != nil || installed {
		t.Errorf("expected not installed after uninstall, got %v/%v", installed, err)
	}
}

func TestUninstallSkipsEntriesOutsideNamespaces(t *testing.T) {
	root := testRoot(t)
	manifest := installFixture(t, root)

	// A stale manifest entry claiming a foreign file.
	foreign := writeFile(t, root.Path, "CLAUDE.md", "user file")
	info, _ := os.Stat(foreign)
	manifest.Update(Entry{Path: foreign, RelativePath: "CLAUDE.md", Size: info.Size()})
	if err := manifest.Persist(); err != nil {
		t.Fatal(err)
	}

	result, err := NewUninstaller(root).Uninstall(UninstallOptions{})
	if err != nil {
		t.Fatalf("Uninstall: %v", err)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != "CLAUDE.md" {
		t.Fatalf("expected CLAUDE.md skipped, got %v", result.Skipped)
	}
	if _, err := os.Stat(foreign); err != nil {
		t.Errorf("foreign file must never be deleted: %v", err)
	}
}

func TestUninstallDryRunTouchesNothing(t *testing.T) {
	root := testRoot(t)
	installFixture(t, root)

	result, err := NewUninstaller(root).Uninstall(UninstallOptions{DryRun: true})
	if err != nil {
		t.Fatalf("Uninstall: %v", err)
	}
	if len(result.Removed) != 3 {
		t.Errorf("dry run should list 3 targets, got %v", result.Removed)
	}
	if result.BackupDir != "" {
		t.Error("dry run must not create backups")
	}

	// Everything still in place, including the marker.
	installed, err := NewVersionStore(root).IsInstalled()
	if err != nil || !installed {
		t.Errorf("dry run must not uninstall, got %v/%v", installed, err)
	}
	if _, err := os.Stat(root.ManifestFile()); err != nil {
		t.Errorf("manifest must survive a dry run: %v", err)
	}
}

func TestUninstallDryRunMatchesRealRun(t *testing.T) {
	root := testRoot(t)
	installFixture(t, root)

	// A manifest entry whose file has already disappeared must not be
	// listed: the dry run reports exactly what a real run removes.
	gone := filepath.Join(root.Path, "agents", "gsd-planner.md")
	if err := os.Remove(gone); err != nil {
		t.Fatal(err)
	}

	dry, err := NewUninstaller(root).Uninstall(UninstallOptions{DryRun: true})
	if err != nil {
		t.Fatalf("Uninstall dry run: %v", err)
	}
	if len(dry.Removed) != 2 {
		t.Errorf("dry run should list 2 targets, got %v", dry.Removed)
	}
	for _, rel := range dry.Removed {
		if rel == "agents/gsd-planner.md" {
			t.Errorf("dry run listed a file that no longer exists: %v", dry.Removed)
		}
	}

	actual, err := NewUninstaller(root).Uninstall(UninstallOptions{NoBackup: true})
	if err != nil {
		t.Fatalf("Uninstall: %v", err)
	}
	if len(actual.Removed) != len(dry.Removed) {
		t.Errorf("dry run listed %v but real run removed %v", dry.Removed, actual.Removed)
	}
}

func TestUninstallBacksUpByDefault(t *testing.T) {
	root := testRoot(t)
	installFixture(t, root)

	result, err := NewUninstaller(root).Uninstall(UninstallOptions{})
	if err != nil {
		t.Fatalf("Uninstall: %v", err)
	}
	if result.BackupDir == "" {
		t.Fatal("expected a backup directory")
	}
	if _, err := os.Stat(filepath.Join(result.BackupDir, "agents", "gsd-planner.md")); err != nil {
		t.Errorf("expected backed-up file: %v", err)
	}
}

func TestUninstallNoBackup(t *testing.T) {
	root := testRoot(t)
	installFixture(t, root)

	result, err := NewUninstaller(root).Uninstall(UninstallOptions{NoBackup: true})
	if err != nil {
		t.Fatalf("Uninstall: %v", err)
	}
	if result.BackupDir != "" {
		t.Errorf("expected no backup, got %s", result.BackupDir)
	}
}

func TestUninstallFallsBackToNamespaceScan(t *testing.T) {
	root := testRoot(t)
	installFixture(t, root)
	if err := os.Remove(root.ManifestFile()); err != nil {
		t.Fatal(err)
	}

	result, err := NewUninstaller(root).Uninstall(UninstallOptions{})
	if err != nil {
		t.Fatalf("Uninstall: %v", err)
	}
	if !result.UsedFallbackScan {
		t.Error("expected fallback scan without a manifest")
	}
	if len(result.Removed) != 3 {
		t.Errorf("scan should find all 3 namespace files, got %v", result.Removed)
	}
}

func TestUninstallPrunesEmptyNamespaceDirs(t *testing.T) {
	root := testRoot(t)
	installFixture(t, root)
	// commands/ has an unrelated neighbor, so it must survive the prune.
	writeFile(t, root.Path, "commands/other/cmd.md", "neighbor")

	if _, err := NewUninstaller(root).Uninstall(UninstallOptions{NoBackup: true}); err != nil {
		t.Fatalf("Uninstall: %v", err)
	}

	for _, rel := range []string{"get-shit-done", "commands/gsd"} {
		if _, err := os.Stat(filepath.Join(root.Path, filepath.FromSlash(rel))); !os.IsNotExist(err) {
			t.Errorf("%s should be pruned", rel)
		}
	}
	if _, err := os.Stat(filepath.Join(root.Path, "commands", "other")); err != nil {
		t.Errorf("commands/other must survive: %v", err)
	}
}
