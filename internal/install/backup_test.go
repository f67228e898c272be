package install

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestVaultBackupFileCopiesNotMoves(t *testing.T) {
	root := testRoot(t)
	original := writeFile(t, root.Path, "get-shit-done/a.md", "original content")

	vault := NewVault(root, "repair")
	if !vault.Empty() {
		t.Fatal("new vault should be empty")
	}

	backup, err := vault.BackupFile(original)
	if err != nil {
		t.Fatalf("BackupFile: %v", err)
	}

	if _, err := os.Stat(original); err != nil {
		t.Fatalf("original must survive a backup: %v", err)
	}
	data, err := os.ReadFile(backup)
	if err != nil || string(data) != "original content" {
		t.Fatalf("backup content mismatch: %q, %v", data, err)
	}
	if vault.Empty() {
		t.Error("vault should not report empty after a backup")
	}
	if !strings.HasPrefix(backup, root.BackupsDir()) {
		t.Errorf("backup %s must live under %s", backup, root.BackupsDir())
	}
	// The backup mirrors the file's root-relative path.
	if !strings.HasSuffix(backup, filepath.FromSlash("get-shit-done/a.md")) {
		t.Errorf("backup path %s should mirror the relative path", backup)
	}
}

func TestVaultDirNameCarriesLabel(t *testing.T) {
	root := testRoot(t)
	vault := NewVault(root, "uninstall")
	if !strings.HasSuffix(vault.Dir(), "-uninstall") {
		t.Errorf("vault dir %s should end with the label", vault.Dir())
	}
}

func TestVaultRestoreRollsBack(t *testing.T) {
	root := testRoot(t)
	path := writeFile(t, root.Path, "gsd/old.md", "before migration")

	vault := NewVault(root, "repair")
	if err := vault.BackupTree(filepath.Join(root.Path, "gsd")); err != nil {
		t.Fatalf("BackupTree: %v", err)
	}

	// Simulate a failed migration that clobbered and removed files.
	if err := os.WriteFile(path, []byte("clobbered"), 0o644); err != nil {
		t.Fatalf("clobber: %v", err)
	}

	if err := vault.Restore(); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got := readFile(t, root.Path, "gsd/old.md"); got != "before migration" {
		t.Errorf("expected restored content, got %q", got)
	}
}

func TestVaultLazyDirectoryCreation(t *testing.T) {
	root := testRoot(t)
	vault := NewVault(root, "update")

	if _, err := os.Stat(vault.Dir()); !os.IsNotExist(err) {
		t.Fatal("vault directory must not exist before the first backup")
	}
}
