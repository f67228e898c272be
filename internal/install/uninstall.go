package install

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gsdhq/gsd/internal/errs"
	"github.com/gsdhq/gsd/pkg/logger"
)

// UninstallOptions controls an uninstall run.
type UninstallOptions struct {
	DryRun   bool
	NoBackup bool
}

// UninstallResult summarizes what was (or would be) removed.
type UninstallResult struct {
	// Removed lists root-relative paths of removed files. In dry-run mode it
	// lists what would be removed instead.
	Removed []string
	// Skipped lists manifest entries refused because they fall outside the
	// namespace allow-list.
	Skipped []string
	// BackupDir is the vault directory, empty when no backup was taken.
	BackupDir string
	// UsedFallbackScan is true when no manifest was present and the file
	// list came from a namespace scan.
	UsedFallbackScan bool
}

// Uninstaller removes an installation, bounded by the manifest and the
// namespace allow-list. Files outside the allow-list are never deleted even
// when an old manifest lists them.
type Uninstaller struct {
	root Root
}

// NewUninstaller creates an uninstaller for root.
func NewUninstaller(root Root) *Uninstaller {
	return &Uninstaller{root: root}
}

// Uninstall removes every manifest-listed file inside the allow-list, then
// the manifest and VERSION marker themselves, then prunes namespace
// directories left empty. With DryRun nothing is touched.
func (u *Uninstaller) Uninstall(opts UninstallOptions) (*UninstallResult, error) {
	manifest, fallback, err := LoadOrScan(u.root)
	if err != nil {
		return nil, err
	}
	if fallback {
		logger.Warn("manifest missing or unreadable, using namespace scan")
	}

	result := &UninstallResult{UsedFallbackScan: fallback}

	// Targets are the manifest entries inside the allow-list that are
	// still on disk, so a dry run reports exactly what a real run removes.
	var targets []string
	for _, entry := range manifest.Entries() {
		if !InAllowedNamespace(entry.RelativePath) {
			result.Skipped = append(result.Skipped, entry.RelativePath)
			continue
		}
		path := filepath.Join(u.root.Path, filepath.FromSlash(entry.RelativePath))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		targets = append(targets, entry.RelativePath)
	}
	sort.Strings(targets)

	if opts.DryRun {
		result.Removed = targets
		return result, nil
	}

	var vault *Vault
	if !opts.NoBackup {
		vault = NewVault(u.root, "uninstall")
	}

	for _, rel := range targets {
		path := filepath.Join(u.root.Path, filepath.FromSlash(rel))
		if vault != nil {
			if _, err := vault.BackupFile(path); err != nil {
				return result, err
			}
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return result, errs.Classify("remove file", err)
		}
		result.Removed = append(result.Removed, rel)
	}

	if err := manifest.Remove(); err != nil {
		return result, err
	}
	if err := NewVersionStore(u.root).Remove(); err != nil {
		return result, err
	}

	u.pruneEmptyNamespaceDirs()

	if vault != nil && !vault.Empty() {
		result.BackupDir = vault.Dir()
	}
	return result, nil
}

// pruneEmptyNamespaceDirs removes namespace directories that the uninstall
// emptied. Shared directories (agents/, commands/) are only removed when
// nothing else lives in them.
func (u *Uninstaller) pruneEmptyNamespaceDirs() {
	candidates := []string{
		filepath.Join(u.root.Path, newLayoutDir),
		filepath.Join(u.root.Path, oldLayoutDir),
		filepath.Join(u.root.Path, "commands", "gsd"),
		filepath.Join(u.root.Path, "commands"),
		filepath.Join(u.root.Path, "agents"),
	}
	for _, dir := range candidates {
		removeIfEmptyTree(dir)
	}
}

// removeIfEmptyTree deletes dir when it contains no files (empty child
// directories are pruned along the way).
func removeIfEmptyTree(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			removeIfEmptyTree(filepath.Join(dir, entry.Name()))
		}
	}
	entries, err = os.ReadDir(dir)
	if err != nil || len(entries) > 0 {
		return
	}
	if err := os.Remove(dir); err != nil && !os.IsNotExist(err) && !strings.Contains(err.Error(), "not empty") {
		logger.Debug("could not prune directory", logger.String("dir", dir), logger.Err(err))
	}
}
