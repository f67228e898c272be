package install

import (
	"os"
	"path/filepath"

	"github.com/gsdhq/gsd/internal/errs"
	"github.com/gsdhq/gsd/pkg/logger"
	"github.com/gsdhq/gsd/pkg/safeio"
)

// FileRepair records the outcome of one per-file repair attempt.
type FileRepair struct {
	RelativePath string
	Err          error
}

// RepairResults groups repairs by the kind of issue they addressed.
type RepairResults struct {
	Missing   []FileRepair
	Corrupted []FileRepair
	Paths     []FileRepair
}

// RepairStats counts outcomes across all attempted repairs.
type RepairStats struct {
	Succeeded int
	Failed    int
}

// RepairOutcome is the full result of a repair run.
type RepairOutcome struct {
	Success bool
	Results RepairResults
	Stats   RepairStats
}

// StructureCheck reports the detected layout and whether repair can act.
type StructureCheck struct {
	Structure  StructureType
	CanMigrate bool
}

// RepairOrchestrator re-installs or rewrites files the integrity checker
// flagged, and migrates legacy directory layouts. Every destructive step is
// preceded by a backup into the orchestrator's vault.
type RepairOrchestrator struct {
	root       Root
	sourceRoot string
	vault      *Vault
}

// NewRepairOrchestrator creates an orchestrator repairing root from the
// canonical template tree at sourceRoot.
func NewRepairOrchestrator(root Root, sourceRoot string) *RepairOrchestrator {
	return &RepairOrchestrator{
		root:       root,
		sourceRoot: sourceRoot,
		vault:      NewVault(root, "repair"),
	}
}

// Vault exposes the backup vault, mainly so commands can report where
// backups landed.
func (r *RepairOrchestrator) Vault() *Vault { return r.vault }

// CheckStructure re-detects the layout. Detection is stateless so a previous
// partial migration is always visible.
func (r *RepairOrchestrator) CheckStructure() StructureCheck {
	st := DetectStructure(r.root)
	return StructureCheck{
		Structure:  st,
		CanMigrate: st == StructureOld || st == StructureDual,
	}
}

// RepairStructure migrates the legacy layout into the current one. The old
// tree is backed up first; on any failure the backup is restored and the
// error surfaced. DUAL layouts merge with the new side winning, since an
// interrupted migration leaves the new side at least as current as the old.
func (r *RepairOrchestrator) RepairStructure() error {
	check := r.CheckStructure()
	if !check.CanMigrate {
		return errs.Newf(errs.TagNotFound, "migrate structure", "no legacy layout to migrate (structure: %s)", check.Structure)
	}

	oldDir := filepath.Join(r.root.Path, oldLayoutDir)
	newDir := filepath.Join(r.root.Path, newLayoutDir)

	if err := r.vault.BackupTree(oldDir); err != nil {
		return err
	}

	if err := r.mergeOldIntoNew(oldDir, newDir); err != nil {
		logger.Error("structure migration failed, rolling back", logger.Err(err))
		if restoreErr := r.vault.Restore(); restoreErr != nil {
			logger.Error("rollback failed", logger.Err(restoreErr))
		}
		return err
	}

	if err := os.RemoveAll(oldDir); err != nil {
		return errs.Classify("remove legacy directory", err)
	}
	logger.Info("structure migrated", logger.String("from", oldLayoutDir), logger.String("to", newLayoutDir))
	return nil
}

func (r *RepairOrchestrator) mergeOldIntoNew(oldDir, newDir string) error {
	return filepath.Walk(oldDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(oldDir, path)
		if err != nil {
			return err
		}
		dest := filepath.Join(newDir, rel)
		if _, err := os.Stat(dest); err == nil {
			// Already present in the new layout; keep the new copy.
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return safeio.WriteFileAtomic(dest, data, info.Mode()&0o777)
	})
}

// Repair fixes each repairable issue independently: missing and corrupted
// files are re-installed from the canonical source tree, stale-path files are
// rewritten in place. Existing files are backed up before being overwritten.
// One failure is recorded and does not abort the remaining repairs. Progress
// is reported as (current, total) after each file.
func (r *RepairOrchestrator) Repair(report *IntegrityReport, onProgress func(current, total int)) (*RepairOutcome, error) {
	manifest, _, err := LoadOrScan(r.root)
	if err != nil {
		return nil, err
	}
	installer := NewFileInstaller(r.root, nil)

	var repairable []Issue
	for _, issue := range report.Issues() {
		if issue.Repairable {
			repairable = append(repairable, issue)
		}
	}

	outcome := &RepairOutcome{Success: true}
	total := len(repairable)
	for i, issue := range repairable {
		var repairErr error
		switch issue.Kind {
		case IssueMissing, IssueCorrupted:
			repairErr = r.reinstallFile(installer, manifest, issue)
		case IssueStalePath:
			repairErr = r.rewriteFile(manifest, issue)
		}

		record := FileRepair{RelativePath: issue.RelativePath, Err: repairErr}
		switch issue.Kind {
		case IssueMissing:
			outcome.Results.Missing = append(outcome.Results.Missing, record)
		case IssueCorrupted:
			outcome.Results.Corrupted = append(outcome.Results.Corrupted, record)
		case IssueStalePath:
			outcome.Results.Paths = append(outcome.Results.Paths, record)
		}

		if repairErr != nil {
			outcome.Stats.Failed++
			outcome.Success = false
			logger.Warn("repair failed", logger.String("file", issue.RelativePath), logger.Err(repairErr))
		} else {
			outcome.Stats.Succeeded++
		}

		if onProgress != nil {
			onProgress(i+1, total)
		}
	}

	if err := manifest.Persist(); err != nil {
		return outcome, err
	}
	return outcome, nil
}

// reinstallFile restores one file from the canonical source tree, backing up
// whatever currently exists at its destination first.
func (r *RepairOrchestrator) reinstallFile(installer *FileInstaller, manifest *Manifest, issue Issue) error {
	rel := filepath.FromSlash(issue.RelativePath)
	dest := filepath.Join(r.root.Path, rel)

	if _, err := os.Stat(dest); err == nil {
		if _, err := r.vault.BackupFile(dest); err != nil {
			return err
		}
	}

	if err := installer.InstallFile(r.sourceRoot, rel); err != nil {
		return err
	}
	return r.refreshEntry(manifest, issue.RelativePath, dest)
}

// rewriteFile performs the path-token rewrite in place, backup first.
func (r *RepairOrchestrator) rewriteFile(manifest *Manifest, issue Issue) error {
	dest := filepath.Join(r.root.Path, filepath.FromSlash(issue.RelativePath))

	if _, err := r.vault.BackupFile(dest); err != nil {
		return err
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		return errs.Classify("read file", err)
	}
	rewritten := RewritePathTokens(data, r.root)
	if err := safeio.WriteFilePreservePerms(dest, rewritten); err != nil {
		return err
	}
	return r.refreshEntry(manifest, issue.RelativePath, dest)
}

func (r *RepairOrchestrator) refreshEntry(manifest *Manifest, relSlash, dest string) error {
	info, err := os.Stat(dest)
	if err != nil {
		return errs.Classify("stat repaired file", err)
	}
	hash, err := HashFile(dest)
	if err != nil {
		return errs.Classify("hash repaired file", err)
	}
	manifest.Update(Entry{
		Path:         dest,
		RelativePath: relSlash,
		Size:         info.Size(),
		Hash:         hash,
	})
	return nil
}
