// Package update orchestrates version updates: health checks, structure
// migration, backup, package installation, the path-rewrite copy pass, and
// post-update verification, with phase-weighted progress reporting.
package update

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/gsdhq/gsd/internal/errs"
	"github.com/gsdhq/gsd/internal/install"
	"github.com/gsdhq/gsd/internal/registry"
	"github.com/gsdhq/gsd/pkg/logger"
	"github.com/gsdhq/gsd/pkg/versioning"
)

// Update phases in execution order. Weights reflect expected duration; the
// npm subprocess dominates.
const (
	phaseDetectStructure = "detect structure"
	phasePreCheck        = "pre-update health check"
	phaseMigrate         = "structure migration"
	phaseBackup          = "backup version marker"
	phaseInstallPackage  = "install package"
	phaseCopyTemplates   = "copy templates"
	phasePostCheck       = "post-update health check"
	phaseVerifyLayout    = "verify layout"
)

func updatePhases() []Phase {
	return []Phase{
		{Name: phaseDetectStructure, Weight: 0.05},
		{Name: phasePreCheck, Weight: 0.10},
		{Name: phaseMigrate, Weight: 0.15},
		{Name: phaseBackup, Weight: 0.05},
		{Name: phaseInstallPackage, Weight: 0.35},
		{Name: phaseCopyTemplates, Weight: 0.20},
		{Name: phasePostCheck, Weight: 0.05},
		{Name: phaseVerifyLayout, Weight: 0.05},
	}
}

// VersionSource is the registry surface the orchestrator needs.
type VersionSource interface {
	LatestVersion(ctx context.Context, pkg, distTag string) (string, error)
	VersionExists(ctx context.Context, pkg, version string) (bool, error)
}

// Orchestrator runs the update state machine for one resolved root.
type Orchestrator struct {
	root      install.Root
	versions  *install.VersionStore
	registry  VersionSource
	installer PackageInstaller
	channel   string
}

// New creates an update orchestrator. channel is the dist-tag consulted for
// the latest version ("latest" when empty).
func New(root install.Root, reg VersionSource, installer PackageInstaller, channel string) *Orchestrator {
	if channel == "" {
		channel = "latest"
	}
	return &Orchestrator{
		root:      root,
		versions:  install.NewVersionStore(root),
		registry:  reg,
		installer: installer,
		channel:   channel,
	}
}

// UpdateCheck is the result of a pure, mutation-free update check.
type UpdateCheck struct {
	CurrentVersion  string
	LatestVersion   string
	UpdateAvailable bool
}

// CheckForUpdate compares the installed version against the registry's
// latest for the configured channel. No filesystem mutation.
func (o *Orchestrator) CheckForUpdate(ctx context.Context) (*UpdateCheck, error) {
	current, err := o.versions.Version()
	if err != nil {
		return nil, err
	}
	latest, err := o.registry.LatestVersion(ctx, registry.PackageName, o.channel)
	if err != nil {
		return nil, err
	}

	check := &UpdateCheck{CurrentVersion: current, LatestVersion: latest}
	if current == "" || latest == "" {
		check.UpdateAvailable = current == "" && latest != ""
		return check, nil
	}
	cmp, err := versioning.Compare(latest, current)
	if err != nil {
		// Unparseable versions still allow an update attempt; report
		// available so the user can force a reinstall.
		check.UpdateAvailable = latest != current
		return check, nil
	}
	check.UpdateAvailable = cmp == versioning.ComparisonGreater
	return check, nil
}

// ValidationResult is the pre-flight outcome.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// ValidateUpdate confirms a pinned target version exists in the registry and
// that the installation root exists and is writable. No installed file is
// touched and nothing is created: a missing root is a validation error, and
// the writability probe uses a throwaway dotfile that is removed immediately.
func (o *Orchestrator) ValidateUpdate(ctx context.Context, targetVersion string) (*ValidationResult, error) {
	result := &ValidationResult{Valid: true}

	if targetVersion != "" {
		if !versioning.IsValid(targetVersion) {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf("%q is not a valid semantic version", targetVersion))
		} else {
			exists, err := o.registry.VersionExists(ctx, registry.PackageName, targetVersion)
			if err != nil {
				return nil, err
			}
			if !exists {
				result.Valid = false
				result.Errors = append(result.Errors, fmt.Sprintf("version %s is not published", targetVersion))
			}
		}
	}

	if _, err := os.Stat(o.root.Path); err != nil {
		result.Valid = false
		if os.IsNotExist(err) {
			result.Errors = append(result.Errors, fmt.Sprintf("installation root %s does not exist", o.root.Path))
		} else {
			result.Errors = append(result.Errors, fmt.Sprintf("installation root is not readable: %v", err))
		}
	} else if err := probeWritable(o.root.Path); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("installation root is not writable: %v", err))
	}

	return result, nil
}

// probeWritable checks the directory accepts new files without leaving one
// behind. Validation must not create the root itself.
func probeWritable(dir string) error {
	probe := filepath.Join(dir, ".gsd-write-probe")
	f, err := os.OpenFile(probe, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	_ = f.Close()
	return os.Remove(probe)
}

// Options controls a PerformUpdate run.
type Options struct {
	// TargetVersion pins the version; empty means the channel's latest.
	TargetVersion string
	// SkipMigration leaves a legacy layout in place.
	SkipMigration bool
	// Force re-runs the update even when already at the target version.
	Force bool
	// OnProgress receives phase-weighted progress.
	OnProgress ProgressFunc
}

// Result summarizes a PerformUpdate run.
type Result struct {
	Success  bool
	Version  string
	UpToDate bool
	Stats    install.InstallResult
	Warnings []string
	Errors   []string
}

// PerformUpdate runs the full phase sequence. Destructive phases run to
// completion or failure once begun; cancellation is only honored between
// phases. A failed migration aborts the whole update with a
// remediation-specific error. Post-update verification problems are
// warnings, not failures, because the version install itself already
// succeeded.
func (o *Orchestrator) PerformUpdate(ctx context.Context, opts Options) (*Result, error) {
	tracker := NewTracker(updatePhases(), opts.OnProgress)
	result := &Result{}

	// Phase: structure detection.
	tracker.Begin(phaseDetectStructure)
	structure := install.DetectStructure(o.root)
	tracker.Complete(phaseDetectStructure)

	// Phase: pre-update health check (informational; a broken install is
	// exactly what the update will replace).
	tracker.Begin(phasePreCheck)
	current, err := o.versions.Version()
	if err != nil {
		return result, err
	}
	manifest, fallback, err := install.LoadOrScan(o.root)
	if err != nil {
		return result, err
	}
	if fallback {
		result.Warnings = append(result.Warnings, "manifest missing or unreadable; pre-update check used a namespace scan")
	}
	if report, err := install.NewIntegrityChecker(o.root).DetectIssues(manifest, current); err == nil && report.TotalIssues() > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("pre-update check found %d issue(s); they will be replaced by the update", report.TotalIssues()))
	}
	tracker.Complete(phasePreCheck)

	// Resolve the target before anything destructive happens.
	target := opts.TargetVersion
	if target == "" {
		latest, err := o.registry.LatestVersion(ctx, registry.PackageName, o.channel)
		if err != nil {
			return result, err
		}
		if latest == "" {
			return result, errs.Newf(errs.TagVersionNotFound, "update", "registry has no %q version for %s", o.channel, registry.PackageName)
		}
		target = latest
	} else {
		exists, err := o.registry.VersionExists(ctx, registry.PackageName, target)
		if err != nil {
			return result, err
		}
		if !exists {
			return result, errs.Newf(errs.TagVersionNotFound, "update", "version %s is not published", target)
		}
	}
	result.Version = target

	if current == target && !opts.Force {
		// Already up to date: no backup, no install phase.
		result.Success = true
		result.UpToDate = true
		return result, nil
	}

	if err := ctx.Err(); err != nil {
		return result, errs.New(errs.TagInterrupted, "update", err)
	}

	// Phase: structure migration.
	if structure == install.StructureOld || structure == install.StructureDual {
		if opts.SkipMigration {
			tracker.Skip(phaseMigrate)
			result.Warnings = append(result.Warnings, "legacy layout left in place (--skip-migration)")
		} else {
			tracker.Begin(phaseMigrate)
			repairer := install.NewRepairOrchestrator(o.root, "")
			if err := repairer.RepairStructure(); err != nil {
				return result, classifyMigrationError(err, structure)
			}
			tracker.Complete(phaseMigrate)
		}
	} else {
		tracker.Skip(phaseMigrate)
	}

	// Phase: backup the version marker.
	tracker.Begin(phaseBackup)
	vault := install.NewVault(o.root, "update")
	if current != "" {
		if _, err := vault.BackupFile(o.root.VersionFile()); err != nil {
			return result, err
		}
	}
	tracker.Complete(phaseBackup)

	// Phase: install the target version via the package manager. Awaited to
	// completion; no other phase overlaps it.
	tracker.Begin(phaseInstallPackage)
	sourceRoot, err := o.installer.Install(ctx, target, o.root.Scope)
	if err != nil {
		return result, err
	}
	tracker.Complete(phaseInstallPackage)

	// Phase: path-rewrite copy pass with a fresh write-ahead manifest.
	tracker.Begin(phaseCopyTemplates)
	freshManifest := install.NewManifest(o.root)
	stats, err := install.NewFileInstaller(o.root, freshManifest).Install(sourceRoot)
	if err != nil {
		return result, err
	}
	result.Stats = *stats
	if err := o.versions.SetVersion(target); err != nil {
		return result, err
	}
	tracker.Complete(phaseCopyTemplates)

	// Phase: post-update health check (warning only from here on).
	tracker.Begin(phasePostCheck)
	if report, err := install.NewIntegrityChecker(o.root).DetectIssues(freshManifest, target); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("post-update check failed: %v", err))
	} else if report.TotalIssues() > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("post-update check found %d issue(s); run 'gsd repair'", report.TotalIssues()))
	}
	tracker.Complete(phasePostCheck)

	// Phase: the layout must have landed on the current structure.
	tracker.Begin(phaseVerifyLayout)
	if final := install.DetectStructure(o.root); final != install.StructureNew {
		result.Warnings = append(result.Warnings, fmt.Sprintf("layout is %s after update, expected new; run 'gsd repair --fix-structure'", final))
	}
	tracker.Complete(phaseVerifyLayout)

	logger.Info("update complete", logger.String("version", target))
	result.Success = true
	return result, nil
}

// classifyMigrationError maps a failed structure migration onto a
// remediation-specific message instead of a generic failure.
func classifyMigrationError(err error, structure install.StructureType) error {
	switch {
	case errors.Is(err, syscall.ENOSPC):
		return errs.New(errs.TagDiskFull, "structure migration", fmt.Errorf("not enough disk space to migrate the layout: %w", err))
	case errors.Is(err, fs.ErrPermission):
		return errs.New(errs.TagPermissionDenied, "structure migration", fmt.Errorf("no permission to move layout directories: %w", err))
	case errors.Is(err, syscall.EBUSY) || errors.Is(err, syscall.ETXTBSY):
		return errs.New(errs.TagUnknown, "structure migration", fmt.Errorf("a layout file is in use by another process; close it and retry: %w", err))
	case structure == install.StructureDual:
		return errs.New(errs.TagCorruptedState, "structure migration", fmt.Errorf("a previous migration was interrupted; run 'gsd repair --fix-structure': %w", err))
	default:
		return errs.New(errs.TagUnknown, "structure migration", err)
	}
}
