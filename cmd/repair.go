/*
Copyright © 2025 gsd contributors
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/gsdhq/gsd/internal/errs"
	"github.com/gsdhq/gsd/internal/install"
	"github.com/gsdhq/gsd/internal/ops"
	"github.com/gsdhq/gsd/internal/update"
	"github.com/gsdhq/gsd/pkg/logger"
	"github.com/spf13/cobra"
)

// repairCmd represents the repair command
var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Verify installed files and fix what is broken",
	Long: `Check every installed file against the manifest and repair problems:
missing files are re-installed from the canonical package source, corrupted
files are replaced, and files still carrying unrewritten path references are
rewritten in place. Every touched file is backed up first, and each repair
is independent: one failure does not stop the rest.

A legacy directory layout is migrated with --fix-structure before file
repairs run.`,
	RunE: runRepair,
}

func init() {
	if err := ops.RegisterCommand("repair", ops.GroupLifecycle, repairCmd, "Verify and repair an installation"); err != nil {
		logger.Error("Failed to register repair command", logger.Err(err))
	}

	repairCmd.Flags().Bool("fix-structure", false, "Migrate a legacy directory layout")
	repairCmd.Flags().Bool("fix-all", false, "Fix everything without prompting (implies --fix-structure)")
	repairCmd.Flags().Bool("check-only", false, "Report problems without repairing")
	repairCmd.Flags().Bool("yes", false, "Do not ask for confirmation")
	repairCmd.Flags().String("source", "", "Repair from a local package directory instead of npm")
}

func runRepair(cmd *cobra.Command, _ []string) error {
	explicit, err := resolveScopeFlags(cmd)
	if err != nil {
		return err
	}
	fixStructure, _ := cmd.Flags().GetBool("fix-structure")
	fixAll, _ := cmd.Flags().GetBool("fix-all")
	checkOnly, _ := cmd.Flags().GetBool("check-only")
	yes, _ := cmd.Flags().GetBool("yes")
	sourceDir, _ := cmd.Flags().GetString("source")
	if fixAll {
		fixStructure = true
		yes = true
	}

	root, err := install.ResolveScope(install.Scope(explicit), "")
	if err != nil {
		return err
	}

	versions := install.NewVersionStore(root)
	installed, err := versions.IsInstalled()
	if err != nil {
		return err
	}
	if !installed {
		return fmt.Errorf("nothing installed at %s", root.Path)
	}
	version, err := versions.Version()
	if err != nil {
		return err
	}

	check := install.NewRepairOrchestrator(root, "").CheckStructure()
	if check.Structure == install.StructureOld || check.Structure == install.StructureDual {
		if !fixStructure {
			cmd.Printf("Layout is %s; run with --fix-structure to migrate it.\n", check.Structure)
		} else if !check.CanMigrate {
			return errs.Newf(errs.TagCorruptedState, "repair", "layout %s cannot be migrated automatically", check.Structure)
		} else if confirm(fmt.Sprintf("Migrate the %s layout at %s?", check.Structure, root.Path), yes) {
			if err := install.NewRepairOrchestrator(root, "").RepairStructure(); err != nil {
				return err
			}
			cmd.Println("Layout migrated.")
		}
	}

	manifest, fallback, err := install.LoadOrScan(root)
	if err != nil {
		return err
	}
	if fallback {
		cmd.Println("Note: no manifest was found; checking files discovered by a namespace scan.")
	}

	report, err := install.NewIntegrityChecker(root).DetectIssues(manifest, version)
	if err != nil {
		return err
	}

	printIntegrityReport(cmd, report)
	if len(report.Issues()) == 0 {
		return nil
	}
	if checkOnly {
		return nil
	}

	repairable := 0
	for _, issue := range report.Issues() {
		if issue.Repairable {
			repairable++
		}
	}
	if repairable == 0 {
		cmd.Println("No repairable issues (all affected files are outside the product namespaces).")
		return nil
	}

	if !confirm(fmt.Sprintf("Repair %d file(s)?", repairable), yes) {
		cmd.Println("Aborted.")
		return nil
	}

	sourceRoot := sourceDir
	if sourceRoot == "" {
		sourceRoot, err = update.NewNpmInstaller().Install(cmd.Context(), version, root.Scope)
		if err != nil {
			return err
		}
	}

	outcome, err := install.NewRepairOrchestrator(root, sourceRoot).Repair(report, func(current, total int) {
		fmt.Fprintf(os.Stderr, "\rRepairing %d/%d", current, total)
	})
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}

	cmd.Printf("Repaired %d file(s), %d failure(s)\n", outcome.Stats.Succeeded, outcome.Stats.Failed)
	for _, group := range [][]install.FileRepair{outcome.Results.Missing, outcome.Results.Corrupted, outcome.Results.Paths} {
		for _, repair := range group {
			if repair.Err != nil {
				cmd.Printf("  failed: %s: %v\n", repair.RelativePath, repair.Err)
			}
		}
	}
	if !outcome.Success {
		return fmt.Errorf("%d file(s) could not be repaired", outcome.Stats.Failed)
	}
	return nil
}

func printIntegrityReport(cmd *cobra.Command, report *install.IntegrityReport) {
	if report.TotalIssues() == 0 {
		cmd.Println("All installed files are healthy.")
		return
	}
	cmd.Printf("Found %d issue(s):\n", report.TotalIssues())
	for _, issue := range report.Issues() {
		note := ""
		if !issue.Repairable {
			note = " (outside namespaces, not repairable)"
		}
		cmd.Printf("  %-10s %s%s\n", issue.Kind, issue.RelativePath, note)
	}
	if report.VersionMismatch {
		cmd.Printf("  version marker reads %q\n", report.InstalledVersion)
	}
}
