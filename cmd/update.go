/*
Copyright © 2025 gsd contributors
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/gsdhq/gsd/internal/install"
	"github.com/gsdhq/gsd/internal/ops"
	"github.com/gsdhq/gsd/internal/registry"
	"github.com/gsdhq/gsd/internal/update"
	"github.com/gsdhq/gsd/pkg/ascii"
	"github.com/gsdhq/gsd/pkg/logger"
	"github.com/spf13/cobra"
)

// updateCmd represents the update command
var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update to a newer published version",
	Long: `Update the installed templates to the latest published version (or a
pinned one with --version). The update detects and migrates legacy layouts,
backs up the version marker, installs the package via npm, then re-copies
the template tree with fresh path rewriting and a new manifest.

Post-update verification problems are reported as warnings; the update
itself is not rolled back once the new version is in place.`,
	RunE: runUpdate,
}

func init() {
	if err := ops.RegisterCommand("update", ops.GroupLifecycle, updateCmd, "Update to a newer version"); err != nil {
		logger.Error("Failed to register update command", logger.Err(err))
	}

	updateCmd.Flags().Bool("check", false, "Only check whether an update is available")
	updateCmd.Flags().Bool("beta", false, "Follow the beta dist-tag instead of the configured channel")
	updateCmd.Flags().String("version", "", "Update to a specific published version")
	updateCmd.Flags().Bool("force", false, "Re-run the update even when already at the target version")
	updateCmd.Flags().Bool("skip-migration", false, "Leave a legacy layout in place")
}

func runUpdate(cmd *cobra.Command, _ []string) error {
	explicit, err := resolveScopeFlags(cmd)
	if err != nil {
		return err
	}
	checkOnly, _ := cmd.Flags().GetBool("check")
	beta, _ := cmd.Flags().GetBool("beta")
	targetVersion, _ := cmd.Flags().GetString("version")
	force, _ := cmd.Flags().GetBool("force")
	skipMigration, _ := cmd.Flags().GetBool("skip-migration")

	root, err := install.ResolveScope(install.Scope(explicit), "")
	if err != nil {
		return err
	}

	orch := update.New(root, registry.NewClient(), update.NewNpmInstaller(), updateChannel(beta))
	ctx := cmd.Context()

	if checkOnly {
		check, err := orch.CheckForUpdate(ctx)
		if err != nil {
			return err
		}
		switch {
		case check.CurrentVersion == "":
			cmd.Printf("Not installed; latest published version is %s\n", check.LatestVersion)
		case check.UpdateAvailable:
			cmd.Printf("Update available: %s -> %s\n", check.CurrentVersion, check.LatestVersion)
		default:
			cmd.Printf("Up to date (%s)\n", check.CurrentVersion)
		}
		return nil
	}

	validation, err := orch.ValidateUpdate(ctx, targetVersion)
	if err != nil {
		return err
	}
	if !validation.Valid {
		for _, msg := range validation.Errors {
			cmd.PrintErrf("error: %s\n", msg)
		}
		return fmt.Errorf("update pre-flight failed")
	}

	result, err := orch.PerformUpdate(ctx, update.Options{
		TargetVersion: targetVersion,
		SkipMigration: skipMigration,
		Force:         force,
		OnProgress:    printProgress,
	})
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}

	if result.UpToDate {
		cmd.Printf("Already up to date (%s)\n", result.Version)
		return nil
	}

	lines := []string{
		"get-shit-done updated",
		fmt.Sprintf("Version: %s", result.Version),
		fmt.Sprintf("Files:   %d", result.Stats.FilesCopied),
	}
	cmd.Println(ascii.Box(lines))
	for _, warning := range result.Warnings {
		cmd.Printf("warning: %s\n", warning)
	}
	return nil
}

// printProgress renders phase progress as a single rewritten stderr line.
func printProgress(fraction float64, phase string) {
	fmt.Fprintf(os.Stderr, "\r[%3.0f%%] %-32s", fraction*100, phase)
}
