/*
Copyright © 2025 gsd contributors
*/
package cmd

import (
	"fmt"

	"github.com/gsdhq/gsd/internal/install"
	"github.com/gsdhq/gsd/internal/ops"
	"github.com/gsdhq/gsd/pkg/logger"
	"github.com/spf13/cobra"
)

// uninstallCmd represents the uninstall command
var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove an installation",
	Long: `Remove every installed template file, the manifest, and the VERSION
marker from the selected scope. Only files inside the product namespaces are
ever deleted; anything else listed in a stale manifest is skipped and
reported. Removed files are backed up first unless --no-backup is given.`,
	RunE: runUninstall,
}

func init() {
	if err := ops.RegisterCommand("uninstall", ops.GroupLifecycle, uninstallCmd, "Remove an installation from a scope"); err != nil {
		logger.Error("Failed to register uninstall command", logger.Err(err))
	}

	uninstallCmd.Flags().Bool("dry-run", false, "List what would be removed without removing anything")
	uninstallCmd.Flags().Bool("no-backup", false, "Skip the pre-removal backup")
	uninstallCmd.Flags().Bool("force", false, "Do not ask for confirmation")
}

func runUninstall(cmd *cobra.Command, _ []string) error {
	explicit, err := resolveScopeFlags(cmd)
	if err != nil {
		return err
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	noBackup, _ := cmd.Flags().GetBool("no-backup")
	force, _ := cmd.Flags().GetBool("force")

	root, err := install.ResolveScope(install.Scope(explicit), "")
	if err != nil {
		return err
	}

	installed, err := install.NewVersionStore(root).IsInstalled()
	if err != nil {
		return err
	}
	if !installed {
		// A root without a VERSION marker may still carry namespace files
		// from an interrupted install; offer to clean those too.
		manifest, _, scanErr := install.LoadOrScan(root)
		if scanErr != nil || manifest.Len() == 0 {
			cmd.Printf("Nothing installed at %s\n", root.Path)
			return nil
		}
	}

	uninstaller := install.NewUninstaller(root)

	if dryRun {
		result, err := uninstaller.Uninstall(install.UninstallOptions{DryRun: true})
		if err != nil {
			return err
		}
		cmd.Printf("Would remove %d file(s) from %s:\n", len(result.Removed), root.Path)
		for _, rel := range result.Removed {
			cmd.Printf("  %s\n", rel)
		}
		for _, rel := range result.Skipped {
			cmd.Printf("  (skipped, outside namespaces) %s\n", rel)
		}
		return nil
	}

	if !confirm(fmt.Sprintf("Remove the %s installation at %s?", root.Scope, root.Path), force) {
		cmd.Println("Aborted.")
		return nil
	}

	result, err := uninstaller.Uninstall(install.UninstallOptions{NoBackup: noBackup})
	if err != nil {
		return err
	}

	if result.UsedFallbackScan {
		cmd.Println("Note: no manifest was found; removal was limited to a namespace scan.")
	}
	cmd.Printf("Removed %d file(s) from %s\n", len(result.Removed), root.Path)
	for _, rel := range result.Skipped {
		cmd.Printf("  skipped (outside namespaces): %s\n", rel)
	}
	if result.BackupDir != "" {
		cmd.Printf("Backup kept at %s\n", result.BackupDir)
	}
	return nil
}
