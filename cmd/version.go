/*
Copyright © 2025 gsd contributors
*/
package cmd

import (
	"github.com/gsdhq/gsd/internal/install"
	"github.com/gsdhq/gsd/internal/ops"
	"github.com/gsdhq/gsd/internal/registry"
	"github.com/gsdhq/gsd/pkg/buildinfo"
	"github.com/gsdhq/gsd/pkg/logger"
	"github.com/gsdhq/gsd/pkg/versioning"
	"github.com/spf13/cobra"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the gsd version",
	RunE:  runVersion,
}

func init() {
	if err := ops.RegisterCommand("version", ops.GroupSupport, versionCmd, "Show the gsd version"); err != nil {
		logger.Error("Failed to register version command", logger.Err(err))
	}

	versionCmd.Flags().Bool("check", false, "Compare the installed templates against the registry")
	versionCmd.Flags().Bool("extended", false, "Include module build information")
}

func runVersion(cmd *cobra.Command, _ []string) error {
	check, _ := cmd.Flags().GetBool("check")
	extended, _ := cmd.Flags().GetBool("extended")

	cmd.Printf("gsd %s\n", buildinfo.BinaryVersion)
	if extended {
		cmd.Printf("module %s\n", buildinfo.ModuleVersion())
	}

	if !check {
		return nil
	}

	explicit, err := resolveScopeFlags(cmd)
	if err != nil {
		return err
	}
	root, err := install.ResolveScope(install.Scope(explicit), "")
	if err != nil {
		return err
	}
	installed, err := install.NewVersionStore(root).Version()
	if err != nil {
		return err
	}
	if installed == "" {
		cmd.Printf("templates: not installed at %s\n", root.Path)
		return nil
	}

	latest, err := registry.NewClient().LatestVersion(cmd.Context(), registry.PackageName, updateChannel(false))
	if err != nil {
		return err
	}
	cmd.Printf("templates: %s installed at %s\n", installed, root.Path)
	if latest == "" {
		cmd.Println("registry:  no published version found")
		return nil
	}
	cmp, err := versioning.Compare(latest, installed)
	if err == nil && cmp == versioning.ComparisonGreater {
		cmd.Printf("registry:  %s available, run 'gsd update'\n", latest)
	} else {
		cmd.Printf("registry:  %s (up to date)\n", latest)
	}
	return nil
}
