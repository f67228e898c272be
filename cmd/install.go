/*
Copyright © 2025 gsd contributors
*/
package cmd

import (
	"fmt"

	"github.com/gsdhq/gsd/internal/errs"
	"github.com/gsdhq/gsd/internal/install"
	"github.com/gsdhq/gsd/internal/ops"
	"github.com/gsdhq/gsd/internal/registry"
	"github.com/gsdhq/gsd/internal/update"
	"github.com/gsdhq/gsd/pkg/ascii"
	"github.com/gsdhq/gsd/pkg/buildinfo"
	"github.com/gsdhq/gsd/pkg/logger"
	"github.com/gsdhq/gsd/pkg/settings"
	"github.com/spf13/cobra"
)

// installCmd represents the install command
var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the get-shit-done templates",
	Long: `Install the get-shit-done templates into a Claude Code configuration
directory. Global scope targets ~/.claude (or $GSD_CONFIG_DIR); local scope
targets ./.claude in the current project.

Files are copied one at a time with a stage-then-rename write, path tokens
inside template text are rewritten to the resolved root, and every placed
file is recorded in the manifest before the next copy begins. The VERSION
marker is written last, so a present marker always means a complete install.`,
	RunE: runInstall,
}

func init() {
	if err := ops.RegisterCommand("install", ops.GroupLifecycle, installCmd, "Install the templates into a scope"); err != nil {
		logger.Error("Failed to register install command", logger.Err(err))
	}

	installCmd.Flags().String("config-dir", "", "Override the global installation directory")
	installCmd.Flags().String("source", "", "Install from a local package directory instead of npm")
	installCmd.Flags().String("version", "", "Install a specific published version")
	installCmd.Flags().Bool("force", false, "Reinstall even when already installed")
}

func runInstall(cmd *cobra.Command, _ []string) error {
	explicit, err := resolveScopeFlags(cmd)
	if err != nil {
		return err
	}
	configDir, _ := cmd.Flags().GetString("config-dir")
	sourceDir, _ := cmd.Flags().GetString("source")
	targetVersion, _ := cmd.Flags().GetString("version")
	force, _ := cmd.Flags().GetBool("force")

	scope := install.Scope(explicit)
	if scope == "" {
		scope = defaultInstallScope()
	}
	root, err := install.ResolveRoot(scope, configDir)
	if err != nil {
		return err
	}

	versions := install.NewVersionStore(root)
	if installed, err := versions.IsInstalled(); err != nil {
		return err
	} else if installed && !force {
		current, _ := versions.Version()
		return fmt.Errorf("already installed at %s (version %s); use --force to reinstall", root.Path, current)
	}

	ctx := cmd.Context()
	sourceRoot := sourceDir
	if sourceRoot == "" {
		if targetVersion == "" {
			latest, err := registry.NewClient().LatestVersion(ctx, registry.PackageName, updateChannel(false))
			if err != nil {
				return err
			}
			if latest == "" {
				return errs.Newf(errs.TagVersionNotFound, "install", "registry has no published version of %s", registry.PackageName)
			}
			targetVersion = latest
		}
		sourceRoot, err = update.NewNpmInstaller().Install(ctx, targetVersion, root.Scope)
		if err != nil {
			return err
		}
	}

	manifest := install.NewManifest(root)
	result, err := install.NewFileInstaller(root, manifest).Install(sourceRoot)
	if err != nil {
		return err
	}
	// The marker is what every other command gates on, so a successful
	// install must always leave one behind. A source tree without an
	// explicit version contributes its package.json version.
	if targetVersion == "" {
		targetVersion = install.PackageVersion(sourceRoot)
	}
	if targetVersion == "" {
		targetVersion = buildinfo.BinaryVersion
	}
	if err := versions.SetVersion(targetVersion); err != nil {
		return err
	}

	lines := []string{
		"get-shit-done installed",
		fmt.Sprintf("Scope:       %s", root.Scope),
		fmt.Sprintf("Location:    %s", root.Path),
		fmt.Sprintf("Files:       %d", result.FilesCopied),
		fmt.Sprintf("Directories: %d", result.Directories),
		fmt.Sprintf("Version:     %s", targetVersion),
	}
	cmd.Println(ascii.Box(lines))
	return nil
}

// defaultInstallScope consults the settings store; a broken store falls back
// to global rather than failing the install.
func defaultInstallScope() install.Scope {
	store, err := settings.NewDefaultStore()
	if err != nil {
		return install.ScopeGlobal
	}
	value, ok, err := store.Get("install.scope")
	if err != nil || !ok {
		return install.ScopeGlobal
	}
	if s, isString := value.(string); isString && install.Scope(s) == install.ScopeLocal {
		return install.ScopeLocal
	}
	return install.ScopeGlobal
}

// updateChannel maps the --beta flag and the configured channel onto an npm
// dist-tag.
func updateChannel(beta bool) string {
	if beta {
		return "beta"
	}
	store, err := settings.NewDefaultStore()
	if err != nil {
		return "latest"
	}
	value, ok, err := store.Get("update.channel")
	if err != nil || !ok {
		return "latest"
	}
	if s, isString := value.(string); isString && s != "" && s != "stable" {
		return s
	}
	return "latest"
}
