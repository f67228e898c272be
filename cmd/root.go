/*
Copyright © 2025 gsd contributors
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/gsdhq/gsd/internal/errs"
	"github.com/gsdhq/gsd/internal/ops"
	"github.com/gsdhq/gsd/pkg/buildinfo"
	"github.com/gsdhq/gsd/pkg/exitcode"
	"github.com/gsdhq/gsd/pkg/logger"
	"github.com/spf13/cobra"
)

// newRootCommand creates a fresh root command instance.
// This factory pattern allows tests to create isolated command trees without shared state.
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gsd",
		Short: "Manage get-shit-done installations for Claude Code",
		Long: `gsd installs, verifies, repairs, and updates the get-shit-done prompt
templates inside a Claude Code configuration directory.

Examples:
   gsd install            # Install into ~/.claude
   gsd install --local    # Install into ./.claude
   gsd update             # Update to the latest published version
   gsd repair             # Verify files and fix what is broken
   gsd list               # Show installed files and their health`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			initializeLogger(cmd)
		},
	}

	// Add global flags
	cmd.PersistentFlags().String("log-level", "info", "Set log level (debug|info|warn|error)")
	cmd.PersistentFlags().Bool("json", false, "Output logs in JSON format")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	cmd.PersistentFlags().Bool("global", false, "Operate on the global installation (~/.claude)")
	cmd.PersistentFlags().Bool("local", false, "Operate on the project installation (./.claude)")

	// Wire Cobra's built-in --version using the binary version
	cmd.Version = buildinfo.BinaryVersion
	cmd.SetVersionTemplate("gsd {{.Version}}\n")

	// Grouped help in ops.GroupOrder (lifecycle, then inspect, then support)
	groupHeadings := map[ops.CommandGroup]string{
		ops.GroupLifecycle: "Lifecycle Commands:",
		ops.GroupInspect:   "Inspection Commands:",
		ops.GroupSupport:   "Support Commands:",
	}
	cmd.SetHelpFunc(func(cmd *cobra.Command, _ []string) {
		reg := ops.GetRegistry()
		cmd.Println(cmd.Long)
		for _, group := range ops.GroupOrder {
			cmd.Println()
			cmd.Println(groupHeadings[group])
			for _, c := range reg.ByGroup(group) {
				cmd.Printf("  %-12s %s\n", c.Name, c.Summary)
			}
		}
		cmd.Println()
		cmd.Println("Flags:")
		cmd.Print(cmd.UsageString())
	})

	return cmd
}

// registerSubcommands adds all subcommands to the root command.
// This is called from init() for production and can be called explicitly in tests.
func registerSubcommands(cmd *cobra.Command) {
	cmd.AddCommand(installCmd)
	cmd.AddCommand(uninstallCmd)
	cmd.AddCommand(updateCmd)
	cmd.AddCommand(repairCmd)
	cmd.AddCommand(listCmd)
	cmd.AddCommand(configCmd)
	cmd.AddCommand(versionCmd)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCommand()

// Execute runs the root command and maps failures onto the process exit
// codes. Tagged errors carry their own exit code and a remediation hint.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	logger.Error("Command execution failed", logger.Err(err))
	if suggestion := errs.Suggestion(err); suggestion != "" {
		fmt.Fprintf(os.Stderr, "hint: %s\n", suggestion)
	}
	code := errs.ExitCode(err)
	if code == exitcode.Success {
		code = exitcode.GeneralError
	}
	os.Exit(code)
}

func init() {
	// Register all subcommands with the production rootCmd
	registerSubcommands(rootCmd)
}

// initializeLogger sets up the logger based on command flags
func initializeLogger(cmd *cobra.Command) {
	logLevelStr, _ := cmd.Flags().GetString("log-level")
	jsonLogs, _ := cmd.Flags().GetBool("json")
	noColor, _ := cmd.Flags().GetBool("no-color")

	config := logger.Config{
		Level:     logger.ParseLevel(logLevelStr),
		UseColor:  !noColor,
		JSON:      jsonLogs,
		Component: "gsd",
	}

	if err := logger.Initialize(config); err != nil {
		if _, writeErr := os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n"); writeErr != nil {
			_ = writeErr
		}
		os.Exit(exitcode.GeneralError)
	}
}

// resolveScopeFlags reads the persistent --global/--local flags into an
// explicit scope string ("" when neither was given).
func resolveScopeFlags(cmd *cobra.Command) (string, error) {
	global, _ := cmd.Flags().GetBool("global")
	local, _ := cmd.Flags().GetBool("local")
	if global && local {
		return "", fmt.Errorf("--global and --local are mutually exclusive")
	}
	if global {
		return "global", nil
	}
	if local {
		return "local", nil
	}
	return "", nil
}
