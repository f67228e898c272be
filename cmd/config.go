/*
Copyright © 2025 gsd contributors
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/gsdhq/gsd/internal/ops"
	"github.com/gsdhq/gsd/pkg/logger"
	"github.com/gsdhq/gsd/pkg/settings"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read and write gsd settings",
	Long: `Read and write gsd settings. Settings live in a JSON file under the
user config directory; only explicitly set values are persisted, everything
else falls back to built-in defaults.

Keys are dot-separated, e.g.:
   gsd config get update.channel
   gsd config set update.channel beta
   gsd config reset update.channel
   gsd config list --format yaml`,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := settings.NewDefaultStore()
		if err != nil {
			return err
		}
		value, ok, err := store.Get(args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("unknown setting %q", args[0])
		}
		cmd.Printf("%v\n", value)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Persist one setting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := settings.NewDefaultStore()
		if err != nil {
			return err
		}
		if err := store.Set(args[0], coerceValue(args[1])); err != nil {
			return err
		}
		cmd.Printf("%s = %s\n", args[0], args[1])
		return nil
	},
}

var configResetCmd = &cobra.Command{
	Use:   "reset [key]",
	Short: "Drop a persisted setting (or all of them)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := settings.NewDefaultStore()
		if err != nil {
			return err
		}
		if len(args) == 0 {
			if err := store.ResetAll(); err != nil {
				return err
			}
			cmd.Println("All settings reset to defaults.")
			return nil
		}
		if err := store.Reset(args[0]); err != nil {
			return err
		}
		cmd.Printf("%s reset to default\n", args[0])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every setting with defaults applied",
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, _ := cmd.Flags().GetString("format")

		store, err := settings.NewDefaultStore()
		if err != nil {
			return err
		}
		all, err := store.List()
		if err != nil {
			return err
		}

		switch format {
		case "json":
			out, err := json.MarshalIndent(all, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(out))
		case "yaml":
			out, err := yaml.Marshal(all)
			if err != nil {
				return err
			}
			cmd.Print(string(out))
		case "text":
			keys, err := store.Keys()
			if err != nil {
				return err
			}
			sort.Strings(keys)
			for _, key := range keys {
				value, _, err := store.Get(key)
				if err != nil {
					return err
				}
				cmd.Printf("%s = %v\n", key, value)
			}
		default:
			return fmt.Errorf("unknown format %q (want text, json, or yaml)", format)
		}
		return nil
	},
}

func init() {
	if err := ops.RegisterCommand("config", ops.GroupSupport, configCmd, "Read and write gsd settings"); err != nil {
		logger.Error("Failed to register config command", logger.Err(err))
	}

	configListCmd.Flags().String("format", "text", "Output format (text|json|yaml)")

	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configResetCmd)
	configCmd.AddCommand(configListCmd)
}

// coerceValue turns CLI strings into typed settings values so that booleans
// and numbers round-trip instead of being stored as strings.
func coerceValue(raw string) interface{} {
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	return raw
}
