/*
Copyright © 2025 gsd contributors
*/
package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/gsdhq/gsd/internal/install"
	"github.com/gsdhq/gsd/internal/ops"
	"github.com/gsdhq/gsd/pkg/ascii"
	"github.com/gsdhq/gsd/pkg/logger"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// listedFile is one manifest entry with its health, as rendered by list.
type listedFile struct {
	Path   string `json:"path" yaml:"path"`
	Size   int64  `json:"size" yaml:"size"`
	Status string `json:"status" yaml:"status"`
}

// listing is the full list output document.
type listing struct {
	Scope     string       `json:"scope" yaml:"scope"`
	Location  string       `json:"location" yaml:"location"`
	Version   string       `json:"version" yaml:"version"`
	Structure string       `json:"structure" yaml:"structure"`
	FromScan  bool         `json:"fromScan" yaml:"fromScan"`
	Files     []listedFile `json:"files" yaml:"files"`
	Issues    int          `json:"issues" yaml:"issues"`
}

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show installed files and their health",
	RunE:  runList,
}

func init() {
	if err := ops.RegisterCommand("list", ops.GroupInspect, listCmd, "Show installed files and their health"); err != nil {
		logger.Error("Failed to register list command", logger.Err(err))
	}

	listCmd.Flags().String("format", "text", "Output format (text|json|yaml)")
}

func runList(cmd *cobra.Command, _ []string) error {
	explicit, err := resolveScopeFlags(cmd)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")

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
		cmd.Printf("Nothing installed at %s\n", root.Path)
		return nil
	}
	version, err := versions.Version()
	if err != nil {
		return err
	}

	manifest, fallback, err := install.LoadOrScan(root)
	if err != nil {
		return err
	}
	report, err := install.NewIntegrityChecker(root).DetectIssues(manifest, version)
	if err != nil {
		return err
	}

	status := make(map[string]string)
	for _, issue := range report.Issues() {
		status[issue.RelativePath] = issue.Kind.String()
	}

	doc := listing{
		Scope:     string(root.Scope),
		Location:  root.Path,
		Version:   version,
		Structure: install.DetectStructure(root).String(),
		FromScan:  fallback,
		Issues:    report.TotalIssues(),
	}
	for _, entry := range manifest.Entries() {
		state, broken := status[entry.RelativePath]
		if !broken {
			state = "ok"
		}
		doc.Files = append(doc.Files, listedFile{
			Path:   entry.RelativePath,
			Size:   entry.Size,
			Status: state,
		})
	}

	switch format {
	case "json":
		out, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(out))
	case "yaml":
		out, err := yaml.Marshal(doc)
		if err != nil {
			return err
		}
		cmd.Print(string(out))
	case "text":
		lines := []string{
			"get-shit-done",
			fmt.Sprintf("Scope:     %s", doc.Scope),
			fmt.Sprintf("Location:  %s", doc.Location),
			fmt.Sprintf("Version:   %s", doc.Version),
			fmt.Sprintf("Structure: %s", doc.Structure),
			fmt.Sprintf("Files:     %d (%d issue(s))", len(doc.Files), doc.Issues),
		}
		cmd.Println(ascii.Box(lines))
		for _, file := range doc.Files {
			marker := " "
			if file.Status != "ok" {
				marker = "!"
			}
			cmd.Printf("%s %-9s %s\n", marker, file.Status, file.Path)
		}
		if doc.FromScan {
			cmd.Println("\nNote: no manifest was found; this list came from a namespace scan.")
		}
	default:
		return fmt.Errorf("unknown format %q (want text, json, or yaml)", format)
	}
	return nil
}
