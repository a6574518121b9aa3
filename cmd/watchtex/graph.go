package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mschirtzinger/watchtex/internal/tex"
)

var graphCmd = &cobra.Command{
	Use:   "graph [path]",
	Short: "Print the include graph of a document tree",
	Long: `Analyze a LaTeX file or directory tree once and print its include graph.

"deps" maps each document to the files it includes; "roots" maps each
included file back to the documents that include it.

Example usage:
  watchtex graph                 # Graph of the current directory
  watchtex graph --format json   # Same, as JSON`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "."
		if len(args) > 0 {
			path = args[0]
		}
		format, _ := cmd.Flags().GetString("format")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return writeGraph(cmd.OutOrStdout(), path, cfg.IgnoreDirs, format)
	},
}

func init() {
	graphCmd.Flags().String("format", "yaml", "output format (yaml or json)")
	rootCmd.AddCommand(graphCmd)
}

func writeGraph(w io.Writer, path string, ignoreDirs []string, format string) error {
	if format != "yaml" && format != "json" {
		return fmt.Errorf("unknown format %q", format)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return err
	}

	g := tex.NewGraph()
	tex.NewAnalyzer(g, ignoreDirs).Analyze(abs)
	snap := g.Snapshot()

	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(snap); err != nil {
		return err
	}
	return enc.Close()
}
