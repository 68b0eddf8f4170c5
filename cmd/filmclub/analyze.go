// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/filmclub/internal/analysis"
	"github.com/pdiddy/filmclub/pkg/types"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Derive the report tables from an export",
	Long: `Analyze reads the raw export tables and writes the headline metrics,
films per release decade, the most frequent actors, directors and writers
with their films, and country, language, studio, genre and theme counts.`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().String("input-dir", defaultOutDir, "directory holding the raw export")
	analyzeCmd.Flags().String("output-dir", defaultAnalysisDir, "directory the analytical tables are written to")
	analyzeCmd.Flags().String("prefix", "", "table name prefix (default: fc_, or <username>_ with --username)")
	analyzeCmd.Flags().String("username", "", "analyze a profile export")

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	prefix := settingString(cmd, "prefix")
	if prefix == "" {
		prefix = prefixFor(settingString(cmd, "username"))
	}
	cfg := types.AnalysisConfig{
		InputDir:  settingString(cmd, "input-dir"),
		OutputDir: settingString(cmd, "output-dir"),
		Prefix:    prefix,
	}
	_, err := analysis.Run(cfg, os.Stdout)
	return err
}
