// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/filmclub/pkg/types"
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare a suffixed export against the canonical one",
	Long: `Compare checks every raw table written with --suffix against the table of
the same name without the suffix: byte size, MD5, shape, columns and
per-column cell differences. It exits non-zero when any table differs.`,
	RunE: runCompare,
}

func init() {
	compareCmd.Flags().String("out-dir", defaultOutDir, "directory holding both exports")
	compareCmd.Flags().String("prefix", "", "table name prefix (default: fc_, or <username>_ with --username)")
	compareCmd.Flags().String("username", "", "compare a profile export")
	compareCmd.Flags().String("suffix", "_new", "suffix of the tables to check")
	compareCmd.Flags().String("report-path", "", "write the report here instead of stdout")

	rootCmd.AddCommand(compareCmd)
}

func runCompare(cmd *cobra.Command, args []string) error {
	prefix := settingString(cmd, "prefix")
	if prefix == "" {
		prefix = prefixFor(settingString(cmd, "username"))
	}
	match, err := writeCompareReport(settingString(cmd, "out-dir"), prefix, settingString(cmd, "suffix"), settingString(cmd, "report-path"))
	if err != nil {
		return err
	}
	if !match {
		return fmt.Errorf("exports differ")
	}
	return nil
}

// prefixFor returns the table prefix of a club (empty username) or
// profile export.
func prefixFor(username string) string {
	cfg := types.ExtractionConfig{Username: username, Source: types.SourceClub}
	if username != "" {
		cfg.Source = types.SourceProfile
	}
	return cfg.Prefix()
}
