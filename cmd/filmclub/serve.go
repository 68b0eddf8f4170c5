// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/filmclub/internal/imagecache"
	"github.com/pdiddy/filmclub/internal/report"
	"github.com/pdiddy/filmclub/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analytical tables as a web report",
	Long: `Serve starts a read-only web report over the analytical tables and the
cached avatar images. Tables are read on every request, so rerunning
analyze or images updates the report without a restart.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "listen address")
	serveCmd.Flags().String("analysis-dir", defaultAnalysisDir, "directory holding the analytical tables")
	serveCmd.Flags().String("images-dir", "", "directory holding cached images (default: <analysis-dir>/person_images)")
	serveCmd.Flags().String("prefix", "", "table name prefix (default: fc_, or <username>_ with --username)")
	serveCmd.Flags().String("username", "", "serve the tables of a profile export")
	serveCmd.Flags().String("title", "", "page title")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	prefix := settingString(cmd, "prefix")
	if prefix == "" {
		prefix = prefixFor(settingString(cmd, "username"))
	}
	cfg := types.ReportConfig{
		Addr:        settingString(cmd, "addr"),
		AnalysisDir: settingString(cmd, "analysis-dir"),
		ImagesDir:   settingString(cmd, "images-dir"),
		Prefix:      prefix,
		Title:       settingString(cmd, "title"),
	}
	if cfg.ImagesDir == "" {
		cfg.ImagesDir = filepath.Join(cfg.AnalysisDir, imagecache.Table)
	}
	return report.New(cfg, log).ListenAndServe(cmd.Context())
}
