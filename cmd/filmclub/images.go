// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/filmclub/internal/imagecache"
	"github.com/pdiddy/filmclub/pkg/types"
)

var imagesCmd = &cobra.Command{
	Use:   "images",
	Short: "Cache avatar images of the most frequent people",
	Long: `Images reads the popular actors, directors and writers tables, picks the
top three of each role (extended to ties, up to five), finds each person's
avatar on their Letterboxd page and downloads it. Existing images are kept
unless --force is set. The person_images table maps people to files.

Person pages that refuse plain HTTP clients can be read from saved copies
in --html-dir, or rendered in a local Chrome with --use-browser.`,
	RunE: runImages,
}

func init() {
	imagesCmd.Flags().String("analysis-dir", defaultAnalysisDir, "directory holding the analytical tables")
	imagesCmd.Flags().String("images-dir", "", "directory images are written to (default: <analysis-dir>/person_images)")
	imagesCmd.Flags().String("prefix", "", "table name prefix (default: fc_, or <username>_ with --username)")
	imagesCmd.Flags().String("username", "", "use the tables of a profile export")
	imagesCmd.Flags().String("base-url", "", "site root for person links (default: LETTERBOXD_BASE_URL or https://letterboxd.com)")
	imagesCmd.Flags().Bool("force", false, "download images even when the file exists")
	imagesCmd.Flags().String("html-dir", "", "saved person pages used when a request is refused")
	imagesCmd.Flags().Bool("use-browser", false, "render person pages in a headless Chrome")
	imagesCmd.Flags().String("profile-dir", "", "persistent Chrome profile for --use-browser")
	imagesCmd.Flags().Bool("headed", false, "show the Chrome window")
	addHTTPFlags(imagesCmd)

	rootCmd.AddCommand(imagesCmd)
}

func runImages(cmd *cobra.Command, args []string) error {
	h, r := httpSettings(cmd)
	prefix := settingString(cmd, "prefix")
	if prefix == "" {
		prefix = prefixFor(settingString(cmd, "username"))
	}
	cfg := types.ImageCacheConfig{
		HTTPConfig:  h,
		RetryConfig: r,
		AnalysisDir: settingString(cmd, "analysis-dir"),
		ImagesDir:   settingString(cmd, "images-dir"),
		Prefix:      prefix,
		Force:       settingBool(cmd, "force"),
		HTMLDir:     settingString(cmd, "html-dir"),
		UseBrowser:  settingBool(cmd, "use-browser"),
		ProfileDir:  settingString(cmd, "profile-dir"),
		Headed:      settingBool(cmd, "headed"),
	}
	if cfg.ImagesDir == "" {
		cfg.ImagesDir = filepath.Join(cfg.AnalysisDir, imagecache.Table)
	}

	var renderer imagecache.Renderer
	if cfg.UseBrowser {
		b, err := imagecache.LaunchBrowser(cfg.ProfileDir, cfg.Headed)
		if err != nil {
			return err
		}
		defer b.Close()
		renderer = b
	}

	c := imagecache.New(cfg, newClient(cfg.HTTPConfig, cfg.RetryConfig), renderer, log, os.Stdout)
	sum, err := c.Run(cmd.Context())
	if err != nil {
		return err
	}
	if sum.HasFailures() {
		return fmt.Errorf("%d of %d image(s) failed", sum.Errors, sum.Total())
	}
	return nil
}
