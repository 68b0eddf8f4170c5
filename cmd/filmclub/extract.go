// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/filmclub/internal/export"
	"github.com/pdiddy/filmclub/internal/extract"
	"github.com/pdiddy/filmclub/internal/ledger"
	"github.com/pdiddy/filmclub/internal/letterboxd"
	"github.com/pdiddy/filmclub/pkg/types"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Export a Letterboxd list or profile into flat tables",
	Long: `Extract walks the pages of the club list (or a member's watched films),
fetches every film page, and merges the records into the previous export
with last-write-wins per film id. All tables and the run manifest are
written together; a failed run leaves the previous export untouched.

With --suffix the tables are written next to the canonical export
(for example fc_generaldata_new.csv) and a comparison report is produced.`,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().String("source", string(types.SourceClub), "what to extract: club or profile")
	extractCmd.Flags().String("list-url", "", "club list URL (default: FILMCLUB_LIST_URL or the club list)")
	extractCmd.Flags().String("username", "", "profile owner for --source profile (default: LETTERBOXD_USERNAME)")
	extractCmd.Flags().String("base-url", "", "site root for relative links (default: LETTERBOXD_BASE_URL or https://letterboxd.com)")
	extractCmd.Flags().String("out-dir", defaultOutDir, "directory the export tables are written to")
	extractCmd.Flags().String("prior-dir", "", "directory of the export to merge with (default: --out-dir)")
	extractCmd.Flags().String("suffix", "", "suffix appended to every table file name, e.g. _new")
	extractCmd.Flags().String("report-path", "", "write the comparison report here when --suffix is set (default: stdout)")
	extractCmd.Flags().Int("max-pages", 0, "stop after this many list pages (0 means no limit)")
	extractCmd.Flags().String("ledger", defaultLedger, "SQLite run ledger (empty disables it)")
	addHTTPFlags(extractCmd)

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	h, r := httpSettings(cmd)
	cfg := types.ExtractionConfig{
		HTTPConfig:  h,
		RetryConfig: r,
		Source:      types.SourceKind(settingString(cmd, "source")),
		ListURL:     firstNonEmpty(settingString(cmd, "list-url"), creds.ListURL, letterboxd.DefaultListURL),
		Username:    firstNonEmpty(settingString(cmd, "username"), creds.Username),
		OutDir:      settingString(cmd, "out-dir"),
		PriorDir:    settingString(cmd, "prior-dir"),
		Suffix:      settingString(cmd, "suffix"),
		MaxPages:    settingInt(cmd, "max-pages"),
	}

	client := newClient(cfg.HTTPConfig, cfg.RetryConfig)
	src := letterboxd.ListSource{Client: client, ListURL: cfg.ListURL}
	switch cfg.Source {
	case types.SourceClub:
	case types.SourceProfile:
		if cfg.Username == "" {
			return fmt.Errorf("--source profile needs --username or LETTERBOXD_USERNAME")
		}
		src.ListURL = client.ProfileURL(cfg.Username)
	default:
		return fmt.Errorf("unknown source %q (want club or profile)", cfg.Source)
	}

	ex := extract.New(cfg, src, log.WithField("source", cfg.Source), os.Stdout)
	if path := settingString(cmd, "ledger"); path != "" {
		store, err := ledger.Open(path)
		if err != nil {
			return err
		}
		defer store.Close()
		ex.WithRecorder(store)
	}

	fmt.Fprintf(os.Stdout, "Extracting %s into %s\n", src.ListURL, cfg.OutDir)
	res, err := ex.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("extraction failed in state %s: %w", res.State, err)
	}
	if res.HasSkips() {
		log.WithField("skipped", res.Skipped).Warn("some films were skipped; see the skipped lines above")
	}

	if cfg.Suffix == "" {
		return nil
	}
	_, err = writeCompareReport(cfg.OutDir, cfg.Prefix(), cfg.Suffix, settingString(cmd, "report-path"))
	return err
}

// writeCompareReport compares the suffixed tables with the canonical ones
// and writes the report to path, or stdout when path is empty.
func writeCompareReport(dir, prefix, suffix, path string) (bool, error) {
	comps, err := export.CompareRaw(dir, prefix, suffix)
	if err != nil {
		return false, err
	}
	if path == "" {
		return export.RenderReport(os.Stdout, comps), nil
	}

	var buf bytes.Buffer
	match := export.RenderReport(&buf, comps)
	if err := export.Commit([]export.Pending{{Path: path, Data: buf.Bytes()}}); err != nil {
		return match, err
	}
	fmt.Fprintf(os.Stdout, "Comparison report written to %s\n", path)
	return match, nil
}
