// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/pdiddy/filmclub/internal/ledger"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent extraction batches",
	Long: `History prints the most recent extraction batches recorded in the run
ledger: run id, source, timing, outcome and film counts. With --tables the
per-table row counts and checksums of each batch are listed too.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().String("ledger", defaultLedger, "SQLite run ledger")
	historyCmd.Flags().Int("limit", 20, "number of batches to list")
	historyCmd.Flags().Bool("tables", false, "list the tables written by each batch")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	store, err := ledger.Open(settingString(cmd, "ledger"))
	if err != nil {
		return err
	}
	defer store.Close()

	batches, err := store.Recent(cmd.Context(), settingInt(cmd, "limit"))
	if err != nil {
		return err
	}
	renderHistory(os.Stdout, batches, settingBool(cmd, "tables"))
	return nil
}

func renderHistory(w io.Writer, batches []ledger.Batch, withTables bool) {
	if len(batches) == 0 {
		fmt.Fprintln(w, "No batches recorded.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Run", "Source", "Prefix", "Started", "Duration", "Status", "Pages", "Films", "Added", "Updated", "Skipped"})
	for _, b := range batches {
		t.AppendRow(table.Row{
			b.RunID, b.Source, b.Prefix,
			b.StartedAt.Local().Format("2006-01-02 15:04:05"),
			duration(b), b.Status,
			b.Pages, b.Films, b.Added, b.Updated, b.Skipped,
		})
		if b.Error != "" {
			t.AppendRow(table.Row{"", "error: " + b.Error})
		}
	}
	t.Render()

	if !withTables {
		return
	}
	for _, b := range batches {
		if len(b.Tables) == 0 {
			continue
		}
		tt := table.NewWriter()
		tt.SetOutputMirror(w)
		tt.SetStyle(table.StyleLight)
		tt.SetTitle(b.RunID)
		tt.AppendHeader(table.Row{"Table", "Rows", "MD5", "Unchanged"})
		for _, mt := range b.Tables {
			tt.AppendRow(table.Row{mt.Name, mt.Rows, mt.MD5, mt.Unchanged})
		}
		tt.Render()
	}
}

func duration(b ledger.Batch) string {
	if b.FinishedAt.IsZero() {
		return "-"
	}
	return b.FinishedAt.Sub(b.StartedAt).Round(time.Millisecond).String()
}
