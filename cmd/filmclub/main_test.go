// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/filmclub/internal/export"
	"github.com/pdiddy/filmclub/internal/ledger"
)

func TestPrefixFor(t *testing.T) {
	assert.Equal(t, "fc_", prefixFor(""))
	assert.Equal(t, "dromemario_", prefixFor("dromemario"))
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Equal(t, "", firstNonEmpty("", ""))
}

func TestSettingPrecedence(t *testing.T) {
	t.Cleanup(viper.Reset)

	newCmd := func() *cobra.Command {
		cmd := &cobra.Command{Use: "x"}
		cmd.Flags().String("out-dir", "default", "")
		cmd.Flags().Int("max-pages", 0, "")
		cmd.Flags().Duration("delay", time.Second, "")
		cmd.Flags().Bool("force", false, "")
		return cmd
	}

	cmd := newCmd()
	assert.Equal(t, "default", settingString(cmd, "out-dir"))
	assert.Equal(t, time.Second, settingDuration(cmd, "delay"))

	viper.Set("out_dir", "from-config")
	viper.Set("max_pages", 3)
	viper.Set("delay", "2s")
	viper.Set("force", true)
	assert.Equal(t, "from-config", settingString(cmd, "out-dir"))
	assert.Equal(t, 3, settingInt(cmd, "max-pages"))
	assert.Equal(t, 2*time.Second, settingDuration(cmd, "delay"))
	assert.True(t, settingBool(cmd, "force"))

	require.NoError(t, cmd.Flags().Set("out-dir", "from-flag"))
	assert.Equal(t, "from-flag", settingString(cmd, "out-dir"))
}

func TestWriteCompareReport(t *testing.T) {
	dir := t.TempDir()
	tbl := export.NewRawTable(export.General)
	data, err := export.Encode(tbl)
	require.NoError(t, err)

	var files []export.Pending
	for _, name := range export.RawTables {
		d := data
		if name != export.General {
			d, err = export.Encode(export.NewRawTable(name))
			require.NoError(t, err)
		}
		files = append(files,
			export.Pending{Path: export.Path(dir, "fc_", name, ""), Data: d},
			export.Pending{Path: export.Path(dir, "fc_", name, "_new"), Data: d})
	}
	require.NoError(t, export.Commit(files))

	report := filepath.Join(dir, "report.txt")
	match, err := writeCompareReport(dir, "fc_", "_new", report)
	require.NoError(t, err)
	assert.True(t, match)

	got, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.Contains(t, string(got), "ALL FILES MATCH")
}

func TestRenderHistory(t *testing.T) {
	var buf bytes.Buffer
	renderHistory(&buf, nil, false)
	assert.Equal(t, "No batches recorded.\n", buf.String())

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	batches := []ledger.Batch{
		{
			RunID: "run-2", Source: "club", Prefix: "fc_", Status: ledger.StatusDone,
			StartedAt: start, FinishedAt: start.Add(1500 * time.Millisecond),
			Pages: 2, Films: 40, Added: 3, Updated: 37,
			Tables: []export.ManifestTable{{Name: "generaldata", Rows: 40, MD5: "abc"}},
		},
		{RunID: "run-1", Source: "club", Prefix: "fc_", Status: ledger.StatusFailed, StartedAt: start, Error: "access refused"},
	}

	buf.Reset()
	renderHistory(&buf, batches, true)
	out := buf.String()
	assert.Contains(t, out, "run-2")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "error: access refused")
	assert.Contains(t, out, "generaldata")
	assert.Contains(t, out, "abc")
}
