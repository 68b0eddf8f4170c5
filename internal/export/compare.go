// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Comparison describes how a newly written table differs from an existing one.
type Comparison struct {
	NewPath      string
	ExistingPath string

	// ExistingMissing is set when there is nothing to compare against.
	ExistingMissing bool

	NewSize, ExistingSize   int64
	NewMD5, ExistingMD5     string
	NewShape, ExistingShape [2]int
	NewCols, ExistingCols   []string

	ColumnsEqual bool
	ExactEqual   bool

	// CellDiffs counts differing cells per column; only computed when both
	// tables have the same shape and columns.
	CellDiffs map[string]int

	// Match is the strict verdict: same bytes, shape, columns and cells.
	Match bool
}

// Compare reports byte size, MD5, shape, columns and cell equality of two
// table files.
func Compare(newPath, existingPath string) (Comparison, error) {
	c := Comparison{NewPath: newPath, ExistingPath: existingPath}

	existingInfo, err := os.Stat(existingPath)
	if errors.Is(err, fs.ErrNotExist) {
		c.ExistingMissing = true
		return c, nil
	}
	if err != nil {
		return c, err
	}
	newInfo, err := os.Stat(newPath)
	if err != nil {
		return c, err
	}
	c.NewSize, c.ExistingSize = newInfo.Size(), existingInfo.Size()

	if c.NewMD5, err = FileMD5(newPath); err != nil {
		return c, err
	}
	if c.ExistingMD5, err = FileMD5(existingPath); err != nil {
		return c, err
	}

	nt, err := Read(newPath, newPath)
	if err != nil {
		return c, err
	}
	et, err := Read(existingPath, existingPath)
	if err != nil {
		return c, err
	}
	c.NewShape = [2]int{nt.Len(), len(nt.Columns)}
	c.ExistingShape = [2]int{et.Len(), len(et.Columns)}
	c.NewCols, c.ExistingCols = nt.Columns, et.Columns
	c.ColumnsEqual = slices.Equal(nt.Columns, et.Columns)

	if c.ColumnsEqual && c.NewShape == c.ExistingShape {
		c.CellDiffs = make(map[string]int)
		for i := range nt.Rows {
			for j, col := range nt.Columns {
				if nt.Rows[i][j] != et.Rows[i][j] {
					c.CellDiffs[col]++
				}
			}
		}
		c.ExactEqual = len(c.CellDiffs) == 0
	}

	c.Match = c.NewSize == c.ExistingSize &&
		c.NewMD5 == c.ExistingMD5 &&
		c.NewShape == c.ExistingShape &&
		c.ColumnsEqual &&
		c.ExactEqual
	return c, nil
}

// CompareRaw compares every raw table written with suffix in dir against
// the unsuffixed table of the same name.
func CompareRaw(dir, prefix, suffix string) ([]Comparison, error) {
	var out []Comparison
	for _, name := range RawTables {
		c, err := Compare(Path(dir, prefix, name, suffix), Path(dir, prefix, name, ""))
		if err != nil {
			return nil, fmt.Errorf("comparing %s: %w", name, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// RenderReport writes one table per comparison followed by a verdict line
// and reports whether every comparison matched.
func RenderReport(w io.Writer, comps []Comparison) bool {
	allMatch := true
	for _, c := range comps {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleRounded)
		t.SetTitle(c.NewPath)
		t.AppendHeader(table.Row{"Check", "New", "Existing"})

		if c.ExistingMissing {
			t.AppendRow(table.Row{"file", c.NewPath, "missing"})
			t.Render()
			allMatch = false
			continue
		}

		t.AppendRows([]table.Row{
			{"path", c.NewPath, c.ExistingPath},
			{"bytes", c.NewSize, c.ExistingSize},
			{"md5", c.NewMD5, c.ExistingMD5},
			{"shape", fmt.Sprintf("%dx%d", c.NewShape[0], c.NewShape[1]), fmt.Sprintf("%dx%d", c.ExistingShape[0], c.ExistingShape[1])},
			{"columns", strings.Join(c.NewCols, ","), strings.Join(c.ExistingCols, ",")},
		})
		t.AppendSeparator()
		t.AppendRow(table.Row{"exact equality", c.ExactEqual, ""})
		if len(c.CellDiffs) > 0 {
			t.AppendRow(table.Row{"cell diffs", formatDiffs(c.CellDiffs), ""})
		}
		t.AppendRow(table.Row{"files match (strict)", c.Match, ""})
		t.Render()

		if !c.Match {
			allMatch = false
		}
	}

	if allMatch {
		fmt.Fprintln(w, "ALL FILES MATCH")
	} else {
		fmt.Fprintln(w, "DIFFERENCES FOUND")
	}
	return allMatch
}

func formatDiffs(diffs map[string]int) string {
	cols := make([]string, 0, len(diffs))
	for c := range diffs {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprintf("%s=%d", c, diffs[c])
	}
	return strings.Join(parts, " ")
}
