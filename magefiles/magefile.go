//go:build mage

// Package main contains Mage build targets for filmclub developer tooling.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/magefile/mage/sh"

	"github.com/pdiddy/filmclub/internal/analysis"
	"github.com/pdiddy/filmclub/internal/export"
)

const (
	exportDir   = "data/film_club_data"
	analysisDir = "data/analysis"
	prefix      = "fc_"
)

// projectDirs lists the working directories the pipeline expects.
var projectDirs = []string{
	exportDir,
	"data/analysis/person_images",
	"data/html",
}

// Init creates the project directory structure for the pipeline.
func Init() error {
	for _, dir := range projectDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		fmt.Println("  ", dir)
	}
	fmt.Println("Project directories initialized.")
	return nil
}

const (
	binDir  = "bin"
	binName = "filmclub"
	cmdPkg  = "./cmd/filmclub"
)

var binPath = filepath.Join(binDir, binName)

// Build compiles the CLI binary into bin/.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	if err := sh.RunV("go", "build", "-o", binPath, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s\n", binPath)
	return nil
}

// Test runs the unit tests.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// Stats prints per-package file and test counts, the row count of each
// raw export table and how many report tables have been generated.
func Stats() error {
	if err := codeStats("."); err != nil {
		return err
	}
	return dataStats()
}

type pkgStats struct {
	files, testFiles, tests int
}

// codeStats counts Go files, test files and Test functions per package
// directory under cmd, internal and pkg.
func codeStats(root string) error {
	stats := make(map[string]*pkgStats)
	for _, top := range []string{"cmd", "internal", "pkg"} {
		err := filepath.WalkDir(filepath.Join(root, top), func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}
			if d.IsDir() {
				return skipHidden(root, path, d)
			}
			if filepath.Ext(path) != ".go" {
				return nil
			}
			dir := filepath.ToSlash(filepath.Dir(path))
			ps := stats[dir]
			if ps == nil {
				ps = &pkgStats{}
				stats[dir] = ps
			}
			if !strings.HasSuffix(path, "_test.go") {
				ps.files++
				return nil
			}
			ps.testFiles++
			n, err := countTests(path)
			ps.tests += n
			return err
		})
		if err != nil {
			return err
		}
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Package", "Files", "Test files", "Tests"})
	var total pkgStats
	for _, dir := range slices.Sorted(maps.Keys(stats)) {
		ps := stats[dir]
		t.AppendRow(table.Row{dir, ps.files, ps.testFiles, ps.tests})
		total.files += ps.files
		total.testFiles += ps.testFiles
		total.tests += ps.tests
	}
	t.AppendFooter(table.Row{"Total", total.files, total.testFiles, total.tests})
	t.Render()
	return nil
}

// countTests counts top-level Test functions in a test file.
func countTests(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}
	n := 0
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "func Test") {
			n++
		}
	}
	return n, nil
}

// dataStats reports the rows of each raw table in the club export and
// which report tables exist.
func dataStats() error {
	raw, err := export.LoadRaw(exportDir, prefix)
	if err != nil {
		return err
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Export table", "Rows"})
	for _, name := range export.RawTables {
		t.AppendRow(table.Row{prefix + name, raw[name].Len()})
	}
	t.Render()

	generated := 0
	for _, name := range analysis.Tables {
		if _, err := os.Stat(export.Path(analysisDir, prefix, name, "")); err == nil {
			generated++
		}
	}
	fmt.Printf("Report tables generated: %d of %d\n", generated, len(analysis.Tables))
	return nil
}

// skipHidden skips directories the go tool ignores: names starting with
// "_" or ".", plus testdata.
func skipHidden(root, path string, d fs.DirEntry) error {
	name := d.Name()
	if path != root && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") || name == "testdata") {
		return filepath.SkipDir
	}
	return nil
}
