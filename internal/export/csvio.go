// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import (
	"bytes"
	"crypto/md5"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/pdiddy/filmclub/pkg/types"
)

// Separator is the field separator of every exported table.
const Separator = ';'

// Read loads a table from path. The first record is the header. A missing
// file returns an error satisfying errors.Is(err, fs.ErrNotExist).
func Read(path, name string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f, name)
}

// Decode parses a ';'-separated table from r.
func Decode(r io.Reader, name string) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = Separator

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing table %s: %w", name, err)
	}
	if len(records) == 0 {
		return &Table{Name: name}, nil
	}
	return &Table{Name: name, Columns: records[0], Rows: records[1:]}, nil
}

// ReadRaw loads a raw table and checks it against the fixed schema. A
// missing or empty file yields an empty table. Two legacy layouts are
// accepted: genre tables with the header "0", and general tables without
// the trailing source_page column, which is added empty.
func ReadRaw(path, name string) (*Table, error) {
	t, err := Read(path, name)
	if errors.Is(err, fs.ErrNotExist) {
		return NewRawTable(name), nil
	}
	if err != nil {
		return nil, err
	}
	if len(t.Columns) == 0 {
		return NewRawTable(name), nil
	}
	if name == GenresThemes && len(t.Columns) > 0 && t.Columns[0] == "0" {
		t.Columns[0] = "value"
	}
	if name == General {
		addSourcePage(t)
	}
	if err := t.CheckColumns(Schema(name)); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// addSourcePage appends an empty source_page column to a general table
// written before the column existed.
func addSourcePage(t *Table) {
	want := Schema(General)
	if !slices.Equal(t.Columns, want[:len(want)-1]) {
		return
	}
	t.Columns = append(t.Columns, want[len(want)-1])
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], "")
	}
}

// LoadRaw reads every raw table with the given prefix from dir.
func LoadRaw(dir, prefix string) (map[string]*Table, error) {
	tables := make(map[string]*Table, len(RawTables))
	for _, name := range RawTables {
		t, err := ReadRaw(Path(dir, prefix, name, ""), name)
		if err != nil {
			return nil, err
		}
		tables[name] = t
	}
	return tables, nil
}

// Encode serializes t as ';'-separated text with a header line.
func Encode(t *Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = Separator
	if err := w.Write(t.Columns); err != nil {
		return nil, fmt.Errorf("encoding %s header: %w", t.Name, err)
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return nil, fmt.Errorf("encoding %s rows: %w", t.Name, err)
	}
	return buf.Bytes(), nil
}

// MD5 returns the hex MD5 of data.
func MD5(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// FileMD5 returns the hex MD5 of the file at path.
func FileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Pending is a file waiting to be committed.
type Pending struct {
	Path string
	Data []byte
}

// Unchanged reports whether the destination already holds exactly Data.
func (p Pending) Unchanged() bool {
	existing, err := os.ReadFile(p.Path)
	return err == nil && bytes.Equal(existing, p.Data)
}

// rename is os.Rename; tests replace it to fail a commit midway.
var rename = os.Rename

// Commit writes files as a set: every file is first written to a temp
// file next to its destination, the current destinations are moved aside,
// and the temp files are renamed into place. If any step fails the temp
// files are removed, destinations already replaced are restored from the
// moved-aside copies, and new destinations are removed. Restoring is best
// effort: a failure while restoring is not reported. Errors are
// *types.WriteError.
func Commit(files []Pending) error {
	for _, f := range files {
		if info, err := os.Stat(f.Path); err == nil && info.IsDir() {
			return &types.WriteError{Path: f.Path, Err: fmt.Errorf("destination is a directory")}
		}
	}

	temps := make([]string, 0, len(files))
	removeTemps := func() {
		for _, p := range temps {
			os.Remove(p)
		}
	}
	for _, f := range files {
		dir := filepath.Dir(f.Path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			removeTemps()
			return &types.WriteError{Path: dir, Err: err}
		}
		tmp, err := writeTemp(dir, f.Data)
		if err != nil {
			removeTemps()
			return &types.WriteError{Path: f.Path, Err: err}
		}
		temps = append(temps, tmp)
	}

	// backups[i] holds the previous content of files[i], if it had any.
	backups := make([]string, len(files))
	rollback := func(placed int) {
		for i := range files {
			switch {
			case backups[i] != "":
				rename(backups[i], files[i].Path)
			case i < placed:
				os.Remove(files[i].Path)
			}
		}
		removeTemps()
	}

	for i, f := range files {
		if _, err := os.Lstat(f.Path); err != nil {
			continue
		}
		b, err := reserveBackup(filepath.Dir(f.Path))
		if err != nil {
			rollback(0)
			return &types.WriteError{Path: f.Path, Err: err}
		}
		if err := rename(f.Path, b); err != nil {
			os.Remove(b)
			rollback(0)
			return &types.WriteError{Path: f.Path, Err: fmt.Errorf("moving previous file aside: %w", err)}
		}
		backups[i] = b
	}

	for i, f := range files {
		if err := rename(temps[i], f.Path); err != nil {
			rollback(i)
			return &types.WriteError{Path: f.Path, Err: fmt.Errorf("renaming temp file: %w", err)}
		}
	}

	for _, b := range backups {
		if b != "" {
			os.Remove(b)
		}
	}
	return nil
}

// reserveBackup creates an empty file in dir whose name a destination can
// be moved to.
func reserveBackup(dir string) (string, error) {
	f, err := os.CreateTemp(dir, ".export-*.bak")
	if err != nil {
		return "", fmt.Errorf("creating backup file: %w", err)
	}
	name := f.Name()
	f.Close()
	return name, nil
}

func writeTemp(dir string, data []byte) (string, error) {
	tmpFile, err := os.CreateTemp(dir, ".export-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, writeErr := tmpFile.Write(data)
	syncErr := tmpFile.Sync()
	closeErr := tmpFile.Close()
	for _, err := range []error{writeErr, syncErr, closeErr} {
		if err != nil {
			os.Remove(tmpPath)
			return "", fmt.Errorf("writing temp file: %w", err)
		}
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("setting permissions: %w", err)
	}
	return tmpPath, nil
}
