// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"
)

// ManifestTable records one committed table.
type ManifestTable struct {
	Name      string `yaml:"name"`
	File      string `yaml:"file"`
	Rows      int    `yaml:"rows"`
	MD5       string `yaml:"md5"`
	Unchanged bool   `yaml:"unchanged"`
}

// Manifest describes the export batch committed alongside the tables.
type Manifest struct {
	RunID      string          `yaml:"run_id"`
	Source     string          `yaml:"source"`
	Prefix     string          `yaml:"prefix"`
	Target     string          `yaml:"target"`
	StartedAt  time.Time       `yaml:"started_at"`
	FinishedAt time.Time       `yaml:"finished_at"`
	Pages      int             `yaml:"pages"`
	Films      int             `yaml:"films"`
	Added      int             `yaml:"added"`
	Updated    int             `yaml:"updated"`
	Skipped    int             `yaml:"skipped"`
	Tables     []ManifestTable `yaml:"tables"`
}

// ManifestPath returns the manifest location for a prefix and suffix.
func ManifestPath(dir, prefix, suffix string) string {
	return filepath.Join(dir, prefix+"manifest"+suffix+".yaml")
}

// Encode serializes the manifest as YAML.
func (m *Manifest) Encode() ([]byte, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshaling manifest: %w", err)
	}
	return data, nil
}

// ReadManifest loads a manifest written by a previous run.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	return &m, nil
}
