// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads Letterboxd credentials from an env file (auths.env)
// or a directory of plain-text key files. The values are returned as an
// explicit credential set; the process environment is never modified.
//
// Supported keys: LETTERBOXD_TOKEN, LETTERBOXD_BASE_URL, LETTERBOXD_USERNAME,
// FILMCLUB_LIST_URL.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

const (
	KeyToken    = "LETTERBOXD_TOKEN"
	KeyBaseURL  = "LETTERBOXD_BASE_URL"
	KeyUsername = "LETTERBOXD_USERNAME"
	KeyListURL  = "FILMCLUB_LIST_URL"
)

// Credentials is the read-only credential set threaded into the stages.
type Credentials struct {
	Token    string
	BaseURL  string
	Username string
	ListURL  string
}

// Load reads credentials from path. A regular file is parsed as a dotenv
// file; a directory is read as one file per key, named after the key.
// A missing path is not an error; Load returns an empty map.
// Unreadable key files produce a warning on stderr but do not abort.
func Load(path string) (map[string]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading credentials %s: %w", path, err)
	}
	if !info.IsDir() {
		return loadEnvFile(path)
	}
	return loadDir(path)
}

func loadEnvFile(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("parsing env file %s: %w", path, err)
	}
	secrets := make(map[string]string, len(values))
	for k, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			secrets[k] = v
		}
	}
	return secrets, nil
}

func loadDir(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading credentials directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// FromMap picks the known keys out of a loaded secrets map.
func FromMap(m map[string]string) Credentials {
	return Credentials{
		Token:    m[KeyToken],
		BaseURL:  m[KeyBaseURL],
		Username: m[KeyUsername],
		ListURL:  m[KeyListURL],
	}
}
