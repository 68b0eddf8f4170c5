// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/filmclub/internal/httputil"
	"github.com/pdiddy/filmclub/internal/letterboxd"
	"github.com/pdiddy/filmclub/pkg/types"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultDelay       = 500 * time.Millisecond
	defaultOutDir      = "data/film_club_data"
	defaultAnalysisDir = "data/analysis"
	defaultLedger      = "data/ledger.db"
)

// addHTTPFlags registers the flags shared by commands that fetch pages.
func addHTTPFlags(cmd *cobra.Command) {
	cmd.Flags().Duration("timeout", defaultTimeout, "HTTP request timeout")
	cmd.Flags().Duration("delay", defaultDelay, "pause between consecutive requests")
	cmd.Flags().Int("max-retries", 0, "retries after the first attempt for transient failures (default 4)")
	cmd.Flags().String("user-agent", "", "User-Agent header sent with requests")
}

// httpSettings reads the shared HTTP flags and the credential set.
func httpSettings(cmd *cobra.Command) (types.HTTPConfig, types.RetryConfig) {
	h := types.HTTPConfig{
		BaseURL:      firstNonEmpty(settingString(cmd, "base-url"), creds.BaseURL, letterboxd.DefaultBaseURL),
		Token:        creds.Token,
		Timeout:      settingDuration(cmd, "timeout"),
		UserAgent:    settingString(cmd, "user-agent"),
		RequestDelay: settingDuration(cmd, "delay"),
	}
	if h.Timeout <= 0 {
		h.Timeout = defaultTimeout
	}
	return h, types.RetryConfig{MaxRetries: settingInt(cmd, "max-retries")}
}

// newClient builds the Letterboxd client used by a command.
func newClient(h types.HTTPConfig, r types.RetryConfig) *letterboxd.Client {
	fetcher := httputil.NewFetcher(&http.Client{Timeout: h.Timeout}, h, r, log)
	return letterboxd.NewClient(fetcher, h.BaseURL)
}
