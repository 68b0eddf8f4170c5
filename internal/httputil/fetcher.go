// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/filmclub/pkg/types"
)

const defaultUserAgent = "Mozilla/5.0 (compatible; filmclub/0.1)"

// Fetcher issues GET requests one at a time, pausing RequestDelay between
// consecutive requests and retrying transient failures. It is not safe for
// concurrent use.
type Fetcher struct {
	client *http.Client
	http   types.HTTPConfig
	retry  types.RetryConfig
	log    logrus.FieldLogger
	last   time.Time
}

// NewFetcher returns a Fetcher. A nil client uses a client with cfg.Timeout.
func NewFetcher(client *http.Client, httpCfg types.HTTPConfig, retryCfg types.RetryConfig, log logrus.FieldLogger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: httpCfg.Timeout}
	}
	if httpCfg.UserAgent == "" {
		httpCfg.UserAgent = defaultUserAgent
	}
	return &Fetcher{
		client: client,
		http:   httpCfg,
		retry:  NormalizeRetry(retryCfg),
		log:    log,
	}
}

// GetBytes fetches url and returns the full body. A body cut short is
// retried within the same retry budget.
func (f *Fetcher) GetBytes(ctx context.Context, url, accept string) ([]byte, error) {
	req, err := f.newRequest(ctx, url, accept)
	if err != nil {
		return nil, err
	}
	data, err := DoBytesWithRetry(ctx, f.client, req, f.retry, f.log)
	f.last = time.Now()
	return data, err
}

// newRequest waits for the request delay and builds a GET with the
// configured headers.
func (f *Fetcher) newRequest(ctx context.Context, url, accept string) (*http.Request, error) {
	if err := f.pace(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.http.UserAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if f.http.Token != "" {
		req.Header.Set("Authorization", "Bearer "+f.http.Token)
	}
	return req, nil
}

// pace waits until RequestDelay has passed since the previous request.
func (f *Fetcher) pace(ctx context.Context) error {
	if f.http.RequestDelay <= 0 || f.last.IsZero() {
		return ctx.Err()
	}
	wait := f.http.RequestDelay - time.Since(f.last)
	if wait <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
