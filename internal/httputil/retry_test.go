// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/filmclub/pkg/types"
)

func init() {
	// Use tiny delays so tests finish quickly.
	RetryBaseDelay = 1 * time.Millisecond
	RetryMaxDelay = 5 * time.Millisecond
}

func fastRetry(maxRetries int) types.RetryConfig {
	return types.RetryConfig{MaxRetries: maxRetries, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func countingServer(t *testing.T, calls *int32, handle func(n int32, w http.ResponseWriter)) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := atomic.AddInt32(calls, 1)
		handle(n, w)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestDoWithRetry_ImmediateSuccess(t *testing.T) {
	var calls int32
	ts := countingServer(t, &calls, func(_ int32, w http.ResponseWriter) {
		w.WriteHeader(http.StatusOK)
	})

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)

	resp, err := DoWithRetry(context.Background(), ts.Client(), req, fastRetry(3), nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDoWithRetry_RetriesThen200(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"rate limited", http.StatusTooManyRequests},
		{"bad gateway", http.StatusBadGateway},
		{"unavailable", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			ts := countingServer(t, &calls, func(n int32, w http.ResponseWriter) {
				if n <= 2 {
					w.WriteHeader(tt.status)
					return
				}
				io.WriteString(w, "ok")
			})

			req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
			require.NoError(t, err)

			resp, err := DoWithRetry(context.Background(), ts.Client(), req, fastRetry(5), nil)
			require.NoError(t, err)
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, "ok", string(body))
			assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
		})
	}
}

func TestDoWithRetry_ExhaustsRetries(t *testing.T) {
	var calls int32
	ts := countingServer(t, &calls, func(_ int32, w http.ResponseWriter) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)

	_, err = DoWithRetry(context.Background(), ts.Client(), req, fastRetry(3), nil)
	require.Error(t, err)

	var te *types.TransientFetchError
	require.ErrorAs(t, err, &te)
	// 1 initial + 3 retries = 4 total calls.
	assert.Equal(t, 4, te.Attempts)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
	assert.Equal(t, ts.URL, te.URL)
}

func TestDoWithRetry_AuthErrorIsNotRetried(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		var calls int32
		ts := countingServer(t, &calls, func(_ int32, w http.ResponseWriter) {
			w.WriteHeader(status)
		})

		req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
		require.NoError(t, err)

		_, err = DoWithRetry(context.Background(), ts.Client(), req, fastRetry(5), nil)
		var ae *types.AuthError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, status, ae.Status)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	}
}

func TestDoWithRetry_NotFoundPassesThrough(t *testing.T) {
	var calls int32
	ts := countingServer(t, &calls, func(_ int32, w http.ResponseWriter) {
		w.WriteHeader(http.StatusNotFound)
	})

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)

	_, err = DoWithRetry(context.Background(), ts.Client(), req, fastRetry(5), nil)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, types.IsTransient(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDoWithRetry_ContextCancelled(t *testing.T) {
	var calls int32
	ts := countingServer(t, &calls, func(_ int32, w http.ResponseWriter) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)

	cfg := types.RetryConfig{MaxRetries: 5, BaseDelay: 500 * time.Millisecond, MaxDelay: time.Second}
	_, err = DoWithRetry(ctx, ts.Client(), req, cfg, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// truncate answers 200 with a Content-Length longer than the body and
// drops the connection.
func truncate(t *testing.T, w http.ResponseWriter) {
	t.Helper()
	conn, buf, err := http.NewResponseController(w).Hijack()
	require.NoError(t, err)
	buf.WriteString("HTTP/1.1 200 OK\r\nContent-Length: 100\r\n\r\npartial")
	buf.Flush()
	conn.Close()
}

func TestDoBytesWithRetry_TruncatedBodyIsRetried(t *testing.T) {
	var calls int32
	ts := countingServer(t, &calls, func(n int32, w http.ResponseWriter) {
		if n == 1 {
			truncate(t, w)
			return
		}
		io.WriteString(w, "complete")
	})

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)

	body, err := DoBytesWithRetry(context.Background(), ts.Client(), req, fastRetry(3), nil)
	require.NoError(t, err)
	assert.Equal(t, "complete", string(body))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDoBytesWithRetry_TruncatedBodyExhaustsRetries(t *testing.T) {
	var calls int32
	ts := countingServer(t, &calls, func(_ int32, w http.ResponseWriter) {
		truncate(t, w)
	})

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)

	_, err = DoBytesWithRetry(context.Background(), ts.Client(), req, fastRetry(1), nil)
	var te *types.TransientFetchError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 2, te.Attempts)
	assert.Contains(t, te.Error(), "reading body")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestNormalizeRetry(t *testing.T) {
	got := NormalizeRetry(types.RetryConfig{})
	assert.Equal(t, defaultMaxRetries, got.MaxRetries)
	assert.Equal(t, RetryBaseDelay, got.BaseDelay)
	assert.Equal(t, RetryMaxDelay, got.MaxDelay)

	got = NormalizeRetry(types.RetryConfig{MaxRetries: -1, BaseDelay: time.Second, MaxDelay: time.Millisecond})
	assert.Equal(t, 0, got.MaxRetries)
	assert.Equal(t, time.Second, got.MaxDelay)
}

func TestFetcher_SendsHeaders(t *testing.T) {
	var gotUA, gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAuth = r.Header.Get("Authorization")
		io.WriteString(w, "<html></html>")
	}))
	defer ts.Close()

	f := NewFetcher(ts.Client(), types.HTTPConfig{Token: "tok", UserAgent: "filmclub-test"}, fastRetry(1), nil)
	body, err := f.GetBytes(context.Background(), ts.URL, "text/html")
	require.NoError(t, err)

	assert.Equal(t, "<html></html>", string(body))
	assert.Equal(t, "filmclub-test", gotUA)
	assert.Equal(t, "Bearer tok", gotAuth)
}

func TestFetcher_PacesRequests(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	delay := 30 * time.Millisecond
	f := NewFetcher(ts.Client(), types.HTTPConfig{RequestDelay: delay}, fastRetry(1), nil)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := f.GetBytes(context.Background(), ts.URL, "")
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 2*delay)
}
