// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across stages.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/sirupsen/logrus"

	"github.com/pdiddy/filmclub/pkg/types"
)

// RetryBaseDelay and RetryMaxDelay bound the exponential backoff when the
// caller leaves RetryConfig delays unset. Tests override these to avoid
// real sleeps.
var (
	RetryBaseDelay = 2 * time.Second
	RetryMaxDelay  = 30 * time.Second
)

const defaultMaxRetries = 4

// StatusError reports a non-retryable, non-auth HTTP status such as 404.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.Status, e.URL)
}

// IsNotFound reports whether err is a 404 StatusError.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == http.StatusNotFound
}

// retryableStatus marks HTTP 429 and 5xx responses.
type retryableStatus struct {
	status int
}

func (e *retryableStatus) Error() string {
	return fmt.Sprintf("HTTP %d", e.status)
}

// NormalizeRetry fills unset retry fields with defaults.
func NormalizeRetry(cfg types.RetryConfig) types.RetryConfig {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = RetryBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = RetryMaxDelay
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	return cfg
}

// DoWithRetry executes an HTTP request and retries transient failures
// (network errors, HTTP 429, HTTP 5xx) with exponential backoff and 10%
// jitter, starting at cfg.BaseDelay and capped at cfg.MaxDelay.
//
// Only a 200 response is returned to the caller. HTTP 401/403 return an
// *types.AuthError immediately; other statuses return a *StatusError
// without retrying. When the retry budget runs out the result is a
// *types.TransientFetchError carrying the attempt count and last failure.
// If ctx is cancelled the function returns ctx.Err().
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, cfg types.RetryConfig, log logrus.FieldLogger) (*http.Response, error) {
	return doWithRetry(ctx, client, req, cfg, log, func(resp *http.Response) (*http.Response, error) {
		return resp, nil
	})
}

// DoBytesWithRetry is DoWithRetry that also reads the body within each
// attempt, so a connection dropped mid-body is retried like any other
// transport failure.
func DoBytesWithRetry(ctx context.Context, client *http.Client, req *http.Request, cfg types.RetryConfig, log logrus.FieldLogger) ([]byte, error) {
	return doWithRetry(ctx, client, req, cfg, log, func(resp *http.Response) ([]byte, error) {
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading body: %w", err)
		}
		return data, nil
	})
}

// doWithRetry runs the retry loop; read turns a 200 response into the
// result and its error counts as a transport failure.
func doWithRetry[R any](ctx context.Context, client *http.Client, req *http.Request, cfg types.RetryConfig, log logrus.FieldLogger, read func(*http.Response) (R, error)) (R, error) {
	var zero R
	cfg = NormalizeRetry(cfg)
	target := req.URL.String()

	retryable := func(err error) bool {
		if err == nil || ctx.Err() != nil {
			return false
		}
		var rs *retryableStatus
		if errors.As(err, &rs) {
			return true
		}
		var se *StatusError
		if errors.As(err, &se) || types.IsAuth(err) {
			return false
		}
		// Anything else came from the transport.
		return true
	}

	policy := retrypolicy.NewBuilder[R]().
		WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
		WithMaxRetries(cfg.MaxRetries).
		WithJitterFactor(0.1).
		HandleIf(func(_ R, err error) bool {
			return retryable(err)
		}).
		Build()

	attempts := 0
	var lastErr error
	result, err := failsafe.With(policy).WithContext(ctx).Get(func() (R, error) {
		attempts++
		if attempts > 1 && log != nil {
			log.WithFields(logrus.Fields{
				"url":     target,
				"attempt": attempts,
				"max":     cfg.MaxRetries + 1,
			}).Warnf("retrying after: %v", lastErr)
		}

		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			lastErr = err
			return zero, err
		}
		if err := classify(target, resp.StatusCode); err != nil {
			// Drain and close the body before retrying or giving up.
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr = err
			return zero, err
		}
		r, err := read(resp)
		if err != nil {
			lastErr = err
			return zero, err
		}
		lastErr = nil
		return r, nil
	})
	if err == nil {
		return result, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return zero, ctxErr
	}
	if lastErr == nil {
		lastErr = err
	}
	if retryable(lastErr) {
		return zero, &types.TransientFetchError{URL: target, Attempts: attempts, Err: lastErr}
	}
	return zero, lastErr
}

func classify(target string, status int) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &types.AuthError{URL: target, Status: status}
	case status == http.StatusTooManyRequests || status >= 500:
		return &retryableStatus{status: status}
	default:
		return &StatusError{URL: target, Status: status}
	}
}
