package client

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrTransient wraps a network or 5xx failure that should be retried with
// capped exponential backoff and jitter up to a deadline, rather than
// surfaced immediately.
var ErrTransient = errors.New("client: transient authority error")

// ErrAuthorityUnavailable is surfaced once retries under the caller's
// deadline are exhausted.
var ErrAuthorityUnavailable = errors.New("client: authority unavailable")

func isTransientStatus(code int) bool {
	return code >= 500 && code < 600
}

// withRetry runs op under a bounded exponential backoff with jitter,
// retrying only while op's error is ErrTransient, until ctx is done.
func withRetry(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.RandomizationFactor = 1.0

	wrapped := backoff.WithContext(bo, ctx)

	var lastErr error
	err := backoff.Retry(func() error {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrTransient) {
			return lastErr
		}
		return backoff.Permanent(lastErr)
	}, wrapped)

	if err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return permanent.Unwrap()
		}
		if errors.Is(lastErr, ErrTransient) {
			return ErrAuthorityUnavailable
		}
		return err
	}
	return nil
}

func classifyHTTPError(resp *http.Response) error {
	if isTransientStatus(resp.StatusCode) {
		return ErrTransient
	}
	return nil
}
