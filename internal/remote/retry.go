package remote

import (
	"context"
	"errors"
	"net/http"
	"time"

	"google.golang.org/api/googleapi"
)

const (
	// DefaultMaxRetries is the number of rate-limited attempts retried before
	// the final unguarded attempt.
	DefaultMaxRetries = 5

	// DefaultBaseDelay is multiplied by the attempt number to get the backoff.
	DefaultBaseDelay = 2 * time.Second
)

// IsRateLimited reports whether err is a rate-limit rejection worth retrying.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == http.StatusTooManyRequests {
			return true
		}
		for _, item := range gerr.Errors {
			switch item.Reason {
			case "rateLimitExceeded", "userRateLimitExceeded", "RESOURCE_EXHAUSTED":
				return true
			}
		}
	}
	return false
}

// retry runs fn, retrying rate-limit failures up to maxRetries times with a
// linear backoff of attempt*baseDelay. Once retries are exhausted fn runs one
// last time and its result is returned as-is. Any other failure is returned
// immediately.
func (c *Client) retry(ctx context.Context, op, table string, fn func() error) error {
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.wait(ctx); err != nil {
			return err
		}
		err := fn()
		if err == nil {
			return nil
		}
		if !IsRateLimited(err) {
			return err
		}

		delay := time.Duration(attempt) * c.baseDelay
		c.log.Warn().
			Err(err).
			Str("op", op).
			Str("table", table).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("Rate limited by remote store, backing off")

		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
	}

	if err := c.wait(ctx); err != nil {
		return err
	}
	return fn()
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
