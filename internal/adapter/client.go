package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const defaultRetryAfter = 30 * time.Second

// httpClient bundles the pieces shared by the three source clients.
type httpClient struct {
	base     string
	apiKey   string
	client   *http.Client
	logger   *zap.Logger
	pageSize int
}

func newHTTPClient(baseURL, apiKey string, pageSize int, logger *zap.Logger) httpClient {
	if pageSize <= 0 {
		pageSize = 100
	}
	return httpClient{
		base:     baseURL,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
		pageSize: pageSize,
	}
}

// getJSON performs one GET with API-key basic auth and decodes the body.
// 429 surfaces as RetryAfterError, 4xx as permanent, everything else retryable.
func (c httpClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	req.SetBasicAuth(c.apiKey, "X")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RetryAfterError{After: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode == http.StatusNotFound:
		return backoff.Permanent(ErrIssueNotFound)
	case resp.StatusCode >= 500:
		return fmt.Errorf("GET %s: upstream returned %d", path, resp.StatusCode)
	case resp.StatusCode >= 400:
		return backoff.Permanent(fmt.Errorf("GET %s: upstream returned %d", path, resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return backoff.Permanent(fmt.Errorf("GET %s: decode response: %w", path, err))
	}
	return nil
}

// getWithRetry wraps getJSON in an exponential backoff schedule. A
// server-supplied retry-after overrides the computed delay.
func (c httpClient) getWithRetry(ctx context.Context, path string, out any) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = time.Minute
	bo.MaxElapsedTime = 5 * time.Minute

	for attempt := 1; ; attempt++ {
		err := c.getJSON(ctx, path, out)
		if err == nil {
			return nil
		}

		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return permanent.Unwrap()
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			return err
		}
		var rateLimited *RetryAfterError
		if errors.As(err, &rateLimited) && rateLimited.After > 0 {
			wait = rateLimited.After
		}

		c.logger.Warn("retrying source call",
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return defaultRetryAfter
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultRetryAfter
}
