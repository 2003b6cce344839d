// Package fetch downloads image bytes from chat-platform CDN URLs.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ellyeware/idiombot/internal/platform/httpx"
	"github.com/ellyeware/idiombot/internal/platform/logger"
)

const (
	// hard cap on a single download; upload policy enforces its own limit
	maxBodyBytes = 32 << 20

	maxAttempts  = 3
	retryBackoff = time.Second
	maxBackoff   = 15 * time.Second
)

type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type fetcher struct {
	log        *logger.Logger
	httpClient *http.Client
}

func NewFetcher(log *logger.Logger) Fetcher {
	return &fetcher{
		log:        log.With("service", "fetch.Fetcher"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (f *fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		resp, err := f.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if !httpx.IsRetryableError(err) || attempt == maxAttempts {
				return nil, fmt.Errorf("fetch %s: %w", url, err)
			}
			time.Sleep(httpx.JitterSleep(retryBackoff))
			continue
		}

		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
			if !httpx.IsRetryableHTTPStatus(resp.StatusCode) || attempt == maxAttempts {
				return nil, lastErr
			}
			sleepFor := httpx.RetryAfterDuration(resp, retryBackoff, maxBackoff)
			f.log.Warn("image fetch retrying", "url", url, "status", resp.StatusCode, "attempt", attempt)
			time.Sleep(httpx.JitterSleep(sleepFor))
			continue
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
		_ = resp.Body.Close()
		if err != nil {
			lastErr = err
			if attempt == maxAttempts {
				return nil, fmt.Errorf("fetch %s: %w", url, err)
			}
			time.Sleep(httpx.JitterSleep(retryBackoff))
			continue
		}
		if len(data) > maxBodyBytes {
			return nil, fmt.Errorf("fetch %s: body exceeds %d bytes", url, maxBodyBytes)
		}
		return data, nil
	}
	return nil, lastErr
}
