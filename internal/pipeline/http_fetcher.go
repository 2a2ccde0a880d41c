package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultFetchTimeout      = 1 * time.Second
	defaultFetchMaxRetries   = 2
	defaultFetchBackoffMult  = 2.0
	defaultFetchMaxBodyBytes = 32 << 20
)

// HTTPFetcher downloads http_url sources. Each retry extends the per-attempt
// timeout by BackoffMultiplier times the previous timeout. A negative
// MaxRetries selects the default of 2.
type HTTPFetcher struct {
	Client            *http.Client
	Timeout           time.Duration
	MaxRetries        int
	BackoffMultiplier float64
	MaxBodyBytes      int64
}

type httpStatusError struct {
	status int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("source returned status=%d", e.status)
}

func (f HTTPFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	endpoint := strings.TrimSpace(req.SourceURL)
	if endpoint == "" {
		return nil, fmt.Errorf("%w: source_url is required", ErrInvalidRequest)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	retries := f.MaxRetries
	if retries < 0 {
		retries = defaultFetchMaxRetries
	}
	mult := f.BackoffMultiplier
	if mult <= 0 {
		mult = defaultFetchBackoffMult
	}
	limit := f.MaxBodyBytes
	if limit <= 0 {
		limit = defaultFetchMaxBodyBytes
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := f.fetchOnce(ctx, client, endpoint, timeout, limit)
		if err == nil {
			return data, nil
		}
		if errors.Is(err, ErrInvalidRequest) {
			return nil, err
		}
		lastErr = err

		var statusErr *httpStatusError
		if errors.As(err, &statusErr) && statusErr.status >= 400 && statusErr.status < 500 && statusErr.status != http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}

		timeout += time.Duration(float64(timeout) * mult)
	}

	return nil, fmt.Errorf("fetch %s failed after %d attempts: %w", endpoint, retries+1, lastErr)
}

func (f HTTPFetcher) fetchOnce(ctx context.Context, client *http.Client, endpoint string, timeout time.Duration, limit int64) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build source request: %v", ErrInvalidRequest, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &httpStatusError{status: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read source body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: source body exceeds %d bytes", ErrInvalidRequest, limit)
	}
	return data, nil
}
