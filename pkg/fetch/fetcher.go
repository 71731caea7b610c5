package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"asset-downloader/pkg/config"
	"asset-downloader/pkg/utils"
)

// Fetcher handles making HTTP requests with configured retry logic,
// using an underlying http.Client
type Fetcher struct {
	client *http.Client
	cfg    config.FetchConfig
	log    *logrus.Logger
}

// NewFetcher creates a new Fetcher instance
func NewFetcher(client *http.Client, cfg config.FetchConfig, log *logrus.Logger) *Fetcher {
	return &Fetcher{
		client: client,
		cfg:    cfg,
		log:    log,
	}
}

// FetchWithRetry performs an HTTP GET associated with the provided context.
// Transient failures (network errors, 5xx responses) are retried up to the
// configured attempt count with a fixed delay between attempts; 4xx
// responses fail immediately. onAttempt, when non-nil, is invoked at the
// start of every attempt (used to publish the current-file hint).
func (f *Fetcher) FetchWithRetry(req *http.Request, ctx context.Context, onAttempt func(attempt int)) (*http.Response, error) {
	return f.fetchWithRetry(req, ctx, onAttempt, nil)
}

// FetchAndConsume is FetchWithRetry with each successful response handed to
// consume inside the retry loop, so a retryable failure while reading the
// body (read timeout, connection dropped mid-stream) triggers a fresh fetch
// attempt instead of failing on the spot. consume owns the response body.
// On a 4xx/other terminal status the response is returned unconsumed and
// the caller must close it.
func (f *Fetcher) FetchAndConsume(req *http.Request, ctx context.Context, onAttempt func(attempt int), consume func(*http.Response) error) (*http.Response, error) {
	return f.fetchWithRetry(req, ctx, onAttempt, consume)
}

func (f *Fetcher) fetchWithRetry(req *http.Request, ctx context.Context, onAttempt func(attempt int), consume func(*http.Response) error) (*http.Response, error) {
	var lastErr error              // Error from the last failed attempt
	var currentResp *http.Response // Response from the current attempt

	reqLog := f.log.WithField("url", req.URL.String())

	maxRetries := f.cfg.RetryAttempts
	retryDelay := f.cfg.RetryDelay

	// Initial attempt + maxRetries retries
	for attempt := 0; attempt <= maxRetries; attempt++ {

		// Check cancellation before making the attempt or sleeping
		select {
		case <-ctx.Done():
			reqLog.Warnf("Context cancelled before attempt %d: %v", attempt, ctx.Err())
			if lastErr != nil {
				return nil, fmt.Errorf("context cancelled (%v) after error: %w", ctx.Err(), lastErr)
			}
			return nil, ctx.Err()
		default:
		}

		// Fixed backoff before retry attempts (not before the first)
		if attempt > 0 {
			reqLog.WithFields(logrus.Fields{"attempt": attempt, "max_retries": maxRetries, "delay": retryDelay}).Warn("Retrying request...")
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				reqLog.Warnf("Context cancelled during retry delay: %v", ctx.Err())
				if lastErr != nil {
					return nil, fmt.Errorf("context cancelled (%v) during retry delay after error: %w", ctx.Err(), lastErr)
				}
				return nil, ctx.Err()
			}
		}

		if onAttempt != nil {
			onAttempt(attempt)
		}

		reqWithCtx := req.WithContext(ctx)
		currentResp, lastErr = f.client.Do(reqWithCtx)

		// Network-level errors (DNS, TCP, TLS, timeouts before a response)
		if lastErr != nil {
			if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
				reqLog.Warnf("Context cancelled/timed out during request execution: %v", lastErr)
				if currentResp != nil {
					drainAndClose(currentResp)
				}
				// Context errors are not retried
				return nil, lastErr
			}

			reqLog.WithField("attempt", attempt).Errorf("Network error: %v", lastErr)
			if currentResp != nil {
				drainAndClose(currentResp)
			}
			continue // Retry network errors
		}

		statusCode := currentResp.StatusCode
		resLog := reqLog.WithFields(logrus.Fields{"status_code": statusCode, "attempt": attempt})

		switch {
		case statusCode >= 200 && statusCode < 300:
			if consume == nil {
				// Success. Caller must close the body.
				resLog.Debug("Successfully fetched")
				return currentResp, nil
			}
			consumeErr := consume(currentResp)
			if consumeErr == nil {
				resLog.Debug("Successfully fetched and consumed")
				return currentResp, nil
			}
			if !utils.IsRetryable(consumeErr) {
				// Cancellation or a local filesystem fault; another
				// attempt would not help
				return nil, consumeErr
			}
			resLog.Errorf("Body read error: %v", consumeErr)
			lastErr = consumeErr
			currentResp = nil // Body already closed by consume
			continue

		case statusCode >= 500:
			resLog.Warn("Server error, retrying...")
			lastErr = fmt.Errorf("%w: status %d %s", utils.ErrServerHTTPError, statusCode, currentResp.Status)
			drainAndClose(currentResp)
			continue

		case statusCode >= 400 && statusCode < 500:
			// Client errors are not retryable. Caller must close the body.
			resLog.Warn("Client error (4xx), not retrying")
			return currentResp, fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, statusCode, currentResp.Status)

		default:
			resLog.Warnf("Non-retryable/unexpected status: %d", statusCode)
			return currentResp, fmt.Errorf("%w: status %d %s", utils.ErrOtherHTTPError, statusCode, currentResp.Status)
		}
	}

	// All attempts exhausted
	reqLog.Errorf("All %d fetch attempts failed. Last error: %v", maxRetries+1, lastErr)
	if currentResp != nil {
		drainAndClose(currentResp)
	}

	if lastErr != nil {
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return nil, lastErr
		}
		return nil, fmt.Errorf("%w: %w", utils.ErrRetryFailed, lastErr)
	}
	return nil, utils.ErrRetryFailed
}

// drainAndClose discards any unread body and closes it so the underlying
// connection can be reused
func drainAndClose(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
