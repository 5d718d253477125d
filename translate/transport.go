package translate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ---------------------------------------------------------------------------
// Retry policy
// ---------------------------------------------------------------------------

// RetryPolicy bounds the transport's patience with a flaky upstream API.
// Translation jobs run long and unattended, so the defaults lean high.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries per request.
	MaxAttempts int
	// BaseDelay is the backoff unit: the wait before retry k is
	// k*BaseDelay, capped at DelayCeiling.
	BaseDelay time.Duration
	// DelayCeiling caps the backoff wait.
	DelayCeiling time.Duration
}

func (p RetryPolicy) effectiveMaxAttempts() int {
	if p.MaxAttempts > 0 {
		return p.MaxAttempts
	}
	return 20
}

func (p RetryPolicy) effectiveBaseDelay() time.Duration {
	if p.BaseDelay > 0 {
		return p.BaseDelay
	}
	return 2 * time.Second
}

func (p RetryPolicy) effectiveDelayCeiling() time.Duration {
	if p.DelayCeiling > 0 {
		return p.DelayCeiling
	}
	return 30 * time.Second
}

// backoff returns the wait after failed attempt number attempt (zero
// based): linearly increasing, capped at the ceiling.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	return min(time.Duration(attempt+1)*p.effectiveBaseDelay(), p.effectiveDelayCeiling())
}

// ---------------------------------------------------------------------------
// Transport errors
// ---------------------------------------------------------------------------

// StatusError is a non-retryable HTTP status from the provider.
type StatusError struct {
	// Code is the HTTP status code.
	Code int
	// Body is a truncated response body for diagnostics.
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.Code, e.Body)
}

// ExhaustedError reports that every allowed attempt failed. Last carries
// the final attempt's failure for diagnostics.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("exhausted all %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// retryableStatus reports whether an HTTP status is worth another attempt:
// rate limiting and the transient 5xx codes the upstream actually emits.
// Everything else non-2xx fails fast.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Retrying transport
// ---------------------------------------------------------------------------

// transport posts request bodies with bounded, linearly backed-off
// retries. The sleep hook exists so tests can record delays instead of
// waiting them out.
type transport struct {
	client *http.Client
	policy RetryPolicy
	report func(Level, string)
	sleep  func(context.Context, time.Duration) error
}

func newTransport(client *http.Client, policy RetryPolicy, report func(Level, string)) *transport {
	return &transport{
		client: client,
		policy: policy,
		report: report,
		sleep:  sleepCtx,
	}
}

// send posts body to endpoint and returns the raw response payload.
// Network errors and HTTP 429/500/503 are retried per the policy, sleeping
// before each retry but never before the first attempt; any other non-2xx
// status aborts immediately with a StatusError. When the attempt budget
// runs out the last failure is wrapped in an ExhaustedError.
func (t *transport) send(ctx context.Context, endpoint string, headers map[string]string, body []byte) ([]byte, error) {
	maxAttempts := t.policy.effectiveMaxAttempts()
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			wait := t.policy.backoff(attempt - 1)
			t.say(LevelWarning, fmt.Sprintf("%v; retrying in %v (attempt %d/%d)", lastErr, wait, attempt+1, maxAttempts))
			if err := t.sleep(ctx, wait); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := t.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("API request failed: %w", err)
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("reading response: %w", readErr)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return respBody, nil
		}

		if !retryableStatus(resp.StatusCode) {
			return nil, &StatusError{Code: resp.StatusCode, Body: snippet(string(respBody), maxDiagnosticLen)}
		}
		lastErr = fmt.Errorf("API returned status %d: %s", resp.StatusCode, snippet(string(respBody), maxDiagnosticLen))
	}

	return nil, &ExhaustedError{Attempts: maxAttempts, Last: lastErr}
}

func (t *transport) say(level Level, message string) {
	if t.report != nil {
		t.report(level, message)
	}
}

// sleepCtx waits for d or until ctx is canceled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// makeHTTPClient builds the single client shared by every request of a
// job. An explicit proxy wins over the HTTP_PROXY/HTTPS_PROXY environment.
func makeHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()

	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err == nil {
			tr.Proxy = http.ProxyURL(parsed)
		}
	} else {
		tr.Proxy = http.ProxyFromEnvironment
	}

	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
	}
}
