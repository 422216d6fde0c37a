package engine

import (
	"context"
	"net/http"

	stealth "github.com/anatolykoptev/go-stealth"
)

// RetryConfig controls upstream retry/backoff.
type RetryConfig = stealth.RetryConfig

// DefaultRetryConfig is the retry policy used for upstream job API calls.
var DefaultRetryConfig = stealth.DefaultRetryConfig

// IsRetryableStatus reports whether an HTTP status is worth retrying (429, 5xx).
func IsRetryableStatus(code int) bool { return stealth.IsRetryableStatus(code) }

// RetryHTTP retries fn on transport errors and retryable status codes.
func RetryHTTP(ctx context.Context, rc RetryConfig, fn func() (*http.Response, error)) (*http.Response, error) {
	return stealth.RetryHTTP(ctx, rc, fn)
}
