// Package httpclient provides the retrying HTTP client used for
// outbound provider calls (the OpenAI-compatible LLM endpoint and the
// translation sidecar). Rate-limited responses honor server-provided
// reset hints; transient server errors get a short fixed backoff.
package httpclient

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"
)

// RetryableError reports a retryable status that survived every
// retry attempt.
type RetryableError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *RetryableError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("HTTP %d: %s (retry after %v)", e.StatusCode, e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// RetryClass decides how a failed response is retried.
type RetryClass int

const (
	// NoRetry returns the response as-is.
	NoRetry RetryClass = iota
	// BackoffRetry waits a short fixed delay, at most twice.
	BackoffRetry
	// RateLimitRetry honors rate limit headers, falling back to
	// exponential backoff.
	RateLimitRetry
)

// RateLimitInfo carries the rate limit hints parsed from response
// headers.
type RateLimitInfo struct {
	RetryAfter        time.Duration
	ResetTime         int64
	RequestsRemaining int
	TokensRemaining   int
}

// HeaderParser extracts rate limit hints from response headers.
type HeaderParser func(http.Header) RateLimitInfo

// Client wraps http.Client with status-aware retries.
type Client struct {
	client       *http.Client
	maxRetries   int
	baseDelay    time.Duration
	headerParser HeaderParser
	classify     func(int) RetryClass
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// WithMaxRetries caps retry attempts.
func WithMaxRetries(max int) Option {
	return func(c *Client) {
		c.maxRetries = max
	}
}

// WithBaseDelay sets the exponential backoff base.
func WithBaseDelay(delay time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = delay
	}
}

// WithHeaderParser installs a rate limit header parser.
func WithHeaderParser(parser HeaderParser) Option {
	return func(c *Client) {
		c.headerParser = parser
	}
}

// New builds a Client with conservative defaults.
func New(opts ...Option) *Client {
	c := &Client{
		client:     &http.Client{Timeout: 60 * time.Second},
		maxRetries: 3,
		baseDelay:  time.Second,
		classify:   classifyStatus,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func classifyStatus(statusCode int) RetryClass {
	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return RateLimitRetry
	case http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusGatewayTimeout:
		return BackoffRetry
	default:
		return NoRetry
	}
}

// Do executes the request, retrying retryable failures. The request
// context bounds the total wait: a cancelled context aborts pending
// backoff immediately.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("failed to recreate request body for retry: %w", err)
			}
			req.Body = body
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		class := c.classify(resp.StatusCode)
		var hints RateLimitInfo
		if c.headerParser != nil {
			hints = c.headerParser(resp.Header)
		}

		delay := c.retryDelay(class, attempt, hints)
		if delay <= 0 || attempt >= c.maxRetries {
			if class == NoRetry {
				return resp, fmt.Errorf("HTTP %d", resp.StatusCode)
			}
			return resp, &RetryableError{
				StatusCode: resp.StatusCode,
				Message:    fmt.Sprintf("retries exhausted after %d attempts", attempt+1),
				RetryAfter: delay,
				Err:        fmt.Errorf("HTTP %d", resp.StatusCode),
			}
		}

		resp.Body.Close()
		slog.Debug("retrying request",
			"url", req.URL.String(),
			"status", resp.StatusCode,
			"attempt", attempt+1,
			"delay", delay)

		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(delay):
		}
	}
}

func (c *Client) retryDelay(class RetryClass, attempt int, hints RateLimitInfo) time.Duration {
	switch class {
	case RateLimitRetry:
		if hints.RetryAfter > 0 {
			return hints.RetryAfter
		}
		if hints.ResetTime > 0 {
			if until := time.Until(time.Unix(hints.ResetTime, 0)); until > 0 {
				return until
			}
		}
		return time.Duration(math.Pow(2, float64(attempt))) * c.baseDelay

	case BackoffRetry:
		// Server errors rarely clear quickly; give up after two tries.
		if attempt >= 2 {
			return 0
		}
		return time.Duration(attempt+1) * c.baseDelay

	default:
		return 0
	}
}
