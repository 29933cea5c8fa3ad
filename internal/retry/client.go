// Package retry wraps outbound HTTP calls with a bounded retry and backoff policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// maxErrorBody caps how much of a failed response body is kept on a FatalError.
const maxErrorBody = 64 << 10

// RetryableStatuses are the response codes that trigger another attempt.
var RetryableStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Policy bounds the retry loop.
// BackoffFactor 0 retries immediately; otherwise the wait before retry n (0-based)
// is BackoffFactor * 2^n, capped at MaxBackoff.
type Policy struct {
	MaxRetries    int
	BackoffFactor time.Duration
	MaxBackoff    time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:    20,
		BackoffFactor: 500 * time.Millisecond,
		MaxBackoff:    2 * time.Minute,
	}
}

func (p Policy) Validate() error {
	if p.MaxRetries < 0 {
		return errors.New("MaxRetries must be >= 0")
	}
	if p.BackoffFactor < 0 {
		return errors.New("BackoffFactor must be >= 0")
	}
	if p.MaxBackoff < 0 {
		return errors.New("MaxBackoff must be >= 0")
	}
	return nil
}

// Wait returns the delay before retry number attempt (0-based).
func (p Policy) Wait(attempt int) time.Duration {
	if p.BackoffFactor <= 0 {
		return 0
	}
	wait := float64(p.BackoffFactor) * math.Pow(2, float64(attempt))
	if p.MaxBackoff > 0 && wait > float64(p.MaxBackoff) {
		return p.MaxBackoff
	}
	if wait > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(wait)
}

// Client executes requests under a Policy. It is safe to reuse across calls.
type Client struct {
	policy Policy
	rc     *retryablehttp.Client
	log    *zap.Logger
}

// New builds a Client. httpClient may be nil, in which case a client with a 30s timeout is used.
func New(policy Policy, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("retry")

	rc := retryablehttp.NewClient()
	rc.HTTPClient = httpClient
	rc.RetryMax = policy.MaxRetries
	rc.RetryWaitMin = policy.BackoffFactor
	rc.RetryWaitMax = policy.MaxBackoff
	rc.Logger = leveledLogger{logger.Sugar()}
	rc.CheckRetry = checkRetry
	rc.Backoff = func(_, _ time.Duration, attempt int, resp *http.Response) time.Duration {
		if d, ok := retryAfter(resp); ok {
			return d
		}
		return policy.Wait(attempt)
	}
	rc.ErrorHandler = func(resp *http.Response, err error, tries int) (*http.Response, error) {
		if tries > rc.RetryMax {
			status := 0
			if resp != nil {
				status = resp.StatusCode
			}
			return resp, &TransientError{StatusCode: status, Attempts: tries, Err: err}
		}
		return resp, err
	}

	return &Client{policy: policy, rc: rc, log: logger}
}

// Policy returns the policy the client was built with.
func (c *Client) Policy() Policy { return c.policy }

// Execute sends req, retrying transient failures. A 2xx response is returned with its
// body open; every other outcome is a *FatalError.
func (c *Client) Execute(req *http.Request) (*http.Response, error) {
	rreq, err := retryablehttp.FromRequest(req)
	if err != nil {
		return nil, &FatalError{Err: fmt.Errorf("malformed request: %w", err)}
	}

	resp, err := c.rc.Do(rreq)
	if err != nil {
		fatal := &FatalError{Err: err}
		var transient *TransientError
		if errors.As(err, &transient) {
			// Keep the budget details but not the internal error type.
			fatal.Attempts = transient.Attempts
			fatal.Err = transient.Err
		}
		if resp != nil {
			fatal.StatusCode = resp.StatusCode
			fatal.Body = drain(resp)
		}
		c.log.Warn("request failed",
			zap.String("url", redact(req)),
			zap.Int("status", fatal.StatusCode),
			zap.Int("attempts", fatal.Attempts),
			zap.Error(err))
		return nil, fatal
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		fatal := &FatalError{StatusCode: resp.StatusCode, Body: drain(resp)}
		c.log.Warn("request rejected",
			zap.String("url", redact(req)),
			zap.Int("status", resp.StatusCode))
		return nil, fatal
	}
	return resp, nil
}

func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	return RetryableStatuses[resp.StatusCode], nil
}

func retryAfter(resp *http.Response) (time.Duration, bool) {
	if resp == nil {
		return 0, false
	}
	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusServiceUnavailable {
		return 0, false
	}
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

func drain(resp *http.Response) string {
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return string(b)
}

func redact(req *http.Request) string {
	u := *req.URL
	u.RawQuery = ""
	return u.String()
}

// leveledLogger adapts zap to retryablehttp.LeveledLogger.
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.s.Infow(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
