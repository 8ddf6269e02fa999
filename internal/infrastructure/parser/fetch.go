package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// HTTPError carries status/body for non-2xx responses.
type HTTPError struct {
	URL        string
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s returned %d: %s", e.URL, e.StatusCode, snippet(e.Body, 300))
}

// RetryPolicy controls how page fetches are retried.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 4, BaseDelay: 700 * time.Millisecond, MaxDelay: 20 * time.Second}
}

func (p RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	return p
}

// fetchDocument GETs pageURL, retrying transient failures, and parses the
// body as HTML after converting it to UTF-8 from the declared charset.
func fetchDocument(ctx context.Context, client *http.Client, pageURL, userAgent string, policy RetryPolicy) (*goquery.Document, error) {
	policy = policy.normalized()

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		doc, retryAfter, err := fetchOnce(ctx, client, pageURL, userAgent)
		if err == nil {
			return doc, nil
		}
		lastErr = err

		if !retryable(err) || attempt == policy.MaxAttempts {
			break
		}
		if err := sleepBackoff(ctx, attempt, policy, retryAfter); err != nil {
			return nil, err
		}
	}

	return nil, lastErr
}

func fetchOnce(ctx context.Context, client *http.Client, pageURL, userAgent string) (*goquery.Document, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, parseRetryAfter(resp), &HTTPError{URL: pageURL, StatusCode: resp.StatusCode, Body: body}
	}

	reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, 0, fmt.Errorf("decode charset: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, 0, fmt.Errorf("parse document: %w", err)
	}

	return doc, 0, nil
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}

	var herr *HTTPError
	if errors.As(err, &herr) {
		switch herr.StatusCode {
		case http.StatusTooManyRequests, http.StatusRequestTimeout:
			return true
		}
		return herr.StatusCode >= 500
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var nerr net.Error
	if errors.As(err, &nerr) {
		return nerr.Timeout()
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") || strings.Contains(msg, "eof")
}

func sleepBackoff(ctx context.Context, attempt int, policy RetryPolicy, retryAfter time.Duration) error {
	sleep := retryAfter
	if sleep <= 0 {
		sleep = policy.BaseDelay * time.Duration(1<<(attempt-1))
		if sleep > policy.MaxDelay {
			sleep = policy.MaxDelay
		}
		sleep += time.Duration(rand.Int64N(int64(policy.BaseDelay)/2 + 1))
	}
	if sleep > policy.MaxDelay {
		sleep = policy.MaxDelay
	}

	t := time.NewTimer(sleep)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// parseRetryAfter parses Retry-After (seconds or HTTP date); 0 when absent.
func parseRetryAfter(resp *http.Response) time.Duration {
	v := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func snippet(b []byte, max int) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
