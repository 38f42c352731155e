// Package dispatch forwards normalized events to downstream automation
// webhooks. Client.Post is a single retry-free attempt; fallback across
// candidate URLs belongs to the caller.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxResponseBytes = 64 << 10

// StatusError reports a non-2xx answer from a webhook.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("dispatch: status %d", e.StatusCode)
	}
	return fmt.Sprintf("dispatch: status %d: %s", e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a 404 from the webhook, which callers
// treat as "try the next candidate".
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// Result describes a successful delivery.
type Result struct {
	StatusCode int
	Latency    time.Duration
}

// Options configures a Client.
type Options struct {
	HTTPClient *http.Client
	UserAgent  string
}

// Client posts JSON payloads.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// New builds a Client. A nil HTTPClient gets a plain client; the per-call
// timeout passed to Post bounds every request.
func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = "inbound-bridge/1"
	}
	return &Client{httpClient: hc, userAgent: ua}
}

// Post sends payload as JSON to url and waits at most timeout. Transport
// failures are returned as-is; non-2xx answers as *StatusError.
func (c *Client) Post(ctx context.Context, url string, payload any, timeout time.Duration) (Result, error) {
	if strings.TrimSpace(url) == "" {
		return Result{}, errors.New("dispatch: empty url")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("dispatch: marshal: %w", err)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("dispatch: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("dispatch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	return Result{StatusCode: resp.StatusCode, Latency: time.Since(start)}, nil
}
