// Package gmail is a minimal client for the three mailbox calls the mail
// poller makes: list unread, get one message, and clear its UNREAD label.
package gmail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tbourn/inbound-bridge/internal/domain"
	"github.com/tbourn/inbound-bridge/internal/redact"
)

const (
	defaultBaseURL   = "https://gmail.googleapis.com/gmail/v1/users/me"
	maxResponseBytes = 16 << 20
)

// APIError is a non-2xx answer from the mail API.
type APIError struct {
	StatusCode int
	Status     string
	Reason     string
	Message    string
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "gmail: status %d", e.StatusCode)
	if e.Status != "" {
		b.WriteString(" " + e.Status)
	}
	if e.Reason != "" {
		b.WriteString(" (" + e.Reason + ")")
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	return b.String()
}

type googleError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

// MessageRef is one entry of a list call.
type MessageRef struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

// Options configures a Client.
type Options struct {
	BaseURL        string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
}

// Client is safe for concurrent use. Each call takes the bearer token.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// New returns a Client with defaults applied.
func New(opts Options) *Client {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	to := opts.RequestTimeout
	if to <= 0 {
		to = 15 * time.Second
	}
	return &Client{baseURL: base, httpClient: hc, timeout: to}
}

// ListUnread returns up to max unread message references, newest first.
func (c *Client) ListUnread(ctx context.Context, token string, max int) ([]MessageRef, error) {
	q := url.Values{}
	q.Set("q", "is:unread")
	q.Set("maxResults", strconv.Itoa(max))
	var out struct {
		Messages []MessageRef `json:"messages"`
	}
	if err := c.do(ctx, token, http.MethodGet, "/messages?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// GetMessage fetches one message in full format.
func (c *Client) GetMessage(ctx context.Context, token, id string) (*Message, error) {
	var m Message
	if err := c.do(ctx, token, http.MethodGet, "/messages/"+url.PathEscape(id)+"?format=full", nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// MarkRead removes the UNREAD label from message id.
func (c *Client) MarkRead(ctx context.Context, token, id string) error {
	body := map[string][]string{"removeLabelIds": {"UNREAD"}}
	return c.do(ctx, token, http.MethodPost, "/messages/"+url.PathEscape(id)+"/modify", body, nil)
}

func (c *Client) do(ctx context.Context, token, method, path string, body, dst any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gmail: marshal: %w", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("%w: gmail: build request: %v", domain.ErrTransport, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: gmail: %s", domain.ErrTransport, redact.Error(err, token))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: %w", domain.ErrTransport, decodeError(resp))
	}
	if dst == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(dst); err != nil {
		return fmt.Errorf("%w: gmail: decode: %v", domain.ErrTransport, err)
	}
	return nil
}

func decodeError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var ge googleError
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&ge); err != nil {
		return apiErr
	}
	apiErr.Status = ge.Error.Status
	apiErr.Message = ge.Error.Message
	if len(ge.Error.Errors) > 0 {
		apiErr.Reason = ge.Error.Errors[0].Reason
	}
	return apiErr
}
