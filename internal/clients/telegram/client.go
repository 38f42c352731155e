// Package telegram is a small client for the Bot API calls the chat poller
// needs: getUpdates, deleteWebhook and setWebhook. The bot secret is part of
// the request path, so every error leaving this package is scrubbed of it.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
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
	defaultBaseURL   = "https://api.telegram.org"
	maxResponseBytes = 8 << 20
)

// ErrConflict means another consumer holds the update stream, usually a
// webhook registered elsewhere. It always comes wrapped with
// domain.ErrTransport.
var ErrConflict = errors.New("telegram: conflict")

// APIError is a non-OK answer from the Bot API.
type APIError struct {
	StatusCode  int
	ErrorCode   int
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("telegram: status %d", e.StatusCode)
	}
	return fmt.Sprintf("telegram: status %d: %s", e.StatusCode, e.Description)
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	// RequestSlack is added to the long-poll wait to form the request
	// deadline.
	RequestSlack time.Duration
}

// Client talks to one Bot API host. Each call takes the bot secret.
type Client struct {
	baseURL    string
	httpClient *http.Client
	slack      time.Duration
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
	slack := opts.RequestSlack
	if slack <= 0 {
		slack = 10 * time.Second
	}
	return &Client{baseURL: base, httpClient: hc, slack: slack}
}

type envelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

// GetUpdates long-polls for updates with update_id >= offset, waiting up to
// wait on the server side. A zero wait returns immediately, which is how a
// paused automation drains its backlog.
func (c *Client) GetUpdates(ctx context.Context, token string, offset int64, wait time.Duration) ([]Update, error) {
	q := url.Values{}
	q.Set("offset", strconv.FormatInt(offset, 10))
	q.Set("timeout", strconv.Itoa(int(wait/time.Second)))
	q.Set("allowed_updates", `["message","edited_message","channel_post","edited_channel_post"]`)

	var out []Update
	if err := c.call(ctx, token, "getUpdates", q, wait+c.slack, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteWebhook switches the bot to pull mode. Pending updates are kept.
func (c *Client) DeleteWebhook(ctx context.Context, token string) error {
	q := url.Values{}
	q.Set("drop_pending_updates", "false")
	return c.call(ctx, token, "deleteWebhook", q, c.slack, nil)
}

func (c *Client) call(ctx context.Context, token, method string, q url.Values, timeout time.Duration, dst any) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("%w: telegram: empty bot token", domain.ErrTransport)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint := c.baseURL + "/bot" + token + "/" + method
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return c.transportErr(token, method, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.transportErr(token, method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&env); err != nil {
		if resp.StatusCode != http.StatusOK {
			return c.statusErr(token, method, &APIError{StatusCode: resp.StatusCode})
		}
		return c.transportErr(token, method, fmt.Errorf("decode: %w", err))
	}
	if !env.OK || resp.StatusCode != http.StatusOK {
		return c.statusErr(token, method, &APIError{
			StatusCode:  resp.StatusCode,
			ErrorCode:   env.ErrorCode,
			Description: env.Description,
		})
	}
	if dst == nil {
		return nil
	}
	if err := json.Unmarshal(env.Result, dst); err != nil {
		return c.transportErr(token, method, fmt.Errorf("decode result: %w", err))
	}
	return nil
}

func (c *Client) transportErr(token, method string, err error) error {
	return fmt.Errorf("%w: telegram %s: %s", domain.ErrTransport, method, redact.Error(err, token))
}

func (c *Client) statusErr(token, method string, apiErr *APIError) error {
	apiErr.Description = redact.Secret(apiErr.Description, token)
	if apiErr.StatusCode == http.StatusConflict || apiErr.ErrorCode == http.StatusConflict {
		return fmt.Errorf("%w: %w: %s: %w", domain.ErrTransport, ErrConflict, method, apiErr)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrTransport, method, apiErr)
}
