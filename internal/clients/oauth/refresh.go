// Package oauth implements the refresh_token grant against an OAuth 2.0
// token endpoint.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tbourn/inbound-bridge/internal/domain"
	"github.com/tbourn/inbound-bridge/internal/redact"
)

const (
	defaultTokenURL       = "https://oauth2.googleapis.com/token"
	maxOAuthResponseBytes = 1 << 20
)

// Token is a successful refresh response. RefreshToken is empty unless the
// provider rotated it.
type Token struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

type oauthErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Options configures a Refresher.
type Options struct {
	TokenURL       string
	ClientID       string
	ClientSecret   string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
}

// Refresher exchanges refresh tokens for access tokens.
type Refresher struct {
	tokenURL     string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	timeout      time.Duration
}

// New returns a Refresher with defaults applied.
func New(opts Options) *Refresher {
	u := strings.TrimSpace(opts.TokenURL)
	if u == "" {
		u = defaultTokenURL
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	to := opts.RequestTimeout
	if to <= 0 {
		to = 15 * time.Second
	}
	return &Refresher{tokenURL: u, clientID: opts.ClientID, clientSecret: opts.ClientSecret, httpClient: hc, timeout: to}
}

// Refresh performs one refresh_token grant. Every failure wraps
// domain.ErrRefreshFailed.
func (r *Refresher) Refresh(ctx context.Context, refreshToken string) (Token, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return Token{}, fmt.Errorf("%w: refresh token is empty", domain.ErrRefreshFailed)
	}

	values := url.Values{}
	values.Set("grant_type", "refresh_token")
	values.Set("client_id", r.clientID)
	values.Set("client_secret", r.clientSecret)
	values.Set("refresh_token", refreshToken)

	ctx, cancel := r.requestContext(ctx)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.tokenURL, strings.NewReader(values.Encode()))
	if err != nil {
		return Token{}, fmt.Errorf("%w: create request: %v", domain.ErrRefreshFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("%w: %s", domain.ErrRefreshFailed, redact.Error(err, refreshToken, r.clientSecret))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return Token{}, fmt.Errorf("%w: %s", domain.ErrRefreshFailed, decodeOAuthError(resp))
	}

	var tok Token
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxOAuthResponseBytes)).Decode(&tok); err != nil {
		return Token{}, fmt.Errorf("%w: decode token response: %v", domain.ErrRefreshFailed, err)
	}
	if tok.AccessToken == "" {
		return Token{}, fmt.Errorf("%w: %w", domain.ErrRefreshFailed, errors.New("token response missing access token"))
	}
	return tok, nil
}

func (r *Refresher) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

func decodeOAuthError(resp *http.Response) string {
	var oauthErr oauthErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxOAuthResponseBytes)).Decode(&oauthErr); err != nil || oauthErr.Error == "" {
		return fmt.Sprintf("status %d", resp.StatusCode)
	}
	if oauthErr.ErrorDescription != "" {
		return fmt.Sprintf("status %d: %s: %s", resp.StatusCode, oauthErr.Error, oauthErr.ErrorDescription)
	}
	return fmt.Sprintf("status %d: %s", resp.StatusCode, oauthErr.Error)
}
