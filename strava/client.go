package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ultracoach/reconcile/core"
)

const (
	DefaultBaseURL  = "https://www.strava.com/api/v3"
	DefaultTokenURL = "https://www.strava.com/oauth/token"

	defaultClientTimeout     = 30 * time.Second
	defaultResponseBodyLimit = int64(10 << 20)
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the Strava REST API. It satisfies core.ActivityProvider
// and reports every response's rate headers to the injected policy so the
// orchestrator's pre-call checks stay accurate.
type Client struct {
	HTTP                 HTTPDoer
	BaseURL              string
	TokenURL             string
	ClientID             string
	ClientSecret         string
	RateLimits           core.RateLimitPolicy
	Logger               core.Logger
	MaxResponseBodyBytes int64
}

type ClientOption func(*Client)

func WithHTTPClient(doer HTTPDoer) ClientOption {
	return func(c *Client) {
		if c == nil || doer == nil {
			return
		}
		c.HTTP = doer
	}
}

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if c == nil || strings.TrimSpace(baseURL) == "" {
			return
		}
		c.BaseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

func WithTokenURL(tokenURL string) ClientOption {
	return func(c *Client) {
		if c == nil || strings.TrimSpace(tokenURL) == "" {
			return
		}
		c.TokenURL = strings.TrimSpace(tokenURL)
	}
}

func WithRateLimitPolicy(policy core.RateLimitPolicy) ClientOption {
	return func(c *Client) {
		if c == nil {
			return
		}
		c.RateLimits = policy
	}
}

func WithLogger(logger core.Logger) ClientOption {
	return func(c *Client) {
		if c == nil || logger == nil {
			return
		}
		c.Logger = logger
	}
}

func NewClient(clientID, clientSecret string, opts ...ClientOption) (*Client, error) {
	clientID = strings.TrimSpace(clientID)
	clientSecret = strings.TrimSpace(clientSecret)
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("strava: client id and client secret are required")
	}
	client := &Client{
		HTTP:                 &http.Client{Timeout: defaultClientTimeout},
		BaseURL:              DefaultBaseURL,
		TokenURL:             DefaultTokenURL,
		ClientID:             clientID,
		ClientSecret:         clientSecret,
		MaxResponseBodyBytes: defaultResponseBodyLimit,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// FetchActivity loads one activity by id using the caller's access token.
// Missing or invisible activities surface as core.ErrActivityNotFound.
func (c *Client) FetchActivity(ctx context.Context, accessToken string, activityID int64) (core.ExternalActivity, error) {
	if c == nil || c.HTTP == nil {
		return core.ExternalActivity{}, fmt.Errorf("strava: client is not configured")
	}
	if strings.TrimSpace(accessToken) == "" {
		return core.ExternalActivity{}, fmt.Errorf("strava: access token is required")
	}
	if activityID <= 0 {
		return core.ExternalActivity{}, fmt.Errorf("strava: activity id is required")
	}

	endpoint := fmt.Sprintf("%s/activities/%d", c.BaseURL, activityID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return core.ExternalActivity{}, fmt.Errorf("strava: build activity request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(accessToken))
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return core.ExternalActivity{}, fmt.Errorf("strava: activity request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.bodyLimit()))
	if err != nil {
		return core.ExternalActivity{}, fmt.Errorf("strava: read activity response: %w", err)
	}

	c.observe(ctx, "activity_fetch", resp)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return core.ExternalActivity{}, fmt.Errorf("%w: strava activity %d", core.ErrActivityNotFound, activityID)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return core.ExternalActivity{}, fmt.Errorf("strava: activity request unauthorized (status %d)", resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return core.ExternalActivity{}, fmt.Errorf("strava: rate limit exceeded (status 429)")
	case resp.StatusCode != http.StatusOK:
		return core.ExternalActivity{}, fmt.Errorf("strava: activity request returned status %d", resp.StatusCode)
	}

	var payload activityPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return core.ExternalActivity{}, fmt.Errorf("strava: decode activity response: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		raw = nil
	}
	return payload.toDomain(raw), nil
}

// RefreshToken exchanges a refresh token for a fresh grant.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (core.TokenGrant, error) {
	if c == nil || c.HTTP == nil {
		return core.TokenGrant{}, fmt.Errorf("strava: client is not configured")
	}
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return core.TokenGrant{}, fmt.Errorf("strava: refresh token is required")
	}

	form := url.Values{}
	form.Set("client_id", c.ClientID)
	form.Set("client_secret", c.ClientSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return core.TokenGrant{}, fmt.Errorf("strava: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return core.TokenGrant{}, fmt.Errorf("strava: token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.bodyLimit()))
	if err != nil {
		return core.TokenGrant{}, fmt.Errorf("strava: read token response: %w", err)
	}

	c.observe(ctx, "token_refresh", resp)

	if resp.StatusCode != http.StatusOK {
		return core.TokenGrant{}, fmt.Errorf("strava: token refresh returned status %d", resp.StatusCode)
	}

	var payload tokenResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return core.TokenGrant{}, fmt.Errorf("strava: decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return core.TokenGrant{}, fmt.Errorf("strava: token refresh returned no access token")
	}
	grant := core.TokenGrant{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
	}
	if grant.RefreshToken == "" {
		grant.RefreshToken = refreshToken
	}
	if payload.ExpiresAt > 0 {
		grant.ExpiresAt = time.Unix(payload.ExpiresAt, 0).UTC()
	}
	return grant, nil
}

func (c *Client) observe(ctx context.Context, bucket string, resp *http.Response) {
	if c.RateLimits == nil || resp == nil {
		return
	}
	headers := map[string]string{}
	for key := range resp.Header {
		headers[key] = resp.Header.Get(key)
	}
	if err := c.RateLimits.Observe(ctx, core.RateLimitKey{ProviderID: "strava", BucketKey: bucket}, resp.StatusCode, headers); err != nil {
		core.LogError(ctx, c.Logger, "rate limit observation failed", map[string]any{
			"bucket": bucket,
			"error":  err.Error(),
		})
	}
}

func (c *Client) bodyLimit() int64 {
	if c != nil && c.MaxResponseBodyBytes > 0 {
		return c.MaxResponseBodyBytes
	}
	return defaultResponseBodyLimit
}

var _ core.ActivityProvider = (*Client)(nil)
