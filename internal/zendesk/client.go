package zendesk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/oaps-analytics/zendesk-reporting/internal/config"
	apperrors "github.com/oaps-analytics/zendesk-reporting/pkg/util"
)

const (
	requestTimeout = 30 * time.Second
	pageDelay      = 100 * time.Millisecond
)

// Client talks to the Zendesk REST API. Credentials are resolved from the
// environment on every call so token rotation takes effect without a
// restart.
type Client struct {
	http     *http.Client
	logger   *zap.Logger
	groupIDs []string

	// baseURL overrides the subdomain-derived API root; set by tests.
	baseURL string
	sleep   func(time.Duration)
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at a fixed API root instead of the
// subdomain-derived one.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(url, "/") }
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSleep replaces the backoff sleep, letting tests skip real waits.
func WithSleep(fn func(time.Duration)) Option {
	return func(c *Client) { c.sleep = fn }
}

// NewClient constructs the adapter. groupIDs restricts agent listings to
// the configured groups; empty means no restriction.
func NewClient(logger *zap.Logger, groupIDs []string, opts ...Option) *Client {
	c := &Client{
		http:     &http.Client{Timeout: requestTimeout},
		logger:   logger,
		groupIDs: groupIDs,
		sleep:    time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// resolve returns the API root and credentials for this call.
func (c *Client) resolve() (string, config.ZendeskCredentials, error) {
	creds, err := config.ResolveZendeskCredentials()
	if err != nil {
		return "", config.ZendeskCredentials{}, apperrors.NewUpstream("zendesk", "zendesk configuration incomplete", err)
	}
	c.logger.Debug("zendesk config resolved",
		zap.String("subdomain", creds.Subdomain),
		zap.String("email", maskEmail(creds.Email)),
		zap.String("token", maskToken(creds.Token)),
	)
	base := c.baseURL
	if base == "" {
		base = creds.BaseURL()
	}
	return base, creds, nil
}

// do performs one API call with the retry-once-on-429 policy: on a rate
// limit response it sleeps for the server-specified backoff plus one second
// and retries exactly once. Any other non-2xx fails immediately.
func (c *Client) do(ctx context.Context, method, url string, payload, out any) error {
	_, creds, err := c.resolve()
	if err != nil {
		return err
	}

	var body []byte
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			return apperrors.NewInternalError(err)
		}
	}

	resp, err := c.attempt(ctx, method, url, creds, body)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		wait := retryAfter(resp) + time.Second
		drain(resp)
		c.logger.Warn("zendesk rate limit hit, retrying", zap.Duration("wait", wait))
		c.sleep(wait)
		resp, err = c.attempt(ctx, method, url, creds, body)
		if err != nil {
			return err
		}
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperrors.NewUpstream("zendesk",
			fmt.Sprintf("zendesk returned %d", resp.StatusCode),
			fmt.Errorf("%s %s: %s", method, url, strings.TrimSpace(string(msg))))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewUpstream("zendesk", "zendesk response decode failed", err)
	}
	return nil
}

func (c *Client) attempt(ctx context.Context, method, url string, creds config.ZendeskCredentials, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	req.SetBasicAuth(creds.Email+"/token", creds.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.NewUpstream("zendesk", "zendesk request failed", err)
	}
	return resp, nil
}

func retryAfter(resp *http.Response) time.Duration {
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 3 * time.Second
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

// maskEmail renders j***@domain.com for logs.
func maskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return "hidden"
	}
	return local[:1] + "***@" + domain
}

// maskToken renders abc...xyz for logs.
func maskToken(token string) string {
	if len(token) < 6 {
		return "hidden"
	}
	return token[:3] + "..." + token[len(token)-3:]
}
