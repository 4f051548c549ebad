// Package postmark is a client for the remote template store's HTTP API.
package postmark

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/opencode-ai/pmsync/internal/logging"
	"github.com/rs/zerolog"
)

const (
	// DefaultHost is the production API host.
	DefaultHost = "api.postmarkapp.com"

	defaultTimeout    = 30 * time.Second
	serverTokenHeader = "X-Postmark-Server-Token"
)

// Client handles template API calls for one server token.
type Client struct {
	BaseURL   string
	Token     string
	UserAgent string
	Client    *http.Client

	logger zerolog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithRequestHost points the client at another host. A bare host gets https://.
func WithRequestHost(host string) Option {
	return func(c *Client) {
		if base := normalizeHost(host); base != "" {
			c.BaseURL = base
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.Client = client
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient().Timeout = timeout
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.UserAgent = userAgent
	}
}

// WithLogger replaces the component logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient constructs a client with defaults applied.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		BaseURL:   normalizeHost(DefaultHost),
		Token:     strings.TrimSpace(token),
		UserAgent: "pmsync",
		Client:    &http.Client{Timeout: defaultTimeout},
		logger:    logging.Component("postmark"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Host returns the host part of the base URL.
func (c *Client) Host() string {
	parsed, err := url.Parse(c.BaseURL)
	if err != nil || parsed.Host == "" {
		return c.BaseURL
	}
	return parsed.Host
}

func normalizeHost(host string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		return ""
	}
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	return host
}

func (c *Client) httpClient() *http.Client {
	if c.Client == nil {
		c.Client = &http.Client{Timeout: defaultTimeout}
	}
	if c.Client.Timeout <= 0 {
		c.Client.Timeout = defaultTimeout
	}
	return c.Client
}

func (c *Client) baseURL() (string, error) {
	if c == nil {
		return "", errors.New("postmark client is nil")
	}
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		return "", errors.New("postmark base URL is empty")
	}
	if c.Token == "" {
		return "", ErrMissingToken
	}
	return base, nil
}

// do sends one request and decodes a JSON response into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, out any) error {
	base, err := c.baseURL()
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	endpoint := base + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(serverTokenHeader, c.Token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	started := time.Now()
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(started)).
		Msg("postmark request")

	data, err := readResponseBody(resp)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func readResponseBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read postmark response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := &APIError{StatusCode: resp.StatusCode, Status: resp.Status}
		var decoded struct {
			ErrorCode int    `json:"ErrorCode"`
			Message   string `json:"Message"`
		}
		if json.Unmarshal(body, &decoded) == nil && decoded.Message != "" {
			apiErr.ErrorCode = decoded.ErrorCode
			apiErr.Message = decoded.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		return nil, apiErr
	}

	return body, nil
}
