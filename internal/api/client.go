package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Default transport settings. Transport retries default to zero because
// the poll loop applies its own retry policy; raising MaxRetries stacks
// transport-level retries underneath it.
const (
	DefaultTimeout      = 10 * time.Second
	DefaultMaxRetries   = 0
	DefaultRetryBackoff = 500 * time.Millisecond
)

// Client provides read-only access to the blocks API headers endpoints.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger

	maxRetries   int
	retryBackoff time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new blocks API client. token may be empty; when set
// it is sent as a bearer token on every request.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger:       slog.Default(),
		maxRetries:   DefaultMaxRetries,
		retryBackoff: DefaultRetryBackoff,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the transport-level retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}
