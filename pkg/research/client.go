package research

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rizome-dev/researchgo/pkg/errors"
)

const (
	// DefaultBaseURL is where the answering service listens by default
	DefaultBaseURL = "http://localhost:8000"

	// QueryPath is the endpoint that answers questions
	QueryPath = "/api/query"

	// MetricsPath is the service's metrics endpoint, used as a liveness check
	MetricsPath = "/metrics"

	// maxErrorBody limits how much of a failed response is read
	maxErrorBody = 64 << 10

	// DefaultMaxResponseSize caps a successful answer body
	DefaultMaxResponseSize = 8 << 20
)

// Client performs single request/response exchanges with the answering service
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     Logger

	// User agent for requests
	userAgent string

	newRequestID    func() string
	maxResponseSize int64
}

// Option is a function that configures the client
type Option func(*Client)

// NewClient creates a new answering service client. Without WithTimeout the
// underlying http.Client imposes no deadline of its own.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:      DefaultBaseURL,
		userAgent:    "researchgo/1.0.0",
		httpClient:   &http.Client{},
		newRequestID: uuid.NewString,

		maxResponseSize: DefaultMaxResponseSize,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithBaseURL sets a custom base URL for the service
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets a timeout for HTTP requests
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithUserAgent sets a custom user agent for requests
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithLogger sets the logger used for request tracing
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRequestIDGenerator overrides how X-Request-ID values are produced
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		c.newRequestID = gen
	}
}

// WithMaxResponseSize caps how many bytes of a successful answer are read.
// Larger bodies fail with *errors.MalformedResponseError.
func WithMaxResponseSize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxResponseSize = n
		}
	}
}

// BaseURL returns the configured base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// doRequest performs an HTTP request and turns transport failures and
// non-2xx responses into *errors.TransportError.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body interface{}) (*http.Response, error) {
	url := c.baseURL + endpoint

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := c.newRequestID()

	// Set headers
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)

	if c.logger != nil {
		c.logger.Debug("Sending request", "method", method, "url", url, "request_id", requestID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewNetworkError(err)
	}

	if c.logger != nil {
		c.logger.Debug("Received response", "status", resp.StatusCode, "request_id", requestID)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, c.parseError(resp)
	}

	return resp, nil
}

// parseError builds a status error from a non-2xx response
func (c *Client) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return errors.NewStatusError(resp.StatusCode, body)
}
