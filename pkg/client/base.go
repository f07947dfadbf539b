package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/kagent-dev/agentcheck/pkg/telemetry"
)

// DefaultTimeout bounds a single call when no timeout is configured.
const DefaultTimeout = 30 * time.Second

const contentTypeJSON = "application/json"

// ClientOption represents a configuration option for the client
type ClientOption func(*BaseClient)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *BaseClient) {
		c.HTTPClient = httpClient
	}
}

// WithTimeout sets the per-call timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *BaseClient) {
		c.Timeout = timeout
	}
}

// WithUserAgent sets the User-Agent header sent with every call
func WithUserAgent(userAgent string) ClientOption {
	return func(c *BaseClient) {
		c.UserAgent = userAgent
	}
}

// BaseClient contains the shared HTTP functionality used by both protocol clients.
// It has no protocol knowledge.
type BaseClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	UserAgent  string
}

// NewBaseClient creates a new base client with the given configuration
func NewBaseClient(baseURL string, options ...ClientOption) *BaseClient {
	client := &BaseClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
	}

	for _, option := range options {
		option(client)
	}

	if client.Timeout <= 0 {
		client.Timeout = DefaultTimeout
	}
	if client.HTTPClient == nil {
		client.HTTPClient = &http.Client{Timeout: client.Timeout}
	}

	return client
}

func (c *BaseClient) buildURL(path string) string {
	return c.BaseURL + path
}

// startRequest sends the request and returns the response once headers arrived.
// Non-2xx responses are consumed and returned as *TransportError. The returned
// cancel func releases the per-call deadline and must be called after the body
// is consumed.
func (c *BaseClient) startRequest(ctx context.Context, method, path string, body any, accept string) (*http.Response, context.CancelFunc, error) {
	log := logr.FromContextOrDiscard(ctx)
	urlStr := c.buildURL(path)

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	req, err := http.NewRequestWithContext(ctx, method, urlStr, reqBody)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	log.V(1).Info("Sending request", "method", method, "url", urlStr)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		cancel()
		terr := newTransportError(method, urlStr, err)
		log.V(1).Info("Request failed", "method", method, "url", urlStr, "kind", terr.Kind)
		return nil, nil, terr
	}
	telemetry.SetSpanAttributes(ctx, map[string]string{
		"http.method": method,
		"http.url":    urlStr,
		"http.status": resp.Status,
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		cancel()
		log.V(1).Info("Request rejected", "method", method, "url", urlStr, "statusCode", resp.StatusCode)
		return nil, nil, &TransportError{
			Kind:       KindHTTPStatus,
			Method:     method,
			URL:        urlStr,
			StatusCode: resp.StatusCode,
			Body:       string(bodyBytes),
		}
	}

	return resp, cancel, nil
}

// doRequest performs the call and returns the full response body.
func (c *BaseClient) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	resp, cancel, err := c.startRequest(ctx, method, path, body, contentTypeJSON)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newTransportError(method, c.buildURL(path), err)
	}
	return data, nil
}

func (c *BaseClient) Get(ctx context.Context, path string) ([]byte, error) {
	return c.doRequest(ctx, http.MethodGet, path, nil)
}

func (c *BaseClient) Post(ctx context.Context, path string, body any) ([]byte, error) {
	return c.doRequest(ctx, http.MethodPost, path, body)
}

func (c *BaseClient) Delete(ctx context.Context, path string) ([]byte, error) {
	return c.doRequest(ctx, http.MethodDelete, path, nil)
}

// DecodeResponse unmarshals a body, reporting unparseable JSON as a malformed-body transport error.
func (c *BaseClient) DecodeResponse(method, path string, data []byte, target any) error {
	if err := json.Unmarshal(data, target); err != nil {
		return &TransportError{
			Kind:   KindMalformedBody,
			Method: method,
			URL:    c.buildURL(path),
			Body:   string(data),
			Err:    err,
		}
	}
	return nil
}
