package protocol

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/quic-go/quic-go/http3"
)

// HTTP3Client is an HTTP/3 (QUIC) protocol adapter
type HTTP3Client struct {
	client    *http.Client
	transport *http3.Transport
	userAgent string
	headers   map[string]string
}

// HTTP3ClientOption configures HTTP3Client
type HTTP3ClientOption func(*HTTP3Client)

// WithHTTP3Timeout sets the timeout
func WithHTTP3Timeout(timeout time.Duration) HTTP3ClientOption {
	return func(c *HTTP3Client) {
		if timeout > 0 {
			c.client.Timeout = timeout
		}
	}
}

// WithHTTP3UserAgent sets the User-Agent
func WithHTTP3UserAgent(ua string) HTTP3ClientOption {
	return func(c *HTTP3Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithHTTP3Referer sets the Referer header
func WithHTTP3Referer(referer string) HTTP3ClientOption {
	return func(c *HTTP3Client) {
		if referer != "" {
			c.headers["Referer"] = referer
		}
	}
}

// WithHTTP3InsecureSkipVerify disables TLS certificate verification
func WithHTTP3InsecureSkipVerify(skip bool) HTTP3ClientOption {
	return func(c *HTTP3Client) {
		c.transport.TLSClientConfig.InsecureSkipVerify = skip
	}
}

// NewHTTP3Client creates a new HTTP/3 client
func NewHTTP3Client(opts ...HTTP3ClientOption) *HTTP3Client {
	transport := &http3.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS13,
		},
	}

	c := &HTTP3Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   DefaultTimeout,
		},
		transport: transport,
		userAgent: DefaultUserAgent,
		headers:   map[string]string{"Referer": DefaultReferer},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Supports checks if this client supports the URL.
// QUIC only carries TLS traffic, so plain http is left to HTTPClient.
func (c *HTTP3Client) Supports(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, "https")
}

// Get fetches the whole body over QUIC
func (c *HTTP3Client) Get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating GET request: %w", err)
	}

	setCommonHeaders(req, c.userAgent, c.headers)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing HTTP/3 GET request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode, Status: resp.Status}
	}

	return resp.Body, nil
}

// Close closes the QUIC transport
func (c *HTTP3Client) Close() error {
	return c.transport.Close()
}
