package protocol

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// Defaults match the browser-like identity the asset CDN expects
const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	DefaultReferer   = "https://www.fotor.com/"
	DefaultTimeout   = 20 * time.Second
)

// HTTPClient is an HTTP protocol adapter for fetching assets
type HTTPClient struct {
	client    *http.Client
	userAgent string
	headers   map[string]string
}

// HTTPClientOption is a function that configures HTTPClient
type HTTPClientOption func(*HTTPClient)

// WithTimeout sets the per-request timeout
func WithTimeout(timeout time.Duration) HTTPClientOption {
	return func(c *HTTPClient) {
		if timeout > 0 {
			c.client.Timeout = timeout
		}
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) HTTPClientOption {
	return func(c *HTTPClient) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithReferer sets the Referer header
func WithReferer(referer string) HTTPClientOption {
	return func(c *HTTPClient) {
		if referer != "" {
			c.headers["Referer"] = referer
		}
	}
}

// WithHeaders adds multiple custom headers
func WithHeaders(headers map[string]string) HTTPClientOption {
	return func(c *HTTPClient) {
		for key, value := range headers {
			c.headers[key] = value
		}
	}
}

// WithProxy routes requests through a proxy. socks5:// URLs dial through
// x/net/proxy, anything else is used as an HTTP proxy.
func WithProxy(proxyURL string) HTTPClientOption {
	return func(c *HTTPClient) {
		if proxyURL == "" {
			return
		}

		parsed, err := url.Parse(proxyURL)
		if err != nil {
			return
		}

		transport := c.getTransport()
		if strings.EqualFold(parsed.Scheme, "socks5") {
			var auth *proxy.Auth
			if parsed.User != nil {
				password, _ := parsed.User.Password()
				auth = &proxy.Auth{
					User:     parsed.User.Username(),
					Password: password,
				}
			}

			dialer, err := proxy.SOCKS5("tcp", parsed.Host, auth, proxy.Direct)
			if err != nil {
				return
			}
			if cd, ok := dialer.(proxy.ContextDialer); ok {
				transport.DialContext = cd.DialContext
			} else {
				transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
					return dialer.Dial(network, addr)
				}
			}
			transport.Proxy = nil
			return
		}

		transport.Proxy = http.ProxyURL(parsed)
	}
}

// WithInsecureSkipVerify disables TLS certificate verification
func WithInsecureSkipVerify(skip bool) HTTPClientOption {
	return func(c *HTTPClient) {
		if !skip {
			return
		}
		transport := c.getTransport()
		if transport.TLSClientConfig == nil {
			transport.TLSClientConfig = &tls.Config{}
		}
		transport.TLSClientConfig.InsecureSkipVerify = true
	}
}

// WithMaxConnsPerHost sizes the idle pool so every worker can keep a connection
func WithMaxConnsPerHost(n int) HTTPClientOption {
	return func(c *HTTPClient) {
		if n <= 0 {
			return
		}
		transport := c.getTransport()
		transport.MaxIdleConnsPerHost = n
		if transport.MaxIdleConns < n {
			transport.MaxIdleConns = n
		}
	}
}

// getTransport returns the underlying transport, creating one if needed
func (c *HTTPClient) getTransport() *http.Transport {
	if t, ok := c.client.Transport.(*http.Transport); ok {
		return t
	}
	t := newTransport()
	c.client.Transport = t
	return t
}

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
}

// NewHTTPClient creates a new HTTP client with the given options
func NewHTTPClient(opts ...HTTPClientOption) *HTTPClient {
	c := &HTTPClient{
		client: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: newTransport(),
		},
		userAgent: DefaultUserAgent,
		headers:   map[string]string{"Referer": DefaultReferer},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Supports checks if the URL is supported by this protocol
func (c *HTTPClient) Supports(u *url.URL) bool {
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

// Timeout returns the per-request timeout
func (c *HTTPClient) Timeout() time.Duration {
	return c.client.Timeout
}

// Get fetches the whole body. Any status other than 200 is returned as a *StatusError.
func (c *HTTPClient) Get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating GET request: %w", err)
	}

	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing GET request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode, Status: resp.Status}
	}

	return resp.Body, nil
}

// Close drops idle connections
func (c *HTTPClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// setHeaders sets common headers on the request
func (c *HTTPClient) setHeaders(req *http.Request) {
	setCommonHeaders(req, c.userAgent, c.headers)
}

func setCommonHeaders(req *http.Request, userAgent string, headers map[string]string) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Encoding", "identity") // Assets are stored byte-for-byte

	for key, value := range headers {
		req.Header.Set(key, value)
	}
}
