// Package protocol provides protocol adapters for fetching mirrored assets.
package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// ErrUnsupportedScheme is returned when no registered client accepts a URL
var ErrUnsupportedScheme = errors.New("unsupported URL scheme")

// StatusError reports a response that was not a success.
// Code holds the HTTP status, or the FTP reply code where one is known.
type StatusError struct {
	URL    string
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %s", e.URL, e.Status)
}

// Client is a protocol adapter that can stream a whole remote file
type Client interface {
	Supports(u *url.URL) bool
	Get(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// CredentialFunc looks up a login for a host, typically from a netrc file
type CredentialFunc func(host string) (login, password string, ok bool)

// Mux dispatches fetches to the first registered client that supports the URL scheme
type Mux struct {
	clients []Client
}

// NewMux creates a mux over the given clients, tried in order
func NewMux(clients ...Client) *Mux {
	return &Mux{clients: clients}
}

// Register appends a client
func (m *Mux) Register(c Client) {
	m.clients = append(m.clients, c)
}

// Fetch opens a streaming body for rawURL
func (m *Mux) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing URL: %w", err)
	}

	for _, c := range m.clients {
		if c.Supports(u) {
			return c.Get(ctx, rawURL)
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, strings.ToLower(u.Scheme))
}

// Close releases clients that hold connections
func (m *Mux) Close() error {
	var errs []error
	for _, c := range m.clients {
		if closer, ok := c.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
