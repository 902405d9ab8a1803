package protocol

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
)

// FTPClient is an FTP protocol adapter for mirrors hosted on FTP or FTPS
type FTPClient struct {
	timeout       time.Duration
	username      string
	password      string
	credentials   CredentialFunc
	useTLS        bool // Enable explicit FTPS (AUTH TLS)
	implicitTLS   bool // Use implicit TLS (port 990)
	skipTLSVerify bool
}

// FTPClientOption is a function that configures FTPClient
type FTPClientOption func(*FTPClient)

// WithFTPTimeout sets the FTP dial timeout
func WithFTPTimeout(timeout time.Duration) FTPClientOption {
	return func(c *FTPClient) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithFTPAuth sets default FTP credentials
func WithFTPAuth(username, password string) FTPClientOption {
	return func(c *FTPClient) {
		c.username = username
		c.password = password
	}
}

// WithFTPCredentials sets a per-host credential lookup consulted when the URL carries none
func WithFTPCredentials(fn CredentialFunc) FTPClientOption {
	return func(c *FTPClient) {
		c.credentials = fn
	}
}

// WithFTPS enables explicit FTPS (AUTH TLS) on standard port 21
func WithFTPS(useTLS bool) FTPClientOption {
	return func(c *FTPClient) {
		c.useTLS = useTLS
	}
}

// WithFTPSImplicit enables implicit FTPS (direct TLS on port 990)
func WithFTPSImplicit(implicit bool) FTPClientOption {
	return func(c *FTPClient) {
		c.implicitTLS = implicit
		if implicit {
			c.useTLS = true
		}
	}
}

// WithFTPSkipTLSVerify skips TLS certificate verification
func WithFTPSkipTLSVerify(skip bool) FTPClientOption {
	return func(c *FTPClient) {
		c.skipTLSVerify = skip
	}
}

// NewFTPClient creates a new FTP client with the given options
func NewFTPClient(opts ...FTPClientOption) *FTPClient {
	c := &FTPClient{
		timeout:  DefaultTimeout,
		username: "anonymous",
		password: "anonymous@",
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Supports checks if the URL is supported by this protocol
func (c *FTPClient) Supports(u *url.URL) bool {
	scheme := strings.ToLower(u.Scheme)
	return scheme == "ftp" || scheme == "ftps"
}

// login resolves credentials: URL userinfo first, then the lookup, then the defaults
func (c *FTPClient) login(u *url.URL) (string, string) {
	if u.User != nil {
		password, _ := u.User.Password()
		return u.User.Username(), password
	}
	if c.credentials != nil {
		if login, password, ok := c.credentials(u.Hostname()); ok {
			return login, password
		}
	}
	return c.username, c.password
}

// connect dials and logs in, returning the connection and remote path
func (c *FTPClient) connect(ctx context.Context, rawURL string) (*ftp.ServerConn, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("parsing URL: %w", err)
	}

	useTLS := c.useTLS || strings.EqualFold(parsed.Scheme, "ftps")

	host := parsed.Host
	if parsed.Port() == "" {
		if c.implicitTLS {
			host += ":990"
		} else {
			host += ":21"
		}
	}

	dialOpts := []ftp.DialOption{
		ftp.DialWithTimeout(c.timeout),
		ftp.DialWithContext(ctx),
	}

	if useTLS {
		tlsConfig := &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: c.skipTLSVerify,
			ServerName:         parsed.Hostname(),
		}
		if c.implicitTLS {
			dialOpts = append(dialOpts, ftp.DialWithTLS(tlsConfig))
		} else {
			dialOpts = append(dialOpts, ftp.DialWithExplicitTLS(tlsConfig))
		}
	}

	conn, err := ftp.Dial(host, dialOpts...)
	if err != nil {
		return nil, "", fmt.Errorf("connecting to FTP server: %w", err)
	}

	username, password := c.login(parsed)
	if err := conn.Login(username, password); err != nil {
		conn.Quit()
		return nil, "", fmt.Errorf("FTP login failed: %w", err)
	}

	remotePath := parsed.Path
	if remotePath == "" {
		remotePath = "/"
	}

	return conn, remotePath, nil
}

// Get retrieves the whole file. The connection is closed with the body.
func (c *FTPClient) Get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	conn, remotePath, err := c.connect(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	resp, err := conn.Retr(remotePath)
	if err != nil {
		conn.Quit()
		var tpErr *textproto.Error
		if errors.As(err, &tpErr) {
			return nil, &StatusError{URL: rawURL, Code: tpErr.Code, Status: tpErr.Error()}
		}
		return nil, fmt.Errorf("retrieving file: %w", err)
	}

	return &ftpReadCloser{
		ReadCloser: resp,
		conn:       conn,
	}, nil
}

// ftpReadCloser wraps FTP response to close connection when done
type ftpReadCloser struct {
	io.ReadCloser
	conn *ftp.ServerConn
}

func (f *ftpReadCloser) Close() error {
	err := f.ReadCloser.Close()
	f.conn.Quit()
	return err
}
