package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SFTPClient is an SFTP protocol adapter
type SFTPClient struct {
	timeout     time.Duration
	username    string
	password    string
	privateKey  string
	knownHosts  string
	credentials CredentialFunc
	insecure    bool // Skip host key verification
}

// SFTPClientOption is a function that configures SFTPClient
type SFTPClientOption func(*SFTPClient)

// WithSFTPTimeout sets the SSH dial timeout
func WithSFTPTimeout(timeout time.Duration) SFTPClientOption {
	return func(c *SFTPClient) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithSFTPAuth sets SFTP password authentication
func WithSFTPAuth(username, password string) SFTPClientOption {
	return func(c *SFTPClient) {
		c.username = username
		c.password = password
	}
}

// WithSFTPPrivateKey sets SFTP private key authentication
func WithSFTPPrivateKey(keyPath string) SFTPClientOption {
	return func(c *SFTPClient) {
		c.privateKey = keyPath
	}
}

// WithSFTPCredentials sets a per-host credential lookup consulted when the URL carries none
func WithSFTPCredentials(fn CredentialFunc) SFTPClientOption {
	return func(c *SFTPClient) {
		c.credentials = fn
	}
}

// WithSFTPKnownHosts sets the known_hosts file used to verify servers
func WithSFTPKnownHosts(path string) SFTPClientOption {
	return func(c *SFTPClient) {
		c.knownHosts = path
	}
}

// WithSFTPInsecure skips host key verification
func WithSFTPInsecure(insecure bool) SFTPClientOption {
	return func(c *SFTPClient) {
		c.insecure = insecure
	}
}

// NewSFTPClient creates a new SFTP client with the given options
func NewSFTPClient(opts ...SFTPClientOption) *SFTPClient {
	c := &SFTPClient{
		timeout: DefaultTimeout,
	}
	if home, err := os.UserHomeDir(); err == nil {
		c.knownHosts = filepath.Join(home, ".ssh", "known_hosts")
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Supports checks if the URL is supported by this protocol
func (c *SFTPClient) Supports(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, "sftp")
}

// login resolves credentials: URL userinfo first, then the lookup, then the defaults
func (c *SFTPClient) login(u *url.URL) (string, string) {
	if u.User != nil {
		password, _ := u.User.Password()
		return u.User.Username(), password
	}
	if c.credentials != nil {
		if login, password, ok := c.credentials(u.Hostname()); ok {
			return login, password
		}
	}

	username := c.username
	if username == "" {
		username = os.Getenv("USER")
		if username == "" {
			username = os.Getenv("USERNAME") // Windows
		}
	}
	return username, c.password
}

// hostKeyCallback verifies against known_hosts unless verification is disabled
func (c *SFTPClient) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if c.insecure {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	if c.knownHosts == "" {
		return nil, errors.New("no known_hosts file configured")
	}
	cb, err := knownhosts.New(c.knownHosts)
	if err != nil {
		return nil, fmt.Errorf("loading known_hosts: %w", err)
	}
	return cb, nil
}

// authMethods collects key and password auth, keys first
func (c *SFTPClient) authMethods(password string) []ssh.AuthMethod {
	var methods []ssh.AuthMethod

	keyPaths := []string{c.privateKey}
	if c.privateKey == "" {
		homeDir, _ := os.UserHomeDir()
		keyPaths = []string{
			filepath.Join(homeDir, ".ssh", "id_ed25519"),
			filepath.Join(homeDir, ".ssh", "id_ecdsa"),
			filepath.Join(homeDir, ".ssh", "id_rsa"),
		}
	}
	for _, keyPath := range keyPaths {
		if key, err := loadPrivateKey(keyPath); err == nil {
			methods = append(methods, ssh.PublicKeys(key))
			break
		}
	}

	if password != "" {
		methods = append(methods, ssh.Password(password))
	}
	return methods
}

// connect establishes an SSH connection and opens an SFTP session on it
func (c *SFTPClient) connect(ctx context.Context, rawURL string) (*ssh.Client, *sftp.Client, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, "", fmt.Errorf("parsing URL: %w", err)
	}

	host := parsed.Host
	if parsed.Port() == "" {
		host += ":22"
	}

	username, password := c.login(parsed)
	auth := c.authMethods(password)
	if len(auth) == 0 {
		return nil, nil, "", errors.New("no authentication method available")
	}

	hostKey, err := c.hostKeyCallback()
	if err != nil {
		return nil, nil, "", err
	}

	sshConfig := &ssh.ClientConfig{
		User:            username,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         c.timeout,
	}

	dialer := net.Dialer{Timeout: c.timeout}
	netConn, err := dialer.DialContext(ctx, "tcp", host)
	if err != nil {
		return nil, nil, "", fmt.Errorf("SSH connection failed: %w", err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, host, sshConfig)
	if err != nil {
		netConn.Close()
		return nil, nil, "", fmt.Errorf("SSH handshake failed: %w", err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		return nil, nil, "", fmt.Errorf("SFTP session failed: %w", err)
	}

	remotePath := parsed.Path
	if remotePath == "" {
		remotePath = "/"
	}

	return client, sftpClient, remotePath, nil
}

// loadPrivateKey loads an SSH private key from file
func loadPrivateKey(keyPath string) (ssh.Signer, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}
	return ssh.ParsePrivateKey(key)
}

// Get opens the remote file. Missing files are reported as a 404 StatusError.
func (c *SFTPClient) Get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	sshConn, sftpClient, remotePath, err := c.connect(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	file, err := sftpClient.Open(remotePath)
	if err != nil {
		sftpClient.Close()
		sshConn.Close()
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &StatusError{URL: rawURL, Code: 404, Status: "file not found"}
		}
		return nil, fmt.Errorf("opening file: %w", err)
	}

	return &sftpReadCloser{
		file:       file,
		sftpClient: sftpClient,
		sshConn:    sshConn,
	}, nil
}

// sftpReadCloser wraps SFTP file to close connections when done
type sftpReadCloser struct {
	file       *sftp.File
	sftpClient *sftp.Client
	sshConn    *ssh.Client
}

func (s *sftpReadCloser) Read(p []byte) (int, error) {
	return s.file.Read(p)
}

func (s *sftpReadCloser) Close() error {
	err := s.file.Close()
	s.sftpClient.Close()
	s.sshConn.Close()
	return err
}
