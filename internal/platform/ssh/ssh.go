package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/crypto/ssh"
)

const (
	defaultPort        = 22
	defaultDialTimeout = 30 * time.Second
	defaultKeepAlive   = 30 * time.Second
)

// Config holds SSH client configuration.
type Config struct {
	Host       string
	Port       int
	User       string
	PrivateKey []byte

	// DialTimeout bounds the TCP connect and SSH handshake.
	// If zero, defaultDialTimeout is used.
	DialTimeout time.Duration

	// KeepAlive is the interval of keepalive requests during long commands.
	// If zero, defaultKeepAlive is used.
	KeepAlive time.Duration

	// HostKeyCallback handles host key verification.
	// If nil, ssh.InsecureIgnoreHostKey() is used (suitable for ephemeral infrastructure).
	HostKeyCallback ssh.HostKeyCallback
}

// Command is one remote invocation.
type Command struct {
	Line string
	// Prefix is prepended to Line, e.g. "sudo".
	Prefix string
	// PTY requests a pseudo-terminal. Output is then merged into Stdout.
	PTY bool
	// Stdin, if set, is streamed to the remote process and closed at EOF.
	Stdin io.Reader
}

func (c Command) String() string {
	if c.Prefix == "" {
		return c.Line
	}
	return c.Prefix + " " + c.Line
}

// Result is the outcome of a command that ran.
type Result struct {
	Stdout     string
	Stderr     string
	ExitStatus int
}

// ConnectError means the command never started.
type ConnectError struct {
	Host string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("could not connect to %s: %v", e.Host, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// ExitError means the command ran and exited non-zero.
type ExitError struct {
	Host    string
	Command string
	Status  int
	Stderr  string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("command %q on %s exited with status %d", e.Command, e.Host, e.Status)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// IsConnectError reports whether err is a *ConnectError.
func IsConnectError(err error) bool {
	var ce *ConnectError
	return errors.As(err, &ce)
}

// Client executes commands on a remote server via SSH.
// It parses the private key once during construction and
// creates connections on-demand per Run call.
type Client struct {
	config *Config
	signer ssh.Signer
}

// NewClient creates a new SSH client and validates the private key.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if cfg.Host == "" {
		return nil, fmt.Errorf("config host cannot be empty")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("config user cannot be empty")
	}
	if len(cfg.PrivateKey) == 0 {
		return nil, fmt.Errorf("config private key cannot be empty")
	}

	// Copy config to avoid mutating caller's struct
	configCopy := *cfg
	configCopy.PrivateKey = nil

	if configCopy.Port == 0 {
		configCopy.Port = defaultPort
	}
	if configCopy.DialTimeout == 0 {
		configCopy.DialTimeout = defaultDialTimeout
	}
	if configCopy.KeepAlive == 0 {
		configCopy.KeepAlive = defaultKeepAlive
	}
	if configCopy.HostKeyCallback == nil {
		configCopy.HostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // Default for ephemeral infrastructure
	}

	signer, err := ssh.ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return &Client{
		config: &configCopy,
		signer: signer,
	}, nil
}

// AsUser returns a client for the same host and key logged in as user.
func (c *Client) AsUser(user string) *Client {
	cfg := *c.config
	cfg.User = user
	return &Client{config: &cfg, signer: c.signer}
}

// User returns the login user.
func (c *Client) User() string { return c.config.User }

// Host returns the target host.
func (c *Client) Host() string { return c.config.Host }

// Run executes cmd. A non-zero exit returns both the Result and an *ExitError.
func (c *Client) Run(ctx context.Context, cmd Command) (*Result, error) {
	client, err := c.dial(ctx)
	if err != nil {
		return nil, &ConnectError{Host: c.config.Host, Err: err}
	}
	defer func() { _ = client.Close() }()

	session, err := client.NewSession()
	if err != nil {
		return nil, &ConnectError{Host: c.config.Host, Err: fmt.Errorf("failed to create session: %w", err)}
	}
	defer func() { _ = session.Close() }()

	if cmd.PTY {
		if err := session.RequestPty("xterm", 80, 24, ssh.TerminalModes{ssh.ECHO: 0}); err != nil {
			return nil, &ConnectError{Host: c.config.Host, Err: fmt.Errorf("failed to request pty: %w", err)}
		}
	}

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if cmd.Stdin != nil {
		session.Stdin = cmd.Stdin
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-runCtx.Done()
		_ = session.Close()
		_ = client.Close()
	}()
	go keepAlive(runCtx, client, c.config.KeepAlive)

	line := cmd.String()
	logr.FromContextOrDiscard(ctx).V(1).Info("running remote command",
		"host", c.config.Host, "user", c.config.User, "command", line, "pty", cmd.PTY)

	runErr := session.Run(line)
	res := &Result{Stdout: stdout.String(), Stderr: stderr.String()}

	if runErr == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return res, fmt.Errorf("command %q on %s interrupted: %w", line, c.config.Host, ctx.Err())
	}

	var exitErr *ssh.ExitError
	if errors.As(runErr, &exitErr) {
		res.ExitStatus = exitErr.ExitStatus()
		return res, &ExitError{Host: c.config.Host, Command: line, Status: res.ExitStatus, Stderr: res.Stderr}
	}
	return res, fmt.Errorf("command %q on %s did not complete: %w", line, c.config.Host, runErr)
}

// dial connects with a context-aware TCP dial followed by the SSH handshake.
func (c *Client) dial(ctx context.Context) (*ssh.Client, error) {
	config := &ssh.ClientConfig{
		User:            c.config.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(c.signer)},
		HostKeyCallback: c.config.HostKeyCallback,
		Timeout:         c.config.DialTimeout,
	}

	addr := net.JoinHostPort(c.config.Host, strconv.Itoa(c.config.Port))

	dialCtx, cancel := context.WithTimeout(ctx, c.config.DialTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	if deadline, ok := dialCtx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})

	return ssh.NewClient(sshConn, chans, reqs), nil
}

// keepAlive sends OpenSSH keepalive requests until ctx is done.
func keepAlive(ctx context.Context, client *ssh.Client, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, _, err := client.SendRequest("keepalive@openssh.com", true, nil); err != nil {
				return
			}
		}
	}
}
