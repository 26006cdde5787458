package ssh

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/amiforge/internal/util/keygen"
)

// generateTestKey generates a test RSA key pair for use in tests.
func generateTestKey(t *testing.T) *keygen.KeyPair {
	t.Helper()
	keyPair, err := keygen.GenerateRSAKeyPair(2048)
	require.NoError(t, err)
	return keyPair
}

func newTestClient(t *testing.T, key *keygen.KeyPair, srv *testServer, user string) *Client {
	t.Helper()
	client, err := NewClient(&Config{
		Host:        "127.0.0.1",
		Port:        srv.port(),
		User:        user,
		PrivateKey:  key.PrivateKey,
		DialTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	return client
}

func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()

	key := generateTestKey(t)
	client, err := NewClient(&Config{Host: "203.0.113.10", User: "ec2-user", PrivateKey: key.PrivateKey})
	require.NoError(t, err)

	assert.Equal(t, defaultPort, client.config.Port)
	assert.Equal(t, defaultDialTimeout, client.config.DialTimeout)
	assert.Equal(t, defaultKeepAlive, client.config.KeepAlive)
	assert.NotNil(t, client.config.HostKeyCallback)
	assert.Nil(t, client.config.PrivateKey, "raw key bytes are not retained")
}

func TestNewClient_Validation(t *testing.T) {
	t.Parallel()

	key := generateTestKey(t)
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"missing host", &Config{User: "root", PrivateKey: key.PrivateKey}},
		{"missing user", &Config{Host: "h", PrivateKey: key.PrivateKey}},
		{"missing key", &Config{Host: "h", User: "root"}},
		{"invalid key", &Config{Host: "h", User: "root", PrivateKey: []byte("invalid key")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewClient(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestCommand_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "sync", Command{Line: "sync"}.String())
	assert.Equal(t, "sudo mkdir /root/.ssh", Command{Line: "mkdir /root/.ssh", Prefix: "sudo"}.String())
}

func TestRun_Success(t *testing.T) {
	t.Parallel()

	key := generateTestKey(t)
	srv := newTestServer(t, key, func(req execRequest) (string, string, uint32) {
		return "uid=0(root) gid=0(root)\n", "", 0
	})
	client := newTestClient(t, key, srv, "root")

	res, err := client.Run(context.Background(), Command{Line: "/bin/id"})
	require.NoError(t, err)
	assert.Equal(t, "uid=0(root) gid=0(root)\n", res.Stdout)
	assert.Zero(t, res.ExitStatus)

	reqs := srv.observed()
	require.Len(t, reqs, 1)
	assert.Equal(t, "root", reqs[0].User)
	assert.Equal(t, "/bin/id", reqs[0].Command)
	assert.False(t, reqs[0].PTY)
}

func TestRun_PrefixAndPTY(t *testing.T) {
	t.Parallel()

	key := generateTestKey(t)
	srv := newTestServer(t, key, func(execRequest) (string, string, uint32) { return "", "", 0 })
	client := newTestClient(t, key, srv, "ec2-user")

	_, err := client.Run(context.Background(), Command{Line: "chmod 600 /root/.ssh", Prefix: "sudo", PTY: true})
	require.NoError(t, err)

	reqs := srv.observed()
	require.Len(t, reqs, 1)
	assert.Equal(t, "sudo chmod 600 /root/.ssh", reqs[0].Command)
	assert.True(t, reqs[0].PTY)
}

func TestRun_NonZeroExit(t *testing.T) {
	t.Parallel()

	key := generateTestKey(t)
	srv := newTestServer(t, key, func(execRequest) (string, string, uint32) {
		return "", "mkdir: cannot create directory '/root/.ssh': File exists\n", 1
	})
	client := newTestClient(t, key, srv, "root")

	res, err := client.Run(context.Background(), Command{Line: "mkdir /root/.ssh"})
	require.Error(t, err)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 1, exitErr.Status)
	assert.Contains(t, exitErr.Stderr, "File exists")
	assert.False(t, IsConnectError(err))

	require.NotNil(t, res, "the result is returned alongside the exit error")
	assert.Equal(t, 1, res.ExitStatus)
}

func TestRun_StreamsStdin(t *testing.T) {
	t.Parallel()

	key := generateTestKey(t)
	srv := newTestServer(t, key, func(req execRequest) (string, string, uint32) {
		return "", "", 0
	})
	srv.readStdin = true
	client := newTestClient(t, key, srv, "root")

	payload := bytes.Repeat([]byte("disk"), 64*1024)
	_, err := client.Run(context.Background(), Command{Line: "gzip -d -c | dd of=/dev/xvdh bs=4k", Stdin: bytes.NewReader(payload)})
	require.NoError(t, err)

	reqs := srv.observed()
	require.Len(t, reqs, 1)
	assert.Equal(t, payload, reqs[0].Stdin)
}

func TestRun_ConnectError(t *testing.T) {
	t.Parallel()

	// Reserve a port and close it so nothing is listening.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	key := generateTestKey(t)
	client, err := NewClient(&Config{Host: "127.0.0.1", Port: port, User: "root", PrivateKey: key.PrivateKey, DialTimeout: time.Second})
	require.NoError(t, err)

	_, err = client.Run(context.Background(), Command{Line: "/bin/true"})
	require.Error(t, err)
	assert.True(t, IsConnectError(err))
	assert.True(t, strings.HasPrefix(err.Error(), "could not connect to 127.0.0.1"))
}

func TestRun_WrongKeyIsConnectError(t *testing.T) {
	t.Parallel()

	trusted := generateTestKey(t)
	srv := newTestServer(t, trusted, func(execRequest) (string, string, uint32) { return "", "", 0 })
	client := newTestClient(t, generateTestKey(t), srv, "root")

	_, err := client.Run(context.Background(), Command{Line: "/bin/true"})
	assert.True(t, IsConnectError(err))
	assert.Empty(t, srv.observed())
}

func TestAsUser(t *testing.T) {
	t.Parallel()

	key := generateTestKey(t)
	srv := newTestServer(t, key, func(execRequest) (string, string, uint32) { return "", "", 0 })
	base := newTestClient(t, key, srv, "ec2-user")

	root := base.AsUser("root")
	assert.Equal(t, "root", root.User())
	assert.Equal(t, "ec2-user", base.User())
	assert.Equal(t, "127.0.0.1", root.Host())

	_, err := root.Run(context.Background(), Command{Line: "/bin/true"})
	require.NoError(t, err)
	assert.Equal(t, "root", srv.observed()[0].User)
}
