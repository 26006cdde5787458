package ssh

import (
	"fmt"
	"io"
	"net"
	"sync"
	"testing"

	"golang.org/x/crypto/ssh"

	"github.com/imamik/amiforge/internal/util/keygen"
)

// execRequest is one command observed by the test server.
type execRequest struct {
	User    string
	Command string
	PTY     bool
	Stdin   []byte
}

// commandHandler returns stdout, stderr and the exit status for a command.
type commandHandler func(req execRequest) (stdout, stderr string, status uint32)

// testServer is an in-process SSH server that accepts a single client key.
type testServer struct {
	listener net.Listener
	config   *ssh.ServerConfig
	handler  commandHandler
	// readStdin makes the server drain stdin before running the handler.
	readStdin bool

	mu       sync.Mutex
	requests []execRequest
}

func newTestServer(t *testing.T, clientKey *keygen.KeyPair, handler commandHandler) *testServer {
	t.Helper()

	hostKey, err := keygen.GenerateRSAKeyPair(2048)
	if err != nil {
		t.Fatalf("failed to generate host key: %v", err)
	}
	hostSigner, err := ssh.ParsePrivateKey(hostKey.PrivateKey)
	if err != nil {
		t.Fatalf("failed to parse host key: %v", err)
	}
	authorized, _, _, _, err := ssh.ParseAuthorizedKey(clientKey.PublicKey)
	if err != nil {
		t.Fatalf("failed to parse client key: %v", err)
	}

	cfg := &ssh.ServerConfig{
		PublicKeyCallback: func(meta ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if string(key.Marshal()) == string(authorized.Marshal()) {
				return &ssh.Permissions{}, nil
			}
			return nil, fmt.Errorf("unknown key for %s", meta.User())
		},
	}
	cfg.AddHostKey(hostSigner)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	s := &testServer{listener: l, config: cfg, handler: handler}
	go s.serve()
	t.Cleanup(func() { _ = l.Close() })
	return s
}

func (s *testServer) port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

func (s *testServer) observed() []execRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]execRequest(nil), s.requests...)
}

func (s *testServer) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *testServer) handleConn(conn net.Conn) {
	sconn, chans, reqs, err := ssh.NewServerConn(conn, s.config)
	if err != nil {
		_ = conn.Close()
		return
	}
	defer func() { _ = sconn.Close() }()
	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			_ = newCh.Reject(ssh.UnknownChannelType, "session only")
			continue
		}
		ch, chReqs, err := newCh.Accept()
		if err != nil {
			return
		}
		go s.handleSession(sconn.User(), ch, chReqs)
	}
}

func (s *testServer) handleSession(user string, ch ssh.Channel, reqs <-chan *ssh.Request) {
	defer func() { _ = ch.Close() }()

	req := execRequest{User: user}
	for r := range reqs {
		switch r.Type {
		case "pty-req":
			req.PTY = true
			_ = r.Reply(true, nil)
		case "exec":
			var payload struct{ Command string }
			if err := ssh.Unmarshal(r.Payload, &payload); err != nil {
				_ = r.Reply(false, nil)
				return
			}
			req.Command = payload.Command
			_ = r.Reply(true, nil)

			if s.readStdin {
				req.Stdin, _ = io.ReadAll(ch)
			}

			s.mu.Lock()
			s.requests = append(s.requests, req)
			s.mu.Unlock()

			stdout, stderr, status := s.handler(req)
			_, _ = io.WriteString(ch, stdout)
			_, _ = io.WriteString(ch.Stderr(), stderr)
			_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{status}))
			return
		default:
			if r.WantReply {
				_ = r.Reply(false, nil)
			}
		}
	}
}
