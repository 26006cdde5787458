package image

import (
	"context"
	"time"

	"github.com/imamik/amiforge/internal/platform/ssh"
)

// kindSSH labels waits on remote command reachability.
const kindSSH = "ssh"

// Remote runs commands on one host as one user.
type Remote interface {
	Run(ctx context.Context, cmd ssh.Command) (*ssh.Result, error)
	// AsUser returns a Remote on the same host with the same key, logged in as user.
	AsUser(user string) Remote
}

type sshRemote struct {
	*ssh.Client
}

func (r sshRemote) AsUser(user string) Remote {
	return sshRemote{r.Client.AsUser(user)}
}

// Dialer returns a Remote for host and user authenticated with privateKey.
// It must not keep a reference to privateKey after returning.
type Dialer func(host, user string, privateKey []byte) (Remote, error)

// SSHDialer returns a Dialer backed by the SSH client.
func SSHDialer(dialTimeout time.Duration) Dialer {
	return func(host, user string, privateKey []byte) (Remote, error) {
		client, err := ssh.NewClient(&ssh.Config{
			Host:        host,
			User:        user,
			PrivateKey:  privateKey,
			DialTimeout: dialTimeout,
		})
		if err != nil {
			return nil, err
		}
		return sshRemote{client}, nil
	}
}
