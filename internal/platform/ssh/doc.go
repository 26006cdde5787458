// Package ssh provides the remote command channel used to drive freshly
// booted instances.
//
// A [Client] holds one parsed private key and opens a new connection per
// [Client.Run]. Each run reports one of three outcomes: success, a
// [*ConnectError] (the command never started: dial, handshake, or session
// failure), or an [*ExitError] (the command ran and exited non-zero). Callers
// retrying connectivity only retry the first kind.
//
// Commands can be run behind a privilege-escalation prefix such as sudo,
// with a pseudo-terminal for hosts whose sudoers require a tty, and can
// stream an arbitrary io.Reader to the remote process's stdin.
//
// Security: Host key verification is disabled by default because every
// target is a single-use instance whose host key cannot be known in advance.
package ssh
