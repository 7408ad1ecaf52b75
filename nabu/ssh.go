package nabu

import (
	"fmt"
	"io"

	"golang.org/x/crypto/ssh"
)

// SSHTransport runs a command on a remote host over SSH and exposes its
// stdin/stdout as the adapter link. It serves setups where the physical
// serial port hangs off another machine: the remote command bridges the
// port to stdio (socat, or a second nabud in bridge mode) and the
// session speaks through the pipes.
type SSHTransport struct {
	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser
	stdout  io.Reader
}

// DialSSH connects to addr (host:port), authenticates, and starts the
// remote bridge command. The returned transport is ready to hand to
// NewSession as both reader and writer.
func DialSSH(addr, user string, auth []ssh.AuthMethod, hostKey ssh.HostKeyCallback, command string) (*SSHTransport, error) {
	if hostKey == nil {
		return nil, fmt.Errorf("ssh: host key callback is required")
	}
	client, err := ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: hostKey,
	})
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", addr, err)
	}

	session, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ssh session: %w", err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		client.Close()
		return nil, err
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		stdin.Close()
		session.Close()
		client.Close()
		return nil, err
	}

	if err := session.Start(command); err != nil {
		stdin.Close()
		session.Close()
		client.Close()
		return nil, fmt.Errorf("ssh start %q: %w", command, err)
	}

	return &SSHTransport{
		client:  client,
		session: session,
		stdin:   stdin,
		stdout:  stdout,
	}, nil
}

func (t *SSHTransport) Read(p []byte) (int, error) {
	return t.stdout.Read(p)
}

func (t *SSHTransport) Write(p []byte) (int, error) {
	return t.stdin.Write(p)
}

// Close tears down the remote command and the connection.
func (t *SSHTransport) Close() error {
	t.stdin.Close()
	t.session.Close()
	return t.client.Close()
}
