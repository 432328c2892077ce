package ssh

import (
	"bytes"
	"fmt"
	"net"
	"time"

	"golang.org/x/crypto/ssh"
)

const dialTimeout = 5 * time.Second

var (
	ErrDial        = fmt.Errorf("failed to establish SSH connection")
	ErrSessionInit = fmt.Errorf("failed to begin SSH session")
	ErrExec        = fmt.Errorf("failed to execute SSH command")
)

// Connect opens an SSH connection to host as user, authenticating with the
// given signer. Host keys are not verified: the instances were provisioned
// moments ago and their host keys are not known in advance.
func Connect(host string, user string, signer ssh.Signer) (*ssh.Client, error) {
	config := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec
		Timeout:         dialTimeout,
	}
	client, err := ssh.Dial("tcp", net.JoinHostPort(host, "22"), config)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDial, err)
	}
	return client, nil
}

// Exec runs a single command over the client, returning stdout and stderr.
func Exec(client *ssh.Client, cmd string) (string, string, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrSessionInit, err)
	}
	defer session.Close()

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	session.Stdout = stdout
	session.Stderr = stderr

	if err := session.Run(cmd); err != nil {
		return stdout.String(), stderr.String(), fmt.Errorf("%w: %w", ErrExec, err)
	}
	return stdout.String(), stderr.String(), nil
}
