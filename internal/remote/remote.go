// Package remote wraps everything the deployer does on the target host: run
// a command over SSH, push a file over SFTP, probe reachability. The Runner
// interface keeps each call site narrow enough to fake in tests.
package remote

import (
	"context"
	"io"
	"net"
	"strings"
)

// Runner executes commands and file transfers against the remote host.
type Runner interface {
	// Run executes command in a shell on the remote host and returns its
	// combined output.
	Run(ctx context.Context, command string) (string, error)
	// Put writes src to remotePath on the remote host. Relative paths are
	// resolved against the remote user's home directory.
	Put(ctx context.Context, src io.Reader, remotePath string) error
	Close() error
}

// publicIPCommand asks well-known echo services for the host's public
// address, trying a second service when the first is unreachable.
const publicIPCommand = "curl -fsS --max-time 10 https://ifconfig.me 2>/dev/null || curl -fsS --max-time 10 https://api.ipify.org"

// PublicIP resolves the remote host's public IP address from the host
// itself. Used as the server name when the operator supplies no domain.
func PublicIP(ctx context.Context, r Runner) (string, error) {
	out, err := r.Run(ctx, publicIPCommand)
	if err != nil {
		return "", err
	}
	ip := strings.TrimSpace(out)
	if net.ParseIP(ip) == nil {
		return "", &net.ParseError{Type: "IP address", Text: ip}
	}
	return ip, nil
}
