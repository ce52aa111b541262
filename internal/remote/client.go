package remote

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

const defaultConnectTimeout = 10 * time.Second

// ClientConfig carries what is needed to open an SSH connection.
type ClientConfig struct {
	User    string
	Host    string
	KeyPath string
	// ConnectTimeout bounds connection establishment only; commands run
	// without a deadline beyond their context.
	ConnectTimeout time.Duration
}

// Client is the SSH-backed Runner used against the real target host.
type Client struct {
	ssh    *ssh.Client
	logger *slog.Logger
}

// Dial opens an SSH connection using public-key auth from cfg.KeyPath.
func Dial(cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	if cfg.User == "" || cfg.Host == "" {
		return nil, fmt.Errorf("ssh user and host are required")
	}
	key, err := os.ReadFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("read ssh key %s: %w", cfg.KeyPath, err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("parse ssh key %s: %w", cfg.KeyPath, err)
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	sshCfg := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}
	addr := net.JoinHostPort(cfg.Host, "22")
	conn, err := ssh.Dial("tcp", addr, sshCfg)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{ssh: conn, logger: logger}, nil
}

// Run executes command in a fresh session and returns its combined output.
// Cancelling the context tears the session down.
func (c *Client) Run(ctx context.Context, command string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sess, err := c.ssh.NewSession()
	if err != nil {
		return "", fmt.Errorf("open ssh session: %w", err)
	}
	defer sess.Close()

	if c.logger != nil {
		c.logger.Debug("running remote command", "command", command)
	}

	type result struct {
		out []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := sess.CombinedOutput(command)
		done <- result{out: out, err: err}
	}()

	select {
	case <-ctx.Done():
		sess.Close()
		return "", ctx.Err()
	case r := <-done:
		out := string(r.out)
		if r.err != nil {
			return out, fmt.Errorf("remote command %q: %w: %s", command, r.err, strings.TrimSpace(out))
		}
		return out, nil
	}
}

// Put streams src to remotePath over SFTP, creating parent directories.
func (c *Client) Put(ctx context.Context, src io.Reader, remotePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	client, err := sftp.NewClient(c.ssh)
	if err != nil {
		return fmt.Errorf("open sftp session: %w", err)
	}
	defer client.Close()

	if dir := path.Dir(remotePath); dir != "." && dir != "/" {
		if err := client.MkdirAll(dir); err != nil {
			return fmt.Errorf("create remote directory %s: %w", dir, err)
		}
	}
	f, err := client.Create(remotePath)
	if err != nil {
		return fmt.Errorf("create remote file %s: %w", remotePath, err)
	}
	defer f.Close()
	if _, err := f.ReadFrom(src); err != nil {
		return fmt.Errorf("write remote file %s: %w", remotePath, err)
	}
	return nil
}

// Close terminates the SSH connection.
func (c *Client) Close() error {
	if c.ssh == nil {
		return nil
	}
	return c.ssh.Close()
}
