package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/Adepetu-Oluwasegun/hng13-stage1-devops/internal/config"
)

// collect fills the configuration from flags, prompting for whatever is
// missing. It performs no validation beyond what prompting needs.
func collect(in *bufio.Reader, out io.Writer) (config.Config, error) {
	cfg := config.Config{
		RepoURL:     flagRepo,
		AccessToken: flagToken,
		Branch:      flagBranch,
		User:        flagUser,
		Host:        flagHost,
		KeyPath:     flagKey,
		AppPort:     flagPort,
		Domain:      flagDomain,
	}

	var err error
	if cfg.RepoURL == "" {
		if cfg.RepoURL, err = promptString(in, out, "Repository URL"); err != nil {
			return cfg, err
		}
	}
	if cfg.AccessToken == "" {
		if cfg.AccessToken, err = promptSecret(in, out, "Access token (empty for public repositories)"); err != nil {
			return cfg, err
		}
	}
	if cfg.Branch == "" {
		if cfg.Branch, err = promptString(in, out, "Branch ["+config.DefaultBranch+"]"); err != nil {
			return cfg, err
		}
	}
	if cfg.User == "" {
		if cfg.User, err = promptString(in, out, "SSH username"); err != nil {
			return cfg, err
		}
	}
	if cfg.Host == "" {
		if cfg.Host, err = promptString(in, out, "Server address"); err != nil {
			return cfg, err
		}
	}
	if cfg.KeyPath == "" {
		if cfg.KeyPath, err = promptString(in, out, "SSH key path"); err != nil {
			return cfg, err
		}
	}
	if cfg.AppPort == "" {
		if cfg.AppPort, err = promptString(in, out, "Application port"); err != nil {
			return cfg, err
		}
	}
	if cfg.Domain == "" {
		if cfg.Domain, err = promptString(in, out, "Domain (empty to use the server's public IP)"); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func promptString(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprintf(out, "%s: ", label)
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// promptSecret reads with echo suppressed when stdin is a terminal and falls
// back to a plain line read otherwise (pipes, tests).
func promptSecret(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprintf(out, "%s: ", label)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read secret: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return strings.TrimSpace(line), nil
}
