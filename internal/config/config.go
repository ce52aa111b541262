package config

import (
	"fmt"
	"path"
	"strings"

	"github.com/docker/go-connections/nat"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// DefaultBranch is used when the operator leaves the branch prompt empty.
const DefaultBranch = "main"

// Config holds every operator-supplied value for a single deployment run. It
// lives only in process memory and is never persisted.
type Config struct {
	// RunID identifies this run in log lines and remote artifact names.
	RunID string

	RepoURL     string `validate:"required,url"`
	AccessToken string
	Branch      string `validate:"required"`
	User        string `validate:"required"`
	Host        string `validate:"required"`
	KeyPath     string `validate:"required,file"`
	AppPort     string `validate:"required"`

	// Domain is optional; when empty the deployer resolves the remote
	// host's public IP and falls back to Host.
	Domain string
}

var validate = validator.New()

// Normalize trims whitespace from every field and applies defaults.
func (c *Config) Normalize() {
	c.RepoURL = strings.TrimSpace(c.RepoURL)
	c.AccessToken = strings.TrimSpace(c.AccessToken)
	c.Branch = strings.TrimSpace(c.Branch)
	c.User = strings.TrimSpace(c.User)
	c.Host = strings.TrimSpace(c.Host)
	c.KeyPath = strings.TrimSpace(c.KeyPath)
	c.AppPort = strings.TrimSpace(c.AppPort)
	c.Domain = strings.TrimSpace(c.Domain)

	if c.Branch == "" {
		c.Branch = DefaultBranch
	}
	if c.RunID == "" {
		c.RunID = uuid.New().String()
	}
}

// Validate rejects the record before any remote action is attempted.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			e := errs[0]
			return fmt.Errorf("invalid %s: failed %q check", strings.ToLower(e.Field()), e.Tag())
		}
		return err
	}
	if _, err := nat.NewPort("tcp", c.AppPort); err != nil {
		return fmt.Errorf("invalid application port %q: %w", c.AppPort, err)
	}
	return nil
}

// AppName derives the container, image and directory name from the
// repository URL. All runs against the same repository reuse it.
func (c Config) AppName() string {
	base := strings.TrimSuffix(path.Base(strings.TrimRight(c.RepoURL, "/")), ".git")
	base = strings.ToLower(base)
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	name := strings.Trim(b.String(), "-.")
	if name == "" {
		return "app"
	}
	return name
}
