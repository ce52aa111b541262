// Package gitsync keeps a local checkout of the application repository in
// sync with the requested branch: clone on first use, update in place after.
package gitsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// Dockerfile is the build descriptor every deployable repository must carry.
const Dockerfile = "Dockerfile"

const remoteName = "origin"

// Checkout describes one local working copy of the application repository.
type Checkout struct {
	Dir     string
	RepoURL string
	Branch  string
	Token   string
	Logger  *slog.Logger
}

// Sync clones the branch when the checkout is absent, otherwise fetches and
// hard-resets the worktree to the remote branch head. It returns the checkout
// directory.
func (c Checkout) Sync(ctx context.Context) (string, error) {
	if c.Dir == "" {
		return "", fmt.Errorf("checkout directory cannot be empty")
	}
	if c.RepoURL == "" {
		return "", fmt.Errorf("repository URL cannot be empty")
	}
	if c.Branch == "" {
		return "", fmt.Errorf("branch cannot be empty")
	}

	if _, err := os.Stat(filepath.Join(c.Dir, git.GitDirName)); err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("stat checkout: %w", err)
		}
		return c.Dir, c.clone(ctx)
	}
	return c.Dir, c.update(ctx)
}

// Verify fails when the build descriptor is missing from the checkout.
func (c Checkout) Verify() error {
	info, err := os.Stat(filepath.Join(c.Dir, Dockerfile))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s not found in %s", Dockerfile, c.Dir)
		}
		return fmt.Errorf("stat %s: %w", Dockerfile, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s in %s is a directory", Dockerfile, c.Dir)
	}
	return nil
}

func (c Checkout) clone(ctx context.Context) error {
	if c.Logger != nil {
		c.Logger.Info("cloning repository", "url", c.RepoURL, "branch", c.Branch, "dir", c.Dir)
	}
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("create checkout directory: %w", err)
	}
	_, err := git.PlainCloneContext(ctx, c.Dir, false, &git.CloneOptions{
		URL:           c.RepoURL,
		ReferenceName: plumbing.NewBranchReferenceName(c.Branch),
		SingleBranch:  true,
		Auth:          c.auth(),
	})
	if err != nil {
		return fmt.Errorf("clone %s (branch %s): %w", c.RepoURL, c.Branch, err)
	}
	return nil
}

func (c Checkout) update(ctx context.Context) error {
	if c.Logger != nil {
		c.Logger.Info("updating repository in place", "branch", c.Branch, "dir", c.Dir)
	}
	repo, err := git.PlainOpen(c.Dir)
	if err != nil {
		return fmt.Errorf("open checkout: %w", err)
	}

	spec := gitconfig.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/remotes/%s/%s", c.Branch, remoteName, c.Branch))
	err = repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: remoteName,
		RefSpecs:   []gitconfig.RefSpec{spec},
		Auth:       c.auth(),
		Force:      true,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("fetch branch %s: %w", c.Branch, err)
	}

	remoteRef, err := repo.Reference(plumbing.NewRemoteReferenceName(remoteName, c.Branch), true)
	if err != nil {
		return fmt.Errorf("resolve %s/%s: %w", remoteName, c.Branch, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	local := plumbing.NewBranchReferenceName(c.Branch)
	if err := wt.Checkout(&git.CheckoutOptions{Branch: local, Force: true}); err != nil {
		// The branch may not exist locally yet when it was created after
		// the initial single-branch clone.
		err = wt.Checkout(&git.CheckoutOptions{
			Branch: local,
			Hash:   remoteRef.Hash(),
			Create: true,
			Force:  true,
		})
		if err != nil {
			return fmt.Errorf("checkout branch %s: %w", c.Branch, err)
		}
	}
	if err := wt.Reset(&git.ResetOptions{Mode: git.HardReset, Commit: remoteRef.Hash()}); err != nil {
		return fmt.Errorf("reset to %s: %w", remoteRef.Hash(), err)
	}
	return nil
}

// auth supplies the access token for http(s) remotes. Token auth is basic
// auth with any non-empty username as far as the hosting providers care.
func (c Checkout) auth() transport.AuthMethod {
	if c.Token == "" || !strings.HasPrefix(c.RepoURL, "http") {
		return nil
	}
	return &githttp.BasicAuth{Username: "git", Password: c.Token}
}
