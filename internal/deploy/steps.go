package deploy

import (
	"context"
	"fmt"
	"strings"

	"github.com/docker/docker/pkg/archive"

	"github.com/Adepetu-Oluwasegun/hng13-stage1-devops/internal/nginx"
	"github.com/Adepetu-Oluwasegun/hng13-stage1-devops/internal/remote"
)

// remoteAppDir is home-relative: SFTP resolves it against the user's home,
// shell commands reach it through ~.
func remoteAppDir(app string) string { return "apps/" + app }

const sourceArchive = "source.tar.gz"

// resolveDomain settles the server name: operator-supplied domain, else the
// host's public IP, else the host address itself.
func (s *Service) resolveDomain(ctx context.Context) error {
	if s.cfg.Domain != "" {
		s.domain = s.cfg.Domain
		return nil
	}
	ip, err := remote.PublicIP(ctx, s.runner)
	if err != nil {
		s.logger.Warn("public IP lookup failed, using host address", "host", s.cfg.Host, "error", err)
		s.domain = s.cfg.Host
		return nil
	}
	s.domain = ip
	return nil
}

func (s *Service) syncRepository(ctx context.Context) error {
	dir, err := s.sources.Sync(ctx)
	if err != nil {
		return err
	}
	s.dir = dir
	return nil
}

func (s *Service) verifyDescriptor(context.Context) error {
	return s.sources.Verify()
}

// provisionHost installs and enables docker and nginx. Every command is safe
// to re-run on an already provisioned host.
func (s *Service) provisionHost(ctx context.Context) error {
	cmds := []string{
		"sudo apt-get update -y",
		"command -v docker >/dev/null 2>&1 || sudo apt-get install -y docker.io",
		"command -v nginx >/dev/null 2>&1 || sudo apt-get install -y nginx",
		"command -v curl >/dev/null 2>&1 || sudo apt-get install -y curl",
		"sudo systemctl enable --now docker",
		"sudo systemctl enable --now nginx",
		fmt.Sprintf("sudo usermod -aG docker %s", s.cfg.User),
	}
	for _, cmd := range cmds {
		if _, err := s.runner.Run(ctx, cmd); err != nil {
			return err
		}
	}
	return nil
}

// transferArtifacts tars the checkout, uploads it and unpacks it under the
// remote application directory.
func (s *Service) transferArtifacts(ctx context.Context) error {
	app := s.cfg.AppName()
	dir := remoteAppDir(app)

	if _, err := s.runner.Run(ctx, fmt.Sprintf("rm -rf ~/%s && mkdir -p ~/%s", dir, dir)); err != nil {
		return err
	}

	tarball, err := archive.TarWithOptions(s.dir, &archive.TarOptions{
		Compression:     archive.Gzip,
		ExcludePatterns: []string{".git"},
	})
	if err != nil {
		return fmt.Errorf("archive checkout %s: %w", s.dir, err)
	}
	defer tarball.Close()

	remotePath := dir + "/" + sourceArchive
	if err := s.runner.Put(ctx, tarball, remotePath); err != nil {
		return err
	}

	unpack := fmt.Sprintf("tar -xzf ~/%s -C ~/%s && rm -f ~/%s", remotePath, dir, remotePath)
	if _, err := s.runner.Run(ctx, unpack); err != nil {
		return err
	}
	return nil
}

// rebuildContainer replaces the running container under the fixed name with
// a freshly built image.
func (s *Service) rebuildContainer(ctx context.Context) error {
	app := s.cfg.AppName()
	port := s.cfg.AppPort
	cmds := []string{
		fmt.Sprintf("sudo docker rm -f %s >/dev/null 2>&1 || true", app),
		fmt.Sprintf("sudo docker build -t %s:latest ~/%s", app, remoteAppDir(app)),
		fmt.Sprintf("sudo docker run -d --name %s --restart unless-stopped -p %s:%s %s:latest", app, port, port, app),
	}
	for _, cmd := range cmds {
		if _, err := s.runner.Run(ctx, cmd); err != nil {
			return err
		}
	}
	return nil
}

// configureProxy overwrites the site config, validates it and reloads nginx.
func (s *Service) configureProxy(ctx context.Context) error {
	app := s.cfg.AppName()
	conf, err := nginx.Render(s.domain, s.cfg.AppPort)
	if err != nil {
		return err
	}

	staged := remoteAppDir(app) + "/nginx.conf"
	if err := s.runner.Put(ctx, strings.NewReader(conf), staged); err != nil {
		return err
	}

	cmds := []string{
		fmt.Sprintf("sudo mv ~/%s %s", staged, nginx.AvailablePath(app)),
		fmt.Sprintf("sudo ln -sf %s %s", nginx.AvailablePath(app), nginx.EnabledPath(app)),
		"sudo rm -f /etc/nginx/sites-enabled/default",
		nginx.TestCommand,
		nginx.ReloadCommand,
	}
	for _, cmd := range cmds {
		if _, err := s.runner.Run(ctx, cmd); err != nil {
			return err
		}
	}
	return nil
}

// validateReachability checks the application from the remote host itself,
// then from the deployer's side through the proxy.
func (s *Service) validateReachability(ctx context.Context) error {
	internal := fmt.Sprintf("curl -fsS --max-time 10 http://127.0.0.1:%s/ >/dev/null", s.cfg.AppPort)
	if _, err := s.runner.Run(ctx, internal); err != nil {
		return fmt.Errorf("internal check: %w", err)
	}
	if err := s.checker.Check(ctx, "http://"+s.domain+"/"); err != nil {
		return fmt.Errorf("external check: %w", err)
	}
	return nil
}

// Cleanup removes the container, the application directory and the proxy
// config, then reloads nginx so the service keeps running without the site.
func (s *Service) Cleanup(ctx context.Context) error {
	app := s.cfg.AppName()
	cmds := []string{
		fmt.Sprintf("sudo docker rm -f %s >/dev/null 2>&1 || true", app),
		fmt.Sprintf("rm -rf ~/%s", remoteAppDir(app)),
		fmt.Sprintf("sudo rm -f %s %s", nginx.EnabledPath(app), nginx.AvailablePath(app)),
		nginx.TestCommand,
		nginx.ReloadCommand,
	}
	for _, cmd := range cmds {
		s.logger.Info("cleanup", "run_id", s.cfg.RunID, "command", cmd)
		if _, err := s.runner.Run(ctx, cmd); err != nil {
			return fmt.Errorf("cleanup: %w", err)
		}
	}
	return nil
}
