package deploy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Adepetu-Oluwasegun/hng13-stage1-devops/internal/config"
)

type fakeRunner struct {
	cmds     []string
	puts     []string
	publicIP string
	failOn   string
}

func (f *fakeRunner) Run(ctx context.Context, command string) (string, error) {
	f.cmds = append(f.cmds, command)
	if f.failOn != "" && strings.Contains(command, f.failOn) {
		return "", errors.New("remote command failed")
	}
	if strings.Contains(command, "ifconfig.me") {
		if f.publicIP == "" {
			return "", errors.New("lookup failed")
		}
		return f.publicIP + "\n", nil
	}
	return "", nil
}

func (f *fakeRunner) Put(ctx context.Context, src io.Reader, remotePath string) error {
	if _, err := io.Copy(io.Discard, src); err != nil {
		return err
	}
	f.puts = append(f.puts, remotePath)
	return nil
}

func (f *fakeRunner) Close() error { return nil }

func (f *fakeRunner) ran(substr string) bool {
	for _, cmd := range f.cmds {
		if strings.Contains(cmd, substr) {
			return true
		}
	}
	return false
}

type fakeSources struct {
	dir       string
	syncErr   error
	verifyErr error
	synced    bool
}

func (f *fakeSources) Sync(ctx context.Context) (string, error) {
	f.synced = true
	return f.dir, f.syncErr
}

func (f *fakeSources) Verify() error { return f.verifyErr }

type fakeChecker struct {
	urls []string
	err  error
}

func (f *fakeChecker) Check(ctx context.Context, url string) error {
	f.urls = append(f.urls, url)
	return f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func checkoutDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM scratch\n"), 0o644); err != nil {
		t.Fatalf("write Dockerfile: %v", err)
	}
	return dir
}

func testConfig() config.Config {
	return config.Config{
		RunID:   "test-run",
		RepoURL: "https://example.com/org/app.git",
		Branch:  "main",
		User:    "deployer",
		Host:    "203.0.113.5",
		AppPort: "8080",
	}
}

func TestRunExecutesStepsInOrder(t *testing.T) {
	runner := &fakeRunner{publicIP: "203.0.113.7"}
	checker := &fakeChecker{}
	svc := New(testConfig(), runner, &fakeSources{dir: checkoutDir(t)}, checker, discardLogger())

	if err := svc.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if svc.Domain() != "203.0.113.7" {
		t.Fatalf("expected resolved domain 203.0.113.7, got %q", svc.Domain())
	}

	order := []string{"ifconfig.me", "apt-get update", "docker build", "docker run", "nginx -t", "systemctl reload nginx", "curl -fsS --max-time 10 http://127.0.0.1:8080"}
	last := -1
	for _, marker := range order {
		found := -1
		for i, cmd := range runner.cmds {
			if strings.Contains(cmd, marker) {
				found = i
				break
			}
		}
		if found < 0 {
			t.Fatalf("command containing %q never ran:\n%s", marker, strings.Join(runner.cmds, "\n"))
		}
		if found < last {
			t.Fatalf("command %q ran out of order", marker)
		}
		last = found
	}

	if len(checker.urls) != 1 || checker.urls[0] != "http://203.0.113.7/" {
		t.Fatalf("unexpected external checks: %v", checker.urls)
	}
	if len(runner.puts) != 2 {
		t.Fatalf("expected source archive and nginx config uploads, got %v", runner.puts)
	}
}

func TestRunKeepsOperatorDomain(t *testing.T) {
	cfg := testConfig()
	cfg.Domain = "shop.example.com"
	runner := &fakeRunner{}
	svc := New(cfg, runner, &fakeSources{dir: checkoutDir(t)}, &fakeChecker{}, discardLogger())

	if err := svc.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if svc.Domain() != "shop.example.com" {
		t.Fatalf("expected operator domain, got %q", svc.Domain())
	}
	if runner.ran("ifconfig.me") {
		t.Fatalf("public IP lookup should be skipped when a domain is supplied")
	}
}

func TestRunFallsBackToHostAddress(t *testing.T) {
	runner := &fakeRunner{} // publicIP empty: lookup fails
	svc := New(testConfig(), runner, &fakeSources{dir: checkoutDir(t)}, &fakeChecker{}, discardLogger())

	if err := svc.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if svc.Domain() != "203.0.113.5" {
		t.Fatalf("expected host address fallback, got %q", svc.Domain())
	}
}

func TestRunAbortsOnSyncFailure(t *testing.T) {
	runner := &fakeRunner{publicIP: "203.0.113.7"}
	sources := &fakeSources{syncErr: errors.New("clone failed")}
	svc := New(testConfig(), runner, sources, &fakeChecker{}, discardLogger())

	err := svc.Run(context.Background())
	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("expected StepError, got %v", err)
	}
	if stepErr.Kind != KindGit {
		t.Fatalf("expected git failure kind, got %s", stepErr.Kind)
	}
	if runner.ran("apt-get") {
		t.Fatalf("provisioning must not run after a sync failure")
	}
}

func TestRunAbortsBeforeProvisionWhenDescriptorMissing(t *testing.T) {
	runner := &fakeRunner{publicIP: "203.0.113.7"}
	sources := &fakeSources{dir: t.TempDir(), verifyErr: errors.New("Dockerfile not found")}
	svc := New(testConfig(), runner, sources, &fakeChecker{}, discardLogger())

	err := svc.Run(context.Background())
	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("expected StepError, got %v", err)
	}
	if stepErr.Kind != KindArtifact {
		t.Fatalf("expected artifact failure kind, got %s", stepErr.Kind)
	}
	if runner.ran("apt-get") || runner.ran("docker") {
		t.Fatalf("no remote provisioning may run when the build descriptor is missing")
	}
}

func TestRunReportsValidationFailure(t *testing.T) {
	runner := &fakeRunner{publicIP: "203.0.113.7"}
	checker := &fakeChecker{err: errors.New("connection refused")}
	svc := New(testConfig(), runner, &fakeSources{dir: checkoutDir(t)}, checker, discardLogger())

	err := svc.Run(context.Background())
	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("expected StepError, got %v", err)
	}
	if stepErr.Kind != KindValidate {
		t.Fatalf("expected validate failure kind, got %s", stepErr.Kind)
	}
}

func TestRunStopsOnRemoteCommandFailure(t *testing.T) {
	runner := &fakeRunner{publicIP: "203.0.113.7", failOn: "docker build"}
	svc := New(testConfig(), runner, &fakeSources{dir: checkoutDir(t)}, &fakeChecker{}, discardLogger())

	err := svc.Run(context.Background())
	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("expected StepError, got %v", err)
	}
	if stepErr.Kind != KindDeploy {
		t.Fatalf("expected deploy failure kind, got %s", stepErr.Kind)
	}
	if runner.ran("docker run") {
		t.Fatalf("container must not start after a failed build")
	}
}

func TestCleanupRemovesArtifactsAndReloadsProxy(t *testing.T) {
	runner := &fakeRunner{}
	svc := New(testConfig(), runner, &fakeSources{}, &fakeChecker{}, discardLogger())

	if err := svc.Cleanup(context.Background()); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	for _, want := range []string{
		"docker rm -f app",
		"rm -rf ~/apps/app",
		"rm -f /etc/nginx/sites-enabled/app.conf /etc/nginx/sites-available/app.conf",
		"systemctl reload nginx",
	} {
		if !runner.ran(want) {
			t.Fatalf("cleanup never ran command containing %q:\n%s", want, strings.Join(runner.cmds, "\n"))
		}
	}
	if runner.ran("systemctl stop nginx") {
		t.Fatalf("cleanup must reload nginx, not stop it")
	}
}
