// Package deploy runs the deployment as an ordered list of named steps,
// stopping at the first failure.
package deploy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adepetu-Oluwasegun/hng13-stage1-devops/internal/config"
	"github.com/Adepetu-Oluwasegun/hng13-stage1-devops/internal/remote"
)

// Kind classifies a step failure.
type Kind string

const (
	KindInput       Kind = "input"
	KindUnreachable Kind = "unreachable"
	KindGit         Kind = "git"
	KindArtifact    Kind = "artifact"
	KindProvision   Kind = "provision"
	KindDeploy      Kind = "deploy"
	KindProxy       Kind = "proxy"
	KindValidate    Kind = "validate"
)

// StepError reports which step failed and why.
type StepError struct {
	Step string
	Kind Kind
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q failed (%s): %v", e.Step, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Sources synchronizes the local checkout of the application repository.
type Sources interface {
	// Sync clones or updates the checkout and returns its directory.
	Sync(ctx context.Context) (string, error)
	// Verify fails when the checkout lacks the build descriptor.
	Verify() error
}

// Checker probes an HTTP endpoint from the deployer's side.
type Checker interface {
	Check(ctx context.Context, url string) error
}

// Service executes the deployment steps against one remote host.
type Service struct {
	cfg     config.Config
	runner  remote.Runner
	sources Sources
	checker Checker
	logger  *slog.Logger

	domain string
	dir    string
}

// New returns a deployment service. All collaborators are required.
func New(cfg config.Config, runner remote.Runner, sources Sources, checker Checker, logger *slog.Logger) *Service {
	return &Service{
		cfg:     cfg,
		runner:  runner,
		sources: sources,
		checker: checker,
		logger:  logger,
	}
}

// Domain reports the resolved server name once Run has passed the resolve
// step. Empty before that.
func (s *Service) Domain() string { return s.domain }

type step struct {
	name string
	kind Kind
	fn   func(context.Context) error
}

// Run executes every deployment step in order and aborts on the first
// failure, returning it as a *StepError.
func (s *Service) Run(ctx context.Context) error {
	steps := []step{
		{name: "resolve domain", kind: KindInput, fn: s.resolveDomain},
		{name: "sync repository", kind: KindGit, fn: s.syncRepository},
		{name: "verify build descriptor", kind: KindArtifact, fn: s.verifyDescriptor},
		{name: "provision host", kind: KindProvision, fn: s.provisionHost},
		{name: "transfer artifacts", kind: KindDeploy, fn: s.transferArtifacts},
		{name: "rebuild container", kind: KindDeploy, fn: s.rebuildContainer},
		{name: "configure reverse proxy", kind: KindProxy, fn: s.configureProxy},
		{name: "validate reachability", kind: KindValidate, fn: s.validateReachability},
	}
	for _, st := range steps {
		s.logger.Info("step started", "run_id", s.cfg.RunID, "step", st.name)
		if err := st.fn(ctx); err != nil {
			s.logger.Error("step failed", "run_id", s.cfg.RunID, "step", st.name, "error", err)
			return &StepError{Step: st.name, Kind: st.kind, Err: err}
		}
		s.logger.Info("step completed", "run_id", s.cfg.RunID, "step", st.name)
	}
	return nil
}
