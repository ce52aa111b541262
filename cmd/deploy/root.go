package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adepetu-Oluwasegun/hng13-stage1-devops/internal/config"
	"github.com/Adepetu-Oluwasegun/hng13-stage1-devops/internal/deploy"
	"github.com/Adepetu-Oluwasegun/hng13-stage1-devops/internal/gitsync"
	"github.com/Adepetu-Oluwasegun/hng13-stage1-devops/internal/httpcheck"
	"github.com/Adepetu-Oluwasegun/hng13-stage1-devops/internal/logging"
	"github.com/Adepetu-Oluwasegun/hng13-stage1-devops/internal/remote"
)

var (
	flagRepo      string
	flagToken     string
	flagBranch    string
	flagUser      string
	flagHost      string
	flagKey       string
	flagPort      string
	flagDomain    string
	flagWorkdir   string
	flagLogDir    string
	flagCleanup   bool
	flagSkipProbe bool
)

var rootCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy a containerized web application to a remote server",
	Long: `deploy clones a Git repository, provisions Docker and Nginx on a remote
host over SSH, builds and runs the application container, writes the
reverse-proxy configuration and validates that the application responds.

Every parameter can be supplied as a flag; missing ones are collected
interactively.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&flagRepo, "repo", "", "Git repository URL")
	rootCmd.Flags().StringVar(&flagToken, "token", "", "access token for private repositories")
	rootCmd.Flags().StringVar(&flagBranch, "branch", "", "branch to deploy (default "+config.DefaultBranch+")")
	rootCmd.Flags().StringVar(&flagUser, "user", "", "SSH username on the remote host")
	rootCmd.Flags().StringVar(&flagHost, "host", "", "remote host address")
	rootCmd.Flags().StringVar(&flagKey, "key", "", "path to the SSH private key")
	rootCmd.Flags().StringVar(&flagPort, "port", "", "application port inside the container")
	rootCmd.Flags().StringVar(&flagDomain, "domain", "", "domain name (defaults to the host's public IP)")
	rootCmd.Flags().StringVar(&flagWorkdir, "workdir", "", "directory for local checkouts (default ~/.hng13-deploy)")
	rootCmd.Flags().StringVar(&flagLogDir, "log-dir", "logs", "directory for run log files")
	rootCmd.Flags().BoolVar(&flagCleanup, "cleanup", false, "tear the deployment down after the run")
	rootCmd.Flags().BoolVar(&flagSkipProbe, "skip-probe", false, "skip the SSH reachability probe")
}

func run(cmd *cobra.Command, args []string) error {
	logger, logFile, err := logging.New(flagLogDir, slog.LevelInfo)
	if err != nil {
		return err
	}
	defer logFile.Close()

	success := false
	defer func() {
		if !success {
			logger.Error("unexpected exit: deployment did not complete")
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := collect(bufio.NewReader(cmd.InOrStdin()), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger.Info("starting deployment", "run_id", cfg.RunID, "repo", cfg.RepoURL, "branch", cfg.Branch, "host", cfg.Host)

	clientCfg := remote.ClientConfig{User: cfg.User, Host: cfg.Host, KeyPath: cfg.KeyPath}
	if !flagSkipProbe {
		if err := remote.Probe(ctx, remote.ProbeBackoffUnit, logger, remote.Ping(clientCfg, logger)); err != nil {
			return &deploy.StepError{Step: "probe reachability", Kind: deploy.KindUnreachable, Err: err}
		}
	}

	runner, err := remote.Dial(clientCfg, logger)
	if err != nil {
		return &deploy.StepError{Step: "connect", Kind: deploy.KindUnreachable, Err: err}
	}
	defer runner.Close()

	workdir := flagWorkdir
	if workdir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home directory: %w", err)
		}
		workdir = filepath.Join(home, ".hng13-deploy")
	}
	sources := gitsync.Checkout{
		Dir:     filepath.Join(workdir, cfg.AppName()),
		RepoURL: cfg.RepoURL,
		Branch:  cfg.Branch,
		Token:   cfg.AccessToken,
		Logger:  logger,
	}

	svc := deploy.New(cfg, runner, sources, httpcheck.New(15*time.Second), logger)
	if err := svc.Run(ctx); err != nil {
		return err
	}
	logger.Info("deployment succeeded", "run_id", cfg.RunID, "url", "http://"+svc.Domain())
	fmt.Fprintf(cmd.OutOrStdout(), "Application deployed successfully: reachable at http://%s\n", svc.Domain())

	if flagCleanup {
		logger.Info("cleanup requested, tearing deployment down", "run_id", cfg.RunID)
		if err := svc.Cleanup(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Deployment cleaned up")
	}

	success = true
	return nil
}
