package remote

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	// ProbeAttempts bounds the reachability probe.
	ProbeAttempts = 3
	// ProbeBackoffUnit is the base delay; attempt n waits n units.
	ProbeBackoffUnit = 2 * time.Second
)

// Probe calls connect until it succeeds, at most ProbeAttempts times, with a
// linearly increasing delay between attempts (unit, then 2*unit). Success on
// any attempt short-circuits; exhausting the attempts returns the last error.
func Probe(ctx context.Context, unit time.Duration, logger *slog.Logger, connect func(context.Context) error) error {
	attempt := 0
	err := retry.Do(ctx, retry.WithMaxRetries(ProbeAttempts-1, linearBackoff(unit)), func(ctx context.Context) error {
		attempt++
		if logger != nil {
			logger.Info("probing ssh reachability", "attempt", attempt, "max", ProbeAttempts)
		}
		if err := connect(ctx); err != nil {
			if logger != nil {
				logger.Warn("ssh probe failed", "attempt", attempt, "error", err)
			}
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("host unreachable after %d attempts: %w", ProbeAttempts, err)
	}
	return nil
}

// Ping opens a connection, runs a no-op and tears the connection down again.
// It is the probe's connect function against the real host.
func Ping(cfg ClientConfig, logger *slog.Logger) func(context.Context) error {
	return func(ctx context.Context) error {
		client, err := Dial(cfg, logger)
		if err != nil {
			return err
		}
		defer client.Close()
		_, err = client.Run(ctx, "true")
		return err
	}
}

// linearBackoff waits n*unit before retry n.
func linearBackoff(unit time.Duration) retry.Backoff {
	var n int64
	return retry.BackoffFunc(func() (time.Duration, bool) {
		return time.Duration(atomic.AddInt64(&n, 1)) * unit, false
	})
}
