// Package httpcheck probes an HTTP endpoint from the deployer's own side of
// the network, confirming the application is reachable end to end.
package httpcheck

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const defaultTimeout = 15 * time.Second

// Checker performs HTTP reachability checks.
type Checker struct {
	client *http.Client
}

// New returns a Checker whose requests are bounded by timeout.
func New(timeout time.Duration) Checker {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return Checker{client: &http.Client{Timeout: timeout}}
}

// Check issues a GET against url and succeeds on any 2xx or 3xx response.
func (c Checker) Check(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", url, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("reach %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("reach %s: unexpected status %s", url, resp.Status)
	}
	return nil
}
