package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/dyluth/frontdesk/pkg/helpdesk"
)

// DefaultPollInterval is how often PollForResolution re-reads the request.
const DefaultPollInterval = 200 * time.Millisecond

// RequestGetter reads a single help request.
type RequestGetter interface {
	GetRequest(ctx context.Context, requestID string) (*helpdesk.HelpRequest, error)
}

// PollForResolution polls a help request until it reaches a terminal status.
// Returns the closed request, or an error on timeout, context cancellation,
// or a failed read. A missing request is an error, not something to wait for.
func PollForResolution(ctx context.Context, store RequestGetter, requestID string, interval, timeout time.Duration) (*helpdesk.HelpRequest, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	timeoutCh := time.After(timeout)

	for {
		r, err := store.GetRequest(ctx, requestID)
		if err != nil {
			return nil, fmt.Errorf("failed to query help request: %w", err)
		}
		if r.Status.IsTerminal() {
			return r, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeoutCh:
			return nil, fmt.Errorf("timeout waiting for supervisor after %v", timeout)
		case <-ticker.C:
		}
	}
}
