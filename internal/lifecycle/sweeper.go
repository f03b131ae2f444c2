package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Defaults for the timeout sweeper.
const (
	DefaultRequestTimeout = 4 * time.Hour
	DefaultSweepInterval  = time.Hour
	DefaultSweepTimeout   = time.Minute
)

// SweeperConfig controls scheduled timeout sweeps.
type SweeperConfig struct {
	// Interval between scheduled sweeps.
	Interval time.Duration
	// Threshold is how long a request may stay pending.
	Threshold time.Duration
	// Timeout bounds a single sweep. Zero means unbounded.
	Timeout time.Duration
	// SweepOnStart runs one sweep immediately when Start is called, so
	// requests that expired while the process was down are closed promptly.
	SweepOnStart bool
}

// DefaultSweeperConfig returns a 1h interval, 4h threshold sweeper config.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval:     DefaultSweepInterval,
		Threshold:    DefaultRequestTimeout,
		Timeout:      DefaultSweepTimeout,
		SweepOnStart: true,
	}
}

// TickSource returns a tick channel and a stop function. It lets tests drive
// the sweeper without waiting on wall-clock intervals.
type TickSource func(interval time.Duration) (<-chan time.Time, func())

func tickerSource(interval time.Duration) (<-chan time.Time, func()) {
	ticker := time.NewTicker(interval)
	return ticker.C, ticker.Stop
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithTickSource replaces the time.Ticker used between sweeps.
func WithTickSource(source TickSource) SweeperOption {
	return func(s *Sweeper) {
		if source != nil {
			s.ticks = source
		}
	}
}

// Sweeper runs Manager.TimeoutSweep on a schedule and on demand.
type Sweeper struct {
	manager *Manager
	config  SweeperConfig
	ticks   TickSource
	logger  *zap.Logger

	// mu serializes Start and Stop. The loop never takes it, so Stop may
	// wait for the loop while holding it.
	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper creates a stopped sweeper.
func NewSweeper(manager *Manager, config SweeperConfig, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		manager: manager,
		config:  config,
		ticks:   tickerSource,
		logger:  manager.logger.With(zap.String("component", "sweeper")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Threshold returns the configured request timeout.
func (s *Sweeper) Threshold() time.Duration {
	return s.config.Threshold
}

// Start launches the background sweep loop. It runs until ctx is cancelled
// or Stop is called. Starting a running sweeper restarts it. Start and Stop
// are safe for concurrent use; at most one loop runs at a time.
func (s *Sweeper) Start(ctx context.Context) error {
	if s.config.Interval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %v", s.config.Interval)
	}
	if s.config.Threshold <= 0 {
		return fmt.Errorf("request timeout must be positive, got %v", s.config.Threshold)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	ticks, stopTicks := s.ticks(s.config.Interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer stopTicks()

		s.logger.Info("started timeout sweeper",
			zap.Duration("interval", s.config.Interval),
			zap.Duration("threshold", s.config.Threshold))

		if s.config.SweepOnStart {
			s.scheduledRun(loopCtx)
		}

		for {
			select {
			case <-loopCtx.Done():
				s.logger.Info("stopping timeout sweeper")
				return
			case <-ticks:
				s.scheduledRun(loopCtx)
			}
		}
	}()

	return nil
}

// Stop cancels the loop and waits for an in-flight sweep to return.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Sweeper) stopLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.wg.Wait()
}

// RunOnce performs one sweep with the configured threshold and timeout.
// Scheduled and manual sweeps both go through here.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	count, err := s.manager.TimeoutSweep(ctx, s.config.Threshold)
	s.manager.metrics.SweepFinished(time.Since(start), err)
	return count, err
}

// scheduledRun swallows errors; the next tick retries.
func (s *Sweeper) scheduledRun(ctx context.Context) {
	count, err := s.RunOnce(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("scheduled timeout sweep failed, will retry next interval",
			zap.String("event_type", "sweep_failed"),
			zap.Int("timed_out", count),
			zap.Error(err))
		return
	}
	if count > 0 {
		s.logger.Info("scheduled timeout sweep closed requests",
			zap.String("event_type", "sweep_completed"),
			zap.Int("timed_out", count))
	}
}
