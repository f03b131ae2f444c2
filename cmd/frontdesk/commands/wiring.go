package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dyluth/frontdesk/internal/desk"
	"github.com/dyluth/frontdesk/internal/lifecycle"
	"github.com/dyluth/frontdesk/internal/matcher"
	"github.com/dyluth/frontdesk/internal/metrics"
	"github.com/dyluth/frontdesk/internal/notify"
	"github.com/dyluth/frontdesk/internal/printer"
	"github.com/dyluth/frontdesk/pkg/helpdesk"
	"github.com/redis/go-redis/v9"
)

// store is what the commands need from a backing store. Both
// *helpdesk.Client and *helpdesk.MemoryStore satisfy it.
type store interface {
	lifecycle.RequestStore
	lifecycle.KnowledgeStore
	ScanRequests(ctx context.Context, prefix string) ([]string, error)
	Ping(ctx context.Context) error
}

// connectStore connects to the configured Redis, retrying with backoff.
func connectStore(ctx context.Context) (*helpdesk.Client, error) {
	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, printer.ErrorWithContext(
			"invalid Redis URL",
			err.Error(),
			map[string]string{"Redis": cfg.Redis.URL},
			[]string{"Set redis.url in frontdesk.yml or FRONTDESK_REDIS_URL, e.g. redis://localhost:6379/0"},
		)
	}

	client, err := helpdesk.Connect(ctx, redisOpts, cfg.Instance, uint64(*cfg.Redis.ConnectRetries), helpdesk.WithLogger(logger))
	if err != nil {
		return nil, printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis: %v", err),
			map[string]string{"Redis": cfg.Redis.URL, "Instance": cfg.Instance},
			[]string{
				"Start Redis locally:\n  docker run -p 6379:6379 redis:7-alpine",
				"Run the server without Redis:\n  frontdesk serve --memory",
			},
		)
	}
	return client, nil
}

// notifierFor logs every notification and, when the store can publish,
// also publishes it for `frontdesk watch`.
func notifierFor(publisher notify.Publisher) lifecycle.Notifier {
	logNotifier := notify.NewLogNotifier(logger, cfg.Supervisor.DashboardURL)
	if publisher == nil {
		return logNotifier
	}
	return notify.Multi{logNotifier, notify.NewPublishNotifier(publisher, time.Now)}
}

// buildDesk assembles matcher, manager, sweeper and desk from cfg.
func buildDesk(s store, notifier lifecycle.Notifier, m *metrics.Metrics) (*desk.Desk, *lifecycle.Sweeper, error) {
	scorer := matcher.Scorer{
		JaccardWeight: *cfg.Matching.JaccardWeight,
		RatioWeight:   *cfg.Matching.RatioWeight,
	}
	match, err := matcher.New(*cfg.Matching.AcceptanceThreshold, scorer)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid matching configuration: %w", err)
	}

	manager := lifecycle.NewManager(s, s, notifier,
		lifecycle.WithLogger(logger),
		lifecycle.WithMetrics(m),
		lifecycle.WithStoreTimeout(cfg.Lifecycle.StoreTimeout),
	)
	sweeper := lifecycle.NewSweeper(manager, lifecycle.SweeperConfig{
		Interval:     cfg.Lifecycle.SweepInterval,
		Threshold:    cfg.Lifecycle.RequestTimeout,
		Timeout:      cfg.Lifecycle.SweepTimeout,
		SweepOnStart: *cfg.Lifecycle.SweepOnStart,
	})

	d := desk.New(manager, sweeper, s, s, match,
		desk.WithLogger(logger),
		desk.WithMetrics(m),
		desk.WithStoreTimeout(cfg.Lifecycle.StoreTimeout),
	)
	return d, sweeper, nil
}

// openDesk connects to Redis and builds a desk for one-shot commands.
// The returned close func releases the connection.
func openDesk(ctx context.Context) (*desk.Desk, *helpdesk.Client, func(), error) {
	client, err := connectStore(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	d, _, err := buildDesk(client, notifierFor(client), nil)
	if err != nil {
		client.Close()
		return nil, nil, nil, err
	}
	return d, client, func() { client.Close() }, nil
}
