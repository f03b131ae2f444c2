package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dyluth/frontdesk/internal/lifecycle"
	"github.com/dyluth/frontdesk/internal/metrics"
	"github.com/dyluth/frontdesk/internal/printer"
	"github.com/dyluth/frontdesk/internal/supervisor"
	"github.com/dyluth/frontdesk/pkg/helpdesk"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	serveAddr   string
	serveMemory bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the supervisor API and timeout sweeper",
	Long: `Run the supervisor API and the background timeout sweeper until
interrupted (SIGINT or SIGTERM).

The API exposes pending requests, history, the knowledge base, and the
respond endpoint supervisors use to answer. Prometheus metrics are served
on /metrics.

Examples:
  # Serve against Redis from frontdesk.yml or FRONTDESK_REDIS_URL
  frontdesk serve

  # Serve on another port with an in-process store (state is lost on exit)
  frontdesk serve --addr :9090 --memory`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides supervisor.addr)")
	serveCmd.Flags().BoolVar(&serveMemory, "memory", false, "Use an in-process store instead of Redis")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx)
}

// serve runs until ctx is cancelled or a component fails.
func serve(ctx context.Context) error {
	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	addr := cfg.Supervisor.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	var (
		s         store
		notifier  lifecycle.Notifier
		storeName string
	)
	if serveMemory {
		s, notifier, storeName = helpdesk.NewMemoryStore(nil), notifierFor(nil), "memory"
	} else {
		client, err := connectStore(ctx)
		if err != nil {
			return err
		}
		defer client.Close()
		s, notifier, storeName = client, notifierFor(client), "redis"
	}

	m := metrics.New()
	d, sweeper, err := buildDesk(s, notifier, m)
	if err != nil {
		return printer.Error("failed to start", err.Error(), nil)
	}

	server := supervisor.NewServer(addr, d, s,
		supervisor.WithLogger(logger),
		supervisor.WithMetrics(m),
		supervisor.WithStoreName(storeName),
	)

	g, gctx := errgroup.WithContext(ctx)

	if err := sweeper.Start(gctx); err != nil {
		return printer.Error("failed to start timeout sweeper", err.Error(), nil)
	}
	g.Go(func() error {
		<-gctx.Done()
		sweeper.Stop()
		return nil
	})
	g.Go(func() error {
		return server.Run(gctx)
	})

	printer.Success("Front desk serving on %s (instance '%s', %s store)\n", addr, cfg.Instance, storeName)
	logger.Info("front desk started",
		zap.String("event_type", "server_started"),
		zap.String("addr", addr),
		zap.String("store", storeName),
		zap.Duration("request_timeout", cfg.Lifecycle.RequestTimeout))

	if err := g.Wait(); err != nil {
		return printer.Error("server failed", err.Error(), nil)
	}
	printer.Info("Shut down cleanly\n")
	return nil
}
