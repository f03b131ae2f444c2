package commands

import (
	"time"

	"github.com/dyluth/frontdesk/internal/printer"
	"github.com/spf13/cobra"
)

var sweepOlderThan time.Duration

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Time out stale pending requests now",
	Long: `Run one timeout sweep immediately, the same sweep the server runs on
its schedule. Pending requests older than the request timeout are marked
unresolved.

Examples:
  frontdesk sweep
  frontdesk sweep --older-than 30m`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().DurationVar(&sweepOlderThan, "older-than", 0, "Override lifecycle.request_timeout for this sweep")
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if sweepOlderThan < 0 {
		return printer.Error("invalid --older-than", "The threshold must be positive.", nil)
	}
	if sweepOlderThan > 0 {
		cfg.Lifecycle.RequestTimeout = sweepOlderThan
	}

	d, _, closeStore, err := openDesk(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	count, err := d.RunTimeoutSweep(ctx)
	if err != nil {
		return printer.Error("timeout sweep failed", err.Error(), []string{"Requests closed before the failure stay closed; run the sweep again."})
	}

	if count == 0 {
		printer.Info("No pending requests older than %v\n", cfg.Lifecycle.RequestTimeout)
		return nil
	}
	printer.Success("Timed out %d pending %s older than %v\n", count, plural(count, "request", "requests"), cfg.Lifecycle.RequestTimeout)
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
