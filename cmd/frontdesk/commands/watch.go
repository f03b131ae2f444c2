package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/dyluth/frontdesk/internal/printer"
	"github.com/dyluth/frontdesk/internal/watch"
	"github.com/spf13/cobra"
)

var watchOutputFormat string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Monitor real-time front desk activity",
	Long: `Stream help request events and simulated notifications as they occur.

Output Formats:
  default - Human-readable output with timestamps and emojis
  json    - Line-delimited JSON for programmatic processing

Examples:
  frontdesk watch
  frontdesk watch --output=json > events.jsonl`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	var outputFormat watch.OutputFormat
	switch watchOutputFormat {
	case "default":
		outputFormat = watch.OutputFormatDefault
	case "json":
		outputFormat = watch.OutputFormatJSON
	default:
		return printer.Error(
			"invalid output format",
			"Unknown format: "+watchOutputFormat,
			[]string{"Valid formats: default, json"},
		)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := connectStore(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if outputFormat == watch.OutputFormatDefault {
		printer.Step("Watching instance '%s' (Ctrl+C to stop)\n", cfg.Instance)
	}
	return watch.StreamActivity(ctx, client, outputFormat, cmd.OutOrStdout())
}
