package commands

import (
	"fmt"

	"github.com/dyluth/frontdesk/internal/history"
	"github.com/dyluth/frontdesk/internal/printer"
	"github.com/dyluth/frontdesk/internal/resolver"
	"github.com/dyluth/frontdesk/pkg/helpdesk"
	"github.com/spf13/cobra"
)

var (
	requestsOutputFormat string
	requestsStatus       string
	requestsSince        string
	requestsUntil        string
	requestsCaller       string
)

var requestsCmd = &cobra.Command{
	Use:   "requests [REQUEST_ID]",
	Short: "Inspect help requests with filtering",
	Long: `Inspect help requests in list or get mode.

List Mode (no REQUEST_ID):
  Displays requests matching filters as a table or JSONL stream, oldest first.

Get Mode (with REQUEST_ID):
  Displays one request as pretty-printed JSON.
  Supports short IDs (e.g., "3f2a9c" instead of full UUID).

Filters (list mode only):
  --status - pending, resolved, or unresolved
  --since  - Created after this time (duration or RFC3339)
  --until  - Created before this time (duration or RFC3339)
  --caller - Caller identity (glob pattern: "+1555*")

Examples:
  # Everything waiting on a supervisor
  frontdesk requests --status pending

  # Requests that timed out in the last day, as JSONL
  frontdesk requests --status unresolved --since 24h --output jsonl

  # One request by short ID
  frontdesk requests 3f2a9c`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRequests,
}

func init() {
	requestsCmd.Flags().StringVarP(&requestsOutputFormat, "output", "o", "default", "Output format: default or jsonl (ignored in get mode)")
	requestsCmd.Flags().StringVar(&requestsStatus, "status", "", "Filter by status (pending, resolved, unresolved)")
	requestsCmd.Flags().StringVar(&requestsSince, "since", "", "Show requests after time (duration or RFC3339)")
	requestsCmd.Flags().StringVar(&requestsUntil, "until", "", "Show requests before time (duration or RFC3339)")
	requestsCmd.Flags().StringVar(&requestsCaller, "caller", "", "Filter by caller identity (glob pattern)")
	rootCmd.AddCommand(requestsCmd)
}

func runRequests(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	isGetMode := len(args) > 0

	var (
		outputFormat history.OutputFormat
		filters      *history.FilterCriteria
	)
	if !isGetMode {
		var err error
		outputFormat, err = history.ParseOutputFormat(requestsOutputFormat)
		if err != nil {
			return printer.Error("invalid output format", err.Error(), []string{"Valid formats: default, jsonl"})
		}

		filters = &history.FilterCriteria{
			Status:     helpdesk.Status(requestsStatus),
			CallerGlob: requestsCaller,
		}
		if err := filters.SetTimeRange(requestsSince, requestsUntil); err != nil {
			return printer.Error("invalid time filter", err.Error(), []string{"Use a duration like '2h' or an RFC3339 time like '2025-10-29T13:00:00Z'"})
		}
		if err := filters.Validate(); err != nil {
			return printer.Error("invalid filter", err.Error(), []string{"Valid statuses: pending, resolved, unresolved"})
		}
	}

	client, err := connectStore(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	out := cmd.OutOrStdout()
	if !isGetMode {
		return history.ListRequests(ctx, client, cfg.Instance, outputFormat, filters, out)
	}

	requestID, err := resolver.ResolveRequestID(ctx, client, args[0])
	if err != nil {
		return resolveError(args[0], err)
	}
	if err := history.GetRequest(ctx, client, requestID, out); err != nil {
		if history.IsNotFound(err) {
			return printer.Error("help request not found", err.Error(), nil)
		}
		return fmt.Errorf("failed to show request: %w", err)
	}
	return nil
}
