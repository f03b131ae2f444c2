package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dyluth/frontdesk/internal/lifecycle"
	"github.com/dyluth/frontdesk/internal/printer"
	"github.com/dyluth/frontdesk/internal/watch"
	"github.com/dyluth/frontdesk/pkg/helpdesk"
	"github.com/spf13/cobra"
)

var (
	askCaller string
	askWait   time.Duration
)

var askCmd = &cobra.Command{
	Use:   "ask QUESTION",
	Short: "Ask the front desk a question as a caller would",
	Long: `Ask a question the way the voice agent does: check the knowledge base
first and escalate to a supervisor if nothing matches well enough.

With --wait, an escalated question blocks until a supervisor answers or the
request times out, then prints the outcome.

Examples:
  # Ask on behalf of a caller
  frontdesk ask "Do you offer keratin treatments?" --caller +15550100

  # Wait up to five minutes for a supervisor
  frontdesk ask "Are you open on Sunday?" --caller +15550100 --wait 5m`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askCaller, "caller", "", "Caller identity, e.g. a phone number (required)")
	askCmd.Flags().DurationVar(&askWait, "wait", 0, "Wait this long for a supervisor answer after escalating")
	_ = askCmd.MarkFlagRequired("caller")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	question := strings.Join(args, " ")

	d, client, closeStore, err := openDesk(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	result, err := d.Ask(ctx, question, askCaller)
	if err != nil {
		if lifecycle.IsStoreUnavailable(err) {
			return printer.Error("store unavailable", err.Error(), []string{"Check that Redis is running and reachable."})
		}
		return err
	}

	if result.Found {
		printer.Success("Answered from knowledge base\n")
		printer.Info("%s\n", result.Answer)
		return nil
	}

	printer.Step("Escalated to supervisor: request %s\n", result.RequestID)
	if askWait <= 0 {
		printer.Info("Answer later with:\n  frontdesk respond %s \"<answer>\"\n", shortID(result.RequestID))
		return nil
	}

	return waitForAnswer(ctx, client, result.RequestID, askWait)
}

func waitForAnswer(ctx context.Context, store watch.RequestGetter, requestID string, timeout time.Duration) error {
	r, err := watch.PollForResolution(ctx, store, requestID, watch.DefaultPollInterval, timeout)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		printer.Warning("No supervisor answer yet: %v\n", err)
		return nil
	}

	switch r.Status {
	case helpdesk.StatusResolved:
		printer.Success("Supervisor answered\n")
		printer.Info("%s\n", r.SupervisorAnswer)
	case helpdesk.StatusUnresolved:
		printer.Warning("Request %s timed out without an answer\n", shortID(r.ID))
	default:
		return fmt.Errorf("unexpected status %s", r.Status)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
