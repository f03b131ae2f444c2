package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dyluth/frontdesk/internal/lifecycle"
	"github.com/dyluth/frontdesk/internal/printer"
	"github.com/dyluth/frontdesk/internal/resolver"
	"github.com/spf13/cobra"
)

var respondCmd = &cobra.Command{
	Use:   "respond REQUEST_ID ANSWER",
	Short: "Answer a pending help request as the supervisor",
	Long: `Resolve a pending help request with a supervisor answer.

The answer is texted to the caller (simulated) and added to the knowledge
base so the question is answered automatically next time. REQUEST_ID may be
a full UUID or a unique prefix of at least 6 characters.

Examples:
  frontdesk respond 3f2a9c "Yes, keratin is $150 and takes about 3 hours."`,
	Args: cobra.MinimumNArgs(2),
	RunE: runRespond,
}

func init() {
	rootCmd.AddCommand(respondCmd)
}

func runRespond(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	answer := strings.Join(args[1:], " ")

	d, client, closeStore, err := openDesk(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	requestID, err := resolver.ResolveRequestID(ctx, client, args[0])
	if err != nil {
		return resolveError(args[0], err)
	}

	r, err := d.SubmitSupervisorAnswer(ctx, requestID, answer)
	if err != nil {
		switch {
		case lifecycle.IsValidation(err):
			return printer.Error("invalid answer", err.Error(), []string{"Provide a non-empty answer."})
		case lifecycle.IsNotFound(err):
			return printer.Error("help request not found", err.Error(), []string{"List pending requests:\n  frontdesk requests --status pending"})
		case lifecycle.IsAlreadyResolved(err):
			return printer.Error(
				"help request already closed",
				err.Error(),
				[]string{fmt.Sprintf("Inspect it:\n  frontdesk requests %s", shortID(requestID))},
			)
		case lifecycle.IsStoreUnavailable(err):
			return printer.Error("store unavailable", err.Error(), []string{"Check that Redis is running and reachable."})
		}
		return err
	}

	printer.Success("Resolved %s\n", shortID(r.ID))
	printer.Info("Caller %s has been texted and the answer was added to the knowledge base.\n", r.CallerIdentity)
	return nil
}

// resolveError renders short-ID resolution failures.
func resolveError(shortID string, err error) error {
	var ambiguous *resolver.AmbiguousError
	switch {
	case resolver.IsNotFoundError(err):
		return printer.Error("help request not found", err.Error(), []string{"List requests:\n  frontdesk requests"})
	case errors.As(err, &ambiguous):
		return printer.Error("ambiguous request ID", resolver.FormatAmbiguousError(ambiguous), nil)
	}
	return printer.Error(fmt.Sprintf("cannot resolve request ID '%s'", shortID), err.Error(), nil)
}
