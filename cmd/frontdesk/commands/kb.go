package commands

import (
	"github.com/dyluth/frontdesk/internal/history"
	"github.com/dyluth/frontdesk/internal/printer"
	"github.com/spf13/cobra"
)

var kbOutputFormat string

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "List learned knowledge base entries",
	Long: `List every question/answer pair the front desk has learned from
supervisor answers, oldest first.

Examples:
  frontdesk kb
  frontdesk kb --output jsonl | jq -r .answer`,
	Args: cobra.NoArgs,
	RunE: runKB,
}

func init() {
	kbCmd.Flags().StringVarP(&kbOutputFormat, "output", "o", "default", "Output format: default or jsonl")
	rootCmd.AddCommand(kbCmd)
}

func runKB(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	format, err := history.ParseOutputFormat(kbOutputFormat)
	if err != nil {
		return printer.Error("invalid output format", err.Error(), []string{"Valid formats: default, jsonl"})
	}

	client, err := connectStore(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	return history.ListEntries(ctx, client, cfg.Instance, format, cmd.OutOrStdout())
}
