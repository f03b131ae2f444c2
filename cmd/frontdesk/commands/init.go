package commands

import (
	"github.com/dyluth/frontdesk/internal/printer"
	"github.com/dyluth/frontdesk/internal/scaffold"
	"github.com/spf13/cobra"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter frontdesk.yml and .env.example",
	Long: `Write a starter configuration into the current directory.

Creates:
  • frontdesk.yml - Configuration with every default spelled out
  • .env.example  - Environment overrides understood by frontdesk

Use --force to overwrite existing files.`,
	Args: cobra.NoArgs,
	// init runs before any config exists.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE:              runInit,
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite existing frontdesk.yml and .env.example")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	written, err := scaffold.Initialize(".", forceInit)
	if err != nil {
		return printer.Error("initialization failed", err.Error(), nil)
	}
	scaffold.PrintSuccess(printer.Stdout, written)
	return nil
}
