package commands

import (
	"fmt"
	"os"

	"github.com/dyluth/frontdesk/internal/config"
	"github.com/dyluth/frontdesk/internal/printer"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	version string
	commit  string
	date    string

	configPath string
	verbose    bool

	// Populated by PersistentPreRunE before any subcommand runs.
	cfg    *config.FrontdeskConfig
	logger = zap.NewNop()

	// Replaced in tests.
	lookupEnv = os.LookupEnv
	newLogger = buildLogger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "frontdesk",
	Short: "Frontdesk - human-in-the-loop receptionist back end",
	Long: `Frontdesk answers caller questions from a learned knowledge base and
escalates anything it cannot answer to a human supervisor.

Supervisor answers are recorded and fed back into the knowledge base, so the
same question is answered automatically next time. Requests nobody answers
are timed out by a background sweeper.`,
	Version:            version,
	PersistentPreRunE:  loadRuntime,
	PersistentPostRun:  func(cmd *cobra.Command, args []string) { _ = logger.Sync() },
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to frontdesk.yml (defaults apply if missing)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// loadRuntime loads .env files, frontdesk.yml and env overrides, then builds the logger.
func loadRuntime(cmd *cobra.Command, args []string) error {
	if err := config.LoadEnvFiles(".env.local", ".env"); err != nil {
		return printer.Error("failed to load environment", err.Error(), nil)
	}

	loaded, err := config.LoadOrDefault(configPath)
	if err != nil {
		return printer.ErrorWithContext(
			"invalid configuration",
			err.Error(),
			map[string]string{"Config": configPath},
			[]string{"Fix the file, or remove it to run with defaults."},
		)
	}
	if err := loaded.ApplyEnv(lookupEnv); err != nil {
		return printer.Error("invalid environment override", err.Error(), nil)
	}
	cfg = loaded

	l, err := newLogger(verbose)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	logger = l.With(zap.String("instance", cfg.Instance))
	return nil
}

// buildLogger returns a production JSON logger on stderr; verbose lowers the level to debug.
func buildLogger(verbose bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zcfg.Build()
}
