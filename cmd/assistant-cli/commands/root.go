// Package commands implements the assistant CLI commands.
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/talentlink/assistant/cmd/assistant-cli/ui"
	"github.com/talentlink/assistant/internal/app"
	"github.com/talentlink/assistant/internal/config"
	"github.com/talentlink/assistant/internal/observability"
)

var (
	cfgFile string
	verbose bool
	noColor bool

	cfg    *config.Config
	logger *observability.Logger
)

var rootCmd = &cobra.Command{
	Use:   "assistant-cli",
	Short: "Operator CLI for the recruitment website assistant",
	Long: `assistant-cli answers questions the way the website chat endpoint does,
inspects keyword scoring, evaluates the matcher against a question file and
manages the chat log.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.Init(noColor, verbose)

		if cfgFile == "" {
			cfgFile = os.Getenv("CONFIG_PATH")
		}
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded

		level := "warn"
		if verbose {
			level = "debug"
		}
		logger = observability.NewLogger(observability.LogConfig{
			Level:       level,
			Format:      "console",
			Output:      ui.Err,
			ServiceName: cfg.Observability.ServiceName,
		}).WithOperation(cmd.Name())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults to $CONFIG_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func newApp(ctx context.Context, opts app.Options) (*app.App, error) {
	a, err := app.New(ctx, cfg, logger, opts)
	if err != nil {
		return nil, fmt.Errorf("initialise assistant: %w", err)
	}
	return a, nil
}
