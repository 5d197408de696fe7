package commands

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/talentlink/assistant/cmd/assistant-cli/ui"
)

// Version is set at build time with -ldflags "-X .../commands.Version=...".
var Version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		ui.KeyValue("version", Version)
		ui.KeyValue("go", runtime.Version())
		ui.KeyValue("provider", cfg.LLM.Provider)
		ui.KeyValue("ai_enabled", boolString(cfg.AIEnabled()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func boolString(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
