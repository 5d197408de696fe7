package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/talentlink/assistant/cmd/assistant-cli/ui"
	"github.com/talentlink/assistant/internal/app"
	"github.com/talentlink/assistant/internal/chat"
)

var (
	askRecord bool
	askNoAI   bool
)

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Answer a message the way the chat endpoint does",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askRecord, "record", false, "write the exchange to the chat log")
	askCmd.Flags().BoolVar(&askNoAI, "no-ai", false, "skip the model and use the keyword matcher only")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	message := strings.Join(args, " ")
	if message == "" {
		return fmt.Errorf("message is required")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Server.RequestTimeout+5*time.Second)
	defer cancel()

	if askNoAI {
		cfg.LLM.APIKey = ""
	}

	a, err := newApp(ctx, app.Options{SkipChatLog: !askRecord})
	if err != nil {
		return err
	}
	defer a.Close()

	var reply chat.Reply
	if a.Service.AIReady() {
		spin := ui.NewSpinner(fmt.Sprintf("Asking %s...", a.Provider.Name()))
		spin.Start()
		reply = a.Service.Reply(ctx, message)
		spin.Stop()
	} else {
		reply = a.Service.Reply(ctx, message)
	}

	printReply(reply)
	return nil
}

func printReply(reply chat.Reply) {
	ui.Box("Reply", reply.Text)
	ui.KeyValue("source", string(reply.Source))
	switch reply.Source {
	case chat.SourceAI:
		ui.KeyValue("provider", reply.Provider)
		ui.KeyValue("cached", fmt.Sprintf("%t", reply.Cached))
		ui.KeyValue("latency", ui.FormatDuration(reply.Latency))
	default:
		ui.KeyValue("kind", string(reply.Kind))
		if reply.SectionID != "" {
			ui.KeyValue("section", reply.SectionID)
			ui.KeyValue("score", fmt.Sprintf("%d", reply.Score))
		}
	}
}
