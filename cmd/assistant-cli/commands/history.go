package commands

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/talentlink/assistant/cmd/assistant-cli/ui"
	"github.com/talentlink/assistant/internal/app"
	"github.com/talentlink/assistant/internal/storage"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [id]",
	Short: "Show recent chat exchanges, or one exchange by id",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the chat log tables in the configured database",
	RunE:  runMigrate,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of exchanges to show")
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(migrateCmd)
}

func openChatLog(cmd *cobra.Command) (*app.App, *storage.ChatLogRepository, error) {
	if cfg.Database.Driver == "none" {
		return nil, nil, fmt.Errorf("no database configured: set database.driver to sqlite or postgres")
	}
	cfg.LLM.APIKey = ""

	a, err := newApp(cmd.Context(), app.Options{SkipChatLog: true})
	if err != nil {
		return nil, nil, err
	}
	repo, err := a.OpenChatLog(cmd.Context())
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	return a, repo, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	a, _, err := openChatLog(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ui.Success("Chat log ready (%s)", cfg.Database.Driver)
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, repo, err := openChatLog(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) == 1 {
		return showExchange(cmd, repo, args[0])
	}

	exchanges, err := repo.Recent(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	if len(exchanges) == 0 {
		ui.Info("Chat log is empty")
		return nil
	}

	ui.Section("Recent exchanges")
	ui.Table([]string{"ID", "TIME", "SOURCE", "KIND", "SECTION", "MESSAGE"}, historyRows(exchanges))

	counts, err := repo.CountBySource(cmd.Context())
	if err != nil {
		return err
	}
	ui.Section("Totals")
	sources := make([]string, 0, len(counts))
	for s := range counts {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	for _, s := range sources {
		ui.KeyValue(s, strconv.Itoa(counts[s]))
	}
	return nil
}

func showExchange(cmd *cobra.Command, repo *storage.ChatLogRepository, rawID string) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid exchange id: %w", err)
	}
	ex, err := repo.Get(cmd.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("exchange %s not found", id)
	}
	if err != nil {
		return err
	}

	ui.Section("Exchange " + ex.ID.String())
	for _, kv := range exchangeDetails(ex) {
		ui.KeyValue(kv[0], kv[1])
	}
	ui.Newline()
	ui.Box("Message", ex.Message)
	ui.Box("Reply", ex.Reply)
	return nil
}

func exchangeDetails(ex *storage.ChatExchange) [][2]string {
	details := [][2]string{
		{"time", ex.CreatedAt.Local().Format(time.DateTime)},
		{"source", ex.Source},
	}
	if ex.Source == "ai" {
		details = append(details,
			[2]string{"provider", ex.Provider},
			[2]string{"cached", strconv.FormatBool(ex.Cached)},
		)
	} else {
		details = append(details, [2]string{"kind", ex.Kind})
		if ex.SectionID != "" {
			details = append(details,
				[2]string{"section", ex.SectionID},
				[2]string{"score", strconv.Itoa(ex.Score)},
			)
		}
	}
	return append(details, [2]string{"latency", fmt.Sprintf("%dms", ex.LatencyMS)})
}

func historyRows(exchanges []storage.ChatExchange) [][]string {
	rows := make([][]string, 0, len(exchanges))
	for _, ex := range exchanges {
		rows = append(rows, []string{
			ex.ID.String(),
			ex.CreatedAt.Local().Format(time.DateTime),
			ex.Source,
			ex.Kind,
			ex.SectionID,
			truncate(ex.Message, 48),
		})
	}
	return rows
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
