package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/talentlink/assistant/cmd/assistant-cli/ui"
	"github.com/talentlink/assistant/internal/content"
	"github.com/talentlink/assistant/internal/matcher"
)

var scoreAll bool

var scoreCmd = &cobra.Command{
	Use:   "score <message>",
	Short: "Show keyword scores for a message",
	Long:  "Score a message against every content section and show which reply the keyword matcher picks.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runScore,
}

var sectionsCmd = &cobra.Command{
	Use:   "sections",
	Short: "List content sections and their keywords",
	RunE:  runSections,
}

func init() {
	scoreCmd.Flags().BoolVar(&scoreAll, "all", false, "include sections that scored zero")
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(sectionsCmd)
}

func loadMatcher() (*matcher.Matcher, error) {
	idx, err := content.Load(cfg.Content.Path)
	if err != nil {
		return nil, fmt.Errorf("load content: %w", err)
	}
	return matcher.New(idx), nil
}

func runScore(cmd *cobra.Command, args []string) error {
	m, err := loadMatcher()
	if err != nil {
		return err
	}
	message := strings.Join(args, " ")

	ui.Section("Scores")
	ui.Table([]string{"SECTION", "SCORE"}, scoreRows(m.Score(message), scoreAll))

	result := m.Match(message)
	ui.Newline()
	ui.KeyValue("kind", string(result.Kind))
	if result.Kind == matcher.KindSection {
		ui.KeyValue("section", result.SectionID)
		ui.KeyValue("score", strconv.Itoa(result.Score))
	}
	return nil
}

func scoreRows(candidates []matcher.Candidate, all bool) [][]string {
	rows := make([][]string, 0, len(candidates))
	for _, c := range candidates {
		if c.Score == 0 && !all {
			continue
		}
		rows = append(rows, []string{c.Section.ID, strconv.Itoa(c.Score)})
	}
	return rows
}

func runSections(cmd *cobra.Command, args []string) error {
	m, err := loadMatcher()
	if err != nil {
		return err
	}

	sections := m.Index().Sections()
	rows := make([][]string, 0, len(sections))
	for _, s := range sections {
		rows = append(rows, []string{s.ID, strings.Join(s.Keywords, ", ")})
	}
	ui.Table([]string{"SECTION", "KEYWORDS"}, rows)
	return nil
}
