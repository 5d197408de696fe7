package commands

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/talentlink/assistant/cmd/assistant-cli/ui"
	"github.com/talentlink/assistant/internal/matcher"
)

// ErrEvalFailed is returned when at least one question misses its expectation.
var ErrEvalFailed = errors.New("evaluation failed")

var evalCmd = &cobra.Command{
	Use:   "eval <questions.yaml>",
	Short: "Check the keyword matcher against a question file",
	Long: `Each entry of the question file names a message and the expected outcome:
a section id, or one of identity, greeting and generic.`,
	Args: cobra.ExactArgs(1),
	RunE: runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)
}

type evalCase struct {
	Message string `yaml:"message"`
	Expect  string `yaml:"expect"`
}

type evalOutcome struct {
	Case   evalCase
	Got    string
	Score  int
	Passed bool
}

func loadEvalCases(path string) ([]evalCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question file: %w", err)
	}
	var cases []evalCase
	if err := yaml.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("parse question file: %w", err)
	}
	for i, c := range cases {
		if c.Message == "" || c.Expect == "" {
			return nil, fmt.Errorf("question %d: message and expect are required", i+1)
		}
	}
	return cases, nil
}

// outcomeLabel is the section id for section matches and the kind otherwise.
func outcomeLabel(r matcher.Result) string {
	if r.Kind == matcher.KindSection {
		return r.SectionID
	}
	return string(r.Kind)
}

func evaluate(m *matcher.Matcher, cases []evalCase, step func()) []evalOutcome {
	out := make([]evalOutcome, 0, len(cases))
	for _, c := range cases {
		r := m.Match(c.Message)
		got := outcomeLabel(r)
		out = append(out, evalOutcome{Case: c, Got: got, Score: r.Score, Passed: got == c.Expect})
		if step != nil {
			step()
		}
	}
	return out
}

func runEval(cmd *cobra.Command, args []string) error {
	cases, err := loadEvalCases(args[0])
	if err != nil {
		return err
	}
	m, err := loadMatcher()
	if err != nil {
		return err
	}

	bar := ui.NewProgressBar(len(cases), "Evaluating")
	outcomes := evaluate(m, cases, func() { bar.Add(1) })
	bar.Finish()

	var rows [][]string
	failed := 0
	for _, o := range outcomes {
		if o.Passed && !ui.Verbose() {
			continue
		}
		status := "ok"
		if !o.Passed {
			status = "FAIL"
			failed++
		}
		rows = append(rows, []string{status, o.Case.Expect, o.Got, strconv.Itoa(o.Score), o.Case.Message})
	}
	if len(rows) > 0 {
		ui.Table([]string{"STATUS", "EXPECTED", "GOT", "SCORE", "MESSAGE"}, rows)
		ui.Newline()
	}

	if failed > 0 {
		ui.Error("%d of %d questions failed", failed, len(outcomes))
		return ErrEvalFailed
	}
	ui.Success("All %d questions matched", len(outcomes))
	return nil
}
