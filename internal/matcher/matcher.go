// Package matcher picks the content section that best fits a visitor message
// using keyword scoring. It has no external dependencies and always answers.
package matcher

import (
	"strings"
	"unicode/utf8"

	"github.com/talentlink/assistant/internal/content"
)

// Kind identifies which branch produced a Result.
type Kind string

const (
	KindSection  Kind = "section"
	KindIdentity Kind = "identity"
	KindGreeting Kind = "greeting"
	KindGeneric  Kind = "generic"
)

// longKeywordRunes is the length above which a keyword is worth two points.
const longKeywordRunes = 4

var (
	identityTriggers = []string{"who are you", "bot"}
	// "hi " keeps its trailing space so it does not match inside words.
	greetingTriggers = []string{"hello", "hi "}
)

// Candidate is one section with its score for a single message.
type Candidate struct {
	Section content.Section
	Score   int
}

// Result is the matcher's answer.
type Result struct {
	Kind      Kind
	SectionID string
	Score     int
	Text      string
}

// Matcher scores messages against a content index.
type Matcher struct {
	index *content.Index
}

// New creates a Matcher over idx.
func New(idx *content.Index) *Matcher {
	return &Matcher{index: idx}
}

// Index returns the index the matcher reads from.
func (m *Matcher) Index() *content.Index {
	return m.index
}

// Score returns every section's score in index order.
func (m *Matcher) Score(message string) []Candidate {
	msg := strings.ToLower(message)
	out := make([]Candidate, m.index.Len())
	for n := range out {
		s := m.index.At(n)
		out[n] = Candidate{Section: s, Score: ScoreSection(s, msg)}
	}
	return out
}

// Match returns the best section's content, or a canned reply when nothing scores.
func (m *Matcher) Match(message string) Result {
	msg := strings.ToLower(message)

	maxScore := 0
	best := -1
	for n := 0; n < m.index.Len(); n++ {
		score := ScoreSection(m.index.At(n), msg)
		if score > maxScore {
			maxScore = score
			best = n
		}
	}

	if best >= 0 {
		s := m.index.At(best)
		return Result{Kind: KindSection, SectionID: s.ID, Score: maxScore, Text: s.Content}
	}

	fb := m.index.Fallbacks()
	switch {
	case containsAny(msg, identityTriggers):
		return Result{Kind: KindIdentity, Text: fb.Identity}
	case containsAny(msg, greetingTriggers):
		return Result{Kind: KindGreeting, Text: fb.Greeting}
	default:
		return Result{Kind: KindGeneric, Text: fb.Generic}
	}
}

// ScoreSection scores an already lowercased message against one section.
func ScoreSection(s content.Section, msg string) int {
	score := 0
	for _, kw := range s.Keywords {
		if strings.Contains(msg, kw) {
			score += KeywordWeight(kw)
		}
	}
	for _, b := range s.Boosts {
		if containsAny(msg, b.Terms) {
			score += b.Points
		}
	}
	return score
}

// KeywordWeight is 2 for keywords longer than four characters and 1 otherwise.
func KeywordWeight(keyword string) int {
	if utf8.RuneCountInString(keyword) > longKeywordRunes {
		return 2
	}
	return 1
}

func containsAny(msg string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(msg, t) {
			return true
		}
	}
	return false
}
