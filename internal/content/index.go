// Package content holds the static topic sections the assistant answers from.
package content

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed sections.yaml
var defaultSections []byte

// ErrInvalidIndex is returned when section definitions fail validation.
var ErrInvalidIndex = errors.New("invalid content index")

// Boost is a fixed bonus added to one section when the message contains any of Terms.
type Boost struct {
	Terms  []string `yaml:"terms" json:"terms"`
	Points int      `yaml:"points" json:"points"`
}

// Section is one topic the assistant can answer about.
type Section struct {
	ID       string   `yaml:"id" json:"id"`
	Keywords []string `yaml:"keywords" json:"keywords"`
	Boosts   []Boost  `yaml:"boosts,omitempty" json:"boosts,omitempty"`
	Content  string   `yaml:"content" json:"content"`
}

// Fallbacks are the canned replies used when no section matches.
type Fallbacks struct {
	Identity string `yaml:"identity" json:"identity"`
	Greeting string `yaml:"greeting" json:"greeting"`
	Generic  string `yaml:"generic" json:"generic"`
}

// Document is the on-disk representation of an index.
type Document struct {
	Fallbacks Fallbacks `yaml:"fallbacks"`
	Sections  []Section `yaml:"sections"`
}

// Index is the ordered, immutable set of sections. It is safe for
// concurrent use because nothing mutates it after NewIndex returns.
type Index struct {
	sections  []Section
	byID      map[string]int
	fallbacks Fallbacks
}

// Default returns the index compiled into the binary.
func Default() (*Index, error) {
	return Parse(defaultSections)
}

// MustDefault is Default for package-level setup and tests.
func MustDefault() *Index {
	idx, err := Default()
	if err != nil {
		panic(err)
	}
	return idx
}

// Load reads an index from a YAML file. An empty path yields the default index.
func Load(path string) (*Index, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read content file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document and builds an index from it.
func Parse(data []byte) (*Index, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse content: %w", err)
	}
	return NewIndex(doc.Sections, doc.Fallbacks)
}

// NewIndex validates and normalizes sections. Keywords and boost terms are
// lowercased; the caller's slices are copied.
func NewIndex(sections []Section, fallbacks Fallbacks) (*Index, error) {
	if len(sections) == 0 {
		return nil, fmt.Errorf("%w: no sections", ErrInvalidIndex)
	}
	if strings.TrimSpace(fallbacks.Identity) == "" ||
		strings.TrimSpace(fallbacks.Greeting) == "" ||
		strings.TrimSpace(fallbacks.Generic) == "" {
		return nil, fmt.Errorf("%w: fallback texts must be non-empty", ErrInvalidIndex)
	}

	idx := &Index{
		sections:  make([]Section, 0, len(sections)),
		byID:      make(map[string]int, len(sections)),
		fallbacks: fallbacks,
	}

	for i, s := range sections {
		id := strings.TrimSpace(s.ID)
		if id == "" {
			return nil, fmt.Errorf("%w: section %d has no id", ErrInvalidIndex, i)
		}
		if _, dup := idx.byID[id]; dup {
			return nil, fmt.Errorf("%w: duplicate section id %q", ErrInvalidIndex, id)
		}
		if strings.TrimSpace(s.Content) == "" {
			return nil, fmt.Errorf("%w: section %q has no content", ErrInvalidIndex, id)
		}

		keywords := normalizeTerms(s.Keywords)
		if len(keywords) == 0 {
			return nil, fmt.Errorf("%w: section %q has no keywords", ErrInvalidIndex, id)
		}

		boosts := make([]Boost, 0, len(s.Boosts))
		for _, b := range s.Boosts {
			terms := normalizeTerms(b.Terms)
			if len(terms) == 0 || b.Points <= 0 {
				return nil, fmt.Errorf("%w: section %q has an empty boost", ErrInvalidIndex, id)
			}
			boosts = append(boosts, Boost{Terms: terms, Points: b.Points})
		}

		idx.byID[id] = len(idx.sections)
		idx.sections = append(idx.sections, Section{
			ID:       id,
			Keywords: keywords,
			Boosts:   boosts,
			Content:  s.Content,
		})
	}

	return idx, nil
}

func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Len returns the number of sections.
func (i *Index) Len() int {
	return len(i.sections)
}

// At returns the section at position n. It panics if n is out of range.
func (i *Index) At(n int) Section {
	return i.sections[n]
}

// Sections returns a copy of the ordered sections.
func (i *Index) Sections() []Section {
	out := make([]Section, len(i.sections))
	copy(out, i.sections)
	return out
}

// Section looks up a section by id.
func (i *Index) Section(id string) (Section, bool) {
	n, ok := i.byID[id]
	if !ok {
		return Section{}, false
	}
	return i.sections[n], true
}

// Fallbacks returns the canned replies.
func (i *Index) Fallbacks() Fallbacks {
	return i.fallbacks
}

// Render formats every section as plain text for use as model context.
func (i *Index) Render() string {
	var b strings.Builder
	for n, s := range i.sections {
		if n > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("## ")
		b.WriteString(s.ID)
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(s.Content))
	}
	return b.String()
}
