// Package knowledge holds the website text used to ground model answers.
// The text is loaded from a directory and swapped as a whole snapshot.
package knowledge

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrNoDocuments is returned by LoadDir when the directory has no usable files.
var ErrNoDocuments = errors.New("knowledge: no documents found")

// Extensions lists the file types LoadDir reads.
var Extensions = []string{".txt", ".md"}

// Snapshot is an immutable view of the loaded knowledge text.
type Snapshot struct {
	Text     string
	Sources  []string
	LoadedAt time.Time
	// Version is assigned by Store.Replace and grows with every swap.
	Version uint64
}

// Empty reports whether the snapshot carries no text.
func (s Snapshot) Empty() bool {
	return strings.TrimSpace(s.Text) == ""
}

// Store holds the current snapshot. Readers never see a partial update.
type Store struct {
	mu      sync.RWMutex
	snap    Snapshot
	version uint64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Replace swaps in a new snapshot and stamps it with the next version.
func (s *Store) Replace(snap Snapshot) {
	s.mu.Lock()
	s.version++
	snap.Version = s.version
	s.snap = snap
	s.mu.Unlock()
}

// Snapshot returns the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Loaded reports whether a non-empty snapshot is present.
func (s *Store) Loaded() bool {
	return !s.Snapshot().Empty()
}

// LoadDir reads every supported file directly under dir in name order.
func LoadDir(dir string) (Snapshot, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read knowledge dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isSupported(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var b strings.Builder
	sources := make([]string, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return Snapshot{}, fmt.Errorf("read knowledge file %s: %w", name, err)
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
		sources = append(sources, name)
	}

	if len(sources) == 0 {
		return Snapshot{}, fmt.Errorf("%w in %s", ErrNoDocuments, dir)
	}

	return Snapshot{Text: b.String(), Sources: sources, LoadedAt: time.Now()}, nil
}

// Reload loads dir into the store. A directory without documents clears
// the store and still returns ErrNoDocuments; any other error keeps the
// previous snapshot.
func (s *Store) Reload(dir string) error {
	snap, err := LoadDir(dir)
	if errors.Is(err, ErrNoDocuments) {
		s.Replace(Snapshot{LoadedAt: time.Now()})
		return err
	}
	if err != nil {
		return err
	}
	s.Replace(snap)
	return nil
}

func isSupported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
