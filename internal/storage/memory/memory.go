// Package memory is an in-process implementation of ports.Store used for
// tests and the memory backend.
package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"finanzas/internal/core"
)

type Store struct {
	mu     sync.Mutex
	cats   []core.Category
	items  []core.Transaction
	nextID int64
	// failOn makes InsertTransaction fail for matching descriptions.
	failOn func(core.Transaction) error
}

// New returns a store holding cats. Defaults are used when cats is empty.
func New(cats []core.Category) *Store {
	if len(cats) == 0 {
		cats = core.DefaultCategories()
	}
	return &Store{cats: dedupe(cats)}
}

// SeedFile is the YAML layout accepted by NewFromFiles.
type SeedFile struct {
	Categories []SeedCategory `yaml:"categories"`
}

type SeedCategory struct {
	ID      int64  `yaml:"id"`
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Color   string `yaml:"color,omitempty"`
	Icon    string `yaml:"icon,omitempty"`
	OwnerID int64  `yaml:"owner_id,omitempty"`
}

// NewFromFiles seeds categories from base/categories.yaml, falling back to
// the shared defaults when the file is missing or unreadable.
func NewFromFiles(base string) *Store {
	cats, err := readSeed(filepath.Join(base, "categories.yaml"))
	if err != nil {
		return New(nil)
	}
	return New(cats)
}

func readSeed(path string) ([]core.Category, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f SeedFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	out := make([]core.Category, 0, len(f.Categories))
	for _, c := range f.Categories {
		typ, err := core.ParseTransactionType(c.Type)
		if err != nil {
			return nil, fmt.Errorf("category %q: %w", c.Name, err)
		}
		cat := core.Category{
			ID:        c.ID,
			Name:      strings.TrimSpace(c.Name),
			Type:      typ,
			Color:     c.Color,
			Icon:      c.Icon,
			OwnerID:   c.OwnerID,
			IsDefault: c.OwnerID == 0,
		}
		if cat.Color == "" {
			cat.Color = core.DefaultColor
		}
		if cat.Icon == "" {
			cat.Icon = core.DefaultIcon
		}
		out = append(out, cat)
	}
	return out, nil
}

// FailInserts installs a hook consulted before every insert.
func (s *Store) FailInserts(fn func(core.Transaction) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn = fn
}

func (s *Store) LookupCategory(_ context.Context, id, ownerID int64) (core.Category, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cats {
		if c.ID == id && c.VisibleTo(ownerID) {
			return c, true, nil
		}
	}
	return core.Category{}, false, nil
}

func (s *Store) QueryCategories(_ context.Context, ownerID int64, typ *core.TransactionType) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Category
	for _, c := range s.cats {
		if !c.VisibleTo(ownerID) {
			continue
		}
		if typ != nil && c.Type != *typ {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// InsertTransaction validates and stores t, returning its new id.
func (s *Store) InsertTransaction(_ context.Context, t core.Transaction) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn != nil {
		if err := s.failOn(t); err != nil {
			return 0, err
		}
	}
	s.nextID++
	t.ID = s.nextID
	s.items = append(s.items, t)
	return t.ID, nil
}

func (s *Store) UpdateTransaction(_ context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.items {
		if cur.ID == t.ID && cur.OwnerID == t.OwnerID {
			t.ImportBatch = cur.ImportBatch
			s.items[i] = t
			return nil
		}
	}
	return core.ErrNotFound
}

func (s *Store) DeleteTransaction(_ context.Context, ownerID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.items {
		if t.ID == id && t.OwnerID == ownerID {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return core.ErrNotFound
}

func (s *Store) GetTransaction(_ context.Context, ownerID, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.items {
		if t.ID == id && t.OwnerID == ownerID {
			return t, nil
		}
	}
	return core.Transaction{}, core.ErrNotFound
}

func (s *Store) QueryTransactions(_ context.Context, ownerID int64, f core.TransactionFilter) ([]core.Transaction, error) {
	out := s.matching(ownerID, f)
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) CountTransactions(_ context.Context, ownerID int64, f core.TransactionFilter) (int, error) {
	return len(s.matching(ownerID, f)), nil
}

func (s *Store) matching(ownerID int64, f core.TransactionFilter) []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make(map[int64]string, len(s.cats))
	for _, c := range s.cats {
		names[c.ID] = c.Name
	}
	var out []core.Transaction
	for _, t := range s.items {
		if t.OwnerID == ownerID && f.Matches(t, names[t.CategoryID]) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func dedupe(in []core.Category) []core.Category {
	seen := map[int64]struct{}{}
	out := make([]core.Category, 0, len(in))
	for _, c := range in {
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Ping always succeeds; it lets the store serve readiness checks.
func (s *Store) Ping(context.Context) error { return nil }
