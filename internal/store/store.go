// Package store holds the authoritative ordered sequence of products for one
// grid session. Every successful mutation bumps a version counter so that
// whole-store replacements can detect they were overtaken.
package store

import (
	"errors"
	"fmt"

	"github.com/nlstn/go-datagrid/internal/record"
)

var (
	// ErrNotFound is returned when a mutation targets an id that is not stored.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateID is returned when an insert carries an id that is already stored.
	ErrDuplicateID = errors.New("record id already exists")
	// ErrStaleOverwrite is returned when a conditional replacement finds the
	// store changed since the caller observed it.
	ErrStaleOverwrite = errors.New("store changed since snapshot")
)

// ChangeFunc is invoked after every successful mutation with the new version.
type ChangeFunc func(version uint64)

// Store is an ordered, in-memory product sequence. It is not safe for
// concurrent use; callers serialize access.
type Store struct {
	records  []record.Product
	index    map[string]int
	version  uint64
	onChange ChangeFunc
}

// New creates a store holding a copy of records.
func New(records []record.Product) (*Store, error) {
	s := &Store{}
	if err := s.load(records); err != nil {
		return nil, err
	}
	return s, nil
}

// OnChange registers fn to run after each mutation. Passing nil clears it.
func (s *Store) OnChange(fn ChangeFunc) {
	s.onChange = fn
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	return len(s.records)
}

// Version returns the mutation counter.
func (s *Store) Version() uint64 {
	return s.version
}

// Snapshot returns a copy of the stored sequence.
func (s *Store) Snapshot() []record.Product {
	return append([]record.Product(nil), s.records...)
}

// Get returns the record with the given id.
func (s *Store) Get(id string) (record.Product, bool) {
	i, ok := s.index[id]
	if !ok {
		return record.Product{}, false
	}
	return s.records[i], true
}

// Insert stores p at the front of the sequence. When p has no id, the next
// PRD-<n> id is assigned starting at IDBase+Len, skipping ids already taken.
func (s *Store) Insert(p record.Product) (record.Product, error) {
	if p.ID == "" {
		p.ID = s.nextID()
	} else if _, exists := s.index[p.ID]; exists {
		return record.Product{}, fmt.Errorf("insert %s: %w", p.ID, ErrDuplicateID)
	}

	s.records = append([]record.Product{p}, s.records...)
	s.reindex()
	s.changed()
	return p, nil
}

// UpdateByID replaces the record whose id matches, keeping its id and position.
func (s *Store) UpdateByID(id string, p record.Product) (record.Product, error) {
	i, ok := s.index[id]
	if !ok {
		return record.Product{}, fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	p.ID = id
	s.records[i] = p
	s.changed()
	return p, nil
}

// DeleteByID removes the record with the given id. Absent ids are ignored.
func (s *Store) DeleteByID(id string) int {
	return s.DeleteByIDs([]string{id})
}

// DeleteByIDs removes every record whose id is listed and returns how many
// were removed. Absent ids are ignored.
func (s *Store) DeleteByIDs(ids []string) int {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := s.index[id]; ok {
			drop[id] = struct{}{}
		}
	}
	if len(drop) == 0 {
		return 0
	}

	kept := s.records[:0]
	for _, p := range s.records {
		if _, ok := drop[p.ID]; !ok {
			kept = append(kept, p)
		}
	}
	clear(s.records[len(kept):])
	s.records = kept
	s.reindex()
	s.changed()
	return len(drop)
}

// ReplaceAll swaps the whole sequence for a copy of records.
func (s *Store) ReplaceAll(records []record.Product) error {
	if err := s.load(records); err != nil {
		return err
	}
	s.changed()
	return nil
}

// ReplaceAllIfVersion swaps the sequence only when the store is still at version.
func (s *Store) ReplaceAllIfVersion(version uint64, records []record.Product) error {
	if s.version != version {
		return fmt.Errorf("replace at version %d (current %d): %w", version, s.version, ErrStaleOverwrite)
	}
	return s.ReplaceAll(records)
}

func (s *Store) load(records []record.Product) error {
	index := make(map[string]int, len(records))
	for i, p := range records {
		if p.ID == "" {
			return fmt.Errorf("record at position %d has no id", i)
		}
		if _, exists := index[p.ID]; exists {
			return fmt.Errorf("load %s: %w", p.ID, ErrDuplicateID)
		}
		index[p.ID] = i
	}
	s.records = append([]record.Product(nil), records...)
	s.index = index
	return nil
}

func (s *Store) nextID() string {
	for n := record.IDBase + len(s.records); ; n++ {
		id := record.FormatID(n)
		if _, taken := s.index[id]; !taken {
			return id
		}
	}
}

func (s *Store) reindex() {
	clear(s.index)
	if s.index == nil {
		s.index = make(map[string]int, len(s.records))
	}
	for i, p := range s.records {
		s.index[p.ID] = i
	}
}

func (s *Store) changed() {
	s.version++
	if s.onChange != nil {
		s.onChange(s.version)
	}
}
