package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"prodboard/internal/core"
	ports "prodboard/internal/sheets"
)

var (
	_ ports.Store         = (*Store)(nil)
	_ ports.BatchAppender = (*Store)(nil)
)

// Store keeps the three collections in process memory.
type Store struct {
	mu       sync.Mutex
	history  []core.ProductionRow
	requests []core.ProductionRow
	meta     []core.MetadataOption
	seq      int
}

func New(history, requests []core.ProductionRow, meta []core.MetadataOption) *Store {
	return &Store{
		history:  append([]core.ProductionRow(nil), history...),
		requests: append([]core.ProductionRow(nil), requests...),
		meta:     append([]core.MetadataOption(nil), meta...),
	}
}

// NewFromFiles seeds the store from seed_history.json, seed_requests.json
// and seed_meta.json under base. Missing files leave the collection empty,
// except metadata which falls back to a small default vocabulary.
func NewFromFiles(base string) (*Store, error) {
	var (
		history, requests []core.ProductionRow
		meta              []core.MetadataOption
	)
	if err := readJSON(filepath.Join(base, "seed_history.json"), &history); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(base, "seed_requests.json"), &requests); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(base, "seed_meta.json"), &meta); err != nil {
		return nil, err
	}
	if len(meta) == 0 {
		meta = defaultMeta()
	}
	return New(history, requests, meta), nil
}

func (s *Store) ListProduction(_ context.Context) ([]core.ProductionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.ProductionRow(nil), s.history...), nil
}

func (s *Store) ListRequests(_ context.Context) ([]core.ProductionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.ProductionRow(nil), s.requests...), nil
}

func (s *Store) ListMeta(_ context.Context) ([]core.MetadataOption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.MetadataOption(nil), s.meta...), nil
}

// AppendRow stores the row and returns a synthetic row reference.
func (s *Store) AppendRow(_ context.Context, e core.Entry) (string, error) {
	if !e.Mode.Valid() {
		return "", fmt.Errorf("%w: %q", core.ErrInvalidMode, e.Mode)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(e)
	return fmt.Sprintf("mem:%d", s.seq), nil
}

// AppendRows stores all entries or none of them.
func (s *Store) AppendRows(_ context.Context, entries []core.Entry) error {
	for i, e := range entries {
		if !e.Mode.Valid() {
			return fmt.Errorf("row %d: %w: %q", i+1, core.ErrInvalidMode, e.Mode)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.appendLocked(e)
	}
	return nil
}

// ReplaceBatch drops the batch's previous rows from its collection and
// appends the new ones.
func (s *Store) ReplaceBatch(_ context.Context, b core.Batch) error {
	if err := b.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	target := s.collection(b.Mode)
	kept := core.WithoutRows(*target, b.Previous)
	*target = append(kept, b.Rows...)
	return nil
}

func (s *Store) appendLocked(e core.Entry) {
	c := s.collection(e.Mode)
	*c = append(*c, e.Row)
	s.seq++
}

func (s *Store) collection(m core.Mode) *[]core.ProductionRow {
	if m == core.ModeRequest {
		return &s.requests
	}
	return &s.history
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func defaultMeta() []core.MetadataOption {
	return []core.MetadataOption{
		{Category: core.CategoryProcess, Name: "Foaming", Alias: "Foam", Group: core.GroupLeft},
		{Category: core.CategoryProcess, Name: "Wire", Alias: "Wire", Group: core.GroupLeft},
		{Category: core.CategoryProcess, Name: "Finishing", Alias: "Fin", Group: core.GroupRight},
		{Category: core.CategoryProcess, Name: "Elbow", Alias: "Elb", Group: core.GroupRight},
		{Category: core.CategoryType, Name: "PVC", Alias: "PVC"},
		{Category: core.CategoryType, Name: "HDPE", Alias: "HD"},
		{Category: core.CategoryLine, Name: "Line 1", Alias: "L1"},
		{Category: core.CategoryLine, Name: "Line 2", Alias: "L2"},
	}
}
