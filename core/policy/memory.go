package policy

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrMissingModel is returned when an entry without model is stored
var ErrMissingModel = errors.New("policy entry without model")

// MemoryTable is an AdminTable kept in process memory
type MemoryTable struct {
	mutex   sync.RWMutex
	entries map[string]Entry
}

// NewMemoryTable returns a table with the given entries
func NewMemoryTable(entries ...Entry) *MemoryTable {
	t := &MemoryTable{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		t.entries[e.Model] = e
	}
	return t
}

// Lookup implements Table
func (t *MemoryTable) Lookup(ctx context.Context, model string) (*Entry, error) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	e, ok := t.entries[model]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

// Put implements AdminTable
func (t *MemoryTable) Put(ctx context.Context, entry Entry) error {
	if entry.Model == "" {
		return ErrMissingModel
	}
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.entries[entry.Model] = entry
	return nil
}

// Delete implements AdminTable
func (t *MemoryTable) Delete(ctx context.Context, model string) (bool, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	_, ok := t.entries[model]
	delete(t.entries, model)
	return ok, nil
}

// List implements AdminTable
func (t *MemoryTable) List(ctx context.Context) ([]Entry, error) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	res := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		res = append(res, e)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Model < res[j].Model })
	return res, nil
}
