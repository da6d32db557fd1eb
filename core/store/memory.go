package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a store that keeps all records in process memory. It is used in tests, demos
// and when the gateway is embedded without a database.
type MemoryStore struct {
	collections map[string]*MemoryCollection
	now         func() time.Time
}

// NewMemoryStore creates an in-memory store serving the given entity types
func NewMemoryStore(models ...string) *MemoryStore {
	s := &MemoryStore{
		collections: make(map[string]*MemoryCollection, len(models)),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, m := range models {
		s.collections[m] = &MemoryCollection{
			name:    m,
			records: map[int64]Record{},
			store:   s,
		}
	}
	return s
}

// Resolve implements Store
func (s *MemoryStore) Resolve(name string) (Collection, error) {
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}
	return c, nil
}

// Models implements Store
func (s *MemoryStore) Models() []string {
	models := make([]string, 0, len(s.collections))
	for m := range s.collections {
		models = append(models, m)
	}
	sort.Strings(models)
	return models
}

// MemoryCollection is the collection of one entity type in a MemoryStore
type MemoryCollection struct {
	name    string
	store   *MemoryStore
	mutex   sync.RWMutex
	lastID  int64
	records map[int64]Record
}

// Name implements Collection
func (c *MemoryCollection) Name() string {
	return c.name
}

// SearchRead implements Collection
func (c *MemoryCollection) SearchRead(ctx context.Context, domain Domain, fields []string) ([]Record, error) {
	if err := domain.Validate(); err != nil {
		return nil, err
	}
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	ids := make([]int64, 0, len(c.records))
	for id := range c.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	res := []Record{}
	for _, id := range ids {
		record := c.records[id]
		if domain.Match(record) {
			res = append(res, Project(c.name, record, fields))
		}
	}
	return res, nil
}

// Create implements Collection
func (c *MemoryCollection) Create(ctx context.Context, values Record) (int64, error) {
	record := withoutReserved(values)
	now := c.store.now()

	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.lastID++
	record[FieldID] = c.lastID
	record[FieldCreateDate] = now
	record[FieldWriteDate] = now
	c.records[c.lastID] = record
	return c.lastID, nil
}

// Update implements Collection
func (c *MemoryCollection) Update(ctx context.Context, id int64, values Record) error {
	changes := withoutReserved(values)

	c.mutex.Lock()
	defer c.mutex.Unlock()
	record, ok := c.records[id]
	if !ok {
		return fmt.Errorf("%w: %s %d", ErrNotFound, c.name, id)
	}
	for k, v := range changes {
		record[k] = v
	}
	record[FieldWriteDate] = c.store.now()
	return nil
}

// Delete implements Collection
func (c *MemoryCollection) Delete(ctx context.Context, id int64) (Record, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	record, ok := c.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s %d", ErrNotFound, c.name, id)
	}
	delete(c.records, id)
	return record, nil
}
