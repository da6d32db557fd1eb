package policy

import (
	"context"
	"fmt"

	"github.com/relabs-tech/modelgate/core/registry"
)

// RegistryPrefix is the registry prefix under which policy entries are stored
const RegistryPrefix = "policy"

// RegistryTable is an AdminTable persisted in the registry. Every lookup reads the
// registry, so changes made by other gateway instances are visible immediately.
type RegistryTable struct {
	accessor registry.Accessor
}

// NewRegistryTable returns a table stored in reg
func NewRegistryTable(reg registry.Registry) *RegistryTable {
	return &RegistryTable{accessor: reg.Accessor(RegistryPrefix)}
}

// Lookup implements Table
func (t *RegistryTable) Lookup(ctx context.Context, model string) (*Entry, error) {
	var e Entry
	timestamp, err := t.accessor.Read(ctx, model, &e)
	if err != nil {
		return nil, fmt.Errorf("cannot read policy of %s: %w", model, err)
	}
	if timestamp.IsZero() {
		return nil, nil
	}
	e.Model = model
	return &e, nil
}

// Put implements AdminTable
func (t *RegistryTable) Put(ctx context.Context, entry Entry) error {
	if entry.Model == "" {
		return ErrMissingModel
	}
	return t.accessor.Write(ctx, entry.Model, entry)
}

// Delete implements AdminTable
func (t *RegistryTable) Delete(ctx context.Context, model string) (bool, error) {
	return t.accessor.Delete(ctx, model)
}

// List implements AdminTable
func (t *RegistryTable) List(ctx context.Context) ([]Entry, error) {
	keys, err := t.accessor.Keys(ctx)
	if err != nil {
		return nil, err
	}
	res := make([]Entry, 0, len(keys))
	for _, key := range keys {
		e, err := t.Lookup(ctx, key)
		if err != nil {
			return nil, err
		}
		if e != nil {
			res = append(res, *e)
		}
	}
	return res, nil
}
