/*Package store is the entity store adapter of the gateway.

A Store resolves an entity type name such as "sale.order" to a Collection. Collections
are schema-less: every record maps field names to dynamically typed values and is
identified by an integer id that is unique within its entity type.

The set of entity types a store serves is fixed when the store is built. Callers probe
it with Models or Supports instead of relying on runtime failures.
*/
package store

import (
	"context"
	"errors"
)

var (
	// ErrModelNotFound is returned by Resolve for entity types the store does not serve
	ErrModelNotFound = errors.New("model not found")
	// ErrNotFound is returned when a record with the given id does not exist
	ErrNotFound = errors.New("record not found")
	// ErrInvalidDomain is returned for conditions with an unknown operator or an unusable value
	ErrInvalidDomain = errors.New("invalid domain")
)

// reserved fields are maintained by the store and cannot be written by callers
const (
	FieldID          = "id"
	FieldCreateDate  = "create_date"
	FieldWriteDate   = "write_date"
	FieldDisplayName = "display_name"
	FieldName        = "name"
)

// Store resolves entity type names to collections
type Store interface {
	// Resolve returns the collection for an entity type, or ErrModelNotFound
	Resolve(name string) (Collection, error)
	// Models returns the names of all entity types the store serves in ascending order
	Models() []string
}

// Collection provides search and write access to the records of one entity type
type Collection interface {
	// Name returns the entity type name
	Name() string
	// SearchRead returns all records matching the domain, ordered by id. If fields is empty,
	// all stored fields are returned. The id is always part of the result.
	SearchRead(ctx context.Context, domain Domain, fields []string) ([]Record, error)
	// Create stores a new record and returns its id
	Create(ctx context.Context, values Record) (int64, error)
	// Update merges values into the record with the given id. Fields not in values are kept.
	Update(ctx context.Context, id int64, values Record) error
	// Delete removes the record with the given id and returns its last state
	Delete(ctx context.Context, id int64) (Record, error)
}

// Supports returns true if the store serves all the given entity types
func Supports(s Store, names ...string) bool {
	for _, name := range names {
		if _, err := s.Resolve(name); err != nil {
			return false
		}
	}
	return true
}
