/*Package policy holds the access policy table of the gateway.

Every entity type that is exposed through the gateway has exactly one Entry, which lists
the HTTP methods permitted on it. An entity type without an entry is not exposed at all.
Entries are only created by administrators, never implicitly by a request.
*/
package policy

import (
	"context"
	"net/http"
	"strings"
)

// Entry is the access policy of one entity type
type Entry struct {
	Model       string `json:"model"`
	AllowGet    bool   `json:"allow_get"`
	AllowPost   bool   `json:"allow_post"`
	AllowPut    bool   `json:"allow_put"`
	AllowDelete bool   `json:"allow_delete"`
}

// Allows returns true if the HTTP method is enabled by the entry. Methods
// other than GET, POST, PUT and DELETE are never allowed.
func (e *Entry) Allows(method string) bool {
	if e == nil {
		return false
	}
	switch strings.ToUpper(method) {
	case http.MethodGet:
		return e.AllowGet
	case http.MethodPost:
		return e.AllowPost
	case http.MethodPut:
		return e.AllowPut
	case http.MethodDelete:
		return e.AllowDelete
	}
	return false
}

// Methods returns the enabled methods
func (e *Entry) Methods() []string {
	methods := []string{}
	for _, m := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete} {
		if e.Allows(m) {
			methods = append(methods, m)
		}
	}
	return methods
}

// Table looks up access policies. Lookup returns nil and no error if the entity
// type has no entry.
type Table interface {
	Lookup(ctx context.Context, model string) (*Entry, error)
}

// AdminTable is a Table that can be modified by administrators
type AdminTable interface {
	Table
	// Put creates or replaces the entry for entry.Model
	Put(ctx context.Context, entry Entry) error
	// Delete removes the entry of the model and reports whether it existed
	Delete(ctx context.Context, model string) (bool, error)
	// List returns all entries ordered by model
	List(ctx context.Context) ([]Entry, error)
}
