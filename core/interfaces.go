package core

import (
	"context"
	"time"
)

// Operation represents a gateway storage operation, one of Create, Read, Update, Delete, List
type Operation string

// all supported store operations
const (
	OperationCreate Operation = "create"
	OperationRead   Operation = "read"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
	OperationList   Operation = "list"
)

// Notification is a change event for one record of an entity type. It is sent
// after a successful create, update or delete.
type Notification struct {
	// Resource is the entity type name, e.g. "sale.order"
	Resource string `json:"resource"`
	// Operation is one of OperationCreate, OperationUpdate or OperationDelete
	Operation Operation `json:"operation"`
	// ResourceID is the integer id of the record
	ResourceID int64 `json:"resource_id"`
	// Payload is the JSON representation of the record after the operation. For
	// deletes it is the snapshot taken before the record was removed.
	Payload []byte `json:"payload"`
	// CreatedAt is the time the change was committed
	CreatedAt time.Time `json:"created_at"`
}

// Notifier is an interface to receive change notifications
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// NotifierFunc adapts an ordinary function to the Notifier interface
type NotifierFunc func(ctx context.Context, notification Notification) error

// Notify calls f(ctx, notification)
func (f NotifierFunc) Notify(ctx context.Context, notification Notification) error {
	return f(ctx, notification)
}
