// Package notify publishes record change notifications to message brokers.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/relabs-tech/modelgate/core"
	"github.com/relabs-tech/modelgate/core/logger"
)

// message is the wire format of a notification
type message struct {
	Resource   string          `json:"resource"`
	Operation  core.Operation  `json:"operation"`
	ResourceID int64           `json:"resource_id"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	RequestID  string          `json:"request_id,omitempty"`
}

// Encode returns the JSON message body of a notification
func Encode(ctx context.Context, n core.Notification) ([]byte, error) {
	m := message{
		Resource:   n.Resource,
		Operation:  n.Operation,
		ResourceID: n.ResourceID,
		Payload:    n.Payload,
		CreatedAt:  n.CreatedAt.UTC(),
		RequestID:  logger.RequestIDFromContext(ctx),
	}
	if len(m.Payload) > 0 && !json.Valid(m.Payload) {
		return nil, fmt.Errorf("payload of %s %d is not valid JSON", n.Resource, n.ResourceID)
	}
	return json.MarshalWithOption(m, json.DisableHTMLEscape())
}

// Key returns the partitioning key of a notification, "<model>:<id>"
func Key(n core.Notification) string {
	return n.Resource + ":" + strconv.FormatInt(n.ResourceID, 10)
}

// Discard is a notifier that drops all notifications
var Discard core.Notifier = core.NotifierFunc(func(ctx context.Context, n core.Notification) error {
	logger.FromContext(ctx).Debugf("discarding %s notification for %s", n.Operation, Key(n))
	return nil
})
