// Package event defines the change-feed event delivered to subscribed
// sessions after every persisted mutation. The feed makes no ordering or
// delivery guarantee beyond "eventually, per row"; consumers must merge
// events idempotently.
package event

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Event is one change-feed notification. Row holds a deep copy of the
// post-mutation record (nil for deletes) so subscribers never alias the
// engine's working state.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Table     string    `json:"table"`
	RowID     string    `json:"row_id"`
	Row       any       `json:"row,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// New creates a change-feed event with a generated ID and current timestamp.
func New(eventType Type, table, rowID string, row any) *Event {
	return &Event{
		ID:        generateID(),
		Type:      eventType,
		Table:     table,
		RowID:     rowID,
		Row:       row,
		Timestamp: time.Now().UTC(),
	}
}

// generateID creates a unique ID from the current time and random bytes.
func generateID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), hex.EncodeToString(b))
}
