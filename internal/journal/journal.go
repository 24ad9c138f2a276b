// Package journal records the events emitted by committed catalog calls, one
// ordered stream per item.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrConcurrencyConflict = errors.New("concurrency conflict: version mismatch")
	ErrInvalidVersion      = errors.New("invalid version number")
)

// Event is one emitted event with its stream position.
type Event struct {
	ID           int64           `json:"id"`
	InvocationID uuid.UUID       `json:"invocation_id"`
	ItemID       uint32          `json:"item_id"`
	EventType    string          `json:"event_type"`
	EventData    json.RawMessage `json:"event_data"`
	Version      int             `json:"version"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Journal appends and loads per-item event streams with optimistic
// concurrency: an append succeeds only when expectedVersion matches the
// stream's current version.
type Journal interface {
	AppendEvents(ctx context.Context, itemID uint32, expectedVersion int, events []Event) error
	LoadEvents(ctx context.Context, itemID uint32, fromVersion, toVersion int) ([]Event, error)
	GetCurrentVersion(ctx context.Context, itemID uint32) (int, error)
}
