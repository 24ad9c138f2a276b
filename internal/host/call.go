package host

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"ledgerlib/internal/journal"
	"ledgerlib/internal/storage"
)

// Call is the storage view handed to one invocation. Reads see the call's own
// pending writes first, then the backing port. Nothing reaches the backing
// port until the invocation returns successfully.
type Call struct {
	id       uuid.UUID
	function string
	backing  storage.Port
	pending  map[string][]byte
	order    []string
	events   []journal.Event
}

var _ storage.Port = (*Call)(nil)

func newCall(id uuid.UUID, function string, backing storage.Port) *Call {
	return &Call{
		id:       id,
		function: function,
		backing:  backing,
		pending:  make(map[string][]byte),
	}
}

// ID returns the invocation ID.
func (c *Call) ID() uuid.UUID { return c.id }

// Function returns the name of the invoked entry point.
func (c *Call) Function() string { return c.function }

func (c *Call) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok := c.pending[key]; ok {
		return append([]byte(nil), v...), true, nil
	}
	return c.backing.Get(ctx, key)
}

func (c *Call) Set(_ context.Context, key string, value []byte) error {
	if _, ok := c.pending[key]; !ok {
		c.order = append(c.order, key)
	}
	c.pending[key] = append([]byte(nil), value...)
	return nil
}

// Emit records an event for itemID. Events are journaled only if the call
// commits.
func (c *Call) Emit(itemID uint32, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	c.events = append(c.events, journal.Event{
		InvocationID: c.id,
		ItemID:       itemID,
		EventType:    eventType,
		EventData:    data,
	})
	return nil
}

// writes returns pending writes in first-write order.
func (c *Call) writes() []storage.Write {
	out := make([]storage.Write, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, storage.Write{Key: k, Value: c.pending[k]})
	}
	return out
}

// eventsByItem groups events per item, preserving emission order, with items
// in ascending order.
func (c *Call) eventsByItem() ([]uint32, map[uint32][]journal.Event) {
	grouped := make(map[uint32][]journal.Event)
	var items []uint32
	for _, e := range c.events {
		if _, ok := grouped[e.ItemID]; !ok {
			items = append(items, e.ItemID)
		}
		grouped[e.ItemID] = append(grouped[e.ItemID], e)
	}
	sort.Slice(items, func(i, j int) bool { return items[i] < items[j] })
	return items, grouped
}
