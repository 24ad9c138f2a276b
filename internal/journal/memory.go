package journal

import (
	"context"
	"sync"
	"time"
)

// MemoryJournal keeps event streams in process memory.
type MemoryJournal struct {
	mu      sync.Mutex
	nextID  int64
	streams map[uint32][]Event
}

var _ Journal = (*MemoryJournal)(nil)

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{streams: make(map[uint32][]Event)}
}

func (j *MemoryJournal) AppendEvents(_ context.Context, itemID uint32, expectedVersion int, events []Event) error {
	if expectedVersion < 0 {
		return ErrInvalidVersion
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	stream := j.streams[itemID]
	if len(stream) != expectedVersion {
		return ErrConcurrencyConflict
	}
	now := time.Now().UTC()
	for i, event := range events {
		j.nextID++
		event.ID = j.nextID
		event.ItemID = itemID
		event.Version = expectedVersion + i + 1
		event.CreatedAt = now
		stream = append(stream, event)
	}
	j.streams[itemID] = stream
	return nil
}

func (j *MemoryJournal) LoadEvents(_ context.Context, itemID uint32, fromVersion, toVersion int) ([]Event, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var events []Event
	for _, event := range j.streams[itemID] {
		if event.Version < fromVersion {
			continue
		}
		if toVersion > 0 && event.Version > toVersion {
			break
		}
		events = append(events, event)
	}
	return events, nil
}

func (j *MemoryJournal) GetCurrentVersion(_ context.Context, itemID uint32) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.streams[itemID]), nil
}
