package catalog

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"ledgerlib/internal/storage"
)

// CounterKey holds the next identifier to allocate.
const CounterKey = "next_id"

// ItemKey is the storage key of item id.
func ItemKey(id uint32) string {
	return "item/" + strconv.FormatUint(uint64(id), 10)
}

// Ledger is the per-call view of storage an entry point runs against.
type Ledger interface {
	storage.Port
	Emit(itemID uint32, eventType string, payload any) error
}

// nextID reads the allocation counter. An absent counter means no item has
// been created yet, so the first ID is 1.
func nextID(ctx context.Context, port storage.Port) (uint32, error) {
	raw, ok, err := port.Get(ctx, CounterKey)
	if err != nil {
		return 0, fmt.Errorf("read counter: %w", err)
	}
	if !ok {
		return 1, nil
	}
	if len(raw) != 4 {
		return 0, fmt.Errorf("read counter: corrupt value of %d bytes", len(raw))
	}
	next := binary.BigEndian.Uint32(raw)
	if next == 0 {
		return 0, fmt.Errorf("read counter: corrupt zero value")
	}
	return next, nil
}

func putCounter(ctx context.Context, port storage.Port, next uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], next)
	if err := port.Set(ctx, CounterKey, buf[:]); err != nil {
		return fmt.Errorf("write counter: %w", err)
	}
	return nil
}

func getRecord(ctx context.Context, port storage.Port, id uint32) (*Item, bool, error) {
	raw, ok, err := port.Get(ctx, ItemKey(id))
	if err != nil {
		return nil, false, fmt.Errorf("read item %d: %w", id, err)
	}
	if !ok {
		return nil, false, nil
	}
	item := &Item{}
	if err := json.Unmarshal(raw, item); err != nil {
		return nil, false, fmt.Errorf("decode item %d: %w", id, err)
	}
	return item, true, nil
}

// putRecord writes the whole record; there is no field-level update.
func putRecord(ctx context.Context, port storage.Port, item *Item) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode item %d: %w", item.ID, err)
	}
	if err := port.Set(ctx, ItemKey(item.ID), raw); err != nil {
		return fmt.Errorf("write item %d: %w", item.ID, err)
	}
	return nil
}

func createItem(ctx context.Context, l Ledger, title, owner string) (uint32, error) {
	if title == "" || owner == "" {
		return 0, ErrInvalidData
	}
	id, err := nextID(ctx, l)
	if err != nil {
		return 0, err
	}
	if id == math.MaxUint32 {
		return 0, fmt.Errorf("allocate id: identifier space exhausted")
	}

	item := &Item{ID: id, Title: title, Owner: owner, Status: StatusAvailable}
	if err := putRecord(ctx, l, item); err != nil {
		return 0, err
	}
	if err := putCounter(ctx, l, id+1); err != nil {
		return 0, err
	}
	if err := l.Emit(id, EventItemCreated, ItemCreatedEvent{
		ID:     id,
		Title:  title,
		Owner:  owner,
		Status: item.Status,
	}); err != nil {
		return 0, err
	}
	return id, nil
}

// overwriteStatus replaces the status of an existing item.
func overwriteStatus(ctx context.Context, l Ledger, item *Item, op Operation, status Status) error {
	from := item.Status
	item.Status = status
	if err := putRecord(ctx, l, item); err != nil {
		return err
	}
	return l.Emit(item.ID, EventItemStatusChanged, ItemStatusChangedEvent{
		ID:        item.ID,
		Operation: op,
		From:      from,
		To:        status,
	})
}

func setStatus(ctx context.Context, l Ledger, id uint32, status Status) error {
	if !status.Valid() {
		return ErrInvalidData
	}
	item, ok, err := getRecord(ctx, l, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return overwriteStatus(ctx, l, item, OpSet, status)
}

// applyTransition checks existence before the status precondition.
func applyTransition(ctx context.Context, l Ledger, id uint32, op Operation) error {
	item, ok, err := getRecord(ctx, l, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	next, err := Next(op, item.Status)
	if err != nil {
		return err
	}
	return overwriteStatus(ctx, l, item, op, next)
}

// scanPrealloc bounds the initial capacity of a scan; the counter is read
// from storage and may be arbitrarily large.
const scanPrealloc = 1024

// scan reads every allocated ID in ascending order and keeps the items match
// accepts. IDs with no record are skipped. A cancelled ctx stops the scan.
func scan(ctx context.Context, port storage.Port, match func(*Item) bool) ([]Item, error) {
	next, err := nextID(ctx, port)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, min(next-1, scanPrealloc))
	for id := uint32(1); id < next; id++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("scan items: %w", err)
		}
		item, ok, err := getRecord(ctx, port, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if match == nil || match(item) {
			items = append(items, *item)
		}
	}
	return items, nil
}
