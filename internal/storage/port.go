// internal/storage/port.go
package storage

import (
	"context"
	"errors"
)

// ErrClosed is returned by ports that have been closed.
var ErrClosed = errors.New("storage: port closed")

// Port is the durable key/value map provided by the host. A missing key is
// reported with ok == false and a nil error.
type Port interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
}

// Write is a single key/value assignment.
type Write struct {
	Key   string
	Value []byte
}

// Batcher is implemented by ports that can apply several writes atomically.
type Batcher interface {
	SetBatch(ctx context.Context, writes []Write) error
}

// Apply commits writes to p, atomically when p is a Batcher and in order
// otherwise.
func Apply(ctx context.Context, p Port, writes []Write) error {
	if len(writes) == 0 {
		return nil
	}
	if b, ok := p.(Batcher); ok {
		return b.SetBatch(ctx, writes)
	}
	for _, w := range writes {
		if err := p.Set(ctx, w.Key, w.Value); err != nil {
			return err
		}
	}
	return nil
}
