// internal/chaos/faults.go
package chaos

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"ledgerlib/internal/storage"
)

// ErrInjected is returned by a FaultyPort when it decides to fail an operation.
var ErrInjected = errors.New("chaos: injected storage fault")

// FaultyPort wraps a storage port and fails or delays operations while
// faults are injected. It is a storage.Batcher so a failed commit fails whole.
type FaultyPort struct {
	inner storage.Port

	mu       sync.Mutex
	rng      *rand.Rand
	failRate float64
	latency  time.Duration
	injected int
}

var (
	_ storage.Port    = (*FaultyPort)(nil)
	_ storage.Batcher = (*FaultyPort)(nil)
)

// NewFaultyPort wraps inner. The seed makes the fault sequence reproducible.
func NewFaultyPort(inner storage.Port, seed int64) *FaultyPort {
	return &FaultyPort{
		inner: inner,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// Inject starts failing a failRate fraction of operations and delaying every
// operation by latency.
func (p *FaultyPort) Inject(failRate float64, latency time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failRate = failRate
	p.latency = latency
}

// Heal stops all fault injection.
func (p *FaultyPort) Heal() {
	p.Inject(0, 0)
}

// Injected reports how many operations have been failed so far.
func (p *FaultyPort) Injected() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.injected
}

func (p *FaultyPort) disturb(ctx context.Context) error {
	p.mu.Lock()
	latency := p.latency
	fail := p.failRate > 0 && p.rng.Float64() < p.failRate
	if fail {
		p.injected++
	}
	p.mu.Unlock()

	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	if fail {
		return ErrInjected
	}
	return nil
}

func (p *FaultyPort) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := p.disturb(ctx); err != nil {
		return nil, false, err
	}
	return p.inner.Get(ctx, key)
}

func (p *FaultyPort) Set(ctx context.Context, key string, value []byte) error {
	if err := p.disturb(ctx); err != nil {
		return err
	}
	return p.inner.Set(ctx, key, value)
}

func (p *FaultyPort) SetBatch(ctx context.Context, writes []storage.Write) error {
	if err := p.disturb(ctx); err != nil {
		return err
	}
	return storage.Apply(ctx, p.inner, writes)
}
