// Package host runs catalog entry points the way a contract runtime does: one
// call at a time, each against a private write buffer that is committed as a
// unit when the call succeeds and dropped when it fails.
package host

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ledgerlib/internal/journal"
	"ledgerlib/internal/storage"
)

// Receipt describes a committed invocation.
type Receipt struct {
	ID       uuid.UUID       `json:"id"`
	Function string          `json:"function"`
	Writes   int             `json:"writes"`
	Digest   Digest          `json:"-"`
	Events   []journal.Event `json:"events,omitempty"`
}

// Env serializes invocations against a backing storage port.
type Env struct {
	mu      sync.Mutex
	backing storage.Port
	journal journal.Journal
	logger  *log.Logger
	tracer  trace.Tracer
}

// Option configures an Env.
type Option func(*Env)

// WithJournal appends emitted events to j on commit.
func WithJournal(j journal.Journal) Option {
	return func(e *Env) { e.journal = j }
}

// WithLogger replaces the default logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Env) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTracerProvider sets the provider used for invocation spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Env) { e.tracer = tp.Tracer("ledgerlib/host") }
}

// New creates an Env over backing.
func New(backing storage.Port, opts ...Option) *Env {
	e := &Env{
		backing: backing,
		logger:  log.Default(),
		tracer:  otel.Tracer("ledgerlib/host"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Journal returns the configured journal, or nil.
func (e *Env) Journal() journal.Journal { return e.journal }

// Invoke runs fn as a single call. While fn runs no other invocation can start.
// If fn returns an error nothing it wrote is persisted and the error is
// returned unchanged.
func (e *Env) Invoke(ctx context.Context, function string, fn func(ctx context.Context, call *Call) error) (*Receipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := uuid.New()
	ctx, span := e.tracer.Start(ctx, "host.invoke",
		trace.WithAttributes(
			attribute.String("invocation.id", id.String()),
			attribute.String("invocation.function", function),
		),
	)
	defer span.End()

	call := newCall(id, function, e.backing)
	if err := fn(ctx, call); err != nil {
		span.SetAttributes(attribute.Bool("invocation.committed", false))
		span.SetStatus(codes.Error, err.Error())
		e.logger.Printf("invoke %s id=%s rejected: %v", function, id, err)
		return nil, err
	}

	writes := call.writes()
	receipt := &Receipt{
		ID:       id,
		Function: function,
		Writes:   len(writes),
		Digest:   DigestWrites(writes),
	}

	if err := storage.Apply(ctx, e.backing, writes); err != nil {
		span.SetStatus(codes.Error, err.Error())
		e.logger.Printf("invoke %s id=%s: failed to commit %d writes: %v", function, id, len(writes), err)
		return nil, fmt.Errorf("commit writes: %w", err)
	}

	// Writes are durable here. Journal failures are logged, not returned.
	events, err := e.appendEvents(ctx, call)
	if err != nil {
		span.RecordError(err)
		e.logger.Printf("invoke %s id=%s: failed to journal events: %v", function, id, err)
	}
	receipt.Events = events

	span.SetAttributes(
		attribute.Bool("invocation.committed", true),
		attribute.Int("invocation.writes", len(writes)),
		attribute.String("invocation.digest", receipt.Digest.String()),
	)
	if len(writes) > 0 {
		e.logger.Printf("invoke %s id=%s committed writes=%d digest=%s", function, id, len(writes), receipt.Digest)
	}
	return receipt, nil
}

func (e *Env) appendEvents(ctx context.Context, call *Call) ([]journal.Event, error) {
	if len(call.events) == 0 {
		return nil, nil
	}
	if e.journal == nil {
		return call.events, nil
	}
	items, grouped := call.eventsByItem()
	for _, itemID := range items {
		version, err := e.journal.GetCurrentVersion(ctx, itemID)
		if err != nil {
			return nil, err
		}
		if err := e.journal.AppendEvents(ctx, itemID, version, grouped[itemID]); err != nil {
			return nil, err
		}
	}
	return call.events, nil
}
