// internal/catalog/implementation.go
package catalog

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"ledgerlib/internal/host"
	"ledgerlib/internal/journal"
)

// service implements the Service interface.
type service struct {
	env   *host.Env
	calls metric.Int64Counter
}

// ServiceOption configures a catalog service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	meterProvider metric.MeterProvider
}

// WithMeterProvider records call counts on mp instead of the global provider.
func WithMeterProvider(mp metric.MeterProvider) ServiceOption {
	return func(o *serviceOptions) { o.meterProvider = mp }
}

// NewService creates a catalog service whose entry points run as host calls.
func NewService(env *host.Env, opts ...ServiceOption) Service {
	o := serviceOptions{meterProvider: otel.GetMeterProvider()}
	for _, opt := range opts {
		opt(&o)
	}
	calls, err := o.meterProvider.Meter("ledgerlib/catalog").Int64Counter("catalog.calls",
		metric.WithDescription("Catalog entry point invocations by outcome."),
	)
	if err != nil {
		calls, _ = noop.NewMeterProvider().Meter("ledgerlib/catalog").Int64Counter("catalog.calls")
	}
	return &service{env: env, calls: calls}
}

func outcome(err error) string {
	switch Code(err) {
	case CodeNotFound:
		return "not_found"
	case CodeNotAvailable:
		return "not_available"
	case CodeInvalidData:
		return "invalid_data"
	}
	if err != nil {
		return "error"
	}
	return "ok"
}

// invoke runs fn as one host call and records its outcome.
func (s *service) invoke(ctx context.Context, function string, fn func(ctx context.Context, l Ledger) error) error {
	_, err := s.env.Invoke(ctx, function, func(ctx context.Context, call *host.Call) error {
		return fn(ctx, call)
	})
	s.calls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("function", function),
		attribute.String("outcome", outcome(err)),
	))
	return err
}

// CreateItem adds an Available item and returns its ID.
func (s *service) CreateItem(ctx context.Context, title, owner string) (uint32, error) {
	var id uint32
	err := s.invoke(ctx, "create_item", func(ctx context.Context, l Ledger) error {
		var err error
		id, err = createItem(ctx, l, title, owner)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetItem looks an item up. A missing item is not an error.
func (s *service) GetItem(ctx context.Context, id uint32) (*Item, bool, error) {
	var (
		item *Item
		ok   bool
	)
	err := s.invoke(ctx, "get_item", func(ctx context.Context, l Ledger) error {
		var err error
		item, ok, err = getRecord(ctx, l, id)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return item, ok, nil
}

func (s *service) Loan(ctx context.Context, id uint32) error {
	return s.invoke(ctx, "loan", func(ctx context.Context, l Ledger) error {
		return applyTransition(ctx, l, id, OpLoan)
	})
}

func (s *service) ReturnItem(ctx context.Context, id uint32) error {
	return s.invoke(ctx, "return_item", func(ctx context.Context, l Ledger) error {
		return applyTransition(ctx, l, id, OpReturn)
	})
}

func (s *service) Reserve(ctx context.Context, id uint32) error {
	return s.invoke(ctx, "reserve", func(ctx context.Context, l Ledger) error {
		return applyTransition(ctx, l, id, OpReserve)
	})
}

// SetStatus overwrites an item's status without consulting the transition
// table.
func (s *service) SetStatus(ctx context.Context, id uint32, status Status) error {
	return s.invoke(ctx, "set_status", func(ctx context.Context, l Ledger) error {
		return setStatus(ctx, l, id, status)
	})
}

func (s *service) ListAll(ctx context.Context) ([]Item, error) {
	var items []Item
	err := s.invoke(ctx, "list_all", func(ctx context.Context, l Ledger) error {
		var err error
		items, err = scan(ctx, l, nil)
		return err
	})
	return items, err
}

func (s *service) ListAvailable(ctx context.Context) ([]Item, error) {
	var items []Item
	err := s.invoke(ctx, "list_available", func(ctx context.Context, l Ledger) error {
		var err error
		items, err = scan(ctx, l, func(item *Item) bool {
			return item.Status == StatusAvailable
		})
		return err
	})
	return items, err
}

// History returns the journaled events of an item, oldest first.
func (s *service) History(ctx context.Context, id uint32) ([]journal.Event, error) {
	j := s.env.Journal()
	if j == nil {
		return nil, ErrHistoryUnavailable
	}
	_, ok, err := s.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	events, err := j.LoadEvents(ctx, id, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	return events, nil
}
