// internal/catalog/service.go
package catalog

import (
	"context"

	"ledgerlib/internal/journal"
)

// Service defines the interface for the catalog service.
type Service interface {
	CreateItem(ctx context.Context, title, owner string) (uint32, error)
	GetItem(ctx context.Context, id uint32) (*Item, bool, error)
	Loan(ctx context.Context, id uint32) error
	ReturnItem(ctx context.Context, id uint32) error
	Reserve(ctx context.Context, id uint32) error
	SetStatus(ctx context.Context, id uint32, status Status) error
	ListAll(ctx context.Context) ([]Item, error)
	ListAvailable(ctx context.Context) ([]Item, error)
	History(ctx context.Context, id uint32) ([]journal.Event, error)
}
