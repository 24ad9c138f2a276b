package main

import (
	"context"
	"fmt"
	"log"

	"ledgerlib/internal/config"
	"ledgerlib/internal/journal"
	"ledgerlib/internal/storage"
	"ledgerlib/internal/storage/leveldb"
	"ledgerlib/internal/storage/memory"
	"ledgerlib/internal/storage/s3kv"
	"ledgerlib/internal/storage/sqlkv"
)

type backend struct {
	port    storage.Port
	journal journal.Journal
	closers []func() error
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			log.Printf("Close storage: %v", err)
		}
	}
}

// openBackend selects the storage port for the configured driver. Postgres
// backed deployments keep the event journal in the same database; every other
// driver journals in memory.
func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	b := &backend{journal: journal.NewMemoryJournal()}

	switch cfg.StorageDriver {
	case config.DriverMemory:
		b.port = memory.NewStore()

	case config.DriverLevelDB:
		store, err := leveldb.Open(cfg.LevelDBPath, leveldb.DefaultPrefix)
		if err != nil {
			return nil, err
		}
		b.port = store
		b.closers = append(b.closers, store.Close)

	case config.DriverPostgres, config.DriverPgx:
		store, err := sqlkv.Open(ctx, cfg.StorageDriver, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		b.port = store
		b.closers = append(b.closers, store.Close)
		if cfg.JournalEvents {
			j, err := journal.NewPostgresJournal(ctx, store.DB())
			if err != nil {
				b.Close()
				return nil, fmt.Errorf("open journal: %w", err)
			}
			b.journal = j
		}

	case config.DriverSQLite:
		store, err := sqlkv.Open(ctx, sqlkv.DriverSQLite, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		b.port = store
		b.closers = append(b.closers, store.Close)

	case config.DriverS3:
		store, err := s3kv.New(ctx, s3kv.Config{
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
		if err != nil {
			return nil, err
		}
		b.port = store

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
	return b, nil
}
