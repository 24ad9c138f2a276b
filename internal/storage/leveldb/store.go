// Package leveldb implements storage.Port on an embedded LevelDB database.
//
// Keys are namespaced with a prefix so that several ports can share one
// database file, in the same way as a pool handle.
package leveldb

import (
	"context"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	ldb_opt "github.com/syndtr/goleveldb/leveldb/opt"
	ldb_storage "github.com/syndtr/goleveldb/leveldb/storage"

	"ledgerlib/internal/storage"
)

// DefaultPrefix namespaces catalog keys inside the database.
const DefaultPrefix = "C"

// Store is a LevelDB-backed storage.Port.
type Store struct {
	mu       sync.RWMutex
	prefix   []byte
	database *leveldb.DB
}

var (
	_ storage.Port    = (*Store)(nil)
	_ storage.Batcher = (*Store)(nil)
)

// Open opens (or creates) the database at path.
func Open(path, prefix string) (*Store, error) {
	db, err := leveldb.OpenFile(path, &ldb_opt.Options{
		ErrorIfMissing: false,
	})
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return newStore(db, prefix), nil
}

// OpenMemory opens a database held entirely in memory.
func OpenMemory(prefix string) (*Store, error) {
	db, err := leveldb.Open(ldb_storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("open memory leveldb: %w", err)
	}
	return newStore(db, prefix), nil
}

func newStore(db *leveldb.DB, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{prefix: []byte(prefix), database: db}
}

// prepend the prefix onto the key
func (s *Store) prefixKey(key string) []byte {
	prefixed := make([]byte, len(s.prefix), len(s.prefix)+len(key))
	copy(prefixed, s.prefix)
	return append(prefixed, key...)
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.database == nil {
		return nil, false, storage.ErrClosed
	}
	value, err := s.database.Get(s.prefixKey(key), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("leveldb get %q: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.database == nil {
		return storage.ErrClosed
	}
	if err := s.database.Put(s.prefixKey(key), value, nil); err != nil {
		return fmt.Errorf("leveldb put %q: %w", key, err)
	}
	return nil
}

// SetBatch writes all entries in one LevelDB batch.
func (s *Store) SetBatch(_ context.Context, writes []storage.Write) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.database == nil {
		return storage.ErrClosed
	}
	batch := new(leveldb.Batch)
	for _, w := range writes {
		batch.Put(s.prefixKey(w.Key), w.Value)
	}
	if err := s.database.Write(batch, &ldb_opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("leveldb write batch: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.database == nil {
		return nil
	}
	err := s.database.Close()
	s.database = nil
	return err
}
