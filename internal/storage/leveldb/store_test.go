package leveldb

import (
	"context"
	"path/filepath"
	"testing"

	"ledgerlib/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := OpenMemory("")
	require.NoError(t, err)
	defer s.Close()

	_, ok, err := s.Get(ctx, "next_id")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "next_id", []byte{0, 0, 0, 2}))
	v, ok, err := s.Get(ctx, "next_id")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte{0, 0, 0, 2}, v)
}

func TestStorePrefixesIsolate(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.leveldb")

	a, err := Open(path, "A")
	require.NoError(t, err)
	require.NoError(t, a.Set(ctx, "k", []byte("from-a")))
	require.NoError(t, a.Close())

	b, err := Open(path, "B")
	require.NoError(t, err)
	defer b.Close()
	_, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "prefix B must not see keys written under prefix A")
}

func TestStoreBatchAndReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "batch.leveldb")

	s, err := Open(path, "")
	require.NoError(t, err)
	require.NoError(t, storage.Apply(ctx, s, []storage.Write{
		{Key: "item/1", Value: []byte(`{"id":1}`)},
		{Key: "next_id", Value: []byte{0, 0, 0, 2}},
	}))
	require.NoError(t, s.Close())

	_, _, err = s.Get(ctx, "item/1")
	assert.ErrorIs(t, err, storage.ErrClosed)

	s, err = Open(path, "")
	require.NoError(t, err)
	defer s.Close()
	v, ok, err := s.Get(ctx, "item/1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"id":1}`, string(v))
}
