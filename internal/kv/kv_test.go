package kv

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend struct {
	name string
	open func(t *testing.T) Store
}

func backends() []backend {
	return []backend{
		{"memory", func(*testing.T) Store { return NewMemory() }},
		{"badger", func(t *testing.T) Store {
			s, err := OpenBadger(t.TempDir(), nil)
			require.NoError(t, err)
			return s
		}},
		{"badger-inmemory", func(t *testing.T) Store {
			s, err := openBadgerInMemory()
			require.NoError(t, err)
			return s
		}},
		{"sqlite", func(t *testing.T) Store {
			s, err := OpenSQLite(filepath.Join(t.TempDir(), "kv.db"), nil)
			require.NoError(t, err)
			return s
		}},
	}
}

func TestStore_Contract(t *testing.T) {
	ctx := context.Background()

	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			defer s.Close()

			_, ok, err := s.Get(ctx, "books")
			require.NoError(t, err)
			assert.False(t, ok, "absent key")

			require.NoError(t, s.Set(ctx, "books", "[]"))
			v, ok, err := s.Get(ctx, "books")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "[]", v)

			require.NoError(t, s.Set(ctx, "books", `[{"id":"abc123"}]`))
			v, _, err = s.Get(ctx, "books")
			require.NoError(t, err)
			assert.Equal(t, `[{"id":"abc123"}]`, v, "overwrite")

			require.NoError(t, s.Remove(ctx, "books"))
			_, ok, err = s.Get(ctx, "books")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Remove(ctx, "never-set"), "removing an absent key is fine")
		})
	}
}

func TestStore_KeysByPrefix(t *testing.T) {
	ctx := context.Background()

	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			defer s.Close()

			for _, k := range []string{
				"enrichment_retry:9780000000002",
				"enrichment_queue",
				"enrichment_retry:9780000000001",
				"enrichment_retry%x",
				"books",
			} {
				require.NoError(t, s.Set(ctx, k, "1"))
			}

			keys, err := s.Keys(ctx, "enrichment_retry:")
			require.NoError(t, err)
			assert.Equal(t, []string{"enrichment_retry:9780000000001", "enrichment_retry:9780000000002"}, keys)

			all, err := s.Keys(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, 5)
			assert.Equal(t, "books", all[0])
		})
	}
}

func TestStore_ClosedStoreFails(t *testing.T) {
	ctx := context.Background()

	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			require.NoError(t, s.Close())

			assert.ErrorIs(t, s.Set(ctx, "k", "v"), ErrClosed)
		})
	}
}

func TestStore_Persistence(t *testing.T) {
	ctx := context.Background()

	t.Run("badger", func(t *testing.T) {
		dir := t.TempDir()
		s, err := OpenBadger(dir, nil)
		require.NoError(t, err)
		require.NoError(t, s.Set(ctx, "enrichment_queue", `["9780000000001"]`))
		require.NoError(t, s.Close())

		s, err = OpenBadger(dir, nil)
		require.NoError(t, err)
		defer s.Close()
		v, ok, err := s.Get(ctx, "enrichment_queue")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, `["9780000000001"]`, v)
	})

	t.Run("sqlite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "kv.db")
		s, err := OpenSQLite(path, nil)
		require.NoError(t, err)
		require.NoError(t, s.Set(ctx, "enrichment_retry:9780000000001", "2"))
		require.NoError(t, s.Close())

		s, err = OpenSQLite(path, nil)
		require.NoError(t, err)
		defer s.Close()
		v, ok, err := s.Get(ctx, "enrichment_retry:9780000000001")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "2", v)
	})
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	type status struct {
		BookID string `json:"bookId"`
		Done   bool   `json:"done"`
	}

	_, ok, err := GetJSON[[]status](ctx, s, "metadata_status")
	require.NoError(t, err)
	assert.False(t, ok)

	in := []status{{BookID: "abc123", Done: true}}
	require.NoError(t, SetJSON(ctx, s, "metadata_status", in))

	out, ok, err := GetJSON[[]status](ctx, s, "metadata_status")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, in, out)

	require.NoError(t, s.Set(ctx, "metadata_status", "{not json"))
	_, ok, err = GetJSON[[]status](ctx, s, "metadata_status")
	assert.True(t, ok)
	assert.ErrorContains(t, err, "metadata_status")
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Go(func() {
			key := "k" + string(rune('a'+i%26))
			_ = s.Set(ctx, key, "v")
			_, _, _ = s.Get(ctx, key)
			_, _ = s.Keys(ctx, "k")
		})
	}
	wg.Wait()

	keys, err := s.Keys(ctx, "k")
	require.NoError(t, err)
	assert.Len(t, keys, 26)
}
