// Copyright © 2018 One Concern

// Package storetest provides a conformance check shared by all storage backends.
package storetest

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/oneconcern/branchwrite/pkg/errors"
	"github.com/oneconcern/branchwrite/pkg/storage"
	"github.com/oneconcern/branchwrite/pkg/storage/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises a store against the storage.Store contract.
//
// The store is cleared before and after the run.
func Run(t *testing.T, store storage.Store) {
	ctx := context.Background()
	require.NoError(t, store.Clear(ctx))
	defer func() {
		_ = store.Clear(ctx)
	}()

	require.NotEmpty(t, store.String())

	t.Run("put and get", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "sixteentons", strings.NewReader("this is the text"), storage.NoOverWrite))
		require.NoError(t, store.Put(ctx, "nested/seventeentons", strings.NewReader("this is the text for another thing"), storage.NoOverWrite))

		has, err := store.Has(ctx, "sixteentons")
		require.NoError(t, err)
		assert.True(t, has)

		has, err = store.Has(ctx, "fifteentons")
		require.NoError(t, err)
		assert.False(t, has)

		b, err := storage.ReadAll(ctx, store, "nested/seventeentons")
		require.NoError(t, err)
		assert.Equal(t, "this is the text for another thing", string(b))

		_, err = store.Get(ctx, "fifteentons")
		require.Error(t, err)
		assert.True(t, errors.Is(err, status.ErrNotExists))
	})

	t.Run("overwrite", func(t *testing.T) {
		err := store.Put(ctx, "sixteentons", strings.NewReader("other"), storage.NoOverWrite)
		require.Error(t, err)
		assert.True(t, errors.Is(err, status.ErrExists))

		require.NoError(t, store.Put(ctx, "sixteentons", strings.NewReader("short"), storage.OverWrite))
		b, err := storage.ReadAll(ctx, store, "sixteentons")
		require.NoError(t, err)
		assert.Equal(t, "short", string(b))
	})

	t.Run("ranged reads", func(t *testing.T) {
		payload := bytes.Repeat([]byte("0123456789"), 100)
		require.NoError(t, store.Put(ctx, "ranged", bytes.NewReader(payload), storage.OverWrite))

		rdr, err := store.GetAt(ctx, "ranged")
		require.NoError(t, err)

		buf := make([]byte, 15)
		n, err := rdr.ReadAt(buf, 5)
		require.NoError(t, err)
		assert.Equal(t, 15, n)
		assert.Equal(t, "567890123456789", string(buf))

		n, err = rdr.ReadAt(buf, 990)
		assert.Equal(t, 10, n)
		assert.Equal(t, io.EOF, err)
		assert.Equal(t, "0123456789", string(buf[:n]))

		_, err = store.GetAt(ctx, "fifteentons")
		require.Error(t, err)
		assert.True(t, errors.Is(err, status.ErrNotExists))
	})

	t.Run("keys", func(t *testing.T) {
		for _, key := range []string{"p/a/1", "p/a/2", "p/b/1", "p/c"} {
			require.NoError(t, store.Put(ctx, key, strings.NewReader(key), storage.OverWrite))
		}

		keys, err := store.Keys(ctx)
		require.NoError(t, err)
		assert.Subset(t, keys, []string{"sixteentons", "nested/seventeentons", "ranged", "p/a/1", "p/c"})

		page, next, err := store.KeysPrefix(ctx, "", "p/", "", 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"p/a/1", "p/a/2", "p/b/1"}, page)
		assert.Equal(t, "p/b/1", next)

		page, next, err = store.KeysPrefix(ctx, next, "p/", "", 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"p/c"}, page)
		assert.Empty(t, next)

		page, _, err = store.KeysPrefix(ctx, "", "p/", "/", 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"p/a/", "p/b/", "p/c"}, page)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "p/c"))
		require.NoError(t, store.Delete(ctx, "p/c"))

		has, err := store.Has(ctx, "p/c")
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("clear", func(t *testing.T) {
		require.NoError(t, store.Clear(ctx))
		keys, err := store.Keys(ctx)
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("reuse after clear", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "nested/a", strings.NewReader("a"), storage.NoOverWrite))
		require.NoError(t, store.Put(ctx, "b", strings.NewReader("b"), storage.NoOverWrite))

		keys, err := store.Keys(ctx)
		require.NoError(t, err)
		sort.Strings(keys)
		assert.Equal(t, []string{"b", "nested/a"}, keys)

		keys, next, err := store.KeysPrefix(ctx, "", "", "/", 0)
		require.NoError(t, err)
		assert.Empty(t, next)
		assert.Equal(t, []string{"b", "nested/"}, keys)
	})
}
