// Copyright © 2018 One Concern

package localfs

import (
	"context"
	"strings"
	"testing"

	"github.com/oneconcern/branchwrite/pkg/storage"
	"github.com/oneconcern/branchwrite/pkg/storage/storetest"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemory()
	assert.Equal(t, "localfs@memory", store.String())
	storetest.Run(t, store)
}

func TestOsStore(t *testing.T) {
	dir := t.TempDir()
	store := NewAt(dir)
	assert.True(t, strings.HasPrefix(store.String(), "localfs@"))
	storetest.Run(t, store)
}

func TestReaderAtDoesNotHoldFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := New(fs)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "k", strings.NewReader("hello world"), storage.OverWrite))
	rdr, err := store.GetAt(ctx, "k")
	require.NoError(t, err)

	// the object may be replaced between reads
	require.NoError(t, store.Put(ctx, "k", strings.NewReader("HELLO WORLD"), storage.OverWrite))

	buf := make([]byte, 5)
	n, err := rdr.ReadAt(buf, 6)
	require.NoError(t, err)
	assert.Equal(t, "WORLD", string(buf[:n]))

	require.NoError(t, store.Delete(ctx, "k"))
	_, err = rdr.ReadAt(buf, 0)
	require.Error(t, err)
}

func TestClearKeepsRoot(t *testing.T) {
	ctx := context.Background()
	for _, toPin := range []struct {
		name  string
		store storage.Store
	}{
		{name: "memory", store: NewMemory()},
		{name: "os", store: NewAt(t.TempDir())},
	} {
		testcase := toPin
		t.Run(testcase.name, func(t *testing.T) {
			store := testcase.store
			require.NoError(t, store.Put(ctx, "nested/old", strings.NewReader("old"), storage.NoOverWrite))
			require.NoError(t, store.Clear(ctx))
			require.NoError(t, store.Clear(ctx))

			require.NoError(t, store.Put(ctx, "nested/a", strings.NewReader("a"), storage.NoOverWrite))
			require.NoError(t, store.Put(ctx, "b", strings.NewReader("b"), storage.NoOverWrite))

			keys, err := store.Keys(ctx)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"b", "nested/a"}, keys)
		})
	}
}
