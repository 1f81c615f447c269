// Copyright © 2018 One Concern

package badgerkv

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/oneconcern/branchwrite/pkg/errors"
	"github.com/oneconcern/branchwrite/pkg/storage"
	"github.com/oneconcern/branchwrite/pkg/storage/status"
	"github.com/oneconcern/branchwrite/pkg/storage/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore(t *testing.T) {
	store, err := New("", InMemory(true))
	require.NoError(t, err)
	defer func() {
		require.NoError(t, store.Close())
	}()

	assert.Equal(t, "badger@memory", store.String())
	storetest.Run(t, store)
}

func TestPersistentStore(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "heads/main", strings.NewReader("abc"), storage.NoOverWrite))
	require.NoError(t, store.Close())

	store, err = New(dir)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, store.Close())
	}()

	b, err := storage.ReadAll(ctx, store, "heads/main")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(b))
}

func TestConcurrentExclusivePut(t *testing.T) {
	store, err := New("", InMemory(true))
	require.NoError(t, err)
	defer func() {
		require.NoError(t, store.Close())
	}()

	const writers = 16
	ctx := context.Background()
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.Put(ctx, "blobs/x", strings.NewReader("x"), storage.NoOverWrite)
		}(i)
	}
	wg.Wait()

	var created int
	for _, e := range errs {
		if e == nil {
			created++
			continue
		}
		assert.True(t, errors.Is(e, status.ErrExists), "unexpected error: %v", e)
	}
	assert.Equal(t, 1, created)
}
