// Copyright © 2018 One Concern

package storage_test

import (
	"context"
	"strings"
	"testing"

	"github.com/oneconcern/branchwrite/pkg/errors"
	"github.com/oneconcern/branchwrite/pkg/storage"
	"github.com/oneconcern/branchwrite/pkg/storage/localfs"
	"github.com/oneconcern/branchwrite/pkg/storage/status"
	"github.com/oneconcern/branchwrite/pkg/storage/storetest"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestPageKeys(t *testing.T) {
	keys := []string{"b/2", "a", "b/1", "c/x/y", "b/3", "d"}

	page, next := storage.PageKeys(keys, "", "", "", 0)
	assert.Equal(t, []string{"a", "b/1", "b/2", "b/3", "c/x/y", "d"}, page)
	assert.Empty(t, next)

	page, next = storage.PageKeys(keys, "", "b/", "", 2)
	assert.Equal(t, []string{"b/1", "b/2"}, page)
	assert.Equal(t, "b/2", next)

	page, next = storage.PageKeys(keys, next, "b/", "", 2)
	assert.Equal(t, []string{"b/3"}, page)
	assert.Empty(t, next)

	page, _ = storage.PageKeys(keys, "", "", "/", 0)
	assert.Equal(t, []string{"a", "b/", "c/", "d"}, page)

	page, _ = storage.PageKeys(keys, "b/", "", "/", 0)
	assert.Equal(t, []string{"c/", "d"}, page)
}

func TestInstrument(t *testing.T) {
	tracer := mocktracer.New()
	opentracing.SetGlobalTracer(tracer)
	defer opentracing.SetGlobalTracer(opentracing.NoopTracer{})

	core, logs := observer.New(zap.DebugLevel)
	store := storage.Instrument(localfs.NewMemory(), zap.New(core))
	assert.Equal(t, "localfs@memory", store.String())

	storetest.Run(t, store)

	assert.NotZero(t, logs.FilterMessage("storage Put").Len())
	assert.NotEmpty(t, tracer.FinishedSpans())

	ctx := context.Background()
	tracer.Reset()
	_, err := store.Get(ctx, "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrNotExists))
	assert.NotZero(t, logs.FilterMessage("storage Get failed").Len())

	spans := tracer.FinishedSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "storage.localfs@memory.Get", spans[0].OperationName)
	assert.Equal(t, true, spans[0].Tag("error"))

	require.NoError(t, store.Put(ctx, "x", strings.NewReader("abc"), storage.OverWrite))
	b, err := storage.ReadAll(ctx, store, "x")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(b))
}
