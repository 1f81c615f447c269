// Copyright © 2018 One Concern

package storage

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oneconcern/branchwrite/pkg/metrics"
	opentracing "github.com/opentracing/opentracing-go"
	"go.opencensus.io/stats"
	"go.uber.org/zap"
)

type storeMetrics struct {
	Timing   *stats.Float64Measure
	Failures *stats.Int64Measure
	Bytes    *stats.Int64Measure
}

var (
	storeMetricsOnce sync.Once
	storeM           *storeMetrics
)

func ensureMetrics() *storeMetrics {
	storeMetricsOnce.Do(func() {
		keys := []string{"store", "operation"}
		storeM = &storeMetrics{
			Timing:   metrics.NewFloat64("storage/timing", "response time of storage operations", metrics.UnitMilliseconds, keys, metrics.ViewCount),
			Failures: metrics.NewInt64("storage/failures", "number of failed storage operations", metrics.UnitCount, keys),
			Bytes:    metrics.NewInt64("storage/bytes", "bytes transferred to or from storage", metrics.UnitSumBytes, keys),
		}
	})
	return storeM
}

// Instrument decorates a store with debug logs, opentracing spans and opencensus measurements.
//
// Spans are started from the global tracer, as children of any span found in the context.
func Instrument(store Store, logger *zap.Logger) Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &instrumentedStore{
		store: store,
		name:  store.String(),
		l:     logger.With(zap.String("store", store.String())),
		m:     ensureMetrics(),
	}
}

type instrumentedStore struct {
	store Store
	name  string
	l     *zap.Logger
	m     *storeMetrics
}

func (i *instrumentedStore) opName(name string) string {
	return strings.Join([]string{"storage", i.name, name}, ".")
}

// start an operation: returns the done callback which closes the span and records the outcome
func (i *instrumentedStore) start(ctx context.Context, op string, fields ...zap.Field) func(error) {
	span, _ := opentracing.StartSpanFromContext(ctx, i.opName(op))
	i.l.Debug("storage "+op, fields...)
	t0 := time.Now()
	tags := map[string]string{"store": i.name, "operation": op}

	return func(err error) {
		metrics.Since(t0, i.m.Timing, tags)
		if err != nil {
			span.SetTag("error", true)
			span.LogKV("event", "error", "message", err.Error())
			metrics.Inc(i.m.Failures, tags)
			i.l.Debug("storage "+op+" failed", append(fields, zap.Error(err))...)
		}
		span.Finish()
	}
}

func (i *instrumentedStore) Has(ctx context.Context, key string) (has bool, err error) {
	done := i.start(ctx, "Has", zap.String("key", key))
	defer func() { done(err) }()

	return i.store.Has(ctx, key)
}

func (i *instrumentedStore) Get(ctx context.Context, key string) (rdr io.ReadCloser, err error) {
	done := i.start(ctx, "Get", zap.String("key", key))
	defer func() { done(err) }()

	return i.store.Get(ctx, key)
}

func (i *instrumentedStore) GetAt(ctx context.Context, key string) (rdr io.ReaderAt, err error) {
	done := i.start(ctx, "GetAt", zap.String("key", key))
	defer func() { done(err) }()

	return i.store.GetAt(ctx, key)
}

func (i *instrumentedStore) Put(ctx context.Context, key string, rdr io.Reader, exclusive bool) (err error) {
	done := i.start(ctx, "Put", zap.String("key", key), zap.Bool("exclusive", exclusive))
	defer func() { done(err) }()

	counter := &countingReader{r: rdr}
	err = i.store.Put(ctx, key, counter, exclusive)
	if err == nil {
		metrics.Int64(i.m.Bytes, counter.n, map[string]string{"store": i.name, "operation": "Put"})
	}
	return err
}

func (i *instrumentedStore) Delete(ctx context.Context, key string) (err error) {
	done := i.start(ctx, "Delete", zap.String("key", key))
	defer func() { done(err) }()

	return i.store.Delete(ctx, key)
}

func (i *instrumentedStore) Keys(ctx context.Context) (keys []string, err error) {
	done := i.start(ctx, "Keys")
	defer func() { done(err) }()

	return i.store.Keys(ctx)
}

func (i *instrumentedStore) KeysPrefix(ctx context.Context, pageToken, prefix, delimiter string, count int) (keys []string, next string, err error) {
	done := i.start(ctx, "KeysPrefix", zap.String("prefix", prefix), zap.String("token", pageToken))
	defer func() { done(err) }()

	return i.store.KeysPrefix(ctx, pageToken, prefix, delimiter, count)
}

func (i *instrumentedStore) Clear(ctx context.Context) (err error) {
	done := i.start(ctx, "Clear")
	defer func() { done(err) }()

	return i.store.Clear(ctx)
}

func (i *instrumentedStore) String() string {
	return i.store.String()
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
