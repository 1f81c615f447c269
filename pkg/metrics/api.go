// Copyright © 2018 One Concern

package metrics

import (
	"context"
	"time"

	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
)

// Init global settings for metrics collection, such as base path and exporter setup.
//
// Init is used by any top-level package (such as the CLI driver), to define global
// settings.
//
// Init may be called multiple times: only the first time matters. Measures declared
// before Init run with the default settings, which do not export anything.
func Init(opts ...Option) {
	initOnce.Do(func() {
		mp = newSettings(opts...)
	})
}

// Flush all collected metrics to the exporter, if any
func Flush() {
	current().Flush()
}

// NewInt64 declares an int64 measure, with a default view inferred from its unit.
//
// Keys are the tag keys retained by the views. Extras are additional views
// (ViewSum, ViewCount, ViewLastValue).
//
// Declaring the same name twice returns the first measure.
func NewInt64(name, description, unit string, keys []string, extras ...string) *stats.Int64Measure {
	m := current().register(name, description, unit, keys, extras, func(n, d, u string) stats.Measure {
		return stats.Int64(n, d, u)
	})
	return m.(*stats.Int64Measure)
}

// NewFloat64 declares a float64 measure, with a default view inferred from its unit
func NewFloat64(name, description, unit string, keys []string, extras ...string) *stats.Float64Measure {
	m := current().register(name, description, unit, keys, extras, func(n, d, u string) stats.Measure {
		return stats.Float64(n, d, u)
	})
	return m.(*stats.Float64Measure)
}

// Inc increments a counter-like metric
func Inc(counter *stats.Int64Measure, tags ...map[string]string) {
	_ = stats.RecordWithTags(context.Background(), mergeTags(tags), counter.M(1))
}

// Int64 sets a value to a measurement
func Int64(measure *stats.Int64Measure, value int64, tags ...map[string]string) {
	_ = stats.RecordWithTags(context.Background(), mergeTags(tags), measure.M(value))
}

// Float64 sets a value to a measurement
func Float64(measure *stats.Float64Measure, value float64, tags ...map[string]string) {
	_ = stats.RecordWithTags(context.Background(), mergeTags(tags), measure.M(value))
}

// Since feeds a millisecs timing measurement from some start time
func Since(start time.Time, measure *stats.Float64Measure, tags ...map[string]string) {
	Duration(start, time.Now(), measure, tags...)
}

// Duration feeds a millisecs timing measurement from some start to end timings
func Duration(start, end time.Time, measure *stats.Float64Measure, tags ...map[string]string) {
	ms := float64(end.Sub(start).Nanoseconds()) / 1e6
	_ = stats.RecordWithTags(context.Background(), mergeTags(tags), measure.M(ms))
}

// mergeTags adds some dynamically defined tags to a single measurement
func mergeTags(extras []map[string]string) []tag.Mutator {
	mutators := make([]tag.Mutator, 0, 4)
	for _, extra := range extras {
		for k, v := range extra {
			mutators = append(mutators, tag.Upsert(tag.MustNewKey(k), v))
		}
	}
	return mutators
}
