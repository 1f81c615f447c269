// Copyright © 2018 One Concern

// Package metrics collects opencensus measurements about write sessions,
// the concurrency gate and the object storage.
//
// Measures are declared by the packages which record them, with NewInt64 and NewFloat64.
// Each measure comes with a default view derived from its unit, and optional extra views.
package metrics

import (
	"path"
	"sync"
	"time"

	"github.com/docker/go-units"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

const (
	// KB stands for kilo bytes (1024 bytes)
	KB = units.KiB

	// MB stands for mega bytes (1024 kilo bytes)
	MB = units.MiB

	// GB stands for giga bytes (1024 mega bytes)
	GB = units.GiB

	// UnitCount is the unit for counters
	UnitCount = "count"

	// UnitMilliseconds is the unit for timings
	UnitMilliseconds = "milliseconds"

	// UnitBytes is the unit for sizes
	UnitBytes = "bytes"

	// UnitSumBytes is the unit for cumulated sizes
	UnitSumBytes = "sumbytes"

	// UnitGauge is the unit for values which only retain their last observation
	UnitGauge = "gauge"

	// ViewSum adds a cumulated view to a measure
	ViewSum = "sum"

	// ViewLastValue adds a last value view to a measure
	ViewLastValue = "lastvalue"

	// ViewCount adds a count view to a measure
	ViewCount = "count"
)

var (
	// global settings for metrics
	mp       *settings
	initOnce sync.Once
)

type settings struct {
	basePath string
	exporter FlushExporter

	exclusive sync.Mutex
	measures  map[string]stats.Measure
	allViews  []*view.View

	d time.Duration
}

func defaultSettings() *settings {
	return &settings{
		measures: make(map[string]stats.Measure),
	}
}

func newSettings(opts ...Option) *settings {
	s := defaultSettings()
	for _, apply := range opts {
		apply(s)
	}
	s.RegisterExporter()
	return s
}

// current settings, with defaults when Init has not been called
func current() *settings {
	Init()
	return mp
}

// Flush collects all remaining data for registered views and exports them
func (s *settings) Flush() {
	if s.exporter == nil {
		return
	}
	s.exclusive.Lock()
	views := make([]*view.View, len(s.allViews))
	copy(views, s.allViews)
	s.exclusive.Unlock()

	for _, v := range views {
		rows, err := view.RetrieveData(v.Name)
		if err != nil {
			continue // ignore errors when pushing metrics
		}
		now := time.Now()
		s.exporter.Flush(&view.Data{
			View:  v,
			Start: now,
			End:   now,
			Rows:  rows,
		})
	}
}

// RegisterExporter registers the current exporter to the opencensus library
func (s *settings) RegisterExporter() {
	if s.exporter == nil {
		return
	}
	view.RegisterExporter(s.exporter)
	if s.d >= time.Second {
		view.SetReportingPeriod(s.d)
	}
}

// register a measure under the base path, with its default view and extra views.
//
// Registering twice the same name returns the measure registered first.
func (s *settings) register(name, description, unit string, keys []string, extras []string, build func(string, string, string) stats.Measure) stats.Measure {
	name = path.Join(s.basePath, name)

	s.exclusive.Lock()
	defer s.exclusive.Unlock()

	if existing, ok := s.measures[name]; ok {
		return existing
	}

	if description == "" {
		description = describeFromUnit(name, unit)
	}
	u, dist := unitAndDist(unit)
	measure := build(name, description, u)
	s.measures[name] = measure

	tagKeys := make([]tag.Key, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			tagKeys = append(tagKeys, tag.MustNewKey(k))
		}
	}

	s.addView(&view.View{
		Name:        name,
		Description: describeViewFromDist(description, dist),
		Measure:     measure,
		Aggregation: dist,
		TagKeys:     tagKeys,
	})

	for _, extra := range extras {
		var agg *view.Aggregation
		switch extra {
		case ViewCount:
			agg = view.Count()
		case ViewSum:
			agg = view.Sum()
		case ViewLastValue:
			agg = view.LastValue()
		default:
			continue
		}
		s.addView(&view.View{
			Name:        describeViewFromDist(name, agg),
			Description: describeViewFromDist(description, agg),
			Measure:     measure,
			Aggregation: agg,
			TagKeys:     tagKeys,
		})
	}
	return measure
}

func (s *settings) addView(v *view.View) {
	if err := view.Register(v); err != nil {
		return
	}
	s.allViews = append(s.allViews, v)
}

func durationDistribution() *view.Aggregation {
	// buckets in milliseconds
	return view.Distribution(
		1, 5, 10, 50,
		100, 300, 500, 700, 900,
		1000, 1500, 2000, 3000, 5000,
		10000, 30000, 60000,
	)
}

func bytesDistribution() *view.Aggregation {
	// buckets in bytes
	return view.Distribution(
		500,
		1*KB, 5*KB, 10*KB, 50*KB,
		100*KB, 500*KB,
		1*MB, 8*MB, /* cut-off at the streaming read chunk size */
		50*MB, 100*MB, 500*MB,
		1*GB, 5*GB,
	)
}

func unitAndDist(unit string) (string, *view.Aggregation) {
	switch unit {
	case UnitMilliseconds:
		return stats.UnitMilliseconds, durationDistribution()
	case UnitBytes:
		return stats.UnitBytes, bytesDistribution()
	case UnitSumBytes:
		return stats.UnitBytes, view.Sum()
	case UnitGauge:
		return stats.UnitDimensionless, view.LastValue()
	case UnitCount:
		fallthrough
	default:
		return stats.UnitDimensionless, view.Count()
	}
}

func describeFromUnit(name, unit string) string {
	switch unit {
	case UnitSumBytes:
		return name + " cumulated bytes"
	case "", UnitCount:
		return name + " counter"
	default:
		return name + " in " + unit
	}
}

func describeViewFromDist(desc string, in *view.Aggregation) string {
	if in == nil {
		return desc
	}
	switch in.Type {
	case view.AggTypeCount:
		return desc + " [count]"
	case view.AggTypeSum:
		return desc + " [cumulated]"
	case view.AggTypeDistribution:
		return desc + " [distribution]"
	case view.AggTypeLastValue:
		return desc + " [last]"
	case view.AggTypeNone:
		fallthrough
	default:
		return desc
	}
}

// FlushExporter is a view exporter that knows how to flush metrics.
//
// This basically means that we may export views concurrently with the default
// background exporter.
type FlushExporter interface {
	view.Exporter
	Flush(*view.Data)
}

// flusher makes a FlushExporter of view.Exporter
func flusher(e view.Exporter) FlushExporter {
	return &simpleFlusher{
		e: e,
	}
}

type simpleFlusher struct {
	e view.Exporter
	m sync.RWMutex
}

func (f *simpleFlusher) ExportView(viewData *view.Data) {
	f.m.RLock() // the view background worker may export concurrently
	f.e.ExportView(viewData)
	f.m.RUnlock()
}

func (f *simpleFlusher) Flush(viewData *view.Data) {
	f.m.Lock()
	f.e.ExportView(viewData)
	f.m.Unlock()
}
