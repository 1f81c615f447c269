// Copyright © 2018 One Concern

package metrics

import (
	"time"

	"go.opencensus.io/stats/view"
)

// Option tunes metrics collection at Init time
type Option func(*settings)

// WithBasePath prefixes the names of all measures and views, e.g. "branchwrite/session/gate_wait"
func WithBasePath(location string) Option {
	return func(m *settings) {
		m.basePath = location
	}
}

// WithExporter sets where views are exported, periodically and on Flush.
//
// Without an exporter, views are still aggregated and may be read with view.RetrieveData.
func WithExporter(exporter view.Exporter) Option {
	return func(m *settings) {
		if exporter != nil {
			m.exporter = flusher(exporter)
		}
	}
}

// WithReportingPeriod sets the period of the periodic export. Periods under a second are ignored,
// and opencensus exports every 10s.
func WithReportingPeriod(d time.Duration) Option {
	return func(m *settings) {
		m.d = d
	}
}
