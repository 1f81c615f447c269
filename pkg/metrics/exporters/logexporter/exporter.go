// Copyright © 2018 One Concern

// Package logexporter exports opencensus views as zap log entries.
//
// It is the exporter used by the CLI when metrics are enabled without a collector
// backend, and by tests which need to observe exported rows.
package logexporter

import (
	"sync"

	"go.opencensus.io/stats/view"
	"go.uber.org/zap"
)

var _ view.Exporter = &Exporter{}

// Exporter logs view data at debug level and keeps count of exported rows per view
type Exporter struct {
	l *zap.Logger

	mx   sync.Mutex
	rows map[string]int
}

// NewExporter builds a new log exporter. A nil logger yields a silent exporter.
func NewExporter(l *zap.Logger) *Exporter {
	if l == nil {
		l = zap.NewNop()
	}
	return &Exporter{
		l:    l,
		rows: make(map[string]int),
	}
}

// ExportView logs the view data
func (e *Exporter) ExportView(viewData *view.Data) {
	if viewData == nil || viewData.View == nil {
		return
	}
	e.mx.Lock()
	e.rows[viewData.View.Name] += len(viewData.Rows)
	e.mx.Unlock()

	for _, row := range viewData.Rows {
		e.l.Debug("metric",
			zap.String("view", viewData.View.Name),
			zap.String("tags", tagsString(row)),
			zap.Any("data", row.Data),
		)
	}
}

// Rows returns the number of rows exported so far for a given view
func (e *Exporter) Rows(name string) int {
	e.mx.Lock()
	defer e.mx.Unlock()
	return e.rows[name]
}

func tagsString(row *view.Row) string {
	if row == nil || len(row.Tags) == 0 {
		return ""
	}
	s := ""
	for i, t := range row.Tags {
		if i > 0 {
			s += ","
		}
		s += t.Key.Name() + "=" + t.Value
	}
	return s
}
