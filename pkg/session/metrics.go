// Copyright © 2018 One Concern

package session

import (
	"sync"

	"github.com/oneconcern/branchwrite/pkg/metrics"
	"go.opencensus.io/stats"
)

const (
	outcomeCommitted = "committed"
	outcomeCanceled  = "canceled"
	outcomeFailed    = "failed"
)

type sessionMetrics struct {
	Begun     *stats.Int64Measure
	Completed *stats.Int64Measure
	GateWait  *stats.Float64Measure
	GateInUse *stats.Int64Measure
	Written   *stats.Int64Measure
	Read      *stats.Int64Measure
}

var (
	sessionMetricsOnce sync.Once
	sessionM           *sessionMetrics
)

// ensureMetrics declares measures on first use, so that metrics.Init may run before
func ensureMetrics() *sessionMetrics {
	sessionMetricsOnce.Do(func() {
		branch := []string{"branch"}
		sessionM = &sessionMetrics{
			Begun:     metrics.NewInt64("session/transactions_begun", "number of transactions begun", metrics.UnitCount, branch),
			Completed: metrics.NewInt64("session/transactions_completed", "number of transactions completed, by outcome", metrics.UnitCount, []string{"branch", "outcome"}),
			GateWait:  metrics.NewFloat64("session/gate_wait", "time spent waiting for a transaction permit", metrics.UnitMilliseconds, nil, metrics.ViewCount),
			GateInUse: metrics.NewInt64("session/gate_in_use", "number of transaction permits in use", metrics.UnitGauge, nil),
			Written:   metrics.NewInt64("session/bytes_written", "bytes written through streaming files", metrics.UnitSumBytes, branch),
			Read:      metrics.NewInt64("session/bytes_read", "bytes read through streaming files", metrics.UnitSumBytes, branch),
		}
	})
	return sessionM
}
