// Copyright © 2018 One Concern

package cmd

import (
	"sync"
	"time"

	"github.com/oneconcern/branchwrite/pkg/metrics"
	"go.opencensus.io/stats"
)

type usageMetrics struct {
	Commands *stats.Int64Measure
	Failures *stats.Int64Measure
	Duration *stats.Float64Measure
}

var (
	usageOnce sync.Once
	usage     *usageMetrics
)

func ensureUsageMetrics() *usageMetrics {
	usageOnce.Do(func() {
		keys := []string{"command"}
		usage = &usageMetrics{
			Commands: metrics.NewInt64("cli/commands", "number of commands run", metrics.UnitCount, keys),
			Failures: metrics.NewInt64("cli/failures", "number of failed commands", metrics.UnitCount, keys),
			Duration: metrics.NewFloat64("cli/duration", "duration of commands", metrics.UnitMilliseconds, keys),
		}
	})
	return usage
}

// cliUsage records a usage metric in the CLI context in a single go.
// This is intended to be used in some defer statement.
func cliUsage(t0 time.Time, command string, err error) {
	m := ensureUsageMetrics()
	tags := map[string]string{"command": command}
	metrics.Inc(m.Commands, tags)
	metrics.Since(t0, m.Duration, tags)
	if err != nil {
		metrics.Inc(m.Failures, tags)
	}
}
