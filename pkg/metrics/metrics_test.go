// Copyright © 2018 One Concern

package metrics

import (
	"testing"
	"time"

	"github.com/oneconcern/branchwrite/pkg/metrics/exporters/logexporter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
)

func int64Builder(n, d, u string) stats.Measure {
	return stats.Int64(n, d, u)
}

func float64Builder(n, d, u string) stats.Measure {
	return stats.Float64(n, d, u)
}

func TestRegister(t *testing.T) {
	exp := logexporter.NewExporter(nil)
	s := newSettings(WithBasePath("registerTest"), WithExporter(exp))

	x := s.register("files", "", UnitCount, []string{"operation"}, []string{ViewSum}, int64Builder)
	require.NotNil(t, x)
	assert.Equal(t, "registerTest/files", x.Name())
	assert.Equal(t, "registerTest/files counter", x.Description())
	assert.Len(t, s.allViews, 2)

	// retry registration
	y := s.register("files", "", UnitCount, nil, nil, int64Builder)
	assert.Equal(t, x, y)
	assert.Len(t, s.allViews, 2)

	z := s.register("timing", "", UnitMilliseconds, nil, nil, float64Builder)
	assert.Equal(t, stats.UnitMilliseconds, z.Unit())
	assert.Len(t, s.allViews, 3)
}

func TestRecordAndFlush(t *testing.T) {
	exp := logexporter.NewExporter(nil)
	s := newSettings(WithBasePath("flushTest"), WithExporter(exp))
	initOnce.Do(func() {})
	mp = s

	counter := NewInt64("requests", "number of requests", UnitCount, []string{"operation"})
	timing := NewFloat64("latency", "", UnitMilliseconds, []string{"operation"})

	Inc(counter, map[string]string{"operation": "put"})
	Inc(counter, map[string]string{"operation": "put"})
	Int64(counter, 5, map[string]string{"operation": "get"})
	Since(time.Now().Add(-10*time.Millisecond), timing, map[string]string{"operation": "put"})

	rows, err := view.RetrieveData("flushTest/requests")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	var total int64
	for _, row := range rows {
		data, ok := row.Data.(*view.CountData)
		require.True(t, ok)
		total += data.Value
	}
	assert.Equal(t, int64(3), total)

	rows, err = view.RetrieveData("flushTest/latency")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	dist, ok := rows[0].Data.(*view.DistributionData)
	require.True(t, ok)
	assert.GreaterOrEqual(t, dist.Min, float64(10))

	Flush()
	assert.GreaterOrEqual(t, exp.Rows("flushTest/requests"), 2)
	assert.GreaterOrEqual(t, exp.Rows("flushTest/latency"), 1)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "x cumulated bytes", describeFromUnit("x", UnitSumBytes))
	assert.Equal(t, "x in milliseconds", describeFromUnit("x", UnitMilliseconds))
	assert.Equal(t, "x [last]", describeViewFromDist("x", view.LastValue()))
	assert.Equal(t, "x", describeViewFromDist("x", nil))

	u, agg := unitAndDist(UnitGauge)
	assert.Equal(t, stats.UnitDimensionless, u)
	assert.Equal(t, view.AggTypeLastValue, agg.Type)
}
