package profiler

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRuntimeProfiler_Record(t *testing.T) {
	rp := NewRuntimeProfiler(ProfilingOptions{})

	_, ok := rp.Stage("decode")
	assert.False(t, ok)

	rp.Record("decode", 3*time.Millisecond)
	rp.Record("decode", time.Millisecond)
	rp.Record("decode", 2*time.Millisecond)

	s, ok := rp.Stage("decode")
	require.True(t, ok)
	assert.Equal(t, int64(3), s.Count)
	assert.Equal(t, 6*time.Millisecond, s.Total)
	assert.Equal(t, time.Millisecond, s.Min)
	assert.Equal(t, 3*time.Millisecond, s.Max)
	assert.Equal(t, 2*time.Millisecond, s.Mean())

	assert.Zero(t, TimeTracker{}.Mean())
}

func TestRuntimeProfiler_StartOperation(t *testing.T) {
	rp := NewRuntimeProfiler(ProfilingOptions{})

	done := rp.StartOperation("render")
	time.Sleep(time.Millisecond)
	done()

	s, ok := rp.Stage("render")
	require.True(t, ok)
	assert.Equal(t, int64(1), s.Count)
	assert.GreaterOrEqual(t, s.Total, time.Millisecond)
}

func TestRuntimeProfiler_Report(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	rp := NewRuntimeProfiler(ProfilingOptions{Logger: zap.New(core)})
	rp.Record("capture", time.Millisecond)

	rp.report()

	entries := logs.FilterMessage("runtime profile").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Contains(t, fields, "goroutines")
	assert.Contains(t, fields, "capture")
}

func TestRuntimeProfiler_StartStop(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	rp := NewRuntimeProfiler(ProfilingOptions{
		ReportInterval: 5 * time.Millisecond,
		Logger:         zap.New(core),
	})

	rp.Start()
	rp.Start()
	assert.Eventually(t, func() bool {
		return logs.FilterMessage("runtime profile").Len() > 0
	}, time.Second, time.Millisecond)

	rp.Stop()
	rp.Stop()
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	m.ObserveDecode(2*time.Millisecond, 12, 2)
	m.ObserveDecode(time.Millisecond, 6, 1)
	m.ObserveFailure()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.Decodes))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.Poses))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Failures))
	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	_, err = NewMetrics(reg)
	assert.Error(t, err, "duplicate registration")
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveDecode(time.Millisecond, 1, 1)
		m.ObserveFailure()
	})

	unregistered, err := NewMetrics(nil)
	require.NoError(t, err)
	unregistered.ObserveFailure()
	assert.Equal(t, float64(1), testutil.ToFloat64(unregistered.Failures))
}
