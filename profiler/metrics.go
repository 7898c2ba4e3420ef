// Package profiler - Runtime and decode metrics for the pose pipeline.
package profiler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors describing pose decoding.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	DecodeSeconds prometheus.Histogram
	Peaks         prometheus.Histogram
	Poses         prometheus.Counter
	Decodes       prometheus.Counter
	Failures      prometheus.Counter
}

// NewMetrics creates the decode collectors and registers them.
//
// Arguments:
//   - reg: The registerer to attach the collectors to; nil skips registration.
//
// Returns:
//   - The metrics, or the registration error.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		DecodeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pose",
			Subsystem: "decoder",
			Name:      "decode_seconds",
			Help:      "Time spent decoding one inference output into poses.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		Peaks: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pose",
			Subsystem: "decoder",
			Name:      "peaks",
			Help:      "Heatmap peaks found per inference.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		Poses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pose",
			Subsystem: "decoder",
			Name:      "poses_total",
			Help:      "Poses emitted by the decoder.",
		}),
		Decodes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pose",
			Subsystem: "decoder",
			Name:      "decodes_total",
			Help:      "Inference outputs decoded successfully.",
		}),
		Failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pose",
			Subsystem: "decoder",
			Name:      "failures_total",
			Help:      "Inference outputs rejected by the decoder.",
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.DecodeSeconds, m.Peaks, m.Poses, m.Decodes, m.Failures} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// ObserveDecode records one successful decode.
func (m *Metrics) ObserveDecode(elapsed time.Duration, peaks, poses int) {
	if m == nil {
		return
	}
	m.DecodeSeconds.Observe(elapsed.Seconds())
	m.Peaks.Observe(float64(peaks))
	m.Poses.Add(float64(poses))
	m.Decodes.Inc()
}

// ObserveFailure records one rejected decode.
func (m *Metrics) ObserveFailure() {
	if m == nil {
		return
	}
	m.Failures.Inc()
}
