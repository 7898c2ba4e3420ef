package profiler

import (
	"context"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TimeTracker tracks timing statistics of one pipeline stage.
type TimeTracker struct {
	Count int64
	Total time.Duration
	Min   time.Duration
	Max   time.Duration
}

// Mean returns the average duration, or 0 before the first sample.
func (t TimeTracker) Mean() time.Duration {
	if t.Count == 0 {
		return 0
	}
	return t.Total / time.Duration(t.Count)
}

func (t *TimeTracker) observe(d time.Duration) {
	if t.Count == 0 || d < t.Min {
		t.Min = d
	}
	if d > t.Max {
		t.Max = d
	}
	t.Count++
	t.Total += d
}

// RuntimeProfiler times the stages of the capture loop (capture, inference,
// decode, render) and periodically logs them with the process memory usage.
type RuntimeProfiler struct {
	logger         *zap.Logger
	reportInterval time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	started time.Time
	stages  map[string]*TimeTracker
}

// ProfilingOptions configures the runtime profiler.
type ProfilingOptions struct {
	// ReportInterval specifies how often to log a status report (default: 10s).
	ReportInterval time.Duration
	// Logger receives the reports; nil disables them.
	Logger *zap.Logger
}

// NewRuntimeProfiler creates a new runtime profiler with the specified options.
//
// Arguments:
// - opts: Configuration options for the profiler
//
// Returns:
// - A configured RuntimeProfiler instance
func NewRuntimeProfiler(opts ProfilingOptions) *RuntimeProfiler {
	if opts.ReportInterval <= 0 {
		opts.ReportInterval = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &RuntimeProfiler{
		logger:         opts.Logger,
		reportInterval: opts.ReportInterval,
		ctx:            ctx,
		cancel:         cancel,
		started:        time.Now(),
		stages:         make(map[string]*TimeTracker),
	}
}

// Start begins periodic reporting. Calling it twice is a no-op.
func (rp *RuntimeProfiler) Start() {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	if rp.running {
		return
	}
	rp.running = true
	rp.started = time.Now()

	rp.wg.Add(1)
	go func() {
		defer rp.wg.Done()

		ticker := time.NewTicker(rp.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-rp.ctx.Done():
				return
			case <-ticker.C:
				rp.report()
			}
		}
	}()
}

// Stop ends reporting and waits for the reporter goroutine.
func (rp *RuntimeProfiler) Stop() {
	rp.mu.Lock()
	if !rp.running {
		rp.mu.Unlock()
		return
	}
	rp.running = false
	rp.mu.Unlock()

	rp.cancel()
	rp.wg.Wait()
}

// StartOperation begins timing a stage.
//
// Arguments:
// - name: The name of the stage to track
//
// Returns:
// - A function to call when the stage completes
//
// @example
// done := rp.StartOperation("decode")
// poses, err := model.PostProcess(features)
// done()
func (rp *RuntimeProfiler) StartOperation(name string) func() {
	start := time.Now()
	return func() {
		rp.Record(name, time.Since(start))
	}
}

// Record adds one duration sample for a stage.
func (rp *RuntimeProfiler) Record(name string, d time.Duration) {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	t, ok := rp.stages[name]
	if !ok {
		t = &TimeTracker{}
		rp.stages[name] = t
	}
	t.observe(d)
}

// Stage returns a snapshot of a stage's timings.
func (rp *RuntimeProfiler) Stage(name string) (TimeTracker, bool) {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	t, ok := rp.stages[name]
	if !ok {
		return TimeTracker{}, false
	}
	return *t, true
}

func (rp *RuntimeProfiler) report() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	rp.mu.Lock()
	fields := []zap.Field{
		zap.Duration("uptime", time.Since(rp.started).Truncate(time.Millisecond)),
		zap.Int("goroutines", runtime.NumGoroutine()),
		zap.Uint64("heap_alloc", mem.HeapAlloc),
		zap.Uint32("gc_cycles", mem.NumGC),
	}
	for name, t := range rp.stages {
		fields = append(fields, zap.Dict(name,
			zap.Int64("count", t.Count),
			zap.Duration("mean", t.Mean()),
			zap.Duration("min", t.Min),
			zap.Duration("max", t.Max),
		))
	}
	rp.mu.Unlock()

	rp.logger.Info("runtime profile", fields...)
}
