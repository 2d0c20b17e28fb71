// Package profiler - Per-stage timing and run metrics for tracking runs,
// reported through slog.
package profiler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"
)

// Stage names recorded by a tracking run.
const (
	StageDecode = "decode"
	StageRegion = "region"
	StageBuild  = "build"
	StageMaps   = "maps"
	StageRender = "render"
	StageOutput = "output"
)

// metricTracker tracks statistics for a custom metric.
type metricTracker struct {
	values []float64
	sum    float64
	min    float64
	max    float64
	count  int64
}

// timeTracker tracks timing statistics of a stage.
type timeTracker struct {
	total time.Duration
	min   time.Duration
	max   time.Duration
	count int64
}

// StageTiming is a snapshot of one stage's timings.
type StageTiming struct {
	Name  string
	Count int64
	Total time.Duration
	Min   time.Duration
	Max   time.Duration
}

// Mean returns the average stage duration.
func (s StageTiming) Mean() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// MetricSummary is a snapshot of one metric over its retained samples.
type MetricSummary struct {
	Name    string
	Last    float64
	Mean    float64
	Min     float64
	Max     float64
	Samples int
}

// Options configures the profiler.
type Options struct {
	// ReportInterval emits a progress report while started; 0 disables.
	ReportInterval time.Duration
	// MaxSamples bounds the retained values per metric (default: 600).
	MaxSamples int
}

// Profiler records stage timings and metrics. It is safe for concurrent use.
type Profiler struct {
	logger     *slog.Logger
	interval   time.Duration
	maxSamples int

	mu        sync.RWMutex
	startTime time.Time
	stages    map[string]*timeTracker
	order     []string
	metrics   map[string]*metricTracker
	names     []string

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New creates a profiler.
//
// Arguments:
// - opts: Configuration options for the profiler.
// - logger: Destination for reports; nil uses slog.Default().
//
// Returns:
// - *Profiler: The profiler, with its clock started.
func New(opts Options, logger *slog.Logger) *Profiler {
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = 600
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Profiler{
		logger:     logger,
		interval:   opts.ReportInterval,
		maxSamples: opts.MaxSamples,
		startTime:  time.Now(),
		stages:     make(map[string]*timeTracker),
		metrics:    make(map[string]*metricTracker),
	}
}

// Start emits a report every ReportInterval until Stop or ctx is done.
func (p *Profiler) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running || p.interval <= 0 {
		return
	}
	p.running = true

	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.Report("progress")
			}
		}
	}()
}

// Stop ends periodic reporting and waits for the reporter to exit.
func (p *Profiler) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
}

// StartStage begins timing a stage.
//
// Arguments:
// - name: The stage name, e.g. StageBuild.
//
// Returns:
// - func(): Call when the stage completes.
//
// @example
// done := prof.StartStage(profiler.StageBuild)
// traj, err := builder.Build(ctx, frames, region, seg)
// done()
func (p *Profiler) StartStage(name string) func() {
	start := time.Now()
	return func() {
		p.RecordStage(name, time.Since(start))
	}
}

// RecordStage records one completed stage duration.
func (p *Profiler) RecordStage(name string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, ok := p.stages[name]
	if !ok {
		t = &timeTracker{min: d, max: d}
		p.stages[name] = t
		p.order = append(p.order, name)
	}
	t.total += d
	t.count++
	t.min = min(t.min, d)
	t.max = max(t.max, d)
}

// RecordMetric records a metric value.
func (p *Profiler) RecordMetric(name string, value float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, ok := p.metrics[name]
	if !ok {
		t = &metricTracker{min: value, max: value}
		p.metrics[name] = t
		p.names = append(p.names, name)
	}
	t.values = append(t.values, value)
	t.sum += value
	if len(t.values) > p.maxSamples {
		t.sum -= t.values[0]
		t.values = t.values[1:]
	}
	t.count++
	t.min = min(t.min, value)
	t.max = max(t.max, value)
}

// Stages returns the stage timings in first-recorded order.
func (p *Profiler) Stages() []StageTiming {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]StageTiming, 0, len(p.order))
	for _, name := range p.order {
		t := p.stages[name]
		out = append(out, StageTiming{Name: name, Count: t.count, Total: t.total, Min: t.min, Max: t.max})
	}
	return out
}

// Metric returns the summary of one metric.
func (p *Profiler) Metric(name string) (MetricSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	t, ok := p.metrics[name]
	if !ok || len(t.values) == 0 {
		return MetricSummary{}, false
	}
	return MetricSummary{
		Name:    name,
		Last:    t.values[len(t.values)-1],
		Mean:    t.sum / float64(len(t.values)),
		Min:     t.min,
		Max:     t.max,
		Samples: len(t.values),
	}, true
}

// Elapsed returns the time since the profiler was created.
func (p *Profiler) Elapsed() time.Duration {
	return time.Since(p.startTime)
}

// Report logs stage timings, metrics and memory usage at info level.
func (p *Profiler) Report(msg string) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	attrs := []any{
		slog.Duration("elapsed", p.Elapsed().Truncate(time.Millisecond)),
		slog.Int("goroutines", runtime.NumGoroutine()),
		slog.String("heap_alloc", formatBytes(mem.HeapAlloc)),
		slog.Uint64("gc_cycles", uint64(mem.NumGC)),
	}
	for _, s := range p.Stages() {
		attrs = append(attrs, slog.Group(s.Name,
			slog.Duration("total", s.Total.Truncate(time.Microsecond)),
			slog.Duration("mean", s.Mean().Truncate(time.Microsecond)),
			slog.Int64("count", s.Count)))
	}

	p.mu.RLock()
	names := append([]string(nil), p.names...)
	p.mu.RUnlock()
	for _, name := range names {
		if m, ok := p.Metric(name); ok {
			attrs = append(attrs, slog.Float64(name, m.Last))
		}
	}
	p.logger.Info(msg, attrs...)
}

// formatBytes formats byte counts in human-readable format.
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
