// Package profiler - per-stage timings and score statistics for scoring runs.
//
// The scorer wraps every stage in StartOperation. A batch run can emit a
// periodic status report while it works and a final report when it is done.
package profiler

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// MetricsCollector is polled at every report for extra metrics.
type MetricsCollector interface {
	CollectMetrics() map[string]float64
}

// Profiler records stage durations and custom metrics. It is safe for
// concurrent use; a nil *Profiler records nothing.
type Profiler struct {
	reportInterval time.Duration
	maxSamples     int
	out            io.Writer

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	startTime time.Time
	running   bool

	customMetrics  map[string]*MetricTracker
	collectors     []MetricsCollector
	operationTimes map[string]*TimeTracker
}

// MetricTracker keeps the most recent values of a custom metric.
type MetricTracker struct {
	values []float64
	min    float64
	max    float64
	count  int64
}

// TimeTracker keeps the most recent durations of an operation.
type TimeTracker struct {
	durations []float64 // seconds
	minTime   time.Duration
	maxTime   time.Duration
	count     int64
}

// Options configures a Profiler.
type Options struct {
	// ReportInterval is the period of status reports once started (default: 10s).
	ReportInterval time.Duration
	// MaxSamples bounds the values kept per metric (default: 10000).
	MaxSamples int
	// Out receives reports (default: os.Stdout).
	Out io.Writer
}

// Summary describes the recorded values of one metric or operation.
type Summary struct {
	Count  int64
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// New creates a Profiler.
//
// Arguments:
//   - opts: Reporting options. Zero values select the defaults.
//
// Returns:
//   - *Profiler: A profiler that is recording but not yet reporting.
func New(opts Options) *Profiler {
	if opts.ReportInterval == 0 {
		opts.ReportInterval = 10 * time.Second
	}
	if opts.MaxSamples == 0 {
		opts.MaxSamples = 10000
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Profiler{
		reportInterval: opts.ReportInterval,
		maxSamples:     opts.MaxSamples,
		out:            opts.Out,
		ctx:            ctx,
		cancel:         cancel,
		startTime:      time.Now(),
		customMetrics:  make(map[string]*MetricTracker),
		operationTimes: make(map[string]*TimeTracker),
	}
}

// Start emits a status report every ReportInterval until Stop.
func (p *Profiler) Start() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ticker := time.NewTicker(p.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-p.ctx.Done():
				return
			case <-ticker.C:
				p.Report()
			}
		}
	}()
}

// Stop ends periodic reporting and waits for the reporter to exit.
func (p *Profiler) Stop() {
	if p == nil {
		return
	}
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}

// AddMetricsCollector registers a collector polled at every report.
func (p *Profiler) AddMetricsCollector(collector MetricsCollector) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.collectors = append(p.collectors, collector)
}

// RecordMetric records a custom metric value, such as an image score.
func (p *Profiler) RecordMetric(name string, value float64) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recordMetricLocked(name, value)
}

func (p *Profiler) recordMetricLocked(name string, value float64) {
	tracker, exists := p.customMetrics[name]
	if !exists {
		tracker = &MetricTracker{min: value, max: value}
		p.customMetrics[name] = tracker
	}

	tracker.values = append(tracker.values, value)
	if len(tracker.values) > p.maxSamples {
		tracker.values = tracker.values[1:]
	}
	tracker.count++
	if value < tracker.min {
		tracker.min = value
	}
	if value > tracker.max {
		tracker.max = value
	}
}

// StartOperation begins timing an operation.
//
// Returns:
//   - func(): Call when the operation completes.
//
// @example
//
//	done := p.StartOperation("locate")
//	loc, err := locator.Locate(gray)
//	done()
func (p *Profiler) StartOperation(name string) func() {
	start := time.Now()
	return func() {
		p.RecordDuration(name, time.Since(start))
	}
}

// RecordDuration records one completed operation.
func (p *Profiler) RecordDuration(name string, d time.Duration) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	tracker, exists := p.operationTimes[name]
	if !exists {
		tracker = &TimeTracker{minTime: d, maxTime: d}
		p.operationTimes[name] = tracker
	}

	tracker.durations = append(tracker.durations, d.Seconds())
	if len(tracker.durations) > p.maxSamples {
		tracker.durations = tracker.durations[1:]
	}
	tracker.count++
	if d < tracker.minTime {
		tracker.minTime = d
	}
	if d > tracker.maxTime {
		tracker.maxTime = d
	}
}

// Operation summarizes the durations of an operation, in seconds.
func (p *Profiler) Operation(name string) (Summary, bool) {
	if p == nil {
		return Summary{}, false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	tracker, ok := p.operationTimes[name]
	if !ok {
		return Summary{}, false
	}
	mean, std := meanStdDev(tracker.durations)
	return Summary{
		Count:  tracker.count,
		Mean:   mean,
		StdDev: std,
		Min:    tracker.minTime.Seconds(),
		Max:    tracker.maxTime.Seconds(),
	}, true
}

// Metric summarizes a custom metric.
func (p *Profiler) Metric(name string) (Summary, bool) {
	if p == nil {
		return Summary{}, false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	tracker, ok := p.customMetrics[name]
	if !ok {
		return Summary{}, false
	}
	mean, std := meanStdDev(tracker.values)
	return Summary{
		Count:  tracker.count,
		Mean:   mean,
		StdDev: std,
		Min:    tracker.min,
		Max:    tracker.max,
	}, true
}

// Report writes a status report to the configured output.
func (p *Profiler) Report() {
	if p == nil {
		return
	}
	p.WriteReport(p.out)
}

// WriteReport writes a status report to w. Sections are sorted by name.
func (p *Profiler) WriteReport(w io.Writer) {
	if p == nil {
		return
	}

	p.mu.Lock()
	for _, collector := range p.collectors {
		for name, value := range collector.CollectMetrics() {
			p.recordMetricLocked(name, value)
		}
	}
	p.mu.Unlock()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	fmt.Fprintf(w, "PROFILER REPORT - %s\n", time.Now().Format("15:04:05.000"))
	fmt.Fprintf(w, "Uptime: %v\n", time.Since(p.startTime).Truncate(time.Millisecond))
	fmt.Fprintf(w, "Heap Alloc: %s, Sys: %s, GC Cycles: %d\n",
		formatBytes(mem.HeapAlloc), formatBytes(mem.Sys), mem.NumGC)

	p.mu.RLock()
	metricNames := sortedKeys(p.customMetrics)
	opNames := sortedKeys(p.operationTimes)
	p.mu.RUnlock()

	if len(metricNames) > 0 {
		fmt.Fprintf(w, "\nCUSTOM METRICS:\n")
		for _, name := range metricNames {
			s, _ := p.Metric(name)
			fmt.Fprintf(w, "  %s: avg=%.4f, std=%.4f, min=%.4f, max=%.4f, count=%d\n",
				name, s.Mean, s.StdDev, s.Min, s.Max, s.Count)
		}
	}

	if len(opNames) > 0 {
		fmt.Fprintf(w, "\nOPERATION TIMINGS:\n")
		for _, name := range opNames {
			s, _ := p.Operation(name)
			fmt.Fprintf(w, "  %s: avg=%v, min=%v, max=%v, count=%d\n",
				name,
				seconds(s.Mean).Truncate(time.Microsecond),
				seconds(s.Min).Truncate(time.Microsecond),
				seconds(s.Max).Truncate(time.Microsecond),
				s.Count)
		}
	}
}

// meanStdDev is the sample mean and standard deviation; a single sample has no spread.
func meanStdDev(x []float64) (float64, float64) {
	switch len(x) {
	case 0:
		return 0, 0
	case 1:
		return x[0], 0
	}
	return stat.MeanStdDev(x, nil)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatBytes formats byte counts in human-readable format.
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
