package profiler

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCollector map[string]float64

func (c staticCollector) CollectMetrics() map[string]float64 { return c }

func TestRecordDuration(t *testing.T) {
	p := New(Options{})
	p.RecordDuration("match", 10*time.Millisecond)
	p.RecordDuration("match", 30*time.Millisecond)

	s, ok := p.Operation("match")
	require.True(t, ok)
	assert.Equal(t, int64(2), s.Count)
	assert.InDelta(t, 0.020, s.Mean, 1e-9)
	assert.InDelta(t, 0.010, s.Min, 1e-9)
	assert.InDelta(t, 0.030, s.Max, 1e-9)

	_, ok = p.Operation("locate")
	assert.False(t, ok)
}

func TestRecordMetricKeepsMaxSamples(t *testing.T) {
	p := New(Options{MaxSamples: 3})
	for _, v := range []float64{1, 2, 3, 4, 5} {
		p.RecordMetric("score", v)
	}

	s, ok := p.Metric("score")
	require.True(t, ok)
	assert.Equal(t, int64(5), s.Count)
	assert.InDelta(t, 4, s.Mean, 1e-9)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 5.0, s.Max)
}

func TestStartOperationConcurrent(t *testing.T) {
	p := New(Options{})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			done := p.StartOperation("locate")
			done()
		}()
	}
	wg.Wait()

	s, ok := p.Operation("locate")
	require.True(t, ok)
	assert.Equal(t, int64(16), s.Count)
}

func TestWriteReport(t *testing.T) {
	p := New(Options{})
	p.RecordDuration("normalize", time.Millisecond)
	p.RecordDuration("locate", 2*time.Millisecond)
	p.AddMetricsCollector(staticCollector{"images": 3})

	var buf bytes.Buffer
	p.WriteReport(&buf)
	out := buf.String()

	assert.Contains(t, out, "OPERATION TIMINGS:")
	assert.Contains(t, out, "CUSTOM METRICS:")
	assert.Contains(t, out, "images: avg=3.0000")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("locate:")), bytes.Index(buf.Bytes(), []byte("normalize:")))
}

func TestStartStop(t *testing.T) {
	var buf syncBuffer
	p := New(Options{ReportInterval: 5 * time.Millisecond, Out: &buf})
	p.Start()
	p.Start()
	time.Sleep(30 * time.Millisecond)
	p.Stop()
	p.Stop()

	assert.Contains(t, buf.String(), "PROFILER REPORT")
}

func TestNilProfiler(t *testing.T) {
	var p *Profiler
	assert.NotPanics(t, func() {
		p.Start()
		p.StartOperation("x")()
		p.RecordMetric("y", 1)
		p.Report()
		p.Stop()
	})
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
