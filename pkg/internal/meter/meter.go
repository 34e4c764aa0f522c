// Package meter keeps per-session counters and latency totals and samples host load.
package meter

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeydtaylor/scalogram/pkg/internal/types"
	"github.com/joeydtaylor/scalogram/pkg/internal/utils"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
)

// HostSampler returns the current CPU and RAM utilisation in percent.
type HostSampler func() (cpuPercent, ramPercent float64, err error)

// Meter is a set of named monotonic counters plus host utilisation gauges.
type Meter struct {
	componentMetadata types.ComponentMetadata
	counts            map[string]*uint64
	percentages       map[string]float64
	peaks             map[string]float64
	startTime         time.Time
	sampler           HostSampler
	loggers           []types.Logger
	mu                sync.Mutex
}

// Snapshot is a point-in-time copy of every metric.
type Snapshot struct {
	Counts          map[string]uint64  `json:"counts"`
	Percentages     map[string]float64 `json:"percentages"`
	PeakPercentages map[string]float64 `json:"peak_percentages"`
	Uptime          time.Duration      `json:"uptime_ns"`
}

// NewMeter creates a meter sampling the host with gopsutil.
func NewMeter(options ...types.Option[*Meter]) *Meter {
	m := &Meter{
		componentMetadata: types.ComponentMetadata{
			ID:   utils.GenerateUniqueHash(),
			Type: "METER",
		},
		counts:      make(map[string]*uint64),
		percentages: make(map[string]float64),
		peaks:       make(map[string]float64),
		startTime:   time.Now(),
		sampler:     gopsutilSampler,
	}
	for _, name := range []string{
		types.MetricUploadCount,
		types.MetricUploadRowCount,
		types.MetricClassifySubmitted,
		types.MetricClassifyCompleted,
		types.MetricClassifyErrors,
		types.MetricRegressionCount,
		types.MetricModelLoadCount,
		types.MetricModelLoadErrors,
		types.MetricExtractionNanos,
		types.MetricClassifyNanos,
		types.MetricCurrentGoRoutines,
		types.MetricPeakGoRoutinesActive,
	} {
		m.counts[name] = new(uint64)
	}
	for _, option := range options {
		option(m)
	}
	return m
}

// IncrementCount adds one to the named counter.
func (m *Meter) IncrementCount(name string) {
	m.AddCount(name, 1)
}

// AddCount adds delta to the named counter, creating it on first use.
func (m *Meter) AddCount(name string, delta uint64) {
	atomic.AddUint64(m.counter(name), delta)
}

// ObserveDuration accumulates d in nanoseconds under name.
func (m *Meter) ObserveDuration(name string, d time.Duration) {
	if d > 0 {
		m.AddCount(name, uint64(d.Nanoseconds()))
	}
}

// SetMetricPeak raises the named counter to v if v is larger.
func (m *Meter) SetMetricPeak(name string, v uint64) {
	c := m.counter(name)
	for {
		old := atomic.LoadUint64(c)
		if v <= old || atomic.CompareAndSwapUint64(c, old, v) {
			return
		}
	}
}

// GetMetricCount returns the named counter, zero when unknown.
func (m *Meter) GetMetricCount(name string) uint64 {
	m.mu.Lock()
	c, ok := m.counts[name]
	m.mu.Unlock()
	if !ok {
		return 0
	}
	return atomic.LoadUint64(c)
}

// GetMetricPercentage returns the latest sampled gauge.
func (m *Meter) GetMetricPercentage(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.percentages[name]
}

// GetMetricPeakPercentage returns the highest sampled gauge.
func (m *Meter) GetMetricPeakPercentage(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peaks[name]
}

// SampleHost records CPU, RAM and goroutine usage.
func (m *Meter) SampleHost() error {
	goroutines := uint64(runtime.NumGoroutine())
	atomic.StoreUint64(m.counter(types.MetricCurrentGoRoutines), goroutines)
	m.SetMetricPeak(types.MetricPeakGoRoutinesActive, goroutines)

	cpuPct, ramPct, err := m.sampler()
	if err != nil {
		m.NotifyLoggers(types.WarnLevel, "Host sample failed",
			"component", m.GetComponentMetadata(),
			"event", "SampleHost",
			"result", "FAILURE",
			"error", err,
		)
		return err
	}

	m.mu.Lock()
	m.setPercentageLocked(types.MetricCurrentCpuPercentage, cpuPct)
	m.setPercentageLocked(types.MetricCurrentRamPercentage, ramPct)
	m.mu.Unlock()
	return nil
}

// Snapshot copies every metric.
func (m *Meter) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Snapshot{
		Counts:          make(map[string]uint64, len(m.counts)),
		Percentages:     make(map[string]float64, len(m.percentages)),
		PeakPercentages: make(map[string]float64, len(m.peaks)),
		Uptime:          time.Since(m.startTime),
	}
	for k, c := range m.counts {
		s.Counts[k] = atomic.LoadUint64(c)
	}
	for k, v := range m.percentages {
		s.Percentages[k] = v
	}
	for k, v := range m.peaks {
		s.PeakPercentages[k] = v
	}
	return s
}

// Report logs the current snapshot at info level, counters in name order.
func (m *Meter) Report() {
	s := m.Snapshot()
	names := make([]string, 0, len(s.Counts))
	for k := range s.Counts {
		names = append(names, k)
	}
	sort.Strings(names)

	kv := []interface{}{
		"component", m.GetComponentMetadata(),
		"event", "Report",
		"uptime", s.Uptime,
	}
	for _, name := range names {
		kv = append(kv, name, s.Counts[name])
	}
	for name, v := range s.Percentages {
		kv = append(kv, name, v)
	}
	m.NotifyLoggers(types.InfoLevel, "Meter report", kv...)
}

// Monitor samples and reports every interval until ctx is done.
func (m *Meter) Monitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = m.SampleHost()
			m.Report()
		}
	}
}

// GetComponentMetadata returns the meter identity.
func (m *Meter) GetComponentMetadata() types.ComponentMetadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.componentMetadata
}

func (m *Meter) counter(name string) *uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.counts[name]
	if !ok {
		c = new(uint64)
		m.counts[name] = c
	}
	return c
}

func (m *Meter) setPercentageLocked(name string, v float64) {
	m.percentages[name] = v
	if v > m.peaks[name] {
		m.peaks[name] = v
	}
}

func gopsutilSampler() (float64, float64, error) {
	cpuPercentages, err := cpu.Percent(500*time.Millisecond, false)
	if err != nil {
		return 0, 0, err
	}
	memStats, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0, err
	}
	var cpuPct float64
	if len(cpuPercentages) > 0 {
		cpuPct = cpuPercentages[0]
	}
	return cpuPct, memStats.UsedPercent, nil
}
