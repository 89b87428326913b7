// Package memwatch tracks process memory pressure and scales pipeline
// settings down when the host runs hot.
package memwatch

import (
	"sync"
	"time"

	"scribe/device"
)

type Pressure int

const (
	Normal Pressure = iota
	High
	Critical
)

func (p Pressure) String() string {
	switch p {
	case High:
		return "high"
	case Critical:
		return "critical"
	default:
		return "normal"
	}
}

const (
	sampleWindow  = 10
	checkInterval = 5 * time.Second
)

// AdaptiveSettings are recomputed on demand from the current pressure;
// they are never persisted.
type AdaptiveSettings struct {
	ChunkDurationSec int
	MaxQueueSize     int
	BitrateKbps      int
	SampleRate       int
}

// emergencyFloor is the hard minimum the settings degrade toward under
// critical pressure.
var emergencyFloor = AdaptiveSettings{
	ChunkDurationSec: 5,
	MaxQueueSize:     2,
	BitrateKbps:      16,
	SampleRate:       8000,
}

// Monitor keeps a sliding window of usage ratios from a MemoryProbe and
// classifies pressure with per-class thresholds. Safe for concurrent use.
type Monitor struct {
	mu         sync.Mutex
	probe      device.MemoryProbe
	class      device.Class
	baseline   AdaptiveSettings
	samples    []float64
	lastCheck  time.Time
	onWarning  func(pct float64)
	onCritical func()

	now func() time.Time // test hook
}

type Option func(*Monitor)

func WithWarningFunc(f func(pct float64)) Option {
	return func(m *Monitor) { m.onWarning = f }
}

func WithCriticalFunc(f func()) Option {
	return func(m *Monitor) { m.onCritical = f }
}

func New(probe device.MemoryProbe, class device.Class, baseline AdaptiveSettings, opts ...Option) *Monitor {
	m := &Monitor{
		probe:    probe,
		class:    class,
		baseline: baseline,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Sample reads the probe and appends the usage ratio to the window.
func (m *Monitor) Sample() float64 {
	used, total := m.probe.Used(), m.probe.Total()
	var ratio float64
	if total > 0 {
		ratio = float64(used) / float64(total)
	}

	m.mu.Lock()
	m.samples = append(m.samples, ratio)
	if len(m.samples) > sampleWindow {
		m.samples = m.samples[len(m.samples)-sampleWindow:]
	}
	m.mu.Unlock()
	return ratio
}

func (m *Monitor) thresholds() (high, critical float64) {
	if m.class == device.Constrained {
		return 0.70, 0.85
	}
	return 0.80, 0.90
}

// Pressure classifies the most recent sample.
func (m *Monitor) Pressure() Pressure {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.classify(m.latest())
}

func (m *Monitor) latest() float64 {
	if len(m.samples) == 0 {
		return 0
	}
	return m.samples[len(m.samples)-1]
}

func (m *Monitor) classify(ratio float64) Pressure {
	high, critical := m.thresholds()
	switch {
	case ratio > critical:
		return Critical
	case ratio > high:
		return High
	default:
		return Normal
	}
}

// Trend reports the change between the window's mean and its latest
// sample; positive means usage is climbing.
func (m *Monitor) Trend() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.samples) < 2 {
		return 0
	}
	var sum float64
	for _, s := range m.samples {
		sum += s
	}
	return m.latest() - sum/float64(len(m.samples))
}

// Check samples and fires callbacks, at most once per checkInterval.
// Intermediate calls are cheap no-ops so callers can invoke it on every
// chunk.
func (m *Monitor) Check() Pressure {
	m.mu.Lock()
	now := m.now()
	if now.Sub(m.lastCheck) < checkInterval {
		p := m.classify(m.latest())
		m.mu.Unlock()
		return p
	}
	m.lastCheck = now
	m.mu.Unlock()

	ratio := m.Sample()
	p := m.classify(ratio)
	switch p {
	case Critical:
		if m.onCritical != nil {
			m.onCritical()
		}
	case High:
		if m.onWarning != nil {
			m.onWarning(ratio * 100)
		}
	}
	return p
}

// Adaptive derives pipeline settings for the current pressure: the
// baseline when normal, halved (clamped to the floor) when high, and
// the emergency floor when critical.
func (m *Monitor) Adaptive() AdaptiveSettings {
	switch m.Pressure() {
	case Critical:
		return emergencyFloor
	case High:
		return AdaptiveSettings{
			ChunkDurationSec: maxInt(m.baseline.ChunkDurationSec/2, emergencyFloor.ChunkDurationSec),
			MaxQueueSize:     maxInt(m.baseline.MaxQueueSize/2, emergencyFloor.MaxQueueSize),
			BitrateKbps:      maxInt(m.baseline.BitrateKbps/2, emergencyFloor.BitrateKbps),
			SampleRate:       maxInt(m.baseline.SampleRate/2, emergencyFloor.SampleRate),
		}
	default:
		return m.baseline
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
