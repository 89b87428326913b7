package memwatch

import (
	"testing"
	"time"

	"scribe/device"
)

var baseline = AdaptiveSettings{
	ChunkDurationSec: 30,
	MaxQueueSize:     10,
	BitrateKbps:      128,
	SampleRate:       16000,
}

func TestPressureBands(t *testing.T) {
	tests := []struct {
		name  string
		class device.Class
		used  int64
		want  Pressure
	}{
		{"capable normal", device.Capable, 50, Normal},
		{"capable at high boundary", device.Capable, 80, Normal},
		{"capable high", device.Capable, 85, High},
		{"capable critical", device.Capable, 95, Critical},
		{"constrained high", device.Constrained, 75, High},
		{"constrained critical", device.Constrained, 90, Critical},
		{"constrained normal", device.Constrained, 60, Normal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probe := &device.StaticProbe{UsedBytes: tt.used, TotalBytes: 100}
			m := New(probe, tt.class, baseline)
			m.Sample()
			if got := m.Pressure(); got != tt.want {
				t.Errorf("Pressure = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckThrottle(t *testing.T) {
	probe := &device.StaticProbe{UsedBytes: 95, TotalBytes: 100}
	criticals := 0
	m := New(probe, device.Capable, baseline, WithCriticalFunc(func() { criticals++ }))

	clock := time.Unix(0, 0)
	m.now = func() time.Time { return clock }

	for i := 0; i < 5; i++ {
		m.Check()
		clock = clock.Add(time.Second)
	}
	if criticals != 1 {
		t.Errorf("critical callback fired %d times in 5s, want 1", criticals)
	}

	clock = clock.Add(checkInterval)
	m.Check()
	if criticals != 2 {
		t.Errorf("critical callback fired %d times after interval, want 2", criticals)
	}
}

func TestWarningCallback(t *testing.T) {
	probe := &device.StaticProbe{UsedBytes: 85, TotalBytes: 100}
	var gotPct float64
	m := New(probe, device.Capable, baseline, WithWarningFunc(func(pct float64) { gotPct = pct }))
	clock := time.Unix(100, 0)
	m.now = func() time.Time { return clock }

	if p := m.Check(); p != High {
		t.Fatalf("Check = %v, want High", p)
	}
	if gotPct != 85 {
		t.Errorf("warning pct = %v, want 85", gotPct)
	}
}

func TestSampleWindowBound(t *testing.T) {
	probe := &device.StaticProbe{UsedBytes: 10, TotalBytes: 100}
	m := New(probe, device.Capable, baseline)
	for i := 0; i < sampleWindow*3; i++ {
		m.Sample()
	}
	m.mu.Lock()
	n := len(m.samples)
	m.mu.Unlock()
	if n != sampleWindow {
		t.Errorf("window holds %d samples, want %d", n, sampleWindow)
	}
}

func TestTrend(t *testing.T) {
	probe := &device.StaticProbe{UsedBytes: 10, TotalBytes: 100}
	m := New(probe, device.Capable, baseline)
	m.Sample()
	probe.UsedBytes = 50
	m.Sample()
	if tr := m.Trend(); tr <= 0 {
		t.Errorf("Trend = %v, want positive for climbing usage", tr)
	}
}

func TestAdaptive(t *testing.T) {
	probe := &device.StaticProbe{UsedBytes: 0, TotalBytes: 100}
	m := New(probe, device.Capable, baseline)

	t.Run("normal keeps baseline", func(t *testing.T) {
		probe.UsedBytes = 40
		m.Sample()
		if got := m.Adaptive(); got != baseline {
			t.Errorf("Adaptive = %+v, want baseline", got)
		}
	})

	t.Run("high halves toward floor", func(t *testing.T) {
		probe.UsedBytes = 85
		m.Sample()
		got := m.Adaptive()
		if got.ChunkDurationSec != 15 || got.MaxQueueSize != 5 || got.BitrateKbps != 64 {
			t.Errorf("Adaptive = %+v", got)
		}
		if got.SampleRate != 8000 {
			t.Errorf("SampleRate = %d under high pressure, want 8000", got.SampleRate)
		}
	})

	t.Run("high never degrades below the floor", func(t *testing.T) {
		low := New(probe, device.Capable, emergencyFloor)
		probe.UsedBytes = 85
		low.Sample()
		if got := low.Adaptive(); got != emergencyFloor {
			t.Errorf("Adaptive = %+v, want emergency floor unchanged", got)
		}
	})

	t.Run("critical hits the floor", func(t *testing.T) {
		probe.UsedBytes = 99
		m.Sample()
		if got := m.Adaptive(); got != emergencyFloor {
			t.Errorf("Adaptive = %+v, want emergency floor", got)
		}
	})
}
