package device

import "runtime"

// MemoryProbe reports process memory usage against a total budget.
type MemoryProbe interface {
	Used() int64
	Total() int64
}

// RuntimeProbe reads heap usage from the Go runtime and total memory
// from the OS where available.
type RuntimeProbe struct {
	total int64
}

func NewRuntimeProbe() *RuntimeProbe {
	total := physicalMemory()
	if total == 0 {
		// no OS reading; fall back to the capable-class budget
		total = ProfileFor(Capable).MemoryLimit
	}
	return &RuntimeProbe{total: total}
}

func (p *RuntimeProbe) Used() int64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return int64(m.HeapAlloc)
}

func (p *RuntimeProbe) Total() int64 {
	return p.total
}

// StaticProbe returns fixed readings, for tests.
type StaticProbe struct {
	UsedBytes  int64
	TotalBytes int64
}

func (p *StaticProbe) Used() int64  { return p.UsedBytes }
func (p *StaticProbe) Total() int64 { return p.TotalBytes }
