// Package device classifies the host as memory-capable or
// memory-constrained and derives per-class pipeline baselines.
package device

import (
	"runtime"
	"strconv"
)

type Class int

const (
	Capable Class = iota
	Constrained
)

func (c Class) String() string {
	if c == Constrained {
		return "constrained"
	}
	return "capable"
}

const fourGB = 4 << 30

// Readings are the raw signals classification votes over.
type Readings struct {
	NumCPU        int
	PhysicalBytes int64 // 0 when unknown
	WordBits      int
}

// Detect gathers readings from the running host.
func Detect() Readings {
	return Readings{
		NumCPU:        runtime.NumCPU(),
		PhysicalBytes: physicalMemory(),
		WordBits:      strconv.IntSize,
	}
}

// Classify votes over the readings; two or more constrained signals
// make the host constrained. An unknown memory reading does not vote.
func Classify(r Readings) Class {
	votes := 0
	if r.NumCPU > 0 && r.NumCPU < 4 {
		votes++
	}
	if r.PhysicalBytes > 0 && r.PhysicalBytes < fourGB {
		votes++
	}
	if r.WordBits == 32 {
		votes++
	}
	if votes >= 2 {
		return Constrained
	}
	return Capable
}

// Profile holds the per-class pipeline baselines.
type Profile struct {
	Class            Class
	ChunkDurationSec int
	MaxQueueSize     int
	BitrateKbps      int
	MemoryLimit      int64
}

func ProfileFor(c Class) Profile {
	if c == Constrained {
		return Profile{
			Class:            Constrained,
			ChunkDurationSec: 15,
			MaxQueueSize:     5,
			BitrateKbps:      64,
			MemoryLimit:      100 << 20,
		}
	}
	return Profile{
		Class:            Capable,
		ChunkDurationSec: 30,
		MaxQueueSize:     10,
		BitrateKbps:      128,
		MemoryLimit:      500 << 20,
	}
}
