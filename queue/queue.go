// Package queue implements the bounded, memory-accounted FIFO that sits
// between audio capture and transcription.
package queue

import (
	"sync"

	"scribe/chunk"
)

// pauseThreshold is the occupancy (items or bytes) at which producers
// are advised to pause.
const pauseThreshold = 0.8

type Config struct {
	MaxItems    int
	MemoryLimit int64 // bytes
}

// Queue is safe for concurrent use. Enqueue never blocks; when a chunk
// does not fit it is rejected and the caller decides what to do.
type Queue struct {
	mu          sync.Mutex
	items       []chunk.Chunk
	memoryUsage int64
	cfg         Config
	paused      bool
	constrained bool
}

func New(cfg Config) *Queue {
	return &Queue{cfg: cfg}
}

// Enqueue appends c unless the item bound, the memory bound, or the
// memory-constrained flag forbids it. The bounds check and the insert
// happen under one lock.
func (q *Queue) Enqueue(c chunk.Chunk) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.constrained {
		return false
	}
	if len(q.items) >= q.cfg.MaxItems {
		return false
	}
	if q.memoryUsage+int64(c.Meta.SizeBytes) > q.cfg.MemoryLimit {
		return false
	}

	q.items = append(q.items, c)
	q.memoryUsage += int64(c.Meta.SizeBytes)

	if q.itemOccupancy() >= pauseThreshold || q.memoryOccupancy() >= pauseThreshold {
		q.paused = true
	}
	return true
}

// Dequeue pops the oldest chunk. ok is false when the queue is empty.
func (q *Queue) Dequeue() (c chunk.Chunk, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return chunk.Chunk{}, false
	}
	c = q.items[0]
	q.items = q.items[1:]
	q.memoryUsage -= int64(c.Meta.SizeBytes)

	if q.itemOccupancy() < pauseThreshold && q.memoryOccupancy() < pauseThreshold {
		q.paused = false
	}
	return c, true
}

// ShouldPause is advisory; producers may keep enqueueing and rely on
// rejection instead.
func (q *Queue) ShouldPause() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused
}

func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
	q.memoryUsage = 0
	q.paused = false
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) MemoryUsage() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.memoryUsage
}

// UsagePercent reports memory occupancy as a percentage, counting
// extraBytes on top of the current usage. Callers pass the size of a
// rejected chunk so warnings show the usage that would have resulted.
func (q *Queue) UsagePercent(extraBytes int64) float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cfg.MemoryLimit == 0 {
		return 0
	}
	return float64(q.memoryUsage+extraBytes) / float64(q.cfg.MemoryLimit) * 100
}

// SetConstrained toggles hard rejection of all enqueues, used when the
// memory monitor reports critical pressure.
func (q *Queue) SetConstrained(v bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.constrained = v
}

func (q *Queue) itemOccupancy() float64 {
	if q.cfg.MaxItems == 0 {
		return 0
	}
	return float64(len(q.items)) / float64(q.cfg.MaxItems)
}

func (q *Queue) memoryOccupancy() float64 {
	if q.cfg.MemoryLimit == 0 {
		return 0
	}
	return float64(q.memoryUsage) / float64(q.cfg.MemoryLimit)
}
