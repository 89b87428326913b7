package capture

import (
	"fmt"
	"sync"
	"time"

	"scribe/chunk"
	"scribe/encoder"
	"scribe/vad"
)

// ChunkFunc receives each finished chunk. Returning false signals
// backpressure; the recorder drops the chunk (it was already rejected
// downstream) and keeps capturing.
type ChunkFunc func(c chunk.Chunk) bool

// Recorder accumulates the raw PCM stream and emits FLAC-encoded
// chunks of a fixed duration. The duration can be lowered mid-session
// when memory pressure rises.
type Recorder struct {
	emit ChunkFunc
	vp   *vad.Processor // optional

	mu         sync.Mutex
	pcm        []byte
	chunkBytes int
	index      int
	chunkStart time.Time
	dropped    int

	now func() time.Time
}

func NewRecorder(chunkDurationSec int, emit ChunkFunc, vp *vad.Processor) *Recorder {
	r := &Recorder{
		emit: emit,
		vp:   vp,
		now:  time.Now,
	}
	r.SetChunkDuration(chunkDurationSec)
	return r
}

// SetChunkDuration takes effect at the next chunk boundary.
func (r *Recorder) SetChunkDuration(sec int) {
	if sec < 1 {
		sec = 1
	}
	r.mu.Lock()
	r.chunkBytes = sec * encoder.BytesPerSecond
	r.mu.Unlock()
}

// Feed is the capture DataCallback. Whole chunks are encoded and
// emitted inline; the capture backends call this off the audio thread.
func (r *Recorder) Feed(data []byte, frameCount uint32) {
	if r.vp != nil {
		r.vp.Process(data)
	}

	r.mu.Lock()
	if len(r.pcm) == 0 {
		r.chunkStart = r.now()
	}
	r.pcm = append(r.pcm, data...)

	var ready [][]byte
	var starts []time.Time
	for len(r.pcm) >= r.chunkBytes {
		ready = append(ready, r.pcm[:r.chunkBytes])
		starts = append(starts, r.chunkStart)
		r.pcm = r.pcm[r.chunkBytes:]
		r.chunkStart = r.chunkStart.Add(time.Duration(r.chunkBytes/encoder.BytesPerSecond) * time.Second)
	}
	r.mu.Unlock()

	for i, pcm := range ready {
		r.emitChunk(pcm, starts[i])
	}
}

// Flush emits whatever partial chunk remains; call it when recording
// stops.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	pcm := r.pcm
	start := r.chunkStart
	r.pcm = nil
	r.mu.Unlock()

	if len(pcm) == 0 {
		return nil
	}
	return r.emitChunk(pcm, start)
}

func (r *Recorder) emitChunk(pcm []byte, start time.Time) error {
	samples := encoder.PCMToSamples(pcm)
	blob, err := encoder.EncodeSamples(samples)
	if err != nil {
		return fmt.Errorf("encoding chunk: %w", err)
	}

	r.mu.Lock()
	index := r.index
	r.index++
	r.mu.Unlock()

	durationMs := int64(len(samples)) * 1000 / encoder.SampleRate
	c := chunk.New(blob, index, start, durationMs)
	if !r.emit(c) {
		r.mu.Lock()
		r.dropped++
		r.mu.Unlock()
	}
	return nil
}

// Dropped counts chunks the consumer refused.
func (r *Recorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}
