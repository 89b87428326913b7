// Package chunk defines the audio chunk types that cross the
// producer/consumer boundary.
package chunk

import (
	"time"

	"github.com/google/uuid"
)

// Metadata travels with every chunk from capture to compilation. IDs are
// unique and double as progress-tracking and recovery keys.
type Metadata struct {
	ID          string
	Index       int
	DurationMs  int64
	TimestampMs int64 // epoch ms at chunk capture start
	SizeBytes   int
}

// Chunk is an encoded audio buffer plus its metadata. Ownership moves
// into the queue on enqueue and ends once the transcript is compiled.
type Chunk struct {
	Data []byte
	Meta Metadata
}

func New(data []byte, index int, start time.Time, durationMs int64) Chunk {
	return Chunk{
		Data: data,
		Meta: Metadata{
			ID:          uuid.NewString(),
			Index:       index,
			DurationMs:  durationMs,
			TimestampMs: start.UnixMilli(),
			SizeBytes:   len(data),
		},
	}
}

// Transcribed is one chunk's transcript, consumed exactly once by the
// compiler.
type Transcribed struct {
	Meta      Metadata
	Text      string
	Processed bool
}
