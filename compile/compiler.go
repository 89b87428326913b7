// Package compile assembles per-chunk transcripts into one ordered
// document, regardless of the order results arrive in.
package compile

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	// gaps longer than this between consecutive segments get a visible
	// discontinuity marker in the output
	gapThresholdMs = 1000
	gapMarker      = "\n\n...\n\n"
)

// Segment is one chunk's transcript positioned relative to the
// recording start.
type Segment struct {
	StartMs int64
	EndMs   int64
	Text    string
	ChunkID string
}

// Compiler keeps segments sorted by start time. Safe for concurrent use.
type Compiler struct {
	mu              sync.Mutex
	segments        []Segment
	recordingStart  time.Time
	totalDurationMs int64
}

func New(recordingStart time.Time) *Compiler {
	return &Compiler{recordingStart: recordingStart}
}

// AddSegment positions a transcript by its capture timestamp and inserts
// it at the sorted position. Out-of-order arrival is expected.
func (c *Compiler) AddSegment(chunkID, text string, capturedAt time.Time, durationMs int64) {
	startMs := capturedAt.Sub(c.recordingStart).Milliseconds()
	if startMs < 0 {
		startMs = 0
	}
	seg := Segment{
		StartMs: startMs,
		EndMs:   startMs + durationMs,
		Text:    text,
		ChunkID: chunkID,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	i := len(c.segments)
	for ; i > 0; i-- {
		if c.segments[i-1].StartMs <= seg.StartMs {
			break
		}
	}
	c.segments = append(c.segments, Segment{})
	copy(c.segments[i+1:], c.segments[i:])
	c.segments[i] = seg

	if seg.EndMs > c.totalDurationMs {
		c.totalDurationMs = seg.EndMs
	}
}

// Partial renders the transcript so far. Consecutive segments are joined
// with a space; a gap over one second becomes an ellipsis marker.
// Calling it repeatedly with no new segments yields identical output.
func (c *Compiler) Partial(withTimestamps bool) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.render(withTimestamps)
}

func (c *Compiler) render(withTimestamps bool) string {
	var b strings.Builder
	for i, seg := range c.segments {
		if i > 0 {
			gap := seg.StartMs - c.segments[i-1].EndMs
			if gap > gapThresholdMs {
				b.WriteString(gapMarker)
			} else {
				b.WriteString(" ")
			}
		}
		if withTimestamps {
			b.WriteString(formatTimestamp(seg.StartMs))
			b.WriteString(" ")
		}
		b.WriteString(strings.TrimSpace(seg.Text))
	}
	return b.String()
}

// Final renders the complete transcript, optionally with a header.
func (c *Compiler) Final(withTimestamps, withHeader bool) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	body := c.render(withTimestamps)
	if !withHeader {
		return body
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Transcription %s\n", c.recordingStart.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Duration: %s, %d segments\n\n", formatDuration(c.totalDurationMs), len(c.segments))
	b.WriteString(body)
	return b.String()
}

func (c *Compiler) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.segments)
}

func (c *Compiler) TotalDurationMs() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalDurationMs
}

func (c *Compiler) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.segments = nil
	c.totalDurationMs = 0
}

func formatTimestamp(ms int64) string {
	totalSec := ms / 1000
	return fmt.Sprintf("[%02d:%02d]", totalSec/60, totalSec%60)
}

func formatDuration(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	return d.Round(time.Second).String()
}
