// Package notify decouples the pipeline from whatever surface shows
// progress: a TUI, a log file, or a note in the user's vault.
package notify

import (
	"fmt"
	"os"
	"time"

	"scribe/log"
)

// Outcome is the terminal notification payload.
type Outcome struct {
	Transcript string
	Summary    string
	Chunks     int
	Failed     int
	Elapsed    time.Duration
}

// Meta describes the recording an inserted transcript came from.
type Meta struct {
	AudioPath  string
	StartedAt  time.Time
	DurationMs int64
}

// Sink receives pipeline events. Implementations must not block.
type Sink interface {
	Progress(done, total int)
	MemoryWarning(usagePct float64)
	Done(o Outcome)
	Failed(err error)
}

// DocumentSink inserts a finished transcript into the user's document.
type DocumentSink interface {
	InsertText(text string, meta Meta) error
}

// LogSink writes events to the diagnostics log.
type LogSink struct{}

func (LogSink) Progress(done, total int) {
	log.Infof("progress %d/%d", done, total)
}

func (LogSink) MemoryWarning(usagePct float64) {
	log.MemoryPressure("queue", usagePct)
}

func (LogSink) Done(o Outcome) {
	log.Infof("done: %d chunks (%d failed) in %s", o.Chunks, o.Failed, o.Elapsed.Round(time.Millisecond))
}

func (LogSink) Failed(err error) {
	log.Errorf("failed: %v", err)
}

// Event is the tagged union ChanSink emits.
type Event struct {
	Kind     string // "progress" | "memory" | "done" | "failed"
	Done     int
	Total    int
	UsagePct float64
	Outcome  Outcome
	Err      error
}

// ChanSink forwards events to a channel, dropping when the receiver
// lags so the pipeline never blocks on its UI.
type ChanSink struct {
	C chan Event
}

func NewChanSink(buffer int) *ChanSink {
	return &ChanSink{C: make(chan Event, buffer)}
}

func (s *ChanSink) emit(e Event) {
	select {
	case s.C <- e:
	default:
	}
}

func (s *ChanSink) Progress(done, total int) {
	s.emit(Event{Kind: "progress", Done: done, Total: total})
}

func (s *ChanSink) MemoryWarning(usagePct float64) {
	s.emit(Event{Kind: "memory", UsagePct: usagePct})
}

func (s *ChanSink) Done(o Outcome) {
	s.emit(Event{Kind: "done", Outcome: o})
}

func (s *ChanSink) Failed(err error) {
	s.emit(Event{Kind: "failed", Err: err})
}

// MarkdownSink appends transcripts to a markdown note.
type MarkdownSink struct {
	Path string
}

func (m MarkdownSink) InsertText(text string, meta Meta) error {
	f, err := os.OpenFile(m.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening note: %w", err)
	}
	defer f.Close()

	header := fmt.Sprintf("\n## Transcription %s\n\n", meta.StartedAt.Format("2006-01-02 15:04"))
	if _, err := f.WriteString(header + text + "\n"); err != nil {
		return fmt.Errorf("appending transcript: %w", err)
	}
	return nil
}

// Multi fans events out to several sinks.
type Multi []Sink

func (m Multi) Progress(done, total int) {
	for _, s := range m {
		s.Progress(done, total)
	}
}

func (m Multi) MemoryWarning(pct float64) {
	for _, s := range m {
		s.MemoryWarning(pct)
	}
}

func (m Multi) Done(o Outcome) {
	for _, s := range m {
		s.Done(o)
	}
}

func (m Multi) Failed(err error) {
	for _, s := range m {
		s.Failed(err)
	}
}
