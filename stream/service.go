// Package stream runs the live transcription loop: producers enqueue
// chunks, a single consumer drains them into the compiler.
package stream

import (
	"context"
	"sync"
	"time"

	"scribe/chunk"
	"scribe/compile"
	"scribe/log"
	"scribe/metrics"
	"scribe/notify"
	"scribe/queue"
	"scribe/transcriber"
)

type state int

const (
	idle state = iota
	processing
	finishing
	aborted
)

const (
	pollInterval = 100 * time.Millisecond
	drainTimeout = 30 * time.Second
)

type Service struct {
	q    *queue.Queue
	tr   transcriber.Transcriber
	comp *compile.Compiler
	sink notify.Sink
	met  *metrics.Metrics

	mu        sync.Mutex
	st        state
	inflight  int
	accepted  int
	done      int
	failed    int
	processed map[string]bool
	cancel    context.CancelFunc
	loopDone  chan struct{}
}

func New(q *queue.Queue, tr transcriber.Transcriber, comp *compile.Compiler, sink notify.Sink, met *metrics.Metrics) *Service {
	return &Service{
		q:         q,
		tr:        tr,
		comp:      comp,
		sink:      sink,
		met:       met,
		processed: make(map[string]bool),
	}
}

// AddChunk offers a chunk to the queue. Returns false when intake is
// closed or the queue rejects it; a rejection fires a memory warning
// with the usage the chunk would have caused. The consumer goroutine
// starts lazily on the first accepted chunk.
func (s *Service) AddChunk(c chunk.Chunk) bool {
	s.mu.Lock()
	if s.st == finishing || s.st == aborted {
		s.mu.Unlock()
		return false
	}

	if !s.q.Enqueue(c) {
		s.mu.Unlock()
		pct := s.q.UsagePercent(int64(c.Meta.SizeBytes))
		log.ChunkRejected(c.Meta.Index, c.Meta.SizeBytes, pct)
		if s.met != nil {
			s.met.ChunksRejected.Inc()
		}
		s.sink.MemoryWarning(pct)
		return false
	}

	s.accepted++
	if s.st == idle {
		s.st = processing
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		s.loopDone = make(chan struct{})
		go s.run(ctx)
	}
	s.mu.Unlock()

	log.ChunkEnqueued(c.Meta.Index, c.Meta.SizeBytes, s.q.Len(), s.q.MemoryUsage())
	if s.met != nil {
		s.met.ChunksEnqueued.Inc()
		s.met.ChunkSizeBytes.Observe(float64(c.Meta.SizeBytes))
		s.met.QueueLength.Set(float64(s.q.Len()))
		s.met.QueueBytes.Set(float64(s.q.MemoryUsage()))
	}
	return true
}

func (s *Service) run(ctx context.Context) {
	defer close(s.loopDone)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// dequeue and the in-flight mark are one step, so Finish never
		// sees an empty queue while a chunk is between the two
		s.mu.Lock()
		c, ok := s.q.Dequeue()
		if ok {
			s.inflight++
		}
		s.mu.Unlock()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(pollInterval):
			}
			continue
		}

		s.process(ctx, c)

		s.mu.Lock()
		s.inflight--
		s.mu.Unlock()
	}
}

// process transcribes one chunk. Failures are logged and skipped; they
// never stop the loop.
func (s *Service) process(ctx context.Context, c chunk.Chunk) {
	start := time.Now()
	res, err := s.tr.Transcribe(ctx, c.Data, "flac")
	if err != nil {
		log.Errorf("chunk %d transcription failed: %v", c.Meta.Index, err)
		s.mu.Lock()
		s.failed++
		s.mu.Unlock()
		if s.met != nil {
			s.met.ChunksFailed.Inc()
		}
		return
	}

	if nm := res.Metrics; nm != nil {
		log.TranscriptionMetrics(log.Metrics{
			AudioLengthS: res.Duration,
			SizeKB:       float64(c.Meta.SizeBytes) / 1024,
			DNSMs:        float64(nm.DNS.Microseconds()) / 1000,
			TLSMs:        float64(nm.TLS.Microseconds()) / 1000,
			TTFBMs:       float64(nm.TTFB.Microseconds()) / 1000,
			TotalMs:      float64(nm.Total.Microseconds()) / 1000,
		}, "flac", s.tr.Name(), nm.ConnReused, nm.TLSProtocol)
	}

	s.publish(chunk.Transcribed{Meta: c.Meta, Text: res.Text, Processed: true}, start, res.Confidence)
}

// publish hands one transcribed chunk to the compiler, unless the
// session was aborted while it was in flight.
func (s *Service) publish(tc chunk.Transcribed, start time.Time, confidence float64) {
	s.mu.Lock()
	if s.st == aborted {
		s.mu.Unlock()
		return
	}
	s.processed[tc.Meta.ID] = true
	s.done++
	done, total := s.done, s.accepted
	s.mu.Unlock()

	s.comp.AddSegment(tc.Meta.ID, tc.Text, time.UnixMilli(tc.Meta.TimestampMs), tc.Meta.DurationMs)
	log.TranscriptionText(tc.Text)
	log.Confidence(confidence)
	if s.met != nil {
		s.met.ChunksTranscribed.Inc()
		s.met.TranscribeDuration.Observe(time.Since(start).Seconds())
		s.met.QueueLength.Set(float64(s.q.Len()))
		s.met.QueueBytes.Set(float64(s.q.MemoryUsage()))
	}
	s.sink.Progress(done, total)
}

// Finish closes intake, waits up to 30s for the queue and the in-flight
// chunk to drain, stops the consumer, and returns the compiled
// transcript. A timeout abandons whatever is still queued; the partial
// transcript is still returned.
func (s *Service) Finish(withTimestamps, withHeader bool) string {
	s.mu.Lock()
	if s.st == idle || s.st == aborted {
		s.mu.Unlock()
		return s.comp.Final(withTimestamps, withHeader)
	}
	s.st = finishing
	cancel, loopDone := s.cancel, s.loopDone
	s.mu.Unlock()

	deadline := time.Now().Add(drainTimeout)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		drained := s.q.Len() == 0 && s.inflight == 0
		s.mu.Unlock()
		if drained {
			break
		}
		time.Sleep(pollInterval)
	}

	cancel()
	<-loopDone

	s.mu.Lock()
	s.st = idle
	s.cancel = nil
	chunks, failed := s.done, s.failed
	s.mu.Unlock()

	log.SessionEnd(chunks, failed)
	return s.comp.Final(withTimestamps, withHeader)
}

// Abort stops everything now: the consumer is cancelled, the queue and
// compiler are cleared, and no in-flight result is published.
func (s *Service) Abort() {
	s.mu.Lock()
	prev := s.st
	s.st = aborted
	cancel, loopDone := s.cancel, s.loopDone
	s.mu.Unlock()

	if prev == processing || prev == finishing {
		cancel()
		<-loopDone
	}
	s.q.Clear()
	s.comp.Reset()

	s.mu.Lock()
	s.cancel = nil
	s.mu.Unlock()
	log.Warn("session aborted")
}

// Stats reports accepted / transcribed / failed chunk counts.
func (s *Service) Stats() (accepted, done, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted, s.done, s.failed
}
