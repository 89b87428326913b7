// Package batch transcribes oversized, already-complete recordings:
// split with overlap, transcribe chunk by chunk with retries, persist
// progress after every chunk, and stitch the transcripts back together.
package batch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"scribe/chunk"
	"scribe/chunker"
	"scribe/encoder"
	"scribe/log"
	"scribe/metrics"
	"scribe/notify"
	"scribe/storage"
	"scribe/transcriber"
)

type Config struct {
	MaxRetries    int
	RetryDelay    time.Duration
	DedupWindow   int
	DedupMinMatch int
	Summarize     bool
	SummaryPrompt string
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:    3,
		RetryDelay:    time.Second,
		DedupWindow:   100,
		DedupMinMatch: 10,
		SummaryPrompt: "Summarize this transcript section concisely.",
	}
}

type Processor struct {
	cfg   Config
	split *chunker.Splitter
	tr    transcriber.Transcriber
	sum   transcriber.Summarizer
	store storage.Store
	cpr   storage.Checkpointer
	sink  notify.Sink
	met   *metrics.Metrics
}

func New(cfg Config, split *chunker.Splitter, tr transcriber.Transcriber, sum transcriber.Summarizer,
	store storage.Store, cpr storage.Checkpointer, sink notify.Sink, met *metrics.Metrics) *Processor {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = 100
	}
	if cfg.DedupMinMatch <= 0 {
		cfg.DedupMinMatch = 10
	}
	return &Processor{
		cfg:   cfg,
		split: split,
		tr:    tr,
		sum:   sum,
		store: store,
		cpr:   cpr,
		sink:  sink,
		met:   met,
	}
}

type Result struct {
	Transcript string
	Summary    string
	Chunks     int
	Failed     int
	ChunkIDs   []string // ids of the chunks that made it in, index order
}

// Process runs the whole recording. A checkpoint from an interrupted
// run resumes it: chunks already marked OK are skipped. One chunk
// failing all retries is logged and skipped; all of them failing is an
// error.
func (p *Processor) Process(ctx context.Context, samples []int16, blobSize int) (*Result, error) {
	parts := p.split.SplitSamples(samples, blobSize)
	if len(parts) == 0 {
		return nil, fmt.Errorf("recording is empty")
	}

	cp, err := p.cpr.Load()
	if err != nil {
		log.Warnf("checkpoint unreadable, starting over: %v", err)
		cp = nil
	}
	if cp == nil || cp.TotalChunks != len(parts) {
		cp = storage.NewCheckpoint(len(parts))
	} else if cp.Processed() > 0 {
		log.Infof("resuming batch: %d/%d chunks done", cp.Processed(), cp.TotalChunks)
	}

	for i, part := range parts {
		if prev, ok := cp.Results[i]; ok && prev.OK {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := p.processChunk(ctx, i, part)
		cp.Results[i] = res
		if err != nil {
			log.Errorf("chunk %d failed after %d attempts: %v", i, p.cfg.MaxRetries, err)
			if p.met != nil {
				p.met.ChunksFailed.Inc()
			}
		} else if p.met != nil {
			p.met.ChunksTranscribed.Inc()
		}

		if err := p.cpr.Save(cp); err != nil {
			return nil, fmt.Errorf("saving checkpoint: %w", err)
		}
		p.sink.Progress(cp.Processed(), cp.TotalChunks)
		log.BatchProgress(cp.Processed(), cp.TotalChunks, 0)
	}

	if cp.Processed() == 0 {
		return nil, fmt.Errorf("all %d chunks failed", cp.TotalChunks)
	}

	texts := make([]string, 0, cp.TotalChunks)
	summaries := make([]string, 0, cp.TotalChunks)
	ids := make([]string, 0, cp.TotalChunks)
	failed := 0
	for i := 0; i < cp.TotalChunks; i++ {
		r, ok := cp.Results[i]
		if !ok || !r.OK {
			failed++
			continue
		}
		texts = append(texts, r.Text)
		ids = append(ids, r.ChunkID)
		if r.Summary != "" {
			summaries = append(summaries, r.Summary)
		}
	}

	if err := p.cpr.Clear(); err != nil {
		log.Warnf("clearing checkpoint: %v", err)
	}

	return &Result{
		Transcript: Stitch(texts, p.cfg.DedupWindow, p.cfg.DedupMinMatch),
		Summary:    strings.Join(summaries, "\n\n"),
		Chunks:     cp.TotalChunks,
		Failed:     failed,
		ChunkIDs:   ids,
	}, nil
}

func (p *Processor) processChunk(ctx context.Context, index int, part chunker.Part) (storage.ChunkResult, error) {
	result := storage.ChunkResult{Index: index}

	blob, err := encoder.EncodeSamples(part.Samples)
	if err != nil {
		return result, fmt.Errorf("encoding: %w", err)
	}

	start := time.UnixMilli(int64(part.StartSample) * 1000 / encoder.SampleRate)
	durationMs := int64(len(part.Samples)) * 1000 / encoder.SampleRate
	c := chunk.New(blob, index, start, durationMs)
	result.ChunkID = c.Meta.ID

	if _, err := p.store.Save(blob, fmt.Sprintf("chunk-%03d.flac", index)); err != nil {
		return result, fmt.Errorf("persisting audio: %w", err)
	}

	var text string
	err = p.retry(ctx, func() error {
		res, err := p.tr.Transcribe(ctx, blob, "flac")
		if err != nil {
			return err
		}
		text = res.Text
		return nil
	})
	if err != nil {
		return result, err
	}
	result.Text = text

	if p.cfg.Summarize && p.sum != nil {
		var summary string
		err = p.retry(ctx, func() error {
			s, err := p.sum.Summarize(ctx, p.cfg.SummaryPrompt, text)
			if err != nil {
				return err
			}
			summary = s
			return nil
		})
		if err != nil {
			return result, fmt.Errorf("summarizing: %w", err)
		}
		result.Summary = summary
	}

	result.OK = true
	return result, nil
}

// retry runs fn up to MaxRetries times with a fixed delay between
// attempts.
func (p *Processor) retry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if p.met != nil {
				p.met.RetriesTotal.Inc()
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.cfg.RetryDelay):
			}
		}
		if err = fn(); err == nil {
			return nil
		}
	}
	return err
}
