// Package pipeline drives one recording through validation, optional
// save, transcription, optional summarization, and document insertion,
// persisting its state after every transition.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"scribe/batch"
	"scribe/encoder"
	"scribe/log"
	"scribe/notify"
	"scribe/storage"
	"scribe/transcriber"
)

type Step string

const (
	StepIdle         Step = "idle"
	StepValidating   Step = "validating"
	StepSaving       Step = "saving"
	StepTranscribing Step = "transcribing"
	StepSummarizing  Step = "summarizing"
	StepInserting    Step = "inserting"
	StepError        Step = "error-reported"
)

// State is the persisted snapshot. Audio bytes are never part of it.
type State struct {
	Step            Step      `json:"step"`
	Transcription   string    `json:"transcription,omitempty"`
	Summary         string    `json:"summary,omitempty"`
	StartedAt       time.Time `json:"started_at,omitempty"`
	Err             string    `json:"err,omitempty"`
	ProcessedChunks int       `json:"processed_chunks"`
	TotalChunks     int       `json:"total_chunks"`
	ProcessedIDs    []string  `json:"processed_ids,omitempty"`
}

type Options struct {
	SaveAudio     bool
	Summarize     bool
	SummaryPrompt string
	SizeLimit     int // blobs over this go through the batch path
	MaxRetries    int
	RetryDelay    time.Duration
}

type Processor struct {
	opts  Options
	tr    transcriber.Transcriber
	sum   transcriber.Summarizer
	bat   *batch.Processor
	store storage.Store
	state *storage.StateFile
	doc   notify.DocumentSink
	sink  notify.Sink

	st State
}

func New(opts Options, tr transcriber.Transcriber, sum transcriber.Summarizer, bat *batch.Processor,
	store storage.Store, state *storage.StateFile, doc notify.DocumentSink, sink notify.Sink) *Processor {
	if opts.SizeLimit <= 0 {
		opts.SizeLimit = 20 << 20
	}
	if opts.SummaryPrompt == "" {
		opts.SummaryPrompt = "Summarize this transcript concisely."
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	return &Processor{
		opts:  opts,
		tr:    tr,
		sum:   sum,
		bat:   bat,
		store: store,
		state: state,
		doc:   doc,
		sink:  sink,
		st:    State{Step: StepIdle},
	}
}

func (p *Processor) State() State { return p.st }

func (p *Processor) transition(step Step) {
	p.st.Step = step
	if p.state != nil {
		if err := p.state.Write(p.st); err != nil {
			log.Warnf("persisting pipeline state: %v", err)
		}
	}
	log.Infof("pipeline step: %s", step)
}

func (p *Processor) fail(step Step, err error) error {
	wrapped := fmt.Errorf("%s: %w", step, err)
	p.st.Err = wrapped.Error()
	p.transition(StepError)
	p.sink.Failed(wrapped)
	p.reset()
	return wrapped
}

func (p *Processor) reset() {
	p.st = State{Step: StepIdle}
	if p.state != nil {
		p.state.Clear()
	}
}

type Result struct {
	Transcript string
	Summary    string
	Chunks     int
	Failed     int
	AudioPath  string
}

// ProcessRecording runs the whole invocation. Small recordings are
// transcribed in one call; anything over SizeLimit goes through the
// batch processor with its per-chunk retry and resume.
func (p *Processor) ProcessRecording(ctx context.Context, samples []int16, meta notify.Meta) (*Result, error) {
	started := time.Now()
	p.reset()
	p.st.StartedAt = started

	p.transition(StepValidating)
	if len(samples) == 0 {
		return nil, p.fail(StepValidating, fmt.Errorf("recording is empty"))
	}

	blob, err := encoder.EncodeSamples(samples)
	if err != nil {
		return nil, p.fail(StepValidating, err)
	}

	res := &Result{}

	if p.opts.SaveAudio {
		p.transition(StepSaving)
		name := fmt.Sprintf("recording-%s.flac", started.Format("20060102-150405"))
		path, err := p.store.Save(blob, name)
		if err != nil {
			return nil, p.fail(StepSaving, err)
		}
		res.AudioPath = path
		meta.AudioPath = path
	}

	p.transition(StepTranscribing)
	if len(blob) > p.opts.SizeLimit {
		bres, err := p.bat.Process(ctx, samples, len(blob))
		if err != nil {
			return nil, p.fail(StepTranscribing, err)
		}
		res.Transcript = bres.Transcript
		res.Summary = bres.Summary
		res.Chunks = bres.Chunks
		res.Failed = bres.Failed
		p.st.ProcessedChunks = bres.Chunks - bres.Failed
		p.st.TotalChunks = bres.Chunks
		p.st.ProcessedIDs = bres.ChunkIDs
	} else {
		var tres *transcriber.Result
		err := p.retry(ctx, func() error {
			var terr error
			tres, terr = p.tr.Transcribe(ctx, blob, "flac")
			return terr
		})
		if err != nil {
			return nil, p.fail(StepTranscribing, err)
		}
		res.Transcript = tres.Text
		res.Chunks = 1
		p.st.ProcessedChunks = 1
		p.st.TotalChunks = 1
	}
	p.st.Transcription = res.Transcript

	if p.opts.Summarize && p.sum != nil && res.Summary == "" {
		p.transition(StepSummarizing)
		var summary string
		err := p.retry(ctx, func() error {
			var serr error
			summary, serr = p.sum.Summarize(ctx, p.opts.SummaryPrompt, res.Transcript)
			return serr
		})
		if err != nil {
			return nil, p.fail(StepSummarizing, err)
		}
		res.Summary = summary
		p.st.Summary = summary
	}

	if p.doc != nil {
		p.transition(StepInserting)
		if err := p.doc.InsertText(res.Transcript, meta); err != nil {
			return nil, p.fail(StepInserting, err)
		}
	}

	p.sink.Done(notify.Outcome{
		Transcript: res.Transcript,
		Summary:    res.Summary,
		Chunks:     res.Chunks,
		Failed:     res.Failed,
		Elapsed:    time.Since(started),
	})
	p.reset()
	return res, nil
}

// retry runs fn up to MaxRetries times with a fixed delay between
// attempts, matching the per-chunk behavior of the batch path.
func (p *Processor) retry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < p.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.opts.RetryDelay):
			}
		}
		if err = fn(); err == nil {
			return nil
		}
	}
	return err
}
