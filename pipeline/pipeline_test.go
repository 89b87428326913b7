package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"scribe/batch"
	"scribe/chunker"
	"scribe/notify"
	"scribe/storage"
	"scribe/transcriber"
)

type spySink struct {
	mu     sync.Mutex
	dones  []notify.Outcome
	fails  []error
}

func (s *spySink) Progress(int, int)     {}
func (s *spySink) MemoryWarning(float64) {}

func (s *spySink) Done(o notify.Outcome) {
	s.mu.Lock()
	s.dones = append(s.dones, o)
	s.mu.Unlock()
}

func (s *spySink) Failed(err error) {
	s.mu.Lock()
	s.fails = append(s.fails, err)
	s.mu.Unlock()
}

type spyDoc struct {
	texts []string
	err   error
}

func (d *spyDoc) InsertText(text string, _ notify.Meta) error {
	if d.err != nil {
		return d.err
	}
	d.texts = append(d.texts, text)
	return nil
}

func loudSamples(n int) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = 10000
	}
	return samples
}

// noisySamples defeat FLAC compression so encoded size tracks sample
// count, which the oversized-path test relies on.
func noisySamples(n int) []int16 {
	samples := make([]int16, n)
	seed := uint32(1)
	for i := range samples {
		seed = seed*1664525 + 1013904223
		samples[i] = int16(seed >> 16)
	}
	return samples
}

func newPipeline(t *testing.T, opts Options, tr transcriber.Transcriber, sum transcriber.Summarizer) (*Processor, *spySink, *spyDoc) {
	t.Helper()
	store, err := storage.NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	stateFile, err := storage.NewStateFile(t.TempDir(), "pipeline.json")
	if err != nil {
		t.Fatal(err)
	}
	cpr, err := storage.NewFileCheckpointer(t.TempDir(), "batch.json")
	if err != nil {
		t.Fatal(err)
	}

	sink := &spySink{}
	doc := &spyDoc{}
	opts.RetryDelay = time.Millisecond
	bcfg := batch.DefaultConfig()
	bcfg.RetryDelay = time.Millisecond
	split := chunker.New(chunker.Config{SizeLimit: opts.SizeLimit, OverlapSec: 0, ScanWindow: 100, SilenceFloor: 328})
	bat := batch.New(bcfg, split, tr, sum, store, cpr, sink, nil)

	return New(opts, tr, sum, bat, store, stateFile, doc, sink), sink, doc
}

func TestDirectPath(t *testing.T) {
	tr := transcriber.NewFake("short recording text", nil)
	p, sink, doc := newPipeline(t, Options{SizeLimit: 1 << 30}, tr, nil)

	res, err := p.ProcessRecording(context.Background(), loudSamples(1000), notify.Meta{})
	if err != nil {
		t.Fatalf("ProcessRecording: %v", err)
	}
	if res.Transcript != "short recording text" || res.Chunks != 1 {
		t.Errorf("res = %+v", res)
	}
	if len(doc.texts) != 1 || doc.texts[0] != "short recording text" {
		t.Errorf("inserted = %v", doc.texts)
	}
	if len(sink.dones) != 1 || sink.dones[0].Chunks != 1 {
		t.Errorf("dones = %+v", sink.dones)
	}
	if got := p.State().Step; got != StepIdle {
		t.Errorf("final step = %s, want idle", got)
	}
}

func TestBatchPathForOversizedRecording(t *testing.T) {
	calls := 0
	tr := transcriber.NewFakeFunc(func(call int, _ []byte) (*transcriber.Result, error) {
		calls++
		return &transcriber.Result{Text: "part"}, nil
	})
	// a limit well under the encoded size forces the chunked path
	p, _, _ := newPipeline(t, Options{SizeLimit: 20000}, tr, nil)

	res, err := p.ProcessRecording(context.Background(), noisySamples(32000), notify.Meta{})
	if err != nil {
		t.Fatalf("ProcessRecording: %v", err)
	}
	if res.Chunks < 2 {
		t.Errorf("Chunks = %d, want chunked path", res.Chunks)
	}
	if calls < 2 {
		t.Errorf("transcriber called %d times", calls)
	}
}

func TestSaveAudio(t *testing.T) {
	tr := transcriber.NewFake("text", nil)
	p, _, _ := newPipeline(t, Options{SizeLimit: 1 << 30, SaveAudio: true}, tr, nil)

	res, err := p.ProcessRecording(context.Background(), loudSamples(1000), notify.Meta{})
	if err != nil {
		t.Fatal(err)
	}
	if res.AudioPath == "" || !strings.Contains(res.AudioPath, "recording-") {
		t.Errorf("AudioPath = %q", res.AudioPath)
	}
}

func TestSummarization(t *testing.T) {
	tr := transcriber.NewFake("long talk", nil)
	sum := &transcriber.FakeSummarizer{Summary: "the gist"}
	p, sink, _ := newPipeline(t, Options{SizeLimit: 1 << 30, Summarize: true}, tr, sum)

	res, err := p.ProcessRecording(context.Background(), loudSamples(1000), notify.Meta{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Summary != "the gist" {
		t.Errorf("Summary = %q", res.Summary)
	}
	if sink.dones[0].Summary != "the gist" {
		t.Errorf("outcome summary = %q", sink.dones[0].Summary)
	}
}

func TestEmptyRecordingFailsValidation(t *testing.T) {
	tr := transcriber.NewFake("x", nil)
	p, sink, _ := newPipeline(t, Options{SizeLimit: 1 << 30}, tr, nil)

	_, err := p.ProcessRecording(context.Background(), nil, notify.Meta{})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "validating") {
		t.Errorf("err = %v", err)
	}
	if len(sink.fails) != 1 {
		t.Errorf("fails = %v", sink.fails)
	}
	if p.State().Step != StepIdle {
		t.Errorf("step after failure = %s, want idle", p.State().Step)
	}
}

func TestDirectPathRetriesTransientFailure(t *testing.T) {
	tr := transcriber.NewFakeFunc(func(call int, _ []byte) (*transcriber.Result, error) {
		if call == 0 {
			return nil, errors.New("transient")
		}
		return &transcriber.Result{Text: "second try"}, nil
	})
	p, sink, _ := newPipeline(t, Options{SizeLimit: 1 << 30}, tr, nil)

	res, err := p.ProcessRecording(context.Background(), loudSamples(1000), notify.Meta{})
	if err != nil {
		t.Fatalf("ProcessRecording: %v", err)
	}
	if res.Transcript != "second try" {
		t.Errorf("Transcript = %q", res.Transcript)
	}
	if tr.Calls() != 2 {
		t.Errorf("transcriber called %d times, want 2", tr.Calls())
	}
	if len(sink.fails) != 0 {
		t.Errorf("fails = %v", sink.fails)
	}
}

func TestTranscriptionFailureReported(t *testing.T) {
	tr := transcriber.NewFake("", errors.New("provider down"))
	p, sink, doc := newPipeline(t, Options{SizeLimit: 1 << 30}, tr, nil)

	_, err := p.ProcessRecording(context.Background(), loudSamples(1000), notify.Meta{})
	if err == nil {
		t.Fatal("expected error")
	}
	if tr.Calls() != 3 {
		t.Errorf("transcriber called %d times, want 3 attempts before failing", tr.Calls())
	}
	if !strings.Contains(err.Error(), "transcribing") {
		t.Errorf("err = %v", err)
	}
	if len(doc.texts) != 0 {
		t.Error("insertion ran after a failed transcription")
	}
	if len(sink.fails) != 1 || len(sink.dones) != 0 {
		t.Errorf("fails=%d dones=%d", len(sink.fails), len(sink.dones))
	}
}

func TestInsertionFailureReported(t *testing.T) {
	tr := transcriber.NewFake("text", nil)
	p, _, doc := newPipeline(t, Options{SizeLimit: 1 << 30}, tr, nil)
	doc.err = errors.New("vault locked")

	_, err := p.ProcessRecording(context.Background(), loudSamples(1000), notify.Meta{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "inserting") {
		t.Errorf("err = %v", err)
	}
}

func TestRepeatedInvocationsReset(t *testing.T) {
	tr := transcriber.NewFake("run", nil)
	p, sink, _ := newPipeline(t, Options{SizeLimit: 1 << 30}, tr, nil)

	for i := 0; i < 3; i++ {
		if _, err := p.ProcessRecording(context.Background(), loudSamples(1000), notify.Meta{}); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if p.State().Step != StepIdle {
			t.Fatalf("run %d left step %s", i, p.State().Step)
		}
	}
	if len(sink.dones) != 3 {
		t.Errorf("dones = %d", len(sink.dones))
	}
}
