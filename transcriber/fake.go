package transcriber

import (
	"context"
	"sync"
)

// FakeTranscriber returns canned text, or runs a scripted function when
// constructed with NewFakeFunc. For tests.
type FakeTranscriber struct {
	mu    sync.Mutex
	text  string
	err   error
	fn    func(call int, audio []byte) (*Result, error)
	calls int
}

func NewFake(text string, err error) *FakeTranscriber {
	return &FakeTranscriber{text: text, err: err}
}

// NewFakeFunc scripts per-call behavior; call counts from 0.
func NewFakeFunc(fn func(call int, audio []byte) (*Result, error)) *FakeTranscriber {
	return &FakeTranscriber{fn: fn}
}

func (f *FakeTranscriber) Name() string { return "fake" }

func (f *FakeTranscriber) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeTranscriber) Transcribe(ctx context.Context, audio []byte, format string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	call := f.calls
	f.calls++
	fn, text, err := f.fn, f.text, f.err
	f.mu.Unlock()

	if fn != nil {
		return fn(call, audio)
	}
	if err != nil {
		return nil, err
	}
	return &Result{Text: text, Confidence: 1}, nil
}

// FakeSummarizer echoes a canned summary. For tests.
type FakeSummarizer struct {
	Summary string
	Err     error
	Calls   int
}

func (f *FakeSummarizer) Summarize(ctx context.Context, prompt, text string) (string, error) {
	f.Calls++
	if f.Err != nil {
		return "", f.Err
	}
	if f.Summary != "" {
		return f.Summary, nil
	}
	return text, nil
}
