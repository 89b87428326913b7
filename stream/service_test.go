package stream

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"scribe/chunk"
	"scribe/compile"
	"scribe/notify"
	"scribe/queue"
	"scribe/transcriber"
)

type recordingSink struct {
	mu       sync.Mutex
	warnings []float64
	progress int
}

func (r *recordingSink) Progress(done, total int) {
	r.mu.Lock()
	r.progress++
	r.mu.Unlock()
}

func (r *recordingSink) MemoryWarning(pct float64) {
	r.mu.Lock()
	r.warnings = append(r.warnings, pct)
	r.mu.Unlock()
}

func (r *recordingSink) Done(notify.Outcome) {}
func (r *recordingSink) Failed(error)        {}

func newService(tr transcriber.Transcriber, start time.Time) (*Service, *recordingSink) {
	q := queue.New(queue.Config{MaxItems: 10, MemoryLimit: 100 << 20})
	sink := &recordingSink{}
	return New(q, tr, compile.New(start), sink, nil), sink
}

func mkChunk(index int, start time.Time) chunk.Chunk {
	data := []byte(fmt.Sprintf("audio-%d", index))
	return chunk.New(data, index, start.Add(time.Duration(index)*10*time.Second), 10000)
}

func TestChunksCompileInCaptureOrder(t *testing.T) {
	start := time.Now()
	// scripted delays: first chunk finishes last
	tr := transcriber.NewFakeFunc(func(call int, audio []byte) (*transcriber.Result, error) {
		if strings.HasSuffix(string(audio), "-0") {
			time.Sleep(150 * time.Millisecond)
		}
		return &transcriber.Result{Text: "text" + string(audio[len(audio)-2:])}, nil
	})
	svc, _ := newService(tr, start)

	for i := 0; i < 3; i++ {
		if !svc.AddChunk(mkChunk(i, start)) {
			t.Fatalf("chunk %d rejected", i)
		}
	}

	got := svc.Finish(false, false)
	i0 := strings.Index(got, "text-0")
	i1 := strings.Index(got, "text-1")
	i2 := strings.Index(got, "text-2")
	if i0 < 0 || i1 < 0 || i2 < 0 {
		t.Fatalf("missing segments in %q", got)
	}
	if !(i0 < i1 && i1 < i2) {
		t.Errorf("segments out of capture order: %q", got)
	}
}

func TestPerChunkFailureSkipped(t *testing.T) {
	start := time.Now()
	tr := transcriber.NewFakeFunc(func(call int, audio []byte) (*transcriber.Result, error) {
		if strings.HasSuffix(string(audio), "-1") {
			return nil, errors.New("provider hiccup")
		}
		return &transcriber.Result{Text: "ok" + string(audio[len(audio)-2:])}, nil
	})
	svc, _ := newService(tr, start)

	for i := 0; i < 3; i++ {
		svc.AddChunk(mkChunk(i, start))
	}
	got := svc.Finish(false, false)

	if strings.Contains(got, "ok-1") {
		t.Errorf("failed chunk appeared in output: %q", got)
	}
	if !strings.Contains(got, "ok-0") || !strings.Contains(got, "ok-2") {
		t.Errorf("surviving chunks missing: %q", got)
	}
	_, done, failed := svc.Stats()
	if done != 2 || failed != 1 {
		t.Errorf("done=%d failed=%d, want 2/1", done, failed)
	}
}

func TestRejectionFiresMemoryWarning(t *testing.T) {
	start := time.Now()
	q := queue.New(queue.Config{MaxItems: 10, MemoryLimit: 10})
	sink := &recordingSink{}
	svc := New(q, transcriber.NewFake("x", nil), compile.New(start), sink, nil)

	big := chunk.New(make([]byte, 100), 0, start, 1000)
	if svc.AddChunk(big) {
		t.Fatal("oversized chunk accepted")
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.warnings) != 1 {
		t.Fatalf("got %d warnings, want 1", len(sink.warnings))
	}
	if sink.warnings[0] < 100 {
		t.Errorf("warning pct = %v, want >= 100", sink.warnings[0])
	}
}

func TestAbortThenFinish(t *testing.T) {
	start := time.Now()
	began := make(chan struct{}, 16)
	tr := transcriber.NewFakeFunc(func(call int, _ []byte) (*transcriber.Result, error) {
		began <- struct{}{}
		time.Sleep(200 * time.Millisecond)
		return &transcriber.Result{Text: "slow"}, nil
	})
	q := queue.New(queue.Config{MaxItems: 10, MemoryLimit: 100 << 20})
	svc := New(q, tr, compile.New(start), &recordingSink{}, nil)

	for i := 0; i < 5; i++ {
		svc.AddChunk(mkChunk(i, start))
	}
	<-began // consumer is mid-chunk
	svc.Abort()

	got := svc.Finish(false, false)
	if got != "" {
		t.Errorf("transcript after abort = %q, want empty", got)
	}
	if q.Len() != 0 {
		t.Errorf("queue holds %d chunks after abort", q.Len())
	}
}

func TestAddChunkAfterFinishRejected(t *testing.T) {
	start := time.Now()
	svc, _ := newService(transcriber.NewFake("t", nil), start)
	svc.AddChunk(mkChunk(0, start))
	svc.Finish(false, false)

	// session idle again; a new chunk opens a new session
	if !svc.AddChunk(mkChunk(1, start)) {
		t.Error("chunk rejected after previous session finished")
	}
	svc.Finish(false, false)
}

func TestFinishWithoutChunks(t *testing.T) {
	svc, _ := newService(transcriber.NewFake("t", nil), time.Now())
	if got := svc.Finish(false, false); got != "" {
		t.Errorf("Finish on idle service = %q", got)
	}
}

func TestAbortIsIdempotent(t *testing.T) {
	svc, _ := newService(transcriber.NewFake("t", nil), time.Now())
	svc.Abort()
	svc.Abort()
}
