// Package vad wraps webrtcvad to give the capture recorder speech
// presence stats over the raw PCM stream.
package vad

import (
	"sync"
	"time"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"scribe/encoder"
)

const (
	mode       = 3
	frameMs    = 20
	frameBytes = encoder.SampleRate * frameMs / 1000 * 2 // 640 bytes
	debounce   = 3                                       // consecutive speech frames to confirm voice
)

// counters separates the tallies from the detector state so tick math
// stays in one place.
type counters struct {
	total  int
	speech int
}

type Processor struct {
	vad *webrtcvad.VAD

	mu        sync.Mutex
	pending   []byte
	confirmed bool
	lastVoice time.Time
	run       int
	all       counters
	mark      counters // snapshot at the previous tick
}

func New() (*Processor, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, err
	}
	if err := v.SetMode(mode); err != nil {
		return nil, err
	}
	return &Processor{vad: v}, nil
}

// Process consumes raw PCM bytes in any chunk size; partial frames are
// buffered until complete.
func (p *Processor) Process(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pending = append(p.pending, data...)
	for len(p.pending) >= frameBytes {
		p.processFrame(p.pending[:frameBytes])
		p.pending = p.pending[frameBytes:]
	}
}

func (p *Processor) processFrame(frame []byte) {
	active, err := p.vad.Process(encoder.SampleRate, frame)
	if err != nil {
		return
	}
	p.all.total++
	if !active {
		p.run = 0
		return
	}
	p.all.speech++
	p.run++
	if p.confirmed || p.run >= debounce {
		p.confirmed = true
		p.lastVoice = time.Now()
	}
}

func (p *Processor) VoiceDetected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.confirmed
}

func (p *Processor) LastVoiceTime() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastVoice
}

func (p *Processor) Stats() (total, speech int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.all.total, p.all.speech
}

const speechThreshold = 0.10 // 10% of frames must be speech to count as "speaking"

// HasSpeechTick reports whether the frames since the previous call
// contained enough speech, and advances the tick.
func (p *Processor) HasSpeechTick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	t := p.all.total - p.mark.total
	s := p.all.speech - p.mark.speech
	p.mark = p.all
	if t == 0 {
		return false
	}
	return float64(s)/float64(t) >= speechThreshold
}

func (p *Processor) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = p.pending[:0]
	p.confirmed = false
	p.lastVoice = time.Time{}
	p.run = 0
}
