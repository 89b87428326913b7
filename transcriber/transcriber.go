// Package transcriber holds the transcription and summarization
// collaborators and the bundled provider adapters.
package transcriber

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"scribe/config"
)

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

type Result struct {
	Text       string
	Confidence float64
	Duration   float64 // audio seconds reported by the provider
	RateLimit  string
	Metrics    *NetworkMetrics
}

// Transcriber turns one encoded audio chunk into text. format is the
// blob codec name ("flac").
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, audio []byte, format string) (*Result, error)
}

// Summarizer condenses a transcript, used by the batch path when
// per-chunk summaries are requested.
type Summarizer interface {
	Summarize(ctx context.Context, prompt, text string) (string, error)
}

// New selects a provider from the config.
func New(cfg config.ProvidersConfig) (Transcriber, error) {
	switch cfg.Transcriber {
	case "deepgram":
		if cfg.DeepgramAPIKey == "" {
			return nil, fmt.Errorf("deepgram selected but DEEPGRAM_API_KEY is not set")
		}
		return NewDeepgram(cfg.DeepgramAPIKey, cfg.Language), nil
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai selected but OPENAI_API_KEY is not set")
		}
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.Language), nil
	case "fake":
		return NewFake("", nil), nil
	default:
		return nil, fmt.Errorf("unknown transcriber %q", cfg.Transcriber)
	}
}
