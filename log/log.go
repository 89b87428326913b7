// Package log writes structured diagnostics to a file-backed zerolog
// logger plus a separate plain-text transcript log, so transcripts can
// be grepped without parsing the diagnostics stream.
package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	diagName       = "diagnostics_log.txt"
	transcriptName = "transcribe_log.txt"
)

var (
	mu         sync.Mutex
	dir        string
	diag       zerolog.Logger
	diagFile   *os.File
	transcript *os.File
	ready      bool
	pid        int
)

// ResolveDir picks the log directory: explicit flag, then the
// SCRIBE_LOG_PATH env var, then the OS default. Relative paths are
// anchored at the working directory.
func ResolveDir(flagPath string) (string, error) {
	for _, p := range []string{flagPath, os.Getenv("SCRIBE_LOG_PATH")} {
		if p == "" {
			continue
		}
		if filepath.IsAbs(p) {
			return p, nil
		}
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		return filepath.Join(wd, p), nil
	}
	return getDefaultDir()
}

func SetDir(d string) { dir = d }
func Dir() string     { return dir }

func Init() error {
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	pid = os.Getpid()

	var err error
	if diagFile, err = openAppend(filepath.Join(dir, diagName)); err != nil {
		return err
	}
	if transcript, err = openAppend(filepath.Join(dir, transcriptName)); err != nil {
		diagFile.Close()
		return err
	}

	diag = zerolog.New(zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}).With().Timestamp().Int("pid", pid).Logger()

	ready = true
	return nil
}

func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

func Close() {
	mu.Lock()
	defer mu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if transcript != nil {
		transcript.Close()
		transcript = nil
	}
	ready = false
}

func Info(msg string)  { event(diag.Info(), msg) }
func Warn(msg string)  { event(diag.Warn(), msg) }
func Error(msg string) { event(diag.Error(), msg) }

func Infof(format string, args ...any)  { Info(fmt.Sprintf(format, args...)) }
func Warnf(format string, args ...any)  { Warn(fmt.Sprintf(format, args...)) }
func Errorf(format string, args ...any) { Error(fmt.Sprintf(format, args...)) }

func event(ev *zerolog.Event, msg string) {
	if ready {
		ev.Msg(msg)
	}
}

// Metrics is the per-request timing breakdown logged after each
// provider call.
type Metrics struct {
	AudioLengthS float64
	SizeKB       float64
	DNSMs        float64
	TLSMs        float64
	TTFBMs       float64
	TotalMs      float64
}

func TranscriptionMetrics(m Metrics, format, provider string, connReused bool, tlsProto string) {
	if !ready {
		return
	}
	conn := "new"
	if connReused {
		conn = "reused"
	}
	ev := diag.Info().
		Str("provider", provider).
		Str("format", format).
		Str("conn", conn)
	if tlsProto != "" {
		ev = ev.Str("tls_proto", tlsProto)
	}
	ev.Float64("audio_s", m.AudioLengthS).
		Float64("size_kb", m.SizeKB).
		Float64("dns_ms", m.DNSMs).
		Float64("tls_ms", m.TLSMs).
		Float64("ttfb_ms", m.TTFBMs).
		Float64("total_ms", m.TotalMs).
		Msg("transcription")
}

// TranscriptionText appends one line per transcript to the separate
// transcript log.
func TranscriptionText(text string) {
	if !ready {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(transcript, "%s\t[%d]\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, text)
}

func Confidence(confidence float64) {
	if ready && confidence > 0 {
		diag.Info().Float64("confidence", confidence).Msg("api_confidence")
	}
}

func ChunkEnqueued(index int, sizeBytes int, queueLen int, queueBytes int64) {
	if !ready {
		return
	}
	diag.Info().
		Int("index", index).
		Int("size_bytes", sizeBytes).
		Int("queue_len", queueLen).
		Int64("queue_bytes", queueBytes).
		Msg("chunk_enqueued")
}

func ChunkRejected(index int, sizeBytes int, usagePct float64) {
	if !ready {
		return
	}
	diag.Warn().
		Int("index", index).
		Int("size_bytes", sizeBytes).
		Float64("usage_pct", usagePct).
		Msg("chunk_rejected")
}

func MemoryPressure(level string, usagePct float64) {
	if !ready {
		return
	}
	diag.Warn().
		Str("level", level).
		Float64("usage_pct", usagePct).
		Msg("memory_pressure")
}

func BatchProgress(done, total, retries int) {
	if !ready {
		return
	}
	diag.Info().
		Int("done", done).
		Int("total", total).
		Int("retries", retries).
		Msg("batch_progress")
}

func SessionStart(provider, format string) {
	if !ready {
		return
	}
	diag.Info().
		Str("provider", provider).
		Str("format", format).
		Msg("session_start")
}

func SessionEnd(chunks int, failed int) {
	if !ready {
		return
	}
	diag.Info().
		Int("chunks", chunks).
		Int("failed", failed).
		Msg("session_end")
}
