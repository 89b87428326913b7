package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atotto/clipboard"
	"github.com/joho/godotenv"
	"golang.org/x/term"

	"scribe/batch"
	"scribe/capture"
	"scribe/chunker"
	"scribe/compile"
	"scribe/config"
	"scribe/device"
	"scribe/log"
	"scribe/memwatch"
	"scribe/metrics"
	"scribe/notify"
	"scribe/pipeline"
	"scribe/queue"
	"scribe/storage"
	"scribe/stream"
	"scribe/transcriber"
	"scribe/vad"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "scribe: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  = flag.String("config", "", "path to scribe.yaml")
		inPath      = flag.String("in", "", "transcribe a wav file instead of recording")
		outPath     = flag.String("out", "", "append the transcript to this markdown file")
		record      = flag.Bool("record", false, "record from the microphone until interrupted")
		timestamps  = flag.Bool("timestamps", false, "prefix each segment with [mm:ss]")
		header      = flag.Bool("header", false, "prepend a date/duration header")
		copyOut     = flag.Bool("copy", false, "copy the final transcript to the clipboard")
		summarize   = flag.Bool("summarize", false, "summarize the transcript (file mode)")
		saveAudio   = flag.Bool("save", false, "keep the recorded audio on disk")
		logPath     = flag.String("logpath", "", "log directory override")
		metricsAddr = flag.String("metrics", "", "serve prometheus metrics on this address")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("scribe", version)
		return nil
	}

	godotenv.Load()

	class := device.Classify(device.Detect())
	profile := device.ProfileFor(class)

	cfg, err := config.Load(*configPath, profile)
	if err != nil {
		return err
	}

	dir, err := log.ResolveDir(*logPath)
	if err != nil {
		return fmt.Errorf("resolving log dir: %w", err)
	}
	log.SetDir(dir)
	if err := log.Init(); err != nil {
		return fmt.Errorf("initializing logs: %w", err)
	}
	defer log.Close()
	log.Infof("scribe %s starting", version)
	log.Infof("device class: %s", class)

	met := metrics.New()
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", met.Handler())
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Errorf("metrics server: %v", err)
			}
		}()
	}

	tr, err := transcriber.New(cfg.Providers)
	if err != nil {
		return err
	}
	log.SessionStart(tr.Name(), "flac")

	switch {
	case *inPath != "":
		return runFile(cfg, tr, *inPath, *outPath, *summarize, *saveAudio, *copyOut, met)
	case *record:
		return runRecord(cfg, tr, class, *outPath, *timestamps, *header, *copyOut, met)
	default:
		flag.Usage()
		return fmt.Errorf("pass -record or -in FILE")
	}
}

// runFile pushes a finished recording through the pipeline; oversized
// files take the chunked batch path with checkpoint resume.
func runFile(cfg config.Config, tr transcriber.Transcriber, inPath, outPath string,
	summarize, saveAudio, copyOut bool, met *metrics.Metrics) error {

	data, err := os.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", inPath, err)
	}
	samples, err := decodeWAV(data, cfg.Audio.SampleRate)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", inPath, err)
	}

	store, err := storage.NewDiskStore(cfg.Storage.AudioDir)
	if err != nil {
		return err
	}
	stateDir := cfg.Storage.StateDir
	if stateDir == "" {
		stateDir = log.Dir()
	}
	stateFile, err := storage.NewStateFile(stateDir, "pipeline.json")
	if err != nil {
		return err
	}
	cpr, err := storage.NewFileCheckpointer(stateDir, "batch.json")
	if err != nil {
		return err
	}

	var sum transcriber.Summarizer
	if summarize {
		if cfg.Providers.OpenAIAPIKey == "" {
			return fmt.Errorf("-summarize needs OPENAI_API_KEY")
		}
		sum = transcriber.NewOpenAISummarizer(cfg.Providers.OpenAIAPIKey)
	}

	sizeLimit := cfg.Chunker.SizeLimitMB << 20
	split := chunker.New(chunker.Config{
		SizeLimit:  sizeLimit,
		OverlapSec: cfg.Chunker.OverlapSec,
	})
	bcfg := batch.DefaultConfig()
	bcfg.MaxRetries = cfg.Batch.MaxRetries
	bcfg.RetryDelay = cfg.Batch.RetryDelay
	bcfg.Summarize = summarize
	if cfg.Batch.SummaryPrompt != "" {
		bcfg.SummaryPrompt = cfg.Batch.SummaryPrompt
	}

	sink := notify.Sink(notify.LogSink{})
	var doc notify.DocumentSink
	if outPath != "" {
		doc = notify.MarkdownSink{Path: outPath}
	}

	bat := batch.New(bcfg, split, tr, sum, store, cpr, sink, met)
	proc := pipeline.New(pipeline.Options{
		SaveAudio: saveAudio,
		Summarize: summarize,
		SizeLimit: sizeLimit,
	}, tr, sum, bat, store, stateFile, doc, sink)

	res, err := proc.ProcessRecording(context.Background(), samples, notify.Meta{
		AudioPath: inPath,
		StartedAt: time.Now(),
	})
	if err != nil {
		return err
	}

	emitTranscript(res.Transcript, copyOut)
	if res.Summary != "" {
		fmt.Println("\n---\n" + res.Summary)
	}
	return nil
}

// runRecord streams microphone chunks through the bounded queue until
// interrupted, then drains and prints the compiled transcript.
func runRecord(cfg config.Config, tr transcriber.Transcriber, class device.Class,
	outPath string, timestamps, header, copyOut bool, met *metrics.Metrics) error {

	q := queue.New(queue.Config{
		MaxItems:    cfg.Queue.MaxItems,
		MemoryLimit: cfg.Queue.MemoryLimitMB << 20,
	})
	comp := compile.New(time.Now())

	interactive := term.IsTerminal(int(os.Stdout.Fd()))
	var sink notify.Sink = notify.LogSink{}
	var ui *tuiRunner
	if interactive {
		events := notify.NewChanSink(64)
		sink = notify.Multi{notify.LogSink{}, events}
		ui = startTUI(events)
	}

	svc := stream.New(q, tr, comp, sink, met)

	baseline := memwatch.AdaptiveSettings{
		ChunkDurationSec: cfg.Audio.ChunkDurationSec,
		MaxQueueSize:     cfg.Queue.MaxItems,
		BitrateKbps:      cfg.Audio.BitrateKbps,
		SampleRate:       cfg.Audio.SampleRate,
	}
	mon := memwatch.New(device.NewRuntimeProbe(), class, baseline,
		memwatch.WithWarningFunc(func(pct float64) {
			log.MemoryPressure("high", pct)
			met.MemoryUsageRatio.Set(pct / 100)
			sink.MemoryWarning(pct)
		}),
		memwatch.WithCriticalFunc(func() {
			log.MemoryPressure("critical", 0)
			q.SetConstrained(true)
		}),
	)

	vp, err := vad.New()
	if err != nil {
		log.Warnf("vad unavailable: %v", err)
		vp = nil
	}

	rec := capture.NewRecorder(cfg.Audio.ChunkDurationSec, svc.AddChunk, vp)

	ctx, err := capture.NewContext()
	if err != nil {
		return fmt.Errorf("audio init: %w", err)
	}
	defer ctx.Close()

	dev, err := ctx.NewCapture(nil, capture.Config{
		SampleRate: uint32(cfg.Audio.SampleRate),
		Channels:   1,
		Gain:       cfg.Audio.Gain,
		Latency:    cfg.Audio.LatencySec,
	})
	if err != nil {
		return fmt.Errorf("opening capture device: %w", err)
	}
	defer dev.Close()

	dev.SetCallback(func(data []byte, frames uint32) {
		rec.Feed(data, frames)
		if mon.Check() != memwatch.Normal {
			rec.SetChunkDuration(mon.Adaptive().ChunkDurationSec)
		}
	})

	if err := dev.Start(); err != nil {
		return fmt.Errorf("starting capture: %w", err)
	}
	log.Info("recording; ctrl+c to stop")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	dev.Stop()
	dev.ClearCallback()
	if err := rec.Flush(); err != nil {
		log.Warnf("flush: %v", err)
	}

	text := svc.Finish(timestamps, header)
	if ui != nil {
		ui.stop()
	}

	if outPath != "" {
		doc := notify.MarkdownSink{Path: outPath}
		if err := doc.InsertText(text, notify.Meta{StartedAt: time.Now()}); err != nil {
			return err
		}
	}
	emitTranscript(text, copyOut)

	accepted, done, failed := svc.Stats()
	log.Infof("session: %d accepted, %d transcribed, %d failed, %d dropped",
		accepted, done, failed, rec.Dropped())
	return nil
}

func emitTranscript(text string, copyOut bool) {
	fmt.Println(text)
	if copyOut && text != "" {
		if err := clipboard.WriteAll(text); err != nil {
			log.Warnf("clipboard: %v", err)
		}
	}
}
