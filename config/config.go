// Package config loads the yaml configuration file and applies
// environment overrides for secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"scribe/device"
)

type Config struct {
	Audio     AudioConfig     `yaml:"audio"`
	Queue     QueueConfig     `yaml:"queue"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Batch     BatchConfig     `yaml:"batch"`
	Providers ProvidersConfig `yaml:"providers"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type AudioConfig struct {
	ChunkDurationSec int     `yaml:"chunk_duration_sec"`
	SampleRate       int     `yaml:"sample_rate"`
	BitrateKbps      int     `yaml:"bitrate_kbps"`
	Gain             int     `yaml:"gain"`        // software amplification, 1 = none
	LatencySec       float64 `yaml:"latency_sec"` // requested capture latency
}

type QueueConfig struct {
	MaxItems      int   `yaml:"max_items"`
	MemoryLimitMB int64 `yaml:"memory_limit_mb"`
}

type ChunkerConfig struct {
	SizeLimitMB int `yaml:"size_limit_mb"`
	OverlapSec  int `yaml:"overlap_sec"`
}

type BatchConfig struct {
	MaxRetries    int           `yaml:"max_retries"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	Summarize     bool          `yaml:"summarize"`
	SummaryPrompt string        `yaml:"summary_prompt"`
}

type ProvidersConfig struct {
	Transcriber    string `yaml:"transcriber"` // "deepgram" | "openai" | "fake"
	DeepgramAPIKey string `yaml:"deepgram_api_key"`
	OpenAIAPIKey   string `yaml:"openai_api_key"`
	Language       string `yaml:"language"`
}

type StorageConfig struct {
	AudioDir string `yaml:"audio_dir"`
	StateDir string `yaml:"state_dir"`
}

type LoggingConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
}

func Default() Config {
	return Config{
		Audio: AudioConfig{
			ChunkDurationSec: 30,
			SampleRate:       16000,
			BitrateKbps:      128,
			Gain:             1,
			LatencySec:       0.05,
		},
		Queue: QueueConfig{
			MaxItems:      10,
			MemoryLimitMB: 500,
		},
		Chunker: ChunkerConfig{
			SizeLimitMB: 20,
			OverlapSec:  2,
		},
		Batch: BatchConfig{
			MaxRetries: 3,
			RetryDelay: time.Second,
		},
		Providers: ProvidersConfig{
			Transcriber: "deepgram",
			Language:    "en",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load overlays path (optional) on the detected device profile's
// baselines and the generic defaults, then applies env overrides and
// validates. The profile seeds the device-tunable fields, so a
// constrained host gets its smaller chunk, queue, and memory budgets
// unless the yaml says otherwise.
func Load(path string, prof device.Profile) (Config, error) {
	cfg := Default()
	cfg.applyProfile(prof)

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyProfile(p device.Profile) {
	if p.ChunkDurationSec > 0 {
		c.Audio.ChunkDurationSec = p.ChunkDurationSec
	}
	if p.BitrateKbps > 0 {
		c.Audio.BitrateKbps = p.BitrateKbps
	}
	if p.MaxQueueSize > 0 {
		c.Queue.MaxItems = p.MaxQueueSize
	}
	if p.MemoryLimit > 0 {
		c.Queue.MemoryLimitMB = p.MemoryLimit >> 20
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DEEPGRAM_API_KEY"); v != "" {
		c.Providers.DeepgramAPIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Providers.OpenAIAPIKey = v
	}
	if v := os.Getenv("SCRIBE_TRANSCRIBER"); v != "" {
		c.Providers.Transcriber = v
	}
}

func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	if err := c.Queue.Validate(); err != nil {
		return fmt.Errorf("queue: %w", err)
	}
	if err := c.Chunker.Validate(); err != nil {
		return fmt.Errorf("chunker: %w", err)
	}
	if err := c.Batch.Validate(); err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	if err := c.Providers.Validate(); err != nil {
		return fmt.Errorf("providers: %w", err)
	}
	return nil
}

func (c AudioConfig) Validate() error {
	if c.ChunkDurationSec <= 0 {
		return fmt.Errorf("chunk_duration_sec must be positive, got %d", c.ChunkDurationSec)
	}
	if c.SampleRate != 8000 && c.SampleRate != 16000 {
		return fmt.Errorf("sample_rate must be 8000 or 16000, got %d", c.SampleRate)
	}
	if c.BitrateKbps <= 0 {
		return fmt.Errorf("bitrate_kbps must be positive, got %d", c.BitrateKbps)
	}
	if c.Gain < 1 {
		return fmt.Errorf("gain must be at least 1, got %d", c.Gain)
	}
	if c.LatencySec <= 0 {
		return fmt.Errorf("latency_sec must be positive, got %v", c.LatencySec)
	}
	return nil
}

func (c QueueConfig) Validate() error {
	if c.MaxItems <= 0 {
		return fmt.Errorf("max_items must be positive, got %d", c.MaxItems)
	}
	if c.MemoryLimitMB <= 0 {
		return fmt.Errorf("memory_limit_mb must be positive, got %d", c.MemoryLimitMB)
	}
	return nil
}

func (c ChunkerConfig) Validate() error {
	if c.SizeLimitMB <= 0 {
		return fmt.Errorf("size_limit_mb must be positive, got %d", c.SizeLimitMB)
	}
	if c.OverlapSec < 0 {
		return fmt.Errorf("overlap_sec must not be negative, got %d", c.OverlapSec)
	}
	return nil
}

func (c BatchConfig) Validate() error {
	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1, got %d", c.MaxRetries)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry_delay must not be negative, got %v", c.RetryDelay)
	}
	return nil
}

func (c ProvidersConfig) Validate() error {
	switch c.Transcriber {
	case "deepgram", "openai", "fake":
	default:
		return fmt.Errorf("unknown transcriber %q", c.Transcriber)
	}
	return nil
}
