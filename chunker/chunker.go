// Package chunker splits oversized recordings into bounded chunks at
// silence boundaries, with a short overlap so words cut at a boundary
// survive in the next chunk.
package chunker

import (
	"fmt"

	"scribe/encoder"
)

type Config struct {
	SizeLimit    int // max encoded blob bytes per chunk
	OverlapSec   int // seconds of audio repeated at each chunk start
	ScanWindow   int // samples searched around an ideal cut
	SilenceFloor int // |amplitude| below this counts as silence
}

func DefaultConfig() Config {
	return Config{
		SizeLimit:    20 << 20,
		OverlapSec:   2,
		ScanWindow:   1000,
		SilenceFloor: 328, // 1% of int16 full scale
	}
}

type Splitter struct {
	cfg Config
}

func New(cfg Config) *Splitter {
	if cfg.SizeLimit <= 0 {
		cfg.SizeLimit = DefaultConfig().SizeLimit
	}
	if cfg.ScanWindow <= 0 {
		cfg.ScanWindow = DefaultConfig().ScanWindow
	}
	if cfg.SilenceFloor <= 0 {
		cfg.SilenceFloor = DefaultConfig().SilenceFloor
	}
	return &Splitter{cfg: cfg}
}

// Part is one chunk of a split recording. StartSample locates it in the
// original sample stream, overlap included.
type Part struct {
	Samples     []int16
	StartSample int
}

// Split divides an encoded blob into chunk blobs no larger than
// SizeLimit. Blobs already under the limit pass through untouched.
func (s *Splitter) Split(blob []byte) ([][]byte, error) {
	if len(blob) <= s.cfg.SizeLimit {
		return [][]byte{blob}, nil
	}

	samples, err := encoder.Decode(blob)
	if err != nil {
		return nil, fmt.Errorf("decoding blob for split: %w", err)
	}

	parts := s.SplitSamples(samples, len(blob))
	blobs := make([][]byte, 0, len(parts))
	for i, p := range parts {
		b, err := encoder.EncodeSamples(p.Samples)
		if err != nil {
			return nil, fmt.Errorf("encoding chunk %d: %w", i, err)
		}
		blobs = append(blobs, b)
	}
	return blobs, nil
}

// SplitSamples cuts a sample stream into parts whose encoded size should
// stay under SizeLimit, given the original blob size for the
// bytes-per-sample ratio. Cuts snap to nearby silence and each part
// after the first begins OverlapSec earlier than its cut.
func (s *Splitter) SplitSamples(samples []int16, blobSize int) []Part {
	if len(samples) == 0 {
		return nil
	}
	n := (blobSize + s.cfg.SizeLimit - 1) / s.cfg.SizeLimit
	if n <= 1 {
		return []Part{{Samples: samples, StartSample: 0}}
	}

	ideal := len(samples) / n
	overlap := s.cfg.OverlapSec * encoder.SampleRate

	cuts := make([]int, 0, n-1)
	for i := 1; i < n; i++ {
		cuts = append(cuts, s.alignCut(samples, i*ideal))
	}

	parts := make([]Part, 0, n)
	start := 0
	for _, cut := range cuts {
		parts = append(parts, Part{Samples: samples[start:cut], StartSample: start})
		start = cut - overlap
		if start < 0 {
			start = 0
		}
	}
	parts = append(parts, Part{Samples: samples[start:], StartSample: start})
	return parts
}

// alignCut looks up to ScanWindow samples on either side of ideal for
// two consecutive near-silent samples and cuts there; failing that it
// cuts at the ideal position.
func (s *Splitter) alignCut(samples []int16, ideal int) int {
	floor := int16(s.cfg.SilenceFloor)
	for d := 0; d <= s.cfg.ScanWindow; d++ {
		for _, pos := range []int{ideal + d, ideal - d} {
			if pos < 1 || pos >= len(samples) {
				continue
			}
			if abs16(samples[pos-1]) < floor && abs16(samples[pos]) < floor {
				return pos
			}
		}
	}
	if ideal >= len(samples) {
		return len(samples) - 1
	}
	return ideal
}

// Concat decodes each blob and re-encodes one continuous stream.
func (s *Splitter) Concat(blobs [][]byte) ([]byte, error) {
	var all []int16
	for i, b := range blobs {
		samples, err := encoder.Decode(b)
		if err != nil {
			return nil, fmt.Errorf("decoding blob %d: %w", i, err)
		}
		all = append(all, samples...)
	}
	return encoder.EncodeSamples(all)
}

func abs16(s int16) int16 {
	if s < 0 {
		return -s
	}
	return s
}
