// Package encoder implements the FLAC blob codec used for chunk audio.
// The pipeline's fixed PCM format is 16kHz mono 16-bit.
package encoder

import "encoding/binary"

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

// BytesPerSecond of raw PCM at the pipeline format.
const BytesPerSecond = SampleRate * Channels * BitsPerSample / 8

type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
}

// EncodeSamples runs a whole sample slice through a fresh encoder and
// returns the finished FLAC blob.
func EncodeSamples(samples []int16) ([]byte, error) {
	enc, err := NewFlac()
	if err != nil {
		return nil, err
	}
	for i := 0; i < len(samples); i += BlockSize {
		end := i + BlockSize
		if end > len(samples) {
			end = len(samples)
		}
		if err := enc.EncodeBlock(samples[i:end]); err != nil {
			return nil, err
		}
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}

// PCMToSamples converts raw little-endian PCM bytes to int16 samples.
// A trailing odd byte is dropped.
func PCMToSamples(pcm []byte) []int16 {
	samples := make([]int16, 0, len(pcm)/2)
	for i := 0; i+1 < len(pcm); i += 2 {
		samples = append(samples, int16(binary.LittleEndian.Uint16(pcm[i:])))
	}
	return samples
}
