package encoder

import (
	"bytes"
	"fmt"
	"io"

	"github.com/mewkiz/flac"
)

// Decode parses a FLAC blob back into int16 samples. Only mono streams
// are accepted; anything else is a format error.
func Decode(blob []byte) ([]int16, error) {
	stream, err := flac.Parse(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("parsing flac stream: %w", err)
	}
	defer stream.Close()

	if stream.Info.NChannels != Channels {
		return nil, fmt.Errorf("expected mono stream, got %d channels", stream.Info.NChannels)
	}

	var samples []int16
	if n := stream.Info.NSamples; n > 0 {
		samples = make([]int16, 0, n)
	}
	for {
		f, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing flac frame: %w", err)
		}
		sub := f.Subframes[0]
		for _, s := range sub.Samples[:sub.NSamples] {
			samples = append(samples, int16(s))
		}
	}
	return samples, nil
}
