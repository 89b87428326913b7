package main

import (
	"encoding/binary"
	"fmt"

	"scribe/encoder"
)

// decodeWAV extracts the PCM payload of a RIFF/WAVE file, rejecting
// anything that is not 16-bit mono PCM at wantRate.
func decodeWAV(data []byte, wantRate int) ([]int16, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a wav file")
	}

	var pcm []byte
	sawFmt := false
	for pos := 12; pos+8 <= len(data); {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if size < 0 || body+size > len(data) {
			return nil, fmt.Errorf("truncated %q chunk", id)
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("fmt chunk too short: %d bytes", size)
			}
			format := binary.LittleEndian.Uint16(data[body:])
			channels := binary.LittleEndian.Uint16(data[body+2:])
			rate := binary.LittleEndian.Uint32(data[body+4:])
			bits := binary.LittleEndian.Uint16(data[body+14:])
			if format != 1 || bits != 16 {
				return nil, fmt.Errorf("only 16-bit pcm is supported (format=%d, bits=%d)", format, bits)
			}
			if channels != 1 {
				return nil, fmt.Errorf("only mono input is supported, got %d channels", channels)
			}
			if int(rate) != wantRate {
				return nil, fmt.Errorf("sample rate %d does not match configured %d", rate, wantRate)
			}
			sawFmt = true
		case "data":
			pcm = data[body : body+size]
		}
		pos = body + size
		if size%2 == 1 {
			pos++ // chunks are word-aligned
		}
	}
	if !sawFmt {
		return nil, fmt.Errorf("missing fmt chunk")
	}
	if pcm == nil {
		return nil, fmt.Errorf("missing data chunk")
	}
	return encoder.PCMToSamples(pcm), nil
}
