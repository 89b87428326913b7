// Package capture provides microphone input backends (pulse on linux,
// malgo elsewhere, a fake for tests) and the recorder that turns the
// raw stream into bounded chunks.
package capture

import (
	"encoding/binary"
	"strings"
)

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

// IsBluetooth guesses from the device name; bluetooth mics often need a
// moment to switch profiles before they deliver clean audio.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

type DataCallback func(data []byte, frameCount uint32)

type Config struct {
	SampleRate uint32
	Channels   uint32
	Gain       int     // software amplification factor, 1 (or 0) is unity
	Latency    float64 // requested device latency in seconds, 0 picks a default
}

// pcmFromSamples encodes 16-bit samples as little-endian PCM, scaling
// each sample by gain and clipping at the int16 range.
func pcmFromSamples(buf []int16, gain int) []byte {
	if gain < 1 {
		gain = 1
	}
	data := make([]byte, len(buf)*2)
	for i, s := range buf {
		v := int32(s) * int32(gain)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		binary.LittleEndian.PutUint16(data[i*2:], uint16(int16(v)))
	}
	return data
}

// amplifyPCM scales 16-bit little-endian PCM in place by gain with
// clipping. Gain below 2 leaves the buffer untouched.
func amplifyPCM(data []byte, gain int) {
	if gain < 2 {
		return
	}
	for i := 0; i+1 < len(data); i += 2 {
		v := int32(int16(binary.LittleEndian.Uint16(data[i:]))) * int32(gain)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		binary.LittleEndian.PutUint16(data[i:], uint16(int16(v)))
	}
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config Config) (Device, error)
	Close()
}

type Device interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
}
