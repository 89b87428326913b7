package capture

import (
	"sync"
)

const (
	fakeFrameSize     = 1024
	fakeBytesPerFrame = 2 // 16-bit mono
)

// FakeContext replays canned PCM through the Device interface. For
// tests and the -in file mode.
type FakeContext struct {
	pcm []byte
}

func NewFakeContext(pcm []byte) *FakeContext {
	return &FakeContext{pcm: pcm}
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "fake"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ Config) (Device, error) {
	return &FakeDevice{pcm: f.pcm}, nil
}

type FakeDevice struct {
	pcm []byte

	mu sync.Mutex
	cb DataCallback
}

func (f *FakeDevice) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeDevice) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

// Start feeds the whole recording synchronously in frame-sized pieces.
func (f *FakeDevice) Start() error {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb == nil {
		return nil
	}

	chunkBytes := fakeFrameSize * fakeBytesPerFrame
	for pos := 0; pos < len(f.pcm); {
		end := pos + chunkBytes
		if end > len(f.pcm) {
			end = len(f.pcm)
		}
		piece := make([]byte, end-pos)
		copy(piece, f.pcm[pos:end])
		cb(piece, uint32(len(piece)/fakeBytesPerFrame))
		pos = end
	}
	return nil
}

func (f *FakeDevice) Stop()  {}
func (f *FakeDevice) Close() {}
