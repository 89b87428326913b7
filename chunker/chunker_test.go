package chunker

import (
	"testing"

	"scribe/encoder"
)

// loudWithSilenceAt builds a stream of loud samples with a two-sample
// silent dip at each given position.
func loudWithSilenceAt(n int, silentAt ...int) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = 10000
	}
	for _, p := range silentAt {
		if p > 0 && p < n {
			samples[p-1] = 0
			samples[p] = 0
		}
	}
	return samples
}

func TestSplitNoOpUnderLimit(t *testing.T) {
	s := New(Config{SizeLimit: 1 << 20})
	blob := []byte("small enough")
	got, err := s.Split(blob)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d blobs, want 1", len(got))
	}
	if string(got[0]) != string(blob) {
		t.Error("blob modified by no-op split")
	}
}

func TestSplitSamplesSingle(t *testing.T) {
	s := New(DefaultConfig())
	samples := loudWithSilenceAt(1000)
	parts := s.SplitSamples(samples, 100) // well under the limit
	if len(parts) != 1 {
		t.Fatalf("got %d parts, want 1", len(parts))
	}
	if parts[0].StartSample != 0 || len(parts[0].Samples) != 1000 {
		t.Errorf("part = start %d len %d", parts[0].StartSample, len(parts[0].Samples))
	}
}

func TestSplitSamplesAlignsToSilence(t *testing.T) {
	// 100k samples, ideal cut at 50k; silence planted at 50.3k, inside
	// the scan window.
	s := New(Config{SizeLimit: 10, OverlapSec: 0, ScanWindow: 1000, SilenceFloor: 328})
	samples := loudWithSilenceAt(100000, 50300)

	parts := s.SplitSamples(samples, 20) // n = 2
	if len(parts) != 2 {
		t.Fatalf("got %d parts, want 2", len(parts))
	}
	if got := len(parts[0].Samples); got != 50300 {
		t.Errorf("cut at %d, want 50300 (silence boundary)", got)
	}
	if parts[1].StartSample != 50300 {
		t.Errorf("second part starts at %d, want 50300", parts[1].StartSample)
	}
}

func TestSplitSamplesNoSilenceFallsBack(t *testing.T) {
	s := New(Config{SizeLimit: 10, OverlapSec: 0, ScanWindow: 1000, SilenceFloor: 328})
	samples := loudWithSilenceAt(100000) // no dips anywhere

	parts := s.SplitSamples(samples, 20)
	if len(parts) != 2 {
		t.Fatalf("got %d parts, want 2", len(parts))
	}
	if got := len(parts[0].Samples); got != 50000 {
		t.Errorf("cut at %d, want ideal 50000", got)
	}
}

func TestSplitSamplesOverlap(t *testing.T) {
	s := New(Config{SizeLimit: 10, OverlapSec: 2, ScanWindow: 1000, SilenceFloor: 328})
	samples := loudWithSilenceAt(encoder.SampleRate * 20) // 20s

	parts := s.SplitSamples(samples, 20) // n = 2, cut near 10s
	if len(parts) != 2 {
		t.Fatalf("got %d parts, want 2", len(parts))
	}
	cut := len(parts[0].Samples)
	wantStart := cut - 2*encoder.SampleRate
	if parts[1].StartSample != wantStart {
		t.Errorf("second part starts at %d, want %d (2s overlap)", parts[1].StartSample, wantStart)
	}
	// coverage: nothing between the parts is lost
	if parts[1].StartSample > cut {
		t.Error("gap between consecutive parts")
	}
}

func TestSplitEncodedRoundtrip(t *testing.T) {
	// real blobs: 4s of audio with planted silences, split with a tiny
	// size limit so the encoded path runs end to end.
	samples := loudWithSilenceAt(encoder.SampleRate*4,
		encoder.SampleRate, encoder.SampleRate*2, encoder.SampleRate*3)
	blob, err := encoder.EncodeSamples(samples)
	if err != nil {
		t.Fatal(err)
	}

	s := New(Config{SizeLimit: len(blob) / 3, OverlapSec: 0, ScanWindow: 1000, SilenceFloor: 328})
	blobs, err := s.Split(blob)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(blobs) < 2 {
		t.Fatalf("got %d blobs, want several", len(blobs))
	}

	var total int
	for i, b := range blobs {
		decoded, err := encoder.Decode(b)
		if err != nil {
			t.Fatalf("decoding chunk %d: %v", i, err)
		}
		total += len(decoded)
	}
	if total != len(samples) {
		t.Errorf("chunks hold %d samples, want %d", total, len(samples))
	}
}

func TestConcat(t *testing.T) {
	s := New(DefaultConfig())
	a := loudWithSilenceAt(encoder.SampleRate)
	b := loudWithSilenceAt(encoder.SampleRate / 2)

	blobA, err := encoder.EncodeSamples(a)
	if err != nil {
		t.Fatal(err)
	}
	blobB, err := encoder.EncodeSamples(b)
	if err != nil {
		t.Fatal(err)
	}

	joined, err := s.Concat([][]byte{blobA, blobB})
	if err != nil {
		t.Fatalf("Concat: %v", err)
	}
	decoded, err := encoder.Decode(joined)
	if err != nil {
		t.Fatalf("decoding concat result: %v", err)
	}
	if len(decoded) != len(a)+len(b) {
		t.Errorf("concat holds %d samples, want %d", len(decoded), len(a)+len(b))
	}
}
