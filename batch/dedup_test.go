package batch

import (
	"strings"
	"testing"
)

func TestTrimOverlap(t *testing.T) {
	tests := []struct {
		name string
		prev string
		next string
		want string
	}{
		{
			"overlapping words trimmed once",
			"and then we saw the quick brown fox",
			"quick brown fox jumps over the lazy dog",
			"jumps over the lazy dog",
		},
		{
			"no overlap untouched",
			"completely different ending",
			"a brand new beginning",
			"a brand new beginning",
		},
		{
			"short match below minimum kept",
			"ends with the",
			"the next part", // under the 10-char minimum
			"the next part",
		},
		{
			"empty prev",
			"",
			"anything",
			"anything",
		},
		{
			"empty next",
			"anything",
			"",
			"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrimOverlap(tt.prev, tt.next, 100, 10)
			if got != tt.want {
				t.Errorf("TrimOverlap = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTrimOverlapMinimumMatchBoundary(t *testing.T) {
	// "brown fox" is a 9-char repeat, one below the 10-char floor: the
	// heuristic deliberately leaves it alone rather than risk trimming a
	// legitimately repeated phrase
	prev := "and there goes the quick brown fox"
	next := "brown fox jumps over the fence"
	if got := TrimOverlap(prev, next, 100, 10); got != next {
		t.Errorf("sub-minimum overlap trimmed: %q", got)
	}

	// "brown foxes" (11 chars) clears the floor and is stripped
	prev = "and there goes the quick brown foxes"
	next = "brown foxes jump the fence"
	if got := TrimOverlap(prev, next, 100, 10); got != "jump the fence" {
		t.Errorf("at-minimum overlap kept: %q", got)
	}
}

func TestTrimOverlapWindowBound(t *testing.T) {
	// the repeated phrase sits more than 100 chars from prev's end, so
	// the seam search never sees it
	prev := "shared phrase here " + strings.Repeat("filler words ", 20)
	next := "shared phrase here but far from the seam"
	if got := TrimOverlap(prev, next, 100, 10); got != next {
		t.Errorf("trimmed outside window: %q", got)
	}
}

func TestStitchOverlapAppearsOnce(t *testing.T) {
	texts := []string{
		"the meeting opened and then came the quick brown fox",
		"the quick brown fox jumps over the lazy dog",
		"",
		"a closing remark",
	}
	got := Stitch(texts, 100, 10)
	want := "the meeting opened and then came the quick brown fox jumps over the lazy dog a closing remark"
	if got != want {
		t.Errorf("Stitch = %q, want %q", got, want)
	}
	if strings.Count(got, "quick brown fox") != 1 {
		t.Errorf("overlap appears %d times", strings.Count(got, "quick brown fox"))
	}
}
