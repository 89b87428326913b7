package batch

import "strings"

// TrimOverlap strips from next the longest leading run (at least
// minMatch chars) that also appears in the last window chars of prev.
// Chunks are cut with overlapping audio, so consecutive transcripts
// usually repeat a few words at the seam. The heuristic is approximate:
// an unlucky repetition inside the window can over-trim.
func TrimOverlap(prev, next string, window, minMatch int) string {
	if prev == "" || next == "" {
		return next
	}

	tail := prev
	if len(tail) > window {
		tail = tail[len(tail)-window:]
	}
	head := next
	if len(head) > window {
		head = head[:window]
	}

	for l := len(head); l >= minMatch; l-- {
		if strings.Contains(tail, head[:l]) {
			return strings.TrimLeft(next[l:], " ")
		}
	}
	return next
}

// Stitch joins per-chunk transcripts in order, deduplicating each seam.
func Stitch(texts []string, window, minMatch int) string {
	var b strings.Builder
	prev := ""
	for _, t := range texts {
		if t == "" {
			continue
		}
		if prev != "" {
			t = TrimOverlap(prev, t, window, minMatch)
			if t == "" {
				continue
			}
			b.WriteString(" ")
		}
		b.WriteString(t)
		prev = t
	}
	return b.String()
}
