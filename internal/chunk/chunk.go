// Package chunk splits long documents into model-sized overlapping windows
// and translates per-window detection results back into document coordinates.
package chunk

import (
	"errors"
	"fmt"
	"sort"
)

// ErrOverlapTooLarge is returned when the requested overlap leaves no room
// for the window to advance.
var ErrOverlapTooLarge = errors.New("chunk: overlap must be smaller than window size")

// Chunk is a contiguous substring of a document plus its byte offset into it.
type Chunk struct {
	Text       string
	BaseOffset int
}

// Split slides a window of maxChars over text, advancing by
// maxChars-overlapChars per step. The overlap must be large enough to contain
// the longest plausible entity, so an entity cut at one window's edge is whole
// in the next. markers are optional byte offsets (for example page boundaries
// from the extraction step) treated as preferred split points: a window end
// snaps back to the nearest marker inside its overlap region when that still
// moves the window forward.
//
// The returned chunks always cover text exactly; the last chunk ends at
// len(text) instead of overshooting.
func Split(text string, maxChars, overlapChars int, markers []int) ([]Chunk, error) {
	if maxChars <= 0 {
		return nil, fmt.Errorf("chunk: window size %d must be positive", maxChars)
	}
	if overlapChars < 0 {
		return nil, fmt.Errorf("chunk: overlap %d must not be negative", overlapChars)
	}
	if overlapChars >= maxChars {
		return nil, fmt.Errorf("%w: overlap %d, window %d", ErrOverlapTooLarge, overlapChars, maxChars)
	}
	if text == "" {
		return nil, nil
	}
	if len(text) <= maxChars {
		return []Chunk{{Text: text, BaseOffset: 0}}, nil
	}

	sorted := append([]int(nil), markers...)
	sort.Ints(sorted)

	chunks := make([]Chunk, 0, len(text)/(maxChars-overlapChars)+1)
	pos := 0
	for {
		end := pos + maxChars
		if end >= len(text) {
			chunks = append(chunks, Chunk{Text: text[pos:], BaseOffset: pos})
			return chunks, nil
		}
		// Snapping below pos+overlapChars+1 would stall the window.
		if m, ok := markerInRange(sorted, pos+overlapChars+1, end); ok {
			end = m
		}
		chunks = append(chunks, Chunk{Text: text[pos:end], BaseOffset: pos})
		pos = end - overlapChars
	}
}

// markerInRange returns the largest marker m with lo <= m <= hi.
func markerInRange(markers []int, lo, hi int) (int, bool) {
	i := sort.SearchInts(markers, hi+1) - 1
	if i >= 0 && markers[i] >= lo {
		return markers[i], true
	}
	return 0, false
}
