// Package resolve turns an unordered candidate set of entity spans into the
// final non-overlapping sequence chosen for redaction.
package resolve

import (
	"sort"

	"cloak/internal/detect"
)

// Resolve drops candidates below minConfidence, then greedily selects a
// non-overlapping subset, preferring higher confidence, then longer spans (a
// longer detection is assumed to subsume a shorter one it overlaps), then the
// caller's label priority. The greedy sweep favors confidence correctness
// over span count: it is a maximal-confidence cover, not a maximum-count one.
//
// labelPriority lists labels from most to least preferred and only breaks
// ties where confidence and length are equal, so identical inputs always
// resolve identically. The result is sorted ascending by start and satisfies
// spans[i].End <= spans[i+1].Start.
func Resolve(candidates []detect.Span, minConfidence float64, labelPriority []string) []detect.Span {
	kept := make([]detect.Span, 0, len(candidates))
	for _, s := range candidates {
		if s.Confidence >= minConfidence {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return kept
	}

	rank := make(map[string]int, len(labelPriority))
	for i, l := range labelPriority {
		rank[l] = i + 1
	}
	priority := func(label string) int {
		if r, ok := rank[label]; ok {
			return r
		}
		return len(labelPriority) + 1
	}

	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if la, lb := a.End-a.Start, b.End-b.Start; la != lb {
			return la > lb
		}
		if pa, pb := priority(a.Label), priority(b.Label); pa != pb {
			return pa < pb
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.Label < b.Label
	})

	accepted := make([]detect.Span, 0, len(kept))
	for _, s := range kept {
		if !overlapsAny(accepted, s) {
			accepted = append(accepted, s)
		}
	}

	sort.Slice(accepted, func(i, j int) bool { return accepted[i].Start < accepted[j].Start })
	return accepted
}

func overlapsAny(accepted []detect.Span, s detect.Span) bool {
	for _, a := range accepted {
		if s.Start < a.End && a.Start < s.End {
			return true
		}
	}
	return false
}
