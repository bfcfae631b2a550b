package resolve

import (
	"testing"

	"cloak/internal/detect"
)

func span(label string, start, end int, conf float64) detect.Span {
	return detect.Span{Label: label, Start: start, End: end, Confidence: conf}
}

func TestResolveDropsLowConfidence(t *testing.T) {
	out := Resolve([]detect.Span{span("PERSON", 0, 5, 0.3), span("LOC", 10, 15, 0.9)}, 0.5, nil)
	if len(out) != 1 || out[0].Label != "LOC" {
		t.Fatalf("expected only the LOC span, got %+v", out)
	}
}

func TestResolvePrefersHigherConfidenceOnOverlap(t *testing.T) {
	out := Resolve([]detect.Span{
		span("PERSON", 0, 10, 0.80),
		span("ORG", 5, 15, 0.85),
	}, 0, nil)
	if len(out) != 1 {
		t.Fatalf("overlapping spans must collapse to one, got %+v", out)
	}
	if out[0].Label != "ORG" || out[0].Start != 5 || out[0].End != 15 {
		t.Fatalf("higher-confidence span must win: %+v", out[0])
	}
}

func TestResolvePrefersLongerSpanOnTie(t *testing.T) {
	out := Resolve([]detect.Span{
		span("PERSON", 0, 4, 0.9),
		span("PERSON", 0, 10, 0.9),
	}, 0, nil)
	if len(out) != 1 || out[0].End != 10 {
		t.Fatalf("longer span must win confidence ties: %+v", out)
	}
}

func TestResolveLabelPriorityBreaksResidualTies(t *testing.T) {
	cands := []detect.Span{
		span("ORG", 0, 5, 0.9),
		span("PERSON", 0, 5, 0.9),
	}
	out := Resolve(cands, 0, []string{"PERSON", "ORG"})
	if len(out) != 1 || out[0].Label != "PERSON" {
		t.Fatalf("label priority must break the tie: %+v", out)
	}
	out = Resolve(cands, 0, []string{"ORG", "PERSON"})
	if len(out) != 1 || out[0].Label != "ORG" {
		t.Fatalf("reversed priority must flip the winner: %+v", out)
	}
}

func TestResolveOutputOrderedNonOverlapping(t *testing.T) {
	out := Resolve([]detect.Span{
		span("LOC", 17, 22, 0.92),
		span("PERSON", 0, 5, 0.95),
		span("PERSON", 10, 13, 0.90),
		span("PERSON", 11, 14, 0.50),
	}, 0.4, nil)
	if len(out) != 3 {
		t.Fatalf("expected 3 spans, got %+v", out)
	}
	for i := 1; i < len(out); i++ {
		if out[i-1].End > out[i].Start {
			t.Fatalf("output must be ordered and non-overlapping: %+v", out)
		}
	}
}

func TestResolveDeduplicatesIdenticalCandidates(t *testing.T) {
	out := Resolve([]detect.Span{
		span("PERSON", 3, 8, 0.9),
		span("PERSON", 3, 8, 0.9),
	}, 0, nil)
	if len(out) != 1 {
		t.Fatalf("identical duplicates from chunk overlap must collapse: %+v", out)
	}
}

func TestResolveDeterministic(t *testing.T) {
	cands := []detect.Span{
		span("ORG", 0, 5, 0.9),
		span("LOC", 2, 7, 0.9),
		span("PERSON", 4, 9, 0.9),
	}
	first := Resolve(cands, 0, nil)
	for i := 0; i < 10; i++ {
		again := Resolve(cands, 0, nil)
		if len(again) != len(first) {
			t.Fatal("resolution must be deterministic")
		}
		for j := range again {
			if again[j] != first[j] {
				t.Fatalf("resolution must be deterministic: %+v vs %+v", again, first)
			}
		}
	}
}
