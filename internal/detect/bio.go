package detect

import (
	"math"
	"strings"
)

// mergeBIO collapses a maximal run of same-entity word tags into one span.
// labels carries one BIO tag per word ("O", "B-PER", "I-PER", ...); a span's
// confidence is the mean of its word scores. A B- tag or an entity-type
// change always starts a new span, so adjacent distinct entities of the same
// type stay separate.
func mergeBIO(words []Word, labels []string, scores []float64) []Span {
	out := make([]Span, 0)
	var cur *Span
	count := 0.0

	flush := func() {
		if cur == nil {
			return
		}
		cur.Confidence = cur.Confidence / math.Max(1, count)
		out = append(out, *cur)
		cur = nil
		count = 0
	}

	for i := range words {
		label := labels[i]
		if label == "O" || label == "" {
			flush()
			continue
		}
		parts := strings.SplitN(label, "-", 2)
		if len(parts) != 2 {
			flush()
			continue
		}
		prefix, typ := parts[0], parts[1]
		if prefix != "B" && prefix != "I" {
			flush()
			continue
		}
		canon := CanonicalLabel(typ)
		if prefix == "B" || cur == nil || cur.Label != canon {
			flush()
			cur = &Span{Label: canon, Start: words[i].Start, End: words[i].End, Confidence: scores[i]}
			count = 1
			continue
		}
		cur.End = words[i].End
		cur.Confidence += scores[i]
		count++
	}
	flush()
	return out
}
