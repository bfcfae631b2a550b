package chunk

import (
	"fmt"

	"cloak/internal/detect"
)

// OffsetError reports a span whose translated offsets do not line up with the
// document. It means the chunk/offset bookkeeping is broken, so the request
// is failed rather than the span clamped: clamping could silently corrupt an
// entity boundary.
type OffsetError struct {
	Label  string
	Start  int
	End    int
	DocLen int
}

func (e *OffsetError) Error() string {
	return fmt.Sprintf("chunk: %s span [%d,%d) outside document of length %d", e.Label, e.Start, e.End, e.DocLen)
}

// MergeCandidates translates each chunk's spans into document coordinates by
// adding the chunk's base offset. Duplicates and overlaps from chunk-overlap
// regions are passed through untouched; conflict policy lives in the resolver
// alone. Every translated span is checked against the document: offsets must
// stay in bounds and the covered substring must equal the span's text.
func MergeCandidates(doc string, chunks []Chunk, spans [][]detect.Span) ([]detect.Span, error) {
	if len(chunks) != len(spans) {
		return nil, fmt.Errorf("chunk: %d chunks but %d span sets", len(chunks), len(spans))
	}
	out := make([]detect.Span, 0)
	for i, c := range chunks {
		for _, s := range spans[i] {
			abs := s
			abs.Start = c.BaseOffset + s.Start
			abs.End = c.BaseOffset + s.End
			if abs.Start < 0 || abs.End > len(doc) || abs.Start >= abs.End {
				return nil, &OffsetError{Label: abs.Label, Start: abs.Start, End: abs.End, DocLen: len(doc)}
			}
			if abs.Text != "" && doc[abs.Start:abs.End] != abs.Text {
				return nil, &OffsetError{Label: abs.Label, Start: abs.Start, End: abs.End, DocLen: len(doc)}
			}
			abs.Text = doc[abs.Start:abs.End]
			out = append(out, abs)
		}
	}
	return out, nil
}
