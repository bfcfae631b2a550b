package detect

import (
	"context"
	"errors"
)

// ErrInferenceUnavailable is returned when the NER backend cannot be loaded
// or reached. Callers surface it; a retry with the same input is expected to
// fail the same way, so nothing retries automatically.
var ErrInferenceUnavailable = errors.New("ner inference unavailable")

// Canonical entity labels produced by the built-in detectors.
const (
	LabelPerson = "PERSON"
	LabelOrg    = "ORG"
	LabelLoc    = "LOC"
	LabelMisc   = "MISC"
	LabelEmail  = "EMAIL"
	LabelPhone  = "PHONE"
)

// DefaultLabels lists every label the built-in detectors can emit.
func DefaultLabels() []string {
	return []string{LabelPerson, LabelOrg, LabelLoc, LabelMisc, LabelEmail, LabelPhone}
}

// Span is one detected entity occurrence. Start and End are half-open byte
// offsets into the text the detector was given: 0 <= Start < End <= len(text).
type Span struct {
	Label      string  `json:"label"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float64 `json:"confidence"`
	Text       string  `json:"text"`
}

// Detector turns a piece of text into entity spans with offsets relative to
// that text. Reentrant reports whether Detect may be called from multiple
// goroutines at once; the orchestrator serializes calls when it is false.
type Detector interface {
	Detect(ctx context.Context, text string) ([]Span, error)
	Reentrant() bool
}

// CanonicalLabel folds model-specific tag names into the canonical label set.
func CanonicalLabel(t string) string {
	switch t {
	case "PER", "PERSON":
		return LabelPerson
	case "ORG":
		return LabelOrg
	case "LOC", "GPE":
		return LabelLoc
	case "EMAIL":
		return LabelEmail
	case "PHONE":
		return LabelPhone
	default:
		return LabelMisc
	}
}
