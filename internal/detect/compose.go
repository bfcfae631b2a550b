package detect

import "context"

// Multi runs several detectors over the same text and concatenates their
// spans. Any detector error fails the whole call: a partially detected
// document must not be treated as fully scanned.
type Multi []Detector

func (m Multi) Detect(ctx context.Context, text string) ([]Span, error) {
	all := make([]Span, 0)
	for _, d := range m {
		spans, err := d.Detect(ctx, text)
		if err != nil {
			return nil, err
		}
		all = append(all, spans...)
	}
	return all, nil
}

// Reentrant is true only when every member detector is.
func (m Multi) Reentrant() bool {
	for _, d := range m {
		if !d.Reentrant() {
			return false
		}
	}
	return true
}
