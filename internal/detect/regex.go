package detect

import (
	"context"
	"regexp"
)

var (
	emailRegexp = regexp.MustCompile(`[a-zA-Z0-9_.+\-]+@[a-zA-Z0-9\-]+\.[a-zA-Z0-9\-.]+`)
	phoneRegexp = regexp.MustCompile(`(?:\+?\d{1,3}[-.\s]?)?(?:\(?\d{1,4}\)?[-.\s]?){1,4}\d{1,4}`)
	digitRegexp = regexp.MustCompile(`\D`)
)

// EmailDetector finds email addresses. Pure regex, safe for concurrent use.
type EmailDetector struct{}

func (EmailDetector) Reentrant() bool { return true }

func (EmailDetector) Detect(_ context.Context, text string) ([]Span, error) {
	indexes := emailRegexp.FindAllStringIndex(text, -1)
	spans := make([]Span, 0, len(indexes))
	for _, idx := range indexes {
		spans = append(spans, Span{Label: LabelEmail, Start: idx[0], End: idx[1], Confidence: 0.99, Text: text[idx[0]:idx[1]]})
	}
	return spans, nil
}

// PhoneDetector finds phone-like digit groups. Matches with fewer than six
// digits are dropped to avoid flagging ordinary numbers.
type PhoneDetector struct{}

func (PhoneDetector) Reentrant() bool { return true }

func (PhoneDetector) Detect(_ context.Context, text string) ([]Span, error) {
	indexes := phoneRegexp.FindAllStringIndex(text, -1)
	spans := make([]Span, 0, len(indexes))
	for _, idx := range indexes {
		candidate := text[idx[0]:idx[1]]
		if len(digitRegexp.ReplaceAllString(candidate, "")) < 6 {
			continue
		}
		spans = append(spans, Span{Label: LabelPhone, Start: idx[0], End: idx[1], Confidence: 0.95, Text: candidate})
	}
	return spans, nil
}
