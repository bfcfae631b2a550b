// Package redact rewrites text by substituting resolved entity spans with
// anonymized replacements, keeping every untouched byte intact.
package redact

import (
	"fmt"
	"sort"
	"strings"

	"cloak/internal/detect"
)

// Strategy selects how replacement values are generated.
type Strategy string

const (
	// StrategyMask replaces every entity with a fixed per-label placeholder,
	// e.g. "[PERSON]".
	StrategyMask Strategy = "mask"
	// StrategyPseudonym replaces each distinct entity with a numbered
	// label-appropriate value, e.g. "PERSON_1", "PERSON_2".
	StrategyPseudonym Strategy = "pseudonym"
	// StrategyRedact replaces every entity with a fixed-length mask string
	// regardless of the original length.
	StrategyRedact Strategy = "redact"
)

const redactFill = "*****"

// ValidStrategy reports whether s names a known substitution strategy.
func ValidStrategy(s Strategy) bool {
	switch s {
	case StrategyMask, StrategyPseudonym, StrategyRedact:
		return true
	}
	return false
}

// ReplacementMap remembers which replacement each entity received, keyed by
// label plus case-normalized source text. A fresh map gives document-local
// consistency; threading one map across several Apply calls extends the same
// replacements to a whole session. The map is plain data owned by the caller,
// never hidden engine state. It is not safe for concurrent use.
type ReplacementMap struct {
	byKey    map[string]string
	counters map[string]int
}

func NewReplacementMap() *ReplacementMap {
	return &ReplacementMap{byKey: make(map[string]string), counters: make(map[string]int)}
}

func entityKey(label, source string) string {
	return label + "|" + strings.ToLower(strings.TrimSpace(source))
}

// replacementFor returns the stored replacement for the entity, generating
// and remembering a new one per the strategy on first sight.
func (m *ReplacementMap) replacementFor(label, source string, strategy Strategy) string {
	key := entityKey(label, source)
	if r, ok := m.byKey[key]; ok {
		return r
	}
	var r string
	switch strategy {
	case StrategyPseudonym:
		m.counters[label]++
		r = fmt.Sprintf("%s_%d", label, m.counters[label])
	case StrategyRedact:
		r = redactFill
	default:
		r = "[" + label + "]"
	}
	m.byKey[key] = r
	return r
}

// Len returns the number of distinct entities assigned a replacement.
func (m *ReplacementMap) Len() int { return len(m.byKey) }

// AppliedSpan records one substitution: the original span, the replacement
// inserted for it, and the replacement's position in the rewritten text.
type AppliedSpan struct {
	Span        detect.Span `json:"span"`
	Replacement string      `json:"replacement"`
	OutStart    int         `json:"out_start"`
	OutEnd      int         `json:"out_end"`
}

// Result is the rewritten text plus the substitution report.
type Result struct {
	RedactedText string        `json:"redacted_text"`
	Applied      []AppliedSpan `json:"applied_spans"`
}

// Apply rewrites text in a single left-to-right pass: bytes between spans are
// copied verbatim and each span is replaced by its mapped value. spans must
// be sorted ascending and non-overlapping (the resolver's output order) or
// an error is returned before any rewriting.
func Apply(text string, spans []detect.Span, rm *ReplacementMap, strategy Strategy) (Result, error) {
	if !ValidStrategy(strategy) {
		return Result{}, fmt.Errorf("redact: unknown strategy %q", strategy)
	}
	if rm == nil {
		rm = NewReplacementMap()
	}
	prevEnd := 0
	for _, s := range spans {
		if s.Start < prevEnd || s.End > len(text) || s.Start >= s.End {
			return Result{}, fmt.Errorf("redact: span [%d,%d) out of order or out of bounds", s.Start, s.End)
		}
		prevEnd = s.End
	}

	var out strings.Builder
	out.Grow(len(text))
	applied := make([]AppliedSpan, 0, len(spans))
	cursor := 0
	for _, s := range spans {
		out.WriteString(text[cursor:s.Start])
		source := text[s.Start:s.End]
		replacement := rm.replacementFor(s.Label, source, strategy)
		start := out.Len()
		out.WriteString(replacement)
		s.Text = source
		applied = append(applied, AppliedSpan{Span: s, Replacement: replacement, OutStart: start, OutEnd: out.Len()})
		cursor = s.End
	}
	out.WriteString(text[cursor:])
	return Result{RedactedText: out.String(), Applied: applied}, nil
}

// Restore maps replacements back to their originals, longest replacement
// first so that no replacement is clobbered by a prefix of another. Only
// strategies that assign distinct replacements per entity (pseudonym) restore
// losslessly; mask and redact collapse distinct entities and cannot.
func Restore(text string, applied []AppliedSpan) string {
	byLen := append([]AppliedSpan(nil), applied...)
	sort.SliceStable(byLen, func(i, j int) bool {
		return len(byLen[i].Replacement) > len(byLen[j].Replacement)
	})
	for _, a := range byLen {
		text = strings.ReplaceAll(text, a.Replacement, a.Span.Text)
	}
	return text
}
