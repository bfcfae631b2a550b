// Package anonymize composes chunking, detection, offset merging, span
// resolution and substitution into a single Anonymize call. It is the only
// entry point external collaborators use.
package anonymize

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"cloak/internal/chunk"
	"cloak/internal/detect"
	"cloak/internal/redact"
	"cloak/internal/resolve"
)

// ConfigError reports invalid options. It is returned before any processing
// begins.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

const (
	defaultMaxChars     = 2000
	defaultOverlapChars = 100
	defaultMinScore     = 0.5
)

// Zero-valued Options fields select defaults, so the zero itself needs a
// spelling: NoOverlap disables chunk overlap and AcceptAll disables the
// confidence filter.
const (
	NoOverlap         = -1
	AcceptAll float64 = -1
)

// Options controls one Anonymize call. The zero value gets safe defaults for
// documents of any length.
type Options struct {
	// MaxChars and OverlapChars size the chunking window. The overlap must
	// exceed the longest plausible entity so nothing is lost at chunk edges.
	// Zero selects the default; NoOverlap requests no overlap at all.
	MaxChars     int
	OverlapChars int
	// MinConfidence drops detections scored below it. Zero selects the
	// default threshold; AcceptAll keeps every detection.
	MinConfidence float64
	// LabelPriority breaks residual resolution ties, most preferred first.
	LabelPriority []string
	// Strategy selects replacement generation; defaults to mask.
	Strategy redact.Strategy
	// Labels is the set of entity labels to anonymize. nil means all
	// canonical labels; an empty non-nil slice anonymizes nothing, so
	// entities with labels outside the set always pass through untouched.
	Labels []string
	// Markers are preferred chunk split points supplied by the text
	// extraction collaborator (e.g. page boundaries).
	Markers []int
	// DetectTimeout bounds each chunk's detection call. On timeout the whole
	// document fails: a partially anonymized result could leak PII.
	DetectTimeout time.Duration
	// Replacements, when set, threads one replacement map across several
	// calls for session-wide consistency. When nil a fresh map scoped to
	// this call is used.
	Replacements *redact.ReplacementMap
}

func (o Options) withDefaults() Options {
	if o.MaxChars == 0 {
		o.MaxChars = defaultMaxChars
	}
	switch o.OverlapChars {
	case NoOverlap:
		o.OverlapChars = 0
	case 0:
		o.OverlapChars = defaultOverlapChars
		// A caller-supplied small window scales the default down rather
		// than failing validation.
		if o.OverlapChars >= o.MaxChars {
			o.OverlapChars = o.MaxChars / 2
		}
	}
	switch o.MinConfidence {
	case AcceptAll:
		o.MinConfidence = 0
	case 0:
		o.MinConfidence = defaultMinScore
	}
	if o.Strategy == "" {
		o.Strategy = redact.StrategyMask
	}
	if o.Labels == nil {
		o.Labels = detect.DefaultLabels()
	}
	return o
}

func (o Options) validate() error {
	if o.MaxChars <= 0 {
		return &ConfigError{Field: "max_chars", Reason: "must be positive"}
	}
	if o.OverlapChars < 0 {
		return &ConfigError{Field: "overlap_chars", Reason: "must not be negative"}
	}
	if o.OverlapChars >= o.MaxChars {
		return &ConfigError{Field: "overlap_chars", Reason: fmt.Sprintf("overlap %d must be smaller than max_chars %d", o.OverlapChars, o.MaxChars)}
	}
	if o.MinConfidence < 0 || o.MinConfidence > 1 {
		return &ConfigError{Field: "min_confidence", Reason: "must be within [0,1]"}
	}
	if !redact.ValidStrategy(o.Strategy) {
		return &ConfigError{Field: "strategy", Reason: fmt.Sprintf("unknown strategy %q", o.Strategy)}
	}
	if o.DetectTimeout < 0 {
		return &ConfigError{Field: "detect_timeout", Reason: "must not be negative"}
	}
	return nil
}

// Stats summarizes one call: distinct entities replaced plus the pipeline
// counters the audit log records.
type Stats struct {
	TotalEntities  int            `json:"total_entities"`
	ByLabel        map[string]int `json:"by_label"`
	ChunkCount     int            `json:"chunk_count,omitempty"`
	CandidateSpans int            `json:"candidate_spans,omitempty"`
	ResolvedSpans  int            `json:"resolved_spans,omitempty"`
}

// Result is owned by the caller; the engine keeps no state after returning.
type Result struct {
	RedactedText string               `json:"redacted_text"`
	Applied      []redact.AppliedSpan `json:"applied_spans"`
	Stats        Stats                `json:"statistics"`
}

// Anonymizer runs the pipeline with an injected detection capability. The
// detector is a constructor dependency, never ambient state, so the engine
// stays testable with synthetic spans and agnostic of the model backend.
type Anonymizer struct {
	detector detect.Detector
	log      *slog.Logger
}

// New builds an Anonymizer around the given detector. log may be nil, in
// which case events are discarded.
func New(detector detect.Detector, log *slog.Logger) *Anonymizer {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Anonymizer{detector: detector, log: log}
}

// Anonymize runs the full pipeline over text. Empty input yields an empty,
// span-free result. Any detection failure or offset inconsistency fails the
// whole document; no partially anonymized text is ever returned.
func (a *Anonymizer) Anonymize(ctx context.Context, text string, opts Options) (Result, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return Result{}, err
	}
	empty := Result{Applied: []redact.AppliedSpan{}, Stats: Stats{ByLabel: map[string]int{}}}
	if text == "" {
		return empty, nil
	}

	start := time.Now()
	chunks, err := chunk.Split(text, opts.MaxChars, opts.OverlapChars, opts.Markers)
	if err != nil {
		return Result{}, err
	}

	perChunk, err := a.detectAll(ctx, chunks, opts.DetectTimeout)
	if err != nil {
		return Result{}, fmt.Errorf("detect: %w", err)
	}

	candidates, err := chunk.MergeCandidates(text, chunks, perChunk)
	if err != nil {
		return Result{}, err
	}
	candidates = filterLabels(candidates, opts.Labels)

	resolved := resolve.Resolve(candidates, opts.MinConfidence, opts.LabelPriority)

	rm := opts.Replacements
	if rm == nil {
		rm = redact.NewReplacementMap()
	}
	applied, err := redact.Apply(text, resolved, rm, opts.Strategy)
	if err != nil {
		return Result{}, err
	}

	a.log.Info("anonymize",
		"doc_len", len(text),
		"chunks", len(chunks),
		"candidates", len(candidates),
		"resolved", len(resolved),
		"strategy", string(opts.Strategy),
		"elapsed_ms", float64(time.Since(start).Microseconds())/1000.0,
	)

	if applied.Applied == nil {
		applied.Applied = []redact.AppliedSpan{}
	}
	stats := collectStats(applied.Applied)
	stats.ChunkCount = len(chunks)
	stats.CandidateSpans = len(candidates)
	stats.ResolvedSpans = len(resolved)
	return Result{
		RedactedText: applied.RedactedText,
		Applied:      applied.Applied,
		Stats:        stats,
	}, nil
}

// detectAll dispatches detection per chunk. Chunks are independent read-only
// views of the input, so they may run concurrently, but only when the
// detector says its backend is re-entrant; otherwise calls are serialized.
// Results are collected for all chunks before anything downstream runs,
// because cross-chunk overlap resolution needs the complete candidate set.
func (a *Anonymizer) detectAll(ctx context.Context, chunks []chunk.Chunk, timeout time.Duration) ([][]detect.Span, error) {
	results := make([][]detect.Span, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	if a.detector.Reentrant() {
		g.SetLimit(runtime.NumCPU())
	} else {
		g.SetLimit(1)
	}
	for i, c := range chunks {
		i, c := i, c
		g.Go(func() error {
			dctx := gctx
			cancel := func() {}
			if timeout > 0 {
				dctx, cancel = context.WithTimeout(gctx, timeout)
			}
			defer cancel()
			spans, err := a.detector.Detect(dctx, c.Text)
			if err != nil {
				return err
			}
			results[i] = spans
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func filterLabels(spans []detect.Span, labels []string) []detect.Span {
	allowed := make(map[string]bool, len(labels))
	for _, l := range labels {
		allowed[l] = true
	}
	out := make([]detect.Span, 0, len(spans))
	for _, s := range spans {
		if allowed[s.Label] {
			out = append(out, s)
		}
	}
	return out
}

// collectStats counts distinct replaced entities per label: repeats of the
// same normalized entity count once, matching the replacement map's view.
func collectStats(applied []redact.AppliedSpan) Stats {
	seen := make(map[string]bool)
	byLabel := make(map[string]int)
	for _, a := range applied {
		key := a.Span.Label + "|" + strings.ToLower(strings.TrimSpace(a.Span.Text))
		if seen[key] {
			continue
		}
		seen[key] = true
		byLabel[a.Span.Label]++
	}
	total := 0
	for _, n := range byLabel {
		total += n
	}
	return Stats{TotalEntities: total, ByLabel: byLabel}
}
