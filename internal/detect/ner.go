package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
)

// inferenceSession is the narrow capability the NER detector needs from a
// model backend: token IDs in, per-position class logits out.
type inferenceSession interface {
	Run(ctx context.Context, inputIDs, attentionMask, tokenTypeIDs []int64) ([][]float32, error)
}

type NERConfig struct {
	// ModelDir must contain model.onnx, tokenizer.json and labels.json.
	ModelDir string
	// MaxBytes bounds the text a single Detect call accepts. The chunker is
	// responsible for staying under it; exceeding it is a caller bug.
	MaxBytes int
}

// NERDetector adapts the ONNX token-classification model to the Detector
// contract. It translates characters to subword pieces, runs inference, and
// collapses BIO-tagged words back into character spans.
//
// The backend session is not re-entrant, so Reentrant returns false and the
// caller must serialize Detect calls.
type NERDetector struct {
	cfg       NERConfig
	once      sync.Once
	loadErr   error
	labels    map[int]string
	tokenizer *WordPieceTokenizer
	session   inferenceSession
}

func NewNERDetector(cfg NERConfig) *NERDetector {
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = 32 * 1024
	}
	return &NERDetector{cfg: cfg}
}

func (d *NERDetector) Reentrant() bool { return false }

func (d *NERDetector) init() error {
	d.once.Do(func() {
		modelPath := filepath.Join(d.cfg.ModelDir, "model.onnx")
		if _, err := os.Stat(modelPath); err != nil {
			d.loadErr = fmt.Errorf("model missing: %w", err)
			return
		}
		labels, err := loadLabelMap(filepath.Join(d.cfg.ModelDir, "labels.json"))
		if err != nil {
			d.loadErr = err
			return
		}
		tok, err := NewWordPieceTokenizer(filepath.Join(d.cfg.ModelDir, "tokenizer.json"))
		if err != nil {
			d.loadErr = fmt.Errorf("load tokenizer: %w", err)
			return
		}
		sess, err := newInferenceSession(modelPath)
		if err != nil {
			d.loadErr = fmt.Errorf("create session: %w", err)
			return
		}
		d.labels = labels
		d.tokenizer = tok
		d.session = sess
	})
	return d.loadErr
}

func loadLabelMap(path string) (map[int]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("labels missing: %w", err)
	}
	var byName map[string]string
	if err := json.Unmarshal(raw, &byName); err != nil {
		return nil, fmt.Errorf("parse labels: %w", err)
	}
	out := make(map[int]string, len(byName))
	for k, v := range byName {
		var idx int
		if _, err := fmt.Sscanf(k, "%d", &idx); err != nil {
			return nil, fmt.Errorf("labels: bad class index %q", k)
		}
		out[idx] = v
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("labels: empty class map")
	}
	return out, nil
}

func (d *NERDetector) Detect(ctx context.Context, text string) ([]Span, error) {
	if text == "" {
		return nil, nil
	}
	if len(text) > d.cfg.MaxBytes {
		return nil, fmt.Errorf("ner: input of %d bytes exceeds limit %d", len(text), d.cfg.MaxBytes)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := d.init(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInferenceUnavailable, err)
	}

	enc := d.tokenizer.Encode(text)
	if len(enc.Words) == 0 {
		return nil, nil
	}
	logits, err := d.session.Run(ctx, enc.InputIDs, enc.AttentionMask, enc.TokenTypeIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInferenceUnavailable, err)
	}
	if len(logits) != len(enc.InputIDs) {
		return nil, fmt.Errorf("%w: backend returned %d rows for %d pieces", ErrInferenceUnavailable, len(logits), len(enc.InputIDs))
	}

	labels, scores := d.wordPredictions(enc, logits)
	spans := mergeBIO(enc.Words, labels, scores)
	for i := range spans {
		spans[i].Text = text[spans[i].Start:spans[i].End]
	}
	return spans, nil
}

// wordPredictions reduces per-piece logits to one tag per word. The tag comes
// from the word's first piece; the score is the mean of all its pieces'
// softmax probabilities, so a word split into uncertain continuations scores
// lower than a single confident piece.
func (d *NERDetector) wordPredictions(enc *Encoding, logits [][]float32) ([]string, []float64) {
	labels := make([]string, len(enc.Words))
	sums := make([]float64, len(enc.Words))
	counts := make([]int, len(enc.Words))
	for i := range labels {
		labels[i] = "O"
	}
	seen := make(map[int]bool, len(enc.Words))
	for pi, wi := range enc.PieceToWord {
		if wi < 0 {
			continue
		}
		cls, prob := argmaxSoftmax(logits[pi])
		sums[wi] += prob
		counts[wi]++
		if seen[wi] {
			continue
		}
		seen[wi] = true
		if tag, ok := d.labels[cls]; ok {
			labels[wi] = tag
		}
	}
	scores := make([]float64, len(enc.Words))
	for i := range scores {
		if counts[i] > 0 {
			scores[i] = sums[i] / float64(counts[i])
		}
	}
	return labels, scores
}

func argmaxSoftmax(row []float32) (int, float64) {
	if len(row) == 0 {
		return 0, 0
	}
	best := 0
	for i, v := range row {
		if v > row[best] {
			best = i
		}
	}
	var sum float64
	for _, v := range row {
		sum += math.Exp(float64(v - row[best]))
	}
	return best, 1 / sum
}
