package detect

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeSession struct {
	rows [][]float32
	err  error
}

func (f *fakeSession) Run(_ context.Context, _, _, _ []int64) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

// classes: 0=O, 1=B-PER, 2=I-PER
func testNERDetector(t *testing.T, sess inferenceSession) *NERDetector {
	t.Helper()
	d := NewNERDetector(NERConfig{ModelDir: t.TempDir()})
	d.once.Do(func() {})
	d.labels = map[int]string{0: "O", 1: "B-PER", 2: "I-PER"}
	d.tokenizer = testTokenizer(t)
	d.session = sess
	return d
}

func row(cls int) []float32 {
	r := make([]float32, 3)
	r[cls] = 8
	return r
}

func TestNERDetectorProducesCharSpans(t *testing.T) {
	// [CLS] alice met bob [SEP]
	sess := &fakeSession{rows: [][]float32{row(0), row(1), row(0), row(1), row(0)}}
	d := testNERDetector(t, sess)

	spans, err := d.Detect(context.Background(), "Alice met Bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %+v", spans)
	}
	if spans[0].Text != "Alice" || spans[0].Start != 0 || spans[0].End != 5 {
		t.Fatalf("unexpected span: %+v", spans[0])
	}
	if spans[1].Text != "Bob" || spans[1].Label != LabelPerson {
		t.Fatalf("unexpected span: %+v", spans[1])
	}
	if spans[0].Confidence < 0.9 {
		t.Fatalf("softmax confidence too low: %f", spans[0].Confidence)
	}
}

func TestNERDetectorAveragesPieceScores(t *testing.T) {
	// [CLS] jo ##hn [SEP]: a confident first piece and an undecided
	// continuation. The word score is the mean of both pieces.
	sess := &fakeSession{rows: [][]float32{row(0), row(1), {0, 0, 0}, row(0)}}
	d := testNERDetector(t, sess)

	spans, err := d.Detect(context.Background(), "John")
	if err != nil {
		t.Fatal(err)
	}
	if len(spans) != 1 || spans[0].Label != LabelPerson {
		t.Fatalf("expected one PERSON span, got %+v", spans)
	}
	// First piece scores ~0.999, the all-zero row scores 1/3.
	if spans[0].Confidence > 0.75 || spans[0].Confidence < 0.6 {
		t.Fatalf("confidence %f is not the piece mean", spans[0].Confidence)
	}
}

func TestNERDetectorBackendErrorIsInferenceError(t *testing.T) {
	d := testNERDetector(t, &fakeSession{err: errors.New("boom")})
	_, err := d.Detect(context.Background(), "Alice met Bob")
	if !errors.Is(err, ErrInferenceUnavailable) {
		t.Fatalf("expected ErrInferenceUnavailable, got %v", err)
	}
}

func TestNERDetectorRowCountMismatch(t *testing.T) {
	d := testNERDetector(t, &fakeSession{rows: [][]float32{row(0)}})
	_, err := d.Detect(context.Background(), "Alice met Bob")
	if !errors.Is(err, ErrInferenceUnavailable) {
		t.Fatalf("expected ErrInferenceUnavailable, got %v", err)
	}
}

func TestNERDetectorMissingModelDir(t *testing.T) {
	d := NewNERDetector(NERConfig{ModelDir: t.TempDir()})
	_, err := d.Detect(context.Background(), "Alice met Bob")
	if !errors.Is(err, ErrInferenceUnavailable) {
		t.Fatalf("expected ErrInferenceUnavailable, got %v", err)
	}
}

func TestNERDetectorRejectsOversizedInput(t *testing.T) {
	d := NewNERDetector(NERConfig{ModelDir: t.TempDir(), MaxBytes: 8})
	_, err := d.Detect(context.Background(), strings.Repeat("a", 9))
	if err == nil {
		t.Fatal("expected error for oversized input")
	}
}
