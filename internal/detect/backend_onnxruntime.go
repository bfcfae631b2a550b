//go:build onnxruntime

package detect

import (
	"context"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var ortInitOnce sync.Once
var ortInitErr error

func initORTEnvironment() error {
	ortInitOnce.Do(func() {
		if lib := os.Getenv("CLOAK_ONNXRUNTIME_LIB"); lib != "" {
			ort.SetSharedLibraryPath(lib)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

type ortSession struct {
	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
}

func newInferenceSession(modelPath string) (inferenceSession, error) {
	if err := initORTEnvironment(); err != nil {
		return nil, fmt.Errorf("initialize onnxruntime: %w", err)
	}
	sess, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"logits"}, nil)
	if err != nil {
		return nil, fmt.Errorf("open onnx session: %w", err)
	}
	return &ortSession{session: sess}, nil
}

func (s *ortSession) Run(ctx context.Context, inputIDs, attentionMask, tokenTypeIDs []int64) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	shape := ort.NewShape(1, int64(len(inputIDs)))
	ids, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, err
	}
	defer ids.Destroy()
	mask, err := ort.NewTensor(shape, attentionMask)
	if err != nil {
		return nil, err
	}
	defer mask.Destroy()
	types, err := ort.NewTensor(shape, tokenTypeIDs)
	if err != nil {
		return nil, err
	}
	defer types.Destroy()

	outputs := []ort.Value{nil}
	if err := s.session.Run([]ort.Value{ids, mask, types}, outputs); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}
	logitsTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("onnx run: unexpected output type %T", outputs[0])
	}
	defer logitsTensor.Destroy()

	dims := logitsTensor.GetShape()
	if len(dims) != 3 || dims[0] != 1 || dims[1] != int64(len(inputIDs)) {
		return nil, fmt.Errorf("onnx run: unexpected logits shape %v", dims)
	}
	classes := int(dims[2])
	flat := logitsTensor.GetData()
	out := make([][]float32, len(inputIDs))
	for i := range out {
		row := make([]float32, classes)
		copy(row, flat[i*classes:(i+1)*classes])
		out[i] = row
	}
	return out, nil
}
