package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
)

// subprocessSession shells out to a local python3 with onnxruntime installed.
// It is the default backend when the binary is built without the onnxruntime
// tag; every Run pays process startup, which is acceptable for offline and
// development use. The model path travels as an argument, the tensors as a
// JSON document on stdin.
type subprocessSession struct {
	modelPath string
}

type subprocessTensors struct {
	InputIDs      []int64 `json:"input_ids"`
	AttentionMask []int64 `json:"attention_mask"`
	TokenTypeIDs  []int64 `json:"token_type_ids"`
}

type subprocessResult struct {
	Logits [][]float32 `json:"logits"`
	Error  string      `json:"error"`
}

func (s *subprocessSession) Run(ctx context.Context, inputIDs, attentionMask, tokenTypeIDs []int64) ([][]float32, error) {
	payload, err := json.Marshal(subprocessTensors{
		InputIDs:      inputIDs,
		AttentionMask: attentionMask,
		TokenTypeIDs:  tokenTypeIDs,
	})
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, "python3", "-c", subprocessInferScript, s.modelPath)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("onnx subprocess failed: %v: %s", err, stderr.String())
		}
		return nil, fmt.Errorf("onnx subprocess failed: %w", err)
	}

	var res subprocessResult
	if err := json.Unmarshal(stdout.Bytes(), &res); err != nil {
		return nil, fmt.Errorf("parse onnx subprocess output: %w", err)
	}
	if res.Error != "" {
		return nil, fmt.Errorf("onnx subprocess error: %s", res.Error)
	}
	return res.Logits, nil
}

const subprocessInferScript = `
import json
import sys


def fail(msg):
    print(json.dumps({"error": msg}))
    sys.exit(0)


try:
    import numpy as np
    import onnxruntime as ort
except Exception as exc:
    fail(f"missing python dependencies (onnxruntime, numpy): {exc}")

try:
    tensors = {k: np.array([v], dtype=np.int64) for k, v in json.load(sys.stdin).items()}
    seq_len = tensors["input_ids"].shape[1]

    sess = ort.InferenceSession(sys.argv[1], providers=["CPUExecutionProvider"])
    feed = {}
    for inp in sess.get_inputs():
        matched = next((t for k, t in tensors.items() if k in inp.name), None)
        if matched is None:
            # Some exports rename or omit token_type_ids; feed zeros.
            matched = np.zeros((1, seq_len), dtype=np.int64)
        feed[inp.name] = matched

    logits = sess.run(None, feed)[0][0]
    print(json.dumps({"logits": [[float(v) for v in row] for row in logits]}))
except Exception as exc:
    fail(str(exc))
`
