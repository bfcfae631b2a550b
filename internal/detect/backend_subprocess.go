//go:build !onnxruntime

package detect

func newInferenceSession(modelPath string) (inferenceSession, error) {
	return &subprocessSession{modelPath: modelPath}, nil
}
