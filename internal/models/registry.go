// Package models manages the on-disk NER model bundles the detector loads:
// a small embedded registry of known models plus a downloader that installs
// them under the models root.
package models

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

//go:embed registry.json
var embeddedRegistry []byte

var requiredFiles = []string{"model.onnx", "tokenizer.json", "labels.json"}

type Registry struct {
	Version string      `json:"version"`
	Models  []ModelSpec `json:"models"`
}

type ModelSpec struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Version     string   `json:"version"`
	Language    string   `json:"language"`
	URL         string   `json:"url"`
	Checksum    string   `json:"checksum"`
	SizeBytes   int64    `json:"size_bytes"`
	EntityTypes []string `json:"entity_types"`
	Description string   `json:"description"`
	Recommended bool     `json:"recommended"`
}

func LoadEmbeddedRegistry() (Registry, error) {
	return parseRegistry(embeddedRegistry)
}

func parseRegistry(data []byte) (Registry, error) {
	var reg Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		return Registry{}, fmt.Errorf("parse model registry: %w", err)
	}
	sort.Slice(reg.Models, func(i, j int) bool { return reg.Models[i].Name < reg.Models[j].Name })
	return reg, nil
}

func (r Registry) Find(name string) (ModelSpec, bool) {
	for _, m := range r.Models {
		if m.Name == name {
			return m, true
		}
	}
	return ModelSpec{}, false
}

func DefaultModelsRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cloak", "models"), nil
}

func InstallPath(root, name string) string {
	return filepath.Join(root, name)
}

func IsInstalled(root string, model ModelSpec) bool {
	base := InstallPath(root, model.Name)
	for _, f := range requiredFiles {
		if _, err := os.Stat(filepath.Join(base, f)); err != nil {
			return false
		}
	}
	return true
}

// ValidateModelDir checks that base (or one directory below it, for archives
// with a wrapping folder) contains a complete model bundle.
func ValidateModelDir(base string) error {
	_, err := bundleRoot(base)
	return err
}

// bundleRoot returns the directory actually holding the model files,
// descending one level when the archive wraps them in a folder.
func bundleRoot(base string) (string, error) {
	candidates := []string{base}
	entries, _ := os.ReadDir(base)
	for _, e := range entries {
		if e.IsDir() {
			candidates = append(candidates, filepath.Join(base, e.Name()))
		}
	}
	for _, c := range candidates {
		complete := true
		for _, f := range requiredFiles {
			if _, err := os.Stat(filepath.Join(c, f)); err != nil {
				complete = false
				break
			}
		}
		if complete {
			return c, nil
		}
	}
	return "", fmt.Errorf("model bundle incomplete: need %v", requiredFiles)
}
