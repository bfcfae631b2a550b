// Package extract turns source files into plain text plus structural markers.
// The anonymization engine treats it as a black box: it only consumes the
// text and uses the markers as preferred chunk split points.
package extract

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// UnsupportedFormatError is returned for file types the extractor cannot read.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("extract: unsupported file format %q", e.Ext)
}

// Document is extracted plain text plus byte offsets of structural
// boundaries (page breaks, paragraph breaks) inside it.
type Document struct {
	Text    string
	Markers []int
}

var textExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".log":      true,
	".csv":      true,
}

// File reads a plain-text file and computes its structural markers. Binary
// content and unknown extensions are rejected with UnsupportedFormatError.
func File(path string) (Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !textExtensions[ext] {
		return Document{}, &UnsupportedFormatError{Ext: ext}
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("extract: %w", err)
	}
	if looksBinary(raw) {
		return Document{}, &UnsupportedFormatError{Ext: ext}
	}
	text := string(raw)
	return Document{Text: text, Markers: StructuralMarkers(text)}, nil
}

// FromText wraps already-extracted text, still computing markers.
func FromText(text string) Document {
	return Document{Text: text, Markers: StructuralMarkers(text)}
}

// StructuralMarkers returns byte offsets immediately after form feeds (page
// boundaries) and blank-line runs (paragraph boundaries), ascending and
// deduplicated. Splitting at these positions never cuts an entity in half.
func StructuralMarkers(text string) []int {
	markers := make([]int, 0)
	last := -1
	add := func(pos int) {
		if pos > 0 && pos < len(text) && pos != last {
			markers = append(markers, pos)
			last = pos
		}
	}
	for i := 0; i < len(text); i++ {
		if text[i] == '\f' {
			add(i + 1)
			continue
		}
		if text[i] == '\n' && i+1 < len(text) && text[i+1] == '\n' {
			j := i + 1
			for j < len(text) && text[j] == '\n' {
				j++
			}
			add(j)
			i = j - 1
		}
	}
	return markers
}

func looksBinary(raw []byte) bool {
	probe := raw
	if len(probe) > 8192 {
		probe = probe[:8192]
	}
	return bytes.IndexByte(probe, 0) >= 0
}
