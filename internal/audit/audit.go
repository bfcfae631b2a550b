// Package audit writes one JSONL record per anonymization request. Entries
// carry counts and timings only, never entity values, so the log itself
// cannot leak what was redacted.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type Entry struct {
	Timestamp  string         `json:"timestamp"`
	RequestID  string         `json:"request_id,omitempty"`
	DocLen     int            `json:"doc_len"`
	Chunks     int            `json:"chunks,omitempty"`
	Candidates int            `json:"candidates,omitempty"`
	Resolved   int            `json:"resolved,omitempty"`
	Strategy   string         `json:"strategy,omitempty"`
	Entities   int            `json:"entities"`
	ByLabel    map[string]int `json:"by_label,omitempty"`
	ElapsedMs  float64        `json:"elapsed_ms"`
	Status     string         `json:"status"`
	Error      string         `json:"error,omitempty"`
}

type Logger interface {
	Log(entry Entry) error
}

type JSONLLogger struct {
	path string
	mu   sync.Mutex
}

func NewJSONLLogger(path string) (*JSONLLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create audit log: %w", err)
	}
	_ = f.Close()
	return &JSONLLogger{path: path}, nil
}

func (l *JSONLLogger) Log(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(entry); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// Nop discards entries; used when auditing is disabled.
type Nop struct{}

func (Nop) Log(Entry) error { return nil }
