package logging

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Change is written as a single JSON object per processed file.
type Change struct {
	Timestamp    time.Time      `json:"ts"`
	RunID        string         `json:"run_id"`
	Path         string         `json:"path"`
	Modified     bool           `json:"modified"`
	DryRun       bool           `json:"dry_run"`
	BasePath     string         `json:"base_path"`
	Replacements map[string]int `json:"replacements,omitempty"`
	BytesBefore  int            `json:"bytes_before"`
	BytesAfter   int            `json:"bytes_after"`
	Error        string         `json:"error,omitempty"`
}

type ChangeLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func NewChangeLogger(w io.Writer) *ChangeLogger {
	return &ChangeLogger{w: w}
}

func OpenChangeLog(path string) (*ChangeLogger, func() error, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, err
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return NewChangeLogger(file), file.Close, nil
}

// Write is safe for concurrent use; each record lands on its own line.
func (l *ChangeLogger) Write(change Change) error {
	if l == nil {
		return nil
	}
	if len(change.Replacements) == 0 {
		change.Replacements = nil
	}

	data, err := json.Marshal(change)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = l.w.Write(append(data, '\n'))
	return err
}
