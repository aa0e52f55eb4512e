// Package audit provides an append-only decision log. Records are JSON
// lines describing why the engine made a learning decision, so a later
// pass can reconstruct the reasoning behind the policy.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Record kinds.
const (
	KindLearningUpdate = "LEARNING_UPDATE"
	KindActionSelected = "ACTION_SELECTED"
	KindEpisodeEnd     = "EPISODE_END"
	KindSnapshotSaved  = "SNAPSHOT_SAVED"
)

// Record is one audit entry.
type Record struct {
	Timestamp int64          `json:"ts"` // Unix milliseconds
	Agent     string         `json:"agent"`
	Kind      string         `json:"kind"`
	Context   string         `json:"context"`
	Decision  string         `json:"decision"`
	Reasoning string         `json:"reasoning"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Log appends records to a JSONL file. Appends are serialized; a failed
// append is reported to the caller, who is expected to treat it as
// best-effort.
type Log struct {
	mu   sync.Mutex
	file *os.File
}

// Open creates (or appends to) an audit log at the given path.
func Open(path string) (*Log, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	return &Log{file: file}, nil
}

// Append writes one record as a JSON line.
func (l *Log) Append(rec Record) error {
	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().UnixMilli()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return fmt.Errorf("audit log is closed")
	}
	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
