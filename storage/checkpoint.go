package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ChunkResult is one chunk's outcome inside a batch checkpoint.
type ChunkResult struct {
	Index   int    `json:"index"`
	ChunkID string `json:"chunk_id"`
	Text    string `json:"text"`
	Summary string `json:"summary,omitempty"`
	OK      bool   `json:"ok"`
}

// Checkpoint is the batch recovery snapshot, written after every chunk
// so an interrupted run resumes where it stopped. Audio bytes are never
// part of it.
type Checkpoint struct {
	TotalChunks int                 `json:"total_chunks"`
	Results     map[int]ChunkResult `json:"results"`
}

func NewCheckpoint(total int) *Checkpoint {
	return &Checkpoint{
		TotalChunks: total,
		Results:     make(map[int]ChunkResult),
	}
}

func (c *Checkpoint) Processed() int {
	n := 0
	for _, r := range c.Results {
		if r.OK {
			n++
		}
	}
	return n
}

// Checkpointer persists batch checkpoints.
type Checkpointer interface {
	Save(cp *Checkpoint) error
	Load() (*Checkpoint, error) // nil when no checkpoint exists
	Clear() error
}

// FileCheckpointer keeps the checkpoint as one JSON file, written via a
// temp file and rename so a crash never leaves it half-written.
type FileCheckpointer struct {
	path string
}

func NewFileCheckpointer(stateDir, name string) (*FileCheckpointer, error) {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	return &FileCheckpointer{path: filepath.Join(stateDir, name)}, nil
}

func (f *FileCheckpointer) Save(cp *Checkpoint) error {
	return writeJSON(f.path, cp)
}

func (f *FileCheckpointer) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint: %w", err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("parsing checkpoint: %w", err)
	}
	if cp.Results == nil {
		cp.Results = make(map[int]ChunkResult)
	}
	return &cp, nil
}

func (f *FileCheckpointer) Clear() error {
	err := os.Remove(f.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// StateFile persists arbitrary JSON state, used for the pipeline's
// per-step snapshots.
type StateFile struct {
	path string
}

func NewStateFile(stateDir, name string) (*StateFile, error) {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	return &StateFile{path: filepath.Join(stateDir, name)}, nil
}

func (s *StateFile) Write(v any) error {
	return writeJSON(s.path, v)
}

func (s *StateFile) Read(v any) (bool, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parsing state file: %w", err)
	}
	return true, nil
}

func (s *StateFile) Clear() error {
	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("committing state: %w", err)
	}
	return nil
}
