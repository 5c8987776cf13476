package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore keeps positions as JSON files in a directory.
type FileStore struct {
	mu      sync.RWMutex
	baseDir string
}

// NewFileStore creates a file-based position store.
// If baseDir is empty, defaults to <user config dir>/evdisplay/state/
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("get config dir: %w", err)
		}
		baseDir = filepath.Join(dir, "evdisplay", "state")
	}
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) path(source string) string {
	return filepath.Join(s.baseDir, key(source)+".json")
}

// Get returns the stored position of source, or nil when there is none or
// it has expired.
func (s *FileStore) Get(ctx context.Context, source string) (*Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path := s.path(source)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var pos Position
	if err := json.Unmarshal(data, &pos); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	if pos.IsExpired() {
		os.Remove(path)
		return nil, nil
	}
	return &pos, nil
}

// Set stores pos, stamping UpdatedAt.
func (s *FileStore) Set(ctx context.Context, pos *Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(pos, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := os.WriteFile(s.path(pos.Source), data, 0600); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}

// Delete forgets the position of source.
func (s *FileStore) Delete(ctx context.Context, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(source)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove state file: %w", err)
	}
	return nil
}

// Cleanup removes expired positions and returns how many were removed.
func (s *FileStore) Cleanup(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return 0, fmt.Errorf("read state dir: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(s.baseDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var pos Position
		if err := json.Unmarshal(data, &pos); err != nil {
			continue
		}
		if pos.IsExpired() && os.Remove(path) == nil {
			removed++
		}
	}
	return removed, nil
}

// Path returns the directory holding the position files.
func (s *FileStore) Path() string {
	return s.baseDir
}
