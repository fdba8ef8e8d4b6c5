package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/matzehuels/sensortree/pkg/cache"
)

// FileStore keeps trees and notes as JSON files:
//
//	<dir>/trees/<name>.json
//	<dir>/notes/<sha256(node id)>.json
type FileStore struct {
	mu  sync.RWMutex
	dir string
	now func() time.Time
}

// NewFileStore creates the directory layout under dir.
func NewFileStore(dir string) (*FileStore, error) {
	for _, sub := range []string{"trees", "notes"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	return &FileStore{dir: dir, now: time.Now}, nil
}

func (s *FileStore) treePath(name string) string {
	return filepath.Join(s.dir, "trees", name+".json")
}

func (s *FileStore) notePath(nodeID string) string {
	return filepath.Join(s.dir, "notes", cache.Hash([]byte(nodeID))+".json")
}

func (s *FileStore) SaveTree(ctx context.Context, t Tree) error {
	if err := ValidateName(t.Name); err != nil {
		return err
	}
	t.Size = len(t.Payload)
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(s.treePath(t.Name), t)
}

func (s *FileStore) LoadTree(ctx context.Context, name string) (Tree, error) {
	if err := ValidateName(name); err != nil {
		return Tree{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var t Tree
	if err := readJSON(s.treePath(name), &t); err != nil {
		return Tree{}, err
	}
	return t, nil
}

func (s *FileStore) ListTrees(ctx context.Context) ([]Tree, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, err := os.ReadDir(filepath.Join(s.dir, "trees"))
	if err != nil {
		return nil, fmt.Errorf("read trees: %w", err)
	}
	var out []Tree
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".json")
		if e.IsDir() || !ok {
			continue
		}
		var t Tree
		if err := readJSON(s.treePath(name), &t); err != nil {
			continue
		}
		t.Payload = nil
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *FileStore) DeleteTree(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.treePath(name))
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	return err
}

func (s *FileStore) LoadNote(ctx context.Context, nodeID string) (Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n Note
	if err := readJSON(s.notePath(nodeID), &n); err != nil {
		return Note{}, err
	}
	return n, nil
}

func (s *FileStore) SaveNote(ctx context.Context, nodeID, content string, by Author) (Note, error) {
	now := s.now()
	n := Note{
		NodeID:     nodeID,
		Content:    StampNote(content, by, now),
		ModifiedBy: by.Name,
		UpdatedAt:  now,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeJSON(s.notePath(nodeID), n); err != nil {
		return Note{}, err
	}
	return n, nil
}

func (s *FileStore) Close(ctx context.Context) error { return nil }

// Dir returns the storage root.
func (s *FileStore) Dir() string { return s.dir }

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
