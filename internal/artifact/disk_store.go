package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DiskStore keeps run artifacts under root/<runID>/<name> on the local
// filesystem. Names with path separators are rejected to keep each run's
// directory flat.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) (*DiskStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("disk store root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &DiskStore{root: abs}, nil
}

func (s *DiskStore) path(runID, name string) (string, error) {
	runID = strings.TrimSpace(runID)
	name = strings.TrimSpace(name)
	if runID == "" {
		return "", fmt.Errorf("run_id is required")
	}
	if name == "" {
		return "", fmt.Errorf("name is required")
	}
	if strings.ContainsAny(runID, "/\\") || strings.ContainsAny(name, "/\\") {
		return "", fmt.Errorf("run_id and name must not contain path separators")
	}
	return filepath.Join(s.root, runID, name), nil
}

func (s *DiskStore) Put(ctx context.Context, runID, name string, content []byte) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	p, err := s.path(runID, name)
	if err != nil {
		return err
	}
	if content == nil {
		content = []byte{}
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, content, 0o644)
}

func (s *DiskStore) Get(ctx context.Context, runID, name string) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	p, err := s.path(runID, name)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return b, err
}

func (s *DiskStore) List(ctx context.Context, runID string) ([]string, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, fmt.Errorf("run_id is required")
	}
	entries, err := os.ReadDir(filepath.Join(s.root, runID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
