package artifact

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps artifacts in process memory. Intended for tests and
// single-shot runs where persistence does not matter.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]map[string][]byte)}
}

func (s *MemoryStore) Put(ctx context.Context, runID, name string, content []byte) error {
	runID = strings.TrimSpace(runID)
	name = strings.TrimSpace(name)
	if runID == "" {
		return fmt.Errorf("run_id is required")
	}
	if name == "" {
		return fmt.Errorf("name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	run := s.byID[runID]
	if run == nil {
		run = make(map[string][]byte)
		s.byID[runID] = run
	}
	run[name] = append([]byte(nil), content...)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, runID, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.byID[strings.TrimSpace(runID)]
	if !ok {
		return nil, ErrNotFound
	}
	content, ok := run[strings.TrimSpace(name)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), content...), nil
}

func (s *MemoryStore) List(ctx context.Context, runID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.byID[strings.TrimSpace(runID)]
	if !ok {
		return nil, nil
	}
	names := make([]string, 0, len(run))
	for name := range run {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
