package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

func (s *Store) ensureLoadedFile() {
	s.loadOnce.Do(func() {
		b, err := os.ReadFile(s.path)
		if err != nil {
			return
		}
		var rows []Run
		if err := json.Unmarshal(b, &rows); err != nil {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, row := range rows {
			id := strings.TrimSpace(row.RunID)
			if id == "" {
				continue
			}
			s.byID[id] = normalizeRun(row)
		}
	})
}

func (s *Store) saveFile() {
	s.ensureLoadedFile()
	s.mu.RLock()
	rows := make([]Run, 0, len(s.byID))
	for _, run := range s.byID {
		rows = append(rows, normalizeRun(run))
	}
	s.mu.RUnlock()
	sort.Slice(rows, func(i, j int) bool { return rows[i].RunID < rows[j].RunID })

	b, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return
	}
	_ = os.MkdirAll(filepath.Dir(s.path), 0o755)
	_ = os.WriteFile(s.path, b, 0o644)
}

func (s *Store) getFile(runID string) (Run, bool) {
	s.ensureLoadedFile()
	id := strings.TrimSpace(runID)
	if id == "" {
		return Run{}, false
	}
	s.mu.RLock()
	run, ok := s.byID[id]
	s.mu.RUnlock()
	if !ok {
		return Run{}, false
	}
	return normalizeRun(run), true
}

func (s *Store) putFile(run Run) {
	s.ensureLoadedFile()
	normalized := normalizeRun(run)
	if normalized.RunID == "" {
		return
	}
	s.mu.Lock()
	s.byID[normalized.RunID] = normalized
	s.mu.Unlock()
}

func (s *Store) updateFile(runID string, update func(*Run)) (Run, bool) {
	s.ensureLoadedFile()
	id := strings.TrimSpace(runID)
	if id == "" {
		return Run{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.byID[id]
	if !ok {
		return Run{}, false
	}
	update(&run)
	run.RunID = id
	run = normalizeRun(run)
	s.byID[id] = run
	return run, true
}

func (s *Store) listFile() []Run {
	s.ensureLoadedFile()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Run, 0, len(s.byID))
	for _, run := range s.byID {
		out = append(out, normalizeRun(run))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].RunID < out[j].RunID
	})
	return out
}

func (s *Store) addArtifactFile(a RunArtifact) error {
	s.ensureLoadedFile()
	if strings.TrimSpace(a.RunID) == "" {
		return nil
	}
	s.mu.Lock()
	run, ok := s.byID[a.RunID]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	for _, existing := range run.Artifacts {
		if existing.Name == a.Name {
			s.mu.Unlock()
			return nil
		}
	}
	a.CreatedAt = time.Now()
	a.ID = len(run.Artifacts) + 1
	run.Artifacts = append(run.Artifacts, a)
	s.byID[a.RunID] = run
	s.mu.Unlock()

	s.saveFile()
	return nil
}

func (s *Store) listArtifactsFile(runID string) ([]RunArtifact, error) {
	s.ensureLoadedFile()
	id := strings.TrimSpace(runID)
	if id == "" {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.byID[id]
	if !ok {
		return nil, nil
	}

	// Newest first, matching the DB backend's ORDER BY created_at DESC.
	out := make([]RunArtifact, 0, len(run.Artifacts))
	for i := len(run.Artifacts) - 1; i >= 0; i-- {
		out = append(out, run.Artifacts[i])
	}
	return out, nil
}
