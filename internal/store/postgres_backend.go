package store

import (
	"strings"
)

func (s *Store) ensureSchema() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`
CREATE TABLE IF NOT EXISTS analysis_runs (
  run_id TEXT PRIMARY KEY,
  repo TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'pending',
  format TEXT NOT NULL DEFAULT '',
  detail BOOLEAN NOT NULL DEFAULT FALSE,
  error TEXT NOT NULL DEFAULT '',
  diagram TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
  updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS run_artifacts (
  id SERIAL PRIMARY KEY,
  run_id TEXT NOT NULL,
  name TEXT NOT NULL,
  created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
  UNIQUE (run_id, name)
);
CREATE INDEX IF NOT EXISTS idx_run_artifacts_run_id ON run_artifacts (run_id);
`)
	})
	return s.schemaErr
}

func scanRunDB(row rowScanner) (Run, bool) {
	var run Run
	err := row.Scan(
		&run.RunID,
		&run.Repo,
		&run.Status,
		&run.Format,
		&run.Detail,
		&run.Error,
		&run.Diagram,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if err != nil {
		return Run{}, false
	}
	return normalizeRun(run), true
}

const runColumns = `run_id, repo, status, format, detail, error, diagram, created_at, updated_at`

func (s *Store) getDB(runID string) (Run, bool) {
	if err := s.ensureSchema(); err != nil {
		return Run{}, false
	}
	id := strings.TrimSpace(runID)
	if id == "" {
		return Run{}, false
	}
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM analysis_runs WHERE run_id = $1`, id)
	return scanRunDB(row)
}

func (s *Store) putDB(run Run) {
	if err := s.ensureSchema(); err != nil {
		return
	}
	n := normalizeRun(run)
	if n.RunID == "" {
		return
	}
	_, _ = s.db.Exec(`
INSERT INTO analysis_runs (
  run_id, repo, status, format, detail, error, diagram, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW())
ON CONFLICT (run_id)
DO UPDATE SET repo=EXCLUDED.repo,
  status=EXCLUDED.status,
  format=EXCLUDED.format,
  detail=EXCLUDED.detail,
  error=EXCLUDED.error,
  diagram=EXCLUDED.diagram,
  updated_at=NOW()`,
		n.RunID, n.Repo, n.Status, n.Format, n.Detail, n.Error, n.Diagram)
}

func (s *Store) updateDB(runID string, update func(*Run)) (Run, bool) {
	if err := s.ensureSchema(); err != nil {
		return Run{}, false
	}
	tx, err := s.db.Begin()
	if err != nil {
		return Run{}, false
	}
	defer func() { _ = tx.Rollback() }()

	id := strings.TrimSpace(runID)
	row := tx.QueryRow(`SELECT `+runColumns+` FROM analysis_runs WHERE run_id = $1 FOR UPDATE`, id)
	cur, ok := scanRunDB(row)
	if !ok {
		return Run{}, false
	}
	update(&cur)
	cur.RunID = id
	cur = normalizeRun(cur)
	_, err = tx.Exec(`
UPDATE analysis_runs
SET repo=$2, status=$3, format=$4, detail=$5, error=$6, diagram=$7, updated_at=NOW()
WHERE run_id=$1`,
		cur.RunID, cur.Repo, cur.Status, cur.Format, cur.Detail, cur.Error, cur.Diagram)
	if err != nil {
		return Run{}, false
	}
	if err := tx.Commit(); err != nil {
		return Run{}, false
	}
	return cur, true
}

func (s *Store) listDB() []Run {
	if err := s.ensureSchema(); err != nil {
		return nil
	}
	rows, err := s.db.Query(`SELECT ` + runColumns + ` FROM analysis_runs ORDER BY created_at DESC`)
	if err != nil {
		return nil
	}
	defer rows.Close()
	out := make([]Run, 0, 32)
	for rows.Next() {
		if run, ok := scanRunDB(rows); ok {
			out = append(out, run)
		}
	}
	return out
}

func (s *Store) addArtifactDB(a RunArtifact) error {
	if err := s.ensureSchema(); err != nil {
		return err
	}
	_, err := s.db.Exec(`
INSERT INTO run_artifacts (run_id, name, created_at)
VALUES ($1, $2, NOW())
ON CONFLICT (run_id, name) DO NOTHING`,
		a.RunID, a.Name)
	return err
}

func (s *Store) listArtifactsDB(runID string) ([]RunArtifact, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	id := strings.TrimSpace(runID)
	if id == "" {
		return nil, nil
	}
	rows, err := s.db.Query(`
SELECT id, run_id, name, created_at
FROM run_artifacts
WHERE run_id = $1
ORDER BY created_at DESC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunArtifact
	for rows.Next() {
		var a RunArtifact
		if err := rows.Scan(&a.ID, &a.RunID, &a.Name, &a.CreatedAt); err != nil {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}
