// Package store persists analysis runs and their artifact records. It keeps
// two interchangeable backends: a JSON file for local use and Postgres for
// deployments, selected by environment.
package store

import (
	"database/sql"
	"os"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
)

type Store struct {
	path string
	db   *sql.DB

	loadOnce sync.Once
	mu       sync.RWMutex
	byID     map[string]Run

	schemaOnce sync.Once
	schemaErr  error

	artifactCache *lru.Cache[string, []RunArtifact]
}

// New returns a file-backed store persisting to path.
func New(path string) *Store {
	return &Store{
		path: path,
		byID: make(map[string]Run),
	}
}

// NewPostgres returns a Postgres-backed store using the pgx stdlib driver.
func NewPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	cache, err := lru.New[string, []RunArtifact](1024)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{
		db:            db,
		artifactCache: cache,
	}, nil
}

// NewFromEnv prefers Postgres when RUN_STORE_PG_DSN is set, falling back to
// the file backend at path.
func NewFromEnv(path string) *Store {
	dsn := strings.TrimSpace(os.Getenv("RUN_STORE_PG_DSN"))
	if dsn == "" {
		return New(path)
	}
	s, err := NewPostgres(dsn)
	if err != nil {
		return New(path)
	}
	return s
}

func (s *Store) EnsureLoaded() {
	if s == nil {
		return
	}
	if s.db != nil {
		_ = s.ensureSchema()
		return
	}
	s.ensureLoadedFile()
}

func (s *Store) Save() {
	if s == nil || s.db != nil {
		return
	}
	s.saveFile()
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Get(runID string) (Run, bool) {
	if s == nil {
		return Run{}, false
	}
	if s.db != nil {
		return s.getDB(runID)
	}
	return s.getFile(runID)
}

func (s *Store) Put(run Run) {
	if s == nil {
		return
	}
	if s.db != nil {
		s.putDB(run)
		return
	}
	s.putFile(run)
}

func (s *Store) Update(runID string, update func(*Run)) (Run, bool) {
	if s == nil {
		return Run{}, false
	}
	if s.db != nil {
		return s.updateDB(runID, update)
	}
	return s.updateFile(runID, update)
}

// List returns all runs, most recently created first.
func (s *Store) List() []Run {
	if s == nil {
		return nil
	}
	if s.db != nil {
		return s.listDB()
	}
	return s.listFile()
}

func (s *Store) AddArtifact(a RunArtifact) error {
	if s == nil {
		return nil
	}
	if s.db != nil {
		err := s.addArtifactDB(a)
		if err == nil && s.artifactCache != nil {
			s.artifactCache.Remove(a.RunID)
		}
		return err
	}
	return s.addArtifactFile(a)
}

func (s *Store) ListArtifacts(runID string) ([]RunArtifact, error) {
	if s == nil {
		return nil, nil
	}
	if s.db != nil {
		if s.artifactCache != nil {
			if cached, ok := s.artifactCache.Get(runID); ok {
				return cached, nil
			}
		}

		artifacts, err := s.listArtifactsDB(runID)
		if err != nil {
			return nil, err
		}

		if s.artifactCache != nil {
			s.artifactCache.Add(runID, artifacts)
		}
		return artifacts, nil
	}
	return s.listArtifactsFile(runID)
}
