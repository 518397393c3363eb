package store

import (
	"strings"
	"time"
)

// RunStatus tracks an analysis run through its lifecycle.
type RunStatus string

const (
	StatusPending RunStatus = "pending"
	StatusRunning RunStatus = "running"
	StatusDone    RunStatus = "done"
	StatusFailed  RunStatus = "failed"
)

// Run is one analysis of one repository.
type Run struct {
	RunID     string    `json:"run_id"`
	Repo      string    `json:"repo"`
	Status    RunStatus `json:"status"`
	Format    string    `json:"format,omitempty"`
	Detail    bool      `json:"detail,omitempty"`
	Error     string    `json:"error,omitempty"`
	Diagram   string    `json:"diagram,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Artifacts []RunArtifact `json:"artifacts,omitempty"`
}

// RunArtifact records one persisted pipeline artifact of a run.
type RunArtifact struct {
	ID        int       `json:"id"`
	RunID     string    `json:"run_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func normalizeRun(r Run) Run {
	r.RunID = strings.TrimSpace(r.RunID)
	r.Repo = strings.TrimSpace(r.Repo)
	if r.Status == "" {
		r.Status = StatusPending
	}
	return r
}

type rowScanner interface {
	Scan(dest ...any) error
}
