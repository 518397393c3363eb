package runner

import (
	"context"

	"archmap/internal/diagram"
	"archmap/internal/llmclient"
	"archmap/internal/safeio"
)

// Env is the shared environment passed to builders/workers.
type Env struct {
	Repo     string
	RepoRoot string
	OutDir   string

	Exts      []string
	SeedDepth int
	MinFiles  int
	Detail    bool
	Title     string
	Format    diagram.Format

	RepoFS     *safeio.SafeFS
	ArtifactFS *safeio.SafeFS
	Resolver   SpecResolver

	ModelSalt string
	ForceFrom string
	DepsUsage DepsUsageMode

	LLM llmclient.Client
}

// WorkerOutput bundles internal RuntimeState with an optional ClientView payload.
type WorkerOutput struct {
	RuntimeState any
	ClientView   any
}

// WorkerSpec declares "what" a worker needs, not "how" the app calls it.
type WorkerSpec struct {
	Description string

	Key         string                                            // e.g. "scan"; artifacts land at "<key>.json"
	BuildInput  func(ctx context.Context, deps Deps) (any, error) // produce logical input
	Run         func(ctx context.Context, in any, env *Env) (WorkerOutput, error)
	Fingerprint func(in any, env *Env) string // stable hash for caching
	Downstream  []string                      // automatically computed
	Requires    []string
	Strategy    CacheStrategy
}

// CacheStrategy abstracts artifact persistence.
type CacheStrategy interface {
	// TryLoad returns (out, true) if cache hit and not forced.
	TryLoad(ctx context.Context, spec WorkerSpec, env *Env, inputFP string) (WorkerOutput, bool)
	// Save persists result and metadata.
	Save(ctx context.Context, spec WorkerSpec, env *Env, out WorkerOutput, inputFP string) error
	// Invalidate removes outputs/meta for this worker (used for downstream invalidation).
	Invalidate(ctx context.Context, spec WorkerSpec, env *Env) error
}
