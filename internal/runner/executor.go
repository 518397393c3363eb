package runner

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
)

// ExecuteWorker builds input, applies force-from + strategy caching, runs, then invalidates downstream.
func ExecuteWorker(ctx context.Context, spec WorkerSpec, env *Env) error {
	_, err := ExecuteWorkerWithResult(ctx, spec, env)
	return err
}

// ExecuteWorkerWithResult is the same as ExecuteWorker but also returns WorkerOutput.
func ExecuteWorkerWithResult(ctx context.Context, spec WorkerSpec, env *Env) (WorkerOutput, error) {
	var zero WorkerOutput
	if len(spec.Requires) > 0 {
		visiting := make(map[string]bool)
		for _, r := range spec.Requires {
			if err := ensureArtifact(ctx, r, env, visiting); err != nil {
				return zero, err
			}
		}
	}

	// Prepare Deps for usage tracking
	deps := newDeps(env, spec.Key, spec.Requires)

	// Build logical input using Deps
	in, err := spec.BuildInput(ctx, deps)
	if err != nil {
		return zero, err
	}

	if unused := deps.verifyUsage(); len(unused) > 0 {
		switch env.DepsUsage {
		case DepsUsageIgnore:
			// no-op
		case DepsUsageWarn:
			log.Printf("WARNING: worker %s declared but did not use: %v", spec.Key, unused)
		default:
			return zero, fmt.Errorf("worker %s declared but did not use: %v", spec.Key, unused)
		}
	}

	fp := spec.Fingerprint(in, env)

	// Try cache (if strategy supports it)
	if out, ok := spec.Strategy.TryLoad(ctx, spec, env, fp); ok {
		return out, nil
	}

	out, err := spec.Run(ctx, in, env)
	if err != nil {
		return zero, err
	}

	// Persist artifact via strategy (only RuntimeState is cached)
	if err := spec.Strategy.Save(ctx, spec, env, out, fp); err != nil {
		return zero, err
	}

	// If forced, invalidate downstream caches (json-strategy only).
	if env.ForceFrom != "" && env.ForceFrom == strings.ToLower(spec.Key) && env.Resolver != nil {
		for _, d := range spec.Downstream {
			if ds, ok := env.Resolver.Get(d); ok {
				_ = ds.Strategy.Invalidate(ctx, ds, env)
			}
		}
	}
	return out, nil
}

// ExecuteKey resolves a worker by key and executes it.
func ExecuteKey(ctx context.Context, key string, env *Env) (WorkerOutput, error) {
	if env == nil || env.Resolver == nil {
		return WorkerOutput{}, fmt.Errorf("runner: resolver is not configured")
	}
	spec, ok := env.Resolver.Get(key)
	if !ok {
		return WorkerOutput{}, fmt.Errorf("runner: unknown worker %s", key)
	}
	return ExecuteWorkerWithResult(ctx, spec, env)
}

func ensureArtifact(ctx context.Context, key string, env *Env, visiting map[string]bool) error {
	if env == nil || env.Resolver == nil {
		return fmt.Errorf("runner: resolver is not configured")
	}
	if normalizeKey(key) == "" {
		return fmt.Errorf("runner: empty required worker key")
	}
	spec, ok := env.Resolver.Get(key)
	if !ok {
		fallback := filepath.Join(env.OutDir, normalizeKey(key)+".json")
		if FileExists(env.ArtifactFS, fallback) {
			return nil
		}
		return fmt.Errorf("runner: unknown required worker %s", key)
	}
	path := filepath.Join(env.OutDir, spec.Key+".json")
	if FileExists(env.ArtifactFS, path) {
		return nil
	}
	if visiting == nil {
		visiting = make(map[string]bool)
	}
	specKey := normalizeKey(spec.Key)
	if visiting[specKey] {
		return fmt.Errorf("runner: cyclic worker dependency detected at %s", spec.Key)
	}
	visiting[specKey] = true
	defer delete(visiting, specKey)
	for _, r := range spec.Requires {
		if err := ensureArtifact(ctx, r, env, visiting); err != nil {
			return err
		}
	}
	if err := ExecuteWorker(ctx, spec, env); err != nil {
		return fmt.Errorf("failed to build required worker %s: %w", spec.Key, err)
	}
	return nil
}
