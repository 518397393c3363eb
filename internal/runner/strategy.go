package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type jsonStrategy struct{}

// JSONStrategy returns the standard JSON caching strategy: an output file plus
// a meta file recording the input fingerprint and model salt.
func JSONStrategy() CacheStrategy { return jsonStrategy{} }

type cacheMeta struct {
	Inputs    string    `json:"inputs"`
	Salt      string    `json:"salt,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (s jsonStrategy) outPath(spec WorkerSpec, env *Env) string {
	return filepath.Join(env.OutDir, spec.Key+".json")
}

func (s jsonStrategy) metaPath(spec WorkerSpec, env *Env) string {
	return filepath.Join(env.OutDir, spec.Key+".meta.json")
}

func (s jsonStrategy) TryLoad(ctx context.Context, spec WorkerSpec, env *Env, inputFP string) (WorkerOutput, bool) {
	var zero WorkerOutput
	if env.ForceFrom != "" && env.ForceFrom == strings.ToLower(spec.Key) {
		return zero, false
	}
	fs := ensureFS(env.ArtifactFS)
	mp, op := s.metaPath(spec, env), s.outPath(spec, env)
	if !FileExists(fs, mp) || !FileExists(fs, op) {
		return zero, false
	}
	var m cacheMeta
	if b, err := fs.ReadFile(mp); err == nil && json.Unmarshal(b, &m) == nil {
		if m.Inputs == inputFP && m.Salt == env.ModelSalt {
			var out any
			if b, err := fs.ReadFile(op); err == nil && json.Unmarshal(b, &out) == nil {
				log.Printf("%s: using cache → %s", strings.ToUpper(spec.Key), op)
				return WorkerOutput{RuntimeState: out, ClientView: nil}, true
			}
		}
	}
	return zero, false
}

func (s jsonStrategy) Save(ctx context.Context, spec WorkerSpec, env *Env, out WorkerOutput, inputFP string) error {
	if err := os.MkdirAll(env.OutDir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	mp, op := s.metaPath(spec, env), s.outPath(spec, env)
	if b, e := json.MarshalIndent(out.RuntimeState, "", "  "); e == nil {
		_ = os.WriteFile(op, b, 0o644)
	}
	mb, _ := json.MarshalIndent(cacheMeta{Inputs: inputFP, Salt: env.ModelSalt, CreatedAt: time.Now()}, "", "  ")
	_ = os.WriteFile(mp, mb, 0o644)
	log.Printf("%s → %s", strings.ToUpper(spec.Key), op)
	return nil
}

func (s jsonStrategy) Invalidate(ctx context.Context, spec WorkerSpec, env *Env) error {
	_ = os.Remove(s.outPath(spec, env))
	_ = os.Remove(s.metaPath(spec, env))
	return nil
}

