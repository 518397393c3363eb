package server

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"archmap/internal/diagram"
	"archmap/internal/runner"
	"archmap/internal/safeio"
	"archmap/internal/scan"
	"archmap/internal/store"
)

// defaultExts is the extension set analyzed when a request does not pick one.
var defaultExts = []string{"go", "ts", "tsx", "js", "jsx", "py", "rs", "java", "rb", "cs"}

// runMu serializes pipeline executions: the scan layer's filesystem override
// is process-wide, so concurrent runs over different roots must not overlap.
var runMu sync.Mutex

// hubEmitter bridges pipeline events into the websocket hub.
type hubEmitter struct {
	hub   *eventHub
	runID string
}

func (e hubEmitter) Emit(ev runner.RunEvent) { e.hub.publish(e.runID, ev) }
func (e hubEmitter) EmitLog(msg string) {
	e.Emit(runner.RunEvent{Type: runner.EventTypeLog, Message: msg})
}
func (e hubEmitter) EmitProgress(p int32, msg string) {
	e.Emit(runner.RunEvent{Type: runner.EventTypeProgress, Progress: p, Message: msg})
}

func (s *Service) executeRun(runID, repo, repoPath string, req createRunRequest) {
	runMu.Lock()
	defer runMu.Unlock()

	ctx := runner.WithEmitter(context.Background(), hubEmitter{hub: s.hub, runID: runID})

	s.Runs.Update(runID, func(r *store.Run) {
		r.Status = store.StatusRunning
		r.UpdatedAt = time.Now()
	})
	s.Runs.Save()

	fail := func(err error) {
		log.Printf("RUN %s: failed: %v", runID, err)
		s.Runs.Update(runID, func(r *store.Run) {
			r.Status = store.StatusFailed
			r.Error = err.Error()
			r.UpdatedAt = time.Now()
		})
		s.Runs.Save()
		s.hub.publish(runID, runner.RunEvent{Type: runner.EventTypeError, Message: err.Error()})
	}

	fs, err := safeio.New(repoPath)
	if err != nil {
		fail(err)
		return
	}
	scan.SetSafeFS(fs)
	defer func() {
		scan.SetSafeFS(nil)
		scan.ClearScanCache()
	}()

	exts := req.Exts
	if len(exts) == 0 {
		exts = defaultExts
	}

	outDir := filepath.Join(repoPath, ".archmap")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fail(err)
		return
	}
	artFS, err := safeio.New(outDir)
	if err != nil {
		fail(err)
		return
	}

	env := &runner.Env{
		Repo:       repo,
		RepoRoot:   repoPath,
		OutDir:     outDir,
		Exts:       exts,
		Detail:     req.Detail,
		Format:     diagram.Format(req.Format),
		RepoFS:     fs,
		ArtifactFS: artFS,
		LLM:        s.LLM,
	}
	env.Resolver = runner.MergeRegistries(runner.BuildRegistry(env))

	out, err := runner.ExecuteKey(ctx, "render", env)
	if err != nil {
		fail(err)
		return
	}

	var rendered runner.RenderOut
	if b, e := json.Marshal(out.RuntimeState); e == nil {
		_ = json.Unmarshal(b, &rendered)
	}

	s.persistArtifacts(ctx, runID, env.OutDir)

	s.Runs.Update(runID, func(r *store.Run) {
		r.Status = store.StatusDone
		r.Diagram = rendered.Text
		r.Format = rendered.Format
		r.UpdatedAt = time.Now()
	})
	s.Runs.Save()
	s.diagrams.Set(runID, rendered.Text)
	s.hub.publish(runID, runner.RunEvent{Type: runner.EventTypeComplete, Progress: 100, Message: "run complete"})
}

// persistArtifacts mirrors the run's artifact directory into the configured
// artifact store and records each name on the run.
func (s *Service) persistArtifacts(ctx context.Context, runID, outDir string) {
	if s.Artifacts == nil {
		return
	}
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		b, err := os.ReadFile(filepath.Join(outDir, e.Name()))
		if err != nil {
			continue
		}
		if err := s.Artifacts.Put(ctx, runID, e.Name(), b); err != nil {
			log.Printf("RUN %s: artifact upload %s: %v", runID, e.Name(), err)
			continue
		}
		_ = s.Runs.AddArtifact(store.RunArtifact{RunID: runID, Name: e.Name()})
	}
}
