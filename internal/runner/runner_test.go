package runner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"archmap/internal/safeio"
	"archmap/internal/scan"
)

func testEnv(t *testing.T) *Env {
	t.Helper()
	tmp := t.TempDir()
	fs, err := safeio.New(tmp)
	require.NoError(t, err)
	return &Env{
		Repo:       "demo",
		RepoRoot:   tmp,
		OutDir:     filepath.Join(tmp, "out"),
		RepoFS:     fs,
		ArtifactFS: fs,
	}
}

func constSpec(key string, requires []string, runs *int) WorkerSpec {
	return WorkerSpec{
		Key:      key,
		Requires: requires,
		BuildInput: func(ctx context.Context, deps Deps) (any, error) {
			for _, r := range requires {
				var ignored any
				if err := deps.Artifact(r, &ignored); err != nil {
					return nil, err
				}
			}
			return map[string]string{"repo": deps.Repo()}, nil
		},
		Run: func(ctx context.Context, in any, env *Env) (WorkerOutput, error) {
			if runs != nil {
				*runs++
			}
			return WorkerOutput{RuntimeState: map[string]string{"key": key}}, nil
		},
		Fingerprint: func(in any, env *Env) string { return JSONFingerprint(in) },
		Strategy:    JSONStrategy(),
	}
}

func TestMergeRegistriesComputesDownstream(t *testing.T) {
	reg := map[string]WorkerSpec{
		"a": constSpec("a", nil, nil),
		"b": constSpec("b", []string{"a"}, nil),
		"c": constSpec("c", []string{"a"}, nil),
	}
	r := MergeRegistries(reg)
	a, ok := r.Get("a")
	require.True(t, ok)
	require.Equal(t, []string{"b", "c"}, a.Downstream)
}

func TestExecuteWorkerUsesCacheOnSecondRun(t *testing.T) {
	env := testEnv(t)
	runs := 0
	spec := constSpec("a", nil, &runs)
	env.Resolver = MergeRegistries(map[string]WorkerSpec{"a": spec})

	require.NoError(t, ExecuteWorker(context.Background(), spec, env))
	require.NoError(t, ExecuteWorker(context.Background(), spec, env))
	require.Equal(t, 1, runs, "second execution must hit the cache")
}

func TestExecuteWorkerForceFromSkipsCache(t *testing.T) {
	env := testEnv(t)
	runs := 0
	spec := constSpec("a", nil, &runs)
	env.Resolver = MergeRegistries(map[string]WorkerSpec{"a": spec})

	require.NoError(t, ExecuteWorker(context.Background(), spec, env))
	env.ForceFrom = "a"
	require.NoError(t, ExecuteWorker(context.Background(), spec, env))
	require.Equal(t, 2, runs)
}

func TestExecuteWorkerRejectsUnusedRequires(t *testing.T) {
	env := testEnv(t)
	a := constSpec("a", nil, nil)
	over := WorkerSpec{
		Key:      "b",
		Requires: []string{"a"},
		BuildInput: func(ctx context.Context, deps Deps) (any, error) {
			// Deliberately never reads the declared artifact.
			return struct{}{}, nil
		},
		Run: func(ctx context.Context, in any, env *Env) (WorkerOutput, error) {
			return WorkerOutput{RuntimeState: struct{}{}}, nil
		},
		Fingerprint: func(in any, env *Env) string { return JSONFingerprint(in) },
		Strategy:    JSONStrategy(),
	}
	env.Resolver = MergeRegistries(map[string]WorkerSpec{"a": a, "b": over})

	err := ExecuteWorker(context.Background(), over, env)
	require.Error(t, err)
	require.Contains(t, err.Error(), "did not use")
}

func TestEnsureArtifactDetectsCycles(t *testing.T) {
	env := testEnv(t)
	a := constSpec("a", []string{"b"}, nil)
	b := constSpec("b", []string{"a"}, nil)
	env.Resolver = MergeRegistries(map[string]WorkerSpec{"a": a, "b": b})

	err := ExecuteWorker(context.Background(), a, env)
	require.Error(t, err)
	require.Contains(t, err.Error(), "cyclic")
}

func TestGenerateMermaidGraphListsWorkers(t *testing.T) {
	env := testEnv(t)
	resolver := MergeRegistries(BuildRegistry(env))
	out := GenerateMermaidGraph(resolver)
	require.Contains(t, out, "graph TD")
	require.Contains(t, out, "scan -->")
	require.Contains(t, out, "diagram --> render")
}

func TestPipelineEndToEnd(t *testing.T) {
	repo := t.TempDir()
	files := map[string]string{
		"api/handler.go":  "package api\n// uses store\nfunc h() { store() }\n",
		"api/routes.go":   "package api\nfunc r() { handler() }\n",
		"store/store.go":  "package store\nfunc store() {}\n",
		"store/driver.go": "package store\nfunc driver() { store() }\n",
		"main.go":         "package main\nfunc main() { routes() }\n",
	}
	for rel, content := range files {
		p := filepath.Join(repo, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}

	fs, err := safeio.New(repo)
	require.NoError(t, err)
	scan.SetSafeFS(fs)
	t.Cleanup(func() { scan.SetSafeFS(nil); scan.ClearScanCache() })

	env := &Env{
		Repo:       "demo",
		RepoRoot:   repo,
		OutDir:     filepath.Join(repo, ".archmap"),
		Exts:       []string{"go"},
		RepoFS:     fs,
		ArtifactFS: fs,
	}
	env.Resolver = MergeRegistries(BuildRegistry(env))

	out, err := ExecuteKey(context.Background(), "render", env)
	require.NoError(t, err)

	ro, ok := out.RuntimeState.(RenderOut)
	require.True(t, ok, "render output type")
	require.True(t, strings.Contains(ro.Text, "graph TD"))
	require.Contains(t, ro.Text, "api")
	require.Contains(t, ro.Text, "store")

	// Artifacts of every stage land in OutDir.
	for _, name := range []string{"scan.json", "deps.json", "graph.json", "clusters.json", "summaries.json", "diagram.json", "render.json"} {
		require.FileExists(t, filepath.Join(env.OutDir, name))
	}
}

func TestPipelineWithArtifactDirOutsideRepo(t *testing.T) {
	repo := t.TempDir()
	out := t.TempDir() // deliberately not under the repository root
	files := map[string]string{
		"api/handler.go": "package api\nfunc h() { store() }\n",
		"store/store.go": "package store\nfunc store() {}\n",
	}
	for rel, content := range files {
		p := filepath.Join(repo, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}

	repoFS, err := safeio.New(repo)
	require.NoError(t, err)
	scan.SetSafeFS(repoFS)
	t.Cleanup(func() { scan.SetSafeFS(nil); scan.ClearScanCache() })

	artFS, err := safeio.New(out)
	require.NoError(t, err)

	env := &Env{
		Repo:       "demo",
		RepoRoot:   repo,
		OutDir:     out,
		Exts:       []string{"go"},
		RepoFS:     repoFS,
		ArtifactFS: artFS,
	}
	env.Resolver = MergeRegistries(BuildRegistry(env))

	// Downstream workers read earlier artifacts back; an out dir outside the
	// repository must not break those reads.
	_, err = ExecuteKey(context.Background(), "render", env)
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(out, "render.json"))

	// Second run must be served from cache, which also goes through reads.
	_, err = ExecuteKey(context.Background(), "render", env)
	require.NoError(t, err)
}
