package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"archmap/internal/organize"
	"archmap/internal/safeio"
	"archmap/internal/scan"
)

type fakeLLM struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (f *fakeLLM) Name() string                { return "fake" }
func (f *fakeLLM) Close() error                { return nil }
func (f *fakeLLM) CountTokens(text string) int { return len(text) / 4 }

func (f *fakeLLM) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fail {
		return nil, fmt.Errorf("model unavailable")
	}
	in := input.(SummariesIn)
	out := SummariesOut{Summaries: map[string]string{}}
	for _, c := range in.Clusters {
		out.Summaries[c.ID] = "handles " + c.Label
	}
	return json.Marshal(out)
}

func demoSummariesIn(n int) SummariesIn {
	layout := organize.Layout{Repo: "demo"}
	for i := 0; i < n; i++ {
		layout.Clusters = append(layout.Clusters, organize.Cluster{
			ID:    fmt.Sprintf("c-%d", i),
			Label: fmt.Sprintf("pkg%d", i),
			Dir:   fmt.Sprintf("pkg%d", i),
			Files: []string{fmt.Sprintf("pkg%d/a.go", i)},
		})
	}
	return buildSummariesIn(layout, "")
}

func TestSummarizeHeuristicWithoutLLM(t *testing.T) {
	env := &Env{Repo: "demo"}
	in := demoSummariesIn(2)

	out, err := summarize(context.Background(), in, env)
	require.NoError(t, err)
	require.Len(t, out.Summaries, 2)
	require.Equal(t, "1 file in pkg0", out.Summaries["c-0"])
}

func TestSummarizeUsesLLM(t *testing.T) {
	llm := &fakeLLM{}
	env := &Env{Repo: "demo", LLM: llm}
	in := demoSummariesIn(3)

	out, err := summarize(context.Background(), in, env)
	require.NoError(t, err)
	for _, c := range in.Clusters {
		require.Equal(t, "handles "+c.Label, out.Summaries[c.ID])
	}
	require.GreaterOrEqual(t, llm.calls, 1)
}

func TestSummarizeSurfacesLLMErrors(t *testing.T) {
	env := &Env{Repo: "demo", LLM: &fakeLLM{fail: true}}
	in := demoSummariesIn(2)

	_, err := summarize(context.Background(), in, env)
	require.Error(t, err)
	require.Contains(t, err.Error(), "summaries")
}

func TestBuildSummariesInCapsSamples(t *testing.T) {
	layout := organize.Layout{Repo: "demo"}
	files := make([]string, 12)
	for i := range files {
		files[i] = fmt.Sprintf("big/f%02d.go", i)
	}
	layout.Clusters = []organize.Cluster{{ID: "big-1", Label: "big", Dir: "big", Files: files}}

	in := buildSummariesIn(layout, "")
	require.Len(t, in.Clusters, 1)
	require.Len(t, in.Clusters[0].Sample, 8)
	require.Equal(t, 12, in.Clusters[0].FileCount)
}

func TestBuildSummariesInAttachesPreviews(t *testing.T) {
	repo := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(repo, "api"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(repo, "api", "handler.go"), []byte("package api\nfunc h() {}\n"), 0o644))

	fs, err := safeio.New(repo)
	require.NoError(t, err)
	scan.SetSafeFS(fs)
	t.Cleanup(func() { scan.SetSafeFS(nil); scan.ClearFileInfoCache() })

	layout := organize.Layout{Repo: "demo", Clusters: []organize.Cluster{
		{ID: "api-1", Label: "api", Dir: "api", Files: []string{"api/handler.go"}},
	}}
	in := buildSummariesIn(layout, repo)
	require.Len(t, in.Clusters, 1)
	require.Contains(t, in.Clusters[0].Preview, "package api")
}
