package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"archmap/internal/diagram"
	"archmap/internal/llmclient"
	"archmap/internal/runner"
	"archmap/internal/safeio"
	"archmap/internal/scan"
)

func main() {
	repo := flag.String("repo", "", "path to the repository root")
	out := flag.String("out", "", "artifact directory (default <repo>/.archmap)")
	exts := flag.String("exts", "go,ts,tsx,js,jsx,py,rs,java", "comma-separated source extensions")
	format := flag.String("format", string(diagram.FormatFlowchart), "diagram format: mermaid or c4")
	detail := flag.Bool("detail", false, "include per-file edge labels")
	seedDepth := flag.Int("seed-depth", 2, "path depth used to seed clusters")
	minFiles := flag.Int("min-files", 2, "merge clusters smaller than this")
	from := flag.String("from", "", "recompute starting at this worker (scan, deps, graph, clusters, summaries, diagram, render)")
	model := flag.String("model", "gemini-2.5-flash", "Gemini model id")
	pipelineDiagram := flag.Bool("pipeline-diagram", false, "print a Mermaid diagram of the worker pipeline and exit")
	flag.Parse()

	if *pipelineDiagram {
		resolver := runner.MergeRegistries(runner.BuildRegistry(&runner.Env{}))
		fmt.Print(runner.GenerateMermaidGraph(resolver))
		return
	}

	if *repo == "" {
		log.Fatal("--repo is required")
	}
	repoRoot, err := filepath.Abs(*repo)
	if err != nil {
		log.Fatal(err)
	}
	outDir := *out
	if outDir == "" {
		outDir = filepath.Join(repoRoot, ".archmap")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		log.Fatal(err)
	}

	_ = godotenv.Load()

	ctx := context.Background()

	var llm llmclient.Client
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		gem, err := llmclient.NewGeminiClient(ctx, apiKey, *model, 0)
		if err != nil {
			log.Fatal(err)
		}
		defer gem.Close()
		llm = gem
	} else {
		log.Println("GEMINI_API_KEY is not set; cluster summaries fall back to heuristics")
	}

	fs, err := safeio.New(repoRoot)
	if err != nil {
		log.Fatal(err)
	}
	scan.SetSafeFS(fs)

	// Artifacts get their own rooted FS: -out may point anywhere.
	artFS, err := safeio.New(outDir)
	if err != nil {
		log.Fatal(err)
	}

	env := &runner.Env{
		Repo:       filepath.Base(repoRoot),
		RepoRoot:   repoRoot,
		OutDir:     outDir,
		Exts:       splitExts(*exts),
		SeedDepth:  *seedDepth,
		MinFiles:   *minFiles,
		Detail:     *detail,
		Format:     diagram.Format(*format),
		RepoFS:     fs,
		ArtifactFS: artFS,
		ModelSalt:  *model,
		ForceFrom:  *from,
		LLM:        llm,
	}
	env.Resolver = runner.MergeRegistries(runner.BuildRegistry(env))

	events := make(chan runner.RunEvent, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			switch ev.Type {
			case runner.EventTypeProgress:
				log.Printf("[%3d%%] %s", ev.Progress, ev.Message)
			case runner.EventTypeLog:
				log.Print(ev.Message)
			}
		}
	}()
	ctx = runner.WithEmitter(ctx, &runner.ChannelEmitter{Ch: events})

	outcome, err := runner.ExecuteKey(ctx, "render", env)
	close(events)
	<-done
	if err != nil {
		log.Fatal(err)
	}

	rendered, err := decodeRender(outcome)
	if err != nil {
		log.Fatal(err)
	}
	target := filepath.Join(outDir, "diagram."+extFor(rendered.Format))
	if err := os.WriteFile(target, []byte(rendered.Text), 0o644); err != nil {
		log.Fatal(err)
	}
	log.Printf("diagram written to %s", target)
}

func decodeRender(out runner.WorkerOutput) (runner.RenderOut, error) {
	switch v := out.RuntimeState.(type) {
	case runner.RenderOut:
		return v, nil
	case *runner.RenderOut:
		return *v, nil
	}
	var r runner.RenderOut
	if err := remarshal(out.RuntimeState, &r); err != nil {
		return r, fmt.Errorf("unexpected render output: %w", err)
	}
	return r, nil
}

func remarshal(src, dst any) error {
	b, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

func splitExts(raw string) []string {
	var exts []string
	for _, e := range strings.Split(raw, ",") {
		e = strings.TrimSpace(strings.TrimPrefix(e, "."))
		if e != "" {
			exts = append(exts, e)
		}
	}
	return exts
}

func extFor(format string) string {
	if format == string(diagram.FormatContainers) {
		return "c4.mmd"
	}
	return "mmd"
}
