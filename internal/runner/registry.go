package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"archmap/internal/depgraph"
	"archmap/internal/diagram"
	"archmap/internal/organize"
	"archmap/internal/scan"
	"archmap/internal/scheduler"
)

// summariesTokenCap bounds the estimated input tokens of one summarize batch.
const summariesTokenCap = 8000

// llmPermits throttles LLM traffic process-wide. A batch claims one permit per
// summariesTokenCap/2 tokens, so the worst case (two full batches in flight)
// holds exactly the broker's capacity and never deadlocks.
var llmPermits = scheduler.NewSemaphoreBroker(4)

// Artifact payload types. These round-trip through the JSON strategy, so every
// field is tagged and stable across runs.

type ScanIn struct {
	Repo string   `json:"repo"`
	Exts []string `json:"exts,omitempty"`
}

type ScanOut struct {
	Repo  string   `json:"repo"`
	Roots []string `json:"roots,omitempty"`
	Files []string `json:"files"`
}

type ClustersIn struct {
	Graph     depgraph.Graph `json:"graph"`
	SeedDepth int            `json:"seed_depth,omitempty"`
	MinFiles  int            `json:"min_files,omitempty"`
}

type SummariesIn struct {
	Repo     string         `json:"repo"`
	Clusters []ClusterBrief `json:"clusters"`
}

// ClusterBrief is the compact cluster view handed to the summarizer.
type ClusterBrief struct {
	ID        string   `json:"id"`
	Label     string   `json:"label"`
	Dir       string   `json:"dir"`
	FileCount int      `json:"file_count"`
	Sample    []string `json:"sample,omitempty"`
	Preview   string   `json:"preview,omitempty"`
}

// previewLimit bounds the content excerpt attached to each cluster brief.
const previewLimit = 240

type SummariesOut struct {
	Summaries map[string]string `json:"summaries"`
}

type DiagramIn struct {
	Layout    organize.Layout   `json:"layout"`
	Graph     depgraph.Graph    `json:"graph"`
	Summaries map[string]string `json:"summaries,omitempty"`
	Title     string            `json:"title,omitempty"`
	Detail    bool              `json:"detail,omitempty"`
}

type RenderIn struct {
	Spec   diagram.Spec `json:"spec"`
	Format string       `json:"format,omitempty"`
}

type RenderOut struct {
	Format string `json:"format"`
	Text   string `json:"text"`
}

const summariesPrompt = `You are a software architect. For each cluster of source
files below, write a one-line description of its responsibility. Respond with a
JSON object {"summaries": {"<cluster id>": "<description>", ...}}. Keep each
description under 12 words.`

// BuildRegistry defines the analysis pipeline workers in one place.
// Add or modify workers here without touching main or execution logic.
func BuildRegistry(env *Env) map[string]WorkerSpec {
	reg := map[string]WorkerSpec{}

	reg["scan"] = WorkerSpec{
		Key:         "scan",
		Description: "Walk the repository and list source files matching the configured extensions.",
		BuildInput: func(ctx context.Context, deps Deps) (any, error) {
			return ScanIn{Repo: deps.Repo(), Exts: deps.Env().Exts}, nil
		},
		Run: func(ctx context.Context, in any, env *Env) (WorkerOutput, error) {
			si := in.(ScanIn)
			EmitterFrom(ctx).EmitProgress(5, "scanning repository")
			files, err := scan.FilesWithExtensions(env.RepoRoot, si.Exts, scan.Options{})
			if err != nil {
				return WorkerOutput{}, fmt.Errorf("scan %s: %w", si.Repo, err)
			}
			out := ScanOut{Repo: si.Repo, Files: files}
			return WorkerOutput{RuntimeState: out}, nil
		},
		Fingerprint: func(in any, env *Env) string {
			return JSONFingerprint(struct {
				In   ScanIn
				Salt string
			}{in.(ScanIn), env.ModelSalt})
		},
		Strategy: JSONStrategy(),
	}

	reg["deps"] = WorkerSpec{
		Key:         "deps",
		Requires:    []string{"scan"},
		Description: "Infer file-to-file references by matching filename tokens against word indexes.",
		BuildInput: func(ctx context.Context, deps Deps) (any, error) {
			var prev ScanOut
			if err := deps.Artifact("scan", &prev); err != nil {
				return nil, err
			}
			return prev, nil
		},
		Run: func(ctx context.Context, in any, env *Env) (WorkerOutput, error) {
			so := in.(ScanOut)
			EmitterFrom(ctx).EmitProgress(25, "inferring dependencies")
			ds, err := depgraph.Infer(ctx, so.Repo, so.Roots, env.Exts)
			if err != nil {
				return WorkerOutput{}, err
			}
			return WorkerOutput{RuntimeState: ds}, nil
		},
		Fingerprint: func(in any, env *Env) string {
			return JSONFingerprint(struct {
				In   ScanOut
				Salt string
			}{in.(ScanOut), env.ModelSalt})
		},
		Strategy: JSONStrategy(),
	}

	reg["graph"] = WorkerSpec{
		Key:         "graph",
		Requires:    []string{"deps"},
		Description: "Build the acyclic file dependency graph: collapse bidirectional edges, break cycles.",
		BuildInput: func(ctx context.Context, deps Deps) (any, error) {
			var ds depgraph.DepSet
			if err := deps.Artifact("deps", &ds); err != nil {
				return nil, err
			}
			return ds, nil
		},
		Run: func(ctx context.Context, in any, env *Env) (WorkerOutput, error) {
			EmitterFrom(ctx).EmitProgress(45, "building dependency graph")
			g := depgraph.Build(in.(depgraph.DepSet))
			return WorkerOutput{RuntimeState: g}, nil
		},
		Fingerprint: func(in any, env *Env) string {
			return JSONFingerprint(in.(depgraph.DepSet))
		},
		Strategy: JSONStrategy(),
	}

	reg["clusters"] = WorkerSpec{
		Key:         "clusters",
		Requires:    []string{"graph"},
		Description: "Group files into components seeded from directories and refined by dependency affinity.",
		BuildInput: func(ctx context.Context, deps Deps) (any, error) {
			var g depgraph.Graph
			if err := deps.Artifact("graph", &g); err != nil {
				return nil, err
			}
			return ClustersIn{Graph: g, SeedDepth: deps.Env().SeedDepth, MinFiles: deps.Env().MinFiles}, nil
		},
		Run: func(ctx context.Context, in any, env *Env) (WorkerOutput, error) {
			ci := in.(ClustersIn)
			EmitterFrom(ctx).EmitProgress(60, "organizing clusters")
			layout := organize.Organize(ci.Graph.Repo, ci.Graph, organize.Options{
				SeedDepth: ci.SeedDepth,
				MinFiles:  ci.MinFiles,
			})
			if err := layout.Validate(); err != nil {
				return WorkerOutput{}, err
			}
			return WorkerOutput{RuntimeState: layout}, nil
		},
		Fingerprint: func(in any, env *Env) string {
			return JSONFingerprint(in.(ClustersIn))
		},
		Strategy: JSONStrategy(),
	}

	reg["summaries"] = WorkerSpec{
		Key:         "summaries",
		Requires:    []string{"clusters"},
		Description: "Describe each cluster in one line, via the LLM when configured, heuristically otherwise.",
		BuildInput: func(ctx context.Context, deps Deps) (any, error) {
			var layout organize.Layout
			if err := deps.Artifact("clusters", &layout); err != nil {
				return nil, err
			}
			return buildSummariesIn(layout, deps.Root()), nil
		},
		Run: func(ctx context.Context, in any, env *Env) (WorkerOutput, error) {
			si := in.(SummariesIn)
			EmitterFrom(ctx).EmitProgress(75, "summarizing clusters")
			out, err := summarize(ctx, si, env)
			if err != nil {
				return WorkerOutput{}, err
			}
			return WorkerOutput{RuntimeState: out}, nil
		},
		Fingerprint: func(in any, env *Env) string {
			return JSONFingerprint(struct {
				In   SummariesIn
				Salt string
			}{in.(SummariesIn), env.ModelSalt})
		},
		Strategy: JSONStrategy(),
	}

	reg["diagram"] = WorkerSpec{
		Key:         "diagram",
		Requires:    []string{"clusters", "graph", "summaries"},
		Description: "Normalize layout and graph into a renderable diagram spec with aggregated edges.",
		BuildInput: func(ctx context.Context, deps Deps) (any, error) {
			var layout organize.Layout
			if err := deps.Artifact("clusters", &layout); err != nil {
				return nil, err
			}
			var g depgraph.Graph
			if err := deps.Artifact("graph", &g); err != nil {
				return nil, err
			}
			var sums SummariesOut
			if err := deps.Artifact("summaries", &sums); err != nil {
				return nil, err
			}
			return DiagramIn{
				Layout:    layout,
				Graph:     g,
				Summaries: sums.Summaries,
				Title:     deps.Env().Title,
				Detail:    deps.Env().Detail,
			}, nil
		},
		Run: func(ctx context.Context, in any, env *Env) (WorkerOutput, error) {
			di := in.(DiagramIn)
			EmitterFrom(ctx).EmitProgress(90, "preparing diagram")
			spec, err := diagram.Prepare(di.Layout, di.Graph, diagram.PrepareOptions{
				Title:     di.Title,
				Detail:    di.Detail,
				Summaries: di.Summaries,
			})
			if err != nil {
				return WorkerOutput{}, err
			}
			return WorkerOutput{RuntimeState: spec}, nil
		},
		Fingerprint: func(in any, env *Env) string {
			return JSONFingerprint(in.(DiagramIn))
		},
		Strategy: JSONStrategy(),
	}

	reg["render"] = WorkerSpec{
		Key:         "render",
		Requires:    []string{"diagram"},
		Description: "Render the diagram spec into Mermaid text in the requested format.",
		BuildInput: func(ctx context.Context, deps Deps) (any, error) {
			var spec diagram.Spec
			if err := deps.Artifact("diagram", &spec); err != nil {
				return nil, err
			}
			return RenderIn{Spec: spec, Format: string(deps.Env().Format)}, nil
		},
		Run: func(ctx context.Context, in any, env *Env) (WorkerOutput, error) {
			ri := in.(RenderIn)
			EmitterFrom(ctx).EmitProgress(95, "rendering diagram")
			text, err := diagram.Render(ri.Spec, diagram.Format(ri.Format))
			if err != nil {
				return WorkerOutput{}, err
			}
			format := ri.Format
			if format == "" {
				format = string(diagram.FormatFlowchart)
			}
			out := RenderOut{Format: format, Text: text}
			return WorkerOutput{RuntimeState: out, ClientView: out}, nil
		},
		Fingerprint: func(in any, env *Env) string {
			return JSONFingerprint(in.(RenderIn))
		},
		Strategy: JSONStrategy(),
	}

	return reg
}

// buildSummariesIn converts a layout into summarizer briefs. When repoRoot is
// set, each brief carries a short content excerpt of its first sample file so
// the model sees more than path names.
func buildSummariesIn(layout organize.Layout, repoRoot string) SummariesIn {
	briefs := make([]ClusterBrief, 0, len(layout.Clusters))
	for _, c := range layout.Clusters {
		sample := c.Files
		if len(sample) > 8 {
			sample = sample[:8]
		}
		var preview string
		if repoRoot != "" && len(sample) > 0 {
			preview, _ = scan.GetPreview(repoRoot, sample[0], previewLimit)
		}
		briefs = append(briefs, ClusterBrief{
			ID:        c.ID,
			Label:     c.Label,
			Dir:       c.Dir,
			FileCount: len(c.Files),
			Sample:    append([]string(nil), sample...),
			Preview:   preview,
		})
	}
	sort.Slice(briefs, func(i, j int) bool { return briefs[i].ID < briefs[j].ID })
	return SummariesIn{Repo: layout.Repo, Clusters: briefs}
}

// summarize asks the LLM for one-liners; without a client (or for any cluster
// the model skipped) it falls back to a deterministic heuristic. Clusters are
// packed into token-capped batches so large repositories stay within one
// request's budget, with two batches in flight at a time.
func summarize(ctx context.Context, in SummariesIn, env *Env) (SummariesOut, error) {
	out := SummariesOut{Summaries: make(map[string]string, len(in.Clusters))}

	if env.LLM != nil && len(in.Clusters) > 0 {
		var mu sync.Mutex
		var firstErr error

		weightOf := func(i int) int {
			b, _ := json.Marshal(in.Clusters[i])
			w := env.LLM.CountTokens(string(b))
			if w < 1 {
				w = 1
			}
			if w > summariesTokenCap {
				// An oversized brief still has to go out, alone in its batch.
				w = summariesTokenCap
			}
			return w
		}
		targets := make(map[int]struct{}, len(in.Clusters))
		for i := range in.Clusters {
			targets[i] = struct{}{}
		}

		err := scheduler.Run(ctx, scheduler.Plan{
			Adj:         make([][]int, len(in.Clusters)),
			Weight:      weightOf,
			Targets:     targets,
			ChunkCap:    summariesTokenCap,
			MaxInFlight: 2,
			Broker:      llmPermits,
			Permits:     scheduler.TokenPermits(weightOf, summariesTokenCap/2),
			Exec: func(ctx context.Context, chunk []int) (<-chan struct{}, error) {
				batch := SummariesIn{Repo: in.Repo}
				for _, i := range chunk {
					batch.Clusters = append(batch.Clusters, in.Clusters[i])
				}
				done := make(chan struct{})
				go func() {
					defer close(done)
					raw, err := env.LLM.GenerateJSON(ctx, summariesPrompt, batch)
					if err != nil {
						mu.Lock()
						if firstErr == nil {
							firstErr = err
						}
						mu.Unlock()
						return
					}
					var parsed SummariesOut
					if json.Unmarshal(raw, &parsed) != nil {
						return
					}
					mu.Lock()
					for id, s := range parsed.Summaries {
						if s = strings.TrimSpace(s); s != "" {
							out.Summaries[id] = s
						}
					}
					mu.Unlock()
				}()
				return done, nil
			},
		})
		if err != nil {
			return SummariesOut{}, fmt.Errorf("summaries: %w", err)
		}
		if firstErr != nil {
			return SummariesOut{}, fmt.Errorf("summaries: %w", firstErr)
		}
	}

	for _, c := range in.Clusters {
		if _, ok := out.Summaries[c.ID]; ok {
			continue
		}
		out.Summaries[c.ID] = heuristicSummary(c)
	}
	return out, nil
}

func heuristicSummary(c ClusterBrief) string {
	where := c.Dir
	if where == "" {
		where = "the repository root"
	}
	if c.FileCount == 1 {
		return fmt.Sprintf("1 file in %s", where)
	}
	return fmt.Sprintf("%d files in %s", c.FileCount, where)
}
