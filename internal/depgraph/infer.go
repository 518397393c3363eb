package depgraph

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"strings"

	"archmap/internal/safeio"
	"archmap/internal/scan"
	"archmap/internal/wordidx"
)

// Reference counts how often a file mentions another file's name tokens.
type Reference struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}

// FileDeps lists the inferred references of a single source file.
type FileDeps struct {
	Path     string      `json:"path"`
	Ext      string      `json:"ext,omitempty"`
	Requires []Reference `json:"requires,omitempty"`
}

// DepSet is the result of dependency inference over one repository.
type DepSet struct {
	Repo  string     `json:"repo"`
	Roots []string   `json:"roots,omitempty"`
	Exts  []string   `json:"exts,omitempty"`
	Files []FileDeps `json:"files"`
}

// Infer scans the given roots and infers file-to-file references by matching
// filename tokens (basename, stem, dot-split parts) against each file's word
// index. It is language-agnostic; no parsing is involved.
func Infer(ctx context.Context, repo string, roots []string, exts []string) (DepSet, error) {
	fs := scan.CurrentSafeFS()
	if fs == nil {
		fs = safeio.Default()
	}
	if fs == nil {
		return DepSet{}, fmt.Errorf("depgraph: safe filesystem not configured")
	}
	base := fs.Root()

	var resolvedRoots []string
	for _, r := range roots {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		resolvedRoots = append(resolvedRoots, filepath.Join(base, filepath.Clean(r)))
	}
	if len(resolvedRoots) == 0 {
		resolvedRoots = []string{base}
	}

	agg := wordidx.New().
		Root(resolvedRoots...).
		Allow(exts...).
		Workers(2).
		Options(scan.Options{BypassCache: true}).
		FS(fs).
		Start(ctx)

	if err := agg.Wait(ctx); err != nil {
		return DepSet{}, err
	}

	filenameIndex := buildFilenameIndex(ctx, agg)

	var files []FileDeps
	for _, fi := range agg.Files(ctx) {
		from := repoRelative(base, fi.Path)
		counts := make(map[string]int)

		for _, w := range fi.Index.Words {
			tok := strings.ToLower(w.Text)
			paths, ok := filenameIndex[tok]
			if !ok {
				continue
			}
			for p := range paths {
				target := repoRelative(base, p)
				if target == from {
					continue
				}
				counts[target]++
			}
		}

		files = append(files, FileDeps{
			Path:     from,
			Ext:      strings.TrimPrefix(filepath.Ext(from), "."),
			Requires: sortedReferences(counts),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	log.Printf("DEPS: inferred references for %d files in repo %s", len(files), repo)
	return DepSet{
		Repo:  repo,
		Roots: roots,
		Exts:  exts,
		Files: files,
	}, nil
}

// buildFilenameIndex constructs a lookup from lowercase name tokens to file paths.
// Example for "foo.bar.ts":
//   - "foo.bar.ts"  (basename)
//   - "foo.bar"     (stem = basename without extension)
//   - "foo", "bar", "ts"  (dot-split tokens)
func buildFilenameIndex(ctx context.Context, agg *wordidx.AggIndex) map[string]map[string]struct{} {
	idx := make(map[string]map[string]struct{})

	add := func(token, fullpath string) {
		token = strings.ToLower(strings.TrimSpace(token))
		if token == "" {
			return
		}
		m := idx[token]
		if m == nil {
			m = make(map[string]struct{})
			idx[token] = m
		}
		m[fullpath] = struct{}{}
	}

	for _, fi := range agg.Files(ctx) {
		base := filepath.Base(fi.Path)

		add(base, fi.Path)
		if ext := filepath.Ext(base); ext != "" {
			add(base[:len(base)-len(ext)], fi.Path)
		}
		for _, part := range strings.Split(base, ".") {
			add(part, fi.Path)
		}
	}

	return idx
}

func sortedReferences(counts map[string]int) []Reference {
	out := make([]Reference, 0, len(counts))
	for p, c := range counts {
		out = append(out, Reference{Path: p, Count: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func repoRelative(root, path string) string {
	if path == "" {
		return ""
	}
	if root == "" {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
