package organize

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"archmap/internal/depgraph"
)

// Cluster is a logical component: a named group of repository files.
type Cluster struct {
	ID    string   `json:"id"`
	Label string   `json:"label"`
	Dir   string   `json:"dir"` // seed directory, "" for the repository root
	Files []string `json:"files"`
}

// Layout is the full file-to-cluster assignment for one repository.
// Every file appears in exactly one cluster.
type Layout struct {
	Repo     string    `json:"repo"`
	Clusters []Cluster `json:"clusters"`
}

// Options tunes cluster seeding and merging.
type Options struct {
	// SeedDepth is the number of leading path segments that seed a cluster.
	// 0 means 1.
	SeedDepth int
	// MinFiles: clusters smaller than this are merged into the neighbour with
	// the strongest dependency affinity. 0 disables merging.
	MinFiles int
	// RootLabel names the catch-all cluster for files directly under the
	// repository root. Defaults to "root".
	RootLabel string
}

// Organize groups the graph's files into clusters seeded from the directory
// structure and refined by dependency affinity. Cluster identifiers are
// sanitized slugs, unique within the layout.
func Organize(repo string, g depgraph.Graph, opts Options) Layout {
	depth := opts.SeedDepth
	if depth <= 0 {
		depth = 1
	}
	rootLabel := opts.RootLabel
	if rootLabel == "" {
		rootLabel = "root"
	}

	// 1. Seed: each file belongs to the cluster of its leading path segments.
	fileSeed := make(map[string]string, len(g.Paths))
	seedFiles := make(map[string][]string)
	for _, p := range g.Paths {
		seed := seedDir(p, depth)
		fileSeed[p] = seed
		seedFiles[seed] = append(seedFiles[seed], p)
	}

	// 2. Merge small clusters into their strongest dependency neighbour.
	if opts.MinFiles > 1 {
		mergeByAffinity(g, fileSeed, seedFiles, opts.MinFiles)
	}

	// 3. Materialize clusters with sanitized unique identifiers.
	seeds := make([]string, 0, len(seedFiles))
	for seed, files := range seedFiles {
		if len(files) == 0 {
			continue
		}
		seeds = append(seeds, seed)
	}
	sort.Strings(seeds)

	gen := NewUIDGenerator()
	clusters := make([]Cluster, 0, len(seeds))
	for _, seed := range seeds {
		label := clusterLabel(seed, rootLabel)
		files := append([]string(nil), seedFiles[seed]...)
		sort.Strings(files)
		clusters = append(clusters, Cluster{
			ID:    gen.GenerateForKey("dir:"+seed, label),
			Label: label,
			Dir:   seed,
			Files: files,
		})
	}

	log.Printf("CLUSTERS: organized %d files into %d clusters", len(g.Paths), len(clusters))
	return Layout{Repo: repo, Clusters: clusters}
}

// mergeByAffinity folds clusters below minFiles into the neighbouring cluster
// they exchange the most dependency weight with. Smallest clusters first so a
// chain of tiny directories collapses predictably.
func mergeByAffinity(g depgraph.Graph, fileSeed map[string]string, seedFiles map[string][]string, minFiles int) {
	for {
		var small []string
		for seed, files := range seedFiles {
			if len(files) > 0 && len(files) < minFiles && seed != "" {
				small = append(small, seed)
			}
		}
		if len(small) == 0 {
			return
		}
		sort.Slice(small, func(i, j int) bool {
			if len(seedFiles[small[i]]) != len(seedFiles[small[j]]) {
				return len(seedFiles[small[i]]) < len(seedFiles[small[j]])
			}
			return small[i] < small[j]
		})

		seed := small[0]
		target, ok := strongestNeighbour(g, fileSeed, seed)
		if !ok {
			// No dependency ties anywhere: fold into the root cluster.
			target = ""
		}
		for _, f := range seedFiles[seed] {
			fileSeed[f] = target
		}
		seedFiles[target] = append(seedFiles[target], seedFiles[seed]...)
		delete(seedFiles, seed)
	}
}

// strongestNeighbour returns the cluster exchanging the most edge weight with
// seed (both directions). Ties break towards the lexicographically smaller dir.
func strongestNeighbour(g depgraph.Graph, fileSeed map[string]string, seed string) (string, bool) {
	affinity := make(map[string]int)
	for _, e := range g.Edges {
		fromSeed := fileSeed[g.Paths[e.From]]
		toSeed := fileSeed[g.Paths[e.To]]
		if fromSeed == toSeed {
			continue
		}
		w := e.Weight
		if w <= 0 {
			w = 1
		}
		if fromSeed == seed {
			affinity[toSeed] += w
		} else if toSeed == seed {
			affinity[fromSeed] += w
		}
	}
	best := ""
	bestW := 0
	found := false
	for other, w := range affinity {
		if w > bestW || (w == bestW && found && other < best) {
			best = other
			bestW = w
			found = true
		}
	}
	return best, found
}

// ClusterOf returns the cluster id a file is assigned to.
func (l Layout) ClusterOf(path string) (string, bool) {
	for _, c := range l.Clusters {
		for _, f := range c.Files {
			if f == path {
				return c.ID, true
			}
		}
	}
	return "", false
}

// Validate checks the layout invariants: every file in exactly one cluster and
// all cluster ids unique.
func (l Layout) Validate() error {
	ids := make(map[string]struct{}, len(l.Clusters))
	files := make(map[string]string)
	for _, c := range l.Clusters {
		if c.ID == "" {
			return fmt.Errorf("organize: cluster %q has empty id", c.Label)
		}
		if _, dup := ids[c.ID]; dup {
			return fmt.Errorf("organize: duplicate cluster id %q", c.ID)
		}
		ids[c.ID] = struct{}{}
		for _, f := range c.Files {
			if prev, dup := files[f]; dup {
				return fmt.Errorf("organize: file %q assigned to both %q and %q", f, prev, c.ID)
			}
			files[f] = c.ID
		}
	}
	return nil
}

func seedDir(path string, depth int) string {
	path = strings.Trim(path, "/")
	segs := strings.Split(path, "/")
	if len(segs) <= 1 {
		return "" // file directly under the repository root
	}
	dirSegs := segs[:len(segs)-1]
	if len(dirSegs) > depth {
		dirSegs = dirSegs[:depth]
	}
	return strings.Join(dirSegs, "/")
}

func clusterLabel(seed, rootLabel string) string {
	if seed == "" {
		return rootLabel
	}
	segs := strings.Split(seed, "/")
	return segs[len(segs)-1]
}
