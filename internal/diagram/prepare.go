package diagram

import (
	"fmt"
	"path"
	"sort"

	"archmap/internal/depgraph"
	"archmap/internal/organize"
)

// PrepareOptions tunes the preparation stage.
type PrepareOptions struct {
	// Title of the resulting diagram; defaults to the layout's repo name.
	Title string
	// Detail includes per-file member nodes inside each cluster.
	Detail bool
	// Summaries maps cluster id -> one-line description (optional).
	Summaries map[string]string
}

// Prepare normalizes a cluster layout and the file dependency graph into a
// renderable Spec: one node per cluster, aggregated weighted edges between
// clusters, self-edges dropped, deterministic ordering.
func Prepare(layout organize.Layout, g depgraph.Graph, opts PrepareOptions) (Spec, error) {
	if err := layout.Validate(); err != nil {
		return Spec{}, fmt.Errorf("diagram: invalid layout: %w", err)
	}

	title := opts.Title
	if title == "" {
		title = layout.Repo
	}

	clusterOf := make(map[string]string, len(g.Paths))
	for _, c := range layout.Clusters {
		for _, f := range c.Files {
			clusterOf[f] = c.ID
		}
	}

	// Reserve cluster ids so member ids can never collide with them.
	gen := organize.NewUIDGenerator(clusterIDs(layout)...)

	nodes := make([]Node, 0, len(layout.Clusters))
	for _, c := range layout.Clusters {
		n := Node{
			ID:        c.ID,
			Label:     c.Label,
			FileCount: len(c.Files),
		}
		if opts.Summaries != nil {
			n.Summary = opts.Summaries[c.ID]
		}
		if opts.Detail {
			for _, f := range c.Files {
				n.Members = append(n.Members, Member{
					ID:    gen.GenerateForKey("file:"+f, path.Base(f)),
					Label: path.Base(f),
				})
			}
		}
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	// Aggregate file edges up to cluster edges.
	agg := make(map[[2]string]int)
	for _, e := range g.Edges {
		if e.From < 0 || e.From >= len(g.Paths) || e.To < 0 || e.To >= len(g.Paths) {
			continue
		}
		from, okF := clusterOf[g.Paths[e.From]]
		to, okT := clusterOf[g.Paths[e.To]]
		if !okF || !okT || from == to {
			continue
		}
		w := e.Weight
		if w <= 0 {
			w = 1
		}
		agg[[2]string{from, to}] += w
	}

	edges := make([]Edge, 0, len(agg))
	for k, w := range agg {
		edges = append(edges, Edge{From: k[0], To: k[1], Weight: w})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})

	return Spec{Title: title, Nodes: nodes, Edges: edges}, nil
}

func clusterIDs(layout organize.Layout) []string {
	ids := make([]string, 0, len(layout.Clusters))
	for _, c := range layout.Clusters {
		ids = append(ids, c.ID)
	}
	return ids
}
