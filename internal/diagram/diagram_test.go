package diagram

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"archmap/internal/depgraph"
	"archmap/internal/organize"
)

func fixtureLayout() (organize.Layout, depgraph.Graph) {
	g := depgraph.Graph{
		Repo:  "demo",
		Paths: []string{"api/a.go", "api/b.go", "store/s.go"},
		Edges: []depgraph.Edge{
			{From: 2, To: 0, Weight: 3}, // store/s.go -> api/a.go
			{From: 2, To: 1, Weight: 1}, // store/s.go -> api/b.go
			{From: 0, To: 1, Weight: 9}, // intra-cluster, must be dropped
		},
	}
	layout := organize.Layout{
		Repo: "demo",
		Clusters: []organize.Cluster{
			{ID: "api-1", Label: "api", Dir: "api", Files: []string{"api/a.go", "api/b.go"}},
			{ID: "store-1", Label: "store", Dir: "store", Files: []string{"store/s.go"}},
		},
	}
	return layout, g
}

func TestPrepareAggregatesClusterEdges(t *testing.T) {
	layout, g := fixtureLayout()
	spec, err := Prepare(layout, g, PrepareOptions{})
	require.NoError(t, err)

	require.Equal(t, "demo", spec.Title)
	require.Len(t, spec.Nodes, 2)
	require.Len(t, spec.Edges, 1, "intra-cluster edges must not surface")
	require.Equal(t, Edge{From: "store-1", To: "api-1", Weight: 4}, spec.Edges[0])
}

func TestPrepareDetailMembers(t *testing.T) {
	layout, g := fixtureLayout()
	spec, err := Prepare(layout, g, PrepareOptions{Detail: true})
	require.NoError(t, err)

	var api Node
	for _, n := range spec.Nodes {
		if n.ID == "api-1" {
			api = n
		}
	}
	require.Len(t, api.Members, 2)
	seen := map[string]bool{}
	for _, m := range api.Members {
		require.NotEmpty(t, m.ID)
		require.False(t, seen[m.ID], "member ids must be unique")
		seen[m.ID] = true
	}
}

func TestPrepareRejectsInvalidLayout(t *testing.T) {
	_, g := fixtureLayout()
	bad := organize.Layout{
		Repo: "demo",
		Clusters: []organize.Cluster{
			{ID: "x", Label: "x", Files: []string{"f.go"}},
			{ID: "x", Label: "x2", Files: []string{"g.go"}},
		},
	}
	_, err := Prepare(bad, g, PrepareOptions{})
	require.Error(t, err)
}

func TestPrepareSummaries(t *testing.T) {
	layout, g := fixtureLayout()
	spec, err := Prepare(layout, g, PrepareOptions{
		Summaries: map[string]string{"api-1": "HTTP surface"},
	})
	require.NoError(t, err)
	for _, n := range spec.Nodes {
		if n.ID == "api-1" {
			require.Equal(t, "HTTP surface", n.Summary)
		}
	}
}

func TestRenderFlowchartDeterministic(t *testing.T) {
	layout, g := fixtureLayout()
	spec, err := Prepare(layout, g, PrepareOptions{})
	require.NoError(t, err)

	one := RenderFlowchart(spec)
	two := RenderFlowchart(spec)
	require.Equal(t, one, two)

	require.True(t, strings.HasPrefix(one, "%%{init:"))
	require.Contains(t, one, "graph TD")
	require.Contains(t, one, "store-1 -- 4 --> api-1")
}

func TestRenderFlowchartEscapesQuotes(t *testing.T) {
	spec := Spec{
		Title: "q",
		Nodes: []Node{{ID: "n1", Label: `say "hi"`, FileCount: 1}},
	}
	out := RenderFlowchart(spec)
	require.NotContains(t, out, `say "hi"`)
	require.Contains(t, out, "say 'hi'")
}

func TestRenderFlowchartSubgraphs(t *testing.T) {
	spec := Spec{
		Nodes: []Node{{
			ID: "api-1", Label: "api", FileCount: 2,
			Members: []Member{{ID: "a-1", Label: "a.go"}, {ID: "b-1", Label: "b.go"}},
		}},
	}
	out := RenderFlowchart(spec)
	require.Contains(t, out, "subgraph api-1[\"api\"]")
	require.Contains(t, out, "a-1[\"a.go\"]")
	require.Contains(t, out, "end")
}

func TestRenderContainers(t *testing.T) {
	layout, g := fixtureLayout()
	spec, err := Prepare(layout, g, PrepareOptions{})
	require.NoError(t, err)

	out := RenderContainers(spec)
	require.Contains(t, out, "graph TB")
	require.Contains(t, out, "store-1 --> api-1")
	require.Contains(t, out, "style api-1")
}

func TestRenderUnknownFormat(t *testing.T) {
	_, err := Render(Spec{}, "svg")
	require.Error(t, err)
}
