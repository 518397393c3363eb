package depgraph

import (
	"container/heap"
	"sort"
)

// Edge is a weighted directed edge between two files (by node id).
type Edge struct {
	From   int `json:"from"`
	To     int `json:"to"`
	Weight int `json:"weight"`
}

// Graph is a file dependency DAG with normalized integer node ids.
// Nodes are sorted by path so ids are stable for a given file set.
type Graph struct {
	Repo      string   `json:"repo"`
	Paths     []string `json:"paths"`
	Adjacency [][]int  `json:"adjacency"`
	Edges     []Edge   `json:"edges"`
}

// Build constructs a directed dependency graph from inferred references.
// Bidirectional pairs are collapsed keeping the heavier direction (path order
// as tie-break), and remaining cycles are broken so the result is a DAG.
func Build(in DepSet) Graph {
	pathSet := make(map[string]struct{})
	for _, fd := range in.Files {
		if fd.Path != "" {
			pathSet[fd.Path] = struct{}{}
		}
		for _, req := range fd.Requires {
			if req.Path != "" {
				pathSet[req.Path] = struct{}{}
			}
		}
	}

	paths := make([]string, 0, len(pathSet))
	for p := range pathSet {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	idByPath := make(map[string]int, len(paths))
	for i, p := range paths {
		idByPath[p] = i
	}

	// An edge dep -> file means "dep must be understood before file".
	weights := make(map[int]map[int]int)
	addEdge := func(from, to, w int) {
		if from == to {
			return
		}
		if weights[from] == nil {
			weights[from] = make(map[int]int)
		}
		weights[from][to] += w
	}
	for _, fd := range in.Files {
		fileID := idByPath[fd.Path]
		for _, req := range fd.Requires {
			w := req.Count
			if w <= 0 {
				w = 1
			}
			addEdge(idByPath[req.Path], fileID, w)
		}
	}

	// Collapse bidirectional pairs keeping the heavier direction.
	for from, tos := range weights {
		for to, w := range tos {
			back, ok := weights[to][from]
			if !ok {
				continue
			}
			if back > w || (back == w && paths[to] < paths[from]) {
				delete(weights[from], to)
			} else {
				delete(weights[to], from)
			}
		}
	}

	adjMaps := make([]map[int]struct{}, len(paths))
	for from, tos := range weights {
		for to := range tos {
			if adjMaps[from] == nil {
				adjMaps[from] = make(map[int]struct{})
			}
			adjMaps[from][to] = struct{}{}
		}
	}

	breakCycles(adjMaps)

	adjacency := make([][]int, len(paths))
	var edges []Edge
	for from, m := range adjMaps {
		for to := range m {
			adjacency[from] = append(adjacency[from], to)
			edges = append(edges, Edge{From: from, To: to, Weight: weights[from][to]})
		}
		sort.Ints(adjacency[from])
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})

	return Graph{
		Repo:      in.Repo,
		Paths:     paths,
		Adjacency: adjacency,
		Edges:     edges,
	}
}

// breakCycles removes edges so the adjacency map encodes a DAG.
// Nodes are peeled in topological order; when the frontier stalls, the
// smallest remaining node has its incoming edges cut.
func breakCycles(adj []map[int]struct{}) {
	n := len(adj)
	if n == 0 {
		return
	}

	indeg := make([]int, n)
	reverse := make([]map[int]struct{}, n)
	for from := range adj {
		for to := range adj[from] {
			indeg[to]++
			if reverse[to] == nil {
				reverse[to] = make(map[int]struct{})
			}
			reverse[to][from] = struct{}{}
		}
	}

	remain := make(map[int]struct{}, n)
	for i := 0; i < n; i++ {
		remain[i] = struct{}{}
	}

	h := &intHeap{}
	heap.Init(h)
	for i := 0; i < n; i++ {
		if indeg[i] == 0 {
			heap.Push(h, i)
		}
	}

	for len(remain) > 0 {
		var curr int
		if h.Len() > 0 {
			curr = heap.Pop(h).(int)
		} else {
			curr = smallestIndex(remain)
			removeIncomingEdges(curr, adj, reverse, indeg)
			heap.Push(h, curr)
			continue
		}
		if _, ok := remain[curr]; !ok {
			continue
		}
		delete(remain, curr)
		for to := range adj[curr] {
			if reverse[to] != nil {
				delete(reverse[to], curr)
			}
			if indeg[to] > 0 {
				indeg[to]--
				if indeg[to] == 0 {
					heap.Push(h, to)
				}
			}
		}
	}
}

func removeIncomingEdges(node int, adj []map[int]struct{}, reverse []map[int]struct{}, indeg []int) {
	if node < 0 || node >= len(adj) {
		return
	}
	preds := make([]int, 0, len(reverse[node]))
	for p := range reverse[node] {
		preds = append(preds, p)
	}
	sort.Ints(preds)
	for _, pred := range preds {
		if adj[pred] != nil {
			delete(adj[pred], node)
		}
		delete(reverse[node], pred)
		if indeg[node] > 0 {
			indeg[node]--
		}
	}
	indeg[node] = 0
}

func smallestIndex(m map[int]struct{}) int {
	var smallest int
	first := true
	for k := range m {
		if first || k < smallest {
			smallest = k
			first = false
		}
	}
	return smallest
}

type intHeap []int

func (h intHeap) Len() int           { return len(h) }
func (h intHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *intHeap) Push(x any) {
	*h = append(*h, x.(int))
}

func (h *intHeap) Pop() any {
	old := *h
	n := len(old)
	if n == 0 {
		return 0
	}
	x := old[n-1]
	*h = old[:n-1]
	return x
}
