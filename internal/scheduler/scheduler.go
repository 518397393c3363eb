// Package scheduler executes DAG nodes in weight-capped batches. Nodes that
// unblock the most downstream work launch first, so long dependency chains
// start draining before wide cheap fan-outs fill the budget.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// WeightFn reports the cost of a node. The scheduler calls it repeatedly;
// callers with expensive lookups should memoize.
type WeightFn func(node int) int

// ChunkRunner starts one batch and returns a channel that is closed when the
// batch has finished.
type ChunkRunner func(ctx context.Context, chunk []int) (<-chan struct{}, error)

// Permits decides how many broker permits a batch claims. Returning <= 0
// skips reservation for that batch.
type Permits func(chunk []int) int

// Plan is one scheduling problem over a DAG.
type Plan struct {
	// Adj is the adjacency list; an edge u->v means u must finish before v.
	Adj [][]int
	// Weight costs each node. No single node may exceed ChunkCap.
	Weight WeightFn
	// Targets are the nodes that must complete; ancestors run as needed,
	// everything else is skipped.
	Targets map[int]struct{}
	// ChunkCap bounds the total weight of one batch.
	ChunkCap int
	// MaxInFlight bounds concurrent batches (values < 1 mean 1).
	MaxInFlight int
	// Exec runs a batch.
	Exec ChunkRunner

	// Broker and Permits, when both set, gate each batch launch on permit
	// reservation. The scheduler releases the lease when the batch finishes.
	Broker  PermitBroker
	Permits Permits
}

// Run executes the plan and returns once every target has completed. It
// errors on a cyclic graph, on a node heavier than ChunkCap, and on the first
// Exec or reservation failure.
func Run(ctx context.Context, p Plan) error {
	if p.Exec == nil {
		return errors.New("scheduler: plan has no Exec")
	}
	if p.Weight == nil {
		return errors.New("scheduler: plan has no Weight")
	}
	if p.ChunkCap <= 0 {
		return errors.New("scheduler: ChunkCap must be positive")
	}
	maxInFlight := p.MaxInFlight
	if maxInFlight < 1 {
		maxInFlight = 1
	}

	n := len(p.Adj)
	impact, err := transitiveDependents(p.Adj)
	if err != nil {
		return err
	}
	needed := ancestorsOf(p.Adj, p.Targets)

	indeg := make([]int, n)
	for _, succs := range p.Adj {
		for _, v := range succs {
			indeg[v]++
		}
	}

	ready := make(map[int]bool, n)
	for u := 0; u < n; u++ {
		if indeg[u] == 0 && needed[u] {
			ready[u] = true
		}
	}
	done := make([]bool, n)
	pendingTargets := 0
	for t := range p.Targets {
		if t >= 0 && t < n {
			pendingTargets++
		}
	}

	type finished struct {
		nodes []int
		lease Lease
	}
	finishedCh := make(chan finished, n+1)
	inFlight := 0

	launch := func() error {
		for inFlight < maxInFlight && len(ready) > 0 {
			chunk := packChunk(p, ready, indeg, needed, done, impact)
			if len(chunk) == 0 {
				// Nothing fits an empty budget: some ready node is too heavy.
				for u := range ready {
					if w := p.Weight(u); w > p.ChunkCap {
						return fmt.Errorf("scheduler: node %d weight %d exceeds chunk capacity %d", u, w, p.ChunkCap)
					}
				}
				return nil
			}
			for _, u := range chunk {
				delete(ready, u)
			}

			runCtx := ctx
			var lease Lease
			if p.Broker != nil && p.Permits != nil {
				if want := p.Permits(chunk); want > 0 {
					l, err := p.Broker.Reserve(ctx, want)
					if err != nil {
						return err
					}
					lease = l
					runCtx = lease.Context(runCtx)
				}
			}

			doneCh, err := p.Exec(runCtx, chunk)
			if err != nil {
				if lease != nil {
					lease.Release()
				}
				return err
			}
			inFlight++
			go func(nodes []int, l Lease, ch <-chan struct{}) {
				select {
				case <-ctx.Done():
				case <-ch:
					finishedCh <- finished{nodes: nodes, lease: l}
				}
			}(append([]int(nil), chunk...), lease, doneCh)
		}
		return nil
	}

	if err := launch(); err != nil {
		return err
	}

	for pendingTargets > 0 {
		if inFlight == 0 {
			return errors.New("scheduler: stalled with pending targets and nothing in flight")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f := <-finishedCh:
			inFlight--
			if f.lease != nil {
				f.lease.Release()
			}
			for _, u := range f.nodes {
				if done[u] {
					continue
				}
				done[u] = true
				if _, isTarget := p.Targets[u]; isTarget {
					pendingTargets--
				}
				for _, v := range p.Adj[u] {
					indeg[v]--
					if indeg[v] == 0 && needed[v] && !done[v] {
						ready[v] = true
					}
				}
			}
			if err := launch(); err != nil {
				return err
			}
		}
	}
	return nil
}

// packChunk greedily fills one batch. The open candidate with the most
// transitive dependents goes first (lighter weight, then lower id on ties),
// and every admission may unlock direct dependents into the same batch, so a
// chain can ship as a single unit.
func packChunk(p Plan, ready map[int]bool, indeg []int, needed []bool, done []bool, impact []int) []int {
	sim := append([]int(nil), indeg...)
	open := make([]int, 0, len(ready))
	for u := range ready {
		open = append(open, u)
	}
	inBatch := make(map[int]bool, len(open))

	var chunk []int
	budget := p.ChunkCap
	for len(open) > 0 {
		sort.Slice(open, func(i, j int) bool {
			a, b := open[i], open[j]
			if impact[a] != impact[b] {
				return impact[a] > impact[b]
			}
			if wa, wb := p.Weight(a), p.Weight(b); wa != wb {
				return wa < wb
			}
			return a < b
		})

		picked := -1
		for i, u := range open {
			if p.Weight(u) <= budget {
				picked = i
				break
			}
		}
		if picked < 0 {
			break
		}
		u := open[picked]
		open = append(open[:picked], open[picked+1:]...)
		inBatch[u] = true
		chunk = append(chunk, u)
		budget -= p.Weight(u)

		for _, v := range p.Adj[u] {
			sim[v]--
			if sim[v] == 0 && needed[v] && !done[v] && !inBatch[v] {
				open = append(open, v)
			}
		}
	}
	return chunk
}

// topoOrder returns a topological order, or an error when the graph cycles.
func topoOrder(adj [][]int) ([]int, error) {
	n := len(adj)
	indeg := make([]int, n)
	for _, succs := range adj {
		for _, v := range succs {
			indeg[v]++
		}
	}
	order := make([]int, 0, n)
	for u := 0; u < n; u++ {
		if indeg[u] == 0 {
			order = append(order, u)
		}
	}
	for i := 0; i < len(order); i++ {
		for _, v := range adj[order[i]] {
			indeg[v]--
			if indeg[v] == 0 {
				order = append(order, v)
			}
		}
	}
	if len(order) != n {
		return nil, errors.New("scheduler: dependency graph has a cycle")
	}
	return order, nil
}

// transitiveDependents counts, per node, the distinct nodes reachable from it.
// Reachability sets are unioned in reverse topological order.
func transitiveDependents(adj [][]int) ([]int, error) {
	n := len(adj)
	order, err := topoOrder(adj)
	if err != nil {
		return nil, err
	}
	reach := make([]map[int]struct{}, n)
	counts := make([]int, n)
	for i := n - 1; i >= 0; i-- {
		v := order[i]
		set := make(map[int]struct{})
		for _, u := range adj[v] {
			set[u] = struct{}{}
			for w := range reach[u] {
				set[w] = struct{}{}
			}
		}
		reach[v] = set
		counts[v] = len(set)
	}
	return counts, nil
}

// ancestorsOf marks each target plus everything a target transitively needs.
func ancestorsOf(adj [][]int, targets map[int]struct{}) []bool {
	n := len(adj)
	preds := make([][]int, n)
	for u, succs := range adj {
		for _, v := range succs {
			preds[v] = append(preds[v], u)
		}
	}
	needed := make([]bool, n)
	stack := make([]int, 0, len(targets))
	for t := range targets {
		if t >= 0 && t < n && !needed[t] {
			needed[t] = true
			stack = append(stack, t)
		}
	}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, u := range preds[v] {
			if !needed[u] {
				needed[u] = true
				stack = append(stack, u)
			}
		}
	}
	return needed
}
