// Package scc implements Tarjan's strongly-connected-components algorithm
// over a directed graph of arbitrary comparable nodes.
//
// This is the freeze-time algorithm behind the refcounted def graph:
// while mutable, a group of defs conservatively grows on every
// cross-node ("ref2") edge; freezing runs Tarjan's algorithm over those
// edges and splits the group into its precise SCCs, each of which becomes
// the smallest unit of collective reclamation. The algorithm itself is
// general enough to not need to know anything about defs.
package scc

import (
	"iter"
	"slices"

	"github.com/protocore/protocore/internal/debug"
)

// Graph is a "local" view of a directed graph: given a node, it yields that
// node's outgoing edges (its dependencies).
type Graph[Node any] func(Node) iter.Seq[Node]

// DAG is the strongly-connected-component condensation of some directed
// graph: a DAG whose nodes are SCCs of the original graph.
type DAG[Node comparable] struct {
	keys       map[Node]int
	components []Component[Node] // topologically sorted, dependencies first
}

// Component is one strongly-connected component: a maximal set of nodes
// each reachable from every other.
type Component[Node comparable] struct {
	index   int
	members []Node
	deps    []int
}

// Sort computes the SCC-DAG of the directed graph reachable from root.
func Sort[Node comparable](root Node, graph Graph[Node]) *DAG[Node] {
	out := &DAG[Node]{keys: make(map[Node]int)}
	t := &tarjan[Node]{
		graph:    graph,
		dag:      out,
		metadata: make(map[Node]*metadata),
		depset:   make(map[int]struct{}),
	}
	t.rec(root)
	return out
}

// ForNode returns the component containing node, or nil if node was not
// reached from the DAG's root.
func (d *DAG[Node]) ForNode(node Node) *Component[Node] {
	idx, ok := d.keys[node]
	if !ok {
		return nil
	}
	return &d.components[idx]
}

// Topological ranges over every component in dependency order (a
// component's dependencies are always yielded before the component
// itself).
func (d *DAG[Node]) Topological() iter.Seq[*Component[Node]] {
	return func(yield func(*Component[Node]) bool) {
		for i := range d.components {
			if !yield(&d.components[i]) {
				return
			}
		}
	}
}

// Members returns the nodes that make up this component.
func (c *Component[Node]) Members() []Node { return c.members }

// Index returns this component's position in topological order; components
// at a lower index never depend (even transitively) on components at a
// higher index.
func (c *Component[Node]) Index() int { return c.index }

// Deps ranges over the other components this one depends on.
func (c *Component[Node]) Deps(d *DAG[Node]) iter.Seq[*Component[Node]] {
	return func(yield func(*Component[Node]) bool) {
		for _, i := range c.deps {
			if !yield(&d.components[i]) {
				return
			}
		}
	}
}

// tarjan holds the recursion state for a single Sort call.
type tarjan[Node comparable] struct {
	graph Graph[Node]
	dag   *DAG[Node]

	index    int
	stack    []Node
	metadata map[Node]*metadata

	depset map[int]struct{} // reused scratch set for building Component.deps
}

type metadata struct {
	index, low int
	onStack    bool
}

// rec is the recursive step of Tarjan's algorithm, run depth-first from
// the root. See https://en.wikipedia.org/wiki/Tarjan%27s_strongly_connected_components_algorithm.
func (t *tarjan[Node]) rec(node Node) *metadata {
	meta := &metadata{index: t.index, low: t.index, onStack: true}
	debug.Log(nil, "scc.rec", "%v, index: %d", node, meta.index)

	t.metadata[node] = meta
	t.index++
	offset := len(t.stack)
	t.stack = append(t.stack, node)

	for dep := range t.graph(node) {
		m := t.metadata[dep]
		if m == nil {
			m = t.rec(dep)
			meta.low = min(meta.low, m.low)
			continue
		}
		if m.onStack {
			meta.low = min(meta.low, m.index)
		}
	}

	if meta.index == meta.low {
		c := Component[Node]{
			index:   len(t.dag.components),
			members: slices.Clone(t.stack[offset:]),
		}
		t.stack = t.stack[:offset]

		for _, n := range c.members {
			t.metadata[n].onStack = false
			t.dag.keys[n] = c.index

			for dep := range t.graph(n) {
				if depIdx, ok := t.dag.keys[dep]; ok && depIdx < c.index {
					t.depset[depIdx] = struct{}{}
				}
			}
		}

		c.deps = make([]int, 0, len(t.depset))
		for i := range t.depset {
			c.deps = append(c.deps, i)
		}
		slices.Sort(c.deps)
		clear(t.depset)

		t.dag.components = append(t.dag.components, c)
	}

	return meta
}
