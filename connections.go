package dependr

import (
	"sort"
)

// Edge is a weighted, directed connection between two application groups.
type Edge struct {
	Source string
	Target string
	Weight int
}

// ConnectionOptions tunes BuildConnections.
type ConnectionOptions struct {
	// KeepSelfLoops keeps flows whose source and destination fall in the
	// same application group. They are dropped by default.
	KeepSelfLoops bool
}

// Connections is the application group traffic graph: for every
// (source group, destination group) pair the number of flows observed.
type Connections struct {
	counts  map[string]map[string]int
	dropped int
	edges   []Edge
}

// NewConnections returns an empty graph.
func NewConnections() *Connections {
	return &Connections{counts: map[string]map[string]int{}}
}

// BuildConnections groups rows by source and destination app group and counts
// the flows in each group.
func BuildConnections(rows []Row, opts ConnectionOptions) *Connections {
	c := NewConnections()
	for i := range rows {
		src := rows[i].AppGroup(SideSrc)
		dst := rows[i].AppGroup(SideDst)
		if src == dst && !opts.KeepSelfLoops {
			c.dropped++
			continue
		}
		c.Add(src, dst, 1)
	}
	return c
}

// Add increments the weight of source -> target by n.
func (c *Connections) Add(source, target string, n int) {
	dsts, ok := c.counts[source]
	if !ok {
		dsts = map[string]int{}
		c.counts[source] = dsts
	}
	dsts[target] += n
	c.edges = nil
}

// Edges returns all edges ordered by descending weight, then source, then
// target.
func (c *Connections) Edges() []Edge {
	if c.edges != nil {
		return c.edges
	}
	edges := make([]Edge, 0, len(c.counts))
	for src, dsts := range c.counts {
		for dst, n := range dsts {
			edges = append(edges, Edge{Source: src, Target: dst, Weight: n})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Weight != edges[j].Weight {
			return edges[i].Weight > edges[j].Weight
		}
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})
	c.edges = edges
	return edges
}

// Nodes returns every group that appears in an edge, in first-seen order over
// Edges.
func (c *Connections) Nodes() []string {
	var nodes []string
	for _, e := range c.Edges() {
		nodes = append(nodes, e.Source, e.Target)
	}
	return dedupeString(nodes)
}

// Index returns the position of node in Nodes.
func (c *Connections) Index(node string) (int, bool) {
	for i, n := range c.Nodes() {
		if n == node {
			return i, true
		}
	}
	return -1, false
}

// Weight returns the number of flows from source to target.
func (c *Connections) Weight(source, target string) int {
	return c.counts[source][target]
}

// Len returns the number of edges.
func (c *Connections) Len() int {
	return len(c.Edges())
}

// Total returns the sum of all edge weights.
func (c *Connections) Total() (total int) {
	for _, e := range c.Edges() {
		total += e.Weight
	}
	return total
}

// Dropped returns how many rows BuildConnections skipped as self loops.
func (c *Connections) Dropped() int {
	return c.dropped
}

// Outflow sums edge weights per source node.
func (c *Connections) Outflow() map[string]int {
	out := map[string]int{}
	for _, e := range c.Edges() {
		out[e.Source] += e.Weight
	}
	return out
}

// Inflow sums edge weights per target node.
func (c *Connections) Inflow() map[string]int {
	in := map[string]int{}
	for _, e := range c.Edges() {
		in[e.Target] += e.Weight
	}
	return in
}

// Tree nests targets under their sources, for hierarchical views.
func (c *Connections) Tree(title string) *Tree {
	b := newTreeBuilder(title)
	for _, e := range c.Edges() {
		b.add(e.Weight, e.Source, e.Target)
	}
	return b.build()
}
