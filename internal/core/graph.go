package core

import "sort"

// =============================================================================
// INTERMEDIATE GRAPH
// Owned by one transformation run. Immutable once handed to the validator
// and exporter, except for annotations added by validation.
// =============================================================================

// PropertyWrite records one write to a node property, for provenance.
type PropertyWrite struct {
	Row   int    // original source row index
	Rule  string // mapping rule that performed the write
	Value any
}

// GraphNode is a typed node of the intermediate graph.
type GraphNode struct {
	// ID is a canonical identifier or a locally generated one. Unique within
	// a graph snapshot.
	ID string
	// Type is the intermediate-model class (Biolink class name).
	Type       string
	Properties map[string]any
	// Resolution carries the identifier resolution outcome for nodes keyed by
	// a normalized identifier. Nil for locally identified nodes.
	Resolution *CanonicalIdentifier
	// Provenance maps property name to the ordered trail of writes; the last
	// entry is the winning write.
	Provenance map[string][]PropertyWrite
	// Annotations carries validator-added markers. The only mutation allowed
	// after the build completes.
	Annotations map[string]any
}

// GraphEdge connects two nodes of the same graph snapshot by predicate.
type GraphEdge struct {
	SubjectID  string
	Predicate  string
	ObjectID   string
	Properties map[string]any
	// Row is the source row index the edge was materialized from.
	Row int
}

// Key returns a stable identity for the edge.
func (e *GraphEdge) Key() string {
	return e.SubjectID + "|" + e.Predicate + "|" + e.ObjectID
}

// Graph is the intermediate node/edge graph for one transformation run.
type Graph struct {
	// RunID identifies the transformation run that produced the graph.
	RunID string
	// RootType is the mapping config's declared root entity type.
	RootType string

	nodes map[string]*GraphNode
	edges []*GraphEdge
}

// NewGraph creates an empty graph snapshot.
func NewGraph(runID, rootType string) *Graph {
	return &Graph{
		RunID:    runID,
		RootType: rootType,
		nodes:    make(map[string]*GraphNode),
	}
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *GraphNode {
	return g.nodes[id]
}

// PutNode inserts or replaces a node. Merge policy is the builder's concern;
// the graph only enforces id uniqueness by construction.
func (g *Graph) PutNode(n *GraphNode) {
	g.nodes[n.ID] = n
}

// AddEdge appends an edge in insertion order.
func (g *Graph) AddEdge(e *GraphEdge) {
	g.edges = append(g.edges, e)
}

// NodeCount returns the number of nodes in the snapshot.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges in the snapshot.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Nodes returns all nodes sorted by id. The stable order backs byte-identical
// re-export of unchanged input.
func (g *Graph) Nodes() []*GraphNode {
	out := make([]*GraphNode, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Edges returns edges in insertion order.
func (g *Graph) Edges() []*GraphEdge {
	return g.edges
}

// DanglingEdges returns every edge referencing a node id absent from the
// snapshot. The builder turns a non-empty result into a fatal build error.
func (g *Graph) DanglingEdges() []*GraphEdge {
	var out []*GraphEdge
	for _, e := range g.edges {
		if _, ok := g.nodes[e.SubjectID]; !ok {
			out = append(out, e)
			continue
		}
		if _, ok := g.nodes[e.ObjectID]; !ok {
			out = append(out, e)
		}
	}
	return out
}
