// Package dag provides the declarative graph builder for causact models.
//
// A model is described as a directed acyclic graph. Nodes are random
// variables or deterministic quantities, edges record which parents feed a
// node, and plates mark repeated structure over an index. The builder
// records declarations exactly as they are made; plate sizes, index scopes
// and emission order are derived later by the model package.
package dag

// Node is a single random variable or deterministic quantity.
type Node struct {
	// Label uniquely identifies the node and is the name other nodes use
	// to reference it in right-hand-side expressions.
	Label string
	// Descr is the human description shown on rendered diagrams.
	Descr string
	// RHS is the node's distribution or formula. It is nil for data-only
	// nodes that merely carry observed values.
	RHS Expr
	// Data holds observed values. A nil slice marks the node latent.
	Data []float64

	decl int
}

// Observed reports whether the node carries data.
func (n *Node) Observed() bool { return n.Data != nil }

// Edge is a directed dependency from a parent node to a child node.
type Edge struct {
	Parent string
	Child  string
}

// Plate declares repeated structure over an index. Member nodes are
// replicated once per index level.
type Plate struct {
	// Label is the short index label, e.g. "x". It doubles as the name of
	// the synthesized index node when AddDataNode is set.
	Label string
	// Descr is the human description shown on rendered diagrams.
	Descr string
	// Members lists the labels of the nodes the plate repeats.
	Members []string
	// Data is the raw index vector. Its distinct values, in order of first
	// appearance, become the plate's levels. When empty the plate size is
	// inferred from a single observed member.
	Data []string
	// AddDataNode asks the compiler to materialize the index vector as an
	// observed node so that members can be selected per observation.
	AddDataNode bool

	decl int
}

// NodeSpec describes one node declaration.
type NodeSpec struct {
	Descr string
	Label string
	RHS   Expr
	Data  []float64
	// Children adds an edge from this node to each listed label. The
	// children do not need to be declared yet.
	Children []string
}

// PlateSpec describes one plate declaration.
type PlateSpec struct {
	Descr       string
	Label       string
	Members     []string
	Data        []string
	AddDataNode bool
}
