package dag

import (
	"fmt"
	"unicode"
)

// Graph is the builder and store for a model graph. Calls chain:
//
//	g := dag.New().
//		Node(dag.NodeSpec{Descr: "Get Card", Label: "y", RHS: dag.Bernoulli(dag.Ref("theta")), Data: obs}).
//		Node(dag.NodeSpec{Descr: "Card Probability", Label: "theta", RHS: dag.Uniform(dag.Lit(0), dag.Lit(1)), Children: []string{"y"}})
//	if err := g.Err(); err != nil { ... }
//
// The first declaration error is recorded and returned by Err; the offending
// declaration is skipped and later calls still apply. References to labels
// that are not declared yet are allowed and checked at compile time.
//
// A Graph is not safe for concurrent mutation. Once built it is read-only
// and may be shared freely.
type Graph struct {
	nodes  []*Node
	edges  []Edge
	plates []*Plate

	nodeByLabel  map[string]*Node
	plateByLabel map[string]*Plate
	edgeSet      map[Edge]bool

	err error
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodeByLabel:  make(map[string]*Node),
		plateByLabel: make(map[string]*Plate),
		edgeSet:      make(map[Edge]bool),
	}
}

// Node declares a node. The label must be a valid identifier and unique
// among nodes and plates. Observed values are copied.
func (g *Graph) Node(spec NodeSpec) *Graph {
	if !validLabel(spec.Label) {
		g.record(fmt.Errorf("node label %q is not a valid identifier", spec.Label))
		return g
	}
	if _, ok := g.nodeByLabel[spec.Label]; ok {
		g.record(&DuplicateLabelError{Kind: "node", Label: spec.Label})
		return g
	}
	if _, ok := g.plateByLabel[spec.Label]; ok {
		g.record(&DuplicateLabelError{Kind: "node", Label: spec.Label})
		return g
	}
	n := &Node{
		Label: spec.Label,
		Descr: spec.Descr,
		RHS:   spec.RHS,
		decl:  len(g.nodes),
	}
	if spec.Data != nil {
		n.Data = append([]float64(nil), spec.Data...)
	}
	g.nodes = append(g.nodes, n)
	g.nodeByLabel[n.Label] = n
	for _, child := range spec.Children {
		g.addEdge(n.Label, child)
	}
	return g
}

// Edge declares a dependency from parent to child. Duplicate pairs are
// recorded once. Either endpoint may be declared later.
func (g *Graph) Edge(parent, child string) *Graph {
	if parent == "" || child == "" {
		g.record(fmt.Errorf("edge endpoints must be non-empty, got %q -> %q", parent, child))
		return g
	}
	g.addEdge(parent, child)
	return g
}

func (g *Graph) addEdge(parent, child string) {
	e := Edge{Parent: parent, Child: child}
	if g.edgeSet[e] {
		return
	}
	g.edgeSet[e] = true
	g.edges = append(g.edges, e)
}

// Plate declares a plate. The label must be a valid identifier, unique
// among plates and nodes, and the plate must name at least one member.
func (g *Graph) Plate(spec PlateSpec) *Graph {
	if !validLabel(spec.Label) {
		g.record(fmt.Errorf("plate label %q is not a valid identifier", spec.Label))
		return g
	}
	if _, ok := g.plateByLabel[spec.Label]; ok {
		g.record(&DuplicateLabelError{Kind: "plate", Label: spec.Label})
		return g
	}
	if _, ok := g.nodeByLabel[spec.Label]; ok {
		g.record(&DuplicateLabelError{Kind: "plate", Label: spec.Label})
		return g
	}
	if len(spec.Members) == 0 {
		g.record(fmt.Errorf("plate %q has no members", spec.Label))
		return g
	}
	if spec.AddDataNode && len(spec.Data) == 0 {
		g.record(fmt.Errorf("plate %q requests a data node but has no index data", spec.Label))
		return g
	}
	p := &Plate{
		Label:       spec.Label,
		Descr:       spec.Descr,
		Members:     append([]string(nil), spec.Members...),
		AddDataNode: spec.AddDataNode,
		decl:        len(g.plates),
	}
	if spec.Data != nil {
		p.Data = append([]string(nil), spec.Data...)
	}
	g.plates = append(g.plates, p)
	g.plateByLabel[p.Label] = p
	return g
}

// Err returns the first declaration error, or nil.
func (g *Graph) Err() error { return g.err }

func (g *Graph) record(err error) {
	if g.err == nil {
		g.err = err
	}
}

// Nodes returns the declared nodes in declaration order.
func (g *Graph) Nodes() []*Node {
	return append([]*Node(nil), g.nodes...)
}

// Edges returns the declared edges in declaration order.
func (g *Graph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// Plates returns the declared plates in declaration order.
func (g *Graph) Plates() []*Plate {
	return append([]*Plate(nil), g.plates...)
}

// NodeByLabel returns the node with the given label.
func (g *Graph) NodeByLabel(label string) (*Node, bool) {
	n, ok := g.nodeByLabel[label]
	return n, ok
}

// PlateByLabel returns the plate with the given label.
func (g *Graph) PlateByLabel(label string) (*Plate, bool) {
	p, ok := g.plateByLabel[label]
	return p, ok
}

func validLabel(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}
