// Package render draws model graphs as Graphviz DOT diagrams.
package render

import (
	"fmt"
	"strings"

	"github.com/vishalbelsare/causact/dag"
)

// Options control diagram content.
type Options struct {
	// ShortLabel renders node labels only, dropping descriptions and
	// right-hand sides.
	ShortLabel bool
}

// DOT renders the graph as a Graphviz digraph. Observed nodes are filled,
// latent nodes hollow. Each plate becomes a cluster; a plate whose member
// set is a strict subset of another's nests inside it, and a node belonging
// to several plates is drawn in the innermost one. Arrows cover declared
// edges plus every right-hand-side reference. Edges and plate members
// naming undeclared labels are skipped. Output is deterministic for a
// given graph.
func DOT(g *dag.Graph, opts Options) (string, error) {
	if err := g.Err(); err != nil {
		return "", err
	}
	r := &dotRender{g: g, opts: opts, nodes: g.Nodes(), plates: g.Plates()}
	return r.render(), nil
}

type dotRender struct {
	g    *dag.Graph
	opts Options

	nodes  []*dag.Node
	plates []*dag.Plate

	members []map[string]bool // per plate, members that exist as nodes
	owner   map[string]int    // node label -> innermost plate, -1 if none
	parent  []int             // per plate, enclosing plate or -1
}

func (r *dotRender) render() string {
	r.resolve()

	var b strings.Builder
	b.WriteString("digraph causact {\n")
	for _, n := range r.nodes {
		if r.owner[n.Label] == -1 {
			b.WriteString("  " + r.nodeLine(n) + "\n")
		}
	}
	for i := range r.plates {
		if r.parent[i] == -1 {
			r.cluster(&b, i, "  ")
		}
	}
	for _, e := range r.edges() {
		fmt.Fprintf(&b, "  %s -> %s;\n", quote(e.Parent), quote(e.Child))
	}
	b.WriteString("}\n")
	return b.String()
}

// resolve assigns each node to its innermost plate and each plate to its
// enclosing one. Innermost means the smallest member set; ties keep the
// first declared plate. Crossed plates, where neither member set contains
// the other, stay siblings.
func (r *dotRender) resolve() {
	r.members = make([]map[string]bool, len(r.plates))
	for i, p := range r.plates {
		set := make(map[string]bool, len(p.Members))
		for _, m := range p.Members {
			if _, ok := r.g.NodeByLabel(m); ok {
				set[m] = true
			}
		}
		r.members[i] = set
	}

	r.owner = make(map[string]int, len(r.nodes))
	for _, n := range r.nodes {
		r.owner[n.Label] = -1
		for i := range r.plates {
			if !r.members[i][n.Label] {
				continue
			}
			if cur := r.owner[n.Label]; cur == -1 || len(r.members[i]) < len(r.members[cur]) {
				r.owner[n.Label] = i
			}
		}
	}

	r.parent = make([]int, len(r.plates))
	for i := range r.plates {
		r.parent[i] = -1
		for j := range r.plates {
			if i == j || !strictSubset(r.members[i], r.members[j]) {
				continue
			}
			if cur := r.parent[i]; cur == -1 || len(r.members[j]) < len(r.members[cur]) {
				r.parent[i] = j
			}
		}
	}
}

func strictSubset(a, b map[string]bool) bool {
	if len(a) >= len(b) {
		return false
	}
	for m := range a {
		if !b[m] {
			return false
		}
	}
	return true
}

func (r *dotRender) cluster(b *strings.Builder, i int, indent string) {
	p := r.plates[i]
	fmt.Fprintf(b, "%ssubgraph cluster_%d {\n", indent, i)
	fmt.Fprintf(b, "%s  label=%s;\n", indent, quote(caption(p)))
	for _, n := range r.nodes {
		if r.owner[n.Label] == i {
			b.WriteString(indent + "  " + r.nodeLine(n) + "\n")
		}
	}
	for j := range r.plates {
		if r.parent[j] == i {
			r.cluster(b, j, indent+"  ")
		}
	}
	b.WriteString(indent + "}\n")
}

func caption(p *dag.Plate) string {
	if p.Descr == "" {
		return "[" + p.Label + "]"
	}
	return p.Descr + " [" + p.Label + "]"
}

func (r *dotRender) nodeLine(n *dag.Node) string {
	var lines []string
	if !r.opts.ShortLabel && n.Descr != "" {
		lines = append(lines, n.Descr)
	}
	lines = append(lines, r.title(n))
	attrs := "label=" + quoteLines(lines)
	if n.Observed() {
		attrs += `, style=filled, fillcolor="gray80"`
	}
	return quote(n.Label) + " [" + attrs + "];"
}

// title is the node's bottom label line: "label ~ dist" for stochastic
// nodes, "label = formula" for deterministic ones, the bare label otherwise.
func (r *dotRender) title(n *dag.Node) string {
	if r.opts.ShortLabel || n.RHS == nil {
		return n.Label
	}
	if call, ok := n.RHS.(*dag.CallExpr); ok && dag.IsDistribution(call.Name) {
		return n.Label + " ~ " + call.String()
	}
	return n.Label + " = " + n.RHS.String()
}

// edges merges declared edges with right-hand-side references, deduped, in
// declaration order. Pairs with an undeclared endpoint are dropped.
func (r *dotRender) edges() []dag.Edge {
	seen := make(map[dag.Edge]bool)
	var out []dag.Edge
	add := func(parent, child string) {
		e := dag.Edge{Parent: parent, Child: child}
		if seen[e] {
			return
		}
		seen[e] = true
		if _, ok := r.g.NodeByLabel(parent); !ok {
			return
		}
		if _, ok := r.g.NodeByLabel(child); !ok {
			return
		}
		out = append(out, e)
	}
	for _, e := range r.g.Edges() {
		add(e.Parent, e.Child)
	}
	for _, n := range r.nodes {
		if n.RHS == nil {
			continue
		}
		for _, ref := range dag.Refs(n.RHS) {
			add(ref, n.Label)
		}
	}
	return out
}

func quote(s string) string {
	return `"` + escape(s) + `"`
}

func quoteLines(lines []string) string {
	escaped := make([]string, len(lines))
	for i, l := range lines {
		escaped[i] = escape(l)
	}
	return `"` + strings.Join(escaped, `\n`) + `"`
}

func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
