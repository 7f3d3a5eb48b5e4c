package model

import (
	"fmt"
	"math"
	"strconv"

	"github.com/vishalbelsare/causact/dag"
)

// Compile resolves and orders a graph with default options.
func Compile(g *dag.Graph) (*Model, error) {
	return CompileWithOptions(g, Options{})
}

// CompileWithOptions resolves and orders a graph. The graph is only read;
// the returned model shares nothing with it that could be mutated through
// either value.
//
// Validation runs before anything is emitted: label collisions, dangling
// references and missing distributions fail first, then plate sizes are
// resolved, scopes assigned, dependencies ordered and references rewritten.
func CompileWithOptions(g *dag.Graph, opts Options) (*Model, error) {
	if err := g.Err(); err != nil {
		return nil, err
	}
	c := newCompiler(g, opts)
	steps := []func() error{
		c.checkLabels,
		c.checkReferences,
		c.classify,
		c.resolvePlates,
		c.assignScopes,
		c.checkShapes,
		c.buildDeps,
		c.sortNodes,
		c.rewrite,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return c.finish()
}

type compiler struct {
	opts Options

	nodes   []*nodeView
	byLabel map[string]*nodeView
	plates  []*plateView
	edges   []dag.Edge

	// parents holds the dependency relation: declared edges, RHS
	// references and synthesized index wiring. parentsOf keeps insertion
	// order for deterministic traversal, parentSet backs membership tests.
	parentsOf map[string][]string
	parentSet map[string]map[string]bool

	order []string
}

type nodeView struct {
	label string
	descr string
	rhs   dag.Expr
	data  []float64
	kind  StatementKind
	scope []string
	// indexOf names the plate this node indexes when synthesized.
	indexOf string
	// out is the rewritten RHS.
	out dag.Expr
}

type plateView struct {
	label     string
	descr     string
	members   []string
	memberSet map[string]bool
	data      []string
	addData   bool

	levels   []string
	inferred bool
	dataNode string
}

func newCompiler(g *dag.Graph, opts Options) *compiler {
	c := &compiler{
		opts:      opts,
		byLabel:   make(map[string]*nodeView),
		edges:     g.Edges(),
		parentsOf: make(map[string][]string),
		parentSet: make(map[string]map[string]bool),
	}
	for _, n := range g.Nodes() {
		nv := &nodeView{label: n.Label, descr: n.Descr, rhs: n.RHS, data: n.Data}
		c.nodes = append(c.nodes, nv)
		c.byLabel[nv.label] = nv
	}
	for _, p := range g.Plates() {
		pv := &plateView{
			label:     p.Label,
			descr:     p.Descr,
			members:   append([]string(nil), p.Members...),
			memberSet: make(map[string]bool, len(p.Members)),
			data:      p.Data,
			addData:   p.AddDataNode,
		}
		for _, m := range pv.members {
			pv.memberSet[m] = true
		}
		c.plates = append(c.plates, pv)
	}
	return c
}

// checkLabels re-validates label uniqueness across nodes and plates. The
// builder enforces this too; compilation does not trust its input.
func (c *compiler) checkLabels() error {
	seen := make(map[string]bool, len(c.nodes))
	for _, n := range c.nodes {
		if seen[n.label] {
			return &dag.DuplicateLabelError{Kind: "node", Label: n.label}
		}
		seen[n.label] = true
	}
	for _, p := range c.plates {
		if seen[p.label] {
			return &dag.DuplicateLabelError{Kind: "plate", Label: p.label}
		}
		seen[p.label] = true
	}
	return nil
}

func (c *compiler) checkReferences() error {
	for _, e := range c.edges {
		if _, ok := c.byLabel[e.Parent]; !ok {
			return &dag.UndefinedParentError{Parent: e.Parent, Node: e.Child}
		}
		if _, ok := c.byLabel[e.Child]; !ok {
			return &dag.UndefinedParentError{Parent: e.Child, Node: e.Parent}
		}
	}
	for _, n := range c.nodes {
		if containsIndexed(n.rhs) {
			return fmt.Errorf("node %q: subscripts are assigned during compilation and cannot be written directly", n.label)
		}
		for _, ref := range dag.Refs(n.rhs) {
			if _, ok := c.byLabel[ref]; !ok {
				return &dag.UndefinedParentError{Parent: ref, Node: n.label}
			}
		}
	}
	for _, p := range c.plates {
		for _, m := range p.members {
			if _, ok := c.byLabel[m]; !ok {
				return &dag.UndefinedParentError{Parent: m, Node: "plate " + p.label}
			}
		}
	}
	return nil
}

func containsIndexed(e dag.Expr) bool {
	switch v := e.(type) {
	case *dag.IndexedExpr:
		return true
	case *dag.CallExpr:
		for _, a := range v.Args {
			if containsIndexed(a) {
				return true
			}
		}
	case *dag.BinaryExpr:
		return containsIndexed(v.X) || containsIndexed(v.Y)
	case *dag.NegExpr:
		return containsIndexed(v.X)
	}
	return false
}

func (c *compiler) classify() error {
	for _, n := range c.nodes {
		for i, v := range n.data {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("node %q observation %d is not finite", n.label, i)
			}
		}
		observed := n.data != nil
		switch {
		case observed && n.rhs == nil:
			n.kind = StmtData
		case observed && isDistCall(n.rhs):
			n.kind = StmtLikelihood
		case observed:
			return fmt.Errorf("node %q mixes observed data with a formula; observed nodes need a distribution", n.label)
		case n.rhs == nil:
			return &dag.MissingRHSError{Node: n.label}
		case isDistCall(n.rhs):
			n.kind = StmtPrior
		default:
			n.kind = StmtDeterministic
		}
		if err := checkDistPlacement(n); err != nil {
			return err
		}
	}
	return nil
}

func isDistCall(e dag.Expr) bool {
	call, ok := e.(*dag.CallExpr)
	return ok && dag.IsDistribution(call.Name)
}

// checkDistPlacement rejects distributions buried inside expressions; a
// distribution is only meaningful as a node's outermost call.
func checkDistPlacement(n *nodeView) error {
	if n.rhs == nil {
		return nil
	}
	inner := []dag.Expr{n.rhs}
	if call, ok := n.rhs.(*dag.CallExpr); ok && dag.IsDistribution(call.Name) {
		inner = call.Args
	}
	for _, e := range inner {
		if hasDistCall(e) {
			return fmt.Errorf("node %q nests a distribution inside an expression", n.label)
		}
	}
	return nil
}

func hasDistCall(e dag.Expr) bool {
	switch v := e.(type) {
	case *dag.CallExpr:
		if dag.IsDistribution(v.Name) {
			return true
		}
		for _, a := range v.Args {
			if hasDistCall(a) {
				return true
			}
		}
	case *dag.BinaryExpr:
		return hasDistCall(v.X) || hasDistCall(v.Y)
	case *dag.NegExpr:
		return hasDistCall(v.X)
	}
	return false
}

// resolvePlates fixes each plate's levels. Explicit index data wins; its
// distinct values in order of first appearance become the levels. Without
// index data the plate spans exactly one observed member and gets anonymous
// levels "1".."N". Plates that request a data node get a synthesized
// observed node holding the 0-based level position of every index value.
func (c *compiler) resolvePlates() error {
	for _, p := range c.plates {
		if len(p.data) > 0 {
			seen := make(map[string]bool, len(p.data))
			for _, v := range p.data {
				if !seen[v] {
					seen[v] = true
					p.levels = append(p.levels, v)
				}
			}
		} else {
			var candidates []string
			for _, m := range p.members {
				if c.byLabel[m].data != nil {
					candidates = append(candidates, m)
				}
			}
			if len(candidates) != 1 {
				return &dag.AmbiguousPlateSizeError{Plate: p.label, Candidates: candidates}
			}
			n := len(c.byLabel[candidates[0]].data)
			if n == 0 {
				return fmt.Errorf("plate %q inferred size 0 from %q", p.label, candidates[0])
			}
			p.levels = make([]string, n)
			for i := range p.levels {
				p.levels[i] = strconv.Itoa(i + 1)
			}
			p.inferred = true
		}
		if !p.addData {
			continue
		}
		if _, ok := c.byLabel[p.label]; ok {
			return &dag.DuplicateLabelError{Kind: "node", Label: p.label}
		}
		index := make(map[string]int, len(p.levels))
		for i, l := range p.levels {
			index[l] = i
		}
		vals := make([]float64, len(p.data))
		for i, v := range p.data {
			vals[i] = float64(index[v])
		}
		nv := &nodeView{
			label:   p.label,
			descr:   p.descr,
			data:    vals,
			kind:    StmtData,
			indexOf: p.label,
		}
		c.nodes = append(c.nodes, nv)
		c.byLabel[nv.label] = nv
		p.members = append(p.members, nv.label)
		p.memberSet[nv.label] = true
		p.dataNode = nv.label
	}
	return nil
}

// assignScopes gives every sampled or deterministic member node the plates
// it belongs to, in plate declaration order. Data nodes carry raw vectors
// and take no scope.
func (c *compiler) assignScopes() error {
	for _, p := range c.plates {
		for _, m := range p.members {
			nv := c.byLabel[m]
			if nv.kind == StmtData {
				continue
			}
			if !contains(nv.scope, p.label) {
				nv.scope = append(nv.scope, p.label)
			}
		}
	}
	return nil
}

// checkShapes verifies that a plated likelihood's observation count matches
// the product of its plate sizes.
func (c *compiler) checkShapes() error {
	for _, n := range c.nodes {
		if n.kind != StmtLikelihood || len(n.scope) == 0 {
			continue
		}
		want := 1
		for _, pl := range n.scope {
			want *= len(c.plate(pl).levels)
		}
		if want != len(n.data) {
			return fmt.Errorf("node %q has %d observations but its plates imply %d", n.label, len(n.data), want)
		}
	}
	return nil
}

func (c *compiler) plate(label string) *plateView {
	for _, p := range c.plates {
		if p.label == label {
			return p
		}
	}
	return nil
}

// buildDeps assembles the dependency relation: declared edges, RHS
// references, and for every plate with an index node, an edge from the
// index node to each other member and to each outside node referencing a
// member. The last rule is what lets an observation-level child select the
// right member instance.
func (c *compiler) buildDeps() error {
	for _, e := range c.edges {
		c.addDep(e.Parent, e.Child)
	}
	for _, n := range c.nodes {
		for _, ref := range dag.Refs(n.rhs) {
			c.addDep(ref, n.label)
		}
	}
	for _, p := range c.plates {
		if p.dataNode == "" {
			continue
		}
		for _, m := range p.members {
			if m != p.dataNode {
				c.addDep(p.dataNode, m)
			}
		}
		for _, n := range c.nodes {
			if p.memberSet[n.label] {
				continue
			}
			for _, ref := range dag.Refs(n.rhs) {
				if p.memberSet[ref] {
					c.addDep(p.dataNode, n.label)
					break
				}
			}
		}
	}
	return nil
}

func (c *compiler) addDep(parent, child string) {
	set := c.parentSet[child]
	if set == nil {
		set = make(map[string]bool)
		c.parentSet[child] = set
	}
	if set[parent] {
		return
	}
	set[parent] = true
	c.parentsOf[child] = append(c.parentsOf[child], parent)
}

func (c *compiler) sortNodes() error {
	labels := make([]string, len(c.nodes))
	for i, n := range c.nodes {
		labels[i] = n.label
	}
	order, err := topoSort(labels, c.parentsOf)
	if err != nil {
		return err
	}
	c.order = order
	return nil
}

// rewrite replaces references to plated parents with subscripted form. The
// subscript keeps the parent's scope order and may only name plates the
// child can address: its own plates, plus plates whose index node feeds the
// child. Anything left over is an index scope violation.
func (c *compiler) rewrite() error {
	for _, label := range c.order {
		n := c.byLabel[label]
		if n.kind == StmtData {
			continue
		}
		eff := c.effectiveScope(n)
		out, err := c.rewriteExpr(n, n.rhs, eff)
		if err != nil {
			return err
		}
		n.out = out
	}
	return nil
}

func (c *compiler) effectiveScope(n *nodeView) map[string]bool {
	eff := make(map[string]bool, len(n.scope))
	for _, pl := range n.scope {
		eff[pl] = true
	}
	for _, p := range c.plates {
		if p.dataNode != "" && c.parentSet[n.label][p.dataNode] {
			eff[p.label] = true
		}
	}
	return eff
}

func (c *compiler) rewriteExpr(n *nodeView, e dag.Expr, eff map[string]bool) (dag.Expr, error) {
	switch v := e.(type) {
	case *dag.LitExpr:
		return v, nil
	case *dag.RefExpr:
		parent := c.byLabel[v.Label]
		if len(parent.scope) == 0 {
			return v, nil
		}
		var subs, extra []string
		for _, pl := range parent.scope {
			if eff[pl] {
				subs = append(subs, pl)
			} else {
				extra = append(extra, pl)
			}
		}
		if len(extra) > 0 {
			return nil, &dag.IndexScopeError{Node: n.label, Parent: parent.label, Extra: extra}
		}
		return &dag.IndexedExpr{Label: parent.label, Subscripts: subs}, nil
	case *dag.CallExpr:
		args := make([]dag.Expr, len(v.Args))
		for i, a := range v.Args {
			out, err := c.rewriteExpr(n, a, eff)
			if err != nil {
				return nil, err
			}
			args[i] = out
		}
		return &dag.CallExpr{Name: v.Name, Args: args}, nil
	case *dag.BinaryExpr:
		x, err := c.rewriteExpr(n, v.X, eff)
		if err != nil {
			return nil, err
		}
		y, err := c.rewriteExpr(n, v.Y, eff)
		if err != nil {
			return nil, err
		}
		return &dag.BinaryExpr{Op: v.Op, X: x, Y: y}, nil
	case *dag.NegExpr:
		x, err := c.rewriteExpr(n, v.X, eff)
		if err != nil {
			return nil, err
		}
		return &dag.NegExpr{X: x}, nil
	default:
		return nil, fmt.Errorf("node %q: unsupported expression %T", n.label, e)
	}
}

func (c *compiler) finish() (*Model, error) {
	m := &Model{scopes: make(map[string][]string, len(c.nodes))}
	for _, p := range c.plates {
		m.plates = append(m.plates, PlateInfo{
			Label:    p.label,
			Descr:    p.descr,
			Levels:   append([]string(nil), p.levels...),
			Size:     len(p.levels),
			Inferred: p.inferred,
			DataNode: p.dataNode,
		})
	}
	for _, label := range c.order {
		n := c.byLabel[label]
		st := Statement{
			Kind:    n.kind,
			Node:    n.label,
			Descr:   n.descr,
			RHS:     n.out,
			Scope:   append([]string(nil), n.scope...),
			IndexOf: n.indexOf,
		}
		if n.data != nil {
			st.Observations = append([]float64(nil), n.data...)
		}
		m.stmts = append(m.stmts, st)
		m.scopes[n.label] = append([]string(nil), n.scope...)
	}
	cols, err := layoutColumns(m, c.opts)
	if err != nil {
		return nil, err
	}
	m.columns = cols
	m.fp = fingerprint(m)
	return m, nil
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
