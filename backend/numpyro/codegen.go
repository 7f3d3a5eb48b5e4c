// Package numpyro renders compiled models to NumPyro source and samples
// them through a Python subprocess.
package numpyro

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/vishalbelsare/causact/backend"
	"github.com/vishalbelsare/causact/dag"
	"github.com/vishalbelsare/causact/model"
)

// distClass maps distribution names to numpyro.distributions classes.
var distClass = map[string]string{
	"bernoulli":   "Bernoulli",
	"beta":        "Beta",
	"binomial":    "Binomial",
	"categorical": "Categorical",
	"cauchy":      "Cauchy",
	"chisquared":  "Chi2",
	"dirichlet":   "Dirichlet",
	"exponential": "Exponential",
	"gamma":       "Gamma",
	"gumbel":      "Gumbel",
	"halfcauchy":  "HalfCauchy",
	"halfnormal":  "HalfNormal",
	"laplace":     "Laplace",
	"lognormal":   "LogNormal",
	"multinomial": "Multinomial",
	"normal":      "Normal",
	"pareto":      "Pareto",
	"poisson":     "Poisson",
	"studentt":    "StudentT",
	"uniform":     "Uniform",
	"weibull":     "Weibull",
}

// mathFunc maps formula functions to their JAX spellings.
var mathFunc = map[string]string{
	"exp":      "jnp.exp",
	"log":      "jnp.log",
	"log1p":    "jnp.log1p",
	"sqrt":     "jnp.sqrt",
	"abs":      "jnp.abs",
	"sin":      "jnp.sin",
	"cos":      "jnp.cos",
	"tanh":     "jnp.tanh",
	"invlogit": "expit",
}

// reserved holds Python keywords plus every name the script skeleton uses.
// Node labels landing here get a trailing underscore.
var reserved = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true,
	"class": true, "continue": true, "def": true, "del": true,
	"elif": true, "else": true, "except": true, "finally": true,
	"for": true, "from": true, "global": true, "if": true, "import": true,
	"in": true, "is": true, "lambda": true, "nonlocal": true, "not": true,
	"or": true, "pass": true, "raise": true, "return": true, "try": true,
	"while": true, "with": true, "yield": true,

	"csv": true, "sys": true, "np": true, "jnp": true, "numpyro": true,
	"dist": true, "random": true, "MCMC": true, "NUTS": true,
	"expit": true, "graph_model": true, "mcmc": true, "samples": true,
	"cols": true, "matrix": true, "writer": true, "row": true, "v": true,
}

// GenerateSource renders the model as a self-contained NumPyro script. The
// script embeds the observed data, samples the posterior and writes the
// draws to stdout as CSV with one column per scalar parameter. Identical
// models and options produce byte-identical source.
func GenerateSource(m *model.Model, opts backend.Options) (string, error) {
	g := &sourceGen{m: m, opts: opts.WithDefaults()}
	return g.render()
}

type sourceGen struct {
	m    *model.Model
	opts backend.Options

	names     map[string]string
	usesExpit bool
}

func (g *sourceGen) render() (string, error) {
	stmts := g.m.Statements()
	g.assignNames(stmts)

	priors := 0
	for _, st := range stmts {
		if st.Kind == model.StmtPrior {
			priors++
		}
	}
	if priors == 0 {
		return "", fmt.Errorf("model has no latent parameters to sample")
	}

	data, err := g.dataSection(stmts)
	if err != nil {
		return "", err
	}
	body, err := g.modelSection(stmts)
	if err != nil {
		return "", err
	}
	tail, err := g.outputSection(stmts)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("## NumPyro model generated by causact.\n")
	b.WriteString("import csv\n")
	b.WriteString("import sys\n")
	b.WriteString("\n")
	b.WriteString("import jax.numpy as jnp\n")
	b.WriteString("import numpy as np\n")
	b.WriteString("import numpyro\n")
	b.WriteString("import numpyro.distributions as dist\n")
	b.WriteString("from jax import random\n")
	if g.usesExpit {
		b.WriteString("from jax.scipy.special import expit\n")
	}
	b.WriteString("from numpyro.infer import MCMC, NUTS\n")
	b.WriteString("\n")
	b.WriteString(data)
	b.WriteString("\n")
	b.WriteString(body)
	b.WriteString("\n")
	b.WriteString(tail)
	return b.String(), nil
}

// assignNames maps node labels to Python identifiers, suffixing labels that
// collide with keywords or script names.
func (g *sourceGen) assignNames(stmts []model.Statement) {
	g.names = make(map[string]string, len(stmts))
	used := make(map[string]bool, len(stmts))
	for _, st := range stmts {
		used[st.Node] = true
	}
	for _, st := range stmts {
		name := st.Node
		for reserved[name] || (name != st.Node && used[name]) {
			name += "_"
		}
		used[name] = true
		g.names[st.Node] = name
	}
}

func (g *sourceGen) dataSection(stmts []model.Statement) (string, error) {
	var b strings.Builder
	for _, st := range stmts {
		if st.Observations == nil {
			continue
		}
		if st.Descr != "" {
			fmt.Fprintf(&b, "## %s\n", st.Descr)
		}
		if st.IndexOf != "" {
			fmt.Fprintf(&b, "%s = np.array([%s], dtype=np.int32)\n", g.names[st.Node], pyVector(st.Observations))
		} else {
			fmt.Fprintf(&b, "%s = np.array([%s])\n", g.names[st.Node], pyVector(st.Observations))
		}
	}
	return b.String(), nil
}

func (g *sourceGen) modelSection(stmts []model.Statement) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "def graph_model(%s):\n", strings.Join(g.dataArgs(stmts), ", "))
	for _, st := range stmts {
		if st.Kind == model.StmtData {
			continue
		}
		if st.Descr != "" {
			fmt.Fprintf(&b, "    ## %s\n", st.Descr)
		}
		switch st.Kind {
		case model.StmtPrior, model.StmtLikelihood:
			if err := g.sampleStmt(&b, st); err != nil {
				return "", err
			}
		case model.StmtDeterministic:
			expr, err := g.expr(st, st.RHS)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&b, "    %s = numpyro.deterministic(%s, %s)\n", g.names[st.Node], pyString(st.Node), expr)
		}
	}
	return b.String(), nil
}

func (g *sourceGen) sampleStmt(b *strings.Builder, st model.Statement) error {
	call, ok := st.RHS.(*dag.CallExpr)
	if !ok {
		return fmt.Errorf("node %q: expected a distribution", st.Node)
	}
	d, err := g.distExpr(st, call)
	if err != nil {
		return err
	}
	name := g.names[st.Node]
	switch {
	case st.Kind == model.StmtPrior && len(st.Scope) == 0:
		fmt.Fprintf(b, "    %s = numpyro.sample(%s, %s)\n", name, pyString(st.Node), d)
	case st.Kind == model.StmtPrior && len(st.Scope) == 1:
		p, _ := g.m.Plate(st.Scope[0])
		fmt.Fprintf(b, "    with numpyro.plate(%s, %d):\n", pyString(p.Label), p.Size)
		fmt.Fprintf(b, "        %s = numpyro.sample(%s, %s)\n", name, pyString(st.Node), d)
	case st.Kind == model.StmtPrior:
		fmt.Fprintf(b, "    %s = numpyro.sample(%s, %s.expand([%s]))\n", name, pyString(st.Node), d, g.scopeSizes(st.Scope))
	case len(st.Scope) == 0:
		fmt.Fprintf(b, "    numpyro.sample(%s, %s, obs=%s)\n", pyString(st.Node), d, name)
	case len(st.Scope) == 1:
		p, _ := g.m.Plate(st.Scope[0])
		fmt.Fprintf(b, "    with numpyro.plate(%s, %d):\n", pyString(p.Label), p.Size)
		fmt.Fprintf(b, "        numpyro.sample(%s, %s, obs=%s)\n", pyString(st.Node), d, name)
	default:
		fmt.Fprintf(b, "    numpyro.sample(%s, %s.expand([%s]), obs=np.reshape(%s, (%s)))\n",
			pyString(st.Node), d, g.scopeSizes(st.Scope), name, g.scopeSizes(st.Scope))
	}
	return nil
}

func (g *sourceGen) scopeSizes(scope []string) string {
	sizes := make([]string, len(scope))
	for i, pl := range scope {
		p, _ := g.m.Plate(pl)
		sizes[i] = strconv.Itoa(p.Size)
	}
	return strings.Join(sizes, ", ")
}

func (g *sourceGen) dataArgs(stmts []model.Statement) []string {
	var args []string
	for _, st := range stmts {
		if st.Observations != nil {
			args = append(args, g.names[st.Node])
		}
	}
	return args
}

func (g *sourceGen) outputSection(stmts []model.Statement) (string, error) {
	var b strings.Builder
	b.WriteString("mcmc = MCMC(\n")
	b.WriteString("    NUTS(graph_model),\n")
	fmt.Fprintf(&b, "    num_warmup=%d,\n", g.opts.Warmup)
	fmt.Fprintf(&b, "    num_samples=%d,\n", g.opts.Draws)
	fmt.Fprintf(&b, "    num_chains=%d,\n", g.opts.Chains)
	b.WriteString("    progress_bar=False,\n")
	b.WriteString(")\n")
	var kwargs []string
	for _, arg := range g.dataArgs(stmts) {
		kwargs = append(kwargs, arg+"="+arg)
	}
	call := fmt.Sprintf("random.PRNGKey(%d)", g.opts.Seed)
	if len(kwargs) > 0 {
		call += ", " + strings.Join(kwargs, ", ")
	}
	fmt.Fprintf(&b, "mcmc.run(%s)\n", call)
	b.WriteString("samples = mcmc.get_samples()\n")
	b.WriteString("\n")
	b.WriteString("cols = []\n")
	for _, st := range stmts {
		if st.Kind != model.StmtPrior {
			continue
		}
		width := 1
		for _, pl := range st.Scope {
			p, _ := g.m.Plate(pl)
			width *= p.Size
		}
		fmt.Fprintf(&b, "cols.append(np.reshape(np.asarray(samples[%s]), (-1, %d)))\n", pyString(st.Node), width)
	}
	b.WriteString("matrix = np.concatenate(cols, axis=1)\n")
	b.WriteString("writer = csv.writer(sys.stdout)\n")
	names := make([]string, 0, len(g.m.Columns()))
	for _, c := range g.m.Columns() {
		names = append(names, pyString(c.Name))
	}
	fmt.Fprintf(&b, "writer.writerow([%s])\n", strings.Join(names, ", "))
	b.WriteString("for row in matrix:\n")
	b.WriteString("    writer.writerow(['%.17g' % float(v) for v in row])\n")
	return b.String(), nil
}

// expr renders a formula or distribution argument. st provides the scope
// context for subscripted references.
func (g *sourceGen) expr(st model.Statement, e dag.Expr) (string, error) {
	switch v := e.(type) {
	case *dag.LitExpr:
		return pyFloat(v.Value)
	case *dag.RefExpr:
		return g.names[v.Label], nil
	case *dag.IndexedExpr:
		return g.indexedExpr(st, v)
	case *dag.CallExpr:
		if dag.IsDistribution(v.Name) {
			return "", fmt.Errorf("node %q: distribution %q cannot appear inside an expression", st.Node, v.Name)
		}
		fn, ok := mathFunc[v.Name]
		if !ok {
			return "", fmt.Errorf("node %q: unsupported function %q", st.Node, v.Name)
		}
		if fn == "expit" {
			g.usesExpit = true
		}
		args, err := g.exprList(st, v.Args)
		if err != nil {
			return "", err
		}
		return fn + "(" + strings.Join(args, ", ") + ")", nil
	case *dag.BinaryExpr:
		x, err := g.operand(st, v.X, v.Op, false)
		if err != nil {
			return "", err
		}
		y, err := g.operand(st, v.Y, v.Op, true)
		if err != nil {
			return "", err
		}
		return x + " " + v.Op + " " + y, nil
	case *dag.NegExpr:
		x, err := g.expr(st, v.X)
		if err != nil {
			return "", err
		}
		if _, ok := v.X.(*dag.BinaryExpr); ok {
			return "-(" + x + ")", nil
		}
		return "-" + x, nil
	default:
		return "", fmt.Errorf("node %q: unsupported expression %T", st.Node, e)
	}
}

func (g *sourceGen) operand(st model.Statement, e dag.Expr, parentOp string, right bool) (string, error) {
	s, err := g.expr(st, e)
	if err != nil {
		return "", err
	}
	b, ok := e.(*dag.BinaryExpr)
	if !ok {
		return s, nil
	}
	if prec(b.Op) < prec(parentOp) ||
		(right && prec(b.Op) == prec(parentOp) && (parentOp == "-" || parentOp == "/")) {
		return "(" + s + ")", nil
	}
	return s, nil
}

func prec(op string) int {
	if op == "*" || op == "/" {
		return 2
	}
	return 1
}

func (g *sourceGen) exprList(st model.Statement, exprs []dag.Expr) ([]string, error) {
	out := make([]string, len(exprs))
	for i, e := range exprs {
		s, err := g.expr(st, e)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func (g *sourceGen) distExpr(st model.Statement, call *dag.CallExpr) (string, error) {
	if call.Name == "" {
		return "", fmt.Errorf("node %q: distribution call has no name", st.Node)
	}
	cls, ok := distClass[call.Name]
	if !ok {
		// Unlisted distributions pass through capitalized; NumPyro
		// rejects them with its own error if they do not exist.
		cls = strings.ToUpper(call.Name[:1]) + call.Name[1:]
	}
	args, err := g.exprList(st, call.Args)
	if err != nil {
		return "", err
	}
	return "dist." + cls + "(" + strings.Join(args, ", ") + ")", nil
}

// indexedExpr renders a subscripted reference. Subscripts naming plates in
// the statement's own scope broadcast through axis padding; subscripts
// naming plates outside it select per observation through the plate's index
// array. The two cannot mix in one reference.
func (g *sourceGen) indexedExpr(st model.Statement, v *dag.IndexedExpr) (string, error) {
	name := g.names[v.Label]
	inScope := make(map[string]bool, len(st.Scope))
	for _, pl := range st.Scope {
		inScope[pl] = true
	}
	var arrays, shared []string
	for _, sub := range v.Subscripts {
		if inScope[sub] {
			shared = append(shared, sub)
		} else {
			arrays = append(arrays, sub)
		}
	}
	switch {
	case len(arrays) > 0 && len(shared) > 0:
		return "", fmt.Errorf("node %q: reference to %q mixes plate and observation granularity", st.Node, v.Label)
	case len(arrays) > 0:
		idx := make([]string, len(arrays))
		for i, sub := range arrays {
			p, ok := g.m.Plate(sub)
			if !ok || p.DataNode == "" {
				return "", fmt.Errorf("node %q: plate %q has no index data to select %q by", st.Node, sub, v.Label)
			}
			idx[i] = g.names[p.DataNode]
		}
		return name + "[" + strings.Join(idx, ", ") + "]", nil
	case len(shared) == len(st.Scope):
		// Scope matches exactly, shapes already line up.
		return name, nil
	default:
		sharedSet := make(map[string]bool, len(shared))
		for _, pl := range shared {
			sharedSet[pl] = true
		}
		dims := make([]string, len(st.Scope))
		for i, pl := range st.Scope {
			if sharedSet[pl] {
				dims[i] = ":"
			} else {
				dims[i] = "None"
			}
		}
		return name + "[" + strings.Join(dims, ", ") + "]", nil
	}
}

func pyFloat(v float64) (string, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", fmt.Errorf("non-finite literal in expression")
	}
	return strconv.FormatFloat(v, 'g', -1, 64), nil
}

func pyString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

func pyVector(vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			parts[i] = strconv.FormatInt(int64(v), 10)
		} else {
			parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
	}
	return strings.Join(parts, ", ")
}
