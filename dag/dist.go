package dag

import "sort"

// distributions enumerates the distribution names a node RHS may use as
// its outermost call. Calls to any other name are treated as ordinary
// math functions and the node becomes deterministic.
var distributions = map[string]bool{
	"bernoulli":   true,
	"beta":        true,
	"binomial":    true,
	"categorical": true,
	"cauchy":      true,
	"chisquared":  true,
	"dirichlet":   true,
	"exponential": true,
	"gamma":       true,
	"gumbel":      true,
	"halfcauchy":  true,
	"halfnormal":  true,
	"laplace":     true,
	"lognormal":   true,
	"multinomial": true,
	"normal":      true,
	"pareto":      true,
	"poisson":     true,
	"studentt":    true,
	"uniform":     true,
	"weibull":     true,
}

// IsDistribution reports whether name is a supported distribution.
func IsDistribution(name string) bool { return distributions[name] }

// Distributions returns the supported distribution names, sorted.
func Distributions() []string {
	out := make([]string, 0, len(distributions))
	for name := range distributions {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Distribution constructors. Arguments follow the NumPyro parameterization
// of each distribution.

// Bernoulli returns bernoulli(p).
func Bernoulli(p Expr) *CallExpr { return Call("bernoulli", p) }

// Beta returns beta(a, b).
func Beta(a, b Expr) *CallExpr { return Call("beta", a, b) }

// Binomial returns binomial(n, p).
func Binomial(n, p Expr) *CallExpr { return Call("binomial", n, p) }

// Categorical returns categorical(probs).
func Categorical(probs Expr) *CallExpr { return Call("categorical", probs) }

// Cauchy returns cauchy(loc, scale).
func Cauchy(loc, scale Expr) *CallExpr { return Call("cauchy", loc, scale) }

// Exponential returns exponential(rate).
func Exponential(rate Expr) *CallExpr { return Call("exponential", rate) }

// Gamma returns gamma(shape, rate).
func Gamma(shape, rate Expr) *CallExpr { return Call("gamma", shape, rate) }

// HalfCauchy returns halfcauchy(scale).
func HalfCauchy(scale Expr) *CallExpr { return Call("halfcauchy", scale) }

// HalfNormal returns halfnormal(scale).
func HalfNormal(scale Expr) *CallExpr { return Call("halfnormal", scale) }

// Laplace returns laplace(loc, scale).
func Laplace(loc, scale Expr) *CallExpr { return Call("laplace", loc, scale) }

// LogNormal returns lognormal(mu, sigma).
func LogNormal(mu, sigma Expr) *CallExpr { return Call("lognormal", mu, sigma) }

// Normal returns normal(mu, sigma).
func Normal(mu, sigma Expr) *CallExpr { return Call("normal", mu, sigma) }

// Poisson returns poisson(rate).
func Poisson(rate Expr) *CallExpr { return Call("poisson", rate) }

// StudentT returns studentt(df, loc, scale).
func StudentT(df, loc, scale Expr) *CallExpr { return Call("studentt", df, loc, scale) }

// Uniform returns uniform(lo, hi).
func Uniform(lo, hi Expr) *CallExpr { return Call("uniform", lo, hi) }
