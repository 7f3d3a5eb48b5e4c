// Package backend defines the contract posterior sampling backends
// implement and the options shared between them.
package backend

import (
	"context"
	"fmt"

	"github.com/vishalbelsare/causact/draws"
	"github.com/vishalbelsare/causact/model"
)

// Options control one sampling run.
type Options struct {
	// Draws is the number of kept posterior draws per chain.
	Draws int
	// Warmup is the number of adaptation steps discarded before drawing.
	Warmup int
	// Chains is the number of independent chains.
	Chains int
	// Seed feeds the sampler's random number generator. Equal seeds give
	// equal draws.
	Seed int64
}

// WithDefaults fills unset fields: 4000 draws, 1000 warmup, 1 chain.
func (o Options) WithDefaults() Options {
	if o.Draws <= 0 {
		o.Draws = 4000
	}
	if o.Warmup <= 0 {
		o.Warmup = 1000
	}
	if o.Chains <= 0 {
		o.Chains = 1
	}
	return o
}

// Key renders the options as a short stable string, used in cache keys.
func (o Options) Key() string {
	o = o.WithDefaults()
	return fmt.Sprintf("n%d_w%d_c%d_s%d", o.Draws, o.Warmup, o.Chains, o.Seed)
}

// Backend renders a compiled model to executable form and samples its
// posterior. Implementations must produce identical source for identical
// models and respect ctx cancellation while sampling.
type Backend interface {
	Name() string
	CompileAndSample(ctx context.Context, m *model.Model, opts Options) (*draws.Table, error)
}
