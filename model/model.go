// Package model compiles a dag.Graph into an indexed statistical model.
//
// Compilation is a pure function of the graph: it resolves plate sizes,
// assigns each node its index scope, rewrites references to plated parents
// into subscripted form and orders everything for emission. The result is a
// neutral statement list a sampling backend renders into executable code.
// Compiling the same graph twice yields byte-identical output.
package model

import (
	"github.com/vishalbelsare/causact/dag"
)

// StatementKind classifies how a statement is emitted.
type StatementKind string

const (
	// StmtData is an observed value vector emitted as a constant.
	StmtData StatementKind = "data"
	// StmtPrior is a latent node with a distribution RHS.
	StmtPrior StatementKind = "prior"
	// StmtDeterministic is a latent node with a formula RHS.
	StmtDeterministic StatementKind = "deterministic"
	// StmtLikelihood is an observed node with a distribution RHS.
	StmtLikelihood StatementKind = "likelihood"
)

// Statement is one emission-ready line of the compiled model. Statements
// are ordered so that every referenced node appears before its referrers.
type Statement struct {
	Kind  StatementKind
	Node  string
	Descr string
	// RHS is the node's expression with plated references rewritten to
	// subscripted form. It is nil for data statements.
	RHS dag.Expr
	// Scope lists the plate labels the node is replicated over, in plate
	// declaration order.
	Scope []string
	// Observations holds the node's data for data and likelihood
	// statements.
	Observations []float64
	// IndexOf names the plate this statement indexes when the node was
	// synthesized from plate data. Index observations are 0-based level
	// positions.
	IndexOf string
}

// PlateInfo describes one resolved plate.
type PlateInfo struct {
	Label  string
	Descr  string
	Levels []string
	Size   int
	// Inferred is set when the size came from an observed member rather
	// than explicit index data. Inferred levels are "1".."N".
	Inferred bool
	// DataNode is the label of the synthesized index node, or "".
	DataNode string
}

// Column maps one posterior output column to the node and plate levels it
// came from. Scalar parameters have no levels.
type Column struct {
	Name   string
	Node   string
	Levels []string
}

// Options adjust compilation.
type Options struct {
	// AbbrevLabels truncates plate level names to this many runes when
	// building column names. Zero keeps full names. Truncations that
	// collide fail compilation.
	AbbrevLabels int
}

// Model is a compiled graph ready for a backend.
type Model struct {
	stmts   []Statement
	plates  []PlateInfo
	scopes  map[string][]string
	columns []Column
	fp      string
}

// Statements returns the compiled statements in emission order.
func (m *Model) Statements() []Statement {
	return append([]Statement(nil), m.stmts...)
}

// Plates returns the resolved plates in declaration order.
func (m *Model) Plates() []PlateInfo {
	return append([]PlateInfo(nil), m.plates...)
}

// Plate returns the resolved plate with the given label.
func (m *Model) Plate(label string) (PlateInfo, bool) {
	for _, p := range m.plates {
		if p.Label == label {
			return p, true
		}
	}
	return PlateInfo{}, false
}

// Scope returns the plate labels a node is replicated over.
func (m *Model) Scope(label string) ([]string, bool) {
	s, ok := m.scopes[label]
	if !ok {
		return nil, false
	}
	return append([]string(nil), s...), true
}

// Columns returns the posterior column layout, one column per scalar
// parameter, in emission order of the prior statements.
func (m *Model) Columns() []Column {
	return append([]Column(nil), m.columns...)
}

// ColumnNames returns just the column names, in layout order.
func (m *Model) ColumnNames() []string {
	names := make([]string, len(m.columns))
	for i, c := range m.columns {
		names[i] = c.Name
	}
	return names
}

// ColumnOrigins maps each posterior column name to the prior node and
// level values it expands, so callers can group columns that share an
// origin. Scalar priors carry no levels.
func (m *Model) ColumnOrigins() map[string]Column {
	origins := make(map[string]Column, len(m.columns))
	for _, c := range m.columns {
		origins[c.Name] = c
	}
	return origins
}

// Fingerprint returns a hex digest identifying the compiled model: same
// graph and options, same fingerprint.
func (m *Model) Fingerprint() string { return m.fp }
