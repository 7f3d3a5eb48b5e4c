package dag

import (
	"fmt"
	"strings"
)

// DuplicateLabelError reports a label declared more than once. Kind is
// "node" or "plate"; a plate label colliding with a node label is reported
// with kind "plate".
type DuplicateLabelError struct {
	Kind  string
	Label string
}

func (e *DuplicateLabelError) Error() string {
	return fmt.Sprintf("duplicate %s label %q", e.Kind, e.Label)
}

// UndefinedParentError reports a reference to a label no node declares.
// Node names the referencing site: a node whose RHS or edge mentions the
// missing label, or a plate listing it as a member.
type UndefinedParentError struct {
	Parent string
	Node   string
}

func (e *UndefinedParentError) Error() string {
	return fmt.Sprintf("%s references undefined label %q", e.Node, e.Parent)
}

// MissingRHSError reports a latent node declared without a distribution or
// formula. Only observed nodes may omit the RHS.
type MissingRHSError struct {
	Node string
}

func (e *MissingRHSError) Error() string {
	return fmt.Sprintf("latent node %q has no distribution or formula", e.Node)
}

// AmbiguousPlateSizeError reports a plate whose size cannot be determined:
// it has no index data and the number of observed members is not exactly
// one. Candidates lists the observed members found.
type AmbiguousPlateSizeError struct {
	Plate      string
	Candidates []string
}

func (e *AmbiguousPlateSizeError) Error() string {
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("plate %q has no index data and no observed member to infer its size from", e.Plate)
	}
	return fmt.Sprintf("plate %q has no index data and %d observed members (%s); size is ambiguous",
		e.Plate, len(e.Candidates), strings.Join(e.Candidates, ", "))
}

// IndexScopeError reports a node referencing a parent that varies over
// plates the node cannot address. Extra lists the offending plate labels.
type IndexScopeError struct {
	Node   string
	Parent string
	Extra  []string
}

func (e *IndexScopeError) Error() string {
	return fmt.Sprintf("node %q references %q which varies over plate(s) %s outside the node's scope",
		e.Node, e.Parent, strings.Join(e.Extra, ", "))
}

// CyclicGraphError reports a dependency cycle. Cycle holds the labels along
// the cycle with the first label repeated at the end.
type CyclicGraphError struct {
	Cycle []string
}

func (e *CyclicGraphError) Error() string {
	return fmt.Sprintf("graph contains a cycle: %s", strings.Join(e.Cycle, " -> "))
}
