package dag

import (
	"strconv"
	"strings"
)

// Expr is one node of a right-hand-side expression tree.
//
// Trees are built either with the constructor helpers in this package
// (Lit, Ref, Call, Add, ...) or by parsing surface syntax with Parse.
// The compiler rewrites Ref leaves into IndexedExpr leaves when the
// referenced parent is replicated over plates.
type Expr interface {
	// String renders the expression in the surface syntax accepted by Parse.
	String() string
	isExpr()
}

// LitExpr is a numeric literal.
type LitExpr struct {
	Value float64
}

// RefExpr references another node by label.
type RefExpr struct {
	Label string
}

// CallExpr applies a named distribution or function to arguments.
type CallExpr struct {
	Name string
	Args []Expr
}

// BinaryExpr combines two expressions with an arithmetic operator,
// one of "+", "-", "*" or "/".
type BinaryExpr struct {
	Op   string
	X, Y Expr
}

// NegExpr negates an expression.
type NegExpr struct {
	X Expr
}

// IndexedExpr is a reference to a plated parent subscripted by plate
// index labels. It is produced by the compiler, never by Parse.
type IndexedExpr struct {
	Label      string
	Subscripts []string
}

func (*LitExpr) isExpr()     {}
func (*RefExpr) isExpr()     {}
func (*CallExpr) isExpr()    {}
func (*BinaryExpr) isExpr()  {}
func (*NegExpr) isExpr()     {}
func (*IndexedExpr) isExpr() {}

func (e *LitExpr) String() string { return strconv.FormatFloat(e.Value, 'g', -1, 64) }

func (e *RefExpr) String() string { return e.Label }

func (e *CallExpr) String() string {
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.String()
	}
	return e.Name + "(" + strings.Join(args, ", ") + ")"
}

func (e *BinaryExpr) String() string {
	return operand(e.X, e.Op, false) + " " + e.Op + " " + operand(e.Y, e.Op, true)
}

// operand parenthesizes a binary child when omitting the parentheses
// would change how Parse reads the rendered text back.
func operand(e Expr, parentOp string, right bool) string {
	b, ok := e.(*BinaryExpr)
	if !ok {
		return e.String()
	}
	if precedence(b.Op) < precedence(parentOp) {
		return "(" + b.String() + ")"
	}
	if right && precedence(b.Op) == precedence(parentOp) && (parentOp == "-" || parentOp == "/") {
		return "(" + b.String() + ")"
	}
	return b.String()
}

func precedence(op string) int {
	switch op {
	case "*", "/":
		return 2
	default:
		return 1
	}
}

func (e *NegExpr) String() string {
	if b, ok := e.X.(*BinaryExpr); ok {
		return "-(" + b.String() + ")"
	}
	return "-" + e.X.String()
}

func (e *IndexedExpr) String() string {
	return e.Label + "[" + strings.Join(e.Subscripts, ",") + "]"
}

// Lit returns a numeric literal expression.
func Lit(v float64) *LitExpr { return &LitExpr{Value: v} }

// Ref returns a reference to the node with the given label.
func Ref(label string) *RefExpr { return &RefExpr{Label: label} }

// Call applies a named distribution or function to the given arguments.
func Call(name string, args ...Expr) *CallExpr { return &CallExpr{Name: name, Args: args} }

// Add returns x + y.
func Add(x, y Expr) *BinaryExpr { return &BinaryExpr{Op: "+", X: x, Y: y} }

// Sub returns x - y.
func Sub(x, y Expr) *BinaryExpr { return &BinaryExpr{Op: "-", X: x, Y: y} }

// Mul returns x * y.
func Mul(x, y Expr) *BinaryExpr { return &BinaryExpr{Op: "*", X: x, Y: y} }

// Div returns x / y.
func Div(x, y Expr) *BinaryExpr { return &BinaryExpr{Op: "/", X: x, Y: y} }

// Neg returns -x.
func Neg(x Expr) *NegExpr { return &NegExpr{X: x} }

// Refs returns the labels referenced anywhere in e, in order of first
// appearance, without duplicates. A nil expression has no references.
func Refs(e Expr) []string {
	var out []string
	seen := make(map[string]bool)
	walkRefs(e, func(label string) {
		if !seen[label] {
			seen[label] = true
			out = append(out, label)
		}
	})
	return out
}

func walkRefs(e Expr, fn func(string)) {
	switch v := e.(type) {
	case nil:
	case *RefExpr:
		fn(v.Label)
	case *IndexedExpr:
		fn(v.Label)
	case *CallExpr:
		for _, a := range v.Args {
			walkRefs(a, fn)
		}
	case *BinaryExpr:
		walkRefs(v.X, fn)
		walkRefs(v.Y, fn)
	case *NegExpr:
		walkRefs(v.X, fn)
	}
}
