package dag

import (
	"fmt"
	goast "go/ast"
	"go/parser"
	"go/token"
	"strconv"
)

// Parse converts surface syntax like "normal(mu, 1.5)" or "alpha + beta * x"
// into an expression tree. The grammar is the expression subset shared with
// Go: numeric literals, identifiers, calls, unary minus, parentheses and the
// operators + - * /.
func Parse(src string) (Expr, error) {
	if src == "" {
		return nil, fmt.Errorf("parse: empty expression")
	}
	node, err := parser.ParseExpr(src)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", src, err)
	}
	e, err := convertExpr(node)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", src, err)
	}
	return e, nil
}

// MustParse is Parse but panics on error. Intended for fixed expressions in
// examples and tests.
func MustParse(src string) Expr {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

func convertExpr(node goast.Expr) (Expr, error) {
	switch v := node.(type) {
	case *goast.BasicLit:
		if v.Kind != token.INT && v.Kind != token.FLOAT {
			return nil, fmt.Errorf("unsupported literal %s", v.Value)
		}
		f, err := strconv.ParseFloat(v.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("bad numeric literal %s", v.Value)
		}
		return Lit(f), nil
	case *goast.Ident:
		return Ref(v.Name), nil
	case *goast.CallExpr:
		name, ok := v.Fun.(*goast.Ident)
		if !ok {
			return nil, fmt.Errorf("call target must be a plain name")
		}
		args := make([]Expr, len(v.Args))
		for i, a := range v.Args {
			arg, err := convertExpr(a)
			if err != nil {
				return nil, err
			}
			args[i] = arg
		}
		return Call(name.Name, args...), nil
	case *goast.BinaryExpr:
		op := v.Op.String()
		switch v.Op {
		case token.ADD, token.SUB, token.MUL, token.QUO:
		default:
			return nil, fmt.Errorf("unsupported operator %q", op)
		}
		x, err := convertExpr(v.X)
		if err != nil {
			return nil, err
		}
		y, err := convertExpr(v.Y)
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Op: op, X: x, Y: y}, nil
	case *goast.UnaryExpr:
		if v.Op != token.SUB {
			return nil, fmt.Errorf("unsupported operator %q", v.Op.String())
		}
		x, err := convertExpr(v.X)
		if err != nil {
			return nil, err
		}
		return Neg(x), nil
	case *goast.ParenExpr:
		return convertExpr(v.X)
	default:
		return nil, fmt.Errorf("unsupported syntax %T", node)
	}
}
