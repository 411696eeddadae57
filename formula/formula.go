// Package formula parses derivation expressions into a small expression
// tree, resolves their identifiers through a binding chain, and evaluates
// them against row values. Parsing and evaluation run on the Starlark
// runtime; only arithmetic expressions over identifiers, literals, and a
// small set of builtin functions are accepted.
package formula

import (
	"fmt"

	"go.starlark.net/syntax"

	"github.com/cdisc-org/analysis-concepts-sub000/domain"
	"github.com/cdisc-org/analysis-concepts-sub000/resolver"
)

// builtins are the function names an expression may call. They are part
// of the Starlark universe and are never treated as resolvable symbols.
var builtins = map[string]bool{
	"abs": true,
	"min": true,
	"max": true,
}

// Formula is a parsed, immutable arithmetic expression.
type Formula struct {
	text string
	expr syntax.Expr
}

// Parse parses an expression and rejects any construct outside the
// supported arithmetic subset.
func Parse(text string) (*Formula, error) {
	expr, err := (&syntax.FileOptions{}).ParseExpr("formula", text, 0)
	if err != nil {
		return nil, domain.ErrSpecification("parse formula %q: %v", text, err)
	}
	if err := check(expr); err != nil {
		return nil, err
	}
	return &Formula{text: text, expr: expr}, nil
}

// String returns the expression text.
func (f *Formula) String() string { return f.text }

// Identifiers returns the distinct resolvable identifiers in order of
// first appearance. Builtin function names are excluded.
func (f *Formula) Identifiers() []string {
	seen := make(map[string]bool)
	var out []string
	collectIdents(f.expr, seen, &out)
	return out
}

func collectIdents(e syntax.Expr, seen map[string]bool, out *[]string) {
	switch n := e.(type) {
	case *syntax.Ident:
		if !builtins[n.Name] && !seen[n.Name] {
			seen[n.Name] = true
			*out = append(*out, n.Name)
		}
	case *syntax.Literal:
	case *syntax.ParenExpr:
		collectIdents(n.X, seen, out)
	case *syntax.UnaryExpr:
		collectIdents(n.X, seen, out)
	case *syntax.BinaryExpr:
		collectIdents(n.X, seen, out)
		collectIdents(n.Y, seen, out)
	case *syntax.CallExpr:
		// The callee is a builtin name, not a data symbol.
		for _, a := range n.Args {
			collectIdents(a, seen, out)
		}
	}
}

// Resolve substitutes every identifier with its concrete name from the
// chain. Resolution is whole-token: only complete identifiers are
// replaced, never substrings. When no identifier changes, the original
// formula is returned untouched, so resolving an already fully concrete
// expression is a no-op.
func (f *Formula) Resolve(chain *resolver.Chain) (*Formula, error) {
	subst := make(map[string]string)
	changed := false
	for _, id := range f.Identifiers() {
		concrete, err := chain.ResolveIn(id, fmt.Sprintf("formula %q", f.text))
		if err != nil {
			return nil, err
		}
		subst[id] = concrete
		if concrete != id {
			changed = true
		}
	}
	if !changed {
		return f, nil
	}
	rendered := render(f.expr, subst)
	return Parse(rendered)
}

// check walks the tree and rejects anything outside the arithmetic
// subset: identifiers, numeric/string literals, unary +/-, binary
// arithmetic, parentheses, and calls to builtin functions.
func check(e syntax.Expr) error {
	switch n := e.(type) {
	case *syntax.Ident:
		return nil
	case *syntax.Literal:
		switch n.Token {
		case syntax.INT, syntax.FLOAT, syntax.STRING:
			return nil
		}
		return domain.ErrSpecification("unsupported literal %q in formula", n.Raw)
	case *syntax.ParenExpr:
		return check(n.X)
	case *syntax.UnaryExpr:
		if n.Op != syntax.PLUS && n.Op != syntax.MINUS {
			return domain.ErrSpecification("unsupported unary operator %s in formula", n.Op)
		}
		return check(n.X)
	case *syntax.BinaryExpr:
		switch n.Op {
		case syntax.PLUS, syntax.MINUS, syntax.STAR, syntax.SLASH,
			syntax.SLASHSLASH, syntax.PERCENT, syntax.STARSTAR:
		default:
			return domain.ErrSpecification("unsupported operator %s in formula", n.Op)
		}
		if err := check(n.X); err != nil {
			return err
		}
		return check(n.Y)
	case *syntax.CallExpr:
		fn, ok := n.Fn.(*syntax.Ident)
		if !ok || !builtins[fn.Name] {
			return domain.ErrSpecification("unsupported function call in formula")
		}
		for _, a := range n.Args {
			if err := check(a); err != nil {
				return err
			}
		}
		return nil
	default:
		return domain.ErrSpecification("unsupported expression construct %T in formula", e)
	}
}

// render reproduces the expression with identifiers substituted.
// Parenthesization is preserved through ParenExpr nodes.
func render(e syntax.Expr, subst map[string]string) string {
	switch n := e.(type) {
	case *syntax.Ident:
		if s, ok := subst[n.Name]; ok {
			return s
		}
		return n.Name
	case *syntax.Literal:
		if n.Raw != "" {
			return n.Raw
		}
		return fmt.Sprintf("%v", n.Value)
	case *syntax.ParenExpr:
		return "(" + render(n.X, subst) + ")"
	case *syntax.UnaryExpr:
		return n.Op.String() + render(n.X, subst)
	case *syntax.BinaryExpr:
		return render(n.X, subst) + " " + n.Op.String() + " " + render(n.Y, subst)
	case *syntax.CallExpr:
		s := render(n.Fn, subst) + "("
		for i, a := range n.Args {
			if i > 0 {
				s += ", "
			}
			s += render(a, subst)
		}
		return s + ")"
	default:
		return ""
	}
}
