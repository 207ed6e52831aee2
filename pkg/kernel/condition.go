package kernel

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ConditionEvaluator evaluates Predicate trees against a Context.
// Evaluate is pure and total: malformed trees and missing variables
// both yield false, never an error (§4.1).
//
// The zero value is ready to use; it lazily builds an expr-lang
// program cache for the optional `expr` leaf (SPEC_FULL.md "expression
// predicate extension"), mirroring the reference architecture's
// cached condition evaluator.
type ConditionEvaluator struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// NewConditionEvaluator returns a ready-to-use evaluator.
func NewConditionEvaluator() *ConditionEvaluator {
	return &ConditionEvaluator{cache: make(map[string]*vm.Program)}
}

// Evaluate evaluates p against ctx. Never panics.
func (e *ConditionEvaluator) Evaluate(p *Predicate, ctx Context) bool {
	if p == nil {
		return false
	}

	switch {
	case p.And != nil:
		for _, child := range p.And {
			if !e.Evaluate(&child, ctx) {
				return false
			}
		}
		return true

	case p.Or != nil:
		for _, child := range p.Or {
			if e.Evaluate(&child, ctx) {
				return true
			}
		}
		return false

	case p.Not != nil:
		return !e.Evaluate(p.Not, ctx)

	case p.Expr != "":
		return e.evaluateExpr(p.Expr, ctx)

	case p.Var != "" && p.Equals != nil:
		val, ok := lookup(ctx, p.Var)
		if !ok {
			return false
		}
		return lenientEqual(val, *p.Equals)

	case p.Var != "" && p.Gt != nil:
		val, ok := lookup(ctx, p.Var)
		if !ok {
			return false
		}
		return compareNumeric(val, *p.Gt, func(a, b float64) bool { return a > b })

	case p.Var != "" && p.Lt != nil:
		val, ok := lookup(ctx, p.Var)
		if !ok {
			return false
		}
		return compareNumeric(val, *p.Lt, func(a, b float64) bool { return a < b })

	default:
		return false
	}
}

// evaluateExpr compiles (and caches) and runs an expr-lang boolean
// expression. A compile error, a runtime error, or a non-bool result
// all evaluate to false, preserving the never-throw contract.
func (e *ConditionEvaluator) evaluateExpr(source string, ctx Context) bool {
	program, err := e.compile(source)
	if err != nil {
		return false
	}

	env := make(map[string]any, len(ctx))
	for k, v := range ctx {
		env[k] = v
	}

	result, err := expr.Run(program, env)
	if err != nil {
		return false
	}
	b, ok := result.(bool)
	return ok && b
}

func (e *ConditionEvaluator) compile(source string) (*vm.Program, error) {
	e.mu.RLock()
	if p, ok := e.cache[source]; ok {
		e.mu.RUnlock()
		return p, nil
	}
	e.mu.RUnlock()

	program, err := expr.Compile(source, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.cache == nil {
		e.cache = make(map[string]*vm.Program)
	}
	e.cache[source] = program
	e.mu.Unlock()
	return program, nil
}

// lookup resolves a dotted variable path ("a.b.c") against ctx,
// walking nested maps. Any missing segment or type mismatch yields
// (nil, false) — never a panic.
func lookup(ctx Context, path string) (any, bool) {
	segments := strings.Split(path, ".")
	var cur any = map[string]any(ctx)
	for _, seg := range segments {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		v, ok := m[seg]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Context:
		return map[string]any(m), true
	default:
		return nil, false
	}
}

// lenientEqual compares two scalars leniently: strings compare
// case-insensitively, numbers compare by numeric value regardless of
// underlying Go type (int vs float64 from JSON decode), and everything
// else falls back to fmt-based string comparison.
func lenientEqual(a, b any) bool {
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return strings.EqualFold(as, bs)
		}
	}
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			return ab == bb
		}
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

// compareNumeric applies cmp to a and b after coercing both to
// float64. Non-numeric operands yield false.
func compareNumeric(a, b any, cmp func(a, b float64) bool) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return false
	}
	return cmp(af, bf)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
