package binschema

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Spec is a dynamic field attribute: the uniform mechanism by which a
// length, count, condition or switch key may be a literal, a reference to a
// sibling field by name, a callable, or a compiled expression. Resolve
// evaluates it against the current parsing context.
type Spec struct {
	kind specKind
	lit  any
	ref  string
	fn0  func() any
	fn   func(*Context) (any, error)
	prog *exprProgram
}

type specKind int

const (
	specUnset specKind = iota
	specLit
	specRef
	specFn0
	specFn
	specExpr
)

type exprProgram struct {
	src  string
	once sync.Once
	prog *vm.Program
	err  error
}

// Lit is a literal attribute value.
func Lit(v any) Spec { return Spec{kind: specLit, lit: v} }

// Ref resolves the attribute from the named sibling field.
func Ref(name string) Spec { return Spec{kind: specRef, ref: name} }

// Fn0 resolves the attribute by calling f with no arguments.
func Fn0(f func() any) Spec { return Spec{kind: specFn0, fn0: f} }

// Fn resolves the attribute by calling f with the parsing context.
func Fn(f func(*Context) (any, error)) Spec { return Spec{kind: specFn, fn: f} }

// Expr resolves the attribute by evaluating src against the parsing
// context's fields (with _parent and _root for explicit access). The source
// is compiled once, on first use.
func Expr(src string) Spec {
	return Spec{kind: specExpr, prog: &exprProgram{src: src}}
}

// IsZero reports whether the attribute was left unset.
func (s Spec) IsZero() bool { return s.kind == specUnset }

// RefName returns the sibling field name when the spec is a Ref.
func (s Spec) RefName() (string, bool) {
	if s.kind == specRef {
		return s.ref, true
	}
	return "", false
}

// Resolve evaluates the attribute against ctx.
func (s Spec) Resolve(ctx *Context) (any, error) {
	switch s.kind {
	case specLit:
		return s.lit, nil
	case specRef:
		return ctx.Get(s.ref)
	case specFn0:
		return s.fn0(), nil
	case specFn:
		return s.fn(ctx)
	case specExpr:
		s.prog.once.Do(func() {
			// The env makes context fields such as "len" or "count" shadow
			// expr's builtin functions of the same name.
			s.prog.prog, s.prog.err = expr.Compile(s.prog.src, expr.Env(ctx.env()), expr.AllowUndefinedVariables())
		})
		if s.prog.err != nil {
			return nil, fmt.Errorf("%w: compiling expression %q: %v", ErrConfig, s.prog.src, s.prog.err)
		}
		out, err := expr.Run(s.prog.prog, ctx.env())
		if err != nil {
			return nil, fmt.Errorf("evaluating expression %q: %w", s.prog.src, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: attribute is unset", ErrConfig)
	}
}

func (s Spec) resolveInt(ctx *Context) (int64, error) {
	v, err := s.Resolve(ctx)
	if err != nil {
		return 0, err
	}
	n, err := toInt64(v)
	if err != nil {
		return 0, fmt.Errorf("%w: attribute is not a number: %v", ErrConfig, err)
	}
	return n, nil
}

func (s Spec) resolveBool(ctx *Context) (bool, error) {
	v, err := s.Resolve(ctx)
	if err != nil {
		return false, err
	}
	return isTruthy(v), nil
}

// toInt64 widens any integer-shaped value to int64.
func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n > 1<<63-1 {
			return 0, fmt.Errorf("value %d overflows int64", n)
		}
		return int64(n), nil
	case float64:
		if n != float64(int64(n)) {
			return 0, fmt.Errorf("value %v is not a whole number", n)
		}
		return int64(n), nil
	case EnumMember:
		return n.Value(), nil
	default:
		return 0, fmt.Errorf("value of type %T is not an integer", v)
	}
}

func toUint64(v any) (uint64, error) {
	if n, ok := v.(uint64); ok {
		return n, nil
	}
	n, err := toInt64(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("value %d is negative", n)
	}
	return uint64(n), nil
}

// isTruthy defines attribute truthiness: false for nil, numeric zero, empty
// string, empty byte or value sequence; true otherwise. Note that a non-empty
// byte string is true even when it contains only null bytes.
func isTruthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case []byte:
		return len(t) > 0
	case []any:
		return len(t) > 0
	case float32:
		return t != 0
	case float64:
		return t != 0
	}
	if n, err := toInt64(v); err == nil {
		return n != 0
	}
	return true
}
