package binschema

import (
	"context"
	"fmt"

	"github.com/twinfer/binschema/pkg/bitstream"
)

// ConditionalField wraps a base field that may or may not be present. When
// the condition resolves false the field's value is nil and no bytes are
// consumed or written. Truthiness follows isTruthy: notably, a non-empty
// byte string is true even when it holds a single null byte.
type ConditionalField struct {
	Base      Field
	Condition Spec
}

// If declares a field present only when condition is truthy.
func If(condition Spec, base Field) *ConditionalField {
	return &ConditionalField{Base: base, Condition: condition}
}

func (f *ConditionalField) validate() error {
	if f.Base == nil {
		return fmt.Errorf("%w: conditional needs a base field", ErrConfig)
	}
	if f.Condition.IsZero() {
		return fmt.Errorf("%w: conditional needs a condition", ErrConfig)
	}
	return nil
}

func (f *ConditionalField) inheritOrder(order ByteOrder) {
	if inh, ok := f.Base.(orderInheritor); ok {
		inh.inheritOrder(order)
	}
}

func (f *ConditionalField) ctype(name string) string {
	if ct, ok := f.Base.(ctyper); ok {
		return ct.ctype(name) + " (conditional)"
	}
	return fmt.Sprintf("%T %s (conditional)", f.Base, name)
}

func (f *ConditionalField) Parse(ctx context.Context, r *bitstream.Reader, pc *Context) (any, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	present, err := f.Condition.resolveBool(pc)
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	return f.Base.Parse(ctx, r, pc)
}

func (f *ConditionalField) Write(ctx context.Context, w *bitstream.Writer, pc *Context, value any) (int, error) {
	if err := f.validate(); err != nil {
		return 0, err
	}
	present, err := f.Condition.resolveBool(pc)
	if err != nil {
		return 0, err
	}
	if !present {
		return 0, nil
	}
	return f.Base.Write(ctx, w, pc, value)
}
