package binschema

import (
	"context"
	"fmt"

	"github.com/twinfer/binschema/pkg/bitstream"
)

// SwitchField dispatches to one of several case fields based on a resolved
// key. Integer keys are compared widened to int64, so a parsed uint8 matches
// a case declared with a plain int. When no case matches, Other is used;
// with no Other the field fails with ErrSwitchNoMatch.
type SwitchField struct {
	Cases  map[any]Field
	Switch Spec
	Other  Field
}

// Switch declares a dispatching field.
func Switch(on Spec, cases map[any]Field) *SwitchField {
	return &SwitchField{Switch: on, Cases: cases}
}

// WithOther sets the fallback field and returns the switch.
func (f *SwitchField) WithOther(other Field) *SwitchField {
	f.Other = other
	return f
}

func (f *SwitchField) validate() error {
	if f.Switch.IsZero() {
		return fmt.Errorf("%w: switch needs a key attribute", ErrConfig)
	}
	if len(f.Cases) == 0 {
		return fmt.Errorf("%w: switch needs at least one case", ErrConfig)
	}
	for k, field := range f.Cases {
		if field == nil {
			return fmt.Errorf("%w: switch case %v has no field", ErrConfig, k)
		}
	}
	return nil
}

func (f *SwitchField) inheritOrder(order ByteOrder) {
	for _, field := range f.Cases {
		if inh, ok := field.(orderInheritor); ok {
			inh.inheritOrder(order)
		}
	}
	if inh, ok := f.Other.(orderInheritor); ok {
		inh.inheritOrder(order)
	}
}

func (f *SwitchField) ctype(name string) string {
	return fmt.Sprintf("switch %s", name)
}

func (f *SwitchField) dispatch(pc *Context) (Field, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	key, err := f.Switch.Resolve(pc)
	if err != nil {
		return nil, err
	}
	want := normKey(key)
	for k, field := range f.Cases {
		if normKey(k) == want {
			return field, nil
		}
	}
	if f.Other != nil {
		return f.Other, nil
	}
	return nil, fmt.Errorf("%w: key %v and no other case", ErrSwitchNoMatch, key)
}

func (f *SwitchField) Parse(ctx context.Context, r *bitstream.Reader, pc *Context) (any, error) {
	field, err := f.dispatch(pc)
	if err != nil {
		return nil, err
	}
	return field.Parse(ctx, r, pc)
}

func (f *SwitchField) Write(ctx context.Context, w *bitstream.Writer, pc *Context, value any) (int, error) {
	field, err := f.dispatch(pc)
	if err != nil {
		return 0, err
	}
	return field.Write(ctx, w, pc, value)
}

// normKey folds a switch key to a comparable canonical form: integers widen
// to int64, bytes fold to string, everything else compares as-is.
func normKey(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case EnumMember:
		return t
	case bool, string:
		return t
	}
	if n, err := toInt64(v); err == nil {
		return n
	}
	return v
}
