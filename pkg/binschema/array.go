package binschema

import (
	"context"
	"errors"
	"fmt"

	"github.com/twinfer/binschema/pkg/bitstream"
)

// ArrayField repeats a base field. Exactly one of Count and Length must be
// set. Count repeats the base field that many times. Length bounds the
// elements to a byte region that must be consumed exactly; a negative
// length reads elements until the stream runs out at an element boundary.
type ArrayField struct {
	Base   Field
	Count  Spec
	Length Spec
}

// Repeat declares an array of count elements.
func Repeat(base Field, count Spec) *ArrayField {
	return &ArrayField{Base: base, Count: count}
}

// RepeatUntilEnd declares an array that consumes elements until the end of
// the stream.
func RepeatUntilEnd(base Field) *ArrayField {
	return &ArrayField{Base: base, Length: Lit(-1)}
}

func (f *ArrayField) validate() error {
	if f.Base == nil {
		return fmt.Errorf("%w: array needs a base field", ErrConfig)
	}
	if f.Count.IsZero() == f.Length.IsZero() {
		return fmt.Errorf("%w: array needs exactly one of count and length", ErrConfig)
	}
	return nil
}

func (f *ArrayField) sizeRef() (string, bool) { return f.Count.RefName() }

func (f *ArrayField) inheritOrder(order ByteOrder) {
	if inh, ok := f.Base.(orderInheritor); ok {
		inh.inheritOrder(order)
	}
}

func (f *ArrayField) measure(value any) (int64, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case []any:
		return int64(len(v)), nil
	default:
		return 0, fmt.Errorf("cannot count %T as an array", value)
	}
}

func (f *ArrayField) ctype(name string) string {
	return fmt.Sprintf("%T %s[]", f.Base, name)
}

func (f *ArrayField) Parse(ctx context.Context, r *bitstream.Reader, pc *Context) (any, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	if !f.Count.IsZero() {
		count, err := f.Count.resolveInt(pc)
		if err != nil {
			return nil, err
		}
		result := make([]any, 0, max(count, 0))
		for i := int64(0); i < count; i++ {
			v, err := f.Base.Parse(ctx, r, pc)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			result = append(result, v)
		}
		return result, nil
	}

	length, err := f.Length.resolveInt(pc)
	if err != nil {
		return nil, err
	}
	if length < 0 {
		// Read until the stream gives out at an element boundary; an
		// element that consumed bytes before exhausting still fails.
		var result []any
		for {
			start := r.Pos()
			v, err := f.Base.Parse(ctx, r, pc)
			if err != nil {
				if errors.Is(err, ErrStreamExhausted) && r.Pos() == start {
					return result, nil
				}
				return nil, fmt.Errorf("element %d: %w", len(result), err)
			}
			result = append(result, v)
		}
	}

	sub, err := r.Sub(int(length))
	if err != nil {
		return nil, err
	}
	var result []any
	for !sub.EOF() {
		v, err := f.Base.Parse(ctx, sub, pc)
		if err != nil {
			if errors.Is(err, ErrStreamExhausted) {
				return nil, fmt.Errorf("element %d crosses the %d-byte bound: %w", len(result), length, ErrTrailingBytes)
			}
			return nil, fmt.Errorf("element %d: %w", len(result), err)
		}
		result = append(result, v)
	}
	return result, nil
}

func (f *ArrayField) Write(ctx context.Context, w *bitstream.Writer, pc *Context, value any) (int, error) {
	if err := f.validate(); err != nil {
		return 0, err
	}
	var elems []any
	switch v := value.(type) {
	case nil:
	case []any:
		elems = v
	default:
		return 0, fmt.Errorf("cannot write %T as an array", value)
	}

	if !f.Count.IsZero() {
		count, err := f.Count.resolveInt(pc)
		if err != nil {
			return 0, err
		}
		if int64(len(elems)) != count {
			return 0, fmt.Errorf("%w: %d elements with declared count %d", ErrConfig, len(elems), count)
		}
	}

	total := 0
	for i, e := range elems {
		n, err := f.Base.Write(ctx, w, pc, e)
		total += n
		if err != nil {
			return total, fmt.Errorf("element %d: %w", i, err)
		}
	}

	if !f.Length.IsZero() {
		length, err := f.Length.resolveInt(pc)
		if err != nil {
			return total, err
		}
		if length >= 0 && int64(total) != length {
			kind := ErrWriteUnderflow
			if int64(total) > length {
				kind = ErrWriteOverflow
			}
			return total, fmt.Errorf("%w: elements wrote %d bytes into a %d-byte region", kind, total, length)
		}
	}
	return total, nil
}
