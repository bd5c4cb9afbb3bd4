package binschema

import (
	"bytes"
	"context"
	"fmt"

	"github.com/twinfer/binschema/pkg/bitstream"
)

// StructureField embeds a nested record. With Length set, the nested record
// parses inside a substream of that many bytes sliced from the parent — any
// unread tail is discarded, and a nested record that needs more bytes than
// the cap fails with ErrStreamExhausted. On write the serialized form must
// fit the cap; a shortfall is zero-padded when Lenient, ErrWriteUnderflow
// otherwise.
//
// The nested record's context chains to the parent's, so expressions inside
// it can reach enclosing fields through _parent and _root.
type StructureField struct {
	Schema  *Schema
	Length  Spec
	Lenient bool
}

// Nested declares an embedded record.
func Nested(schema *Schema) *StructureField { return &StructureField{Schema: schema} }

func (f *StructureField) validate() error {
	if f.Schema == nil {
		return fmt.Errorf("%w: structure field needs a schema", ErrConfig)
	}
	return nil
}

// Default returns an empty record of the nested schema.
func (f *StructureField) Default(pc *Context) (any, error) {
	if f.Schema == nil {
		return nil, fmt.Errorf("%w: structure field needs a schema", ErrConfig)
	}
	return f.Schema.Record(nil)
}

func (f *StructureField) ctype(name string) string {
	return fmt.Sprintf("struct %s %s", f.Schema.name, name)
}

func (f *StructureField) Parse(ctx context.Context, r *bitstream.Reader, pc *Context) (any, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	if f.Length.IsZero() {
		rec, _, err := f.Schema.parseWith(ctx, r, pc)
		return rec, err
	}
	length, err := f.Length.resolveInt(pc)
	if err != nil {
		return nil, err
	}
	if length < 0 {
		return nil, fmt.Errorf("%w: negative structure length %d", ErrConfig, length)
	}
	sub, err := r.Sub(int(length))
	if err != nil {
		return nil, err
	}
	rec, _, err := f.Schema.parseWith(ctx, sub, pc)
	return rec, err
}

func (f *StructureField) Write(ctx context.Context, w *bitstream.Writer, pc *Context, value any) (int, error) {
	if err := f.validate(); err != nil {
		return 0, err
	}
	rec, err := f.record(value)
	if err != nil {
		return 0, err
	}
	if f.Length.IsZero() {
		return f.Schema.writeWith(ctx, w, rec, pc)
	}
	length, err := f.Length.resolveInt(pc)
	if err != nil {
		return 0, err
	}
	var buf bytes.Buffer
	sw := bitstream.NewWriter(&buf)
	if _, err := f.Schema.writeWith(ctx, sw, rec, pc); err != nil {
		return 0, err
	}
	out := buf.Bytes()
	switch {
	case len(out) > int(length):
		return 0, fmt.Errorf("%w: nested record is %d bytes, cap is %d", ErrWriteOverflow, len(out), length)
	case len(out) < int(length):
		if !f.Lenient {
			return 0, fmt.Errorf("%w: nested record is %d bytes, cap is %d", ErrWriteUnderflow, len(out), length)
		}
		out = padTo(out, int(length), []byte{0})
	}
	return w.WriteBytes(out)
}

func (f *StructureField) record(value any) (*Record, error) {
	switch v := value.(type) {
	case nil:
		return f.Schema.Record(nil)
	case *Record:
		if v.schema != f.Schema {
			return nil, fmt.Errorf("%w: record of schema %q in structure field of %q", ErrConfig, v.schema.name, f.Schema.name)
		}
		return v, nil
	case map[string]any:
		return f.Schema.Record(v)
	default:
		return nil, fmt.Errorf("cannot write %T as a nested record", value)
	}
}
