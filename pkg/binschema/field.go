package binschema

import (
	"context"

	"github.com/twinfer/binschema/pkg/bitstream"
)

// Field is a declarative codec for one slot in a record. Parse consumes
// bytes from the reader and returns the slot's value; Write emits the value
// and returns the number of whole bytes written. Both receive the shared
// per-record Context for sibling references.
//
// A Field that can supply a value for an unset attribute additionally
// implements Defaulter; default and override are orthogonal and both may be
// absent.
type Field interface {
	Parse(ctx context.Context, r *bitstream.Reader, pc *Context) (any, error)
	Write(ctx context.Context, w *bitstream.Writer, pc *Context, value any) (int, error)
}

// Defaulter supplies a value for a field left unset at record construction.
type Defaulter interface {
	Default(pc *Context) (any, error)
}

// OverrideFunc replaces a field's value just before it is written. It
// receives the write context and the current value (the default when the
// attribute is unset, nil when there is no default either).
type OverrideFunc func(pc *Context, current any) (any, error)

// OverrideValue returns an OverrideFunc that always writes v.
func OverrideValue(v any) OverrideFunc {
	return func(*Context, any) (any, error) { return v, nil }
}

// FieldDef binds a name to a Field within a record schema, with optional
// construction default and write-time override.
type FieldDef struct {
	Name     string
	Field    Field
	Default  Spec
	Override OverrideFunc
}

// validator is implemented by fields that check their own configuration at
// schema construction.
type validator interface {
	validate() error
}

// orderInheritor is implemented by fields whose byte order falls back to the
// record default when not set explicitly.
type orderInheritor interface {
	inheritOrder(ByteOrder)
}

// sizeDependent is implemented by fields whose length or count references a
// sibling field by name; the engine installs the auto-override on that
// sibling at schema construction. measure reports the value the sibling
// should carry for a given value of this field.
type sizeDependent interface {
	sizeRef() (string, bool)
	measure(value any) (int64, error)
}

// ctyper customises a field's one-line rendering in Schema.Describe.
type ctyper interface {
	ctype(name string) string
}
