package binschema

import (
	"fmt"
	"log/slog"
	"strings"
)

// ByteOrder selects the byte order of multi-byte numeric fields. A field
// with OrderUnset inherits the record default; if neither is set, parse and
// write fail with ErrConfig.
type ByteOrder int

const (
	OrderUnset ByteOrder = iota
	BigEndian
	LittleEndian
)

func (o ByteOrder) String() string {
	switch o {
	case BigEndian:
		return "big"
	case LittleEndian:
		return "little"
	default:
		return "unset"
	}
}

// Schema is an immutable ordered list of named fields: the unit of parse and
// write. Construct with New; a Schema must not be modified afterwards.
type Schema struct {
	name   string
	fields []FieldDef
	index  map[string]int
	order  ByteOrder
	logger *slog.Logger
}

// Option configures a Schema.
type Option func(*Schema)

// WithByteOrder sets the record default byte order inherited by numeric
// fields that do not set one explicitly.
func WithByteOrder(order ByteOrder) Option {
	return func(s *Schema) { s.order = order }
}

// WithLogger sets the logger used by the engine. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Schema) { s.logger = logger }
}

// New builds a record schema from an ordered field list. It validates field
// configuration, propagates the record byte order into numeric fields, and
// performs the one-time auto-override rewrite: when a field's length or
// count references a sibling by name and that sibling carries no explicit
// override, the sibling is given an override computed from the dependent
// field's value.
func New(name string, fields []FieldDef, opts ...Option) (*Schema, error) {
	s := &Schema{
		name:   name,
		fields: make([]FieldDef, len(fields)),
		index:  make(map[string]int, len(fields)),
		logger: slog.Default(),
	}
	copy(s.fields, fields)
	for _, opt := range opts {
		opt(s)
	}

	for i, def := range s.fields {
		if def.Name == "" {
			return nil, fmt.Errorf("%w: field %d of %q has no name", ErrConfig, i, name)
		}
		if def.Field == nil {
			return nil, fmt.Errorf("%w: field %q of %q has no codec", ErrConfig, def.Name, name)
		}
		if _, dup := s.index[def.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate field name %q in %q", ErrConfig, def.Name, name)
		}
		s.index[def.Name] = i

		if v, ok := def.Field.(validator); ok {
			if err := v.validate(); err != nil {
				return nil, fmt.Errorf("field %q of %q: %w", def.Name, name, err)
			}
		}
		if inh, ok := def.Field.(orderInheritor); ok && s.order != OrderUnset {
			inh.inheritOrder(s.order)
		}
	}

	// Auto-override wiring. The referenced sibling must precede the
	// dependent field in declaration order.
	for i, def := range s.fields {
		dep, ok := def.Field.(sizeDependent)
		if !ok {
			continue
		}
		ref, ok := dep.sizeRef()
		if !ok {
			continue
		}
		j, found := s.index[ref]
		if !found {
			return nil, fmt.Errorf("%w: field %q of %q references unknown sibling %q", ErrConfig, def.Name, name, ref)
		}
		if j >= i {
			return nil, fmt.Errorf("%w: field %q of %q references sibling %q which does not precede it", ErrConfig, def.Name, name, ref)
		}
		if s.fields[j].Override != nil {
			continue
		}
		depName := def.Name
		s.fields[j].Override = func(pc *Context, current any) (any, error) {
			if current != nil {
				return current, nil
			}
			v, err := pc.Get(depName)
			if err != nil {
				return nil, err
			}
			return dep.measure(v)
		}
	}

	return s, nil
}

// Name returns the record name used in error paths.
func (s *Schema) Name() string { return s.name }

// Len returns the number of declared fields.
func (s *Schema) Len() int { return len(s.fields) }

// Fields returns the field declarations in stream order.
func (s *Schema) Fields() []FieldDef {
	out := make([]FieldDef, len(s.fields))
	copy(out, s.fields)
	return out
}

// Describe renders the schema one line per field, with C-like type names
// where a field declares one.
func (s *Schema) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "struct %s {\n", s.name)
	for _, def := range s.fields {
		if ct, ok := def.Field.(ctyper); ok {
			fmt.Fprintf(&b, "  %s\n", ct.ctype(def.Name))
		} else {
			fmt.Fprintf(&b, "  %T %s\n", def.Field, def.Name)
		}
	}
	b.WriteString("}")
	return b.String()
}
