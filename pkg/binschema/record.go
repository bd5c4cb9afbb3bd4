package binschema

import (
	"fmt"
	"strings"
)

// Record holds named field values for one schema. Records are created by
// parsing or by explicit construction; unset attributes resolve to their
// field's default at access time.
type Record struct {
	schema *Schema
	values map[string]any
}

// Record constructs a record with the given field values. Unknown names are
// rejected; unset fields resolve lazily to their defaults.
func (s *Schema) Record(values map[string]any) (*Record, error) {
	rec := &Record{schema: s, values: make(map[string]any, len(values))}
	for name, v := range values {
		if _, ok := s.index[name]; !ok {
			return nil, fmt.Errorf("%w: %q is not a field of %q", ErrUnknownField, name, s.name)
		}
		rec.values[name] = v
	}
	return rec, nil
}

// Schema returns the record's schema.
func (r *Record) Schema() *Schema { return r.schema }

// Get returns the value of the named field. An unset field resolves to its
// declaration default, then to the field codec's own default, then to nil.
func (r *Record) Get(name string) (any, error) {
	i, ok := r.schema.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a field of %q", ErrUnknownField, name, r.schema.name)
	}
	if v, ok := r.values[name]; ok {
		return v, nil
	}
	def := r.schema.fields[i]
	pc := newContext(nil)
	pc.record = r
	if !def.Default.IsZero() {
		return def.Default.Resolve(pc)
	}
	if d, ok := def.Field.(Defaulter); ok {
		return d.Default(pc)
	}
	return nil, nil
}

// Set stores a value for the named field.
func (r *Record) Set(name string, value any) error {
	if _, ok := r.schema.index[name]; !ok {
		return fmt.Errorf("%w: %q is not a field of %q", ErrUnknownField, name, r.schema.name)
	}
	r.values[name] = value
	return nil
}

// Values returns a copy of the explicitly set field values.
func (r *Record) Values() map[string]any {
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// Equal reports whether two records have the same schema and equal resolved
// values for every declared field.
func (r *Record) Equal(other *Record) bool {
	if other == nil || r.schema != other.schema {
		return false
	}
	for _, def := range r.schema.fields {
		a, errA := r.Get(def.Name)
		b, errB := other.Get(def.Name)
		if errA != nil || errB != nil {
			return false
		}
		if !valueEqual(a, b) {
			return false
		}
	}
	return true
}

func valueEqual(a, b any) bool {
	switch av := a.(type) {
	case []byte:
		bv, ok := b.([]byte)
		return ok && string(av) == string(bv)
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !valueEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case *Record:
		bv, ok := b.(*Record)
		return ok && av.Equal(bv)
	}
	if an, err := toInt64(a); err == nil {
		if bn, err := toInt64(b); err == nil {
			return an == bn
		}
		return false
	}
	return a == b
}

// String renders the record as name(field=value, ...), in field order with
// unset trailing fields shown by their defaults.
func (r *Record) String() string {
	parts := make([]string, 0, len(r.schema.fields))
	for _, def := range r.schema.fields {
		v, err := r.Get(def.Name)
		if err != nil {
			parts = append(parts, fmt.Sprintf("%s=<%v>", def.Name, err))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%v", def.Name, v))
	}
	return fmt.Sprintf("%s(%s)", r.schema.name, strings.Join(parts, ", "))
}
