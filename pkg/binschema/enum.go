package binschema

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/twinfer/binschema/pkg/bitstream"
)

// Enum is a set of name to integer bindings backing an EnumField. A flag
// enum combines members with bitwise OR and decomposes parsed values back
// into their constituent flags.
type Enum struct {
	name         string
	byName       map[string]int64
	byValue      map[int64]string
	flags        bool
	allowUnknown bool
}

// EnumOption configures an Enum.
type EnumOption func(*Enum)

// Flags marks the enum as a flag-set whose values combine via bitwise OR.
func Flags() EnumOption {
	return func(e *Enum) { e.flags = true }
}

// AllowUnknown lets values outside the enumeration parse into an unnamed
// member instead of failing with ErrEnumNotFound.
func AllowUnknown() EnumOption {
	return func(e *Enum) { e.allowUnknown = true }
}

// NewEnum builds an enumeration from name to value bindings.
func NewEnum(name string, members map[string]int64, opts ...EnumOption) *Enum {
	e := &Enum{
		name:    name,
		byName:  make(map[string]int64, len(members)),
		byValue: make(map[int64]string, len(members)),
	}
	for n, v := range members {
		e.byName[n] = v
		e.byValue[v] = n
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the enumeration's name.
func (e *Enum) Name() string { return e.name }

// Member returns the named member. Unknown names are a declaration error
// and panic, like any other malformed schema literal.
func (e *Enum) Member(name string) EnumMember {
	v, ok := e.byName[name]
	if !ok {
		panic(fmt.Sprintf("binschema: enum %q has no member %q", e.name, name))
	}
	return EnumMember{enum: e, name: name, value: v}
}

// Lookup maps an integer to its member. Flag enums decompose the value into
// known flags; leftover bits fail with ErrEnumNotFound unless the enum
// allows unknown values.
func (e *Enum) Lookup(value int64) (EnumMember, error) {
	if name, ok := e.byValue[value]; ok {
		return EnumMember{enum: e, name: name, value: value}, nil
	}
	if e.flags {
		if member, ok := e.decompose(value); ok {
			return member, nil
		}
	}
	if e.allowUnknown {
		return EnumMember{enum: e, value: value}, nil
	}
	return EnumMember{}, fmt.Errorf("%w: %d in enum %q", ErrEnumNotFound, value, e.name)
}

// decompose splits value into ORed known flags, naming the result by its
// parts in ascending flag order.
func (e *Enum) decompose(value int64) (EnumMember, bool) {
	type flag struct {
		name  string
		value int64
	}
	known := make([]flag, 0, len(e.byName))
	for n, v := range e.byName {
		if v != 0 {
			known = append(known, flag{n, v})
		}
	}
	sort.Slice(known, func(i, j int) bool { return known[i].value < known[j].value })

	remaining := value
	var parts []string
	for _, f := range known {
		if remaining&f.value == f.value {
			parts = append(parts, f.name)
			remaining &^= f.value
		}
	}
	if remaining != 0 || len(parts) == 0 {
		if !e.allowUnknown {
			return EnumMember{}, false
		}
		return EnumMember{enum: e, value: value}, true
	}
	return EnumMember{enum: e, name: strings.Join(parts, "|"), value: value}, true
}

// EnumMember is one resolved binding of an enumeration. Members are
// comparable values, usable directly as switch-case keys.
type EnumMember struct {
	enum  *Enum
	name  string
	value int64
}

// Name returns the member's name; a decomposed flag member joins its parts
// with "|", and an unknown member of a permissive enum has an empty name.
func (m EnumMember) Name() string { return m.name }

// Value returns the member's integer value.
func (m EnumMember) Value() int64 { return m.value }

// Known reports whether the value mapped to declared members.
func (m EnumMember) Known() bool { return m.name != "" }

func (m EnumMember) String() string {
	if m.name == "" {
		return fmt.Sprintf("%s(%d)", m.enumName(), m.value)
	}
	return fmt.Sprintf("%s.%s", m.enumName(), m.name)
}

func (m EnumMember) enumName() string {
	if m.enum == nil {
		return "enum"
	}
	return m.enum.name
}

// EnumField parses an integer through its base field and maps it to an
// enumeration member; writing maps the member back and delegates to the
// base.
type EnumField struct {
	Base Field
	Enum *Enum
}

// Enumerated declares an integer-backed enumeration field.
func Enumerated(base Field, enum *Enum) *EnumField {
	return &EnumField{Base: base, Enum: enum}
}

func (f *EnumField) validate() error {
	if f.Base == nil || f.Enum == nil {
		return fmt.Errorf("%w: enum field needs a base field and an enum", ErrConfig)
	}
	return nil
}

func (f *EnumField) inheritOrder(order ByteOrder) {
	if inh, ok := f.Base.(orderInheritor); ok {
		inh.inheritOrder(order)
	}
}

func (f *EnumField) ctype(name string) string {
	return fmt.Sprintf("enum %s %s", f.Enum.name, name)
}

func (f *EnumField) Parse(ctx context.Context, r *bitstream.Reader, pc *Context) (any, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	v, err := f.Base.Parse(ctx, r, pc)
	if err != nil {
		return nil, err
	}
	n, err := toInt64(v)
	if err != nil {
		return nil, fmt.Errorf("%w: enum base value: %v", ErrConfig, err)
	}
	return f.Enum.Lookup(n)
}

func (f *EnumField) Write(ctx context.Context, w *bitstream.Writer, pc *Context, value any) (int, error) {
	if err := f.validate(); err != nil {
		return 0, err
	}
	var n int64
	switch v := value.(type) {
	case nil:
		return 0, fmt.Errorf("%w: nil value for enum %q", ErrEnumNotFound, f.Enum.name)
	case EnumMember:
		n = v.value
	case string:
		m, ok := f.Enum.byName[v]
		if !ok {
			return 0, fmt.Errorf("%w: %q in enum %q", ErrEnumNotFound, v, f.Enum.name)
		}
		n = m
	default:
		var err error
		n, err = toInt64(value)
		if err != nil {
			return 0, fmt.Errorf("%w: enum value: %v", ErrEnumNotFound, err)
		}
	}
	return f.Base.Write(ctx, w, pc, n)
}
