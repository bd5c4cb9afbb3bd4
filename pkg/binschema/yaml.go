package binschema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is a declarative YAML schema: meta, an ordered field sequence,
// named nested types and named enumerations. It is the document-based
// alternative to declaring a Schema in code.
type Document struct {
	Meta  DocMeta                     `yaml:"meta"`
	Seq   []DocField                  `yaml:"seq"`
	Types map[string]DocType          `yaml:"types"`
	Enums map[string]map[int64]string `yaml:"enums"`
	Doc   string                      `yaml:"doc"`
}

// DocMeta carries document-level defaults.
type DocMeta struct {
	ID       string `yaml:"id"`
	Endian   string `yaml:"endian"`   // "be" or "le"
	Encoding string `yaml:"encoding"` // default text encoding
}

// DocType is a named nested record in a document.
type DocType struct {
	Seq []DocField `yaml:"seq"`
	Doc string     `yaml:"doc"`
}

// DocField is one field declaration in a document sequence.
type DocField struct {
	ID         string            `yaml:"id"`
	Type       string            `yaml:"type"`
	Size       any               `yaml:"size,omitempty"` // int, sibling name, or expression
	SizeEOS    bool              `yaml:"size-eos,omitempty"`
	IfExpr     string            `yaml:"if,omitempty"`
	Contents   any               `yaml:"contents,omitempty"` // string or byte list
	Terminator any               `yaml:"terminator,omitempty"`
	PadRight   any               `yaml:"pad-right,omitempty"`
	Encoding   string            `yaml:"encoding,omitempty"`
	Repeat     string            `yaml:"repeat,omitempty"` // "eos" or "expr"
	RepeatExpr any               `yaml:"repeat-expr,omitempty"`
	Enum       string            `yaml:"enum,omitempty"`
	SwitchOn   string            `yaml:"switch-on,omitempty"`
	Cases      map[string]string `yaml:"cases,omitempty"`
}

// FromYAML builds a Schema from a YAML document.
func FromYAML(data []byte, opts ...Option) (*Schema, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return doc.Build(opts...)
}

// Build compiles the document into a Schema.
func (d *Document) Build(opts ...Option) (*Schema, error) {
	if d.Meta.ID == "" {
		return nil, fmt.Errorf("%w: document has no meta.id", ErrConfig)
	}
	b := &docBuilder{doc: d, enums: make(map[string]*Enum, len(d.Enums))}
	for name, members := range d.Enums {
		byName := make(map[string]int64, len(members))
		for v, n := range members {
			byName[n] = v
		}
		b.enums[name] = NewEnum(name, byName)
	}
	switch d.Meta.Endian {
	case "", "be":
		opts = append([]Option{WithByteOrder(BigEndian)}, opts...)
	case "le":
		opts = append([]Option{WithByteOrder(LittleEndian)}, opts...)
	default:
		return nil, fmt.Errorf("%w: meta.endian %q", ErrConfig, d.Meta.Endian)
	}
	return b.buildRecord(d.Meta.ID, d.Seq, opts)
}

type docBuilder struct {
	doc   *Document
	enums map[string]*Enum
	stack []string
}

func (b *docBuilder) buildRecord(name string, seq []DocField, opts []Option) (*Schema, error) {
	for _, n := range b.stack {
		if n == name {
			return nil, fmt.Errorf("%w: circular type reference %q", ErrConfig, name)
		}
	}
	b.stack = append(b.stack, name)
	defer func() { b.stack = b.stack[:len(b.stack)-1] }()

	defs := make([]FieldDef, 0, len(seq))
	for _, df := range seq {
		def, err := b.buildField(df)
		if err != nil {
			return nil, fmt.Errorf("field %q of %q: %w", df.ID, name, err)
		}
		defs = append(defs, def)
	}
	return New(name, defs, opts...)
}

func (b *docBuilder) buildField(df DocField) (FieldDef, error) {
	if df.ID == "" {
		return FieldDef{}, fmt.Errorf("%w: field has no id", ErrConfig)
	}
	field, err := b.buildCodec(df)
	if err != nil {
		return FieldDef{}, err
	}
	if df.Enum != "" {
		enum, ok := b.enums[df.Enum]
		if !ok {
			return FieldDef{}, fmt.Errorf("%w: unknown enum %q", ErrConfig, df.Enum)
		}
		field = &EnumField{Base: field, Enum: enum}
	}
	if df.Repeat != "" {
		switch df.Repeat {
		case "eos":
			field = &ArrayField{Base: field, Length: Lit(-1)}
		case "expr":
			count, err := specFromAttr(df.RepeatExpr)
			if err != nil {
				return FieldDef{}, fmt.Errorf("repeat-expr: %w", err)
			}
			field = &ArrayField{Base: field, Count: count}
		default:
			return FieldDef{}, fmt.Errorf("%w: repeat %q", ErrConfig, df.Repeat)
		}
	}
	if df.IfExpr != "" {
		field = &ConditionalField{Base: field, Condition: Expr(df.IfExpr)}
	}
	return FieldDef{Name: df.ID, Field: field}, nil
}

var docBitType = regexp.MustCompile(`^b([1-9]\d*)$`)

func (b *docBuilder) buildCodec(df DocField) (Field, error) {
	if df.Contents != nil {
		magic, err := docBytes(df.Contents)
		if err != nil {
			return nil, fmt.Errorf("contents: %w", err)
		}
		return &MagicField{Magic: magic}, nil
	}
	if df.SwitchOn != "" {
		return b.buildSwitch(df)
	}

	size, err := docSizeSpec(df)
	if err != nil {
		return nil, err
	}

	switch {
	case df.Type == "" || df.Type == "bytes":
		f := &BytesField{Length: size}
		if df.Terminator != nil {
			term, err := docBytes(df.Terminator)
			if err != nil {
				return nil, fmt.Errorf("terminator: %w", err)
			}
			f.Terminator = term
		}
		if df.PadRight != nil {
			pad, err := docBytes(df.PadRight)
			if err != nil {
				return nil, fmt.Errorf("pad-right: %w", err)
			}
			f.Padding = pad
		}
		if f.Length.IsZero() && len(f.Terminator) == 0 {
			return nil, fmt.Errorf("%w: bytes field needs size, size-eos or terminator", ErrConfig)
		}
		return f, nil

	case df.Type == "str", df.Type == "strz":
		f := &StringField{Raw: BytesField{Length: size}, Encoding: b.docEncoding(df)}
		if df.Type == "strz" {
			f.Raw.Terminator = []byte{0}
		}
		if df.Terminator != nil {
			term, err := docBytes(df.Terminator)
			if err != nil {
				return nil, fmt.Errorf("terminator: %w", err)
			}
			f.Raw.Terminator = term
		}
		if df.PadRight != nil {
			pad, err := docBytes(df.PadRight)
			if err != nil {
				return nil, fmt.Errorf("pad-right: %w", err)
			}
			f.Raw.Padding = pad
		}
		if f.Raw.Length.IsZero() && len(f.Raw.Terminator) == 0 {
			return nil, fmt.Errorf("%w: string field needs size, size-eos or a terminator", ErrConfig)
		}
		return f, nil
	}

	if f, ok := docNumericType(df.Type); ok {
		return f, nil
	}
	if m := docBitType.FindStringSubmatch(df.Type); m != nil {
		n, _ := strconv.Atoi(m[1])
		return &BitsField{Length: Lit(n)}, nil
	}

	// user-defined type
	t, ok := b.doc.Types[df.Type]
	if !ok {
		return nil, fmt.Errorf("%w: unknown type %q", ErrConfig, df.Type)
	}
	sub, err := b.buildRecord(df.Type, t.Seq, b.recordOpts())
	if err != nil {
		return nil, err
	}
	return &StructureField{Schema: sub, Length: size}, nil
}

func (b *docBuilder) buildSwitch(df DocField) (Field, error) {
	cases := make(map[any]Field, len(df.Cases))
	var other Field
	for key, typeName := range df.Cases {
		cf, err := b.buildCodec(DocField{ID: df.ID, Type: typeName, Size: df.Size, Encoding: df.Encoding})
		if err != nil {
			return nil, fmt.Errorf("case %q: %w", key, err)
		}
		if key == "_" {
			other = cf
			continue
		}
		if n, err := strconv.ParseInt(key, 0, 64); err == nil {
			cases[n] = cf
		} else {
			cases[key] = cf
		}
	}
	if len(cases) == 0 && other == nil {
		return nil, fmt.Errorf("%w: switch-on with no cases", ErrConfig)
	}
	return &SwitchField{Switch: Expr(df.SwitchOn), Cases: cases, Other: other}, nil
}

func (b *docBuilder) recordOpts() []Option {
	if b.doc.Meta.Endian == "le" {
		return []Option{WithByteOrder(LittleEndian)}
	}
	return []Option{WithByteOrder(BigEndian)}
}

func (b *docBuilder) docEncoding(df DocField) string {
	if df.Encoding != "" {
		return df.Encoding
	}
	return b.doc.Meta.Encoding
}

// docNumericType maps kaitai-style numeric tokens (u1, u2le, s4be, f8, ...)
// to integer and float fields. Tokens without an endian suffix inherit the
// record order.
func docNumericType(token string) (Field, bool) {
	order := OrderUnset
	base := token
	switch {
	case strings.HasSuffix(token, "le"):
		order, base = LittleEndian, strings.TrimSuffix(token, "le")
	case strings.HasSuffix(token, "be"):
		order, base = BigEndian, strings.TrimSuffix(token, "be")
	}
	switch base {
	case "u1", "u2", "u3", "u4", "u8":
		n, _ := strconv.Atoi(base[1:])
		return &IntegerField{Length: n, Order: order}, true
	case "s1", "s2", "s4", "s8":
		n, _ := strconv.Atoi(base[1:])
		return &IntegerField{Length: n, Order: order, Signed: true}, true
	case "f2":
		return &StructField{Format: FormatFloat16, Order: order}, true
	case "f4":
		return &StructField{Format: FormatFloat32, Order: order}, true
	case "f8":
		return &StructField{Format: FormatFloat64, Order: order}, true
	}
	return nil, false
}

var docIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// docSizeSpec resolves the size attribute: absent, a literal, a sibling
// name, or an expression. size-eos maps to a negative length.
func docSizeSpec(df DocField) (Spec, error) {
	if df.SizeEOS {
		if df.Size != nil {
			return Spec{}, fmt.Errorf("%w: both size and size-eos", ErrConfig)
		}
		return Lit(-1), nil
	}
	if df.Size == nil {
		return Spec{}, nil
	}
	return specFromAttr(df.Size)
}

func specFromAttr(v any) (Spec, error) {
	switch t := v.(type) {
	case nil:
		return Spec{}, fmt.Errorf("%w: missing attribute", ErrConfig)
	case int:
		return Lit(t), nil
	case int64:
		return Lit(t), nil
	case string:
		if docIdent.MatchString(t) {
			return Ref(t), nil
		}
		return Expr(t), nil
	default:
		return Spec{}, fmt.Errorf("%w: attribute %v of type %T", ErrConfig, v, v)
	}
}

// docBytes converts a contents/terminator/padding attribute — a string or a
// list of byte values — to bytes.
func docBytes(v any) ([]byte, error) {
	switch t := v.(type) {
	case string:
		return []byte(t), nil
	case int:
		if t < 0 || t > 255 {
			return nil, fmt.Errorf("%w: byte value %d", ErrConfig, t)
		}
		return []byte{byte(t)}, nil
	case []any:
		out := make([]byte, 0, len(t))
		for _, e := range t {
			n, err := toInt64(e)
			if err != nil || n < 0 || n > 255 {
				return nil, fmt.Errorf("%w: byte value %v", ErrConfig, e)
			}
			out = append(out, byte(n))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: byte sequence %v of type %T", ErrConfig, v, v)
	}
}
