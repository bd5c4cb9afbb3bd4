package binschema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMagicParseWrite(t *testing.T) {
	f := Magic([]byte("\x89PNG"))

	v, err := parseField(t, f, []byte("\x89PNGrest"))
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), v)

	_, err = parseField(t, f, []byte("RIFF"))
	assert.ErrorIs(t, err, ErrMagicMismatch)

	out, err := writeField(t, f, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), out)

	_, err = writeField(t, f, []byte("RIFF"))
	assert.ErrorIs(t, err, ErrMagicMismatch)

	lenient := &MagicField{Magic: []byte("\x89PNG"), Lenient: true}
	out, err = writeField(t, lenient, []byte("RIFF"))
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), out, "the declared magic wins over the value")
}

func TestConditionalTruthiness(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		present bool
	}{
		{"nil", nil, false},
		{"zero", uint64(0), false},
		{"nonzero", uint64(5), true},
		{"empty bytes", []byte{}, false},
		{"null byte", []byte{0}, true},
		{"empty string", "", false},
		{"string", "x", true},
		{"false", false, false},
		{"empty list", []any{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &ConditionalField{Base: UInt8(), Condition: Lit(tt.value)}
			v, err := parseField(t, f, []byte{0x2a})
			require.NoError(t, err)
			if tt.present {
				assert.Equal(t, uint64(42), v)
			} else {
				assert.Nil(t, v)
			}
		})
	}
}

func TestSwitchFallback(t *testing.T) {
	f := &SwitchField{
		Switch: Lit(9),
		Cases:  map[any]Field{1: UInt8()},
		Other:  UInt16().Big(),
	}
	v, err := parseField(t, f, []byte{0x01, 0x02})
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0102), v)
}

func TestSwitchNoMatch(t *testing.T) {
	f := &SwitchField{
		Switch: Lit(9),
		Cases:  map[any]Field{1: UInt8()},
	}
	_, err := parseField(t, f, []byte{0x01})
	assert.ErrorIs(t, err, ErrSwitchNoMatch)
}

func TestSwitchWidenedIntegerKeys(t *testing.T) {
	// a parsed uint8 key matches a case declared with a plain int
	s := newTestSchema(t, "sw", []FieldDef{
		{Name: "tag", Field: UInt8()},
		{Name: "body", Field: &SwitchField{
			Switch: Ref("tag"),
			Cases:  map[any]Field{1: UInt8(), 2: UInt16().Big()},
		}},
	})
	rec, _, err := s.Unmarshal(context.Background(), []byte{0x02, 0x01, 0x00})
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0100), mustGet(t, rec, "body"))
}

func TestEnumLookup(t *testing.T) {
	color := NewEnum("color", map[string]int64{"red": 1, "green": 2})
	f := &EnumField{Base: UInt8(), Enum: color}

	v, err := parseField(t, f, []byte{0x02})
	require.NoError(t, err)
	m := v.(EnumMember)
	assert.Equal(t, "green", m.Name())
	assert.Equal(t, int64(2), m.Value())
	assert.True(t, m.Known())

	_, err = parseField(t, f, []byte{0x09})
	assert.ErrorIs(t, err, ErrEnumNotFound)
}

func TestEnumAllowUnknown(t *testing.T) {
	color := NewEnum("color", map[string]int64{"red": 1}, AllowUnknown())
	f := &EnumField{Base: UInt8(), Enum: color}

	v, err := parseField(t, f, []byte{0x09})
	require.NoError(t, err)
	m := v.(EnumMember)
	assert.False(t, m.Known())
	assert.Equal(t, int64(9), m.Value())

	out, err := writeField(t, f, m)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x09}, out)
}

func TestEnumFlagsDecompose(t *testing.T) {
	perm := NewEnum("perm", map[string]int64{"read": 1, "write": 2, "exec": 4}, Flags())
	f := &EnumField{Base: UInt8(), Enum: perm}

	v, err := parseField(t, f, []byte{0x05})
	require.NoError(t, err)
	m := v.(EnumMember)
	assert.Equal(t, "read|exec", m.Name())
	assert.Equal(t, int64(5), m.Value())

	out, err := writeField(t, f, m)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x05}, out)

	_, err = parseField(t, f, []byte{0x09})
	assert.ErrorIs(t, err, ErrEnumNotFound, "unknown bit 0x08 must not decompose")
}

func TestEnumWriteByName(t *testing.T) {
	color := NewEnum("color", map[string]int64{"red": 1})
	f := &EnumField{Base: UInt8(), Enum: color}

	out, err := writeField(t, f, "red")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, out)

	_, err = writeField(t, f, "blue")
	assert.ErrorIs(t, err, ErrEnumNotFound)
}

func TestArrayByLengthExact(t *testing.T) {
	f := &ArrayField{Base: UInt16().Big(), Length: Lit(4)}
	v, err := parseField(t, f, []byte{0, 1, 0, 2})
	require.NoError(t, err)
	assert.Equal(t, []any{uint64(1), uint64(2)}, v)
}

func TestArrayByLengthTrailingBytes(t *testing.T) {
	f := &ArrayField{Base: UInt16().Big(), Length: Lit(5)}
	_, err := parseField(t, f, []byte{0, 1, 0, 2, 9})
	assert.ErrorIs(t, err, ErrTrailingBytes)
}

func TestArrayNegativeLengthSwallowsBoundaryExhaustion(t *testing.T) {
	f := &ArrayField{Base: UInt16().Big(), Length: Lit(-1)}
	v, err := parseField(t, f, []byte{0, 1, 0, 2})
	require.NoError(t, err)
	assert.Equal(t, []any{uint64(1), uint64(2)}, v)
}

func TestArrayNegativeLengthMidElementExhaustionFails(t *testing.T) {
	pair := newTestSchema(t, "pair", []FieldDef{
		{Name: "a", Field: UInt8()},
		{Name: "b", Field: UInt8()},
	})
	f := &ArrayField{Base: &StructureField{Schema: pair}, Length: Lit(-1)}

	// 3 bytes: one full pair, then a pair that exhausts after its first byte
	_, err := parseField(t, f, []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrStreamExhausted)
}

func TestArrayWriteBoundExact(t *testing.T) {
	f := &ArrayField{Base: UInt16().Big(), Length: Lit(4)}
	out, err := writeField(t, f, []any{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 0, 2}, out)

	_, err = writeField(t, f, []any{1})
	assert.ErrorIs(t, err, ErrWriteUnderflow)

	_, err = writeField(t, f, []any{1, 2, 3})
	assert.ErrorIs(t, err, ErrWriteOverflow)
}

func TestArrayCountMismatchOnWrite(t *testing.T) {
	f := &ArrayField{Base: UInt8(), Count: Lit(2)}
	_, err := writeField(t, f, []any{1})
	assert.ErrorIs(t, err, ErrConfig)
}

func TestArrayBothCountAndLengthRejected(t *testing.T) {
	_, err := New("x", []FieldDef{
		{Name: "a", Field: &ArrayField{Base: UInt8(), Count: Lit(1), Length: Lit(1)}},
	})
	assert.ErrorIs(t, err, ErrConfig)
}

func TestStructureDefaultIsEmptyRecord(t *testing.T) {
	inner := newTestSchema(t, "inner", []FieldDef{
		{Name: "v", Field: UInt8(), Default: Lit(7)},
	})
	s := newTestSchema(t, "outer", []FieldDef{
		{Name: "body", Field: &StructureField{Schema: inner}},
	})
	rec, err := s.Record(nil)
	require.NoError(t, err)
	out, err := s.Marshal(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x07}, out)
}

func TestStructureWriteCapStrict(t *testing.T) {
	inner := newTestSchema(t, "inner", []FieldDef{
		{Name: "v", Field: UInt8()},
	})
	f := &StructureField{Schema: inner, Length: Lit(3)}
	rec, err := inner.Record(map[string]any{"v": 1})
	require.NoError(t, err)

	_, err = writeField(t, f, rec)
	assert.ErrorIs(t, err, ErrWriteUnderflow)

	lenient := &StructureField{Schema: inner, Length: Lit(3), Lenient: true}
	out, err := writeField(t, lenient, rec)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 0}, out)
}
