package binschema

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/twinfer/binschema/pkg/bitstream"
)

// Format selects the fixed binary layout of a StructField.
type Format int

const (
	FormatChar Format = iota // one byte, returned as a 1-byte slice
	FormatInt8
	FormatUint8
	FormatBool
	FormatInt16
	FormatUint16
	FormatInt32
	FormatUint32
	FormatLong  // 4 bytes, signed
	FormatUlong // 4 bytes, unsigned
	FormatInt64
	FormatUint64
	FormatNative  // platform word, signed
	FormatUnative // platform word, unsigned
	FormatFloat16
	FormatFloat32
	FormatFloat64
)

var formatNames = map[Format]string{
	FormatChar: "char", FormatInt8: "int8", FormatUint8: "uint8",
	FormatBool: "bool", FormatInt16: "int16", FormatUint16: "uint16",
	FormatInt32: "int32", FormatUint32: "uint32",
	FormatLong: "long", FormatUlong: "ulong",
	FormatInt64: "int64", FormatUint64: "uint64",
	FormatNative: "native", FormatUnative: "unative",
	FormatFloat16: "float16", FormatFloat32: "float32", FormatFloat64: "float64",
}

func (f Format) String() string {
	if n, ok := formatNames[f]; ok {
		return n
	}
	return fmt.Sprintf("format(%d)", int(f))
}

func (f Format) width() int {
	switch f {
	case FormatChar, FormatInt8, FormatUint8, FormatBool:
		return 1
	case FormatInt16, FormatUint16, FormatFloat16:
		return 2
	case FormatInt32, FormatUint32, FormatLong, FormatUlong, FormatFloat32:
		return 4
	case FormatInt64, FormatUint64, FormatFloat64:
		return 8
	case FormatNative, FormatUnative:
		return strconv.IntSize / 8
	default:
		return 0
	}
}

func (f Format) signed() bool {
	switch f {
	case FormatInt8, FormatInt16, FormatInt32, FormatLong, FormatInt64, FormatNative:
		return true
	}
	return false
}

// StructField reads and writes one fixed-format scalar: the usual IEEE-754
// layouts for floats and two's complement for signed integers, in the
// selected byte order. With Multibyte set the field covers Count consecutive
// units and its value is a []any tuple.
type StructField struct {
	Format    Format
	Order     ByteOrder
	Multibyte bool
	Count     int
}

// Char declares a single raw byte, valued as a 1-byte slice.
func Char() *StructField { return &StructField{Format: FormatChar} }

// Boolean declares a single-byte boolean.
func Boolean() *StructField { return &StructField{Format: FormatBool} }

// Float16 declares an IEEE-754 half-precision float.
func Float16() *StructField { return &StructField{Format: FormatFloat16} }

// Float32 declares an IEEE-754 single-precision float.
func Float32() *StructField { return &StructField{Format: FormatFloat32} }

// Float64 declares an IEEE-754 double-precision float.
func Float64() *StructField { return &StructField{Format: FormatFloat64} }

// Big pins the field to big-endian and returns it.
func (f *StructField) Big() *StructField {
	f.Order = BigEndian
	return f
}

// Little pins the field to little-endian and returns it.
func (f *StructField) Little() *StructField {
	f.Order = LittleEndian
	return f
}

func (f *StructField) validate() error {
	if f.Format.width() == 0 {
		return fmt.Errorf("%w: unknown struct format %v", ErrConfig, f.Format)
	}
	if f.Multibyte && f.Count <= 0 {
		return fmt.Errorf("%w: multibyte struct field needs a positive count", ErrConfig)
	}
	if !f.Multibyte && f.Count > 1 {
		return fmt.Errorf("%w: count %d without multibyte", ErrConfig, f.Count)
	}
	return nil
}

func (f *StructField) inheritOrder(order ByteOrder) {
	if f.Order == OrderUnset {
		f.Order = order
	}
}

func (f *StructField) byteOrder() (ByteOrder, error) {
	if f.Order != OrderUnset {
		return f.Order, nil
	}
	switch f.Format {
	case FormatNative, FormatUnative:
		return nativeOrder(), nil
	}
	if f.Format.width() == 1 {
		return BigEndian, nil
	}
	return OrderUnset, fmt.Errorf("%w: struct field has no byte order and the record sets no default", ErrConfig)
}

func nativeOrder() ByteOrder {
	var buf [2]byte
	binary.NativeEndian.PutUint16(buf[:], 1)
	if buf[0] == 1 {
		return LittleEndian
	}
	return BigEndian
}

func (f *StructField) count() int {
	if f.Multibyte {
		return f.Count
	}
	return 1
}

func (f *StructField) ctype(name string) string {
	return fmt.Sprintf("%v %s", f.Format, name)
}

func (f *StructField) Parse(ctx context.Context, r *bitstream.Reader, pc *Context) (any, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	order, err := f.byteOrder()
	if err != nil {
		return nil, err
	}
	width := f.Format.width()
	raw, err := r.ReadBytes(width * f.count())
	if err != nil {
		return nil, err
	}
	values := make([]any, f.count())
	for i := range values {
		values[i] = f.decodeUnit(raw[i*width:(i+1)*width], order)
	}
	if f.Multibyte {
		return values, nil
	}
	return values[0], nil
}

func (f *StructField) Write(ctx context.Context, w *bitstream.Writer, pc *Context, value any) (int, error) {
	if err := f.validate(); err != nil {
		return 0, err
	}
	order, err := f.byteOrder()
	if err != nil {
		return 0, err
	}
	units := []any{value}
	if f.Multibyte {
		tuple, ok := value.([]any)
		if !ok {
			return 0, fmt.Errorf("multibyte struct field expects []any, got %T", value)
		}
		if len(tuple) != f.Count {
			return 0, fmt.Errorf("%w: %d values into %d slots", ErrWriteOverflow, len(tuple), f.Count)
		}
		units = tuple
	}
	out := make([]byte, 0, f.Format.width()*len(units))
	for _, u := range units {
		enc, err := f.encodeUnit(u, order)
		if err != nil {
			return 0, err
		}
		out = append(out, enc...)
	}
	return w.WriteBytes(out)
}

func (f *StructField) decodeUnit(raw []byte, order ByteOrder) any {
	switch f.Format {
	case FormatChar:
		return append([]byte{}, raw...)
	case FormatBool:
		return raw[0] != 0
	case FormatFloat16:
		return float64(float16FromBits(uint16(assemble(raw, order))))
	case FormatFloat32:
		return float64(math.Float32frombits(uint32(assemble(raw, order))))
	case FormatFloat64:
		return math.Float64frombits(assemble(raw, order))
	}
	u := assemble(raw, order)
	if f.Format.signed() {
		return signExtend(u, len(raw))
	}
	return u
}

func (f *StructField) encodeUnit(value any, order ByteOrder) ([]byte, error) {
	width := f.Format.width()
	switch f.Format {
	case FormatChar:
		raw, err := (&BytesField{Length: Lit(1)}).fromValue(value)
		if err != nil {
			return nil, err
		}
		if len(raw) != 1 {
			return nil, fmt.Errorf("%w: char wants exactly 1 byte, got %d", ErrWriteOverflow, len(raw))
		}
		return raw, nil
	case FormatBool:
		b := byte(0)
		if isTruthy(value) {
			b = 1
		}
		return []byte{b}, nil
	case FormatFloat16:
		v, err := toFloat64(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOverflow, err)
		}
		return disassemble(uint64(float16Bits(float32(v))), width, order), nil
	case FormatFloat32:
		v, err := toFloat64(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOverflow, err)
		}
		return disassemble(uint64(math.Float32bits(float32(v))), width, order), nil
	case FormatFloat64:
		v, err := toFloat64(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOverflow, err)
		}
		return disassemble(math.Float64bits(v), width, order), nil
	}
	intField := IntegerField{Length: width, Order: order, Signed: f.Format.signed()}
	u, err := intField.toWire(value)
	if err != nil {
		return nil, err
	}
	return disassemble(u, width, order), nil
}

func toFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	}
	if n, err := toInt64(value); err == nil {
		return float64(n), nil
	}
	return 0, fmt.Errorf("value of type %T is not a number", value)
}

// float16FromBits converts an IEEE-754 binary16 bit pattern to float32.
func float16FromBits(h uint16) float32 {
	sign := uint32(h>>15) << 31
	exp := uint32(h >> 10 & 0x1f)
	frac := uint32(h & 0x3ff)
	switch exp {
	case 0:
		if frac == 0 {
			return math.Float32frombits(sign)
		}
		// subnormal: renormalize
		e := uint32(127 - 15 + 1)
		for frac&0x400 == 0 {
			frac <<= 1
			e--
		}
		return math.Float32frombits(sign | e<<23 | (frac&0x3ff)<<13)
	case 0x1f:
		return math.Float32frombits(sign | 0xff<<23 | frac<<13)
	default:
		return math.Float32frombits(sign | (exp+127-15)<<23 | frac<<13)
	}
}

// float16Bits converts a float32 to the nearest IEEE-754 binary16 bit
// pattern, round-to-nearest-even.
func float16Bits(f float32) uint16 {
	b := math.Float32bits(f)
	sign := uint16(b >> 31 << 15)
	exp := int32(b>>23&0xff) - 127 + 15
	frac := b & 0x7fffff

	switch {
	case exp >= 0x1f:
		if int32(b>>23&0xff) == 0xff && frac != 0 {
			return sign | 0x1f<<10 | uint16(frac>>13) | 1 // NaN, keep payload nonzero
		}
		return sign | 0x1f<<10 // overflow to infinity
	case exp <= 0:
		if exp < -10 {
			return sign
		}
		frac |= 0x800000
		shift := uint32(14 - exp)
		half := frac >> shift
		if frac>>(shift-1)&1 == 1 && (half&1 == 1 || frac&((1<<(shift-1))-1) != 0) {
			half++
		}
		return sign | uint16(half)
	default:
		half := uint32(exp)<<10 | frac>>13
		if frac>>12&1 == 1 && (half&1 == 1 || frac&0xfff != 0) {
			half++
		}
		return sign | uint16(half)
	}
}
