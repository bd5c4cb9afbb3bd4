package binschema

import (
	"context"
	"fmt"

	"github.com/twinfer/binschema/pkg/bitstream"
)

// IntegerField reads and writes bounded integers: Length bytes, two's
// complement when Signed, in the given byte order. A field with OrderUnset
// inherits the record default; parse and write fail with ErrConfig when
// neither is set. Parsed values are int64 (signed) or uint64 (unsigned).
type IntegerField struct {
	Length int
	Order  ByteOrder
	Signed bool
}

// UInt8 declares an unsigned single-byte integer.
func UInt8() *IntegerField { return &IntegerField{Length: 1} }

// UInt16 declares an unsigned two-byte integer in the record byte order.
func UInt16() *IntegerField { return &IntegerField{Length: 2} }

// UInt24 declares an unsigned three-byte integer in the record byte order.
func UInt24() *IntegerField { return &IntegerField{Length: 3} }

// UInt32 declares an unsigned four-byte integer in the record byte order.
func UInt32() *IntegerField { return &IntegerField{Length: 4} }

// UInt64 declares an unsigned eight-byte integer in the record byte order.
func UInt64() *IntegerField { return &IntegerField{Length: 8} }

// Int8 declares a signed single-byte integer.
func Int8() *IntegerField { return &IntegerField{Length: 1, Signed: true} }

// Int16 declares a signed two-byte integer in the record byte order.
func Int16() *IntegerField { return &IntegerField{Length: 2, Signed: true} }

// Int32 declares a signed four-byte integer in the record byte order.
func Int32() *IntegerField { return &IntegerField{Length: 4, Signed: true} }

// Int64 declares a signed eight-byte integer in the record byte order.
func Int64() *IntegerField { return &IntegerField{Length: 8, Signed: true} }

// Big pins the field to big-endian and returns it.
func (f *IntegerField) Big() *IntegerField {
	f.Order = BigEndian
	return f
}

// Little pins the field to little-endian and returns it.
func (f *IntegerField) Little() *IntegerField {
	f.Order = LittleEndian
	return f
}

func (f *IntegerField) validate() error {
	if f.Length <= 0 || f.Length > 8 {
		return fmt.Errorf("%w: integer length %d outside [1, 8]", ErrConfig, f.Length)
	}
	return nil
}

func (f *IntegerField) inheritOrder(order ByteOrder) {
	if f.Order == OrderUnset {
		f.Order = order
	}
}

func (f *IntegerField) byteOrder() (ByteOrder, error) {
	if f.Order == OrderUnset {
		if f.Length == 1 {
			return BigEndian, nil
		}
		return OrderUnset, fmt.Errorf("%w: integer field has no byte order and the record sets no default", ErrConfig)
	}
	return f.Order, nil
}

func (f *IntegerField) ctype(name string) string {
	sign := "uint"
	if f.Signed {
		sign = "int"
	}
	return fmt.Sprintf("%s%d %s", sign, f.Length*8, name)
}

func (f *IntegerField) Parse(ctx context.Context, r *bitstream.Reader, pc *Context) (any, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	order, err := f.byteOrder()
	if err != nil {
		return nil, err
	}
	raw, err := r.ReadBytes(f.Length)
	if err != nil {
		return nil, err
	}
	u := assemble(raw, order)
	if f.Signed {
		return signExtend(u, f.Length), nil
	}
	return u, nil
}

func (f *IntegerField) Write(ctx context.Context, w *bitstream.Writer, pc *Context, value any) (int, error) {
	if err := f.validate(); err != nil {
		return 0, err
	}
	order, err := f.byteOrder()
	if err != nil {
		return 0, err
	}
	u, err := f.toWire(value)
	if err != nil {
		return 0, err
	}
	return w.WriteBytes(disassemble(u, f.Length, order))
}

// toWire range-checks value against the declared width and signedness and
// returns the raw two's-complement bit pattern.
func (f *IntegerField) toWire(value any) (uint64, error) {
	if value == nil {
		value = 0
	}
	bits := uint(f.Length * 8)
	if f.Signed {
		n, err := toInt64(value)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrOverflow, err)
		}
		if f.Length < 8 {
			min := -(int64(1) << (bits - 1))
			max := int64(1)<<(bits-1) - 1
			if n < min || n > max {
				return 0, fmt.Errorf("%w: %d does not fit in %d signed bytes", ErrOverflow, n, f.Length)
			}
		}
		return uint64(n) & widthMask(f.Length), nil
	}
	u, err := toUint64(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrOverflow, err)
	}
	if f.Length < 8 && u > widthMask(f.Length) {
		return 0, fmt.Errorf("%w: %d does not fit in %d unsigned bytes", ErrOverflow, u, f.Length)
	}
	return u, nil
}

func widthMask(length int) uint64 {
	if length >= 8 {
		return ^uint64(0)
	}
	return (uint64(1) << (length * 8)) - 1
}

func assemble(raw []byte, order ByteOrder) uint64 {
	var u uint64
	if order == LittleEndian {
		for i := len(raw) - 1; i >= 0; i-- {
			u = u<<8 | uint64(raw[i])
		}
	} else {
		for _, b := range raw {
			u = u<<8 | uint64(b)
		}
	}
	return u
}

func disassemble(u uint64, length int, order ByteOrder) []byte {
	out := make([]byte, length)
	for i := 0; i < length; i++ {
		b := byte(u >> (8 * i))
		if order == LittleEndian {
			out[i] = b
		} else {
			out[length-1-i] = b
		}
	}
	return out
}

func signExtend(u uint64, length int) int64 {
	shift := uint(64 - length*8)
	return int64(u<<shift) >> shift
}
