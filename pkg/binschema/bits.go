package binschema

import (
	"context"
	"fmt"

	"github.com/twinfer/binschema/pkg/bitstream"
)

// BitsField reads and writes runs of Length bits, MSB-first within each
// byte, as unsigned integers. With Realign set, the stream skips to the next
// byte boundary after the read and zero-pads to it after the write.
//
// A record must not move from a mid-byte cursor into a byte-oriented field;
// the stream reports ErrMisalignedBits when that happens.
type BitsField struct {
	Length  Spec
	Realign bool
}

// Bits declares a run of n bits.
func Bits(n int) *BitsField { return &BitsField{Length: Lit(n)} }

// BitsRealigned declares a run of n bits followed by realignment to the next
// byte boundary.
func BitsRealigned(n int) *BitsField { return &BitsField{Length: Lit(n), Realign: true} }

func (f *BitsField) validate() error {
	if f.Length.IsZero() {
		return fmt.Errorf("%w: bits field needs a length", ErrConfig)
	}
	return nil
}

func (f *BitsField) ctype(name string) string {
	return fmt.Sprintf("bits %s", name)
}

func (f *BitsField) Parse(ctx context.Context, r *bitstream.Reader, pc *Context) (any, error) {
	n, err := f.bitCount(pc)
	if err != nil {
		return nil, err
	}
	v, err := r.ReadBits(n)
	if err != nil {
		return nil, err
	}
	if f.Realign {
		r.Realign()
	}
	return v, nil
}

func (f *BitsField) Write(ctx context.Context, w *bitstream.Writer, pc *Context, value any) (int, error) {
	n, err := f.bitCount(pc)
	if err != nil {
		return 0, err
	}
	if value == nil {
		value = 0
	}
	v, err := toUint64(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrOverflow, err)
	}
	if n < 64 && v >= 1<<uint(n) {
		return 0, fmt.Errorf("%w: %d does not fit in %d bits", ErrOverflow, v, n)
	}
	written, err := w.WriteBits(v, n)
	if err != nil {
		return written, err
	}
	if f.Realign {
		m, err := w.Realign(0)
		written += m
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

func (f *BitsField) bitCount(pc *Context) (int, error) {
	if err := f.validate(); err != nil {
		return 0, err
	}
	n, err := f.Length.resolveInt(pc)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > 64 {
		return 0, fmt.Errorf("%w: bit count %d outside [0, 64]", ErrConfig, n)
	}
	return int(n), nil
}
