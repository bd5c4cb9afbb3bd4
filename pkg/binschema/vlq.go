package binschema

import (
	"context"
	"fmt"

	"github.com/twinfer/binschema/pkg/bitstream"
)

// VLQField reads and writes variable-length quantities: 7 payload bits per
// byte, big-endian group order, with the high bit marking continuation.
// Values are unsigned; writes use the minimal number of bytes.
type VLQField struct{}

// VLQ declares a variable-length quantity.
func VLQ() *VLQField { return &VLQField{} }

func (f *VLQField) ctype(name string) string {
	return fmt.Sprintf("vlq %s", name)
}

func (f *VLQField) Parse(ctx context.Context, r *bitstream.Reader, pc *Context) (any, error) {
	var result uint64
	for {
		raw, err := r.ReadBytes(1)
		if err != nil {
			return nil, err
		}
		b := raw[0]
		if result > ^uint64(0)>>7 {
			return nil, fmt.Errorf("%w: quantity exceeds 64 bits", ErrOverflow)
		}
		result = result<<7 | uint64(b&0x7f)
		if b&0x80 == 0 {
			return result, nil
		}
	}
}

func (f *VLQField) Write(ctx context.Context, w *bitstream.Writer, pc *Context, value any) (int, error) {
	if value == nil {
		value = 0
	}
	u, err := toUint64(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrOverflow, err)
	}
	// groups, most significant first, minimal count
	out := []byte{byte(u & 0x7f)}
	for u >>= 7; u > 0; u >>= 7 {
		out = append(out, byte(u&0x7f)|0x80)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return w.WriteBytes(out)
}
