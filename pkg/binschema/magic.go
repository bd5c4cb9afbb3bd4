package binschema

import (
	"bytes"
	"context"
	"fmt"

	"github.com/twinfer/binschema/pkg/bitstream"
)

// MagicField is a fixed, required byte sequence used as a format sentinel.
// Parse fails with ErrMagicMismatch when the bytes on the stream differ;
// write always emits the magic, validating a supplied value against it
// unless Lenient.
type MagicField struct {
	Magic   []byte
	Lenient bool
}

// Magic declares a fixed byte sequence.
func Magic(m []byte) *MagicField { return &MagicField{Magic: m} }

func (f *MagicField) validate() error {
	if len(f.Magic) == 0 {
		return fmt.Errorf("%w: empty magic", ErrConfig)
	}
	return nil
}

// Default returns the magic itself, so constructed records need not set it.
func (f *MagicField) Default(pc *Context) (any, error) {
	return append([]byte{}, f.Magic...), nil
}

func (f *MagicField) ctype(name string) string {
	return fmt.Sprintf("magic %s[%d]", name, len(f.Magic))
}

func (f *MagicField) Parse(ctx context.Context, r *bitstream.Reader, pc *Context) (any, error) {
	raw, err := r.ReadBytes(len(f.Magic))
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(raw, f.Magic) {
		return nil, fmt.Errorf("%w: expected %x, got %x", ErrMagicMismatch, f.Magic, raw)
	}
	return append([]byte{}, raw...), nil
}

func (f *MagicField) Write(ctx context.Context, w *bitstream.Writer, pc *Context, value any) (int, error) {
	if value != nil && !f.Lenient {
		raw, err := (&BytesField{Length: Lit(len(f.Magic))}).fromValue(value)
		if err != nil {
			return 0, err
		}
		if !bytes.Equal(raw, f.Magic) {
			return 0, fmt.Errorf("%w: value %x differs from declared magic %x", ErrMagicMismatch, raw, f.Magic)
		}
	}
	return w.WriteBytes(f.Magic)
}
