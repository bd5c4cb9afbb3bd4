package binschema

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/twinfer/binschema/pkg/bitstream"
)

// BytesField reads and writes raw byte runs. Exactly how is governed by the
// combination of Length, Terminator, Step and Padding:
//
//   - Length only: read exactly Length bytes; a negative length reads to the
//     end of the stream. Padding, when set, is stripped from the tail in
//     whole units.
//   - Terminator only: read until the terminator, consuming it, scanning in
//     Step-byte chunks.
//   - Length and Terminator: read Length bytes, then cut at the terminator
//     found at a Step multiple within that buffer.
//
// The zero value of Lenient means strict: width violations and missing
// terminators are errors. When Lenient, a value of the wrong width is written
// as-is (zero-padded up to Length when a terminator is set and no Padding),
// and a read that finds no terminator returns the bytes it read.
type BytesField struct {
	Length     Spec
	Terminator []byte
	Step       int
	Padding    []byte
	Lenient    bool
}

// FixedBytes declares a run of exactly n bytes.
func FixedBytes(n int) *BytesField {
	return &BytesField{Length: Lit(n)}
}

// BytesUntil declares a run terminated by the given byte sequence.
func BytesUntil(terminator []byte) *BytesField {
	return &BytesField{Terminator: terminator}
}

func (f *BytesField) validate() error {
	if f.Length.IsZero() && len(f.Terminator) == 0 {
		return fmt.Errorf("%w: bytes field needs a length or a terminator", ErrConfig)
	}
	if f.Step < 0 {
		return fmt.Errorf("%w: negative step %d", ErrConfig, f.Step)
	}
	return nil
}

func (f *BytesField) step() int {
	if f.Step <= 0 {
		return 1
	}
	return f.Step
}

func (f *BytesField) sizeRef() (string, bool) { return f.Length.RefName() }

func (f *BytesField) measure(value any) (int64, error) {
	raw, err := f.fromValue(value)
	if err != nil {
		return 0, err
	}
	return int64(len(raw)), nil
}

func (f *BytesField) ctype(name string) string {
	return fmt.Sprintf("uint8 %s[]", name)
}

// fromValue is the pre-write transform; the base accepts bytes and, as a
// convenience, strings. StringField layers encoding on top.
func (f *BytesField) fromValue(value any) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("cannot write %T as bytes", value)
	}
}

// toValue is the post-read transform; the base is identity.
func (f *BytesField) toValue(raw []byte) (any, error) { return raw, nil }

func (f *BytesField) Parse(ctx context.Context, r *bitstream.Reader, pc *Context) (any, error) {
	raw, err := f.readRaw(r, pc)
	if err != nil {
		return nil, err
	}
	return f.toValue(raw)
}

func (f *BytesField) readRaw(r *bitstream.Reader, pc *Context) ([]byte, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}

	if f.Length.IsZero() {
		data, err := r.ReadUntil(f.Terminator, f.step())
		if err != nil {
			if errors.Is(err, ErrStreamExhausted) && f.Lenient {
				return data, nil
			}
			return nil, err
		}
		return data, nil
	}

	length, err := f.Length.resolveInt(pc)
	if err != nil {
		return nil, err
	}
	var buf []byte
	if length < 0 {
		buf, err = r.ReadBytesFull()
	} else {
		buf, err = r.ReadBytes(int(length))
	}
	if err != nil {
		return nil, err
	}

	if len(f.Terminator) > 0 {
		if i, found := scanTerminator(buf, f.Terminator, f.step()); found {
			return buf[:i], nil
		}
		if !f.Lenient {
			return nil, fmt.Errorf("%w: %x not within %d bytes", ErrTerminatorNotFound, f.Terminator, len(buf))
		}
		return buf, nil
	}

	if len(f.Padding) > 0 {
		return stripPadding(buf, f.Padding), nil
	}
	return buf, nil
}

func (f *BytesField) Write(ctx context.Context, w *bitstream.Writer, pc *Context, value any) (int, error) {
	raw, err := f.fromValue(value)
	if err != nil {
		return 0, err
	}
	return f.writeRaw(w, pc, raw)
}

func (f *BytesField) writeRaw(w *bitstream.Writer, pc *Context, raw []byte) (int, error) {
	if err := f.validate(); err != nil {
		return 0, err
	}

	if f.Length.IsZero() {
		out := append(append([]byte{}, raw...), f.Terminator...)
		if step := f.step(); step > 1 && len(f.Padding) > 0 {
			out = padTo(out, len(out)+(-len(out)%step+step)%step, f.Padding)
		}
		return w.WriteBytes(out)
	}

	length, err := f.Length.resolveInt(pc)
	if err != nil {
		return 0, err
	}
	if length < 0 {
		out := raw
		if len(f.Terminator) > 0 {
			out = append(append([]byte{}, raw...), f.Terminator...)
		}
		return w.WriteBytes(out)
	}

	if len(f.Terminator) > 0 {
		body := len(raw) + len(f.Terminator)
		if body > int(length) {
			if !f.Lenient {
				return 0, fmt.Errorf("%w: %d bytes with terminator into %d", ErrWriteOverflow, body, length)
			}
			return w.WriteBytes(append(append([]byte{}, raw...), f.Terminator...))
		}
		out := append(append([]byte{}, raw...), f.Terminator...)
		if body < int(length) {
			switch {
			case len(f.Padding) > 0:
				out = padTo(out, int(length), f.Padding)
			case f.Lenient:
				out = padTo(out, int(length), []byte{0})
			default:
				return 0, fmt.Errorf("%w: %d bytes with terminator into %d and no padding", ErrWriteUnderflow, body, length)
			}
		}
		return w.WriteBytes(out)
	}

	switch {
	case len(raw) == int(length):
		return w.WriteBytes(raw)
	case len(raw) < int(length) && len(f.Padding) > 0:
		return w.WriteBytes(padTo(append([]byte{}, raw...), int(length), f.Padding))
	case f.Lenient:
		return w.WriteBytes(raw)
	case len(raw) < int(length):
		return 0, fmt.Errorf("%w: %d bytes into field of %d", ErrWriteUnderflow, len(raw), length)
	default:
		return 0, fmt.Errorf("%w: %d bytes into field of %d", ErrWriteOverflow, len(raw), length)
	}
}

// scanTerminator finds term within buf at offsets that are multiples of
// step, returning the offset of the first match.
func scanTerminator(buf, term []byte, step int) (int, bool) {
	for i := 0; i+len(term) <= len(buf); i += step {
		if bytes.Equal(buf[i:i+len(term)], term) {
			return i, true
		}
	}
	return 0, false
}

// stripPadding removes trailing whole occurrences of pad, right to left.
func stripPadding(buf, pad []byte) []byte {
	for len(buf) >= len(pad) && bytes.Equal(buf[len(buf)-len(pad):], pad) {
		buf = buf[:len(buf)-len(pad)]
	}
	return buf
}

// padTo extends buf with repeated pad up to total bytes, truncating the last
// unit when it does not divide evenly.
func padTo(buf []byte, total int, pad []byte) []byte {
	for len(buf) < total {
		n := total - len(buf)
		if n > len(pad) {
			n = len(pad)
		}
		buf = append(buf, pad[:n]...)
	}
	return buf
}
