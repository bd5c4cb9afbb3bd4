package binschema

import (
	"context"
	"fmt"

	"github.com/twinfer/binschema/pkg/bitstream"
)

// StringField decodes and encodes text over an inner byte run. It holds a
// BytesField for the byte-level behaviour (length, terminator, padding) and
// applies the character encoding on top. ErrorsReplace substitutes
// unrepresentable input instead of failing; it makes the field lossy, so the
// round-trip law no longer holds.
type StringField struct {
	Raw           BytesField
	Encoding      string // defaults to UTF-8
	ErrorsReplace bool
}

// FixedString declares a string occupying exactly n bytes.
func FixedString(n int) *StringField {
	return &StringField{Raw: BytesField{Length: Lit(n)}}
}

// CString declares a null-terminated string.
func CString() *StringField {
	return &StringField{Raw: BytesField{Terminator: []byte{0}}}
}

func (f *StringField) validate() error {
	if err := f.Raw.validate(); err != nil {
		return err
	}
	_, err := lookupEncoding(f.encoding())
	return err
}

func (f *StringField) encoding() string {
	if f.Encoding == "" {
		return "UTF-8"
	}
	return f.Encoding
}

func (f *StringField) sizeRef() (string, bool) { return f.Raw.sizeRef() }

func (f *StringField) measure(value any) (int64, error) {
	raw, err := f.encode(value)
	if err != nil {
		return 0, err
	}
	return int64(len(raw)), nil
}

func (f *StringField) ctype(name string) string {
	return fmt.Sprintf("char %s[]", name)
}

func (f *StringField) encode(value any) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return encodeText(v, f.encoding(), f.ErrorsReplace)
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("cannot write %T as text", value)
	}
}

func (f *StringField) Parse(ctx context.Context, r *bitstream.Reader, pc *Context) (any, error) {
	raw, err := f.Raw.readRaw(r, pc)
	if err != nil {
		return nil, err
	}
	return decodeText(raw, f.encoding(), f.ErrorsReplace)
}

func (f *StringField) Write(ctx context.Context, w *bitstream.Writer, pc *Context, value any) (int, error) {
	raw, err := f.encode(value)
	if err != nil {
		return 0, err
	}
	return f.Raw.writeRaw(w, pc, raw)
}
