package binschema

import (
	"bytes"
	"context"
	"io"

	"github.com/twinfer/binschema/pkg/bitstream"
)

// Parse reads one record from r. Fields are parsed in declaration order;
// each parsed value is stored in the context before the next field runs, so
// later fields can reference it. The first failure aborts the record and is
// returned as a *FieldError carrying the record and field name. Returns the
// record and the number of bytes consumed.
func (s *Schema) Parse(ctx context.Context, r *bitstream.Reader) (*Record, int64, error) {
	return s.parseWith(ctx, r, nil)
}

// Unmarshal parses one record from data.
func (s *Schema) Unmarshal(ctx context.Context, data []byte) (*Record, int64, error) {
	return s.Parse(ctx, bitstream.NewReader(data))
}

func (s *Schema) parseWith(ctx context.Context, r *bitstream.Reader, parent *Context) (*Record, int64, error) {
	s.logger.DebugContext(ctx, "parsing record", "record", s.name, "offset", r.Pos())
	start := r.Pos()
	pc := newContext(parent)
	rec := &Record{schema: s, values: make(map[string]any, len(s.fields))}

	for _, def := range s.fields {
		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		default:
		}
		v, err := def.Field.Parse(ctx, r, pc)
		if err != nil {
			s.logger.DebugContext(ctx, "parse aborted", "record", s.name, "field", def.Name, "error", err)
			return nil, 0, parseErr(s.name, def.Name, err)
		}
		pc.Set(def.Name, v)
		rec.values[def.Name] = v
	}

	// Bits left over by a trailing non-realigned bit field die with the
	// record; the next record starts on a byte boundary.
	r.Realign()
	consumed := int64(r.Pos() - start)
	s.logger.DebugContext(ctx, "parsed record", "record", s.name, "bytes", consumed)
	return rec, consumed, nil
}

// Write serializes rec to w. For each field in order the final value is the
// stored attribute (or the field default when unset) passed through the
// field's override, auto-installed or explicit. Finalized values are stored
// in the context so later fields observe them. Buffered bits are flushed
// zero-padded at the record boundary. Returns the number of bytes written.
func (s *Schema) Write(ctx context.Context, w io.Writer, rec *Record) (int, error) {
	bw := bitstream.NewWriter(w)
	return s.writeWith(ctx, bw, rec, nil)
}

// Marshal serializes rec to a byte buffer.
func (s *Schema) Marshal(ctx context.Context, rec *Record) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := s.Write(ctx, &buf, rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Schema) writeWith(ctx context.Context, w *bitstream.Writer, rec *Record, parent *Context) (int, error) {
	if rec == nil {
		return 0, writeErr(s.name, "", ErrConfig)
	}
	s.logger.DebugContext(ctx, "writing record", "record", s.name)
	pc := newContext(parent)
	pc.record = rec

	total := 0
	for _, def := range s.fields {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}
		value, err := s.finalValue(def, rec, pc)
		if err != nil {
			return total, writeErr(s.name, def.Name, err)
		}
		n, err := def.Field.Write(ctx, w, pc, value)
		total += n
		if err != nil {
			s.logger.DebugContext(ctx, "write aborted", "record", s.name, "field", def.Name, "error", err)
			return total, writeErr(s.name, def.Name, err)
		}
		pc.Set(def.Name, value)
	}

	n, err := w.Flush()
	total += n
	if err != nil {
		return total, writeErr(s.name, "", err)
	}
	s.logger.DebugContext(ctx, "wrote record", "record", s.name, "bytes", total)
	return total, nil
}

// finalValue applies the default/override protocol: the user-supplied
// attribute (or its default when unset), then the override just before
// write.
func (s *Schema) finalValue(def FieldDef, rec *Record, pc *Context) (any, error) {
	value, set := rec.values[def.Name]
	if !set {
		switch {
		case !def.Default.IsZero():
			v, err := def.Default.Resolve(pc)
			if err != nil {
				return nil, err
			}
			value = v
		default:
			if d, ok := def.Field.(Defaulter); ok {
				v, err := d.Default(pc)
				if err != nil {
					return nil, err
				}
				value = v
			}
		}
	}
	if def.Override != nil {
		v, err := def.Override(pc, value)
		if err != nil {
			return nil, err
		}
		value = v
	}
	return value, nil
}
