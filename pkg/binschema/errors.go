package binschema

import (
	"errors"
	"fmt"

	"github.com/twinfer/binschema/pkg/bitstream"
)

// Error kinds surfaced by parsing and writing. Callers discriminate with
// errors.Is; the stream-level kinds are shared with package bitstream so a
// check against either name matches.
var (
	ErrStreamExhausted = bitstream.ErrStreamExhausted
	ErrMisalignedBits  = bitstream.ErrMisalignedBits

	ErrTerminatorNotFound = errors.New("binschema: terminator not found in bounded region")
	ErrMagicMismatch      = errors.New("binschema: magic bytes did not match")
	ErrWriteOverflow      = errors.New("binschema: value longer than declared field width")
	ErrWriteUnderflow     = errors.New("binschema: value shorter than declared field width")
	ErrOverflow           = errors.New("binschema: numeric value does not fit declared width")
	ErrTrailingBytes      = errors.New("binschema: bounded array did not consume its region exactly")
	ErrSwitchNoMatch      = errors.New("binschema: no switch case matched")
	ErrEnumNotFound       = errors.New("binschema: value is not a member of the enumeration")
	ErrEncoding           = errors.New("binschema: text encode/decode failure")
	ErrConfig             = errors.New("binschema: schema misconfiguration")
	ErrUnknownField       = errors.New("binschema: unknown field reference")
)

// FieldError wraps a failure with the record and field it occurred in.
// The first failure aborts the current record; partial records are never
// returned.
type FieldError struct {
	Record string
	Field  string
	Op     string // "parse" or "write"
	Err    error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s %s.%s: %v", e.Op, e.Record, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

func parseErr(record, field string, err error) error {
	return &FieldError{Record: record, Field: field, Op: "parse", Err: err}
}

func writeErr(record, field string, err error) error {
	return &FieldError{Record: record, Field: field, Op: "write", Err: err}
}
