package binschema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromYAMLSimple(t *testing.T) {
	doc := `
meta:
  id: greeting
  endian: le
seq:
  - id: magic
    contents: "HI"
  - id: length
    type: u2
  - id: message
    type: str
    size: length
`
	s, err := FromYAML([]byte(doc))
	require.NoError(t, err)

	data := []byte("HI\x05\x00hello")
	rec, n, err := s.Unmarshal(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)
	assert.Equal(t, uint64(5), mustGet(t, rec, "length"))
	assert.Equal(t, "hello", mustGet(t, rec, "message"))

	out, err := s.Marshal(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestFromYAMLNestedTypesAndEnums(t *testing.T) {
	doc := `
meta:
  id: packet
  endian: be
enums:
  proto:
    1: tcp
    2: udp
types:
  header:
    seq:
      - id: version
        type: u1
      - id: kind
        type: u1
        enum: proto
seq:
  - id: hdr
    type: header
  - id: payload_len
    type: u2
  - id: payload
    type: bytes
    size: payload_len
`
	s, err := FromYAML([]byte(doc))
	require.NoError(t, err)

	data := []byte{0x01, 0x02, 0x00, 0x03, 'a', 'b', 'c'}
	rec, _, err := s.Unmarshal(context.Background(), data)
	require.NoError(t, err)

	hdr := mustGet(t, rec, "hdr").(*Record)
	kind := mustGet(t, hdr, "kind").(EnumMember)
	assert.Equal(t, "udp", kind.Name())
	assert.Equal(t, []byte("abc"), mustGet(t, rec, "payload"))

	out, err := s.Marshal(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestFromYAMLRepeatAndConditional(t *testing.T) {
	doc := `
meta:
  id: list
  endian: be
seq:
  - id: count
    type: u1
  - id: items
    type: u2
    repeat: expr
    repeat-expr: count
  - id: checksum
    type: u1
    if: count > 0
`
	s, err := FromYAML([]byte(doc))
	require.NoError(t, err)

	rec, _, err := s.Unmarshal(context.Background(), []byte{0x02, 0, 1, 0, 2, 0x77})
	require.NoError(t, err)
	assert.Equal(t, []any{uint64(1), uint64(2)}, mustGet(t, rec, "items"))
	assert.Equal(t, uint64(0x77), mustGet(t, rec, "checksum"))

	rec, _, err = s.Unmarshal(context.Background(), []byte{0x00})
	require.NoError(t, err)
	assert.Nil(t, mustGet(t, rec, "checksum"))
}

func TestFromYAMLSwitch(t *testing.T) {
	doc := `
meta:
  id: msg
  endian: be
seq:
  - id: tag
    type: u1
  - id: body
    type: u1
    switch-on: tag
    cases:
      "1": u1
      "2": u2
      "_": u4
`
	s, err := FromYAML([]byte(doc))
	require.NoError(t, err)

	rec, _, err := s.Unmarshal(context.Background(), []byte{0x02, 0x01, 0x00})
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0100), mustGet(t, rec, "body"))

	rec, _, err = s.Unmarshal(context.Background(), []byte{0x09, 0, 0, 0, 5})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), mustGet(t, rec, "body"))
}

func TestFromYAMLRepeatEOS(t *testing.T) {
	doc := `
meta:
  id: tail
  endian: be
seq:
  - id: rest
    type: u1
    repeat: eos
`
	s, err := FromYAML([]byte(doc))
	require.NoError(t, err)
	rec, _, err := s.Unmarshal(context.Background(), []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []any{uint64(1), uint64(2), uint64(3)}, mustGet(t, rec, "rest"))
}

func TestFromYAMLStrz(t *testing.T) {
	doc := `
meta:
  id: names
  encoding: UTF-8
seq:
  - id: name
    type: strz
`
	s, err := FromYAML([]byte(doc))
	require.NoError(t, err)
	rec, _, err := s.Unmarshal(context.Background(), []byte("abc\x00"))
	require.NoError(t, err)
	assert.Equal(t, "abc", mustGet(t, rec, "name"))
}

func TestFromYAMLErrors(t *testing.T) {
	_, err := FromYAML([]byte("meta: {endian: be}"))
	assert.ErrorIs(t, err, ErrConfig, "missing id")

	_, err = FromYAML([]byte("meta: {id: x, endian: weird}"))
	assert.ErrorIs(t, err, ErrConfig)

	_, err = FromYAML([]byte(`
meta: {id: x, endian: be}
seq:
  - id: a
    type: no_such_type
`))
	assert.ErrorIs(t, err, ErrConfig)
}

func TestFromYAMLPadRight(t *testing.T) {
	doc := `
meta:
  id: padded
  endian: be
seq:
  - id: name
    type: str
    size: 6
    pad-right: 0x20
`
	s, err := FromYAML([]byte(doc))
	require.NoError(t, err)
	rec, _, err := s.Unmarshal(context.Background(), []byte("ab    "))
	require.NoError(t, err)
	assert.Equal(t, "ab", mustGet(t, rec, "name"))
}
