package binschema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpecResolveVariants(t *testing.T) {
	pc := newContext(nil)
	pc.Set("len", uint64(4))

	v, err := Lit(7).Resolve(pc)
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	v, err = Ref("len").Resolve(pc)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), v)

	_, err = Ref("nope").Resolve(pc)
	assert.ErrorIs(t, err, ErrUnknownField)

	v, err = Fn0(func() any { return "x" }).Resolve(pc)
	require.NoError(t, err)
	assert.Equal(t, "x", v)

	v, err = Fn(func(c *Context) (any, error) { return c.Get("len") }).Resolve(pc)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), v)

	v, err = Expr("len + 1").Resolve(pc)
	require.NoError(t, err)
	n, err := toInt64(v)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	_, err = Spec{}.Resolve(pc)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestSpecBadExpression(t *testing.T) {
	_, err := Expr("1 +").Resolve(newContext(nil))
	assert.ErrorIs(t, err, ErrConfig)
}

func TestContextWalksOutward(t *testing.T) {
	parent := newContext(nil)
	parent.Set("outer", 1)
	parent.Set("both", "parent")
	child := newContext(parent)
	child.Set("both", "child")

	v, err := child.Get("both")
	require.NoError(t, err)
	assert.Equal(t, "child", v, "innermost context wins")

	v, err = child.Get("outer")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	_, err = child.Get("neither")
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestContextSeesPendingRecordValues(t *testing.T) {
	s := newTestSchema(t, "r", []FieldDef{
		{Name: "a", Field: UInt8()},
	})
	rec, err := s.Record(map[string]any{"a": 9})
	require.NoError(t, err)

	pc := newContext(nil)
	pc.record = rec
	v, err := pc.Get("a")
	require.NoError(t, err)
	assert.Equal(t, 9, v)

	// a processed value shadows the pending one
	pc.Set("a", 10)
	v, err = pc.Get("a")
	require.NoError(t, err)
	assert.Equal(t, 10, v)
}

func TestTruthinessTable(t *testing.T) {
	assert.False(t, isTruthy(nil))
	assert.False(t, isTruthy(uint64(0)))
	assert.False(t, isTruthy(""))
	assert.False(t, isTruthy([]byte{}))
	assert.False(t, isTruthy(false))
	assert.True(t, isTruthy([]byte{0}))
	assert.True(t, isTruthy("0"))
	assert.True(t, isTruthy(int8(-1)))
	assert.True(t, isTruthy(3.5))
	assert.False(t, isTruthy(0.0))
	assert.True(t, isTruthy(struct{}{}))
}

func TestRecordDefaultsAtAccess(t *testing.T) {
	s := newTestSchema(t, "d", []FieldDef{
		{Name: "a", Field: UInt8(), Default: Lit(3)},
		{Name: "b", Field: UInt8(), Default: Fn0(func() any { return 4 })},
		{Name: "c", Field: UInt8()},
	})
	rec, err := s.Record(nil)
	require.NoError(t, err)

	assert.Equal(t, 3, mustGet(t, rec, "a"))
	assert.Equal(t, 4, mustGet(t, rec, "b"))
	assert.Nil(t, mustGet(t, rec, "c"))

	require.NoError(t, rec.Set("a", 9))
	assert.Equal(t, 9, mustGet(t, rec, "a"))

	err = rec.Set("zzz", 1)
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestRecordEqual(t *testing.T) {
	s := newTestSchema(t, "e", []FieldDef{
		{Name: "a", Field: UInt8(), Default: Lit(1)},
		{Name: "b", Field: &BytesField{Length: Lit(2)}},
	})
	r1, err := s.Record(map[string]any{"b": []byte("xy")})
	require.NoError(t, err)
	r2, err := s.Record(map[string]any{"a": uint64(1), "b": []byte("xy")})
	require.NoError(t, err)
	assert.True(t, r1.Equal(r2), "defaults and explicit values compare equal")

	require.NoError(t, r2.Set("b", []byte("zz")))
	assert.False(t, r1.Equal(r2))
}

func TestUnknownFieldInRecordConstruction(t *testing.T) {
	s := newTestSchema(t, "u", []FieldDef{
		{Name: "a", Field: UInt8()},
	})
	_, err := s.Record(map[string]any{"ghost": 1})
	assert.ErrorIs(t, err, ErrUnknownField)
}
