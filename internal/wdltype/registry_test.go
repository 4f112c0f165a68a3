package wdltype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInternSharesStructurallyEqualCompounds(t *testing.T) {
	r := NewRegistry()
	a := r.Array(Primitive(KindInt), false)
	b := r.Array(Primitive(KindInt), false)
	assert.Equal(t, a.Def, b.Def)

	c := r.Array(Primitive(KindInt), true)
	assert.NotEqual(t, a.Def, c.Def)
}

func TestDisplay(t *testing.T) {
	r := NewRegistry()
	arr := r.Array(Primitive(KindInt), true).Opt()
	assert.Equal(t, "Array[Int]+?", r.Display(arr))

	m := r.Map(Primitive(KindString), Primitive(KindFile))
	assert.Equal(t, "Map[String, File]", r.Display(m))

	p := r.Pair(Primitive(KindInt), Primitive(KindString))
	assert.Equal(t, "Pair[Int, String]", r.Display(p))

	s := r.Struct("MyStruct", nil).Opt()
	assert.Equal(t, "MyStruct?", r.Display(s))
}

func TestCoercionOptionality(t *testing.T) {
	r := NewRegistry()
	i := Primitive(KindInt)
	iOpt := i.Opt()
	assert.True(t, r.Coercible(i, iOpt))
	assert.False(t, r.Coercible(iOpt, i))

	none := Type{Kind: KindNone}
	assert.True(t, r.Coercible(none, iOpt))
	assert.False(t, r.Coercible(none, i))
}

func TestCoercionNumeric(t *testing.T) {
	r := NewRegistry()
	assert.True(t, r.Coercible(Primitive(KindInt), Primitive(KindFloat)))
	assert.False(t, r.Coercible(Primitive(KindFloat), Primitive(KindInt)))
}

func TestCoercionStringFileDirectoryTriangle(t *testing.T) {
	r := NewRegistry()
	assert.True(t, r.Coercible(Primitive(KindString), Primitive(KindFile)))
	assert.True(t, r.Coercible(Primitive(KindFile), Primitive(KindString)))
	assert.True(t, r.Coercible(Primitive(KindString), Primitive(KindDirectory)))
}

func TestCoercionArrayPlus(t *testing.T) {
	r := NewRegistry()
	plus := r.Array(Primitive(KindInt), true)
	plain := r.Array(Primitive(KindInt), false)
	assert.True(t, r.Coercible(plus, plain))
	assert.False(t, r.Coercible(plain, plus))
}

func TestCoercionStructMemberwise(t *testing.T) {
	r := NewRegistry()
	from := r.Struct("A", []StructMember{
		{Name: "x", Type: Primitive(KindInt)},
	})
	to := r.Struct("B", []StructMember{
		{Name: "x", Type: Primitive(KindFloat)},
		{Name: "y", Type: Primitive(KindString).Opt()},
	})
	assert.True(t, r.Coercible(from, to))

	toRequiresMissing := r.Struct("C", []StructMember{
		{Name: "x", Type: Primitive(KindInt)},
		{Name: "z", Type: Primitive(KindString)},
	})
	assert.False(t, r.Coercible(from, toRequiresMissing))
}

func TestUnionSatisfiesEverything(t *testing.T) {
	r := NewRegistry()
	u := Type{Kind: KindUnion}
	assert.True(t, r.Coercible(u, Primitive(KindInt)))
	assert.True(t, r.Coercible(Primitive(KindInt), u))
	assert.True(t, r.Satisfies(ConstraintStruct, u))
}

func TestConstraintSizable(t *testing.T) {
	r := NewRegistry()
	assert.True(t, r.Satisfies(ConstraintSizable, Primitive(KindFile)))
	assert.False(t, r.Satisfies(ConstraintSizable, Primitive(KindInt)))

	arrOfFiles := r.Array(Primitive(KindFile), false)
	assert.True(t, r.Satisfies(ConstraintSizable, arrOfFiles))

	nested := r.Struct("S", []StructMember{{Name: "f", Type: Primitive(KindFile)}})
	assert.True(t, r.Satisfies(ConstraintSizable, nested))
}

func TestConstraintJSONSerializable(t *testing.T) {
	r := NewRegistry()
	pair := r.Pair(Primitive(KindInt), Primitive(KindString))
	assert.False(t, r.Satisfies(ConstraintJSONSerializable, pair))

	mapOptKey := r.Map(Primitive(KindString).Opt(), Primitive(KindInt))
	assert.False(t, r.Satisfies(ConstraintJSONSerializable, mapOptKey))

	mapOK := r.Map(Primitive(KindString), Primitive(KindInt))
	assert.True(t, r.Satisfies(ConstraintJSONSerializable, mapOK))

	s := r.Struct("S", []StructMember{{Name: "p", Type: pair}})
	assert.False(t, r.Satisfies(ConstraintJSONSerializable, s))
}

func TestLookupUnknownDefID(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Lookup(DefID(42))
	require.False(t, ok)
}
