package wdlscope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wdl-platform/corewdl/internal/diagnostics"
	"github.com/wdl-platform/corewdl/internal/wdltype"
)

func span(start, length int) diagnostics.Span {
	return diagnostics.Span{Offset: start, Length: length}
}

func TestInsertAndLookupWalksParents(t *testing.T) {
	b := NewBuilder()
	root := b.OpenScope(NoParent, span(0, 100))
	_, err := b.Insert(root, "x", ContextDecl, span(5, 1))
	require.Nil(t, err)

	child := b.OpenScope(root, span(10, 20))
	_, err = b.Insert(child, "y", ContextDecl, span(12, 1))
	require.Nil(t, err)

	doc := b.Build()
	childRef := doc.Ref(child)

	_, ok := childRef.Local("x")
	assert.False(t, ok, "Local must not see ancestor bindings")

	n, ok := childRef.Lookup("x")
	assert.True(t, ok, "Lookup must walk to parent")
	assert.Equal(t, ContextDecl, n.Context)

	_, ok = childRef.Lookup("nonexistent")
	assert.False(t, ok)
}

func TestInsertNameConflict(t *testing.T) {
	b := NewBuilder()
	root := b.OpenScope(NoParent, span(0, 10))
	_, err := b.Insert(root, "x", ContextDecl, span(1, 1))
	require.Nil(t, err)

	_, err = b.Insert(root, "x", ContextDecl, span(5, 1))
	require.NotNil(t, err)
	assert.Equal(t, "name_conflict", err.Code)
}

func TestFindScopeByPosition(t *testing.T) {
	b := NewBuilder()
	root := b.OpenScope(NoParent, span(0, 100))
	inner := b.OpenScope(root, span(20, 10))
	doc := b.Build()

	ref, ok := doc.FindScopeByPosition(25)
	require.True(t, ok)
	assert.Equal(t, inner, ref.Index())

	ref, ok = doc.FindScopeByPosition(5)
	require.True(t, ok)
	assert.Equal(t, root, ref.Index())

	_, ok = doc.FindScopeByPosition(1000)
	assert.False(t, ok)
}

func TestSectionVisibility(t *testing.T) {
	b := NewBuilder()
	body := b.OpenScope(NoParent, span(0, 50))
	inputs := b.OpenScope(body, span(0, 10))
	outputs := b.OpenScope(body, span(10, 10))
	b.RegisterTask("t", body, &inputs, &outputs, true)

	doc := b.Build()
	assert.True(t, doc.InputVisible("t"))
	assert.True(t, doc.OutputVisible("t"))
	assert.True(t, doc.TaskIdentifierVisible("t"))
	assert.False(t, doc.InputVisible("missing"))
}

func TestHintsSupportsHiddenTypes(t *testing.T) {
	b := NewBuilder()
	body := b.OpenScope(NoParent, span(0, 50))
	hints := b.OpenScope(body, span(30, 10))
	b.MarkHints(hints)

	doc := b.Build()
	ref := doc.Ref(hints)
	assert.True(t, ref.SupportsHints())
	assert.False(t, doc.Ref(body).SupportsHints())
}

func TestSetTypeAfterInsert(t *testing.T) {
	b := NewBuilder()
	root := b.OpenScope(NoParent, span(0, 10))
	_, err := b.Insert(root, "x", ContextDecl, span(0, 1))
	require.Nil(t, err)
	b.SetType(root, "x", wdltype.Primitive(wdltype.KindInt))

	doc := b.Build()
	n, ok := doc.Ref(root).Local("x")
	require.True(t, ok)
	require.NotNil(t, n.Type)
	assert.Equal(t, wdltype.KindInt, n.Type.Kind)
}
