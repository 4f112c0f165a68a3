package docgraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wdl-platform/corewdl/internal/diagnostics"
	"github.com/wdl-platform/corewdl/internal/parsext/stub"
	"github.com/wdl-platform/corewdl/internal/wdlversion"
)

func TestAddNodeIdempotent(t *testing.T) {
	g := NewGraph()
	a := g.AddNode("file:///a.wdl", false)
	b := g.AddNode("file:///a.wdl", true)
	assert.Equal(t, a, b)
	assert.True(t, g.Get(a).Rooted)
}

func TestAddDependencyEdgeDetectsCycle(t *testing.T) {
	g := NewGraph()
	a := g.AddNode("file:///a.wdl", true)
	b := g.AddNode("file:///b.wdl", false)
	c := g.AddNode("file:///c.wdl", false)

	space := NewDfsSpace()
	g.AddDependencyEdge(a, b, space) // a depends on b
	g.AddDependencyEdge(b, c, space) // b depends on c

	// c -> a would close a cycle (a -> b -> c -> a).
	g.AddDependencyEdge(c, a, space)
	assert.True(t, g.InCycleSet(c, a))
	assert.NotContains(t, g.Dependencies(c), a, "cyclic edge must not be added to the graph")
}

func TestGCCollectsUnrootedLeaf(t *testing.T) {
	g := NewGraph()
	root := g.AddNode("file:///root.wdl", true)
	leaf := g.AddNode("file:///leaf.wdl", false)
	space := NewDfsSpace()
	g.AddDependencyEdge(root, leaf, space)

	g.GC()
	assert.NotNil(t, g.Get(leaf), "leaf still has a dependent, must survive GC")

	g.RemoveDependencyEdges(root)
	g.GC()
	assert.Nil(t, g.Get(leaf), "leaf with no dependents and not rooted must be collected")
	assert.NotNil(t, g.Get(root), "rooted node survives regardless of dependents")
}

func TestNotifyIncrementalChangeMergesEdits(t *testing.T) {
	g := NewGraph()
	idx := g.AddNode("file:///a.wdl", true)

	start := "version 1.0\n"
	g.NotifyIncrementalChange(idx, PendingChange{Kind: PendingIncremental, StartText: &start})
	g.NotifyIncrementalChange(idx, PendingChange{Kind: PendingIncremental, Edits: []SourceEdit{
		{Range: diagnostics.Span{Offset: 12, Length: 0}, Text: "task t { command {} }"},
	}})

	n := g.Get(idx)
	require.Equal(t, PendingIncremental, n.Doc.Pending.Kind)
	require.NotNil(t, n.Doc.Pending.StartText)
	assert.Equal(t, start, *n.Doc.Pending.StartText)
	require.Len(t, n.Doc.Pending.Edits, 1)
}

func TestParseNodeResolvesImportsAndVersion(t *testing.T) {
	g := NewGraph()
	idx := g.AddNode("file:///a.wdl", true)
	start := "version 1.0\nimport \"b.wdl\" as b\n"
	g.NotifyIncrementalChange(idx, PendingChange{Kind: PendingIncremental, StartText: &start})

	imports, changed := g.ParseNode(context.Background(), idx, stub.New(), wdlversion.DefaultPolicy(), 0)
	require.True(t, changed)
	require.Len(t, imports, 1)
	assert.Equal(t, "b.wdl", imports[0].URI)

	n := g.Get(idx)
	assert.Equal(t, ParseParsed, n.Doc.Parse.Kind)
	assert.Equal(t, "1.0", n.Doc.Parse.WDLVersion)
}

func TestParseNodeUnsupportedVersionErrors(t *testing.T) {
	g := NewGraph()
	idx := g.AddNode("file:///a.wdl", true)
	start := "version 99.0\n"
	g.NotifyIncrementalChange(idx, PendingChange{Kind: PendingIncremental, StartText: &start})

	_, changed := g.ParseNode(context.Background(), idx, stub.New(), wdlversion.DefaultPolicy(), 0)
	require.True(t, changed)

	n := g.Get(idx)
	assert.Equal(t, ParseError, n.Doc.Parse.Kind)
	assert.Error(t, n.Doc.Parse.Err)
}
