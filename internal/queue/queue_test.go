package queue

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wdl-platform/corewdl/internal/docgraph"
	"github.com/wdl-platform/corewdl/internal/parsext/stub"
	scopestub "github.com/wdl-platform/corewdl/internal/wdlscope/stub"
	"github.com/wdl-platform/corewdl/internal/wdlversion"
)

func newTestQueue() (*Queue, context.Context, context.CancelFunc) {
	graph := docgraph.NewGraph()
	q := New(graph, stub.New(), scopestub.New(), wdlversion.DefaultPolicy(), 4, 0)
	ctx, cancel := context.WithCancel(context.Background())
	go q.Run(ctx)
	return q, ctx, cancel
}

func strPtr(s string) *string { return &s }

func TestQueueAddAndAnalyzeSingleDocument(t *testing.T) {
	q, ctx, cancel := newTestQueue()
	defer cancel()

	uri := "file:///doc.wdl"
	_, err := q.Add(ctx, uri, true)
	require.NoError(t, err)

	err = q.NotifyIncrementalChange(ctx, uri, docgraph.PendingChange{
		Kind:      docgraph.PendingIncremental,
		StartText: strPtr("version 1.0\nworkflow greet {}\n"),
	})
	require.NoError(t, err)

	results, err := q.Analyze(ctx, "", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uri, results[0].URI)
	_, _, hasWorkflow := results[0].Scope.WorkflowRef()
	assert.True(t, hasWorkflow)
}

// writeWDLFile writes a real file on disk and returns its file:// URI, so
// that documents discovered purely via import resolution (and therefore
// never opened/notified directly) get their content the same way the
// docgraph parse pipeline fetches any non-rooted document.
func writeWDLFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return "file://" + path
}

func TestQueueAnalyzeFollowsImportsAndInvalidatesDependents(t *testing.T) {
	q, ctx, cancel := newTestQueue()
	defer cancel()

	dir := t.TempDir()
	childURI := writeWDLFile(t, dir, "child.wdl", "version 1.0\ntask t {}\n")
	parentURI := writeWDLFile(t, dir, "parent.wdl",
		"version 1.0\nimport \"child.wdl\" as c\nworkflow w {}\n")

	_, err := q.Add(ctx, parentURI, true)
	require.NoError(t, err)

	results, err := q.Analyze(ctx, "", nil)
	require.NoError(t, err)
	require.Len(t, results, 1, "only the rooted parent is collected; child is non-rooted")
	assert.Equal(t, parentURI, results[0].URI)

	childIdx, ok := q.graph.Index(childURI)
	require.True(t, ok, "importing the child must have added it to the graph")
	assert.False(t, q.graph.Get(childIdx).Rooted)

	// Rewriting the child on disk and notifying the queue must invalidate
	// the parent's cached analysis so the next Analyze re-installs it
	// rather than reusing a stale result.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "child.wdl"), []byte("version 1.0\ntask t2 {}\n"), 0o644))
	require.NoError(t, q.NotifyChange(ctx, childURI, true))

	results2, err := q.Analyze(ctx, "", nil)
	require.NoError(t, err)
	require.Len(t, results2, 1)
}

func TestQueueAnalyzeReportsProgress(t *testing.T) {
	q, ctx, cancel := newTestQueue()
	defer cancel()

	uri := "file:///solo.wdl"
	require.NoError(t, q.NotifyIncrementalChange(ctx, uri, docgraph.PendingChange{
		StartText: strPtr("version 1.0\ntask solo {}\n"),
	}))
	_, err := q.Add(ctx, uri, true)
	require.NoError(t, err)

	progress := make(chan ProgressEvent, 8)
	_, err = q.Analyze(ctx, "", progress)
	require.NoError(t, err)
	close(progress)
}

func TestQueueRemovePrunesUnrootedLeaf(t *testing.T) {
	q, ctx, cancel := newTestQueue()
	defer cancel()

	dir := t.TempDir()
	writeWDLFile(t, dir, "c.wdl", "version 1.0\ntask t {}\n")
	parentURI := writeWDLFile(t, dir, "p.wdl", "version 1.0\nimport \"c.wdl\"\nworkflow w {}\n")

	_, err := q.Add(ctx, parentURI, true)
	require.NoError(t, err)
	_, err = q.Analyze(ctx, "", nil)
	require.NoError(t, err)

	require.NoError(t, q.Remove(ctx, parentURI))
	// GC ran as part of Remove: the un-rooted parent has no dependents, so it
	// is collected.
	_, ok := q.graph.Index(parentURI)
	assert.False(t, ok, "un-rooted node with no dependents must be collected")
}
