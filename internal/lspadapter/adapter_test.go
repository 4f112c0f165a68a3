package lspadapter

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wdl-platform/corewdl/internal/docgraph"
	"github.com/wdl-platform/corewdl/internal/parsext/stub"
	scopestub "github.com/wdl-platform/corewdl/internal/wdlscope/stub"
	"github.com/wdl-platform/corewdl/internal/queue"
	"github.com/wdl-platform/corewdl/internal/wdlversion"
)

func newTestAdapter(t *testing.T) (*Adapter, context.Context, context.CancelFunc) {
	t.Helper()
	graph := docgraph.NewGraph()
	q := queue.New(graph, stub.New(), scopestub.New(), wdlversion.DefaultPolicy(), 2, 0)
	ctx, cancel := context.WithCancel(context.Background())
	go q.Run(ctx)
	return New(q), ctx, cancel
}

func TestDidOpenThenDiagnostics(t *testing.T) {
	a, ctx, cancel := newTestAdapter(t)
	defer cancel()

	uri := "file:///doc.wdl"
	require.NoError(t, a.DidOpen(ctx, uri, "version 1.0\nworkflow greet {}\n"))

	diags, err := a.Diagnostics(ctx, uri)
	require.NoError(t, err)
	assert.Empty(t, diags)
}

func TestDidChangeInvalidatesDependents(t *testing.T) {
	a, ctx, cancel := newTestAdapter(t)
	defer cancel()

	dir := t.TempDir()
	childPath := filepath.Join(dir, "child.wdl")
	require.NoError(t, os.WriteFile(childPath, []byte("version 1.0\ntask t {}\n"), 0o644))
	parentURI := "file://" + filepath.Join(dir, "parent.wdl")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "parent.wdl"),
		[]byte(fmt.Sprintf("version 1.0\nimport %q\nworkflow w {}\n", "child.wdl")), 0o644))

	require.NoError(t, a.AddWorkspaceFolder(ctx, parentURI))
	_, err := a.WorkspaceDiagnostics(ctx)
	require.NoError(t, err)

	childURI := "file://" + childPath
	require.NoError(t, os.WriteFile(childPath, []byte("version 1.0\ntask t2 {}\n"), 0o644))
	require.NoError(t, a.DidChangeWatchedFiles(ctx, childURI))

	results, err := a.WorkspaceDiagnostics(ctx)
	require.NoError(t, err)
	assert.Contains(t, results, parentURI)
}

func TestHoverOnUnboundNameReturnsFalse(t *testing.T) {
	a, ctx, cancel := newTestAdapter(t)
	defer cancel()

	uri := "file:///hover.wdl"
	require.NoError(t, a.DidOpen(ctx, uri, "version 1.0\ntask greet {}\n"))
	_, err := a.Diagnostics(ctx, uri)
	require.NoError(t, err)

	// scopestub registers "greet" as a task header, not as a Name bound
	// in scope, so looking it up under the cursor finds no binding; Hover
	// must report that rather than resolving to a dangling name.
	_, ok := a.Hover(uri, Position{Line: 1, Character: 6})
	assert.False(t, ok)
}

func TestHoverOnUnknownDocumentReturnsFalse(t *testing.T) {
	a, _, cancel := newTestAdapter(t)
	defer cancel()

	_, ok := a.Hover("file:///never-opened.wdl", Position{Line: 0, Character: 0})
	assert.False(t, ok)
}

func TestServeStdioRoundTrip(t *testing.T) {
	a, ctx, cancel := newTestAdapter(t)
	defer cancel()

	srv := NewServer(a)

	initReq := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`
	didOpen := `{"jsonrpc":"2.0","method":"textDocument/didOpen","params":{"textDocument":{"uri":"file:///a.wdl","text":"version 1.0\nworkflow w {}\n"}}}`
	diagReq := `{"jsonrpc":"2.0","id":2,"method":"textDocument/diagnostic","params":{"textDocument":{"uri":"file:///a.wdl"}}}`

	var in bytes.Buffer
	for _, msg := range []string{initReq, didOpen, diagReq} {
		fmt.Fprintf(&in, "Content-Length: %d\r\n\r\n%s", len(msg), msg)
	}

	var out bytes.Buffer
	serveCtx, serveCancel := context.WithCancel(ctx)
	err := srv.Serve(serveCtx, &in, &out)
	serveCancel()
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"capabilities"`)
	assert.Contains(t, out.String(), `"kind":"full"`)
}
