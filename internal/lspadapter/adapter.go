// Package lspadapter translates the LSP document-sync and query surface
// onto internal/queue's Add/Remove/NotifyIncrementalChange/NotifyChange/
// Analyze operations, grounded on teacher internal/world/lsp/manager.go's
// role as a thin coordination layer in front of a real engine (here,
// internal/queue instead of the teacher's mangle.Engine).
package lspadapter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wdl-platform/corewdl/internal/diagnostics"
	"github.com/wdl-platform/corewdl/internal/docgraph"
	"github.com/wdl-platform/corewdl/internal/logging"
	"github.com/wdl-platform/corewdl/internal/queue"
	"github.com/wdl-platform/corewdl/internal/wdlscope"
)

// Position is a zero-based line/character pair, matching the LSP wire
// protocol (as opposed to diagnostics.Position, which is internal and
// already zero-based but named to match this package's own callers).
type Position struct {
	Line      int
	Character int
}

// Adapter owns the mapping from client-visible document URIs to queue
// operations. It holds no document state of its own; internal/docgraph is
// the source of truth.
type Adapter struct {
	q *queue.Queue
}

// New constructs an Adapter over an already-running Queue (Queue.Run must
// be started by the caller, per queue's own lifecycle contract).
func New(q *queue.Queue) *Adapter {
	return &Adapter{q: q}
}

// DidOpen registers uri as a client-managed (rooted) document with its full
// text, the LSP analogue of queue.Add + a full-text NotifyIncrementalChange.
func (a *Adapter) DidOpen(ctx context.Context, uri, text string) error {
	if _, err := a.q.Add(ctx, uri, true); err != nil {
		return err
	}
	return a.q.NotifyIncrementalChange(ctx, uri, docgraph.PendingChange{
		Kind:      docgraph.PendingIncremental,
		StartText: &text,
	})
}

// DidChange applies a full-document replacement, matching the teacher's
// lsp.go handling of didChange (full sync, no incremental-edit wire
// support — textDocumentSync: Full in the initialize response).
func (a *Adapter) DidChange(ctx context.Context, uri, text string) error {
	return a.q.NotifyIncrementalChange(ctx, uri, docgraph.PendingChange{
		Kind:      docgraph.PendingIncremental,
		StartText: &text,
	})
}

// DidClose un-roots uri. The document stays in the graph as a dependency
// node if something else still imports it; NotifyChange's invalidation and
// the queue's own GC after a future Remove reclaim it once nothing does.
func (a *Adapter) DidClose(ctx context.Context, uri string) error {
	return a.q.Remove(ctx, uri)
}

// AddWorkspaceFolder walks the folder named by the file:// uri and roots
// every .wdl document under it (didChangeWorkspaceFolders' add list /
// initial workspace scan).
func (a *Adapter) AddWorkspaceFolder(ctx context.Context, uri string) error {
	root := strings.TrimPrefix(uri, "file://")
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".wdl" {
			return nil
		}
		_, err = a.q.Add(ctx, "file://"+path, true)
		return err
	})
}

// RemoveWorkspaceFolder un-roots everything under folder.
func (a *Adapter) RemoveWorkspaceFolder(ctx context.Context, uri string) error {
	return a.q.Remove(ctx, uri)
}

// DidChangeWatchedFiles notifies the queue that uri's on-disk content may
// have changed, discarding any pending edit so the next analyze re-fetches
// from disk (spec.md's change-from-outside-the-editor path, as opposed to
// an editor-sourced didChange).
func (a *Adapter) DidChangeWatchedFiles(ctx context.Context, uri string) error {
	return a.q.NotifyChange(ctx, uri, true)
}

// Diagnostic is the LSP-shaped diagnostic payload the adapter returns, a
// thin reshaping of diagnostics.Diagnostic to zero-based line/character
// positions.
type Diagnostic struct {
	Severity diagnostics.Severity
	Code     string
	Message  string
	Range    [2]Position
}

// Diagnostics runs textDocument/diagnostic for uri: analyze just its
// subgraph and return its own diagnostics.
func (a *Adapter) Diagnostics(ctx context.Context, uri string) ([]Diagnostic, error) {
	results, err := a.q.Analyze(ctx, uri, nil)
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		if r.URI == uri {
			return toDiagnostics(r.Diagnostics), nil
		}
	}
	return nil, nil
}

// WorkspaceDiagnostics runs workspace/diagnostic: analyze every current
// root and return a per-document map.
func (a *Adapter) WorkspaceDiagnostics(ctx context.Context) (map[string][]Diagnostic, error) {
	results, err := a.q.Analyze(ctx, "", nil)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]Diagnostic, len(results))
	for _, r := range results {
		out[r.URI] = toDiagnostics(r.Diagnostics)
	}
	return out, nil
}

func toDiagnostics(diags []diagnostics.Diagnostic) []Diagnostic {
	out := make([]Diagnostic, 0, len(diags))
	for _, d := range diags {
		out = append(out, Diagnostic{
			Severity: d.Severity,
			Code:     d.Code,
			Message:  d.Message,
			Range: [2]Position{
				{Line: d.Primary.Start.Line, Character: d.Primary.Start.Column},
				{Line: d.Primary.End.Line, Character: d.Primary.End.Column},
			},
		})
	}
	return out
}

// Hover resolves the word under position against uri's nearest enclosing
// scope, per sprocket crates/wdl-lsp/src/handlers/hover.rs's
// word-then-scope-lookup shape. It returns false if the document has no
// completed analysis, the position is out of bounds, or no name is bound
// under the cursor.
func (a *Adapter) Hover(uri string, pos Position) (string, bool) {
	n, ok := a.q.Node(uri)
	if !ok || n.Doc.Parse.Kind != docgraph.ParseParsed || n.Doc.Scope == nil {
		return "", false
	}
	source, ok := n.Doc.Parse.Tree.(interface{ SourceText() string })
	if !ok {
		return "", false
	}
	text := source.SourceText()
	offset := n.Doc.Parse.Lines.Offset(pos.Line, pos.Character)
	word := wordAt(text, offset)
	if word == "" {
		return "", false
	}

	scopeRef, ok := n.Doc.Scope.FindScopeByPosition(offset)
	if !ok {
		return "", false
	}
	name, ok := scopeRef.Lookup(word)
	if !ok {
		return "", false
	}

	logging.Get(logging.CategoryLSP).Debug("hover %s@%d:%d -> %s", uri, pos.Line, pos.Character, word)

	typ := "unknown"
	if name.Type != nil {
		typ = name.Type.String()
	}
	return fmt.Sprintf("%s: %s", word, typ), true
}

// wordAt extracts the identifier (letters, digits, underscore) touching
// offset in text.
func wordAt(text string, offset int) string {
	if offset < 0 || offset > len(text) {
		return ""
	}
	isWord := func(b byte) bool {
		return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
	}
	start := offset
	for start > 0 && isWord(text[start-1]) {
		start--
	}
	end := offset
	for end < len(text) && isWord(text[end]) {
		end++
	}
	return text[start:end]
}

// WorkflowOrTaskNames lists the document's task/workflow names, sorted for
// deterministic completion/outline output.
func WorkflowOrTaskNames(scope *wdlscope.DocumentScope) []string {
	names := scope.TaskNames()
	if wfName, _, ok := scope.WorkflowRef(); ok {
		names = append(names, wfName)
	}
	sort.Strings(names)
	return names
}

// DocumentSymbols backs textDocument/documentSymbol: the names of uri's
// top-level workflow and tasks, or false if uri has no completed analysis.
func (a *Adapter) DocumentSymbols(uri string) ([]string, bool) {
	n, ok := a.q.Node(uri)
	if !ok || n.Doc.Scope == nil {
		return nil, false
	}
	return WorkflowOrTaskNames(n.Doc.Scope), true
}
