package docgraph

import (
	"context"
	"time"

	"github.com/wdl-platform/corewdl/internal/diagnostics"
	"github.com/wdl-platform/corewdl/internal/parsext"
	"github.com/wdl-platform/corewdl/internal/wdlversion"
)

// ParseNode runs the parse pipeline for the node at idx, per SPEC_FULL.md
// §5: short-circuit if already parsed and nothing pending, attempt an
// incremental reparse, otherwise fully refetch and rebuild. It reports the
// resolved imports so the caller (the analysis queue) can thread them
// through AddDependencyEdge. httpTimeout bounds a refetch of an http(s)://
// URI (config.AnalysisConfig.HTTPTimeoutSeconds); zero uses fetchSource's
// own default.
func (g *Graph) ParseNode(ctx context.Context, idx int, builder parsext.Builder, versions wdlversion.Policy, httpTimeout time.Duration) (imports []parsext.ImportStatement, changed bool) {
	g.mu.Lock()
	n := g.nodes[idx]
	pending := n.Doc.Pending
	alreadyParsed := n.Doc.Parse.Kind == ParseParsed
	uri := n.Doc.URI
	g.mu.Unlock()

	// Step 1: nothing to do.
	if pending.Kind == PendingNone && alreadyParsed {
		g.mu.RLock()
		imports = n.Doc.Parse.Tree.Imports()
		g.mu.RUnlock()
		return imports, false
	}

	// Step 2: attempt incremental reparse when there's no fresh start text,
	// i.e. we have only edits layered on an already-parsed tree. A full
	// concrete-grammar incremental reparser is an external-collaborator
	// concern (see internal/parsext); here we only take the fast path when
	// there is an existing Parsed tree to edit, falling through to a full
	// parse otherwise.
	if pending.Kind == PendingIncremental && pending.StartText == nil && alreadyParsed {
		if text, ok := tryIncrementalReparse(pending.Edits); ok {
			return g.fullParse(ctx, idx, text, builder, versions)
		}
	}

	// Step 3+: full parse. Determine the source text: pending StartText if
	// supplied (client-managed document), else fetch from the URI.
	var source string
	if pending.StartText != nil {
		source = *pending.StartText
		for _, e := range pending.Edits {
			source = applyEdit(source, e)
		}
	} else {
		text, err := fetchSource(ctx, uri, httpTimeout)
		if err != nil {
			g.mu.Lock()
			g.nodes[idx].Doc.Parse = ParseState{Kind: ParseError, Err: err}
			g.nodes[idx].Doc.Pending = PendingChange{}
			g.mu.Unlock()
			return nil, true
		}
		source = text
		for _, e := range pending.Edits {
			source = applyEdit(source, e)
		}
	}

	return g.fullParse(ctx, idx, source, builder, versions)
}

// tryIncrementalReparse attempts to locate a reparsable ancestor covering
// each edit. The core doesn't retain raw source after a successful parse
// (only the tree), so without a concrete-grammar-aware incremental
// reparser there is no ancestor to patch; this always falls through to a
// full parse, leaving room for a collaborator that retains source to plug
// in later.
func tryIncrementalReparse(edits []SourceEdit) (string, bool) {
	return "", false
}

func applyEdit(source string, e SourceEdit) string {
	start := e.Range.Offset
	end := e.Range.Offset + e.Range.Length
	if start < 0 {
		start = 0
	}
	if end > len(source) {
		end = len(source)
	}
	if start > end {
		start = end
	}
	return source[:start] + e.Text + source[end:]
}

func (g *Graph) fullParse(ctx context.Context, idx int, source string, builder parsext.Builder, versions wdlversion.Policy) ([]parsext.ImportStatement, bool) {
	lines := NewLineIndex(source)

	probe, err := builder.Parse(source, "")
	if err != nil {
		g.mu.Lock()
		g.nodes[idx].Doc.Parse = ParseState{Kind: ParseError, Err: err}
		g.nodes[idx].Doc.Pending = PendingChange{}
		g.mu.Unlock()
		return nil, true
	}

	declared, hasDeclared := probe.DeclaredVersion()
	resolved, versionDiag, err := wdlversion.Resolve(declared, hasDeclared, versions)
	if err != nil {
		g.mu.Lock()
		g.nodes[idx].Doc.Parse = ParseState{Kind: ParseError, Err: err}
		g.nodes[idx].Doc.Pending = PendingChange{}
		g.mu.Unlock()
		return nil, true
	}

	tree := probe
	if resolved != declared {
		// Fallback resolved to a different version: reparse under it so the
		// tree reflects the grammar actually applied.
		reparsed, err := builder.Parse(source, resolved)
		if err == nil {
			tree = reparsed
		}
	}

	diags := append([]diagnostics.Diagnostic(nil), tree.Diagnostics()...)
	if versionDiag != nil {
		diags = append(diags, *versionDiag)
	}

	g.mu.Lock()
	g.nodes[idx].Doc.Parse = ParseState{
		Kind:        ParseParsed,
		Version:     g.nodes[idx].Doc.Version,
		WDLVersion:  resolved,
		Tree:        tree,
		Lines:       lines,
		Diagnostics: diags,
	}
	g.nodes[idx].Doc.Pending = PendingChange{}
	g.nodes[idx].AnalysisErr = nil
	g.mu.Unlock()

	return tree.Imports(), true
}
