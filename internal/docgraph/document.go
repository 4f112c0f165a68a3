// Package docgraph implements the persistent, cycle-aware document
// multigraph described in SPEC_FULL.md §5: documents identified by URI,
// parse state, dependency edges, and garbage collection of un-rooted nodes.
package docgraph

import (
	"github.com/wdl-platform/corewdl/internal/diagnostics"
	"github.com/wdl-platform/corewdl/internal/parsext"
	"github.com/wdl-platform/corewdl/internal/wdlscope"
)

// ParseKind discriminates the variant held by a ParseState.
type ParseKind int

const (
	ParseNotParsed ParseKind = iota
	ParseError
	ParseParsed
)

// LineIndex maps byte offsets to line/column positions. It is built once
// per full parse, from the final source text after all pending edits are
// applied.
type LineIndex struct {
	// starts[i] is the byte offset of the first character of line i.
	starts []int
}

// NewLineIndex builds a LineIndex for source text.
func NewLineIndex(source string) *LineIndex {
	starts := []int{0}
	for i, r := range source {
		if r == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{starts: starts}
}

// Offset converts a zero-based line/column pair to a byte offset, clamping
// to the document's bounds. It is the inverse of Position, used by the LSP
// adapter to turn a textDocument position into the offsets wdlscope's
// FindScopeByPosition expects.
func (l *LineIndex) Offset(line, col int) int {
	if line < 0 {
		line = 0
	}
	if line >= len(l.starts) {
		return l.starts[len(l.starts)-1] + col
	}
	return l.starts[line] + col
}

// Position converts a byte offset to a line/column pair.
func (l *LineIndex) Position(offset int) diagnostics.Position {
	// Find the last line start <= offset.
	lo, hi := 0, len(l.starts)-1
	line := 0
	for lo <= hi {
		mid := (lo + hi) / 2
		if l.starts[mid] <= offset {
			line = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return diagnostics.Position{Line: line, Column: offset - l.starts[line]}
}

// ParseState is the sum type described in SPEC_FULL.md §5: NotParsed,
// Error, or Parsed with the effective language version, tree, line index,
// and parse diagnostics.
type ParseState struct {
	Kind ParseKind

	// ParseError
	Err error

	// Parsed
	Version     *int // client-supplied monotonic version, if any
	WDLVersion  string
	Tree        parsext.Tree
	Lines       *LineIndex
	Diagnostics []diagnostics.Diagnostic
}

// PendingKind discriminates the variant held by a PendingChange.
type PendingKind int

const (
	PendingNone PendingKind = iota
	PendingRefetch
	PendingIncremental
)

// SourceEdit is one incremental text edit.
type SourceEdit struct {
	Range diagnostics.Span
	Text  string
}

// PendingChange is the document's outstanding, not-yet-applied change.
type PendingChange struct {
	Kind      PendingKind
	StartText *string
	Edits     []SourceEdit
}

// Document is an addressable source unit.
type Document struct {
	URI     string
	Version *int // present iff managed by a client
	Parse   ParseState
	Scope   *wdlscope.DocumentScope
	Pending PendingChange
}

// Node owns one Document plus graph bookkeeping.
type Node struct {
	Doc         Document
	AnalysisErr error
	Rooted      bool
	tombstoned  bool
}
