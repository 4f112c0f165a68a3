// Package parsext declares the interfaces the core depends on for lexing
// and concrete-syntax-tree construction. Per SPEC_FULL.md §8 this is an
// external collaborator: the WDL grammar itself is out of scope. docgraph
// and wdlscope depend only on these interfaces.
package parsext

import "github.com/wdl-platform/corewdl/internal/diagnostics"

// ImportStatement is one `import "..."` (optionally `as alias`) discovered
// while parsing a document.
type ImportStatement struct {
	URI   string
	Alias string
	Span  diagnostics.Span
}

// Node is an opaque concrete-syntax-tree node. The core never inspects node
// internals directly; analysis walks are performed by collaborators that
// understand the concrete grammar.
type Node interface {
	Kind() string
}

// Tree is an immutable parsed concrete syntax tree (a "green tree" in
// rowan/sprocket terms) plus the facts the graph needs without re-walking
// it: the declared WDL version statement (if any) and the imports it
// references.
type Tree interface {
	Root() Node
	DeclaredVersion() (string, bool)
	Imports() []ImportStatement
	Diagnostics() []diagnostics.Diagnostic
}

// Builder parses source text into a Tree for a given effective WDL version.
type Builder interface {
	Parse(source string, version string) (Tree, error)
}
