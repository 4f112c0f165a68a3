// Package wdlscope implements the lexical scope model described in
// SPEC_FULL.md §4: nested scopes with per-section visibility rules for
// task/workflow inputs, outputs, hints, and command sections.
//
// Scopes are produced by a Builder driven by the document analyzer (which
// walks the concrete syntax tree supplied by the external parser
// collaborator); wdlscope itself knows nothing about CST shapes.
package wdlscope

import (
	"fmt"
	"sort"

	"github.com/wdl-platform/corewdl/internal/diagnostics"
	"github.com/wdl-platform/corewdl/internal/wdltype"
)

// NameContext tags the declaration origin of a bound name.
type NameContext int

const (
	ContextInput NameContext = iota
	ContextOutput
	ContextDecl
	ContextCall
	ContextScatterVariable
	ContextTask
)

// Name is a single binding visible in a scope.
type Name struct {
	Context NameContext
	Type    *wdltype.Type // nil while unresolved (e.g. recursive struct)
}

// Index identifies a Scope within a DocumentScope's flat scope slice.
type Index int

// NoParent marks a scope with no enclosing scope.
const NoParent Index = -1

// Scope is one lexical region: a section of source with its own bindings,
// a parent to fall back to on lookup miss, and child scopes nested within
// it (scatter bodies, conditional bodies, call blocks).
type Scope struct {
	Parent       Index
	Span         diagnostics.Span
	Names        map[string]Name
	order        []string // insertion order, for deterministic iteration
	Children     []Index
	supportsHints bool
}

// DocumentScope owns every scope built for one document, plus the indices
// that answer "what task/workflow/struct is this document's scope for".
type DocumentScope struct {
	scopes []Scope

	Namespaces map[string]Index
	Tasks      map[string]taskScope
	Workflow   *workflowScope
	Structs    map[string]wdltype.Type
}

type taskScope struct {
	body         Index
	inputs       *Index
	outputs      *Index
	supportsTask bool // `task` identifier resolvable (command/output, version-gated)
}

type workflowScope struct {
	name    string
	body    Index
	inputs  *Index
	outputs *Index
}

// Builder accumulates scopes for a single document in source order.
type Builder struct {
	doc DocumentScope
}

// NewBuilder starts construction of a new document's scopes.
func NewBuilder() *Builder {
	return &Builder{doc: DocumentScope{
		Namespaces: make(map[string]Index),
		Tasks:      make(map[string]taskScope),
		Structs:    make(map[string]wdltype.Type),
	}}
}

// OpenScope appends a new scope with the given parent and span. Scopes must
// be opened in non-decreasing span-start order (source order) so that
// FindScopeByPosition can binary-search by span start.
func (b *Builder) OpenScope(parent Index, span diagnostics.Span) Index {
	idx := Index(len(b.doc.scopes))
	b.doc.scopes = append(b.doc.scopes, Scope{
		Parent: parent,
		Span:   span,
		Names:  make(map[string]Name),
	})
	if parent != NoParent {
		p := &b.doc.scopes[parent]
		p.Children = append(p.Children, idx)
	}
	return idx
}

// MarkHints enables hidden-type resolution for the given scope, matching
// the `hints` section semantics (supports_hints = true).
func (b *Builder) MarkHints(idx Index) {
	b.doc.scopes[idx].supportsHints = true
}

// Insert binds name in scope idx. It fails with a name-conflict diagnostic
// at span if name is already bound locally; the prior binding's span is not
// recorded, so the diagnostic does not point at it.
func (b *Builder) Insert(idx Index, name string, ctx NameContext, span diagnostics.Span) (Name, *diagnostics.Diagnostic) {
	s := &b.doc.scopes[idx]
	if _, exists := s.Names[name]; exists {
		d := diagnostics.New("name_conflict", fmt.Sprintf("a name named `%s` is already declared in this scope", name), span)
		return Name{}, &d
	}
	n := Name{Context: ctx}
	s.Names[name] = n
	s.order = append(s.order, name)
	return n, nil
}

// SetType fills in the resolved type for an existing binding (used once the
// declaration's type expression has been evaluated, which may happen after
// insertion for self-referential or mutually recursive declarations).
func (b *Builder) SetType(idx Index, name string, t wdltype.Type) {
	s := &b.doc.scopes[idx]
	n := s.Names[name]
	n.Type = &t
	s.Names[name] = n
}

// RegisterTask records idx as the body scope of task name, with optional
// inputs/outputs sub-scopes.
func (b *Builder) RegisterTask(name string, body Index, inputs, outputs *Index, supportsTask bool) {
	b.doc.Tasks[name] = taskScope{body: body, inputs: inputs, outputs: outputs, supportsTask: supportsTask}
}

// RegisterWorkflow records idx as the body scope of the document's sole
// workflow.
func (b *Builder) RegisterWorkflow(name string, body Index, inputs, outputs *Index) {
	b.doc.Workflow = &workflowScope{name: name, body: body, inputs: inputs, outputs: outputs}
}

// RegisterNamespace records an import's namespace scope (the imported
// document's top-level names as seen through the importing document).
func (b *Builder) RegisterNamespace(name string, scope Index) {
	b.doc.Namespaces[name] = scope
}

// RegisterStruct records a struct definition's resolved type.
func (b *Builder) RegisterStruct(name string, t wdltype.Type) {
	b.doc.Structs[name] = t
}

// Build finalizes the DocumentScope. The Builder must not be reused after
// calling Build.
func (b *Builder) Build() DocumentScope {
	return b.doc
}

// Ref returns a read-only handle onto a built scope.
func (d *DocumentScope) Ref(idx Index) ScopeRef {
	return ScopeRef{doc: d, idx: idx}
}

// TaskRef returns the body scope for a named task, if any.
func (d *DocumentScope) TaskRef(name string) (ScopeRef, bool) {
	t, ok := d.Tasks[name]
	if !ok {
		return ScopeRef{}, false
	}
	return d.Ref(t.body), true
}

// WorkflowRef returns the body scope of the document's sole workflow, if any.
func (d *DocumentScope) WorkflowRef() (string, ScopeRef, bool) {
	if d.Workflow == nil {
		return "", ScopeRef{}, false
	}
	return d.Workflow.name, d.Ref(d.Workflow.body), true
}

// TaskNames returns the document's task names in no particular order, for
// target inference when no workflow is present.
func (d *DocumentScope) TaskNames() []string {
	names := make([]string, 0, len(d.Tasks))
	for name := range d.Tasks {
		names = append(names, name)
	}
	return names
}

// FindScopeByPosition returns the innermost scope covering offset, or false
// if no scope contains it. It binary-searches scopes by span start (scopes
// are appended in source order) then scans earlier scopes backwards until a
// covering span is found.
func (d *DocumentScope) FindScopeByPosition(offset int) (ScopeRef, bool) {
	n := len(d.scopes)
	if n == 0 {
		return ScopeRef{}, false
	}
	// Find the last scope whose span starts at or before offset.
	i := sort.Search(n, func(i int) bool { return d.scopes[i].Span.Offset > offset })
	for i--; i >= 0; i-- {
		s := d.scopes[i]
		if offset >= s.Span.Offset && offset < s.Span.Offset+s.Span.Length {
			return ScopeRef{doc: d, idx: Index(i)}, true
		}
	}
	return ScopeRef{}, false
}

// ScopeRef is a read-only cursor onto one scope of a DocumentScope.
type ScopeRef struct {
	doc *DocumentScope
	idx Index
}

// Index returns the scope's index.
func (r ScopeRef) Index() Index { return r.idx }

// Valid reports whether r refers to a real scope.
func (r ScopeRef) Valid() bool { return r.doc != nil }

// Parent returns the enclosing scope, if any.
func (r ScopeRef) Parent() (ScopeRef, bool) {
	p := r.doc.scopes[r.idx].Parent
	if p == NoParent {
		return ScopeRef{}, false
	}
	return ScopeRef{doc: r.doc, idx: p}, true
}

// Children returns the scope's nested child scopes.
func (r ScopeRef) Children() []ScopeRef {
	idxs := r.doc.scopes[r.idx].Children
	out := make([]ScopeRef, len(idxs))
	for i, c := range idxs {
		out[i] = ScopeRef{doc: r.doc, idx: c}
	}
	return out
}

// Names iterates the scope's own bindings in declaration order.
func (r ScopeRef) Names() []struct {
	Name string
	N    Name
} {
	s := r.doc.scopes[r.idx]
	out := make([]struct {
		Name string
		N    Name
	}, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, struct {
			Name string
			N    Name
		}{Name: name, N: s.Names[name]})
	}
	return out
}

// Local looks up name only within this scope, with no ancestor fallback.
func (r ScopeRef) Local(name string) (Name, bool) {
	n, ok := r.doc.scopes[r.idx].Names[name]
	return n, ok
}

// Lookup walks self -> parent -> ... until name is found or the chain is
// exhausted.
func (r ScopeRef) Lookup(name string) (Name, bool) {
	cur := r
	for {
		if n, ok := cur.Local(name); ok {
			return n, true
		}
		p, ok := cur.Parent()
		if !ok {
			return Name{}, false
		}
		cur = p
	}
}

// SupportsHints reports whether hidden-type resolution is enabled because
// this scope is (or is nested within) a `hints` section.
func (r ScopeRef) SupportsHints() bool {
	for cur, ok := r, true; ok; cur, ok = cur.Parent() {
		if cur.doc.scopes[cur.idx].supportsHints {
			return true
		}
	}
	return false
}
