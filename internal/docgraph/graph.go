package docgraph

import (
	"sync"

	"github.com/wdl-platform/corewdl/internal/wdlscope"
)

// cyclePair is an ordered (from, to) pair recorded when adding the forward
// edge from -> to would have introduced a cycle.
type cyclePair struct {
	From int
	To   int
}

// Graph is a directed multigraph of documents. An edge from -> to means
// "from depends on to" (e.g. from imports to). Node storage is append-only
// with tombstones on removal, per SPEC_FULL.md §5's arena-style design
// note, so NodeIndex values handed out earlier remain valid array indices.
type Graph struct {
	mu    sync.RWMutex
	nodes []*Node
	byURI map[string]int

	// deps[x] = set of node indices that x depends on.
	deps map[int]map[int]struct{}
	// dependents[x] = set of node indices that depend on x. A non-rooted
	// node with an empty dependents set has "no outgoing edges" in
	// spec.md's terms (no document depends on it) and is GC-eligible.
	dependents map[int]map[int]struct{}

	cycles map[cyclePair]struct{}
}

// NewGraph constructs an empty document graph.
func NewGraph() *Graph {
	return &Graph{
		byURI:      make(map[string]int),
		deps:       make(map[int]map[int]struct{}),
		dependents: make(map[int]map[int]struct{}),
		cycles:     make(map[cyclePair]struct{}),
	}
}

// AddNode is idempotent in URI: repeated calls for the same URI return the
// existing node index. rooted=true may upgrade an existing node to rooted
// but never downgrades one.
func (g *Graph) AddNode(uri string, rooted bool) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if idx, ok := g.byURI[uri]; ok {
		if rooted {
			g.nodes[idx].Rooted = true
		}
		return idx
	}
	idx := len(g.nodes)
	g.nodes = append(g.nodes, &Node{Doc: Document{URI: uri}, Rooted: rooted})
	g.byURI[uri] = idx
	g.deps[idx] = make(map[int]struct{})
	g.dependents[idx] = make(map[int]struct{})
	return idx
}

// Get returns the node at idx, or nil if it has been tombstoned.
func (g *Graph) Get(idx int) *Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if idx < 0 || idx >= len(g.nodes) {
		return nil
	}
	n := g.nodes[idx]
	if n.tombstoned {
		return nil
	}
	return n
}

// Index returns the node index for a URI, if present (and not tombstoned).
func (g *Graph) Index(uri string) (int, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	idx, ok := g.byURI[uri]
	if !ok || g.nodes[idx].tombstoned {
		return 0, false
	}
	return idx, true
}

// RemoveRoot un-roots any node whose URI starts with prefix and marks all
// transitive dependents for re-analysis by clearing their cached scope
// (the nodes themselves are not deleted; gc() reclaims them later if
// eligible).
func (g *Graph) RemoveRoot(prefix string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for idx, n := range g.nodes {
		if n.tombstoned || !n.Rooted {
			continue
		}
		if !hasPrefix(n.Doc.URI, prefix) {
			continue
		}
		n.Rooted = false
		g.invalidateDependentsLocked(idx)
	}
}

func hasPrefix(uri, prefix string) bool {
	if len(prefix) > len(uri) {
		return false
	}
	return uri[:len(prefix)] == prefix
}

// invalidateDependentsLocked clears cached analysis for every node
// transitively reachable from idx via dependents (BFS), matching invariant 4:
// reparsing/changing a document invalidates every node that (transitively)
// imports it. idx's own analysis is left to the caller. Caller must hold g.mu.
func (g *Graph) invalidateDependentsLocked(idx int) {
	visited := map[int]struct{}{idx: {}}
	queue := []int{idx}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for dep := range g.dependents[cur] {
			if _, seen := visited[dep]; seen {
				continue
			}
			visited[dep] = struct{}{}
			g.nodes[dep].Doc.Scope = nil
			g.nodes[dep].AnalysisErr = nil
			queue = append(queue, dep)
		}
	}
}

// NotifyIncrementalChange merges change into the node's pending change per
// SPEC_FULL.md §5: a new StartText replaces any prior edits; otherwise
// edits are appended. The node's version is bumped and its analysis
// invalidated.
func (g *Graph) NotifyIncrementalChange(idx int, change PendingChange) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := g.nodes[idx]
	n.Doc.Scope = nil
	n.AnalysisErr = nil

	existing := n.Doc.Pending
	if change.StartText != nil {
		n.Doc.Pending = PendingChange{
			Kind:      PendingIncremental,
			StartText: change.StartText,
			Edits:     change.Edits,
		}
	} else if existing.Kind == PendingIncremental {
		n.Doc.Pending = PendingChange{
			Kind:      PendingIncremental,
			StartText: existing.StartText,
			Edits:     append(append([]SourceEdit{}, existing.Edits...), change.Edits...),
		}
	} else {
		n.Doc.Pending = PendingChange{Kind: PendingIncremental, Edits: change.Edits}
	}

	if n.Doc.Version == nil {
		v := 0
		n.Doc.Version = &v
	}
	*n.Doc.Version++

	g.invalidateDependentsLocked(idx)
}

// NotifyChange clears the node's analysis. If discardPending is set, or the
// last parse had no client version, it also clears parse state and the
// pending change (forcing a full refetch+reparse).
func (g *Graph) NotifyChange(idx int, discardPending bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := g.nodes[idx]
	n.Doc.Scope = nil
	n.AnalysisErr = nil

	if discardPending || n.Doc.Parse.Version == nil {
		n.Doc.Parse = ParseState{Kind: ParseNotParsed}
		n.Doc.Pending = PendingChange{Kind: PendingRefetch}
	}

	g.invalidateDependentsLocked(idx)
}

// DfsSpace is caller-supplied scratch space reused across AddDependencyEdge
// calls to avoid a fresh allocation per edge, per spec.md §4.3.
type DfsSpace struct {
	visited map[int]bool
	stack   []int
}

// NewDfsSpace allocates reusable scratch space for cycle checks.
func NewDfsSpace() *DfsSpace {
	return &DfsSpace{visited: make(map[int]bool)}
}

func (s *DfsSpace) reset() {
	for k := range s.visited {
		delete(s.visited, k)
	}
	s.stack = s.stack[:0]
}

// AddDependencyEdge records that node `from` depends on node `to`. If a path
// to -> ... -> from already exists, adding the edge would create a cycle:
// the pair is recorded in the cycle set and no edge is added. Otherwise the
// edge is added (idempotently).
func (g *Graph) AddDependencyEdge(from, to int, space *DfsSpace) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if space == nil {
		space = NewDfsSpace()
	}
	space.reset()
	if g.pathExistsLocked(to, from, space) {
		g.cycles[cyclePair{From: from, To: to}] = struct{}{}
		return
	}

	if _, ok := g.deps[from][to]; ok {
		return
	}
	g.deps[from][to] = struct{}{}
	g.dependents[to][from] = struct{}{}
}

// pathExistsLocked reports whether `to` is reachable from `from` following
// forward dependency edges. Caller must hold g.mu.
func (g *Graph) pathExistsLocked(from, to int, space *DfsSpace) bool {
	space.stack = append(space.stack[:0], from)
	for len(space.stack) > 0 {
		cur := space.stack[len(space.stack)-1]
		space.stack = space.stack[:len(space.stack)-1]
		if cur == to {
			return true
		}
		if space.visited[cur] {
			continue
		}
		space.visited[cur] = true
		for next := range g.deps[cur] {
			if !space.visited[next] {
				space.stack = append(space.stack, next)
			}
		}
	}
	return false
}

// InCycleSet reports whether (from, to) was recorded as a would-be cycle.
func (g *Graph) InCycleSet(from, to int) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.cycles[cyclePair{From: from, To: to}]
	return ok
}

// RemoveDependencyEdges clears every edge where idx is the dependent (i.e.
// idx's own dependency list), used before re-adding imports after a reparse.
func (g *Graph) RemoveDependencyEdges(idx int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for to := range g.deps[idx] {
		delete(g.dependents[to], idx)
	}
	g.deps[idx] = make(map[int]struct{})
}

// Dependents returns the node indices that directly depend on idx.
func (g *Graph) Dependents(idx int) []int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]int, 0, len(g.dependents[idx]))
	for d := range g.dependents[idx] {
		out = append(out, d)
	}
	return out
}

// Dependencies returns the node indices idx directly depends on.
func (g *Graph) Dependencies(idx int) []int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]int, 0, len(g.deps[idx]))
	for d := range g.deps[idx] {
		out = append(out, d)
	}
	return out
}

// GC removes every non-rooted node with no dependents, along with matching
// cycle-set and URI-index entries. It is idempotent once no nodes have
// changed.
func (g *Graph) GC() {
	g.mu.Lock()
	defer g.mu.Unlock()

	var collected []int
	for idx, n := range g.nodes {
		if n.tombstoned || n.Rooted {
			continue
		}
		if len(g.dependents[idx]) == 0 {
			collected = append(collected, idx)
		}
	}
	for _, idx := range collected {
		n := g.nodes[idx]
		n.tombstoned = true
		delete(g.byURI, n.Doc.URI)
		for to := range g.deps[idx] {
			delete(g.dependents[to], idx)
		}
		delete(g.deps, idx)
		delete(g.dependents, idx)
		for pair := range g.cycles {
			if pair.From == idx || pair.To == idx {
				delete(g.cycles, pair)
			}
		}
	}
}

// SetAnalysis installs the outcome of an analysis job for idx: a scope on
// success, or a non-nil err (with a nil scope) on failure. It is the
// analyze-phase counterpart to ParseNode's parse-phase installation.
func (g *Graph) SetAnalysis(idx int, scope *wdlscope.DocumentScope, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if idx < 0 || idx >= len(g.nodes) || g.nodes[idx].tombstoned {
		return
	}
	g.nodes[idx].Doc.Scope = scope
	g.nodes[idx].AnalysisErr = err
}

// SetParseError installs a parse failure for idx, clearing any pending
// change. It is the panic-recovery counterpart to fullParse's own
// ParseError assignments, used when the builder collaborator panics
// instead of returning an error.
func (g *Graph) SetParseError(idx int, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if idx < 0 || idx >= len(g.nodes) || g.nodes[idx].tombstoned {
		return
	}
	g.nodes[idx].Doc.Parse = ParseState{Kind: ParseError, Err: err}
	g.nodes[idx].Doc.Pending = PendingChange{}
}

// NeedsParse reports whether idx has no usable parse state: either it has
// never been parsed, or it has a pending change not yet applied.
func (g *Graph) NeedsParse(idx int) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if idx < 0 || idx >= len(g.nodes) || g.nodes[idx].tombstoned {
		return false
	}
	n := g.nodes[idx]
	return n.Doc.Parse.Kind != ParseParsed || n.Doc.Pending.Kind != PendingNone
}

// NeedsAnalysis reports whether idx has a successfully parsed tree but no
// cached scope and no recorded analysis error.
func (g *Graph) NeedsAnalysis(idx int) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if idx < 0 || idx >= len(g.nodes) || g.nodes[idx].tombstoned {
		return false
	}
	n := g.nodes[idx]
	return n.Doc.Parse.Kind == ParseParsed && n.Doc.Scope == nil && n.AnalysisErr == nil
}

// Roots returns the indices of every currently rooted, non-tombstoned node.
func (g *Graph) Roots() []int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []int
	for idx, n := range g.nodes {
		if !n.tombstoned && n.Rooted {
			out = append(out, idx)
		}
	}
	return out
}

// Len returns the number of non-tombstoned nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, node := range g.nodes {
		if !node.tombstoned {
			n++
		}
	}
	return n
}
