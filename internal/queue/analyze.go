package queue

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/wdl-platform/corewdl/internal/diagnostics"
	"github.com/wdl-platform/corewdl/internal/docgraph"
	"github.com/wdl-platform/corewdl/internal/logging"
	"github.com/wdl-platform/corewdl/internal/parsext"
)

const progressInterval = 50 * time.Millisecond

// analyzeBatchSlowThreshold gates when a full Analyze batch logs at warn
// instead of debug.
const analyzeBatchSlowThreshold = 5 * time.Second

// runAnalyze implements spec.md §4.4's Analyze algorithm. Note: this
// graph's dependency edges run dependent -> dependency (see
// docgraph.Graph's doc comment), the reverse of the direction the
// algorithm's prose assumes; "no incoming edges" there is "no remaining
// dependencies in the filtered set" here. Both describe the same
// topological peel: a node is ready once everything it depends on has
// already been analyzed.
func (q *Queue) runAnalyze(ctx context.Context, uri string, progress chan<- ProgressEvent) ([]AnalysisResult, error) {
	timer := logging.StartTimer(logging.CategoryQueue, "Analyze")
	defer timer.StopWithThreshold(analyzeBatchSlowThreshold)

	seed := map[int]struct{}{}
	requested := uri != ""
	var requestedIdx int
	if requested {
		idx, ok := q.graph.Index(uri)
		if !ok {
			idx = q.graph.AddNode(uri, false)
		}
		requestedIdx = idx
		seed[idx] = struct{}{}
	} else {
		for _, r := range q.graph.Roots() {
			seed[r] = struct{}{}
		}
	}

	frontier := make([]int, 0, len(seed))
	seen := map[int]struct{}{}
	for idx := range seed {
		frontier = append(frontier, idx)
		seen[idx] = struct{}{}
	}

	sem := semaphore.NewWeighted(int64(q.concurrency))

	if err := q.parsePhase(ctx, sem, &frontier, seen, progress); err != nil {
		return nil, err
	}

	analysisDiags, err := q.analyzePhase(ctx, sem, seen, progress)
	if err != nil {
		return nil, err
	}

	candidates := q.graph.Roots()
	if requested {
		found := false
		for _, c := range candidates {
			if c == requestedIdx {
				found = true
				break
			}
		}
		if !found {
			candidates = append(candidates, requestedIdx)
		}
	}

	var out []AnalysisResult
	for _, idx := range candidates {
		n := q.graph.Get(idx)
		if n == nil || n.Doc.Scope == nil {
			continue
		}
		out = append(out, AnalysisResult{
			URI:         n.Doc.URI,
			Scope:       n.Doc.Scope,
			Diagnostics: analysisDiags[idx],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })
	return out, nil
}

// parsePhase repeats step 2 of spec.md §4.4 until the frontier stops
// growing: parse every node in the current slice that needs it, install
// dependency edges from its imports, invalidate transitive dependents, and
// extend the frontier with imports, dependents, and direct dependencies.
func (q *Queue) parsePhase(ctx context.Context, sem *semaphore.Weighted, frontier *[]int, seen map[int]struct{}, progress chan<- ProgressEvent) error {
	offset := 0
	completed := 0
	var lastProgress time.Time

	for offset < len(*frontier) {
		if err := ctx.Err(); err != nil {
			return err
		}
		slice := append([]int(nil), (*frontier)[offset:]...)
		offset = len(*frontier)

		var mu sync.Mutex
		var newNodes []int
		total := len(*frontier)

		g, gctx := errgroup.WithContext(ctx)
		for _, idx := range slice {
			idx := idx
			if !q.graph.NeedsParse(idx) {
				continue
			}
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}
			g.Go(func() error {
				defer sem.Release(1)

				var imports []parsext.ImportStatement
				var changed bool
				func() {
					// A panicking builder marks this node with a parse
					// error rather than failing the batch, the same
					// isolation fullParse itself applies to an ordinary
					// builder error.
					defer func() {
						if r := recover(); r != nil {
							q.graph.SetParseError(idx, fmt.Errorf("parse: panic: %v", r))
							changed = true
						}
					}()
					imports, changed = q.graph.ParseNode(gctx, idx, q.builder, q.versions, q.httpTimeout)
				}()

				mu.Lock()
				completed++
				if progress != nil && time.Since(lastProgress) >= progressInterval {
					progress <- ProgressEvent{Completed: completed, Total: total}
					lastProgress = time.Now()
				}
				mu.Unlock()

				if !changed {
					return nil
				}

				n := q.graph.Get(idx)
				if n == nil {
					return nil
				}
				importer := n.Doc.URI
				q.graph.RemoveDependencyEdges(idx)
				space := docgraph.NewDfsSpace()
				for _, imp := range imports {
					resolved := resolveImportURI(importer, imp.URI)
					impIdx, existed := q.graph.Index(resolved)
					if !existed {
						impIdx = q.graph.AddNode(resolved, false)
					}
					q.graph.AddDependencyEdge(idx, impIdx, space)
					mu.Lock()
					newNodes = append(newNodes, impIdx)
					mu.Unlock()
				}
				for _, dep := range q.graph.Dependents(idx) {
					mu.Lock()
					newNodes = append(newNodes, dep)
					mu.Unlock()
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for _, idx := range slice {
			newNodes = append(newNodes, q.graph.Dependencies(idx)...)
		}

		for _, idx := range newNodes {
			if _, ok := seen[idx]; ok {
				continue
			}
			seen[idx] = struct{}{}
			*frontier = append(*frontier, idx)
		}
	}
	return nil
}

// analyzePhase implements step 3: a topological peel of the subgraph
// restricted to seen, analyzing each node once every node it depends on
// (within seen) has itself been processed.
func (q *Queue) analyzePhase(ctx context.Context, sem *semaphore.Weighted, seen map[int]struct{}, progress chan<- ProgressEvent) (map[int][]diagnostics.Diagnostic, error) {
	remaining := make(map[int]struct{}, len(seen))
	for idx := range seen {
		remaining[idx] = struct{}{}
	}

	diagsByNode := make(map[int][]diagnostics.Diagnostic)
	var mu sync.Mutex
	completed := 0
	total := len(remaining)
	var lastProgress time.Time

	for len(remaining) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var ready []int
		for idx := range remaining {
			satisfied := true
			for _, dep := range q.graph.Dependencies(idx) {
				if _, stillIn := remaining[dep]; stillIn {
					satisfied = false
					break
				}
			}
			if satisfied {
				ready = append(ready, idx)
			}
		}
		if len(ready) == 0 {
			// Cycles are broken at edge-addition time, so the filtered
			// graph is acyclic; this would indicate a bug upstream.
			break
		}
		for _, idx := range ready {
			delete(remaining, idx)
		}

		g, _ := errgroup.WithContext(ctx)
		for _, idx := range ready {
			idx := idx
			if !q.graph.NeedsAnalysis(idx) {
				continue
			}
			if err := sem.Acquire(ctx, 1); err != nil {
				return nil, err
			}
			g.Go(func() error {
				defer sem.Release(1)
				n := q.graph.Get(idx)
				if n == nil || n.Doc.Parse.Kind != docgraph.ParseParsed || n.Doc.Parse.Tree == nil {
					return nil
				}

				var diags []diagnostics.Diagnostic
				func() {
					// A panicking analyzer marks this node with an
					// analysis error rather than failing the batch; the
					// node's result is simply absent, per spec.md §4.4/§7.
					defer func() {
						if r := recover(); r != nil {
							q.graph.SetAnalysis(idx, nil, fmt.Errorf("analyze %s: panic: %v", n.Doc.URI, r))
						}
					}()
					scope, d := q.analyzer.Analyze(n.Doc.Parse.Tree)
					diags = d
					q.graph.SetAnalysis(idx, &scope, nil)
				}()

				mu.Lock()
				diagsByNode[idx] = diags
				completed++
				if progress != nil && time.Since(lastProgress) >= progressInterval {
					progress <- ProgressEvent{Completed: completed, Total: total}
					lastProgress = time.Now()
				}
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	return diagsByNode, nil
}

func resolveImportURI(importer, ref string) string {
	base, err := url.Parse(importer)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(r).String()
}
