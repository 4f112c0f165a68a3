// Package queue implements the single-consumer analysis queue (C4):
// Add/Remove/NotifyIncrementalChange/NotifyChange mutate the document
// graph; Analyze drives the parse-then-analyze pipeline across a subgraph,
// grounded on sprocket's crates/wdl-analysis/src/queue.rs translated to Go
// channels, with the single-consumer loop in the style of teacher's
// internal/core/mangle_watcher.go debounce goroutine.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/wdl-platform/corewdl/internal/diagnostics"
	"github.com/wdl-platform/corewdl/internal/docgraph"
	"github.com/wdl-platform/corewdl/internal/parsext"
	"github.com/wdl-platform/corewdl/internal/wdlscope"
	"github.com/wdl-platform/corewdl/internal/wdlversion"
)

// Analyzer turns a parsed tree into a document's scope model. This is an
// external collaborator (a real implementation needs a concrete grammar,
// out of scope here); queue depends only on this interface.
type Analyzer interface {
	Analyze(tree parsext.Tree) (wdlscope.DocumentScope, []diagnostics.Diagnostic)
}

// ProgressEvent reports batch progress during Analyze, emitted no more
// often than every 50ms per spec.md §4.4.
type ProgressEvent struct {
	Completed int
	Total     int
}

// AnalysisResult is one document's outcome from an Analyze call.
type AnalysisResult struct {
	URI         string
	Scope       *wdlscope.DocumentScope
	Diagnostics []diagnostics.Diagnostic
	Err         error
}

// request is the internal envelope consumed by the queue's single loop.
type request interface {
	handle(ctx context.Context, q *Queue)
}

type addRequest struct {
	uri    string
	rooted bool
	reply  chan int
}

func (r *addRequest) handle(_ context.Context, q *Queue) {
	idx := q.graph.AddNode(r.uri, r.rooted)
	r.reply <- idx
}

type removeRequest struct {
	prefix string
	reply  chan struct{}
}

func (r *removeRequest) handle(_ context.Context, q *Queue) {
	q.graph.RemoveRoot(r.prefix)
	q.graph.GC()
	close(r.reply)
}

type notifyIncrementalChangeRequest struct {
	uri    string
	change docgraph.PendingChange
	reply  chan struct{}
}

func (r *notifyIncrementalChangeRequest) handle(_ context.Context, q *Queue) {
	idx, ok := q.graph.Index(r.uri)
	if !ok {
		idx = q.graph.AddNode(r.uri, true)
	}
	q.graph.NotifyIncrementalChange(idx, r.change)
	close(r.reply)
}

type notifyChangeRequest struct {
	uri            string
	discardPending bool
	reply          chan struct{}
}

func (r *notifyChangeRequest) handle(_ context.Context, q *Queue) {
	idx, ok := q.graph.Index(r.uri)
	if !ok {
		idx = q.graph.AddNode(r.uri, true)
	}
	q.graph.NotifyChange(idx, r.discardPending)
	close(r.reply)
}

type analyzeRequest struct {
	uri      string
	progress chan<- ProgressEvent
	reply    chan analyzeReply
}

type analyzeReply struct {
	results []AnalysisResult
	err     error
}

func (r *analyzeRequest) handle(ctx context.Context, q *Queue) {
	results, err := q.runAnalyze(ctx, r.uri, r.progress)
	r.reply <- analyzeReply{results: results, err: err}
}

// Queue owns the document graph and serializes every mutation through a
// single consumer goroutine started by Run.
type Queue struct {
	graph       *docgraph.Graph
	builder     parsext.Builder
	analyzer    Analyzer
	versions    wdlversion.Policy
	httpTimeout time.Duration

	concurrency int
	requests    chan request
}

// New constructs a Queue. concurrency bounds the parse/analyze worker pool
// (the work-stealing pool of spec.md §4.4's concurrency model). httpTimeout
// bounds a refetch of an http(s):// document source (zero uses fetchSource's
// own default).
func New(graph *docgraph.Graph, builder parsext.Builder, analyzer Analyzer, versions wdlversion.Policy, concurrency int, httpTimeout time.Duration) *Queue {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Queue{
		graph:       graph,
		builder:     builder,
		analyzer:    analyzer,
		versions:    versions,
		httpTimeout: httpTimeout,
		concurrency: concurrency,
		requests:    make(chan request, 64),
	}
}

// Run drains requests until ctx is cancelled. It is meant to run in its own
// goroutine; Queue's client methods are safe to call from any goroutine.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-q.requests:
			req.handle(ctx, q)
		}
	}
}

// Add registers uri as a (optionally rooted) document and returns its node
// index. Idempotent in uri.
func (q *Queue) Add(ctx context.Context, uri string, rooted bool) (int, error) {
	reply := make(chan int, 1)
	if err := q.send(ctx, &addRequest{uri: uri, rooted: rooted, reply: reply}); err != nil {
		return 0, err
	}
	select {
	case idx := <-reply:
		return idx, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Remove un-roots every document whose URI starts with prefix and runs GC.
func (q *Queue) Remove(ctx context.Context, prefix string) error {
	reply := make(chan struct{})
	if err := q.send(ctx, &removeRequest{prefix: prefix, reply: reply}); err != nil {
		return err
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NotifyIncrementalChange merges an incremental edit into uri's pending
// change, adding uri as a rooted document if it is not already tracked.
func (q *Queue) NotifyIncrementalChange(ctx context.Context, uri string, change docgraph.PendingChange) error {
	reply := make(chan struct{})
	if err := q.send(ctx, &notifyIncrementalChangeRequest{uri: uri, change: change, reply: reply}); err != nil {
		return err
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NotifyChange invalidates uri's cached analysis (and, if discardPending or
// the prior parse was unversioned, its parse state too).
func (q *Queue) NotifyChange(ctx context.Context, uri string, discardPending bool) error {
	reply := make(chan struct{})
	if err := q.send(ctx, &notifyChangeRequest{uri: uri, discardPending: discardPending, reply: reply}); err != nil {
		return err
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Analyze runs the parse-then-analyze algorithm of spec.md §4.4 over the
// subgraph rooted at uri (or every current root, if uri is empty),
// streaming progress on the supplied channel (which may be nil).
//
// Cancellation is expressed via ctx rather than by the caller closing a
// reply channel: Go has no portable way to probe whether an unbuffered
// channel still has a receiver, so ctx cancellation is the idiomatic
// substitute, checked between batches exactly where the original probes
// the reply channel.
func (q *Queue) Analyze(ctx context.Context, uri string, progress chan<- ProgressEvent) ([]AnalysisResult, error) {
	reply := make(chan analyzeReply, 1)
	if err := q.send(ctx, &analyzeRequest{uri: uri, progress: progress, reply: reply}); err != nil {
		return nil, err
	}
	select {
	case r := <-reply:
		return r.results, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AnalyzeDocument satisfies internal/executor's Analyzer interface: it runs
// Analyze rooted at uri and returns that document's own result, letting the
// executor resolve a run's target document via C3/C4 without a direct
// dependency from executor to queue.
func (q *Queue) AnalyzeDocument(ctx context.Context, uri string) (*wdlscope.DocumentScope, []diagnostics.Diagnostic, error) {
	results, err := q.Analyze(ctx, uri, nil)
	if err != nil {
		return nil, nil, err
	}
	for _, r := range results {
		if r.URI == uri {
			return r.Scope, r.Diagnostics, nil
		}
	}
	return nil, nil, fmt.Errorf("document %s has no completed analysis", uri)
}

// Node returns the graph node tracked for uri, if any. It reads the graph
// directly rather than through the request loop: docgraph.Graph guards its
// own state with an RWMutex, so concurrent reads are already safe and do
// not need to be serialized behind Queue's single writer goroutine.
func (q *Queue) Node(uri string) (*docgraph.Node, bool) {
	idx, ok := q.graph.Index(uri)
	if !ok {
		return nil, false
	}
	n := q.graph.Get(idx)
	if n == nil {
		return nil, false
	}
	return n, true
}

func (q *Queue) send(ctx context.Context, req request) error {
	select {
	case q.requests <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
