// Package evaluator declares the external-collaborator interface the run
// executor dispatches to. Per SPEC_FULL.md §8 the task/workflow evaluators
// themselves (container orchestration, command execution) are out of
// scope; only the dispatch boundary is implemented here.
package evaluator

import "context"

// OutputValue is a JSON-compatible value tree produced by an evaluation:
// string, float64, bool, nil, []OutputValue, or map[string]OutputValue,
// plus the File/Directory leaf markers used by indexing.
type OutputValue interface{}

// File marks a leaf path in an OutputValue tree as a file produced by the
// run, relative to the run directory.
type File struct{ Path string }

// Directory marks a leaf path in an OutputValue tree as a directory
// produced by the run, relative to the run directory.
type Directory struct{ Path string }

// TaskInvocation names a task target and its resolved inputs.
type TaskInvocation struct {
	Name    string
	Inputs  map[string]OutputValue
	RunDir  string
	Token   CancelToken
	Progress chan<- ProgressEvent
}

// WorkflowInvocation names a workflow target and its resolved inputs.
type WorkflowInvocation struct {
	Name     string
	Inputs   map[string]OutputValue
	RunDir   string
	Token    CancelToken
	Progress chan<- ProgressEvent
}

// ProgressEvent reports evaluator progress back to the executor's caller.
type ProgressEvent struct {
	Stage   string
	Message string
}

// CancelToken is checked by an evaluator between steps; it closes when the
// caller requests cancellation (spec.md §4.5 step 7 / §5 cancellation).
type CancelToken <-chan struct{}

// Dispatcher is the collaborator boundary: given a resolved target and
// inputs, produce outputs or an error. Implementations own all container
// and command execution.
type Dispatcher interface {
	EvaluateTask(ctx context.Context, inv TaskInvocation) (map[string]OutputValue, error)
	EvaluateWorkflow(ctx context.Context, inv WorkflowInvocation) (map[string]OutputValue, error)
}
