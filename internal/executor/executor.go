// Package executor implements the run executor and provenance index (C5):
// source validation, the run lifecycle, and symlink-based index
// publishing, grounded on sprocket's execution.rs and tests/database/sqlite.rs.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wdl-platform/corewdl/internal/config"
	"github.com/wdl-platform/corewdl/internal/diagnostics"
	"github.com/wdl-platform/corewdl/internal/evaluator"
	"github.com/wdl-platform/corewdl/internal/logging"
	"github.com/wdl-platform/corewdl/internal/store"
	"github.com/wdl-platform/corewdl/internal/wdlscope"
)

// Analyzer is the slice of C3/C4 the executor needs: resolve a source URI
// to a fully analyzed document. Expressed as an interface so the executor
// does not import internal/queue directly.
type Analyzer interface {
	AnalyzeDocument(ctx context.Context, uri string) (*wdlscope.DocumentScope, []diagnostics.Diagnostic, error)
}

// TargetRequest names the run to perform.
type TargetRequest struct {
	Source     string
	TargetName string // empty: infer the sole workflow, else the sole task
	InputsJSON string // empty: use defaults
	IndexOn    string // empty: skip indexing
	CreatedBy  string
}

// RunResult is returned to the executor's caller after Run completes.
type RunResult struct {
	Run store.Run
}

// TargetKind distinguishes a workflow target from a task target.
type TargetKind int

const (
	TargetWorkflow TargetKind = iota
	TargetTask
)

// Executor runs one target end to end and records its provenance.
type Executor struct {
	db       *store.DB
	analyzer Analyzer
	eval     evaluator.Dispatcher
	cfg      config.ExecutionConfig
}

// New constructs an Executor.
func New(db *store.DB, analyzer Analyzer, eval evaluator.Dispatcher, cfg config.ExecutionConfig) *Executor {
	return &Executor{db: db, analyzer: analyzer, eval: eval, cfg: cfg}
}

// Run implements the 9-step flow of spec.md §4.5.
func (e *Executor) Run(ctx context.Context, req TargetRequest) (RunResult, error) {
	timer := logging.StartTimer(logging.CategoryExecutor, "Run")
	defer timer.Stop()

	validated, err := ValidateSource(req.Source, e.cfg)
	if err != nil {
		return RunResult{}, err
	}

	// Step 1: open a session.
	session, err := e.db.CreateSession(store.SessionRun, req.CreatedBy)
	if err != nil {
		return RunResult{}, fmt.Errorf("open session: %w", err)
	}

	// Step 2: generate a unique run name.
	name, err := GenerateRunName(e.cfg.OutputDirectory)
	if err != nil {
		return RunResult{}, fmt.Errorf("generate run name: %w", err)
	}
	runDir := filepath.Join("runs", name)
	absRunDir := filepath.Join(e.cfg.OutputDirectory, runDir)
	if err := os.MkdirAll(absRunDir, 0o755); err != nil {
		return RunResult{}, fmt.Errorf("create run directory: %w", err)
	}

	// Step 3: insert Pending, then Running.
	run, err := e.db.CreateRun(session.UUID, name, req.Source, req.TargetName, req.InputsJSON, runDir)
	if err != nil {
		return RunResult{}, fmt.Errorf("create run: %w", err)
	}
	if err := e.db.SetRunStatus(run.UUID, store.RunRunning, time.Now().UTC()); err != nil {
		return RunResult{}, fmt.Errorf("set run running: %w", err)
	}

	outputs, runErr := e.execute(ctx, &run, validated, req, absRunDir)
	if runErr != nil {
		e.db.SetRunError(run.UUID, runErr.Error())
		e.db.SetRunStatus(run.UUID, store.RunFailed, time.Now().UTC())
		final, _ := e.db.GetRun(run.UUID)
		return RunResult{Run: final}, runErr
	}

	outputsJSON, err := json.Marshal(outputs)
	if err != nil {
		return RunResult{}, fmt.Errorf("marshal outputs: %w", err)
	}
	if err := os.WriteFile(filepath.Join(absRunDir, "outputs.json"), outputsJSON, 0o644); err != nil {
		return RunResult{}, fmt.Errorf("write outputs.json: %w", err)
	}

	var indexDir *string
	if req.IndexOn != "" {
		if err := e.Index(run.UUID, name, outputs, req.IndexOn); err != nil {
			// Indexing failures do not roll back outputs or mark the run
			// failed; they surface to the caller and are re-runnable via
			// Rebuild, per spec.md §4.5 failure semantics.
			logging.Get(logging.CategoryIndex).Error("index %s for run %s: %v", req.IndexOn, run.UUID, err)
		} else {
			dir := filepath.ToSlash(filepath.Join("index", req.IndexOn))
			indexDir = &dir
		}
	}

	outStr := string(outputsJSON)
	if err := e.db.SetRunOutputs(run.UUID, outStr, indexDir); err != nil {
		return RunResult{}, fmt.Errorf("set run outputs: %w", err)
	}
	if err := e.db.SetRunStatus(run.UUID, store.RunCompleted, time.Now().UTC()); err != nil {
		return RunResult{}, fmt.Errorf("set run completed: %w", err)
	}

	final, err := e.db.GetRun(run.UUID)
	if err != nil {
		return RunResult{}, err
	}
	return RunResult{Run: final}, nil
}

func (e *Executor) execute(ctx context.Context, run *store.Run, src ValidatedSource, req TargetRequest, runDir string) (map[string]evaluator.OutputValue, error) {
	uri := src.Path
	if src.Kind == SourceURL {
		uri = src.URL
	} else {
		uri = "file://" + src.Path
	}

	scope, diags, err := e.analyzer.AnalyzeDocument(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("analyze document: %w", err)
	}
	if hasErrorDiagnostic(diags) {
		return nil, fmt.Errorf("document has analysis errors")
	}

	kind, targetName, err := selectTarget(scope, req.TargetName)
	if err != nil {
		return nil, err
	}

	inputs, err := parseInputs(req.InputsJSON, runDir, targetName)
	if err != nil {
		return nil, err
	}

	token := make(chan struct{})
	progress := make(chan evaluator.ProgressEvent, 8)
	go func() {
		for range progress {
		}
	}()
	defer close(progress)

	switch kind {
	case TargetWorkflow:
		return e.eval.EvaluateWorkflow(ctx, evaluator.WorkflowInvocation{
			Name: targetName, Inputs: inputs, RunDir: runDir, Token: token, Progress: progress,
		})
	default:
		return e.eval.EvaluateTask(ctx, evaluator.TaskInvocation{
			Name: targetName, Inputs: inputs, RunDir: runDir, Token: token, Progress: progress,
		})
	}
}

func hasErrorDiagnostic(diags []diagnostics.Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == diagnostics.SeverityError {
			return true
		}
	}
	return false
}

// selectTarget implements spec.md §4.5 step 5: explicit name resolves
// against the workflow first, then a task of that name; no name requires
// exactly one workflow or, failing that, exactly one task.
func selectTarget(scope *wdlscope.DocumentScope, explicit string) (TargetKind, string, error) {
	wfName, _, hasWorkflow := scope.WorkflowRef()

	if explicit != "" {
		if hasWorkflow && wfName == explicit {
			return TargetWorkflow, explicit, nil
		}
		if _, ok := scope.TaskRef(explicit); ok {
			return TargetTask, explicit, nil
		}
		return 0, "", fmt.Errorf("no workflow or task named %q", explicit)
	}

	if hasWorkflow {
		return TargetWorkflow, wfName, nil
	}

	taskNames := scope.TaskNames()
	if len(taskNames) == 1 {
		return TargetTask, taskNames[0], nil
	}
	return 0, "", fmt.Errorf("document has no workflow and %d tasks: a target name is required", len(taskNames))
}

// parseInputs implements spec.md §4.5 step 6: an empty JSON string uses
// defaults (nil map, evaluator applies its own defaults); otherwise the
// JSON is persisted to inputs.json and parsed as a flat key/value map.
// Per WDL inputs-JSON convention (and sprocket's wdl-engine inputs.rs),
// every key must be dotted-prefixed with the root workflow or task name;
// a key prefixed with anything else means the inputs file was written for
// a different target than the one selected, an executor error per
// spec.md §7 ("input file mismatched target kind/name").
func parseInputs(inputsJSON, runDir, targetName string) (map[string]evaluator.OutputValue, error) {
	if inputsJSON == "" {
		return nil, nil
	}
	if err := os.WriteFile(filepath.Join(runDir, "inputs.json"), []byte(inputsJSON), 0o644); err != nil {
		return nil, fmt.Errorf("write inputs.json: %w", err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(inputsJSON), &raw); err != nil {
		return nil, fmt.Errorf("parse inputs: %w", err)
	}
	prefix := targetName + "."
	out := make(map[string]evaluator.OutputValue, len(raw))
	for k, v := range raw {
		field, ok := strings.CutPrefix(k, prefix)
		if !ok {
			return nil, fmt.Errorf("input key %q does not match selected target %q: expected it prefixed with %q", k, targetName, prefix)
		}
		out[field] = v
	}
	return out, nil
}
