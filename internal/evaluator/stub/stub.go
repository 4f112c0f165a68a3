// Package stub provides a no-op evaluator.Dispatcher used by executor
// tests: it "evaluates" a task or workflow by echoing its declared
// outputs, writing any File-shaped output as an empty file under the run
// directory so indexing has a real referent to symlink.
package stub

import (
	"context"
	"os"
	"path/filepath"

	"github.com/wdl-platform/corewdl/internal/evaluator"
)

// Dispatcher returns a fixed set of outputs regardless of inputs, creating
// placeholder files for any evaluator.File leaves.
type Dispatcher struct {
	Outputs map[string]evaluator.OutputValue
}

// New constructs a Dispatcher that will return outputs for any target.
func New(outputs map[string]evaluator.OutputValue) *Dispatcher {
	return &Dispatcher{Outputs: outputs}
}

func (d *Dispatcher) EvaluateTask(ctx context.Context, inv evaluator.TaskInvocation) (map[string]evaluator.OutputValue, error) {
	return d.materialize(inv.RunDir)
}

func (d *Dispatcher) EvaluateWorkflow(ctx context.Context, inv evaluator.WorkflowInvocation) (map[string]evaluator.OutputValue, error) {
	return d.materialize(inv.RunDir)
}

func (d *Dispatcher) materialize(runDir string) (map[string]evaluator.OutputValue, error) {
	for _, v := range d.Outputs {
		if f, ok := v.(evaluator.File); ok {
			full := filepath.Join(runDir, f.Path)
			if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
				return nil, err
			}
			if err := os.WriteFile(full, nil, 0o644); err != nil {
				return nil, err
			}
		}
	}
	return d.Outputs, nil
}
