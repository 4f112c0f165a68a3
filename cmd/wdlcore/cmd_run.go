package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wdl-platform/corewdl/internal/executor"
)

var (
	runTarget  string
	runInputs  string
	runIndexOn string
)

var runCmd = &cobra.Command{
	Use:   "run <source>",
	Short: "Execute a WDL workflow or task and record its provenance",
	Long: `Validates source against the configured allowed paths/URLs, analyzes
it, selects a target (explicit --target, else the document's sole
workflow, else its sole task), dispatches evaluation, and persists the
run's outputs under the configured output directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runRunCmd,
}

func init() {
	runCmd.Flags().StringVar(&runTarget, "target", "", "workflow or task name (default: inferred)")
	runCmd.Flags().StringVar(&runInputs, "inputs", "", "inline JSON inputs object (default: no inputs)")
	runCmd.Flags().StringVar(&runIndexOn, "index-on", "", "publish outputs under index/<key>/ (default: no indexing)")
}

func runRunCmd(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	q := newQueue()
	ctx, cancel := newCancelableContext(cmd)
	defer cancel()
	go q.Run(ctx)

	ex := newExecutor(db, q)
	result, err := ex.Run(ctx, executor.TargetRequest{
		Source:     args[0],
		TargetName: runTarget,
		InputsJSON: runInputs,
		IndexOn:    runIndexOn,
		CreatedBy:  "cli",
	})
	if err != nil {
		fmt.Printf("run %s failed: %v\n", result.Run.Name, err)
		return err
	}

	fmt.Printf("run %s: %s\n", result.Run.Name, result.Run.Status)
	return nil
}
